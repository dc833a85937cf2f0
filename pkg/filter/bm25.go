package filter

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/crawlforge/crawlforge/pkg/scoring"
)

// BM25Filter keeps only blocks whose BM25 relevance against Query
// exceeds MinScore, grounded on pkg/scoring's BM25 implementation
// (§4.5) reused here against prose blocks instead of links.
type BM25Filter struct {
	Query    []string
	MinScore float64
}

func NewBM25Filter(query string, minScore float64) *BM25Filter {
	return &BM25Filter{Query: scoring.Tokenize(query), MinScore: minScore}
}

func (f *BM25Filter) Name() string { return "bm25" }

func (f *BM25Filter) Apply(ctx context.Context, doc *goquery.Document) error {
	if len(f.Query) == 0 {
		return nil
	}
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		if !blockTags[tag] {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		if scoring.ScoreText(text, f.Query) < f.MinScore {
			s.Remove()
		}
	})
	return nil
}
