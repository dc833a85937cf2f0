package filter

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ThresholdMode selects how PruningFilter decides its cutoff.
type ThresholdMode string

const (
	// ThresholdFixed strips any block scoring below Threshold.
	ThresholdFixed ThresholdMode = "fixed"
	// ThresholdDynamic recomputes the cutoff as the mean score across
	// the page's blocks, so sparse pages don't get stripped to nothing.
	ThresholdDynamic ThresholdMode = "dynamic"
)

var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"li": true, "blockquote": true, "td": true,
}

// PruningFilter scores each block element by link density and word
// count, and removes blocks scoring below the
// threshold — a generalization of the teacher's
// pkg/cleaner/domclean.Cleaner.removeByLinkDensity/removeShortText
// boolean strips into one continuous scoring function.
type PruningFilter struct {
	Mode         ThresholdMode
	Threshold    float64 // used when Mode == ThresholdFixed
	MinWordCount int
}

// DefaultPruningFilter uses a fixed score threshold of 0.48 and scores
// blocks of fewer than 3 words as 0.
func DefaultPruningFilter() *PruningFilter {
	return &PruningFilter{Mode: ThresholdFixed, Threshold: 0.48, MinWordCount: 3}
}

func (f *PruningFilter) Name() string { return "pruning" }

func (f *PruningFilter) Apply(ctx context.Context, doc *goquery.Document) error {
	type scored struct {
		sel   *goquery.Selection
		score float64
	}
	var blocks []scored

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		if !blockTags[tag] {
			return
		}
		blocks = append(blocks, scored{sel: s, score: blockScore(s, f.MinWordCount)})
	})

	threshold := f.Threshold
	if f.Mode == ThresholdDynamic && len(blocks) > 0 {
		var sum float64
		for _, b := range blocks {
			sum += b.score
		}
		threshold = sum / float64(len(blocks))
	}

	for _, b := range blocks {
		if b.score < threshold {
			b.sel.Remove()
		}
	}
	return nil
}

func blockScore(s *goquery.Selection, minWords int) float64 {
	text := strings.TrimSpace(s.Text())
	words := len(strings.Fields(text))
	if words < minWords {
		return 0
	}

	linkText := 0
	s.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkText += len(strings.Fields(a.Text()))
	})
	linkDensity := 0.0
	if words > 0 {
		linkDensity = float64(linkText) / float64(words)
	}

	// Higher word count and lower link density both push the score up.
	lengthScore := clamp01(float64(words) / 50.0)
	densityScore := 1 - clamp01(linkDensity)
	return 0.5*lengthScore + 0.5*densityScore
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
