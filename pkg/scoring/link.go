package scoring

import (
	"net/url"
	"strings"
)

// LinkContext is the surrounding evidence used to score a discovered
// link, per §4.5's intrinsic + contextual scoring.
type LinkContext struct {
	Href           string
	AnchorText     string
	ParentTagChain []string // e.g. ["article", "ul", "li"]
	PositionIndex  int      // 0-based order of appearance on the page
	TotalLinks     int
	PageQuery      []string // BM25 query terms from the crawl's scoring query, if any
	SurroundingText string  // text near the link, scored contextually
}

// IntrinsicScore scores a link using only page-local signals: position
// (earlier is weighted higher), anchor text quality, and URL depth.
func IntrinsicScore(lc LinkContext) float64 {
	var score float64

	if lc.TotalLinks > 0 {
		score += 0.4 * (1 - float64(lc.PositionIndex)/float64(lc.TotalLinks))
	}

	anchorLen := len(strings.TrimSpace(lc.AnchorText))
	switch {
	case anchorLen == 0:
		score += 0
	case anchorLen < 3:
		score += 0.05
	case anchorLen <= 60:
		score += 0.3
	default:
		score += 0.15
	}

	for _, tag := range lc.ParentTagChain {
		if tag == "nav" || tag == "footer" || tag == "aside" {
			score -= 0.2
		}
		if tag == "article" || tag == "main" {
			score += 0.2
		}
	}

	if u, err := url.Parse(lc.Href); err == nil {
		depth := strings.Count(strings.Trim(u.Path, "/"), "/")
		if depth > 0 {
			score += 0.1 / float64(depth+1)
		} else {
			score += 0.1
		}
	}

	return clamp(score, 0, 1)
}

// ContextualScore adds BM25 relevance of the link's surrounding text
// against the crawl's scoring query on top of the intrinsic score.
func ContextualScore(lc LinkContext) float64 {
	base := IntrinsicScore(lc)
	if len(lc.PageQuery) == 0 || lc.SurroundingText == "" {
		return base
	}
	bm25 := ScoreText(lc.SurroundingText+" "+lc.AnchorText, lc.PageQuery)
	// BM25 scores are unbounded; squash into [0,1] before blending so it
	// can't dominate the intrinsic signal for very term-dense snippets.
	squashed := bm25 / (bm25 + 1)
	return clamp(0.5*base+0.5*squashed, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
