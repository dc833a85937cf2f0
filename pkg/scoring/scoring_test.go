package scoring

import "testing"

func TestBM25ScoresMoreRelevantDocumentHigher(t *testing.T) {
	docs := []string{
		"the quick brown fox jumps over the lazy dog",
		"golang concurrency patterns for web crawlers and schedulers",
		"golang golang golang concurrency concurrency scheduling in crawlers",
	}
	corpus := NewCorpus(docs)
	query := Tokenize("golang concurrency crawler")

	scores := make([]float64, len(docs))
	for i := range docs {
		scores[i] = corpus.Score(i, query)
	}

	if scores[2] <= scores[1] {
		t.Fatalf("expected doc 2 (denser in query terms) to outscore doc 1: %v", scores)
	}
	if scores[1] <= scores[0] {
		t.Fatalf("expected doc 1 to outscore the irrelevant doc 0: %v", scores)
	}
}

func TestIntrinsicScoreFavorsEarlyArticleLinks(t *testing.T) {
	early := IntrinsicScore(LinkContext{
		Href: "/articles/go-concurrency", AnchorText: "Go concurrency patterns",
		ParentTagChain: []string{"article"}, PositionIndex: 0, TotalLinks: 10,
	})
	late := IntrinsicScore(LinkContext{
		Href: "/x", AnchorText: "x",
		ParentTagChain: []string{"footer"}, PositionIndex: 9, TotalLinks: 10,
	})
	if early <= late {
		t.Fatalf("expected early article link (%v) to score above late footer link (%v)", early, late)
	}
}

func TestContextualScoreBlendsBM25(t *testing.T) {
	lc := LinkContext{
		Href: "/a", AnchorText: "Go crawlers", PositionIndex: 0, TotalLinks: 2,
		PageQuery:       Tokenize("crawler concurrency"),
		SurroundingText: "this section discusses crawler concurrency in depth with many crawler concurrency examples",
	}
	withQuery := ContextualScore(lc)

	lc.PageQuery = nil
	withoutQuery := ContextualScore(lc)

	if withQuery == withoutQuery {
		t.Fatalf("expected contextual scoring to differ once a query is supplied")
	}
}
