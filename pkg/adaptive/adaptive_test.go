package adaptive

import (
	"context"
	"testing"

	"github.com/crawlforge/crawlforge/pkg/crawlresult"
)

func TestConfidenceBlendsWeightedComponents(t *testing.T) {
	w := Weights{Coverage: 0.4, Consistency: 0.3, Saturation: 0.3}
	got := Confidence(1, 1, 1, w)
	if got != 1 {
		t.Fatalf("Confidence(1,1,1) = %v, want 1", got)
	}
	got = Confidence(0, 0, 0, w)
	if got != 0 {
		t.Fatalf("Confidence(0,0,0) = %v, want 0", got)
	}
}

func TestSaturationClampsAndHandlesEmpty(t *testing.T) {
	if s := Saturation(nil); s != 0 {
		t.Fatalf("Saturation(nil) = %v, want 0", s)
	}
	// last gain much smaller than average => high saturation
	if s := Saturation([]float64{1, 1, 1, 0.01}); s < 0.9 {
		t.Fatalf("expected high saturation for diminishing last gain, got %v", s)
	}
	// last gain equal to average => zero saturation
	if s := Saturation([]float64{1, 1, 1}); s != 0 {
		t.Fatalf("expected 0 saturation for steady gains, got %v", s)
	}
}

// fakeBackend reports deterministic coverage/consistency and scores
// similarity by substring containment, avoiding any BM25 noise in the
// loop-control test below.
type fakeBackend struct {
	coverageByPageCount map[int]float64
}

func (f *fakeBackend) Coverage(ctx context.Context, state KnowledgeState) (float64, error) {
	return f.coverageByPageCount[len(state.Passages)], nil
}

func (f *fakeBackend) Consistency(ctx context.Context, state KnowledgeState, topK int) (float64, error) {
	return 1, nil
}

func (f *fakeBackend) Similarity(ctx context.Context, query, text string) (float64, error) {
	if text == query {
		return 1, nil
	}
	return 0.1, nil
}

func TestRunStopsAtConfidenceThreshold(t *testing.T) {
	backend := &fakeBackend{coverageByPageCount: map[int]float64{1: 0.5, 2: 1.0}}

	pages := map[string]crawlresult.CrawlResult{
		"https://a.test/1": {
			URL: "https://a.test/1", Success: true,
			Markdown: crawlresult.Markdown{FitMarkdown: "page one"},
			Links:    crawlresult.LinkSet{Internal: []crawlresult.Link{{Href: "https://a.test/2", Text: "page two"}}},
		},
		"https://a.test/2": {
			URL: "https://a.test/2", Success: true,
			Markdown: crawlresult.Markdown{FitMarkdown: "page two"},
		},
	}

	fetch := func(ctx context.Context, url string) (crawlresult.CrawlResult, error) {
		return pages[url], nil
	}

	result, err := Run(context.Background(), "https://a.test/1", fetch, Options{
		Query:               "q",
		MaxPages:            10,
		ConfidenceThreshold: 0.65,
		Backend:             backend,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.StoppedReason != "confidence_reached" {
		t.Fatalf("expected confidence_reached, got %q (confidence=%v, pages=%d)", result.StoppedReason, result.Confidence, result.PagesCrawled)
	}
	if result.PagesCrawled != 2 {
		t.Fatalf("expected 2 pages crawled before reaching confidence, got %d", result.PagesCrawled)
	}
}

func TestRunStopsAtMaxPages(t *testing.T) {
	backend := &fakeBackend{coverageByPageCount: map[int]float64{}}
	fetch := func(ctx context.Context, url string) (crawlresult.CrawlResult, error) {
		return crawlresult.CrawlResult{URL: url, Success: true}, nil
	}

	result, err := Run(context.Background(), "https://a.test/1", fetch, Options{
		Query:               "q",
		MaxPages:            1,
		ConfidenceThreshold: 2, // unreachable
		Backend:             backend,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.StoppedReason != "max_pages" {
		t.Fatalf("expected max_pages, got %q", result.StoppedReason)
	}
	if result.PagesCrawled != 1 {
		t.Fatalf("expected 1 page crawled, got %d", result.PagesCrawled)
	}
}
