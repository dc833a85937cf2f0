package filter

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/crawlforge/crawlforge/pkg/llmcap"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestPruningFilterRemovesLinkHeavyBlocks(t *testing.T) {
	html := `<html><body>
		<p>` + strings.Repeat("substantive editorial content about go crawlers. ", 10) + `</p>
		<div><a href="/1">link</a> <a href="/2">link</a> <a href="/3">link</a></div>
	</body></html>`
	doc := parse(t, html)

	f := DefaultPruningFilter()
	if err := f.Apply(context.Background(), doc); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if doc.Find("p").Length() == 0 {
		t.Fatalf("expected the substantive paragraph to survive")
	}
	remaining := strings.TrimSpace(doc.Find("div").Text())
	if remaining != "" {
		t.Fatalf("expected the link-heavy div to be removed, got %q", remaining)
	}
}

func TestBM25FilterKeepsOnlyRelevantBlocks(t *testing.T) {
	html := `<html><body>
		<p>golang concurrency patterns for building crawlers and schedulers at scale</p>
		<p>a recipe for banana bread with flour sugar and butter</p>
	</body></html>`
	doc := parse(t, html)

	f := NewBM25Filter("golang concurrency crawler", 0.1)
	if err := f.Apply(context.Background(), doc); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	text := doc.Text()
	if !strings.Contains(text, "concurrency") {
		t.Fatalf("expected the relevant paragraph to survive, got %q", text)
	}
	if strings.Contains(text, "banana bread") {
		t.Fatalf("expected the irrelevant paragraph to be removed, got %q", text)
	}
}

type fakeProvider struct {
	response string
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Complete(ctx context.Context, req llmcap.Request) (llmcap.Response, error) {
	return llmcap.Response{Content: f.response}, nil
}

func TestLLMFilterKeepsOnlyIndicesTheProviderReturns(t *testing.T) {
	html := `<html><body><p>keep me</p><p>drop me</p></body></html>`
	doc := parse(t, html)

	f := NewLLMFilter(&fakeProvider{response: "0"}, "keep only the important block")
	if err := f.Apply(context.Background(), doc); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	text := doc.Text()
	if !strings.Contains(text, "keep me") {
		t.Fatalf("expected kept block to survive, got %q", text)
	}
	if strings.Contains(text, "drop me") {
		t.Fatalf("expected dropped block to be removed, got %q", text)
	}
}
