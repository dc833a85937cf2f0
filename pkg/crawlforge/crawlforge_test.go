package crawlforge

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/crawlforge/crawlforge/internal/browserpool"
	"github.com/crawlforge/crawlforge/pkg/browserdriver"
	"github.com/crawlforge/crawlforge/pkg/cachestore"
)

func TestDefaultConfigAppliesOptions(t *testing.T) {
	cfg := DefaultConfig()
	for _, opt := range []Option{
		WithProvider("openai"),
		WithModel("gpt-4o"),
		WithAPIKey("key-123"),
		WithMaxRetries(7),
	} {
		opt(&cfg)
	}
	if cfg.Provider != "openai" || cfg.Model != "gpt-4o" || cfg.APIKey != "key-123" || cfg.MaxRetries != 7 {
		t.Fatalf("options did not apply: %+v", cfg)
	}
}

func TestCrawlerRunConfigCloneIsIndependent(t *testing.T) {
	orig := DefaultCrawlerRunConfig()
	orig.ExcludedTags = []string{"script", "style"}
	orig.Browser.ExtraArgs = []string{"--disable-gpu"}

	clone := orig.Clone()
	clone.ExcludedTags[0] = "mutated"
	clone.Browser.ExtraArgs[0] = "mutated"

	if orig.ExcludedTags[0] != "script" {
		t.Fatalf("mutating clone's ExcludedTags affected original: %v", orig.ExcludedTags)
	}
	if orig.Browser.ExtraArgs[0] != "--disable-gpu" {
		t.Fatalf("mutating clone's Browser.ExtraArgs affected original: %v", orig.Browser.ExtraArgs)
	}
}

func TestResolveRunConfigPicksFirstMatchThenFallback(t *testing.T) {
	fallback := []CrawlOption{WithTargetSelector("body")}
	matchers := []MatchConfig{
		{
			Matcher: func(url string) bool { return url == "https://a.test/product/1" },
			Options: []CrawlOption{WithTargetSelector(".product")},
		},
		{
			Matcher: func(url string) bool { return true },
			Options: []CrawlOption{WithTargetSelector(".catch-all")},
		},
	}

	productCfg := resolveRunConfig("https://a.test/product/1", fallback, matchers)
	if productCfg.TargetSelector != ".product" {
		t.Fatalf("expected .product selector, got %q", productCfg.TargetSelector)
	}

	otherCfg := resolveRunConfig("https://a.test/blog/1", fallback, matchers)
	if otherCfg.TargetSelector != ".catch-all" {
		t.Fatalf("expected catch-all selector from second matcher, got %q", otherCfg.TargetSelector)
	}

	noMatchCfg := resolveRunConfig("https://a.test/x", fallback, nil)
	if noMatchCfg.TargetSelector != "body" {
		t.Fatalf("expected fallback selector with no matchers, got %q", noMatchCfg.TargetSelector)
	}
}

// panicDriver fails the test if Launch is ever called, proving a cache
// hit short-circuits crawlOne before any browser checkout.
type panicDriver struct{ t *testing.T }

func (p panicDriver) Launch(ctx context.Context, opts browserdriver.LaunchOptions) (browserdriver.Instance, error) {
	p.t.Fatal("browser launched despite a cache hit")
	return nil, nil
}

func TestCrawlReturnsCachedResultWithoutLaunchingBrowser(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.db")
	cache, err := cachestore.Open(cachePath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	e := &Engine{
		cfg:   DefaultConfig(),
		cache: cache,
		fleet: browserpool.NewFleet(panicDriver{t: t}, browserpool.DefaultTierConfig()),
	}

	url := "https://a.test/cached"
	cfg := DefaultCrawlerRunConfig()
	fp := runConfigFingerprint(cfg)
	key := cachestore.Key(url, fp)
	if err := cache.Put(context.Background(), key, cachestore.Entry{
		URL:      url,
		HTML:     "<html><body>cached</body></html>",
		Markdown: "cached markdown",
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	result, err := e.crawlOne(context.Background(), url, cfg)
	if err != nil {
		t.Fatalf("crawlOne: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected cached crawl to report success")
	}
	if result.Markdown.FitMarkdown != "cached markdown" {
		t.Fatalf("expected cached markdown, got %q", result.Markdown.FitMarkdown)
	}
}

func TestRunConfigFingerprintDiffersByExtractionConcerns(t *testing.T) {
	base := DefaultCrawlerRunConfig()
	withSelector := base.Clone()
	withSelector.TargetSelector = ".article"

	if runConfigFingerprint(base) == runConfigFingerprint(withSelector) {
		t.Fatalf("expected fingerprints to differ when TargetSelector changes")
	}
	if runConfigFingerprint(base) != runConfigFingerprint(base.Clone()) {
		t.Fatalf("expected a clone with no changes to fingerprint identically")
	}
}
