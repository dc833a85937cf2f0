package crawlforge

import (
	"time"

	"github.com/crawlforge/crawlforge/internal/pagesession"
	"github.com/crawlforge/crawlforge/pkg/cachestore"
	"github.com/crawlforge/crawlforge/pkg/deepcrawl"
	"github.com/crawlforge/crawlforge/pkg/extract"
	"github.com/crawlforge/crawlforge/pkg/filter"
)

// BrowserConfig is the environment a browser is launched with (§3),
// hashed to a fingerprint by internal/browserpool so two crawls
// wanting the same shape of browser share one pooled instance.
type BrowserConfig struct {
	Headless   bool
	Proxy      string
	UserAgent  string
	ViewportW  int
	ViewportH  int
	ExtraArgs  []string
	Persistent bool
}

// DefaultBrowserConfig is a headless 1280x800 browser with no proxy and
// no user agent of its own (crawls then use the engine's
// Config.UserAgent). Tier is decided by internal/browserpool.Fleet itself (fingerprint
// match to its permanent config, then sliding-window use-count
// promotion), never by the caller.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:  true,
		ViewportW: 1280,
		ViewportH: 800,
	}
}

// Clone returns a deep-enough copy for the immutability invariant (a):
// a CrawlerRunConfig is never mutated after a crawl begins.
func (b BrowserConfig) Clone() BrowserConfig {
	out := b
	out.ExtraArgs = append([]string(nil), b.ExtraArgs...)
	return out
}

// CrawlerRunConfig is the per-crawl behavior config of §3: the
// pagesession.Options fields plus the pipeline/extraction/dispatch
// knobs layered on top. Immutable once a crawl begins; Clone supports
// invariant (a) and Testable Property 2.
type CrawlerRunConfig struct {
	Browser BrowserConfig

	// Page session behavior (internal/pagesession.Options).
	JS             []string
	ScrollToBottom bool
	WaitFor        []pagesession.WaitFor
	Screenshot     bool
	PDF            bool
	MHTML          bool
	PageTimeout    time.Duration
	CaptureOnError bool
	SessionID      string
	CheckRobotsTxt bool

	// Content pipeline (pkg/pipeline.Options).
	TargetSelector string
	ExcludedTags   []string
	Filters        filter.Chain
	Citations      bool

	// Extraction (pkg/extract.Strategy — nil skips structured extraction).
	Strategy extract.Strategy

	// Cache.
	CacheMode cachestore.Mode

	// Deep crawl, consulted by Engine.DeepCrawl; nil means the caller
	// is driving traversal themselves via Crawl/CrawlMany.
	DeepCrawl *deepcrawl.Options
}

// DefaultCrawlerRunConfig matches the fixed pipeline's documented defaults.
func DefaultCrawlerRunConfig() CrawlerRunConfig {
	return CrawlerRunConfig{
		Browser:     DefaultBrowserConfig(),
		PageTimeout: 60 * time.Second,
		CacheMode:   cachestore.ModeEnabled,
	}
}

// Clone returns a copy safe to mutate without affecting the original,
// satisfying invariant (a) for callers building variants via
// MatchConfig.
func (c CrawlerRunConfig) Clone() CrawlerRunConfig {
	out := c
	out.Browser = c.Browser.Clone()
	out.JS = append([]string(nil), c.JS...)
	out.WaitFor = append([]pagesession.WaitFor(nil), c.WaitFor...)
	out.ExcludedTags = append([]string(nil), c.ExcludedTags...)
	out.Filters = filter.Chain{Filters: append([]filter.Filter(nil), c.Filters.Filters...)}
	return out
}

// CrawlOption configures a CrawlerRunConfig.
type CrawlOption func(*CrawlerRunConfig)

func WithBrowserConfig(b BrowserConfig) CrawlOption {
	return func(c *CrawlerRunConfig) { c.Browser = b }
}
func WithJS(scripts ...string) CrawlOption {
	return func(c *CrawlerRunConfig) { c.JS = scripts }
}
func WithScrollToBottom(enabled bool) CrawlOption {
	return func(c *CrawlerRunConfig) { c.ScrollToBottom = enabled }
}
func WithWaitFor(w ...pagesession.WaitFor) CrawlOption {
	return func(c *CrawlerRunConfig) { c.WaitFor = w }
}
func WithScreenshot(enabled bool) CrawlOption {
	return func(c *CrawlerRunConfig) { c.Screenshot = enabled }
}
func WithPDF(enabled bool) CrawlOption {
	return func(c *CrawlerRunConfig) { c.PDF = enabled }
}
func WithMHTML(enabled bool) CrawlOption {
	return func(c *CrawlerRunConfig) { c.MHTML = enabled }
}
func WithPageTimeout(d time.Duration) CrawlOption {
	return func(c *CrawlerRunConfig) { c.PageTimeout = d }
}
func WithCaptureOnError(enabled bool) CrawlOption {
	return func(c *CrawlerRunConfig) { c.CaptureOnError = enabled }
}
func WithSessionID(id string) CrawlOption {
	return func(c *CrawlerRunConfig) { c.SessionID = id }
}
func WithCheckRobotsTxt(enabled bool) CrawlOption {
	return func(c *CrawlerRunConfig) { c.CheckRobotsTxt = enabled }
}
func WithTargetSelector(selector string) CrawlOption {
	return func(c *CrawlerRunConfig) { c.TargetSelector = selector }
}
func WithExcludedTags(tags ...string) CrawlOption {
	return func(c *CrawlerRunConfig) { c.ExcludedTags = tags }
}
func WithFilters(chain filter.Chain) CrawlOption {
	return func(c *CrawlerRunConfig) { c.Filters = chain }
}
func WithCitations(enabled bool) CrawlOption {
	return func(c *CrawlerRunConfig) { c.Citations = enabled }
}
func WithStrategy(s extract.Strategy) CrawlOption {
	return func(c *CrawlerRunConfig) { c.Strategy = s }
}
func WithCacheMode(m cachestore.Mode) CrawlOption {
	return func(c *CrawlerRunConfig) { c.CacheMode = m }
}
func WithDeepCrawlOptions(opts deepcrawl.Options) CrawlOption {
	return func(c *CrawlerRunConfig) { c.DeepCrawl = &opts }
}

// MatchConfig pairs a URL predicate with the options that apply when
// it matches, evaluated in order with a trailing unmatched-default
// config — generalizing the teacher's FallbackExtractor/
// PipelineExtractor "try in order" idiom from extractors to whole
// per-crawl configs, so CrawlMany can e.g. apply a product-page schema
// to /product/ URLs and a blog schema to everything else.
type MatchConfig struct {
	Matcher func(url string) bool
	Options []CrawlOption
}

// resolveRunConfig applies fallback, then the options of the first
// matching MatchConfig (if any), in order.
func resolveRunConfig(url string, fallback []CrawlOption, matchers []MatchConfig) CrawlerRunConfig {
	cfg := DefaultCrawlerRunConfig()
	for _, opt := range fallback {
		opt(&cfg)
	}
	for _, m := range matchers {
		if m.Matcher != nil && m.Matcher(url) {
			for _, opt := range m.Options {
				opt(&cfg)
			}
			break
		}
	}
	return cfg
}
