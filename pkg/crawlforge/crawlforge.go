package crawlforge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/crawlforge/crawlforge/internal/browserpool"
	"github.com/crawlforge/crawlforge/internal/logger"
	"github.com/crawlforge/crawlforge/internal/pagesession"
	"github.com/crawlforge/crawlforge/internal/robotscache"
	"github.com/crawlforge/crawlforge/pkg/adaptive"
	"github.com/crawlforge/crawlforge/pkg/browserdriver"
	"github.com/crawlforge/crawlforge/pkg/cachestore"
	"github.com/crawlforge/crawlforge/pkg/crawlerr"
	"github.com/crawlforge/crawlforge/pkg/crawlresult"
	"github.com/crawlforge/crawlforge/pkg/deepcrawl"
	"github.com/crawlforge/crawlforge/pkg/dispatch"
	"github.com/crawlforge/crawlforge/pkg/hooks"
	"github.com/crawlforge/crawlforge/pkg/httpcap"
	"github.com/crawlforge/crawlforge/pkg/llm"
	"github.com/crawlforge/crawlforge/pkg/llmcap"
	"github.com/crawlforge/crawlforge/pkg/pipeline"
	"github.com/crawlforge/crawlforge/pkg/seeder"
)

// Version reports the module version, kept as a function (rather than
// a const) so a future build-info injection doesn't change the API.
func Version() string { return "0.1.0" }

// Engine is the crawling engine facade: a browser fleet, a session
// manager, an optional cache, and a dispatcher, wired together per
// Config and driven through Crawl/CrawlMany/Seed/DeepCrawl/AdaptiveCrawl.
type Engine struct {
	cfg Config

	fleet    *browserpool.Fleet
	sessions *pagesession.Manager
	cache    *cachestore.Store
	disp     *dispatch.Dispatcher
	hookReg  *hooks.Registry
	robots   *robotscache.Cache

	llmProvider llmcap.Provider
	httpClient  httpcap.Client
}

// New builds an Engine from opts, launching the browser fleet's
// janitor and opening the cache (if configured).
func New(opts ...Option) (*Engine, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	driver := cfg.Driver
	if driver == nil {
		driver = &browserpool.ChromeDriver{}
	}
	fleet := browserpool.NewFleet(driver, cfg.Tiers)
	fleet.SetPermanentConfig(browserdriver.LaunchOptions{
		Headless:  DefaultBrowserConfig().Headless,
		UserAgent: cfg.UserAgent,
		ViewportW: DefaultBrowserConfig().ViewportW,
		ViewportH: DefaultBrowserConfig().ViewportH,
	})
	fleet.StartJanitor(cfg.JanitorInterval)

	var cache *cachestore.Store
	if cfg.CachePath != "" {
		c, err := cachestore.Open(cfg.CachePath)
		if err != nil {
			fleet.StopJanitor()
			return nil, fmt.Errorf("open cache: %w", err)
		}
		cache = c
	}

	llmProvider := cfg.LLMProvider
	if llmProvider == nil && cfg.Provider != "" {
		p, err := llm.NewProvider(cfg.Provider, llm.ProviderConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			MaxRetries: cfg.MaxRetries,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			if cache != nil {
				cache.Close()
			}
			fleet.StopJanitor()
			return nil, fmt.Errorf("build llm provider: %w", err)
		}
		llmProvider = llmcap.AdaptProvider(p)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpcap.NewDefault(cfg.Timeout)
	}

	hookReg := cfg.Hooks
	if hookReg == nil {
		hookReg = hooks.NewRegistry()
	}

	return &Engine{
		cfg:         cfg,
		fleet:       fleet,
		sessions:    pagesession.NewManager(),
		cache:       cache,
		disp:        dispatch.New(dispatch.Options{Concurrency: cfg.Concurrency, RateLimit: cfg.RateLimit}),
		hookReg:     hookReg,
		robots:      robotscache.New(httpClient),
		llmProvider: llmProvider,
		httpClient:  httpClient,
	}, nil
}

// Close releases the browser fleet and cache. Safe to call once.
func (e *Engine) Close() error {
	e.fleet.StopJanitor()
	err := e.fleet.CloseAll()
	if e.cache != nil {
		if cerr := e.cache.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// LLMProvider returns the engine's configured LLM capability, for
// callers building their own pkg/extract/llmstrat.Strategy or
// pkg/filter.LLMFilter against the same provider the engine uses.
func (e *Engine) LLMProvider() llmcap.Provider { return e.llmProvider }

// Crawl performs the single-URL `crawl(url, CrawlerRunConfig) ->
// CrawlResult` operation of §4.6: checkout a browser, run the page
// session pipeline, run the content pipeline, run the extraction
// strategy (if any), and consult the cache — exactly the TaskFunc the
// dispatcher also drives in CrawlMany.
func (e *Engine) Crawl(ctx context.Context, url string, opts ...CrawlOption) (*crawlresult.CrawlResult, error) {
	cfg := DefaultCrawlerRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	result, err := e.crawlOne(ctx, url, cfg)
	return &result, err
}

// CrawlMany dispatches `crawl` across urls under the engine's
// memory-adaptive, per-host rate-limited dispatcher (§4.6), resolving
// each URL's CrawlerRunConfig against matchers in order with fallback
// as the trailing default.
func (e *Engine) CrawlMany(ctx context.Context, urls []string, fallback []CrawlOption, matchers []MatchConfig) ([]crawlresult.CrawlResult, crawlresult.DispatchResult) {
	task := func(ctx context.Context, url string) (crawlresult.CrawlResult, error) {
		cfg := resolveRunConfig(url, fallback, matchers)
		return e.crawlOne(ctx, url, cfg)
	}
	return e.disp.Collect(ctx, urls, task)
}

// StreamMany is CrawlMany's streaming sibling: results are forwarded
// as soon as each URL finishes rather than resequenced to submission
// order, per §4.6's stream=true mode.
func (e *Engine) StreamMany(ctx context.Context, urls []string, fallback []CrawlOption, matchers []MatchConfig) (<-chan crawlresult.CrawlResult, *dispatch.Batch) {
	task := func(ctx context.Context, url string) (crawlresult.CrawlResult, error) {
		cfg := resolveRunConfig(url, fallback, matchers)
		return e.crawlOne(ctx, url, cfg)
	}
	return e.disp.Stream(ctx, urls, task)
}

// DeepCrawl traverses from seeds using pkg/deepcrawl, generating each
// page's CrawlerRunConfig from opts/cfg.DeepCrawl and crawling each
// discovered URL through the same single-URL path Crawl uses.
func (e *Engine) DeepCrawl(ctx context.Context, seeds []string, opts ...CrawlOption) <-chan crawlresult.CrawlResult {
	cfg := DefaultCrawlerRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	dcOpts := deepcrawl.Options{Strategy: deepcrawl.StrategyBFS, MaxDepth: 1, MaxPages: 100}
	if cfg.DeepCrawl != nil {
		dcOpts = *cfg.DeepCrawl
	}

	crawlFunc := func(ctx context.Context, url string, depth int) (crawlresult.CrawlResult, error) {
		perPage := cfg.Clone()
		return e.crawlOne(ctx, url, perPage)
	}

	c := deepcrawl.New(dcOpts, crawlFunc)
	return c.Run(ctx, seeds)
}

// AdaptiveCrawl runs the information-foraging loop of §4.10 starting
// from start, stopping once opts.ConfidenceThreshold is reached or a
// limit is hit. Each fetch goes through Crawl with runOpts applied.
func (e *Engine) AdaptiveCrawl(ctx context.Context, start string, query string, adaptiveOpts adaptive.Options, runOpts ...CrawlOption) (adaptive.Result, error) {
	adaptiveOpts.Query = query
	if adaptiveOpts.Backend == nil {
		adaptiveOpts.Backend = adaptive.StatisticalBackend{}
	}
	fetch := func(ctx context.Context, url string) (crawlresult.CrawlResult, error) {
		cfg := DefaultCrawlerRunConfig()
		for _, opt := range runOpts {
			opt(&cfg)
		}
		return e.crawlOne(ctx, url, cfg)
	}
	return adaptive.Run(ctx, start, fetch, adaptiveOpts)
}

// Seed discovers candidate URLs for a domain via pkg/seeder, reusing
// the engine's HTTP capability.
func (e *Engine) Seed(ctx context.Context, opts seeder.Options) ([]seeder.Candidate, error) {
	if opts.Client == nil {
		opts.Client = e.httpClient
	}
	return seeder.New(opts).Seed(ctx)
}

// crawlOne is the `crawl(url, cfg)` primitive of §4.6/§5: cache
// lookup, browser fleet checkout, page session run, content pipeline,
// extraction strategy, cache write. It is the TaskFunc the dispatcher
// drives and the CrawlFunc pkg/deepcrawl drives, so every traversal
// mode in the engine shares this one code path.
func (e *Engine) crawlOne(ctx context.Context, url string, cfg CrawlerRunConfig) (crawlresult.CrawlResult, error) {
	started := time.Now()
	resultURL := url
	if strings.HasPrefix(url, "raw:") {
		resultURL = "Raw HTML"
	}
	result := crawlresult.CrawlResult{URL: resultURL, FetchStartedAt: started, SessionID: cfg.SessionID}

	fp := runConfigFingerprint(cfg)
	cacheKey := cachestore.Key(url, fp)

	if cfg.CacheMode == cachestore.ModeEnabled || cfg.CacheMode == cachestore.ModeReadOnly {
		if e.cache != nil {
			if entry, ok, err := e.cache.Get(ctx, cacheKey); err == nil && ok {
				return resultFromCacheEntry(resultURL, entry), nil
			}
		}
	}

	pageResult, fingerprint, err := e.runPageSession(ctx, url, cfg)
	result.FetchFinishedAt = time.Now()
	result.FetchDuration = result.FetchFinishedAt.Sub(started)
	if fingerprint != "" {
		defer e.fleet.Return(fingerprint)
	}
	if err != nil {
		result.Success = false
		result.ErrorMessage = err.Error()
		result.StatusCode = pageResult.StatusCode
		if kind, ok := crawlerr.KindOf(err); ok {
			result.ErrorCategory = string(kind)
		}
		return result, err
	}

	result.RedirectedURL = pageResult.FinalURL
	result.StatusCode = pageResult.StatusCode
	result.HTML = pageResult.HTML
	result.JSExecutionResult = pageResult.JSExecutionResult
	result.Warnings = append(result.Warnings, pageResult.Warnings...)
	if pageResult.Screenshot != nil {
		result.Screenshot = &crawlresult.Binary{Data: pageResult.Screenshot}
	}
	if pageResult.PDF != nil {
		result.PDF = &crawlresult.Binary{Data: pageResult.PDF}
	}
	if pageResult.MHTML != nil {
		result.MHTML = &crawlresult.Binary{Data: pageResult.MHTML}
	}
	if pageResult.DebugScreenshot != nil {
		result.DebugScreenshot = &crawlresult.Binary{Data: pageResult.DebugScreenshot}
	}

	baseURL := result.RedirectedURL
	if baseURL == "" {
		baseURL = url
	}

	out, err := pipeline.Run(ctx, pageResult.HTML, pipeline.Options{
		BaseURL:        baseURL,
		TargetSelector: cfg.TargetSelector,
		ExcludedTags:   cfg.ExcludedTags,
		Filters:        cfg.Filters,
		Citations:      cfg.Citations,
	})
	if err != nil {
		result.Success = false
		result.ErrorMessage = err.Error()
		result.ErrorCategory = string(crawlerr.KindExtraction)
		return result, err
	}
	result.CleanedHTML = out.CleanedHTML
	result.Markdown = out.Markdown
	result.Links = out.Links
	result.Media = out.Media
	result.Tables = out.Tables
	result.Success = true

	if cfg.Strategy != nil {
		extractStart := time.Now()
		content := out.Markdown.FitMarkdown
		if content == "" {
			content = out.Markdown.RawMarkdown
		}
		data, extractErr := cfg.Strategy.Extract(ctx, content)
		result.ExtractDuration = time.Since(extractStart)
		if extractErr != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("extraction failed: %v", extractErr))
			result.ExtractedData = map[string]any{"error": extractErr.Error()}
		} else {
			result.ExtractedData = data
		}
	}

	if cfg.CacheMode == cachestore.ModeEnabled || cfg.CacheMode == cachestore.ModeWriteOnly {
		if e.cache != nil && result.Success {
			e.writeCache(ctx, cacheKey, url, result)
		}
	}

	return result, nil
}

func (e *Engine) writeCache(ctx context.Context, key, url string, result crawlresult.CrawlResult) {
	extracted, _ := json.Marshal(result.ExtractedData)
	entry := cachestore.Entry{
		URL:           url,
		HTML:          result.HTML,
		CleanedHTML:   result.CleanedHTML,
		Markdown:      result.Markdown.FitMarkdown,
		ExtractedJSON: extracted,
	}
	if err := e.cache.Put(ctx, key, entry); err != nil {
		logger.Debug("cache write failed", "url", url, "error", err)
	}
}

func resultFromCacheEntry(url string, entry cachestore.Entry) crawlresult.CrawlResult {
	result := crawlresult.CrawlResult{
		URL:         url,
		Success:     true,
		HTML:        entry.HTML,
		CleanedHTML: entry.CleanedHTML,
		Markdown:    crawlresult.Markdown{FitMarkdown: entry.Markdown},
	}
	if len(entry.ExtractedJSON) > 0 {
		var data any
		if err := json.Unmarshal(entry.ExtractedJSON, &data); err == nil {
			result.ExtractedData = data
		}
	}
	return result
}

// runPageSession checks out a browser for cfg.Browser, runs the fixed
// 9-step page session pipeline, and returns the browser's fingerprint
// so the caller can Return it to the fleet.
func (e *Engine) runPageSession(ctx context.Context, url string, cfg CrawlerRunConfig) (pagesession.Result, string, error) {
	launchOpts := browserdriver.LaunchOptions{
		Headless:   cfg.Browser.Headless,
		Proxy:      cfg.Browser.Proxy,
		UserAgent:  firstNonEmpty(cfg.Browser.UserAgent, e.cfg.UserAgent),
		ViewportW:  cfg.Browser.ViewportW,
		ViewportH:  cfg.Browser.ViewportH,
		ExtraArgs:  cfg.Browser.ExtraArgs,
		Persistent: cfg.Browser.Persistent,
	}

	inst, fingerprint, err := e.fleet.Checkout(ctx, launchOpts)
	if err != nil {
		return pagesession.Result{}, "", crawlerr.New(crawlerr.KindBrowserLaunch, url, "browser checkout failed", err)
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = fingerprint + ":" + url
	}

	sess, err := e.sessions.GetOrCreate(sessionID, func() (*pagesession.Session, error) {
		pageCtx, pageErr := inst.NewPage(ctx)
		if pageErr != nil {
			return nil, pageErr
		}
		return pagesession.New(sessionID, pageCtx, func() {}, e.hookReg), nil
	})
	if err != nil {
		return pagesession.Result{}, fingerprint, crawlerr.New(crawlerr.KindBrowserLaunch, url, "page creation failed", err)
	}

	pageTimeout := cfg.PageTimeout
	if pageTimeout <= 0 {
		pageTimeout = e.cfg.Timeout
	}

	result, err := sess.Run(ctx, pagesession.Options{
		URL:            url,
		JS:             cfg.JS,
		ScrollToBottom: cfg.ScrollToBottom,
		WaitFor:        cfg.WaitFor,
		Screenshot:     cfg.Screenshot,
		PDF:            cfg.PDF,
		MHTML:          cfg.MHTML,
		PageTimeout:    pageTimeout,
		CaptureOnError: cfg.CaptureOnError,
		CheckRobotsTxt: cfg.CheckRobotsTxt,
		Robots:         e.robots,
	})

	if cfg.SessionID == "" {
		e.sessions.Close(sessionID)
	}

	return result, fingerprint, err
}

// runConfigFingerprint hashes the subset of a CrawlerRunConfig that
// affects fetched/extracted content, for use as the cache key's config
// component per §4.7.
func runConfigFingerprint(cfg CrawlerRunConfig) string {
	type canonical struct {
		TargetSelector string
		ExcludedTags   []string
		Citations      bool
		JS             []string
		ScrollToBottom bool
		ExtractorName  string
		CheckRobotsTxt bool
	}
	c := canonical{
		TargetSelector: cfg.TargetSelector,
		ExcludedTags:   cfg.ExcludedTags,
		Citations:      cfg.Citations,
		JS:             cfg.JS,
		ScrollToBottom: cfg.ScrollToBottom,
		CheckRobotsTxt: cfg.CheckRobotsTxt,
	}
	if cfg.Strategy != nil {
		c.ExtractorName = cfg.Strategy.Name()
	}
	raw, _ := json.Marshal(c)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
