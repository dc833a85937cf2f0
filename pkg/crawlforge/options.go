// Package crawlforge is the public entry point of the crawling engine:
// Crawl/CrawlMany (dispatch a browser-driven crawl through the content
// pipeline and extraction strategies), Seed/DeepCrawl/AdaptiveCrawl
// (the URL discovery and traversal strategies), and the Config/Option
// functional-options surface that wires them together.
package crawlforge

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/crawlforge/crawlforge/internal/browserpool"
	"github.com/crawlforge/crawlforge/internal/logger"
	"github.com/crawlforge/crawlforge/pkg/browserdriver"
	"github.com/crawlforge/crawlforge/pkg/dispatch"
	"github.com/crawlforge/crawlforge/pkg/hooks"
	"github.com/crawlforge/crawlforge/pkg/httpcap"
	"github.com/crawlforge/crawlforge/pkg/llm"
	"github.com/crawlforge/crawlforge/pkg/llmcap"
)

// Chrome user agent for better compatibility with bot-protected sites.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config configures one Engine: the LLM provider backing the llm
// extraction strategy, the browser fleet/cache resource settings, and
// the dispatcher's concurrency/rate-limit defaults. Per-crawl behavior
// (selectors, wait conditions, extraction strategy) lives in
// CrawlerRunConfig instead, matching the Engine-vs-per-crawl split
// spec.md draws between BrowserConfig and CrawlerRunConfig.
type Config struct {
	// LLM settings, used to build the llm extraction strategy's
	// provider unless LLMProvider is supplied directly.
	Provider string
	Model    string
	APIKey   string
	BaseURL  string

	// Scraping settings.
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int

	// Extraction settings.
	Temperature float64
	MaxTokens   int

	// Resource settings.
	CachePath       string // bbolt file path; "" disables the cache
	Tiers           browserpool.TierConfig
	JanitorInterval time.Duration
	Concurrency     dispatch.AdaptiveConcurrencyConfig
	RateLimit       dispatch.RateLimitConfig

	// Driver overrides the chromedp-backed default, letting callers
	// substitute a fake in tests or a stealth-configured driver.
	Driver browserdriver.Driver
	// HTTPClient overrides the stdlib-backed default used by the
	// seeder and robots.txt preflight.
	HTTPClient httpcap.Client
	// LLMProvider overrides Provider/APIKey construction with an
	// already-built capability (e.g. one wrapped for observability).
	LLMProvider llmcap.Provider
	// Hooks supplies the lifecycle hook registry consulted by
	// internal/pagesession; nil builds an empty Registry.
	Hooks *hooks.Registry
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:    "anthropic",
		UserAgent:   defaultUserAgent,
		Timeout:     60 * time.Second,
		MaxRetries:  3,
		Temperature: 0.1,
		MaxTokens:   4096,

		Tiers:           browserpool.DefaultTierConfig(),
		JanitorInterval: 10 * time.Second,
		Concurrency:     dispatch.DefaultAdaptiveConcurrencyConfig(),
		RateLimit:       dispatch.DefaultRateLimitConfig(),
	}
}

// Option configures an Engine.
type Option func(*Config)

// WithProvider sets the LLM provider.
func WithProvider(provider string) Option {
	return func(c *Config) { c.Provider = provider }
}

// WithModel sets the LLM model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL sets a custom API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithUserAgent sets the HTTP user agent.
func WithUserAgent(ua string) Option {
	return func(c *Config) { c.UserAgent = ua }
}

// WithTimeout sets the per-page navigation/request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithMaxRetries sets the maximum extraction/dispatch retry attempts.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithTemperature sets the LLM temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithMaxTokens sets the maximum output tokens for LLM responses.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithCachePath enables the content-addressed cache at path.
func WithCachePath(path string) Option {
	return func(c *Config) { c.CachePath = path }
}

// WithTierConfig overrides the browser fleet's hot/cold idle thresholds.
func WithTierConfig(t browserpool.TierConfig) Option {
	return func(c *Config) { c.Tiers = t }
}

// WithJanitorInterval overrides how often the fleet sweeps for idle browsers.
func WithJanitorInterval(d time.Duration) Option {
	return func(c *Config) { c.JanitorInterval = d }
}

// WithConcurrency overrides the dispatcher's memory-adaptive concurrency settings.
func WithConcurrency(cfg dispatch.AdaptiveConcurrencyConfig) Option {
	return func(c *Config) { c.Concurrency = cfg }
}

// WithRateLimit overrides the dispatcher's per-host rate limiting settings.
func WithRateLimit(cfg dispatch.RateLimitConfig) Option {
	return func(c *Config) { c.RateLimit = cfg }
}

// WithDriver injects a browser driver, letting the caller substitute a
// fake in tests or a stealth-configured chromedp allocator.
func WithDriver(d browserdriver.Driver) Option {
	return func(c *Config) { c.Driver = d }
}

// WithHTTPClient injects the capability used by the seeder and
// robots.txt preflight in place of the stdlib-backed default.
func WithHTTPClient(h httpcap.Client) Option {
	return func(c *Config) { c.HTTPClient = h }
}

// WithLLMProvider injects an already-built llmcap.Provider, overriding
// Provider/APIKey-based construction.
func WithLLMProvider(p llmcap.Provider) Option {
	return func(c *Config) { c.LLMProvider = p }
}

// WithHooks injects the lifecycle hook registry fired by page sessions.
func WithHooks(r *hooks.Registry) Option {
	return func(c *Config) { c.Hooks = r }
}

// FromEnv builds a Config from environment variables: the direct
// os.Getenv half of the teacher's viper env-binding idiom (file/flag
// layering is dropped, since a library with no CLI front-end has
// nothing to layer against).
func FromEnv() Config {
	cfg := DefaultConfig()

	// When the caller hasn't pinned a provider/key explicitly, fall back
	// to pkg/llm's env-key detection so "just set ANTHROPIC_API_KEY and
	// go" keeps working the way the teacher's CLI front-end did.
	if v := os.Getenv("CRAWLFORGE_PROVIDER"); v != "" {
		cfg.Provider = v
	} else if provider, apiKey := llm.DetectProvider(); provider != "" {
		cfg.Provider = provider
		if cfg.APIKey == "" {
			cfg.APIKey = apiKey
		}
	}
	if v := os.Getenv("CRAWLFORGE_MODEL"); v != "" {
		cfg.Model = v
	} else if cfg.Provider != "" {
		if model := llm.GetDefaultModel(cfg.Provider); model != "" {
			cfg.Model = model
		}
	}
	if v := os.Getenv("CRAWLFORGE_API_KEY"); v != "" {
		cfg.APIKey = v
	} else if cfg.APIKey == "" && llm.HasAPIKey(cfg.Provider) {
		if provider, apiKey := llm.DetectProvider(); provider == cfg.Provider {
			cfg.APIKey = apiKey
		}
	}
	if v := os.Getenv("CRAWLFORGE_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("CRAWLFORGE_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("CRAWLFORGE_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv("CRAWLFORGE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Timeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("CRAWLFORGE_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Concurrency.MaxConcurrency = n
		}
	}
	return cfg
}

// SetLogger sets a custom slog.Logger for the crawlforge library.
// This allows crawlforge logs to be integrated with your application's
// logging system. Call this once at application startup before
// creating any Engine.
func SetLogger(l *slog.Logger) {
	logger.SetLogger(l)
}

// SetDebugLogging enables or disables debug-level logging for the
// crawlforge library. This is a global setting that affects every
// Engine. Call this once at application startup.
func SetDebugLogging(enabled bool) {
	logger.Init(logger.Options{Debug: enabled})
}

// SetLogOutput configures the crawlforge logger output destination and
// format. Use this to redirect logs to a custom writer.
func SetLogOutput(output io.Writer, debug bool, jsonFormat bool) {
	logger.Init(logger.Options{
		Debug:  debug,
		JSON:   jsonFormat,
		Output: output,
	})
}
