package dispatch

import (
	"math/rand"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-host token bucket and its
// backoff behavior on 429/503/timeout, grounded on purify's
// api/middleware/ratelimit.go sync.Map-of-limiters idiom and spec.md
// §4.6's base/factor/max_delay backoff rule.
type RateLimitConfig struct {
	BaseDelayMin time.Duration
	BaseDelayMax time.Duration
	MaxDelay     time.Duration
	Factor       float64
	MaxRetries   int
}

// DefaultRateLimitConfig mirrors the crawl4ai-style defaults named in
// the specification.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		BaseDelayMin: 500 * time.Millisecond,
		BaseDelayMax: 1500 * time.Millisecond,
		MaxDelay:     60 * time.Second,
		Factor:       2.0,
		MaxRetries:   3,
	}
}

type hostLimiter struct {
	mu           sync.Mutex
	limiter      *rate.Limiter
	backoffDelay time.Duration
	lastSeen     time.Time
}

// hostLimiters tracks one token bucket + backoff state per host.
// evictStale can drop entries unused for an hour (purify's eviction
// idiom); Dispatcher.run builds a fresh hostLimiters per batch and does
// not call it.
type hostLimiters struct {
	cfg    RateLimitConfig
	mu     sync.Mutex
	byHost map[string]*hostLimiter
}

func newHostLimiters(cfg RateLimitConfig) *hostLimiters {
	return &hostLimiters{cfg: cfg, byHost: make(map[string]*hostLimiter)}
}

func (h *hostLimiters) get(rawURL string) *hostLimiter {
	host := hostOf(rawURL)

	h.mu.Lock()
	defer h.mu.Unlock()
	hl, ok := h.byHost[host]
	if !ok {
		hl = &hostLimiter{limiter: rate.NewLimiter(rate.Every(h.cfg.BaseDelayMin), 1)}
		h.byHost[host] = hl
	}
	hl.lastSeen = time.Now()
	return hl
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}

// evictStale drops hosts unseen for over an hour, bounding memory
// growth across long-running dispatchers.
func (h *hostLimiters) evictStale() {
	cutoff := time.Now().Add(-1 * time.Hour)
	h.mu.Lock()
	defer h.mu.Unlock()
	for host, hl := range h.byHost {
		hl.mu.Lock()
		stale := hl.lastSeen.Before(cutoff)
		hl.mu.Unlock()
		if stale {
			delete(h.byHost, host)
		}
	}
}

// baseDelay returns a randomized delay in [BaseDelayMin, BaseDelayMax],
// per spec.md's "randomized base delay" rule.
func (h *hostLimiters) baseDelay() time.Duration {
	lo, hi := h.cfg.BaseDelayMin, h.cfg.BaseDelayMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}

// recordLimited escalates the host's backoff delay after a 429/503 or
// transport timeout: delay = min(max_delay, prev*factor). The first
// hit treats base itself as prev, so two consecutive hits land on
// base*factor^2 rather than skipping a multiplication on the seed.
func (hl *hostLimiter) recordLimited(cfg RateLimitConfig, base time.Duration) time.Duration {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	if hl.backoffDelay == 0 {
		hl.backoffDelay = time.Duration(float64(base) * cfg.Factor)
	} else {
		hl.backoffDelay = time.Duration(float64(hl.backoffDelay) * cfg.Factor)
	}
	if hl.backoffDelay > cfg.MaxDelay {
		hl.backoffDelay = cfg.MaxDelay
	}
	return hl.backoffDelay
}

// recordSuccess resets backoff once a host responds cleanly again.
func (hl *hostLimiter) recordSuccess() {
	hl.mu.Lock()
	hl.backoffDelay = 0
	hl.mu.Unlock()
}

func (hl *hostLimiter) currentDelay() time.Duration {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	return hl.backoffDelay
}
