// Package browserpool implements the tiered Browser Fleet Manager
// (permanent / hot / cold), generalizing the teacher's single
// long-lived chromedp allocator (cmd/refyne/fetcher/dynamic.go) into a
// fingerprint-keyed pool with idle eviction and a single-flight launch
// lock so concurrent requests for the same browser shape collapse into
// one Launch call.
package browserpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/crawlforge/crawlforge/internal/logger"
	"github.com/crawlforge/crawlforge/pkg/browserdriver"
)

// Tier controls how long an idle browser is kept alive before eviction.
type Tier string

const (
	TierPermanent Tier = "permanent" // never evicted by the janitor
	TierHot       Tier = "hot"
	TierCold      Tier = "cold"
)

// TierConfig holds the idle thresholds for hot/cold tiers, plus the
// sliding-window promotion rule that moves a fingerprint from cold to
// hot once it's checked out PromoteAfter times within UsageWindow.
// Permanent browsers are never evicted regardless of this config.
type TierConfig struct {
	HotIdleTimeout  time.Duration
	ColdIdleTimeout time.Duration
	PromoteAfter    int
	UsageWindow     time.Duration
}

// DefaultTierConfig matches the defaults named in the specification.
func DefaultTierConfig() TierConfig {
	return TierConfig{
		HotIdleTimeout:  5 * time.Minute,
		ColdIdleTimeout: 30 * time.Second,
		PromoteAfter:    3,
		UsageWindow:     10 * time.Minute,
	}
}

// State is the lifecycle state machine position of a pooled browser.
type State string

const (
	StateLaunching State = "launching"
	StateReady     State = "ready"
	StateInUse     State = "in_use"
	StateIdle      State = "idle"
	StateCleanup   State = "cleanup"
	StateClosed    State = "closed"
)

type entry struct {
	mu         sync.Mutex
	instance   browserdriver.Instance
	tier       Tier
	state      State
	lastUsedAt time.Time
	checkouts  int
	recentUses []time.Time
}

// Fleet is the pool itself.
type Fleet struct {
	driver browserdriver.Driver
	cfg    TierConfig

	mu          sync.Mutex
	entries     map[string]*entry
	permanentFP string

	launchGroup singleflight.Group

	janitorStop chan struct{}
	janitorOnce sync.Once
}

// NewFleet builds a Fleet backed by driver.
func NewFleet(driver browserdriver.Driver, cfg TierConfig) *Fleet {
	return &Fleet{
		driver:      driver,
		cfg:         cfg,
		entries:     make(map[string]*entry),
		janitorStop: make(chan struct{}),
	}
}

// Checkout returns a ready browser instance for the given options,
// launching one if necessary. Concurrent Checkout calls for the same
// fingerprint collapse into a single Launch via singleflight. The tier
// is decided internally, never by the caller: a fingerprint matching
// SetPermanentConfig always gets the permanent browser; otherwise a
// fingerprint starts cold and is promoted to hot once it's been
// checked out cfg.PromoteAfter times within cfg.UsageWindow.
func (f *Fleet) Checkout(ctx context.Context, opts browserdriver.LaunchOptions) (browserdriver.Instance, string, error) {
	fp := Fingerprint(opts)

	f.mu.Lock()
	e, ok := f.entries[fp]
	if !ok {
		e = &entry{tier: f.initialTier(fp), state: StateLaunching}
		f.entries[fp] = e
	}
	f.mu.Unlock()

	e.mu.Lock()
	f.recordUse(e, fp)
	if e.instance != nil && e.state != StateClosed {
		e.state = StateInUse
		e.lastUsedAt = time.Now()
		e.checkouts++
		inst := e.instance
		e.mu.Unlock()
		return inst, fp, nil
	}
	e.mu.Unlock()

	result, err, _ := f.launchGroup.Do(fp, func() (any, error) {
		inst, launchErr := f.launchWithRetry(ctx, opts)
		if launchErr != nil {
			return nil, launchErr
		}
		return inst, nil
	})
	if err != nil {
		return nil, fp, fmt.Errorf("launch browser: %w", err)
	}

	inst := result.(browserdriver.Instance)

	e.mu.Lock()
	e.instance = inst
	e.state = StateInUse
	e.lastUsedAt = time.Now()
	e.checkouts++
	e.mu.Unlock()

	return inst, fp, nil
}

// SetPermanentConfig designates opts' fingerprint as the fleet's
// permanent tier, per §3's "single always-on browser launched with the
// default fingerprint; services requests whose config matches that
// fingerprint." Safe to call before or after the fingerprint has first
// been checked out.
func (f *Fleet) SetPermanentConfig(opts browserdriver.LaunchOptions) {
	fp := Fingerprint(opts)

	f.mu.Lock()
	f.permanentFP = fp
	e, ok := f.entries[fp]
	f.mu.Unlock()

	if ok {
		e.mu.Lock()
		e.tier = TierPermanent
		e.mu.Unlock()
	}
}

// initialTier decides the tier a newly-seen fingerprint starts at.
// Callers must hold f.mu.
func (f *Fleet) initialTier(fp string) Tier {
	if f.permanentFP != "" && fp == f.permanentFP {
		return TierPermanent
	}
	return TierCold
}

// recordUse tracks fp's checkout timestamps in a sliding window and
// promotes a cold entry to hot once it crosses cfg.PromoteAfter uses.
// Callers must hold e.mu.
func (f *Fleet) recordUse(e *entry, fp string) {
	if e.tier != TierCold {
		return
	}
	now := time.Now()
	window := f.cfg.UsageWindow
	if window <= 0 {
		window = DefaultTierConfig().UsageWindow
	}
	cutoff := now.Add(-window)

	kept := e.recentUses[:0]
	for _, t := range e.recentUses {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	e.recentUses = append(kept, now)

	if f.cfg.PromoteAfter > 0 && len(e.recentUses) >= f.cfg.PromoteAfter {
		e.tier = TierHot
		logger.Debug("browserpool: promoting fingerprint to hot tier", "fingerprint", fp, "uses", len(e.recentUses))
	}
}

// Return marks a checked-out browser idle again, eligible for reuse or
// later janitor eviction.
func (f *Fleet) Return(fingerprint string) {
	f.mu.Lock()
	e, ok := f.entries[fingerprint]
	f.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	if e.state != StateClosed {
		e.state = StateIdle
		e.lastUsedAt = time.Now()
	}
	e.mu.Unlock()
}

func (f *Fleet) launchWithRetry(ctx context.Context, opts browserdriver.LaunchOptions) (browserdriver.Instance, error) {
	var lastErr error
	backoffs := []time.Duration{0, time.Second, 2 * time.Second}
	for _, wait := range backoffs {
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		inst, err := f.driver.Launch(ctx, opts)
		if err == nil {
			return inst, nil
		}
		lastErr = err
		logger.Debug("browser launch attempt failed", "error", err, "wait", wait)
	}
	return nil, lastErr
}

// StartJanitor launches the background goroutine that evicts browsers
// idle past their tier's threshold. Permanent-tier browsers are never
// evicted. Safe to call once per Fleet.
func (f *Fleet) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				f.sweep()
			case <-f.janitorStop:
				return
			}
		}
	}()
}

// StopJanitor stops the background eviction goroutine, if running.
func (f *Fleet) StopJanitor() {
	f.janitorOnce.Do(func() { close(f.janitorStop) })
}

func (f *Fleet) sweep() {
	now := time.Now()
	f.mu.Lock()
	fingerprints := make([]string, 0, len(f.entries))
	for fp := range f.entries {
		fingerprints = append(fingerprints, fp)
	}
	f.mu.Unlock()

	for _, fp := range fingerprints {
		f.mu.Lock()
		e := f.entries[fp]
		f.mu.Unlock()

		e.mu.Lock()
		shouldEvict := e.state == StateIdle && e.tier != TierPermanent && idlePastThreshold(e, f.cfg, now)
		if shouldEvict {
			e.state = StateCleanup
		}
		inst := e.instance
		e.mu.Unlock()

		if !shouldEvict {
			continue
		}

		if inst != nil {
			if err := inst.Close(); err != nil {
				logger.Debug("error closing idle browser", "error", err)
			}
		}

		e.mu.Lock()
		e.state = StateClosed
		e.instance = nil
		e.mu.Unlock()

		f.mu.Lock()
		delete(f.entries, fp)
		f.mu.Unlock()
	}
}

func idlePastThreshold(e *entry, cfg TierConfig, now time.Time) bool {
	idleFor := now.Sub(e.lastUsedAt)
	switch e.tier {
	case TierHot:
		return idleFor > cfg.HotIdleTimeout
	case TierCold:
		return idleFor > cfg.ColdIdleTimeout
	default:
		return false
	}
}

// CloseAll force-closes every pooled browser, used for shutdown.
func (f *Fleet) CloseAll() error {
	f.mu.Lock()
	entries := make([]*entry, 0, len(f.entries))
	for _, e := range f.entries {
		entries = append(entries, e)
	}
	f.entries = make(map[string]*entry)
	f.mu.Unlock()

	var firstErr error
	for _, e := range entries {
		e.mu.Lock()
		inst := e.instance
		e.state = StateClosed
		e.instance = nil
		e.mu.Unlock()
		if inst != nil {
			if err := inst.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
