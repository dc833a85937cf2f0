// Package dispatch generalizes internal/crawler.Crawler's fixed
// semaphore+WaitGroup loop into a memory-adaptive, per-host
// rate-limited dispatcher: one goroutine per CrawlMany call drives the
// whole batch, streaming results as they finish or resequencing them
// into submission order, per spec.md §4.6.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/crawlforge/crawlforge/internal/logger"
	"github.com/crawlforge/crawlforge/pkg/crawlerr"
	"github.com/crawlforge/crawlforge/pkg/crawlresult"
)

// TaskFunc performs the actual per-URL crawl (browser fleet checkout,
// page session run, content pipeline, extraction, cache write) and
// returns the CrawlResult that Dispatcher attaches accounting to.
type TaskFunc func(ctx context.Context, url string) (crawlresult.CrawlResult, error)

// Options configures one Dispatcher.
type Options struct {
	Concurrency AdaptiveConcurrencyConfig
	RateLimit   RateLimitConfig
}

func DefaultOptions() Options {
	return Options{
		Concurrency: DefaultAdaptiveConcurrencyConfig(),
		RateLimit:   DefaultRateLimitConfig(),
	}
}

// Dispatcher runs batches of TaskFunc invocations under a
// memory-adaptive concurrency cap and per-host rate limiting.
type Dispatcher struct {
	opts Options
}

func New(opts Options) *Dispatcher {
	if opts.Concurrency.MaxConcurrency < 1 {
		opts.Concurrency = DefaultAdaptiveConcurrencyConfig()
	}
	return &Dispatcher{opts: opts}
}

// Batch is the handle returned by Enqueue: a running (or finished)
// CrawlMany call that can be polled instead of consumed as a channel,
// mirroring the crawl4ai-cloud-sdk's CrawlJob polling shape.
type Batch struct {
	mu      sync.Mutex
	results []crawlresult.CrawlResult
	agg     crawlresult.DispatchResult
	done    bool
}

// Snapshot returns the results collected so far and the current
// aggregate accounting, safe to call while the batch is still running.
func (b *Batch) Snapshot() ([]crawlresult.CrawlResult, crawlresult.DispatchResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]crawlresult.CrawlResult, len(b.results))
	copy(out, b.results)
	return out, b.agg
}

// Done reports whether every submitted URL has finished.
func (b *Batch) Done() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

func (b *Batch) record(r crawlresult.CrawlResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results = append(b.results, r)
	if r.Success {
		b.agg.Completed++
	} else {
		b.agg.Failed++
	}
	b.agg.TotalTokensInput += r.TokenUsage.InputTokens
	b.agg.TotalTokensOutput += r.TokenUsage.OutputTokens
	b.agg.TotalCostUSD += r.CostUSD
}

func (b *Batch) addRateLimitHits(n int) {
	if n == 0 {
		return
	}
	b.mu.Lock()
	b.agg.RateLimitHits += n
	b.mu.Unlock()
}

func (b *Batch) finish(peak int, stoppedEarly bool, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.agg.PeakConcurrency = peak
	b.agg.FinishedAt = time.Now()
	b.agg.StoppedEarly = stoppedEarly
	b.agg.StopReason = reason
	b.done = true
}

// Enqueue starts a batch in the background and returns immediately
// with a Batch handle to Poll (via Snapshot) or Wait on.
func (d *Dispatcher) Enqueue(ctx context.Context, urls []string, task TaskFunc) *Batch {
	b := &Batch{agg: crawlresult.DispatchResult{Submitted: len(urls), SubmittedAt: time.Now()}}
	go d.run(ctx, urls, task, b, nil)
	return b
}

// Wait blocks until the batch finishes, returning its final results
// in completion order (not resequenced; each result's TaskID carries
// its submission index) and the aggregate accounting.
func (b *Batch) Wait() ([]crawlresult.CrawlResult, crawlresult.DispatchResult) {
	for {
		b.mu.Lock()
		done := b.done
		b.mu.Unlock()
		if done {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	return b.Snapshot()
}

// Collect runs the batch to completion and returns results resequenced
// into submission order ("stream=false" per spec.md §4.6).
func (d *Dispatcher) Collect(ctx context.Context, urls []string, task TaskFunc) ([]crawlresult.CrawlResult, crawlresult.DispatchResult) {
	ordered := make([]crawlresult.CrawlResult, len(urls))
	b := &Batch{agg: crawlresult.DispatchResult{Submitted: len(urls), SubmittedAt: time.Now()}}
	indexed := make(chan indexedResult, len(urls))
	d.run(ctx, urls, task, b, indexed)
	for ir := range indexed {
		ordered[ir.index] = ir.result
	}
	_, agg := b.Snapshot()
	return ordered, agg
}

// Stream runs the batch to completion, forwarding each result on the
// returned channel as soon as it finishes ("stream=true"; completion
// order, not submission order). The Batch handle gives aggregate
// accounting once draining the channel completes.
func (d *Dispatcher) Stream(ctx context.Context, urls []string, task TaskFunc) (<-chan crawlresult.CrawlResult, *Batch) {
	b := &Batch{agg: crawlresult.DispatchResult{Submitted: len(urls), SubmittedAt: time.Now()}}
	out := make(chan crawlresult.CrawlResult, len(urls))
	indexed := make(chan indexedResult, len(urls))

	go func() {
		defer close(out)
		for ir := range indexed {
			out <- ir.result
		}
	}()
	go d.run(ctx, urls, task, b, indexed)

	return out, b
}

type indexedResult struct {
	index  int
	result crawlresult.CrawlResult
}

// run drives one batch: adaptive semaphore + per-host rate limiter,
// one goroutine per URL, feeding b and (optionally) indexed.
func (d *Dispatcher) run(ctx context.Context, urls []string, task TaskFunc, b *Batch, indexed chan indexedResult) {
	if indexed != nil {
		defer close(indexed)
	}

	b.mu.Lock()
	b.agg.StartedAt = time.Now()
	b.mu.Unlock()

	sem := newAdaptiveSemaphore(d.opts.Concurrency.MaxConcurrency)
	limiters := newHostLimiters(d.opts.RateLimit)
	stop := make(chan struct{})
	if d.opts.Concurrency.TickInterval > 0 && d.opts.Concurrency.Sampler != nil {
		go runAdaptiveLoop(d.opts.Concurrency, sem, stop)
	}
	defer close(stop)

	var wg sync.WaitGroup
	stoppedEarly := false
	stopReason := ""

	for i, u := range urls {
		if ctx.Err() != nil {
			stoppedEarly = true
			stopReason = "context cancelled"
			break
		}
		if !sem.Acquire(ctx.Done()) {
			stoppedEarly = true
			stopReason = "context cancelled"
			break
		}

		wg.Add(1)
		go func(idx int, url string) {
			defer wg.Done()
			defer sem.Release()

			result, hits := d.runTask(ctx, url, task, limiters)
			result.TaskID = fmt.Sprintf("task-%d", idx)

			b.record(result)
			b.addRateLimitHits(hits)
			if indexed != nil {
				indexed <- indexedResult{index: idx, result: result}
			}
		}(i, u)
	}
	wg.Wait()

	b.finish(sem.Peak(), stoppedEarly, stopReason)
}

// runTask applies per-host rate limiting and retries
// NavigationError/RateLimited per spec.md's propagation policy,
// returning the final CrawlResult plus the number of rate-limit hits
// observed for this URL.
func (d *Dispatcher) runTask(ctx context.Context, url string, task TaskFunc, limiters *hostLimiters) (crawlresult.CrawlResult, int) {
	hl := limiters.get(url)
	maxRetries := d.opts.RateLimit.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var result crawlresult.CrawlResult
	var err error
	rateLimitHits := 0

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := waitWithContext(ctx, limiters.baseDelay()+hl.currentDelay()); err != nil {
			result.Success = false
			result.ErrorMessage = err.Error()
			return result, rateLimitHits
		}
		if err := hl.limiter.Wait(ctx); err != nil {
			result.Success = false
			result.ErrorMessage = err.Error()
			return result, rateLimitHits
		}

		start := time.Now()
		result, err = task(ctx, url)
		result.RetryCount = attempt

		if err == nil && result.Success {
			hl.recordSuccess()
			return result, rateLimitHits
		}

		retryable := crawlerr.Is(err, crawlerr.KindRateLimited) || crawlerr.Is(err, crawlerr.KindNavigation)
		if crawlerr.Is(err, crawlerr.KindRateLimited) {
			rateLimitHits++
			hl.recordLimited(d.opts.RateLimit, limiters.baseDelay())
		}

		logger.Debug("dispatch task attempt failed",
			"url", url, "attempt", attempt, "duration", time.Since(start), "error", err)

		if !retryable || attempt == maxRetries {
			if err != nil && result.ErrorMessage == "" {
				result.ErrorMessage = err.Error()
			}
			result.Success = false
			return result, rateLimitHits
		}
	}

	return result, rateLimitHits
}

func waitWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
