package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crawlforge/crawlforge/pkg/crawlerr"
	"github.com/crawlforge/crawlforge/pkg/crawlresult"
)

func fastOptions() Options {
	return Options{
		Concurrency: AdaptiveConcurrencyConfig{MaxConcurrency: 4},
		RateLimit: RateLimitConfig{
			BaseDelayMin: time.Millisecond,
			BaseDelayMax: 2 * time.Millisecond,
			MaxDelay:     10 * time.Millisecond,
			Factor:       2,
			MaxRetries:   2,
		},
	}
}

func TestCollectPreservesSubmissionOrder(t *testing.T) {
	urls := []string{"https://a.test/1", "https://a.test/2", "https://a.test/3"}
	d := New(fastOptions())

	task := func(ctx context.Context, url string) (crawlresult.CrawlResult, error) {
		return crawlresult.CrawlResult{URL: url, Success: true}, nil
	}

	results, agg := d.Collect(context.Background(), urls, task)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.URL != urls[i] {
			t.Fatalf("results[%d] = %q, want %q (order not preserved)", i, r.URL, urls[i])
		}
	}
	if agg.Completed != 3 || agg.Failed != 0 {
		t.Fatalf("unexpected aggregate: %+v", agg)
	}
	if agg.Progress() != 1 {
		t.Fatalf("expected progress 1, got %v", agg.Progress())
	}
}

func TestRetriesNavigationErrorThenSucceeds(t *testing.T) {
	d := New(fastOptions())
	var calls int32

	task := func(ctx context.Context, url string) (crawlresult.CrawlResult, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return crawlresult.CrawlResult{URL: url}, crawlerr.New(crawlerr.KindNavigation, url, "boom", nil)
		}
		return crawlresult.CrawlResult{URL: url, Success: true}, nil
	}

	results, _ := d.Collect(context.Background(), []string{"https://a.test"}, task)
	if !results[0].Success {
		t.Fatalf("expected eventual success, got %+v", results[0])
	}
	if results[0].RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", results[0].RetryCount)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestNonRetryableErrorFailsImmediately(t *testing.T) {
	d := New(fastOptions())
	var calls int32

	task := func(ctx context.Context, url string) (crawlresult.CrawlResult, error) {
		atomic.AddInt32(&calls, 1)
		return crawlresult.CrawlResult{URL: url}, crawlerr.New(crawlerr.KindInput, url, "bad input", nil)
	}

	results, agg := d.Collect(context.Background(), []string{"https://a.test"}, task)
	if results[0].Success {
		t.Fatalf("expected failure, got success")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a non-retryable error, got %d", calls)
	}
	if agg.Failed != 1 {
		t.Fatalf("expected 1 failed in aggregate, got %+v", agg)
	}
}

func TestStreamYieldsAllResults(t *testing.T) {
	urls := []string{"https://a.test/1", "https://a.test/2"}
	d := New(fastOptions())

	task := func(ctx context.Context, url string) (crawlresult.CrawlResult, error) {
		return crawlresult.CrawlResult{URL: url, Success: true}, nil
	}

	out, batch := d.Stream(context.Background(), urls, task)
	seen := map[string]bool{}
	for r := range out {
		seen[r.URL] = true
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 distinct results, got %d", len(seen))
	}
	if !batch.Done() {
		t.Fatal("expected batch done after channel drained")
	}
}

func TestAdaptiveSemaphoreResizeUnblocksWaiters(t *testing.T) {
	sem := newAdaptiveSemaphore(1)
	if !sem.Acquire(nil) {
		t.Fatal("expected first acquire to succeed")
	}

	acquired := make(chan struct{})
	go func() {
		sem.Acquire(nil)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should have blocked at capacity 1")
	case <-time.After(30 * time.Millisecond):
	}

	sem.Resize(2)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("resize did not unblock waiter")
	}
}
