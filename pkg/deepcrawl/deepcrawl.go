// Package deepcrawl implements the Deep Crawl Strategy (§4.9): BFS,
// DFS, and Best-First multi-page traversal wrapping a dispatcher,
// generalizing internal/crawler.Crawler/URLQueue's single fixed
// traversal order into three pluggable ones sharing one frontier.
package deepcrawl

import (
	"context"
	"net/url"

	"github.com/crawlforge/crawlforge/internal/logger"
	"github.com/crawlforge/crawlforge/pkg/crawlresult"
)

// URLFilter decides whether a discovered link should be enqueued,
// mirroring spec.md's `accept(url, context) -> bool` filter-chain
// contract.
type URLFilter interface {
	Accept(link crawlresult.Link, depth int) bool
}

// FilterChain runs a list of URLFilters; a link is accepted only if
// every filter accepts it.
type FilterChain []URLFilter

func (c FilterChain) Accept(link crawlresult.Link, depth int) bool {
	for _, f := range c {
		if !f.Accept(link, depth) {
			return false
		}
	}
	return true
}

// Scorer ranks a discovered link for Best-First ordering.
type Scorer interface {
	Score(link crawlresult.Link, depth int) float64
}

// CrawlFunc performs one URL's crawl via the dispatcher/content
// pipeline, returning a CrawlResult whose Links are candidate frontier
// expansions.
type CrawlFunc func(ctx context.Context, url string, depth int) (crawlresult.CrawlResult, error)

// Options configures one deep crawl run.
type Options struct {
	Strategy    Strategy
	MaxDepth    int
	MaxPages    int
	FilterChain FilterChain
	Scorer      Scorer
	// SameDomainOnly restricts expansion to the result's internal links.
	SameDomainOnly bool
}

// Crawler drives a single-threaded frontier loop (matching spec.md's
// "cooperative, single scheduler thread" model at the traversal level;
// parallelism across in-flight crawls is the dispatcher's concern, not
// the frontier's) while delegating each URL's fetch to CrawlFunc.
type Crawler struct {
	opts Options
	crawl CrawlFunc
}

func New(opts Options, crawl CrawlFunc) *Crawler {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 1
	}
	return &Crawler{opts: opts, crawl: crawl}
}

// Run traverses from seeds, streaming each CrawlResult as it completes.
// The returned channel closes when the frontier is exhausted,
// MaxPages is reached, or ctx is cancelled.
func (c *Crawler) Run(ctx context.Context, seeds []string) <-chan crawlresult.CrawlResult {
	out := make(chan crawlresult.CrawlResult)

	go func() {
		defer close(out)
		c.run(ctx, seeds, out)
	}()

	return out
}

func (c *Crawler) run(ctx context.Context, seeds []string, out chan<- crawlresult.CrawlResult) {
	f := newFrontier(c.opts.Strategy)
	seen := make(map[string]bool)

	for _, s := range seeds {
		norm := canonicalize(s)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		f.push(frontierItem{url: s, depth: 0})
	}

	pagesCrawled := 0
	for f.len() > 0 {
		if ctx.Err() != nil {
			return
		}
		if c.opts.MaxPages > 0 && pagesCrawled >= c.opts.MaxPages {
			return
		}

		item, ok := f.pop()
		if !ok {
			return
		}

		result, err := c.crawl(ctx, item.url, item.depth)
		result.Depth = item.depth
		pagesCrawled++

		if err != nil {
			logger.Debug("deepcrawl: crawl failed", "url", item.url, "depth", item.depth, "error", err)
		}

		select {
		case out <- result:
		case <-ctx.Done():
			return
		}

		if !result.Success || item.depth >= c.opts.MaxDepth {
			continue
		}

		c.expand(f, seen, result, item.depth)
	}
}

func (c *Crawler) expand(f frontier, seen map[string]bool, result crawlresult.CrawlResult, depth int) {
	links := result.Links.All()
	if c.opts.SameDomainOnly {
		links = result.Links.Internal
	}
	for _, link := range links {
		norm := canonicalize(link.Href)
		if norm == "" || seen[norm] {
			continue
		}
		if c.opts.FilterChain != nil && !c.opts.FilterChain.Accept(link, depth+1) {
			continue
		}

		score := 0.0
		if c.opts.Scorer != nil {
			score = c.opts.Scorer.Score(link, depth+1)
		}

		seen[norm] = true
		f.push(frontierItem{url: link.Href, depth: depth + 1, score: score})
	}
}

// Collect runs Run to completion and returns the accumulated results,
// for callers who want the non-streaming form.
func (c *Crawler) Collect(ctx context.Context, seeds []string) []crawlresult.CrawlResult {
	var results []crawlresult.CrawlResult
	for r := range c.Run(ctx, seeds) {
		results = append(results, r)
	}
	return results
}

func canonicalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	u.Fragment = ""
	u.Host = u.Hostname()
	if u.Path != "/" {
		u.Path = trimTrailingSlash(u.Path)
	}
	return u.String()
}

func trimTrailingSlash(p string) string {
	if len(p) > 0 && p[len(p)-1] == '/' {
		return p[:len(p)-1]
	}
	return p
}
