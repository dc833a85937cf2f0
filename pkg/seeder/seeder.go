// Package seeder implements the URL Seeder (§4.8): sitemap mining with
// robots.txt consultation for Sitemap: directives, followed by
// normalize -> dedupe -> glob-filter -> optional HEAD/meta enrichment
// -> optional BM25 scoring -> optional liveness check -> sort/truncate.
// Sitemaps are the only URL source; no Common Crawl index is queried.
// Grounded on ncecere-raito's internal/crawler/map.go (robots fetch +
// sitemap discovery shape), generalized to use antchfx/xmlquery for
// namespace-tolerant recursive sitemap-index parsing and
// gobwas/glob for pattern filtering instead of hand-rolled matching.
package seeder

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/gobwas/glob"
	"github.com/temoto/robotstxt"

	"github.com/crawlforge/crawlforge/internal/logger"
	"github.com/crawlforge/crawlforge/pkg/httpcap"
	"github.com/crawlforge/crawlforge/pkg/scoring"
)

// readBody drains and closes an httpcap.Response body; safe to call
// with a nil Body.
func readBody(resp *httpcap.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, nil
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Candidate is one discovered URL with optional enrichment.
type Candidate struct {
	URL         string
	Title       string
	Description string
	Keywords    string
	Score       float64
}

// Options configures one Seed call.
type Options struct {
	Domain    string // e.g. "example.com"; scheme defaults to https
	Pattern   string // glob pattern the URL path must match; "" matches all
	Query     string // BM25 query against fetched head metadata; "" disables scoring
	MaxURLs   int
	HitsPerSec float64 // bounded liveness-check rate; 0 disables the check
	FetchHead  bool    // fetch title/description/keywords via HTTP GET
	CheckLive  bool    // bounded-concurrency liveness probe
	Client     httpcap.Client
}

// Seeder mines a domain's sitemaps for its URLs.
type Seeder struct {
	opts Options
}

func New(opts Options) *Seeder {
	if opts.MaxURLs <= 0 {
		opts.MaxURLs = 1000
	}
	if opts.Client == nil {
		opts.Client = httpcap.NewDefault(15 * time.Second)
	}
	return &Seeder{opts: opts}
}

// NewStaticSeeder is New with the enrichment/robots/sitemap fetches
// routed through a colly-backed httpcap.Client instead of the stdlib
// default, for callers that want colly's collector-level conveniences
// (its own redirect and content-type handling) over this package's
// sitemap/robots fetches.
func NewStaticSeeder(opts Options, userAgent string) *Seeder {
	if opts.Client == nil {
		opts.Client = httpcap.NewCollyClient(userAgent, 15*time.Second)
	}
	return New(opts)
}

// Seed runs the full pipeline and returns candidates sorted by score
// descending (or sitemap order when no query is supplied), truncated
// to MaxURLs.
func (s *Seeder) Seed(ctx context.Context) ([]Candidate, error) {
	base := &url.URL{Scheme: "https", Host: s.opts.Domain}

	urls, err := s.mineSitemaps(ctx, base)
	if err != nil {
		logger.Debug("seeder: sitemap mining failed", "domain", s.opts.Domain, "error", err)
	}

	urls = normalize(urls)
	urls = dedupe(urls)
	urls = s.filterPattern(urls)

	candidates := make([]Candidate, 0, len(urls))
	for _, u := range urls {
		candidates = append(candidates, Candidate{URL: u})
	}

	if s.opts.FetchHead {
		candidates = s.enrich(ctx, candidates)
	}
	if s.opts.Query != "" {
		candidates = s.score(candidates)
	}
	if s.opts.CheckLive {
		candidates = s.checkLiveness(ctx, candidates)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > s.opts.MaxURLs {
		candidates = candidates[:s.opts.MaxURLs]
	}
	return candidates, nil
}

// mineSitemaps consults robots.txt for Sitemap: directives, falling
// back to the conventional /sitemap.xml location, and recursively
// expands sitemap indexes.
func (s *Seeder) mineSitemaps(ctx context.Context, base *url.URL) ([]string, error) {
	sitemapURLs := s.sitemapLocationsFromRobots(ctx, base)
	if len(sitemapURLs) == 0 {
		conventional := *base
		conventional.Path = "/sitemap.xml"
		sitemapURLs = []string{conventional.String()}
	}

	seen := map[string]bool{}
	var all []string
	var walk func(sitemapURL string, depth int) error
	walk = func(sitemapURL string, depth int) error {
		if depth > 5 || seen[sitemapURL] {
			return nil
		}
		seen[sitemapURL] = true

		resp, err := s.opts.Client.Get(ctx, sitemapURL)
		if err != nil || resp.StatusCode != 200 {
			return fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
		}
		body, err := readBody(resp)
		if err != nil {
			return fmt.Errorf("read sitemap %s: %w", sitemapURL, err)
		}

		doc, err := xmlquery.Parse(strings.NewReader(string(body)))
		if err != nil {
			return fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
		}

		if indexLocs := xmlquery.Find(doc, "//sitemapindex/sitemap/loc"); len(indexLocs) > 0 {
			for _, loc := range indexLocs {
				if err := walk(strings.TrimSpace(loc.InnerText()), depth+1); err != nil {
					logger.Debug("seeder: nested sitemap fetch failed", "url", loc.InnerText(), "error", err)
				}
			}
			return nil
		}

		for _, loc := range xmlquery.Find(doc, "//urlset/url/loc") {
			all = append(all, strings.TrimSpace(loc.InnerText()))
		}
		return nil
	}

	var firstErr error
	for _, u := range sitemapURLs {
		if err := walk(u, 0); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if len(all) == 0 {
		return nil, firstErr
	}
	return all, nil
}

func (s *Seeder) sitemapLocationsFromRobots(ctx context.Context, base *url.URL) []string {
	robotsURL := *base
	robotsURL.Path = "/robots.txt"

	resp, err := s.opts.Client.Get(ctx, robotsURL.String())
	if err != nil || resp.StatusCode != 200 {
		return nil
	}
	body, err := readBody(resp)
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data.Sitemaps
}

// normalize lowercases the host, drops default ports, and collapses a
// trailing slash, per spec.md §4.8's normalization rule.
func normalize(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		u.Host = strings.ToLower(u.Hostname())
		if (u.Scheme == "http" && u.Port() != "" && u.Port() != "80") ||
			(u.Scheme == "https" && u.Port() != "" && u.Port() != "443") {
			u.Host = u.Hostname() + ":" + u.Port()
		}
		if u.Path != "/" {
			u.Path = strings.TrimSuffix(u.Path, "/")
		}
		out = append(out, u.String())
	}
	return out
}

func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func (s *Seeder) filterPattern(urls []string) []string {
	if s.opts.Pattern == "" {
		return urls
	}
	g, err := glob.Compile(s.opts.Pattern)
	if err != nil {
		logger.Debug("seeder: invalid glob pattern, skipping filter", "pattern", s.opts.Pattern, "error", err)
		return urls
	}
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if g.Match(u) {
			out = append(out, u)
		}
	}
	return out
}

// enrich fetches each URL (bounded concurrency) and extracts a
// lightweight title/description/keywords for scoring and display.
func (s *Seeder) enrich(ctx context.Context, candidates []Candidate) []Candidate {
	const concurrency = 8
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			resp, err := s.opts.Client.Get(ctx, candidates[idx].URL)
			if err != nil || resp.StatusCode != 200 {
				return
			}
			body, err := readBody(resp)
			if err != nil {
				return
			}
			title, desc, keywords := extractHeadMeta(string(body))
			candidates[idx].Title = title
			candidates[idx].Description = desc
			candidates[idx].Keywords = keywords
		}(i)
	}
	wg.Wait()
	return candidates
}

func extractHeadMeta(html string) (title, description, keywords string) {
	if i := strings.Index(html, "<title>"); i >= 0 {
		if j := strings.Index(html[i:], "</title>"); j >= 0 {
			title = strings.TrimSpace(html[i+len("<title>") : i+j])
		}
	}
	description = metaContent(html, "description")
	keywords = metaContent(html, "keywords")
	return
}

func metaContent(html, name string) string {
	marker := `name="` + name + `"`
	i := strings.Index(html, marker)
	if i < 0 {
		return ""
	}
	tagStart := strings.LastIndex(html[:i], "<meta")
	tagEnd := strings.Index(html[i:], ">")
	if tagStart < 0 || tagEnd < 0 {
		return ""
	}
	tag := html[tagStart : i+tagEnd]
	ci := strings.Index(tag, `content="`)
	if ci < 0 {
		return ""
	}
	rest := tag[ci+len(`content="`):]
	ei := strings.Index(rest, `"`)
	if ei < 0 {
		return ""
	}
	return rest[:ei]
}

// score ranks candidates by BM25 relevance of their enriched metadata
// against Query, using pkg/scoring so the seeder and the BM25 filter
// share one relevance model.
func (s *Seeder) score(candidates []Candidate) []Candidate {
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = strings.Join([]string{c.Title, c.Description, c.Keywords}, " ")
	}
	corpus := scoring.NewCorpus(docs)
	for i := range candidates {
		candidates[i].Score = corpus.Score(i, scoring.Tokenize(s.opts.Query))
	}
	return candidates
}

// checkLiveness issues a bounded-rate HEAD-equivalent probe, dropping
// URLs that don't respond successfully.
func (s *Seeder) checkLiveness(ctx context.Context, candidates []Candidate) []Candidate {
	interval := time.Second
	if s.opts.HitsPerSec > 0 {
		interval = time.Duration(float64(time.Second) / s.opts.HitsPerSec)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	alive := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		<-ticker.C
		resp, err := s.opts.Client.Head(ctx, c.URL)
		if err != nil {
			continue
		}
		if resp.Body != nil {
			resp.Body.Close()
		}
		if resp.StatusCode >= 400 {
			continue
		}
		alive = append(alive, c)
	}
	return alive
}
