// Package adaptive implements the Adaptive Crawler (§4.10): an
// iterative crawl-score-stop loop over a KnowledgeState, driven by a
// pluggable statistical or embedding scoring Backend. New package, no
// direct teacher analogue; the confidence math is pure functions per
// Design Note §9, and the statistical backend reuses pkg/scoring's
// BM25 implementation so both pkg/filter's BM25Filter and this package
// share one relevance model.
package adaptive

import (
	"context"
	"math"
	"strings"

	"github.com/crawlforge/crawlforge/pkg/crawlresult"
	"github.com/crawlforge/crawlforge/pkg/embedcap"
	"github.com/crawlforge/crawlforge/pkg/scoring"
)

// Passage is one retrieved unit of knowledge: a page (or chunk of one)
// contributing terms/vectors toward the running KnowledgeState.
type Passage struct {
	URL     string
	Text    string
	Vector  []float32 // populated only when an embedding Backend is in use
}

// KnowledgeState accumulates crawled passages across the loop.
type KnowledgeState struct {
	Query    string
	Passages []Passage
}

// Backend abstracts the two supported scoring strategies named in
// spec.md §4.10: "statistical" (BM25/TF-IDF) and "embedding" (cosine
// similarity over an injected embedcap.Embedder). Neither is
// hardwired; callers supply one.
type Backend interface {
	// Coverage reports the fraction of query terms/dimensions the
	// current knowledge state addresses, in [0,1].
	Coverage(ctx context.Context, state KnowledgeState) (float64, error)
	// Consistency reports pairwise agreement across the top-k
	// passages, in [0,1].
	Consistency(ctx context.Context, state KnowledgeState, topK int) (float64, error)
	// Similarity scores a candidate passage against the query, used
	// both for Saturation's information-gain estimate and for
	// ranking next links.
	Similarity(ctx context.Context, query, text string) (float64, error)
}

// Weights configures the confidence blend; must sum to 1.
type Weights struct {
	Coverage    float64
	Consistency float64
	Saturation  float64
}

// DefaultWeights mirrors spec.md §4.10's stated defaults.
func DefaultWeights() Weights {
	return Weights{Coverage: 0.4, Consistency: 0.3, Saturation: 0.3}
}

// Confidence blends coverage/consistency/saturation per spec.md
// §4.10's weighted-sum formula.
func Confidence(coverage, consistency, saturation float64, w Weights) float64 {
	return w.Coverage*coverage + w.Consistency*consistency + w.Saturation*saturation
}

// Saturation computes 1 - (gain of the last page / average gain),
// clamped to [0,1]; an empty or single-entry gains slice saturates at
// 0 (no evidence of diminishing returns yet).
func Saturation(gains []float64) float64 {
	if len(gains) == 0 {
		return 0
	}
	last := gains[len(gains)-1]
	var sum float64
	for _, g := range gains {
		sum += g
	}
	avg := sum / float64(len(gains))
	if avg == 0 {
		return 0
	}
	sat := 1 - last/avg
	return clamp01(sat)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FetchFunc crawls one URL and returns its result (links for frontier
// expansion, cleaned text/markdown for knowledge extraction).
type FetchFunc func(ctx context.Context, url string) (crawlresult.CrawlResult, error)

// Options configures one adaptive crawl run.
type Options struct {
	Query              string
	MaxPages           int
	MaxDepth           int
	TopK               int // passages considered for Consistency and link ranking
	ConfidenceThreshold float64
	Weights            Weights
	Backend            Backend
}

// Result is the outcome of one adaptive crawl run.
type Result struct {
	State      KnowledgeState
	Confidence float64
	PagesCrawled int
	StoppedReason string // "confidence_reached" | "max_pages" | "frontier_exhausted" | "cancelled"; a MaxDepth cut-off shows up as "frontier_exhausted"
}

// Run drives the crawl-score-stop loop described in spec.md §4.10:
// pick top-k next links weighted by query relevance, crawl, update
// knowledge, recompute confidence, stop at threshold or limits.
func Run(ctx context.Context, start string, fetch FetchFunc, opts Options) (Result, error) {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}

	state := KnowledgeState{Query: opts.Query}
	var gains []float64
	frontier := []frontierURL{{url: start, depth: 0}}
	seen := map[string]bool{start: true}

	pagesCrawled := 0
	confidence := 0.0
	reason := "frontier_exhausted"

	for len(frontier) > 0 {
		if ctx.Err() != nil {
			reason = "cancelled"
			break
		}
		if opts.MaxPages > 0 && pagesCrawled >= opts.MaxPages {
			reason = "max_pages"
			break
		}

		next := frontier[0]
		frontier = frontier[1:]
		if opts.MaxDepth > 0 && next.depth > opts.MaxDepth {
			continue
		}

		result, err := fetch(ctx, next.url)
		pagesCrawled++
		if err != nil || !result.Success {
			continue
		}

		text := extractText(result)
		gain, simErr := opts.Backend.Similarity(ctx, opts.Query, text)
		if simErr == nil {
			gains = append(gains, gain)
		}
		state.Passages = append(state.Passages, Passage{URL: next.url, Text: text})

		coverage, _ := opts.Backend.Coverage(ctx, state)
		consistency, _ := opts.Backend.Consistency(ctx, state, opts.TopK)
		saturation := Saturation(gains)
		confidence = Confidence(coverage, consistency, saturation, opts.Weights)

		if confidence >= opts.ConfidenceThreshold {
			reason = "confidence_reached"
			break
		}
		if opts.MaxPages > 0 && pagesCrawled >= opts.MaxPages {
			reason = "max_pages"
			break
		}

		if opts.MaxDepth <= 0 || next.depth+1 <= opts.MaxDepth {
			frontier = append(frontier, rankLinks(ctx, opts, result.Links.All(), next.depth+1, seen)...)
		}
	}

	return Result{State: state, Confidence: confidence, PagesCrawled: pagesCrawled, StoppedReason: reason}, nil
}

type frontierURL struct {
	url   string
	depth int
}

// rankLinks scores candidate links by query relevance via the
// backend's Similarity (falling back to anchor text when available),
// keeping only the top-k, matching spec.md's "pick top-k next links
// weighted by query relevance" rule.
func rankLinks(ctx context.Context, opts Options, links []crawlresult.Link, depth int, seen map[string]bool) []frontierURL {
	type scored struct {
		url   string
		score float64
	}
	var candidates []scored
	for _, l := range links {
		if seen[l.Href] {
			continue
		}
		seen[l.Href] = true
		score, err := opts.Backend.Similarity(ctx, opts.Query, l.Text)
		if err != nil {
			score = 0
		}
		candidates = append(candidates, scored{url: l.Href, score: score})
	}

	// simple selection of the top-k highest scoring candidates
	k := opts.TopK
	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]frontierURL, 0, k)
	for i := 0; i < k; i++ {
		best := i
		for j := i + 1; j < len(candidates); j++ {
			if candidates[j].score > candidates[best].score {
				best = j
			}
		}
		candidates[i], candidates[best] = candidates[best], candidates[i]
		out = append(out, frontierURL{url: candidates[i].url, depth: depth})
	}
	return out
}

func extractText(r crawlresult.CrawlResult) string {
	if r.Markdown.FitMarkdown != "" {
		return r.Markdown.FitMarkdown
	}
	return r.Markdown.RawMarkdown
}

// StatisticalBackend implements Backend using pkg/scoring's BM25 over
// the accumulated passages, the "statistical (TF-IDF/BM25)" option
// named in spec.md §4.10.
type StatisticalBackend struct{}

func (StatisticalBackend) Coverage(ctx context.Context, state KnowledgeState) (float64, error) {
	terms := scoring.Tokenize(state.Query)
	if len(terms) == 0 {
		return 0, nil
	}
	covered := 0
	corpusText := strings.ToLower(joinTexts(state.Passages))
	for _, t := range terms {
		if strings.Contains(corpusText, t) {
			covered++
		}
	}
	return float64(covered) / float64(len(terms)), nil
}

func (StatisticalBackend) Consistency(ctx context.Context, state KnowledgeState, topK int) (float64, error) {
	n := len(state.Passages)
	if n < 2 {
		return 1, nil
	}
	if n > topK {
		n = topK
	}
	docs := make([]string, n)
	for i := 0; i < n; i++ {
		docs[i] = state.Passages[len(state.Passages)-n+i].Text
	}
	corpus := scoring.NewCorpus(docs)

	var total float64
	var pairs int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			total += corpus.Score(i, scoring.Tokenize(docs[j]))
			pairs++
		}
	}
	if pairs == 0 {
		return 1, nil
	}
	return clamp01(total / float64(pairs) / 10), nil // normalize BM25's unbounded scale into [0,1]
}

func (StatisticalBackend) Similarity(ctx context.Context, query, text string) (float64, error) {
	return clamp01(scoring.ScoreText(text, scoring.Tokenize(query)) / 10), nil
}

func joinTexts(passages []Passage) string {
	var b strings.Builder
	for _, p := range passages {
		b.WriteString(p.Text)
		b.WriteString(" ")
	}
	return b.String()
}

// EmbeddingBackend implements Backend using an injected embedcap.Embedder
// and cosine similarity, the "embedding" option named alongside
// StatisticalBackend in spec.md §4.10. A passage's precomputed
// Passage.Vector is used when set; otherwise the passage text (and the
// query, on every call) is embedded on demand through Embedder. Run
// itself never fills Passage.Vector.
type EmbeddingBackend struct {
	Embedder embedcap.Embedder
	TopK     int
}

func (b EmbeddingBackend) Coverage(ctx context.Context, state KnowledgeState) (float64, error) {
	if len(state.Passages) == 0 {
		return 0, nil
	}
	queryVec, err := b.embedOne(ctx, state.Query)
	if err != nil {
		return 0, err
	}
	var best float64
	for _, p := range state.Passages {
		vec := p.Vector
		if len(vec) == 0 {
			embedded, err := b.embedOne(ctx, p.Text)
			if err != nil {
				continue
			}
			vec = embedded
		}
		if s := cosineSimilarity(queryVec, vec); s > best {
			best = s
		}
	}
	return clamp01(best), nil
}

func (b EmbeddingBackend) Consistency(ctx context.Context, state KnowledgeState, topK int) (float64, error) {
	n := len(state.Passages)
	if n < 2 {
		return 1, nil
	}
	if topK > 0 && n > topK {
		n = topK
	}
	recent := state.Passages[len(state.Passages)-n:]
	vecs := make([][]float32, n)
	for i, p := range recent {
		if len(p.Vector) > 0 {
			vecs[i] = p.Vector
			continue
		}
		vec, err := b.embedOne(ctx, p.Text)
		if err != nil {
			return 0, err
		}
		vecs[i] = vec
	}

	var total float64
	var pairs int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			total += cosineSimilarity(vecs[i], vecs[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 1, nil
	}
	return clamp01(total / float64(pairs)), nil
}

func (b EmbeddingBackend) Similarity(ctx context.Context, query, text string) (float64, error) {
	qv, err := b.embedOne(ctx, query)
	if err != nil {
		return 0, err
	}
	tv, err := b.embedOne(ctx, text)
	if err != nil {
		return 0, err
	}
	return clamp01(cosineSimilarity(qv, tv)), nil
}

func (b EmbeddingBackend) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.Embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	return vecs[0], nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
