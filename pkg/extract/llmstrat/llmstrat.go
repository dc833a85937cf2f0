// Package llmstrat implements the LLMExtractionStrategy (§4.4):
// chunked, schema-validated structured extraction via an injected
// llmcap.Provider. Grounded wholesale on pkg/extractor/llm.go's
// BaseLLMExtractor (retry loop, schema validation, prompt building),
// generalized with a token-threshold chunker and the concat/intelligent
// merge strategies named in DESIGN.md's Open Question resolution.
package llmstrat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/crawlforge/crawlforge/internal/logger"
	"github.com/crawlforge/crawlforge/pkg/llmcap"
	"github.com/crawlforge/crawlforge/pkg/schema"
)

// MergeStrategy controls how per-chunk extraction results are combined.
type MergeStrategy string

const (
	// MergeConcat appends every chunk's result list/object, the default.
	MergeConcat MergeStrategy = "concat"
	// MergeIntelligent runs a second LLM pass over the concatenated
	// partials asking the model to deduplicate/reconcile them,
	// mirroring pkg/extractor/pipeline.go's "feed one extractor's
	// output into the next" idiom.
	MergeIntelligent MergeStrategy = "intelligent"
)

// Config configures one Strategy.
type Config struct {
	Provider       llmcap.Provider
	Schema         schema.Schema
	Instruction    string
	MaxRetries     int
	Temperature    float64
	MaxTokens      int
	ChunkSize      int // approx characters per chunk; 0 disables chunking
	ChunkOverlap   int
	Merge          MergeStrategy

	// RetryBaseDelay and RetryBackoffFactor configure the delay before
	// each retry attempt: delay = RetryBaseDelay * RetryBackoffFactor^n,
	// mirroring pkg/dispatch's per-host backoff so a flaky provider
	// doesn't get hammered attempt after attempt with no pause.
	RetryBaseDelay     time.Duration
	RetryBackoffFactor float64
}

// Strategy runs chunked LLM extraction against Config.Schema.
type Strategy struct {
	cfg Config
}

func New(cfg Config) *Strategy {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Merge == "" {
		cfg.Merge = MergeConcat
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.RetryBackoffFactor <= 0 {
		cfg.RetryBackoffFactor = 2
	}
	return &Strategy{cfg: cfg}
}

func (s *Strategy) Name() string { return "llm" }

func (s *Strategy) Extract(ctx context.Context, content string) (any, error) {
	chunks := chunk(content, s.cfg.ChunkSize, s.cfg.ChunkOverlap)

	results := make([]any, 0, len(chunks))
	for i, c := range chunks {
		data, err := s.extractChunk(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("llmstrat: chunk %d/%d: %w", i+1, len(chunks), err)
		}
		results = append(results, data)
	}

	if len(results) == 1 {
		return results[0], nil
	}

	switch s.cfg.Merge {
	case MergeIntelligent:
		return s.mergeIntelligent(ctx, results)
	default:
		return mergeConcat(results), nil
	}
}

func (s *Strategy) extractChunk(ctx context.Context, content string) (any, error) {
	prompt := buildPrompt(content, s.cfg.Schema, s.cfg.Instruction)
	jsonSchema, err := s.cfg.Schema.ToJSONSchema()
	if err != nil {
		return nil, fmt.Errorf("build json schema: %w", err)
	}

	var lastErr error
	maxAttempts := s.cfg.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, s.cfg, attempt); err != nil {
				return nil, err
			}
		}

		retryNote := ""
		if lastErr != nil {
			retryNote = fmt.Sprintf("\n\nYour previous response was invalid: %v. Reply with corrected JSON only.", lastErr)
		}

		resp, err := s.cfg.Provider.Complete(ctx, llmcap.Request{
			Messages: []llmcap.Message{
				{Role: llmcap.RoleSystem, Content: "You extract structured data and reply with JSON only, matching the given schema.", Cacheable: true},
				{Role: llmcap.RoleUser, Content: prompt + retryNote},
			},
			MaxTokens:   s.cfg.MaxTokens,
			Temperature: s.cfg.Temperature,
			JSONSchema:  jsonSchema,
		})
		if err != nil {
			lastErr = err
			logger.Debug("llmstrat attempt failed", "attempt", attempt, "error", err)
			continue
		}

		cleaned := stripMarkdownCodeBlock(resp.Content)
		data, err := s.cfg.Schema.Unmarshal([]byte(cleaned))
		if err != nil {
			lastErr = err
			continue
		}

		if errs := s.cfg.Schema.Validate(data); len(errs) > 0 {
			lastErr = fmt.Errorf("%d validation errors: %v", len(errs), errs)
			continue
		}

		return data, nil
	}

	return nil, lastErr
}

// sleepBackoff waits RetryBaseDelay*RetryBackoffFactor^(attempt-1)
// before a retry attempt, returning ctx's error if it's cancelled
// first.
func sleepBackoff(ctx context.Context, cfg Config, attempt int) error {
	delay := cfg.RetryBaseDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.RetryBackoffFactor)
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mergeIntelligent asks the model to reconcile/deduplicate the
// per-chunk partial results into one object matching the schema.
func (s *Strategy) mergeIntelligent(ctx context.Context, partials []any) (any, error) {
	raw, err := json.Marshal(partials)
	if err != nil {
		return nil, fmt.Errorf("marshal partials: %w", err)
	}
	jsonSchema, err := s.cfg.Schema.ToJSONSchema()
	if err != nil {
		return nil, fmt.Errorf("build json schema: %w", err)
	}

	resp, err := s.cfg.Provider.Complete(ctx, llmcap.Request{
		Messages: []llmcap.Message{
			{Role: llmcap.RoleSystem, Content: "You merge and deduplicate partial extraction results from chunks of one document into a single coherent result matching the schema."},
			{Role: llmcap.RoleUser, Content: fmt.Sprintf("Partial results from sequential chunks of the same document:\n%s\n\nMerge these into one result matching the schema, removing duplicates.", raw)},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: 0,
		JSONSchema:  jsonSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("merge pass: %w", err)
	}

	return s.cfg.Schema.Unmarshal([]byte(stripMarkdownCodeBlock(resp.Content)))
}

func mergeConcat(results []any) any {
	var merged []any
	for _, r := range results {
		if list, ok := r.([]any); ok {
			merged = append(merged, list...)
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func buildPrompt(content string, s schema.Schema, instruction string) string {
	var b strings.Builder
	if instruction != "" {
		fmt.Fprintf(&b, "Instruction: %s\n\n", instruction)
	}
	b.WriteString(s.ToPromptDescription())
	b.WriteString("\n\nContent:\n")
	b.WriteString(content)
	return b.String()
}

func stripMarkdownCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

// chunk splits content into overlapping pieces of roughly size
// characters. size <= 0 disables chunking (returns one chunk).
func chunk(content string, size, overlap int) []string {
	if size <= 0 || len(content) <= size {
		return []string{content}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(content); start += step {
		end := start + size
		if end > len(content) {
			end = len(content)
		}
		chunks = append(chunks, content[start:end])
		if end == len(content) {
			break
		}
	}
	return chunks
}
