// Package llmcap is the abstract LLM completion capability consumed by
// pkg/extract/llmstrat, pkg/filter's LLM filter, and pkg/adaptive's
// embedding-adjacent scoring. It generalizes the teacher's pkg/llm
// package (kept, and adapted by AdaptProvider below) to the {complete}
// capability named in the specification's external interfaces.
package llmcap

import (
	"context"
	"time"

	"github.com/crawlforge/crawlforge/pkg/llm"
)

// Role mirrors llm.Role; re-exported so callers of this capability
// never need to import pkg/llm directly.
type Role = llm.Role

const (
	RoleSystem    = llm.RoleSystem
	RoleUser      = llm.RoleUser
	RoleAssistant = llm.RoleAssistant
)

// Message is one turn of a completion request.
type Message struct {
	Role    Role
	Content string
	// Cacheable is passed on by AdaptProvider as pkg/llm's
	// CacheControlEphemeral marker; the pkg/llm providers do not send
	// that marker to their APIs, so no provider-side caching results.
	Cacheable bool
}

// Request is a structured-extraction-capable completion request.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONSchema  map[string]any
}

// Response is the provider's answer, with usage for cost accounting.
type Response struct {
	Content      string
	Usage        TokenUsage
	Model        string
	Cost         float64
	CostIncluded bool
	Duration     time.Duration
}

// TokenUsage tracks input/output token counts.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Provider is the capability interface: complete(messages, schema) -> data.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
}

// AdaptProvider wraps an existing pkg/llm.Provider (Anthropic, OpenAI,
// OpenRouter, Ollama — all already implemented by the teacher) as an
// llmcap.Provider, so the engine's new packages consume the single
// abstract capability while the concrete wiring stays exactly as the
// teacher built it.
func AdaptProvider(p llm.Provider) Provider {
	return &providerAdapter{p: p}
}

type providerAdapter struct {
	p llm.Provider
}

func (a *providerAdapter) Name() string { return a.p.Name() }

func (a *providerAdapter) Complete(ctx context.Context, req Request) (Response, error) {
	msgs := make([]llm.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		lm := llm.Message{Role: m.Role, Content: m.Content}
		if m.Cacheable {
			lm.CacheControl = llm.CacheControlEphemeral
		}
		msgs = append(msgs, lm)
	}
	resp, err := a.p.Execute(ctx, llm.Request{
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		JSONSchema:  req.JSONSchema,
	})
	if err != nil {
		return Response{}, err
	}
	return Response{
		Content:      resp.Content,
		Usage:        TokenUsage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
		Model:        resp.Model,
		Cost:         resp.Cost,
		CostIncluded: resp.CostIncluded,
		Duration:     resp.Duration,
	}, nil
}
