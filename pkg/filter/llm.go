package filter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/crawlforge/crawlforge/pkg/llmcap"
)

// LLMFilter asks the injected provider which blocks are relevant to
// Instruction and removes the rest. Grounded on pkg/extractor/llm.go's
// BaseLLMExtractor prompt-and-parse idiom, generalized from structured
// extraction to a keep/drop judgement per block.
type LLMFilter struct {
	Provider    llmcap.Provider
	Instruction string
	MaxBlocks   int // safety cap on how many blocks are sent to the LLM in one call
}

func NewLLMFilter(p llmcap.Provider, instruction string) *LLMFilter {
	return &LLMFilter{Provider: p, Instruction: instruction, MaxBlocks: 80}
}

func (f *LLMFilter) Name() string { return "llm" }

func (f *LLMFilter) Apply(ctx context.Context, doc *goquery.Document) error {
	var blocks []*goquery.Selection
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "p" || goquery.NodeName(s) == "article" {
			text := strings.TrimSpace(s.Text())
			if text != "" {
				blocks = append(blocks, s)
			}
		}
	})
	if len(blocks) == 0 {
		return nil
	}
	if len(blocks) > f.MaxBlocks {
		blocks = blocks[:f.MaxBlocks]
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Instruction: %s\n\nFor each numbered block below, reply with a comma-separated list of block numbers to KEEP (relevant to the instruction). Reply with numbers only, nothing else.\n\n", f.Instruction)
	for i, b := range blocks {
		fmt.Fprintf(&prompt, "[%d] %s\n", i, truncate(strings.TrimSpace(b.Text()), 400))
	}

	resp, err := f.Provider.Complete(ctx, llmcap.Request{
		Messages: []llmcap.Message{
			{Role: llmcap.RoleSystem, Content: "You select relevant content blocks from a web page."},
			{Role: llmcap.RoleUser, Content: prompt.String()},
		},
		MaxTokens:   512,
		Temperature: 0,
	})
	if err != nil {
		return fmt.Errorf("llm filter: %w", err)
	}

	keep := parseIndexList(resp.Content)
	for i, b := range blocks {
		if !keep[i] {
			b.Remove()
		}
	}
	return nil
}

func parseIndexList(s string) map[int]bool {
	keep := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if n, err := strconv.Atoi(part); err == nil {
			keep[n] = true
		}
	}
	return keep
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
