// Package hooks implements the crawl engine's fixed lifecycle points.
// Hooks run in registration order at each point; a hook's error is
// captured as a warning unless registered with RegisterCritical.
package hooks

import (
	"context"
	"fmt"
)

// Point identifies one of the fixed lifecycle points a hook can attach to.
type Point string

const (
	OnBrowserCreated     Point = "on_browser_created"
	OnPageContextCreated Point = "on_page_context_created"
	OnUserAgentUpdated   Point = "on_user_agent_updated"
	BeforeGoto           Point = "before_goto"
	AfterGoto            Point = "after_goto"
	OnExecutionStarted   Point = "on_execution_started"
	BeforeRetrieveHTML   Point = "before_retrieve_html"
	BeforeReturnHTML     Point = "before_return_html"
)

// Hook is invoked with whatever state object is relevant to its Point
// (chromedp context, page handle, HTML string, etc). State is passed
// as `any` because each point carries a different payload shape;
// callers type-assert to the shape documented for their Point.
type Hook func(ctx context.Context, state any) error

type registration struct {
	hook     Hook
	critical bool
}

// Registry holds the ordered hook list for each lifecycle point.
type Registry struct {
	points map[Point][]registration
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{points: make(map[Point][]registration)}
}

// Register appends a non-critical hook: its error is captured as a
// warning and execution continues.
func (r *Registry) Register(p Point, h Hook) {
	r.points[p] = append(r.points[p], registration{hook: h})
}

// RegisterCritical appends a hook whose error aborts the pipeline at
// that point instead of being downgraded to a warning.
func (r *Registry) RegisterCritical(p Point, h Hook) {
	r.points[p] = append(r.points[p], registration{hook: h, critical: true})
}

// Run executes every hook registered at p in order. It returns the
// first critical hook's error (if any) and the list of warnings
// produced by non-critical hooks (including a recovered panic).
func (r *Registry) Run(ctx context.Context, p Point, state any) (warnings []string, err error) {
	for _, reg := range r.points[p] {
		if werr := runOne(ctx, reg.hook, state); werr != nil {
			if reg.critical {
				return warnings, fmt.Errorf("hook at %s: %w", p, werr)
			}
			warnings = append(warnings, fmt.Sprintf("hook at %s: %v", p, werr))
		}
	}
	return warnings, nil
}

func runOne(ctx context.Context, h Hook, state any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, state)
}
