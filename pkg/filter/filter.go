// Package filter implements the content pipeline's filter stage
// (§4.3): pruning, BM25, and LLM-backed content filters that each
// remove low-value blocks from a parsed document before markdown
// generation.
package filter

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// Filter removes low-value nodes from doc in place.
type Filter interface {
	Apply(ctx context.Context, doc *goquery.Document) error
	Name() string
}

// Chain runs filters in order, matching pkg/extractor/pipeline.go's
// "run in sequence" idiom generalized from extractors to filters.
type Chain struct {
	Filters []Filter
}

func (c Chain) Apply(ctx context.Context, doc *goquery.Document) error {
	for _, f := range c.Filters {
		if err := f.Apply(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}
