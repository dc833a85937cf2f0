// Package extract defines the shared Strategy interface implemented
// by pkg/extract/jsoncss, pkg/extract/jsonxpath, pkg/extract/regexstrat,
// and pkg/extract/llmstrat (§4.4).
package extract

import "context"

// Strategy extracts structured data from content. The content shape
// (HTML vs markdown/plain text) each Strategy expects is documented on
// its constructor.
type Strategy interface {
	Extract(ctx context.Context, content string) (any, error)
	Name() string
}
