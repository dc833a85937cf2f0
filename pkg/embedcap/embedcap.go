// Package embedcap is the embedding capability injected into
// pkg/adaptive's embedding-backed confidence backend (§4.10). No
// concrete implementation ships in this module — the adaptive crawler
// treats embeddings as an open extension point (spec Design Note §9),
// so callers provide their own Embedder (e.g. backed by an OpenAI or
// local embedding model) when they want the embedding backend instead
// of the built-in statistical one.
package embedcap

import "context"

// Embedder turns text into dense vectors for cosine-similarity based
// consistency/coverage scoring.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
