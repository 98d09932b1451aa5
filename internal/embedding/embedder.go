// Package embedding provides text embedding providers (ONNX, Ollama) and caching.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations fix their
// dimension at construction and apply (or skip) unit L2 normalization
// according to a single construction-time setting, so index-time and
// query-time vectors are always normalized consistently.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one row per input text. An empty input yields an
	// empty, non-nil slice and no error.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
