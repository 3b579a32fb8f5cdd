// Package embed provides the embedding-model clients used by ingestion and
// retrieval: an OpenAI-compatible HTTP client, a deterministic offline
// embedder, and caching wrappers.
package embed

import (
	"context"
	"math"
)

// Embedder turns text into dense vectors. Implementations must return
// vectors of a stable dimension and preserve input order in EmbedBatch.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, index-aligned
	// with the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension, or 0 before the first
	// successful call for providers that discover it from responses.
	Dimensions() int

	// ModelName returns the model identifier, used in cache keys.
	ModelName() string

	// Available reports whether the provider can serve requests.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector returns v scaled to unit length. Zero vectors pass
// through unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
