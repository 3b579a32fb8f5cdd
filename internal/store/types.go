// Package store defines the chunk stores behind the retrieval pipeline:
// a vector store addressed by deterministic chunk keys and a lexical BM25
// index, each with embedded and remote backends.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Chunk is the atomic retrieval unit. The same chunk is written to both
// stores with identical text, page, and source.
type Chunk struct {
	DocumentID string
	// ChunkID is dense and contiguous within a document, starting at 0.
	ChunkID int
	Text    string
	// Page is 1-based; 0 means unknown and is omitted from metadata.
	Page    int
	Source  string
	Tags    []string
	Version string

	// Embedding is set on vector-store paths and nil on lexical-only ones.
	Embedding []float32
}

// Key returns the chunk's deterministic vector-store id.
func (c *Chunk) Key() string {
	return ChunkKey(c.DocumentID, c.ChunkID)
}

// ChunkKey builds the deterministic vector-store id for a chunk. Neighbor
// expansion derives ids with chunk-id arithmetic, so this format is part
// of the data contract.
func ChunkKey(documentID string, chunkID int) string {
	return fmt.Sprintf("%s::%d", strings.TrimSpace(documentID), chunkID)
}

// ParseChunkKey splits a deterministic id back into its parts.
func ParseChunkKey(key string) (documentID string, chunkID int, err error) {
	i := strings.LastIndex(key, "::")
	if i < 0 {
		return "", 0, fmt.Errorf("malformed chunk key %q", key)
	}
	id, err := strconv.Atoi(key[i+2:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed chunk key %q: %w", key, err)
	}
	return key[:i], id, nil
}

// VectorHit is one ANN result.
type VectorHit struct {
	Chunk *Chunk
	// Distance is the cosine distance (1 - cosine similarity).
	Distance float64
}

// Similarity converts the hit's distance to cosine similarity.
func (h *VectorHit) Similarity() float64 {
	return 1 - h.Distance
}

// VectorStore holds chunk embeddings keyed by the deterministic id.
type VectorStore interface {
	// Upsert writes chunks with their embeddings and flattened metadata.
	// Re-upserting a key replaces it, which makes ingestion idempotent.
	Upsert(ctx context.Context, chunks []*Chunk) error

	// GetByIDs batch-fetches chunks with text, metadata, and embedding,
	// preserving request order. Missing ids are omitted, not errors.
	GetByIDs(ctx context.Context, ids []string) ([]*Chunk, error)

	// QueryByVector runs ANN search under cosine distance, optionally
	// restricted by an equality predicate on metadata fields.
	QueryByVector(ctx context.Context, vector []float32, topK int, where map[string]string) ([]*VectorHit, error)

	// GetWhere returns all chunks matching an equality predicate.
	GetWhere(ctx context.Context, where map[string]string) ([]*Chunk, error)

	// Count reports the number of stored chunks.
	Count(ctx context.Context) (int, error)

	Close() error
}

// LexicalHit is one BM25 result.
type LexicalHit struct {
	Chunk *Chunk
	Score float64
}

// LexicalFilter restricts lexical search to given documents or sources.
type LexicalFilter struct {
	DocumentIDs []string
	Sources     []string
}

// IndexReceipt reports a lexical indexing outcome.
type IndexReceipt struct {
	Index  string
	ID     string
	Result string
}

// LexicalIndex is the BM25 surface. The search node backs it with
// OpenSearch or bleve; the other nodes reach it through the search node.
type LexicalIndex interface {
	// Index writes one chunk. Id generation is the backend's business;
	// neighbor math never uses lexical ids.
	Index(ctx context.Context, chunk *Chunk) (*IndexReceipt, error)

	// Search returns hits in descending score order.
	Search(ctx context.Context, query string, topK int, filter *LexicalFilter) ([]*LexicalHit, error)

	// Ready reports whether the index can serve; backends ensure the
	// index exists here.
	Ready(ctx context.Context) error

	Close() error
}

// ErrDimensionMismatch is returned when a vector's dimension does not
// match the collection.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
