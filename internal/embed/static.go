package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
)

// StaticDimensions is the vector size of the offline embedder.
const StaticDimensions = 256

// Token and bigram weights. Bigrams give adjacent words a little
// structure so phrase overlap scores above bag-of-words overlap.
const (
	staticTokenWeight  = 0.7
	staticBigramWeight = 0.3
)

// StaticEmbedder generates deterministic hash-based embeddings with no
// network or model. Texts sharing vocabulary land near each other, which
// is what the retrieval tests and air-gapped smoke runs need.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates the offline embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}
	return normalizeVector(e.generateVector(trimmed)), nil
}

func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// generateVector hashes tokens and adjacent-token bigrams into buckets.
func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, StaticDimensions)
	tokens := strings.Fields(strings.ToLower(text))

	for _, token := range tokens {
		vector[hashToIndex(token)] += staticTokenWeight
	}
	for i := 0; i+1 < len(tokens); i++ {
		vector[hashToIndex(tokens[i]+" "+tokens[i+1])] += staticBigramWeight
	}
	return vector
}

func hashToIndex(s string) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() % uint32(StaticDimensions))
}

func (e *StaticEmbedder) Dimensions() int {
	return StaticDimensions
}

func (e *StaticEmbedder) ModelName() string {
	return "static-fnv"
}

func (e *StaticEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
