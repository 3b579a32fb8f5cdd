package search

import (
	"math"
	"sort"

	"github.com/ragline/ragline/internal/store"
)

// candidate is a BM25 hit joined with its vector-store chunk during the
// center-selection stages.
type candidate struct {
	chunk     *store.Chunk
	bm25Rank  int // 1-based rank in the lexical result list
	bm25Score float64
	cosine    float64
	fused     float64
}

// cosineSimilarity works on unnormalized vectors. Empty or mismatched
// vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// minMaxNormalize maps values onto [0,1] over the candidate set. A
// degenerate range maps everything to 1 so a lone candidate keeps full
// weight instead of being zeroed out.
func minMaxNormalize(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	out := make([]float64, len(values))
	if hi == lo {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// fuseCandidates normalizes the cosine and BM25 signals independently,
// mixes them as alpha*cos + (1-alpha)*bm25, and sorts best-first.
func fuseCandidates(cands []*candidate, alpha float64) {
	if len(cands) == 0 {
		return
	}

	cos := make([]float64, len(cands))
	lex := make([]float64, len(cands))
	for i, c := range cands {
		cos[i] = c.cosine
		lex[i] = c.bm25Score
	}
	cosN := minMaxNormalize(cos)
	lexN := minMaxNormalize(lex)

	for i, c := range cands {
		c.fused = alpha*cosN[i] + (1-alpha)*lexN[i]
	}

	sort.Slice(cands, func(i, j int) bool {
		return compareCandidates(cands[i], cands[j])
	})
}

// compareCandidates orders by fused score descending, then by
// (document_id, chunk_id) ascending for determinism.
func compareCandidates(a, b *candidate) bool {
	if a.fused != b.fused {
		return a.fused > b.fused
	}
	if a.chunk.DocumentID != b.chunk.DocumentID {
		return a.chunk.DocumentID < b.chunk.DocumentID
	}
	return a.chunk.ChunkID < b.chunk.ChunkID
}
