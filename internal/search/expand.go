package search

import (
	"context"
	"sort"

	"github.com/ragline/ragline/internal/store"
)

// RetrievedChunk is a chunk that survived retrieval, carrying the
// evidence markers the ranking and citation stages run on.
type RetrievedChunk struct {
	Chunk              *store.Chunk
	IsCenter           bool
	CenterScore        float64
	DistanceFromCenter int
	EvidenceScore      float64
}

type neighborClaim struct {
	centerScore float64
	distance    int
}

// expandNeighbors stitches the ±window id range around every center and
// batch-fetches it from the vector store. Ids below zero are skipped and
// missing ids are silently omitted. A chunk reachable from several
// centers keeps the smallest distance, the higher center score breaking
// ties.
func (e *Engine) expandNeighbors(ctx context.Context, centers []*candidate) ([]RetrievedChunk, error) {
	window := e.params.NeighborWindow
	claims := make(map[string]neighborClaim)
	ids := make([]string, 0, len(centers)*(2*window+1))

	for _, c := range centers {
		for off := -window; off <= window; off++ {
			chunkID := c.chunk.ChunkID + off
			if chunkID < 0 {
				continue
			}
			dist := off
			if dist < 0 {
				dist = -dist
			}
			key := store.ChunkKey(c.chunk.DocumentID, chunkID)
			prev, seen := claims[key]
			if seen && (prev.distance < dist ||
				(prev.distance == dist && prev.centerScore >= c.fused)) {
				continue
			}
			claims[key] = neighborClaim{centerScore: c.fused, distance: dist}
			if !seen {
				ids = append(ids, key)
			}
		}
	}

	fetched, err := e.vectors.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	chunks := make([]RetrievedChunk, 0, len(fetched))
	for _, ch := range fetched {
		claim := claims[ch.Key()]
		chunks = append(chunks, RetrievedChunk{
			Chunk:              ch,
			IsCenter:           claim.distance == 0,
			CenterScore:        claim.centerScore,
			DistanceFromCenter: claim.distance,
			EvidenceScore:      claim.centerScore - float64(claim.distance)*e.params.DistancePenalty,
		})
	}
	return chunks, nil
}

// rankChunks orders the set by evidence score descending, breaking ties
// by (document_id, chunk_id) ascending, then truncates to maxChunks.
func rankChunks(chunks []RetrievedChunk, maxChunks int) []RetrievedChunk {
	sort.Slice(chunks, func(i, j int) bool {
		return compareRetrieved(&chunks[i], &chunks[j])
	})
	if maxChunks > 0 && len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}
	return chunks
}

func compareRetrieved(a, b *RetrievedChunk) bool {
	if a.EvidenceScore != b.EvidenceScore {
		return a.EvidenceScore > b.EvidenceScore
	}
	if a.Chunk.DocumentID != b.Chunk.DocumentID {
		return a.Chunk.DocumentID < b.Chunk.DocumentID
	}
	return a.Chunk.ChunkID < b.Chunk.ChunkID
}
