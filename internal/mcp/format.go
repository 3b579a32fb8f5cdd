package mcp

import (
	"github.com/ragline/ragline/internal/schema"
	"github.com/ragline/ragline/internal/store"
)

// ToSourceOutput converts one citation to the tool output format.
func ToSourceOutput(src schema.Source) SourceOutput {
	return SourceOutput{
		DocumentID: src.DocumentID,
		ChunkID:    src.ChunkID,
		Source:     src.Source,
		Page:       src.Page,
		Snippet:    src.Snippet,
	}
}

// ToHitOutput converts one BM25 hit to the tool output format.
func ToHitOutput(h *store.LexicalHit) HitOutput {
	if h == nil || h.Chunk == nil {
		return HitOutput{}
	}

	out := HitOutput{
		DocumentID: h.Chunk.DocumentID,
		ChunkID:    h.Chunk.ChunkID,
		Source:     h.Chunk.Source,
		Text:       h.Chunk.Text,
		Tags:       h.Chunk.Tags,
		Score:      h.Score,
	}
	if h.Chunk.Page > 0 {
		page := h.Chunk.Page
		out.Page = &page
	}
	return out
}
