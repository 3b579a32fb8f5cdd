package search

import (
	"strconv"

	"github.com/ragline/ragline/internal/schema"
)

const snippetChars = 200

// BuildSources emits up to topK citations from the ranked set,
// deduplicated by (document_id, chunk_id). Centers lead, neighbors
// follow, each group keeping its ranked order: a weak center still gets
// cited ahead of a strong center's neighbors.
func BuildSources(chunks []RetrievedChunk, topK int) []schema.Source {
	if topK <= 0 {
		topK = DefaultTopK
	}

	ordered := make([]RetrievedChunk, 0, len(chunks))
	for i := range chunks {
		if chunks[i].IsCenter {
			ordered = append(ordered, chunks[i])
		}
	}
	for i := range chunks {
		if !chunks[i].IsCenter {
			ordered = append(ordered, chunks[i])
		}
	}

	seen := make(map[string]struct{}, len(ordered))
	sources := make([]schema.Source, 0, topK)
	for i := range ordered {
		ch := ordered[i].Chunk
		key := ch.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		sources = append(sources, schema.Source{
			DocumentID: ch.DocumentID,
			ChunkID:    strconv.Itoa(ch.ChunkID),
			Source:     ch.Source,
			Page:       pagePtr(ch.Page),
			Snippet:    snippet(ch.Text, snippetChars),
		})
		if len(sources) >= topK {
			break
		}
	}
	return sources
}

// snippet truncates to limit runes without splitting a multibyte
// character.
func snippet(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}

func pagePtr(page int) *int {
	if page <= 0 {
		return nil
	}
	return &page
}
