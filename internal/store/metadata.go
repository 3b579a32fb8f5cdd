package store

import (
	"strconv"
	"strings"
)

// Metadata field names shared by the vector backends.
const (
	FieldDocumentID = "document_id"
	FieldChunkID    = "chunk_id"
	FieldPage       = "page"
	FieldSource     = "source"
	FieldTags       = "tags"
	FieldVersion    = "version"
)

// FlattenMetadata converts a chunk's metadata to the scalar-only form the
// vector stores accept: tags are comma-joined, empty fields are dropped.
func FlattenMetadata(c *Chunk) map[string]any {
	m := map[string]any{
		FieldDocumentID: c.DocumentID,
		FieldChunkID:    c.ChunkID,
	}
	if c.Page > 0 {
		m[FieldPage] = c.Page
	}
	if c.Source != "" {
		m[FieldSource] = c.Source
	}
	if len(c.Tags) > 0 {
		m[FieldTags] = strings.Join(c.Tags, ",")
	}
	if c.Version != "" {
		m[FieldVersion] = c.Version
	}
	return m
}

// ChunkFromMetadata rebuilds a chunk from flattened metadata. JSON numbers
// arrive as float64, so numeric fields accept several concrete types.
func ChunkFromMetadata(id, text string, meta map[string]any) *Chunk {
	c := &Chunk{Text: text}

	if v, ok := meta[FieldDocumentID].(string); ok {
		c.DocumentID = v
	}
	c.ChunkID = metaInt(meta[FieldChunkID])
	if c.DocumentID == "" || meta[FieldChunkID] == nil {
		// Fall back to the deterministic id for stores that return
		// sparse metadata.
		if doc, cid, err := ParseChunkKey(id); err == nil {
			if c.DocumentID == "" {
				c.DocumentID = doc
			}
			if meta[FieldChunkID] == nil {
				c.ChunkID = cid
			}
		}
	}
	c.Page = metaInt(meta[FieldPage])
	if v, ok := meta[FieldSource].(string); ok {
		c.Source = v
	}
	if v, ok := meta[FieldTags].(string); ok && v != "" {
		c.Tags = splitTags(v)
	}
	if v, ok := meta[FieldVersion].(string); ok {
		c.Version = v
	}
	return c
}

func metaInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(n)
		if err == nil {
			return i
		}
	}
	return 0
}

func splitTags(s string) []string {
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
