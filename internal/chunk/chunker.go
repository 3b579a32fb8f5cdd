// Package chunk splits parsed document text into fixed-size overlapping
// windows of whitespace tokens, the retrieval unit of the system.
package chunk

import (
	"strings"

	"github.com/ragline/ragline/internal/errors"
)

// Chunking defaults.
const (
	// DefaultSize is the window size in whitespace tokens.
	DefaultSize = 500
	// DefaultOverlap is the token overlap between consecutive windows
	// of the same page.
	DefaultOverlap = 50
)

// Chunk is one window of document text.
type Chunk struct {
	// ID is the chunk ordinal, dense and contiguous from 0 across the
	// whole document. Neighbor expansion at query time depends on this
	// numbering, so it must never skip values.
	ID int
	// Page is the 1-based page the window came from.
	Page int
	// Text is the window content, tokens joined by single spaces.
	Text string
}

// Chunker emits ordered chunks from per-page text.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. overlap must be smaller than size or the window
// step would be zero and chunking would never advance.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, errors.ValidationError("chunk size must be positive", nil)
	}
	if overlap < 0 {
		return nil, errors.ValidationError("chunk overlap must not be negative", nil)
	}
	if overlap >= size {
		return nil, errors.ValidationError("chunk overlap must be smaller than chunk size", nil)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split chunks the document given as one string per page, in reading
// order. Pages without tokens contribute no chunks but do not break the
// numbering. A document shorter than the window yields exactly one chunk.
func (c *Chunker) Split(pages []string) []Chunk {
	chunks := make([]Chunk, 0)
	id := 0

	for p, page := range pages {
		tokens := strings.Fields(page)
		if len(tokens) == 0 {
			continue
		}

		start := 0
		for start < len(tokens) {
			end := start + c.size
			if end > len(tokens) {
				end = len(tokens)
			}

			chunks = append(chunks, Chunk{
				ID:   id,
				Page: p + 1,
				Text: strings.Join(tokens[start:end], " "),
			})
			id++

			if end == len(tokens) {
				break
			}
			start = end - c.overlap
		}
	}

	return chunks
}
