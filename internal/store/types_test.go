package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkKey_Format(t *testing.T) {
	// Given: a document id and chunk id
	// When: I build the deterministic key
	key := ChunkKey("doc1", 7)

	// Then: it is "{document_id}::{chunk_id}"
	assert.Equal(t, "doc1::7", key)

	// And: whitespace on the document id is trimmed
	assert.Equal(t, "doc1::0", ChunkKey("  doc1 ", 0))
}

func TestParseChunkKey_Roundtrip(t *testing.T) {
	// Given: keys built by ChunkKey
	cases := []struct {
		doc string
		id  int
	}{
		{"doc1", 0},
		{"report-2024", 42},
		{"has::separator", 3}, // document ids may contain "::"
	}

	for _, tc := range cases {
		// When: I parse the built key
		doc, id, err := ParseChunkKey(ChunkKey(tc.doc, tc.id))

		// Then: the parts roundtrip
		require.NoError(t, err)
		assert.Equal(t, tc.doc, doc)
		assert.Equal(t, tc.id, id)
	}
}

func TestParseChunkKey_Malformed(t *testing.T) {
	// Given: strings that are not valid chunk keys
	for _, key := range []string{"", "doc1", "doc1::", "doc1::x", "doc1:7"} {
		// When: I parse them
		_, _, err := ParseChunkKey(key)

		// Then: parsing fails
		assert.Error(t, err, "key %q", key)
	}
}

func TestChunk_Key(t *testing.T) {
	ch := &Chunk{DocumentID: "doc1", ChunkID: 3}
	assert.Equal(t, "doc1::3", ch.Key())
}

func TestVectorHit_Similarity(t *testing.T) {
	// Given: a hit at cosine distance 0.25
	hit := &VectorHit{Distance: 0.25}

	// Then: similarity is 1 - distance
	assert.InDelta(t, 0.75, hit.Similarity(), 1e-9)
}
