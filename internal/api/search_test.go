package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/schema"
	"github.com/ragline/ragline/internal/store"
)

// newSearchNode serves a SearchAPI over an in-memory bleve index.
func newSearchNode(t *testing.T) *httptest.Server {
	t.Helper()
	backend, err := store.NewBleveLexicalIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	srv := httptest.NewServer(NewSearchAPI(backend, testLogger()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func indexChunk(t *testing.T, srv *httptest.Server, req schema.IndexRequest) schema.IndexResponse {
	t.Helper()
	var out schema.IndexResponse
	status := postJSON(t, srv.URL+"/index", req, &out)
	require.Equal(t, http.StatusOK, status)
	return out
}

func TestSearchNode_IndexAndSearch(t *testing.T) {
	srv := newSearchNode(t)
	page := 4

	// Given an indexed chunk
	receipt := indexChunk(t, srv, schema.IndexRequest{
		DocumentID: "handbook",
		ChunkID:    2,
		Source:     "handbook.pdf",
		Page:       &page,
		Text:       "incident response escalation policy",
		Tags:       []string{"ops", "policy"},
	})
	assert.Equal(t, "bleve", receipt.Index)
	assert.Equal(t, "handbook::2", receipt.ID)
	assert.Equal(t, "indexed", receipt.Result)

	// When searching for one of its terms
	var out schema.SearchResponse
	status := postJSON(t, srv.URL+"/search", schema.SearchRequest{Query: "escalation"}, &out)

	// Then the chunk comes back with its metadata intact
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, out.Total)
	hit := out.Hits[0]
	assert.Equal(t, "handbook", hit.DocumentID)
	assert.Equal(t, 2, hit.ChunkID)
	assert.Equal(t, "handbook.pdf", hit.Source)
	require.NotNil(t, hit.Page)
	assert.Equal(t, 4, *hit.Page)
	assert.Equal(t, "incident response escalation policy", hit.Text)
	assert.Equal(t, []string{"ops", "policy"}, hit.Tags)
	assert.Greater(t, hit.Score, 0.0)
}

func TestSearchNode_HitsOrderedByScore(t *testing.T) {
	srv := newSearchNode(t)
	indexChunk(t, srv, schema.IndexRequest{
		DocumentID: "d", ChunkID: 0, Source: "d.txt",
		Text: "database migration checklist migration steps migration",
	})
	indexChunk(t, srv, schema.IndexRequest{
		DocumentID: "d", ChunkID: 1, Source: "d.txt",
		Text: "the migration happens during the maintenance window",
	})

	var out schema.SearchResponse
	status := postJSON(t, srv.URL+"/search", schema.SearchRequest{Query: "migration"}, &out)

	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 2, out.Total)
	assert.GreaterOrEqual(t, out.Hits[0].Score, out.Hits[1].Score)
}

func TestSearchNode_FilterByDocumentIDs(t *testing.T) {
	srv := newSearchNode(t)
	indexChunk(t, srv, schema.IndexRequest{
		DocumentID: "a", ChunkID: 0, Source: "a.txt", Text: "vpc peering setup",
	})
	indexChunk(t, srv, schema.IndexRequest{
		DocumentID: "b", ChunkID: 0, Source: "b.txt", Text: "vpc flow logging",
	})

	var out schema.SearchResponse
	status := postJSON(t, srv.URL+"/search", schema.SearchRequest{
		Query:       "vpc",
		DocumentIDs: []string{"a"},
	}, &out)

	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, out.Total)
	assert.Equal(t, "a", out.Hits[0].DocumentID)
}

func TestSearchNode_FilterBySources(t *testing.T) {
	srv := newSearchNode(t)
	indexChunk(t, srv, schema.IndexRequest{
		DocumentID: "a", ChunkID: 0, Source: "guide.pdf", Text: "backup rotation policy",
	})
	indexChunk(t, srv, schema.IndexRequest{
		DocumentID: "b", ChunkID: 0, Source: "notes.txt", Text: "backup storage costs",
	})

	var out schema.SearchResponse
	status := postJSON(t, srv.URL+"/search", schema.SearchRequest{
		Query:   "backup",
		Sources: []string{"notes.txt"},
	}, &out)

	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, out.Total)
	assert.Equal(t, "notes.txt", out.Hits[0].Source)
}

func TestSearchNode_NoMatches(t *testing.T) {
	srv := newSearchNode(t)
	indexChunk(t, srv, schema.IndexRequest{
		DocumentID: "d", ChunkID: 0, Source: "d.txt", Text: "ordinary content",
	})

	var out schema.SearchResponse
	status := postJSON(t, srv.URL+"/search", schema.SearchRequest{Query: "zeppelin"}, &out)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, out.Total)
	assert.Empty(t, out.Hits)
}

func TestSearchNode_TopKClamped(t *testing.T) {
	// Given an oversized top_k
	srv := newSearchNode(t)
	indexChunk(t, srv, schema.IndexRequest{
		DocumentID: "d", ChunkID: 0, Source: "d.txt", Text: "clamp test content",
	})

	// When searching with top_k far past the maximum
	var out schema.SearchResponse
	status := postJSON(t, srv.URL+"/search", schema.SearchRequest{Query: "clamp", TopK: 500}, &out)

	// Then the request is served, not rejected
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, out.Total)
}

func TestSearchNode_EmptyQueryRejected(t *testing.T) {
	srv := newSearchNode(t)

	var out schema.ErrorResponse
	status := postJSON(t, srv.URL+"/search", schema.SearchRequest{Query: ""}, &out)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "query must not be empty", out.Detail)
}

func TestSearchNode_IndexValidation(t *testing.T) {
	srv := newSearchNode(t)

	tests := []struct {
		name string
		req  schema.IndexRequest
		want string
	}{
		{
			name: "missing document_id",
			req:  schema.IndexRequest{ChunkID: 0, Source: "s.txt", Text: "text"},
			want: "document_id must not be empty",
		},
		{
			name: "negative chunk_id",
			req:  schema.IndexRequest{DocumentID: "d", ChunkID: -1, Source: "s.txt", Text: "text"},
			want: "chunk_id must not be negative",
		},
		{
			name: "missing text",
			req:  schema.IndexRequest{DocumentID: "d", ChunkID: 0, Source: "s.txt"},
			want: "text must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out schema.ErrorResponse
			status := postJSON(t, srv.URL+"/index", tt.req, &out)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.want, out.Detail)
		})
	}
}

func TestSearchNode_Health(t *testing.T) {
	srv := newSearchNode(t)

	var out schema.HealthResponse
	status := getJSON(t, srv.URL+"/health", &out)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, "searchd", out.Service)
	assert.NotEmpty(t, out.Time)
	require.NotNil(t, out.LexicalReady)
	assert.True(t, *out.LexicalReady)
	assert.Nil(t, out.VectorReady)
}

func TestSearchNode_Metrics(t *testing.T) {
	srv := newSearchNode(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
