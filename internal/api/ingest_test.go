package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/embed"
	"github.com/ragline/ragline/internal/schema"
)

func TestIngestNode_TextUploadDefaults(t *testing.T) {
	nodes := newTestNodes(t)

	// Given a plain text upload with no form fields
	var out schema.IngestResponse
	status := uploadFile(t, nodes.ingestSrv.URL, "notes.txt", []byte("alpha beta gamma"), nil, &out)

	// Then identity defaults derive from the filename
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "embedded", out.Status)
	assert.Equal(t, "notes", out.DocumentID)
	assert.Equal(t, 16, out.Characters)
	assert.Equal(t, 1, out.Chunks)
	assert.Equal(t, embed.StaticDimensions, out.EmbeddingDim)
	require.NotNil(t, out.Preview)
	assert.Equal(t, "alpha beta gamma", *out.Preview)
}

func TestIngestNode_FieldsReachBothStores(t *testing.T) {
	nodes := newTestNodes(t)

	// Given an upload with explicit identity fields and tags
	var out schema.IngestResponse
	status := uploadFile(t, nodes.ingestSrv.URL, "q3.txt",
		[]byte("quarterly revenue projections for the emu farm"),
		map[string]string{
			"document_id": "finance-q3",
			"source":      "finance/q3.txt",
			"version":     "2",
			"tags":        "finance, projections",
		}, &out)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "finance-q3", out.DocumentID)

	// Then the search node can find it with the metadata attached
	var found schema.SearchResponse
	status = postJSON(t, nodes.searchSrv.URL+"/search", schema.SearchRequest{Query: "emu"}, &found)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, found.Total)
	hit := found.Hits[0]
	assert.Equal(t, "finance-q3", hit.DocumentID)
	assert.Equal(t, "finance/q3.txt", hit.Source)
	assert.Equal(t, []string{"finance", "projections"}, hit.Tags)

	// And the vector store holds the chunk
	count, err := nodes.vectors.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngestNode_MissingFileField(t *testing.T) {
	nodes := newTestNodes(t)

	// Given a multipart body without a file part
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("document_id", "d"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(nodes.ingestSrv.URL+"/ingest", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestNode_EmptyFile(t *testing.T) {
	nodes := newTestNodes(t)

	var out schema.ErrorResponse
	status := uploadFile(t, nodes.ingestSrv.URL, "empty.txt", nil, nil, &out)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "uploaded file is empty", out.Detail)
}

func TestIngestNode_WhitespaceOnlyFile(t *testing.T) {
	nodes := newTestNodes(t)

	var out schema.ErrorResponse
	status := uploadFile(t, nodes.ingestSrv.URL, "blank.txt", []byte("   \n\t  "), nil, &out)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "no chunks produced from document", out.Detail)
}

func TestIngestNode_MalformedPDF(t *testing.T) {
	nodes := newTestNodes(t)

	var out schema.ErrorResponse
	status := uploadFile(t, nodes.ingestSrv.URL, "broken.pdf", []byte("not a pdf at all"), nil, &out)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, out.Detail, "could not parse PDF")
}

func TestIngestNode_ReingestOverwrites(t *testing.T) {
	nodes := newTestNodes(t)
	content := []byte("the zanzibar sighting report")

	// Given the same document uploaded twice
	var first, second schema.IngestResponse
	require.Equal(t, http.StatusOK,
		uploadFile(t, nodes.ingestSrv.URL, "dup.txt", content, nil, &first))
	require.Equal(t, http.StatusOK,
		uploadFile(t, nodes.ingestSrv.URL, "dup.txt", content, nil, &second))
	assert.Equal(t, first.Chunks, second.Chunks)

	// Then deterministic ids overwrite instead of duplicating
	var found schema.SearchResponse
	status := postJSON(t, nodes.searchSrv.URL+"/search", schema.SearchRequest{Query: "zanzibar"}, &found)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, found.Total)
}

func TestIngestNode_SearchNodeDownIsNotFatal(t *testing.T) {
	// Given an unreachable search node
	nodes := newTestNodes(t)
	nodes.searchSrv.Close()

	// When uploading a document
	var out schema.IngestResponse
	status := uploadFile(t, nodes.ingestSrv.URL, "solo.txt",
		[]byte("postgres replication uses write ahead logs"), nil, &out)

	// Then ingestion still succeeds and the vectors are written
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, out.Chunks)

	count, err := nodes.vectors.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngestNode_LargeDocumentChunking(t *testing.T) {
	nodes := newTestNodes(t)

	// Given 1200 whitespace tokens, window 500, overlap 50
	var b strings.Builder
	for i := 0; i < 1200; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "token%d", i)
	}

	var out schema.IngestResponse
	status := uploadFile(t, nodes.ingestSrv.URL, "d.txt", []byte(b.String()),
		map[string]string{"document_id": "d"}, &out)

	// Then the windows land at [0,500), [450,950), [900,1200)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, out.Chunks)
	assert.Equal(t, "d", out.DocumentID)
}

func TestIngestNode_Health(t *testing.T) {
	nodes := newTestNodes(t)

	var out schema.HealthResponse
	status := getJSON(t, nodes.ingestSrv.URL+"/health", &out)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, "ingestd", out.Service)
	require.NotNil(t, out.VectorReady)
	assert.True(t, *out.VectorReady)
	assert.Nil(t, out.LexicalReady)
}

func TestSplitTags(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"a,b", []string{"a", "b"}},
		{" a , b ", []string{"a", "b"}},
		{"a,,b,", []string{"a", "b"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, splitTags(tt.raw), "raw=%q", tt.raw)
	}
}
