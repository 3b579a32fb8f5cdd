package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/chunk"
	"github.com/ragline/ragline/internal/embed"
	"github.com/ragline/ragline/internal/ingest"
	"github.com/ragline/ragline/internal/search"
	"github.com/ragline/ragline/internal/store"
	"github.com/ragline/ragline/internal/telemetry"
)

// scriptedGenerator answers every question with a fixed string and
// records what it was asked.
type scriptedGenerator struct {
	answer string
	model  string
	err    error

	calls       int
	lastContext string
	lastModel   string
}

func (g *scriptedGenerator) Generate(ctx context.Context, question, contextText, model string) (string, error) {
	g.calls++
	g.lastContext = contextText
	g.lastModel = model
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func (g *scriptedGenerator) ModelName() string              { return g.model }
func (g *scriptedGenerator) Available(context.Context) bool { return true }
func (g *scriptedGenerator) Close() error                   { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testNodes runs all three nodes in-process: the search node owns a
// bleve index, the other two reach it through the HTTP client, and the
// ingestion and query nodes share one in-memory vector store.
type testNodes struct {
	vectors   *store.HNSWVectorStore
	lexical   *store.RemoteLexicalIndex
	embedder  *embed.StaticEmbedder
	generator *scriptedGenerator
	stats     *telemetry.QueryStats

	searchSrv *httptest.Server
	ingestSrv *httptest.Server
	querySrv  *httptest.Server
}

func newTestNodes(t *testing.T) *testNodes {
	t.Helper()
	logger := testLogger()

	vectors, err := store.NewHNSWVectorStore("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { vectors.Close() })

	backend, err := store.NewBleveLexicalIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	searchSrv := httptest.NewServer(NewSearchAPI(backend, logger).Handler())
	t.Cleanup(searchSrv.Close)

	lexical := store.NewRemoteLexicalIndex(searchSrv.URL, time.Second)
	embedder := embed.NewStaticEmbedder()

	chunker, err := chunk.New(chunk.DefaultSize, chunk.DefaultOverlap)
	require.NoError(t, err)
	pipeline, err := ingest.NewPipeline(vectors, lexical, embedder, chunker, ingest.WithLogger(logger))
	require.NoError(t, err)

	ingestSrv := httptest.NewServer(NewIngestAPI(pipeline, vectors, 0, logger).Handler())
	t.Cleanup(ingestSrv.Close)

	stats := telemetry.NewQueryStats()
	engine, err := search.NewEngine(vectors, lexical, embedder, search.DefaultParams(),
		search.WithStats(stats), search.WithLogger(logger))
	require.NoError(t, err)

	generator := &scriptedGenerator{answer: "grounded answer", model: "test-chat"}
	querySrv := httptest.NewServer(NewQueryAPI(engine, generator, vectors, lexical, stats, logger).Handler())
	t.Cleanup(querySrv.Close)

	return &testNodes{
		vectors:   vectors,
		lexical:   lexical,
		embedder:  embedder,
		generator: generator,
		stats:     stats,
		searchSrv: searchSrv,
		ingestSrv: ingestSrv,
		querySrv:  querySrv,
	}
}

// seedChunks embeds and writes chunks into both stores directly,
// bypassing the ingestion endpoint.
func (n *testNodes) seedChunks(t *testing.T, chunks ...*store.Chunk) {
	t.Helper()
	ctx := context.Background()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := n.embedder.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	for i, c := range chunks {
		c.Embedding = vecs[i]
	}

	require.NoError(t, n.vectors.Upsert(ctx, chunks))
	for _, c := range chunks {
		_, err := n.lexical.Index(ctx, c)
		require.NoError(t, err)
	}
}

func textChunk(doc string, id int, text string) *store.Chunk {
	return &store.Chunk{
		DocumentID: doc,
		ChunkID:    id,
		Text:       text,
		Source:     doc + ".txt",
		Page:       1,
	}
}

// postJSON posts body to url and decodes the response into out when
// out is non-nil.
func postJSON(t *testing.T, url string, body, out any) int {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// uploadFile posts a multipart document to the ingestion node and
// decodes the response into out when out is non-nil.
func uploadFile(t *testing.T, baseURL, filename string, content []byte, fields map[string]string, out any) int {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(baseURL+"/ingest", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}
