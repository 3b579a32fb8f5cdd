package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/schema"
)

// fakeSearchNode serves canned hits on POST /search.
func fakeSearchNode(t *testing.T, resp schema.SearchResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/search", r.URL.Path)

		var req schema.SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Query, "Command should forward the query")

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func searchTestConfig(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	return writeTestConfig(t, tmpDir, "data_dir: "+filepath.Join(tmpDir, "data")+"\n")
}

func TestSearchCmd_PrintsHits(t *testing.T) {
	// Given: a search node with one hit
	page := 4
	srv := fakeSearchNode(t, schema.SearchResponse{
		Hits: []schema.Hit{{
			DocumentID: "doc-1",
			ChunkID:    3,
			Source:     "manual.pdf",
			Page:       &page,
			Text:       "the warranty covers parts and labor for two years from purchase",
			Score:      2.5,
		}},
		Total: 1,
	})
	cfgPath := searchTestConfig(t)

	// When: running a one-shot search
	output, err := runRoot(t, "search", "warranty", "--config", cfgPath, "--search-url", srv.URL)

	// Then: the hit should be printed with its citation fields
	require.NoError(t, err)
	assert.Contains(t, output, `1 hit(s) for "warranty"`)
	assert.Contains(t, output, "doc-1 #3")
	assert.Contains(t, output, "manual.pdf p.4")
	assert.Contains(t, output, "score 2.500")
	assert.Contains(t, output, "warranty covers parts and labor")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	// Given: a search node with one hit
	srv := fakeSearchNode(t, schema.SearchResponse{
		Hits:  []schema.Hit{{DocumentID: "doc-1", ChunkID: 0, Source: "notes.txt", Text: "reactor", Score: 1.0}},
		Total: 1,
	})
	cfgPath := searchTestConfig(t)

	// When: running with --json
	output, err := runRoot(t, "search", "reactor", "--config", cfgPath, "--search-url", srv.URL, "--json")

	// Then: the raw response should round-trip
	require.NoError(t, err)

	var resp schema.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "doc-1", resp.Hits[0].DocumentID)
}

func TestSearchCmd_NoHits(t *testing.T) {
	// Given: a search node with nothing to return
	srv := fakeSearchNode(t, schema.SearchResponse{Hits: []schema.Hit{}, Total: 0})
	cfgPath := searchTestConfig(t)

	// When: searching for something absent
	output, err := runRoot(t, "search", "submarine", "--config", cfgPath, "--search-url", srv.URL)

	// Then: it should say so rather than print an empty table
	require.NoError(t, err)
	assert.Contains(t, output, "no hits")
	assert.Contains(t, output, "submarine")
}

func TestSearchCmd_JoinsQueryWords(t *testing.T) {
	// Given: a search node that records the query it got
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req schema.SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = req.Query
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(schema.SearchResponse{Hits: []schema.Hit{}}))
	}))
	t.Cleanup(srv.Close)
	cfgPath := searchTestConfig(t)

	// When: passing the query as separate args
	_, err := runRoot(t, "search", "return", "policy", "--config", cfgPath, "--search-url", srv.URL)

	// Then: the words should be joined into one query string
	require.NoError(t, err)
	assert.Equal(t, "return policy", got)
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	// When: running search with no query
	_, err := runRoot(t, "search")

	// Then: it should refuse
	require.Error(t, err)
}

func TestSnippet(t *testing.T) {
	cases := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short text unchanged", "two year warranty", 40, "two year warranty"},
		{"whitespace collapsed", "two\n  year\twarranty", 40, "two year warranty"},
		{"cut on word boundary", "the warranty covers parts and labor", 20, "the warranty covers..."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, snippet(tc.in, tc.n))
		})
	}
}
