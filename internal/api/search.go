package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ragline/ragline/internal/schema"
	"github.com/ragline/ragline/internal/store"
)

const searchService = "searchd"

// SearchAPI is the HTTP surface of the search node: a typed facade over
// the BM25 backend. The node is stateless; everything lives in the
// backing index.
type SearchAPI struct {
	backend store.LexicalIndex
	logger  *slog.Logger
}

// NewSearchAPI builds the search node surface over the given backend.
func NewSearchAPI(backend store.LexicalIndex, logger *slog.Logger) *SearchAPI {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchAPI{backend: backend, logger: logger}
}

// Handler returns the node's routed handler with middleware applied.
func (a *SearchAPI) Handler() http.Handler {
	mux := http.NewServeMux()
	handle(mux, a.logger, searchService, "POST /search", http.HandlerFunc(a.handleSearch))
	handle(mux, a.logger, searchService, "POST /index", http.HandlerFunc(a.handleIndex))
	handle(mux, a.logger, searchService, "GET /health", http.HandlerFunc(a.handleHealth))
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (a *SearchAPI) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req schema.SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.logger, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, a.logger, r, err)
		return
	}

	var filter *store.LexicalFilter
	if len(req.DocumentIDs) > 0 || len(req.Sources) > 0 {
		filter = &store.LexicalFilter{DocumentIDs: req.DocumentIDs, Sources: req.Sources}
	}

	hits, err := a.backend.Search(r.Context(), req.Query, req.TopK, filter)
	if err != nil {
		writeError(w, a.logger, r, err)
		return
	}

	resp := schema.SearchResponse{Hits: make([]schema.Hit, 0, len(hits)), Total: len(hits)}
	for _, h := range hits {
		hit := schema.Hit{
			DocumentID: h.Chunk.DocumentID,
			ChunkID:    h.Chunk.ChunkID,
			Source:     h.Chunk.Source,
			Text:       h.Chunk.Text,
			Tags:       h.Chunk.Tags,
			Score:      h.Score,
		}
		if hit.Tags == nil {
			hit.Tags = []string{}
		}
		if h.Chunk.Page > 0 {
			page := h.Chunk.Page
			hit.Page = &page
		}
		resp.Hits = append(resp.Hits, hit)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *SearchAPI) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req schema.IndexRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.logger, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, a.logger, r, err)
		return
	}

	chunk := &store.Chunk{
		DocumentID: req.DocumentID,
		ChunkID:    req.ChunkID,
		Source:     req.Source,
		Text:       req.Text,
		Tags:       req.Tags,
	}
	if req.Page != nil {
		chunk.Page = *req.Page
	}

	receipt, err := a.backend.Index(r.Context(), chunk)
	if err != nil {
		writeError(w, a.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schema.IndexResponse{
		Index:  receipt.Index,
		ID:     receipt.ID,
		Result: receipt.Result,
	})
}

func (a *SearchAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	ready := a.backend.Ready(ctx) == nil

	writeJSON(w, http.StatusOK, schema.HealthResponse{
		Status:       "ok",
		Service:      searchService,
		Time:         healthTime(),
		LexicalReady: &ready,
	})
}
