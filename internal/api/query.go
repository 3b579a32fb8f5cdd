package api

import (
	"context"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ragline/ragline/internal/llm"
	"github.com/ragline/ragline/internal/schema"
	"github.com/ragline/ragline/internal/search"
	"github.com/ragline/ragline/internal/store"
	"github.com/ragline/ragline/internal/telemetry"
)

const queryService = "queryd"

// QueryAPI is the HTTP surface of the query node: hybrid retrieval plus
// grounded answer generation.
type QueryAPI struct {
	engine    *search.Engine
	generator llm.Generator
	vectors   store.VectorStore
	lexical   store.LexicalIndex
	stats     *telemetry.QueryStats
	logger    *slog.Logger
}

// NewQueryAPI builds the query node surface. vectors and lexical are the
// stores the engine runs on; the node probes them directly for /health.
func NewQueryAPI(engine *search.Engine, generator llm.Generator, vectors store.VectorStore, lexical store.LexicalIndex, stats *telemetry.QueryStats, logger *slog.Logger) *QueryAPI {
	if stats == nil {
		stats = telemetry.NewQueryStats()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryAPI{
		engine:    engine,
		generator: generator,
		vectors:   vectors,
		lexical:   lexical,
		stats:     stats,
		logger:    logger,
	}
}

// Handler returns the node's routed handler with middleware applied.
func (a *QueryAPI) Handler() http.Handler {
	mux := http.NewServeMux()
	handle(mux, a.logger, queryService, "POST /query", http.HandlerFunc(a.handleQuery))
	handle(mux, a.logger, queryService, "GET /stats", http.HandlerFunc(a.handleStats))
	handle(mux, a.logger, queryService, "GET /health", http.HandlerFunc(a.handleHealth))
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (a *QueryAPI) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req schema.QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.logger, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, a.logger, r, err)
		return
	}

	res, err := a.engine.Retrieve(r.Context(), req.Question, search.Options{
		TopK:       req.TopK,
		DocumentID: req.DocumentID,
	})
	if err != nil {
		writeError(w, a.logger, r, err)
		return
	}

	modelUsed := req.ModelName
	if modelUsed == "" {
		modelUsed = a.generator.ModelName()
	}

	// Nothing retrieved: answer honestly without spending a model call.
	if len(res.Chunks) == 0 {
		writeJSON(w, http.StatusOK, schema.QueryResponse{
			Answer:      llm.UnknownAnswer,
			Sources:     []schema.Source{},
			ContextUsed: 0,
			ModelUsed:   modelUsed,
		})
		return
	}

	contextText := search.BuildContext(res.Chunks, a.engine.Params().ContextCharBudget)
	contextChars := utf8.RuneCountInString(contextText)
	telemetry.ContextChars.Observe(float64(contextChars))

	answer, err := a.generator.Generate(r.Context(), req.Question, contextText, req.ModelName)
	if err != nil {
		writeError(w, a.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, schema.QueryResponse{
		Answer:      answer,
		Sources:     search.BuildSources(res.Chunks, req.TopK),
		ContextUsed: contextChars,
		ModelUsed:   modelUsed,
	})
}

func (a *QueryAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.stats.Snapshot())
}

func (a *QueryAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	_, err := a.vectors.Count(ctx)
	vectorReady := err == nil
	lexicalReady := a.lexical.Ready(ctx) == nil

	writeJSON(w, http.StatusOK, schema.HealthResponse{
		Status:       "ok",
		Service:      queryService,
		Time:         healthTime(),
		VectorReady:  &vectorReady,
		LexicalReady: &lexicalReady,
	})
}
