// Package search implements hybrid retrieval: BM25 candidates are
// re-scored against the query embedding, the best become centers, and
// each center is stitched together with its neighboring chunks.
package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ragline/ragline/internal/config"
	"github.com/ragline/ragline/internal/embed"
	"github.com/ragline/ragline/internal/errors"
	"github.com/ragline/ragline/internal/store"
	"github.com/ragline/ragline/internal/telemetry"
)

// Retrieval path markers, recorded per query.
const (
	MethodHybrid     = "hybrid_bm25_vector_neighbors"
	MethodRestricted = "vector_restricted"
	MethodFallback   = "vector_fallback"
)

// DefaultTopK bounds the result count when the request leaves it unset.
const DefaultTopK = 5

// Params are the retrieval tuning knobs.
type Params struct {
	BM25Chunks         int
	CenterK            int
	NeighborWindow     int
	MaxContextChunks   int
	FusionAlpha        float64
	CenterRelThreshold float64
	DistancePenalty    float64
	ContextCharBudget  int
}

// DefaultParams returns the tuned defaults.
func DefaultParams() Params {
	return Params{
		BM25Chunks:         50,
		CenterK:            3,
		NeighborWindow:     2,
		MaxContextChunks:   30,
		FusionAlpha:        0.6,
		CenterRelThreshold: 0.85,
		DistancePenalty:    0.02,
		ContextCharBudget:  12000,
	}
}

// ParamsFromConfig lifts the hybrid section of the config.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		BM25Chunks:         cfg.Hybrid.BM25Chunks,
		CenterK:            cfg.Hybrid.CenterK,
		NeighborWindow:     cfg.Hybrid.NeighborWindow,
		MaxContextChunks:   cfg.Hybrid.MaxContextChunks,
		FusionAlpha:        cfg.Hybrid.FusionAlpha,
		CenterRelThreshold: cfg.Hybrid.CenterRelThreshold,
		DistancePenalty:    cfg.Hybrid.DistancePenalty,
		ContextCharBudget:  cfg.Hybrid.ContextCharBudget,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.BM25Chunks <= 0 {
		p.BM25Chunks = d.BM25Chunks
	}
	if p.CenterK <= 0 {
		p.CenterK = d.CenterK
	}
	if p.NeighborWindow < 0 {
		p.NeighborWindow = d.NeighborWindow
	}
	if p.MaxContextChunks <= 0 {
		p.MaxContextChunks = d.MaxContextChunks
	}
	if p.FusionAlpha <= 0 || p.FusionAlpha > 1 {
		p.FusionAlpha = d.FusionAlpha
	}
	if p.CenterRelThreshold <= 0 || p.CenterRelThreshold > 1 {
		p.CenterRelThreshold = d.CenterRelThreshold
	}
	if p.DistancePenalty < 0 {
		p.DistancePenalty = d.DistancePenalty
	}
	if p.ContextCharBudget <= 0 {
		p.ContextCharBudget = d.ContextCharBudget
	}
	return p
}

// Options control one retrieval.
type Options struct {
	// TopK bounds the vector paths and the citation list. Zero means
	// DefaultTopK.
	TopK int

	// DocumentID, when set, restricts retrieval to one document and
	// skips the hybrid stages entirely.
	DocumentID string
}

// Result is the ranked outcome of one retrieval pass.
type Result struct {
	Chunks   []RetrievedChunk
	Method   string
	BM25Hits int
}

// Engine runs the retrieval pipeline over a vector store, a lexical
// index, and an embedder.
type Engine struct {
	vectors  store.VectorStore
	lexical  store.LexicalIndex
	embedder embed.Embedder
	params   Params
	stats    *telemetry.QueryStats
	logger   *slog.Logger
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStats attaches an in-process stats collector for /stats.
func WithStats(stats *telemetry.QueryStats) Option {
	return func(e *Engine) {
		e.stats = stats
	}
}

// NewEngine builds the engine. All three dependencies are required.
func NewEngine(vectors store.VectorStore, lexical store.LexicalIndex, embedder embed.Embedder, params Params, opts ...Option) (*Engine, error) {
	if vectors == nil {
		return nil, errors.ConfigError("nil dependency: vector store is required", nil)
	}
	if lexical == nil {
		return nil, errors.ConfigError("nil dependency: lexical index is required", nil)
	}
	if embedder == nil {
		return nil, errors.ConfigError("nil dependency: embedder is required", nil)
	}

	e := &Engine{
		vectors:  vectors,
		lexical:  lexical,
		embedder: embedder,
		params:   params.withDefaults(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Params returns the normalized tuning knobs the engine runs with.
func (e *Engine) Params() Params {
	return e.params
}

// Retrieve runs one retrieval pass and returns the ranked chunk set.
// An empty result is not an error; the caller decides what an empty
// context means.
func (e *Engine) Retrieve(ctx context.Context, question string, opts Options) (*Result, error) {
	start := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.ValidationError("question must not be empty", nil)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	var (
		res *Result
		err error
	)
	if opts.DocumentID != "" {
		res, err = e.restricted(ctx, question, topK, opts.DocumentID)
	} else {
		res, err = e.hybrid(ctx, question, topK)
	}
	if err != nil {
		return nil, err
	}

	e.record(question, res, time.Since(start))
	return res, nil
}

// restricted answers from a single document: a where-filtered vector
// query, no fusion and no neighbor expansion.
func (e *Engine) restricted(ctx context.Context, question string, topK int, documentID string) (*Result, error) {
	vec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	hits, err := e.vectors.QueryByVector(ctx, vec, topK, map[string]string{store.FieldDocumentID: documentID})
	if err != nil {
		return nil, err
	}
	return e.vectorResult(hits, MethodRestricted, 0), nil
}

func (e *Engine) hybrid(ctx context.Context, question string, topK int) (*Result, error) {
	vec, bm25Hits, err := e.pullSignals(ctx, question)
	if err != nil {
		return nil, err
	}

	if len(bm25Hits) == 0 {
		return e.fallback(ctx, vec, topK, 0)
	}

	cands, err := e.fetchCenters(ctx, vec, bm25Hits)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		e.logger.Warn("bm25 centers missing from vector store",
			slog.Int("bm25_hits", len(bm25Hits)))
		return e.fallback(ctx, vec, topK, len(bm25Hits))
	}

	fuseCandidates(cands, e.params.FusionAlpha)
	centers := selectCenters(cands, e.params.CenterRelThreshold, e.params.CenterK)

	chunks, err := e.expandNeighbors(ctx, centers)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return e.fallback(ctx, vec, topK, len(bm25Hits))
	}

	chunks = rankChunks(chunks, e.params.MaxContextChunks)
	return &Result{Chunks: chunks, Method: MethodHybrid, BM25Hits: len(bm25Hits)}, nil
}

// pullSignals runs the query embedding and the BM25 pull concurrently.
// An embedding failure fails the retrieval; a lexical failure degrades
// to the vector-only path.
func (e *Engine) pullSignals(ctx context.Context, question string) ([]float32, []*store.LexicalHit, error) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		vec  []float32
		hits []*store.LexicalHit
	)

	g.Go(func() error {
		v, err := e.embedder.Embed(gctx, question)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})

	g.Go(func() error {
		h, err := e.lexical.Search(gctx, question, e.params.BM25Chunks, nil)
		if err != nil {
			if gctx.Err() == nil {
				e.logger.Warn("lexical search unavailable, degrading to vector-only",
					slog.String("error", err.Error()))
			}
			return nil
		}
		hits = h
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return vec, hits, nil
}

// fetchCenters batch-fetches the BM25 hits from the vector store by
// their deterministic ids and pairs each with its cosine similarity.
// Duplicate hits collapse onto their best rank; missing ids drop out.
func (e *Engine) fetchCenters(ctx context.Context, queryVec []float32, hits []*store.LexicalHit) ([]*candidate, error) {
	type lexInfo struct {
		rank  int
		score float64
	}
	byKey := make(map[string]lexInfo, len(hits))
	ids := make([]string, 0, len(hits))
	for i, h := range hits {
		key := store.ChunkKey(h.Chunk.DocumentID, h.Chunk.ChunkID)
		if _, ok := byKey[key]; ok {
			continue
		}
		byKey[key] = lexInfo{rank: i + 1, score: h.Score}
		ids = append(ids, key)
	}

	fetched, err := e.vectors.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	cands := make([]*candidate, 0, len(fetched))
	for _, ch := range fetched {
		info := byKey[ch.Key()]
		cands = append(cands, &candidate{
			chunk:     ch,
			bm25Rank:  info.rank,
			bm25Score: info.score,
			cosine:    cosineSimilarity(queryVec, ch.Embedding),
		})
	}
	return cands, nil
}

func (e *Engine) fallback(ctx context.Context, vec []float32, topK, bm25Hits int) (*Result, error) {
	hits, err := e.vectors.QueryByVector(ctx, vec, topK, nil)
	if err != nil {
		return nil, err
	}
	return e.vectorResult(hits, MethodFallback, bm25Hits), nil
}

// vectorResult adapts plain vector hits: each chunk is its own center
// with its similarity as the evidence score.
func (e *Engine) vectorResult(hits []*store.VectorHit, method string, bm25Hits int) *Result {
	chunks := make([]RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		sim := h.Similarity()
		chunks = append(chunks, RetrievedChunk{
			Chunk:         h.Chunk,
			IsCenter:      true,
			CenterScore:   sim,
			EvidenceScore: sim,
		})
	}
	chunks = rankChunks(chunks, e.params.MaxContextChunks)
	return &Result{Chunks: chunks, Method: method, BM25Hits: bm25Hits}
}

func (e *Engine) record(question string, res *Result, elapsed time.Duration) {
	telemetry.Retrievals.WithLabelValues(res.Method).Inc()
	telemetry.RetrievedChunks.Observe(float64(len(res.Chunks)))

	if e.stats != nil {
		e.stats.Record(telemetry.RetrievalEvent{
			Question:   question,
			Method:     res.Method,
			ChunkCount: len(res.Chunks),
			Latency:    elapsed,
			Timestamp:  time.Now(),
		})
	}

	e.logger.Debug("retrieval_complete",
		slog.String("method", res.Method),
		slog.Int("bm25_hits", res.BM25Hits),
		slog.Int("chunks", len(res.Chunks)),
		slog.Duration("elapsed", elapsed))
}
