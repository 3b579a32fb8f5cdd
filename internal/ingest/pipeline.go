// Package ingest runs the extract → chunk → embed → dual-write pipeline
// behind POST /ingest and the watch mode.
package ingest

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/ragline/ragline/internal/chunk"
	"github.com/ragline/ragline/internal/embed"
	"github.com/ragline/ragline/internal/errors"
	"github.com/ragline/ragline/internal/extract"
	"github.com/ragline/ragline/internal/schema"
	"github.com/ragline/ragline/internal/store"
	"github.com/ragline/ragline/internal/telemetry"
)

const previewChars = 200

// Request is one document upload.
type Request struct {
	Filename string
	Data     []byte

	// DocumentID defaults to the filename without extension.
	DocumentID string
	// Source defaults to the filename.
	Source  string
	Version string
	Tags    []string
}

// Pipeline writes documents into both stores. The vector write is
// authoritative; lexical indexing is best-effort.
type Pipeline struct {
	vectors  store.VectorStore
	lexical  store.LexicalIndex
	embedder embed.Embedder
	chunker  *chunk.Chunker
	logger   *slog.Logger
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline builds the pipeline. All dependencies are required.
func NewPipeline(vectors store.VectorStore, lexical store.LexicalIndex, embedder embed.Embedder, chunker *chunk.Chunker, opts ...Option) (*Pipeline, error) {
	if vectors == nil {
		return nil, errors.ConfigError("nil dependency: vector store is required", nil)
	}
	if lexical == nil {
		return nil, errors.ConfigError("nil dependency: lexical index is required", nil)
	}
	if embedder == nil {
		return nil, errors.ConfigError("nil dependency: embedder is required", nil)
	}
	if chunker == nil {
		return nil, errors.ConfigError("nil dependency: chunker is required", nil)
	}

	p := &Pipeline{
		vectors:  vectors,
		lexical:  lexical,
		embedder: embedder,
		chunker:  chunker,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Ingest runs the full pipeline for one document. The response reports
// what was written; re-ingesting the same document_id overwrites the
// previous chunks because ids are deterministic.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*schema.IngestResponse, error) {
	filename := req.Filename
	if filename == "" {
		filename = req.Source
	}
	if filename == "" {
		filename = "uploaded_document"
	}

	documentID := strings.TrimSpace(req.DocumentID)
	if documentID == "" {
		documentID = stem(filename)
	}
	if documentID == "" {
		return nil, errors.ValidationError("document_id cannot be empty", nil)
	}

	source := req.Source
	if source == "" {
		source = filename
	}

	pages, err := extract.Pages(filename, req.Data)
	if err != nil {
		return nil, err
	}

	pieces := p.chunker.Split(pages)
	if len(pieces) == 0 {
		return nil, errors.ValidationError("no chunks produced from document", nil)
	}

	texts := make([]string, len(pieces))
	for i, c := range pieces {
		texts[i] = c.Text
	}
	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	chunks := make([]*store.Chunk, len(pieces))
	for i, c := range pieces {
		chunks[i] = &store.Chunk{
			DocumentID: documentID,
			ChunkID:    c.ID,
			Text:       c.Text,
			Page:       c.Page,
			Source:     source,
			Tags:       req.Tags,
			Version:    req.Version,
			Embedding:  embeddings[i],
		}
	}

	if err := p.write(ctx, chunks); err != nil {
		return nil, err
	}

	telemetry.DocumentsIngested.Inc()
	telemetry.ChunksIngested.Add(float64(len(chunks)))

	characters := 0
	for _, c := range chunks {
		characters += utf8.RuneCountInString(c.Text)
	}
	preview := truncateRunes(chunks[0].Text, previewChars)

	p.logger.Info("ingest_complete",
		slog.String("document_id", documentID),
		slog.Int("chunks", len(chunks)),
		slog.Int("characters", characters))

	return &schema.IngestResponse{
		Status:       "embedded",
		DocumentID:   documentID,
		Characters:   characters,
		Chunks:       len(chunks),
		EmbeddingDim: len(embeddings[0]),
		Preview:      &preview,
	}, nil
}

// write issues the vector upsert and the lexical indexing concurrently.
// The lexical branch never fails the group; a lost BM25 write costs a
// retrieval accelerator, not chunk identity.
func (p *Pipeline) write(ctx context.Context, chunks []*store.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.vectors.Upsert(gctx, chunks)
	})

	g.Go(func() error {
		for _, c := range chunks {
			if _, err := p.lexical.Index(gctx, c); err != nil {
				if gctx.Err() != nil {
					return nil
				}
				p.logger.Warn("bm25_index_failed",
					slog.String("chunk", c.Key()),
					slog.String("error", err.Error()))
				telemetry.LexicalIndexFailures.Inc()
			}
		}
		return nil
	})

	return g.Wait()
}

func stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}

func truncateRunes(text string, limit int) string {
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}
