package store

import (
	"log/slog"
	"path/filepath"

	"github.com/ragline/ragline/internal/config"
)

// NewVectorStore selects the vector backend: a Chroma server when one is
// configured, the embedded HNSW store otherwise.
func NewVectorStore(cfg *config.Config, logger *slog.Logger) (VectorStore, error) {
	if cfg.Vector.URL != "" {
		logger.Info("vector_store_selected",
			slog.String("backend", "chroma"),
			slog.String("url", cfg.Vector.URL),
			slog.String("collection", cfg.Vector.Collection))
		return NewChromaVectorStore(cfg.Vector.URL, cfg.Vector.Collection, cfg.VectorTimeout()), nil
	}

	dir := cfg.VectorPersistDir()
	logger.Info("vector_store_selected",
		slog.String("backend", "hnsw"),
		slog.String("dir", dir))
	return NewHNSWVectorStore(dir, logger)
}

// NewLexicalBackend selects the BM25 engine the search node owns:
// OpenSearch when a host is configured, embedded bleve otherwise.
func NewLexicalBackend(cfg *config.Config, logger *slog.Logger) (LexicalIndex, error) {
	if cfg.Lexical.Host != "" {
		logger.Info("lexical_backend_selected",
			slog.String("backend", "opensearch"),
			slog.String("url", cfg.OpenSearchURL()),
			slog.String("index", cfg.Lexical.Index))
		return NewOpenSearchLexicalIndex(cfg.OpenSearchURL(), cfg.Lexical.Index,
			cfg.Lexical.User, cfg.Lexical.Password, cfg.LexicalTimeout()), nil
	}

	path := filepath.Join(cfg.DataDir, "bm25.bleve")
	logger.Info("lexical_backend_selected",
		slog.String("backend", "bleve"),
		slog.String("path", path))
	return NewBleveLexicalIndex(path)
}

// NewLexicalClient returns the client the ingestion and query nodes use to
// reach the search node.
func NewLexicalClient(cfg *config.Config) LexicalIndex {
	return NewRemoteLexicalIndex(cfg.Lexical.ServiceURL, cfg.LexicalTimeout())
}
