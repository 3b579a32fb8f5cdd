package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ragline/ragline/internal/embed"
	"github.com/ragline/ragline/internal/llm"
	"github.com/ragline/ragline/internal/store"
)

// CheckVectorStore opens the configured vector backend and counts its
// chunks. For the embedded store a held data lock means a node owns it,
// which is itself a healthy state.
func (c *Checker) CheckVectorStore(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "vector_store",
		Required: true,
	}

	if c.cfg.Vector.URL == "" {
		lock := store.NewDataLock(c.cfg.DataDir)
		if err := lock.TryLock(); err != nil {
			result.Status = StatusPass
			result.Message = "embedded store in use by a running node"
			result.Details = fmt.Sprintf("lock file: %s", lock.Path())
			return result
		}
		defer func() { _ = lock.Unlock() }()
	}

	vectors, err := store.NewVectorStore(c.cfg, c.logger)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot open vector store: %v", err)
		return result
	}
	defer vectors.Close()

	count, err := vectors.Count(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("vector store unreachable: %v", err)
		if c.cfg.Vector.URL != "" {
			result.Details = fmt.Sprintf("url: %s", c.cfg.Vector.URL)
		}
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d chunks stored", count)
	if c.cfg.Vector.URL != "" {
		result.Details = fmt.Sprintf("backend: chroma at %s", c.cfg.Vector.URL)
	} else {
		result.Details = fmt.Sprintf("backend: embedded hnsw under %s", c.cfg.VectorPersistDir())
	}
	return result
}

// CheckLexicalIndex probes the BM25 side. Queries degrade to vector-only
// when it is down, so failures are warnings, not errors.
func (c *Checker) CheckLexicalIndex(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "lexical_index",
		Required: false,
	}

	switch {
	case c.cfg.Lexical.ServiceURL != "":
		client := store.NewLexicalClient(c.cfg)
		if err := client.Ready(ctx); err != nil {
			result.Status = StatusWarn
			result.Message = fmt.Sprintf("search node unreachable: %v", err)
			result.Details = "queries degrade to vector-only until it returns"
			return result
		}
		result.Status = StatusPass
		result.Message = fmt.Sprintf("search node reachable at %s", c.cfg.Lexical.ServiceURL)
		return result

	case c.cfg.Lexical.Host != "":
		backend, err := store.NewLexicalBackend(c.cfg, c.logger)
		if err != nil {
			result.Status = StatusWarn
			result.Message = fmt.Sprintf("cannot reach OpenSearch: %v", err)
			return result
		}
		defer backend.Close()
		if err := backend.Ready(ctx); err != nil {
			result.Status = StatusWarn
			result.Message = fmt.Sprintf("OpenSearch not ready: %v", err)
			result.Details = fmt.Sprintf("url: %s", c.cfg.OpenSearchURL())
			return result
		}
		result.Status = StatusPass
		result.Message = fmt.Sprintf("OpenSearch ready at %s", c.cfg.OpenSearchURL())
		return result

	default:
		// The embedded index may be held open by a running search node;
		// inspect the directory instead of competing for the bolt lock.
		path := filepath.Join(c.cfg.DataDir, "bm25.bleve")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			result.Status = StatusWarn
			result.Message = "no BM25 index yet (built on first ingest)"
			result.Details = fmt.Sprintf("path: %s", path)
			return result
		}
		result.Status = StatusPass
		result.Message = fmt.Sprintf("embedded BM25 index present at %s", path)
		return result
	}
}

// CheckEmbedder probes the embedding provider. The static provider is
// always available; a dead remote endpoint is a warning because the
// operator can switch providers without reinstalling.
func (c *Checker) CheckEmbedder(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: false,
	}

	embedder, err := embed.NewEmbedder(c.cfg, c.logger)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		result.Required = true // misconfiguration, not an outage
		return result
	}
	defer embedder.Close()

	if !embedder.Available(ctx) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("embedding endpoint unreachable (model %s)", embedder.ModelName())
		result.Details = fmt.Sprintf("base_url: %s", c.cfg.Embed.BaseURL)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("provider %q ready (model %s)", c.cfg.Embed.Provider, embedder.ModelName())
	return result
}

// CheckChatModel probes the chat endpoint. Retrieval works without it;
// only answer generation fails.
func (c *Checker) CheckChatModel(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "chat_model",
		Required: false,
	}

	if c.cfg.Chat.BaseURL == "" {
		result.Status = StatusWarn
		result.Message = "no chat endpoint configured (queries will fail to generate answers)"
		return result
	}

	client := llm.NewChatClient(c.cfg.Chat.BaseURL, c.cfg.Chat.APIKey, c.cfg.Chat.Model, c.cfg.ChatTimeout())
	defer client.Close()

	if !client.Available(ctx) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("chat endpoint unreachable (model %s)", c.cfg.Chat.Model)
		result.Details = fmt.Sprintf("base_url: %s", c.cfg.Chat.BaseURL)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("chat endpoint ready (model %s)", c.cfg.Chat.Model)
	return result
}
