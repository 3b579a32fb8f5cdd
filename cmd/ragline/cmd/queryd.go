package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/api"
	"github.com/ragline/ragline/internal/embed"
	"github.com/ragline/ragline/internal/llm"
	"github.com/ragline/ragline/internal/search"
	"github.com/ragline/ragline/internal/store"
	"github.com/ragline/ragline/internal/telemetry"
)

func newQuerydCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queryd",
		Short: "Run the query node",
		Long: `Run the query node.

The node answers questions on POST /query: hybrid retrieval picks and
orders context chunks, then the chat model writes an answer with
citations. GET /stats reports retrieval counters, method usage, and the
latency distribution.

Listens on server.query_addr (default :8002).`,
		Example: `  ragline queryd

  curl -s localhost:8002/query \
    -d '{"question": "What does the warranty cover?"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQueryd(cmd)
		},
	}
}

func runQueryd(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, cleanup, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Vector.URL == "" {
		lock := store.NewDataLock(cfg.DataDir)
		if err := lock.TryLock(); err != nil {
			return err
		}
		defer func() { _ = lock.Unlock() }()
	}

	vectors, err := store.NewVectorStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = vectors.Close() }()

	embedder, err := embed.NewEmbedder(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	lexical := store.NewLexicalClient(cfg)
	stats := telemetry.NewQueryStats()

	engine, err := search.NewEngine(vectors, lexical, embedder, search.ParamsFromConfig(cfg),
		search.WithLogger(logger),
		search.WithStats(stats))
	if err != nil {
		return err
	}

	generator := llm.NewChatClient(cfg.Chat.BaseURL, cfg.Chat.APIKey, cfg.Chat.Model, cfg.ChatTimeout())
	defer func() { _ = generator.Close() }()

	handler := api.NewQueryAPI(engine, generator, vectors, lexical, stats, logger).Handler()
	return api.Serve(ctx, cfg.Server.QueryAddr, handler, cfg.ShutdownTimeout(), logger)
}
