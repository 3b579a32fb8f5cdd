package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/embed"
	"github.com/ragline/ragline/internal/llm"
	"github.com/ragline/ragline/internal/mcp"
	"github.com/ragline/ragline/internal/search"
	"github.com/ragline/ragline/internal/store"
	"github.com/ragline/ragline/internal/telemetry"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve retrieval tools over MCP stdio",
		Long: `Serve the retrieval engine over the Model Context Protocol on
stdin/stdout, exposing query_documents and search_documents to coding
agents.

The command opens the configured stores in-process instead of going
through the HTTP nodes. With embedded stores it takes the data
directory lock, so stop any running node first, or point the config at
remote backends.

Logs go to stderr or the configured log file; stdout carries only the
protocol.`,
		Example: `  # Register with Claude Code
  claude mcp add ragline -- ragline mcp

  # Point at a different corpus
  claude mcp add handbook -- ragline mcp --data-dir ~/handbook/data`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd)
		},
	}
}

func runMCP(cmd *cobra.Command) error {
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

	if cfg.Vector.URL == "" || cfg.Lexical.Host == "" {
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

	lexical, err := store.NewLexicalBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = lexical.Close() }()

	embedder, err := embed.NewEmbedder(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	engine, err := search.NewEngine(vectors, lexical, embedder, search.ParamsFromConfig(cfg),
		search.WithLogger(logger),
		search.WithStats(telemetry.NewQueryStats()))
	if err != nil {
		return err
	}

	generator := llm.NewChatClient(cfg.Chat.BaseURL, cfg.Chat.APIKey, cfg.Chat.Model, cfg.ChatTimeout())
	defer func() { _ = generator.Close() }()

	srv, err := mcp.NewServer(engine, generator, lexical, logger)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}
