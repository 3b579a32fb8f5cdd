package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/api"
	"github.com/ragline/ragline/internal/store"
)

func newSearchdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "searchd",
		Short: "Run the search node",
		Long: `Run the search node.

The node owns the BM25 index: POST /index writes chunks into it and
POST /search runs keyword queries against it. The other nodes reach it
through lexical.service_url.

The backend is OpenSearch when lexical.host is set, otherwise an
embedded bleve index under data_dir.

Listens on server.search_addr (default :8001).`,
		Example: `  # Embedded bleve index
  ragline searchd

  # Against a local OpenSearch
  OPENSEARCH_HOST=localhost ragline searchd`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearchd(cmd)
		},
	}
}

func runSearchd(cmd *cobra.Command) error {
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

	// bleve allows one writer; hold the data dir while we own the index.
	if cfg.Lexical.Host == "" {
		lock := store.NewDataLock(cfg.DataDir)
		if err := lock.TryLock(); err != nil {
			return err
		}
		defer func() { _ = lock.Unlock() }()
	}

	backend, err := store.NewLexicalBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	handler := api.NewSearchAPI(backend, logger).Handler()
	return api.Serve(ctx, cfg.Server.SearchAddr, handler, cfg.ShutdownTimeout(), logger)
}
