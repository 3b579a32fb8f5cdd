package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ragline/ragline/internal/api"
	"github.com/ragline/ragline/internal/chunk"
	"github.com/ragline/ragline/internal/embed"
	"github.com/ragline/ragline/internal/ingest"
	"github.com/ragline/ragline/internal/store"
)

func newIngestdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingestd",
		Short: "Run the ingestion node",
		Long: `Run the ingestion node.

The node accepts document uploads on POST /ingest, extracts and chunks
the text, embeds every chunk, and writes the result to the vector store
and the search node's BM25 index. With ingest.watch_dir set it also
ingests files dropped into that directory.

Listens on server.ingest_addr (default :8000).`,
		Example: `  # Default config, embedded vector store
  ragline ingestd

  # Watch a drop folder as well
  RAGLINE_WATCH_DIR=./inbox ragline ingestd`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngestd(cmd)
		},
	}
}

func runIngestd(cmd *cobra.Command) error {
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

	// The embedded vector store is single-process; hold the data dir
	// for the node's lifetime. Chroma deployments skip this.
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

	chunker, err := chunk.New(cfg.Ingest.ChunkSize, cfg.Ingest.Overlap)
	if err != nil {
		return err
	}

	lexical := store.NewLexicalClient(cfg)

	pipeline, err := ingest.NewPipeline(vectors, lexical, embedder, chunker,
		ingest.WithLogger(logger))
	if err != nil {
		return err
	}

	handler := api.NewIngestAPI(pipeline, vectors, cfg.Ingest.MaxFileSizeMB, logger).Handler()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Serve(gctx, cfg.Server.IngestAddr, handler, cfg.ShutdownTimeout(), logger)
	})

	if cfg.Ingest.WatchDir != "" {
		auto, err := ingest.NewAutoIngester(pipeline, cfg.Ingest.WatchDir, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return auto.Run(gctx)
		})
	}

	return g.Wait()
}
