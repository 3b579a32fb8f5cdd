package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/ui"
	"github.com/ragline/ragline/pkg/client"
)

// askProbeTimeout bounds the health probe before the console starts.
const askProbeTimeout = 5 * time.Second

func newAskCmd() *cobra.Command {
	var (
		topK     int
		document string
		queryURL string
	)

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask questions interactively",
		Long: `Open an interactive console that answers questions from the ingested
documents. Each answer cites the chunks it was grounded on.

Questions go to the query node; start it first with 'ragline queryd'.
Inside the console, /stats shows retrieval statistics and /quit exits.`,
		Example: `  ragline ask

  # Restrict answers to one document
  ragline ask --document 550e8400-e29b-41d4-a716-446655440000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAsk(cmd, topK, document, queryURL)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Number of cited sources per answer")
	cmd.Flags().StringVar(&document, "document", "", "Restrict answers to one document ID")
	cmd.Flags().StringVar(&queryURL, "query-url", "", "Query node base URL (default from config)")

	return cmd
}

func runAsk(cmd *cobra.Command, topK int, document, queryURL string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if queryURL == "" {
		queryURL = nodeURL(cfg.Server.QueryAddr)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cl := client.New(client.WithQueryURL(queryURL))

	probeCtx, cancel := context.WithTimeout(ctx, askProbeTimeout)
	defer cancel()
	if _, err := cl.Health(probeCtx, client.NodeQuery); err != nil {
		return fmt.Errorf("query node not reachable at %s (start it with 'ragline queryd'): %w", queryURL, err)
	}

	opts := []ui.Option{ui.WithTopK(topK)}
	if document != "" {
		opts = append(opts, ui.WithDocumentID(document))
	}

	return ui.NewConsole(cl, opts...).Run(ctx)
}
