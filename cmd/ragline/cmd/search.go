package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/cli"
	"github.com/ragline/ragline/internal/schema"
	"github.com/ragline/ragline/pkg/client"
)

// searchSnippetLen caps how much chunk text one hit prints.
const searchSnippetLen = 160

func newSearchCmd() *cobra.Command {
	var (
		topK      int
		documents []string
		sources   []string
		jsonOut   bool
		searchURL string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the BM25 index",
		Long: `Run a one-shot keyword search against the search node and print the
matching chunks. This hits the BM25 index only; for full hybrid
retrieval with an answer, use 'ragline ask'.`,
		Example: `  ragline search "warranty period"

  # Top 3 hits from one document, as JSON
  ragline search -k 3 --document 550e8400 --json "return policy"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), topK, documents, sources, searchURL, jsonOut)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 10, "Maximum number of hits")
	cmd.Flags().StringSliceVar(&documents, "document", nil, "Restrict to document IDs (repeatable)")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "Restrict to source filenames (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the raw response as JSON")
	cmd.Flags().StringVar(&searchURL, "search-url", "", "Search node base URL (default from config)")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, topK int, documents, sources []string, searchURL string, jsonOut bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if searchURL == "" {
		searchURL = nodeURL(cfg.Server.SearchAddr)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cl := client.New(client.WithSearchURL(searchURL))
	resp, err := cl.Search(ctx, schema.SearchRequest{
		Query:       query,
		TopK:        topK,
		DocumentIDs: documents,
		Sources:     sources,
	})
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printHits(cmd, query, resp)
	return nil
}

func printHits(cmd *cobra.Command, query string, resp *schema.SearchResponse) {
	w := cmd.OutOrStdout()
	out := cli.NewStyled(w, cli.IsTTY(w) && !cli.DetectNoColor())

	if resp.Total == 0 {
		out.Warningf("no hits for %q", query)
		return
	}

	out.Header(fmt.Sprintf("%d hit(s) for %q", resp.Total, query))
	for i, h := range resp.Hits {
		loc := ""
		if h.Page != nil {
			loc = fmt.Sprintf(" p.%d", *h.Page)
		}
		out.Statusf("", "%2d. %s #%d (%s%s)  score %.3f", i+1, h.DocumentID, h.ChunkID, h.Source, loc, h.Score)
		out.Detail(snippet(h.Text, searchSnippetLen))
	}
}

// snippet returns s cut to at most n bytes on a word boundary.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
