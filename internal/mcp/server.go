package mcp

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ragline/ragline/internal/llm"
	"github.com/ragline/ragline/internal/schema"
	"github.com/ragline/ragline/internal/search"
	"github.com/ragline/ragline/internal/store"
	"github.com/ragline/ragline/internal/telemetry"
	"github.com/ragline/ragline/pkg/version"
)

// Server bridges MCP clients (Claude Code, Cursor) with the retrieval
// engine. It runs in-process over the same stores as the HTTP nodes, so
// an agent sees exactly the ranking the query node would serve.
type Server struct {
	mcp       *mcp.Server
	engine    *search.Engine
	generator llm.Generator
	lexical   store.LexicalIndex
	logger    *slog.Logger
}

// NewServer creates the MCP server and registers its tools.
func NewServer(engine *search.Engine, generator llm.Generator, lexical store.LexicalIndex, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("retrieval engine is required")
	}
	if generator == nil {
		return nil, errors.New("chat generator is required")
	}
	if lexical == nil {
		return nil, errors.New("lexical index is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine:    engine,
		generator: generator,
		lexical:   lexical,
		logger:    logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "ragline",
			Version: version.Version,
		},
		nil, // ServerOptions - capabilities are inferred from registered tools
	)
	s.registerTools()

	return s, nil
}

// registerTools registers the retrieval tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_documents",
		Description: "Answer a question from the ingested documents. Runs hybrid retrieval (dense vectors fused with BM25) and generates a grounded answer with ranked citations. Use this when you want a synthesized answer rather than raw passages.",
	}, s.mcpQueryHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_documents",
		Description: "Keyword search over the ingested documents. Returns raw BM25 hits with scores and spends no chat-model call. Use this to locate exact terms, names, or phrases, or to inspect what the corpus contains.",
	}, s.mcpSearchHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", 2))
}

// mcpQueryHandler is the MCP SDK handler for the query_documents tool.
// It mirrors the query node: retrieve, build context, generate.
func (s *Server) mcpQueryHandler(ctx context.Context, req *mcp.CallToolRequest, input QueryDocumentsInput) (
	*mcp.CallToolResult,
	QueryDocumentsOutput,
	error,
) {
	start := time.Now()

	qreq := schema.QueryRequest{
		Question:   input.Question,
		TopK:       input.TopK,
		DocumentID: input.DocumentID,
	}
	if err := qreq.Validate(); err != nil {
		return nil, QueryDocumentsOutput{}, MapError(err)
	}

	res, err := s.engine.Retrieve(ctx, qreq.Question, search.Options{
		TopK:       qreq.TopK,
		DocumentID: qreq.DocumentID,
	})
	if err != nil {
		return nil, QueryDocumentsOutput{}, MapError(err)
	}

	output := QueryDocumentsOutput{
		Sources:   []SourceOutput{},
		Method:    res.Method,
		ModelUsed: s.generator.ModelName(),
	}

	// Nothing retrieved: answer honestly without spending a model call.
	if len(res.Chunks) == 0 {
		output.Answer = llm.UnknownAnswer
		return nil, output, nil
	}

	contextText := search.BuildContext(res.Chunks, s.engine.Params().ContextCharBudget)
	contextChars := utf8.RuneCountInString(contextText)
	telemetry.ContextChars.Observe(float64(contextChars))

	answer, err := s.generator.Generate(ctx, qreq.Question, contextText, "")
	if err != nil {
		return nil, QueryDocumentsOutput{}, MapError(err)
	}

	output.Answer = answer
	output.ContextUsed = contextChars
	for _, src := range search.BuildSources(res.Chunks, qreq.TopK) {
		output.Sources = append(output.Sources, ToSourceOutput(src))
	}

	s.logger.Info("query_documents completed",
		slog.String("method", res.Method),
		slog.Int("sources", len(output.Sources)),
		slog.Duration("duration", time.Since(start)))

	return nil, output, nil
}

// mcpSearchHandler is the MCP SDK handler for the search_documents tool.
func (s *Server) mcpSearchHandler(ctx context.Context, req *mcp.CallToolRequest, input SearchDocumentsInput) (
	*mcp.CallToolResult,
	SearchDocumentsOutput,
	error,
) {
	start := time.Now()

	sreq := schema.SearchRequest{
		Query:       input.Query,
		TopK:        input.TopK,
		DocumentIDs: input.DocumentIDs,
		Sources:     input.Sources,
	}
	if err := sreq.Validate(); err != nil {
		return nil, SearchDocumentsOutput{}, MapError(err)
	}

	var filter *store.LexicalFilter
	if len(sreq.DocumentIDs) > 0 || len(sreq.Sources) > 0 {
		filter = &store.LexicalFilter{DocumentIDs: sreq.DocumentIDs, Sources: sreq.Sources}
	}

	hits, err := s.lexical.Search(ctx, sreq.Query, sreq.TopK, filter)
	if err != nil {
		return nil, SearchDocumentsOutput{}, MapError(err)
	}

	output := SearchDocumentsOutput{
		Hits:  make([]HitOutput, 0, len(hits)),
		Total: len(hits),
	}
	for _, h := range hits {
		output.Hits = append(output.Hits, ToHitOutput(h))
	}

	s.logger.Info("search_documents completed",
		slog.Int("hits", output.Total),
		slog.Duration("duration", time.Since(start)))

	return nil, output, nil
}

// Serve runs the server on stdio until the context is canceled or the
// client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server",
		slog.String("transport", "stdio"),
		slog.String("version", version.Version))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error",
			slog.String("error", err.Error()))
		return err
	}

	s.logger.Info("MCP server stopped gracefully")
	return nil
}
