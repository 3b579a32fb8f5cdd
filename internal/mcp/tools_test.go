package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/errors"
	"github.com/ragline/ragline/internal/llm"
	"github.com/ragline/ragline/internal/search"
)

func TestQueryDocumentsTool_GroundedAnswer(t *testing.T) {
	// Given: a corpus with one relevant document
	ts := newTestServer(t)
	ts.seedChunks(t,
		textChunk("pets", 0, "the parrot is named charlie and lives in the kitchen"),
		textChunk("pets", 1, "charlie the parrot repeats the weather forecast every morning"),
	)

	// When: asking through the tool
	_, out, err := ts.srv.mcpQueryHandler(context.Background(), nil, QueryDocumentsInput{
		Question: "what is the parrot called?",
	})

	// Then: the answer is generated from retrieved context with citations
	require.NoError(t, err)
	assert.Equal(t, "grounded answer", out.Answer)
	assert.Equal(t, "test-chat", out.ModelUsed)
	assert.NotEmpty(t, out.Sources)
	assert.Equal(t, "pets", out.Sources[0].DocumentID)
	assert.Positive(t, out.ContextUsed)
	assert.Contains(t, ts.generator.lastContext, "parrot")
}

func TestQueryDocumentsTool_EmptyCorpus(t *testing.T) {
	// Given: nothing ingested
	ts := newTestServer(t)

	// When: asking through the tool
	_, out, err := ts.srv.mcpQueryHandler(context.Background(), nil, QueryDocumentsInput{
		Question: "what is the parrot called?",
	})

	// Then: the fixed unknown answer, no citations, no model call
	require.NoError(t, err)
	assert.Equal(t, llm.UnknownAnswer, out.Answer)
	assert.Empty(t, out.Sources)
	assert.Zero(t, out.ContextUsed)
	assert.Equal(t, 0, ts.generator.calls)
}

func TestQueryDocumentsTool_QuestionTooShort(t *testing.T) {
	// Given: a server
	ts := newTestServer(t)

	// When: asking a two-character question
	_, _, err := ts.srv.mcpQueryHandler(context.Background(), nil, QueryDocumentsInput{
		Question: "hi",
	})

	// Then: invalid params with the validation message
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "question must be at least")
}

func TestQueryDocumentsTool_TopKOutOfRange(t *testing.T) {
	// Given: a server
	ts := newTestServer(t)

	// When: asking with top_k beyond the limit
	_, _, err := ts.srv.mcpQueryHandler(context.Background(), nil, QueryDocumentsInput{
		Question: "what is the parrot called?",
		TopK:     100,
	})

	// Then: invalid params, not a clamp
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "top_k must be between 1 and 20")
}

func TestQueryDocumentsTool_RestrictedToDocument(t *testing.T) {
	// Given: two documents sharing vocabulary
	ts := newTestServer(t)
	ts.seedChunks(t,
		textChunk("manual", 0, "the reactor manual describes the cooling system in detail"),
		textChunk("notes", 0, "reactor cooling notes from the night shift"),
	)

	// When: restricting the query to one document
	_, out, err := ts.srv.mcpQueryHandler(context.Background(), nil, QueryDocumentsInput{
		Question:   "how does the reactor cooling work?",
		DocumentID: "manual",
	})

	// Then: the restricted path runs and cites only that document
	require.NoError(t, err)
	assert.Equal(t, search.MethodRestricted, out.Method)
	require.NotEmpty(t, out.Sources)
	for _, src := range out.Sources {
		assert.Equal(t, "manual", src.DocumentID)
	}
}

func TestQueryDocumentsTool_ChatFailure(t *testing.T) {
	// Given: a corpus and a failing chat model
	ts := newTestServer(t)
	ts.seedChunks(t, textChunk("pets", 0, "the parrot is named charlie"))
	ts.generator.err = errors.ChatError("chat request failed", nil)

	// When: asking through the tool
	_, _, err := ts.srv.mcpQueryHandler(context.Background(), nil, QueryDocumentsInput{
		Question: "what is the parrot called?",
	})

	// Then: the failure maps to the chat error code
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeChatFailed, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "chat request failed")
}

func TestSearchDocumentsTool_ReturnsHits(t *testing.T) {
	// Given: an indexed corpus
	ts := newTestServer(t)
	ts.seedChunks(t,
		textChunk("pets", 0, "the parrot is named charlie and lives in the kitchen"),
		textChunk("pets", 1, "the dog sleeps in the garden"),
	)

	// When: searching for a keyword
	_, out, err := ts.srv.mcpSearchHandler(context.Background(), nil, SearchDocumentsInput{
		Query: "parrot",
	})

	// Then: matching hits come back scored and attributed
	require.NoError(t, err)
	require.NotEmpty(t, out.Hits)
	assert.Equal(t, len(out.Hits), out.Total)
	assert.Equal(t, "pets", out.Hits[0].DocumentID)
	assert.Equal(t, "pets.txt", out.Hits[0].Source)
	assert.Contains(t, out.Hits[0].Text, "parrot")
	assert.Positive(t, out.Hits[0].Score)
	require.NotNil(t, out.Hits[0].Page)
	assert.Equal(t, 1, *out.Hits[0].Page)
}

func TestSearchDocumentsTool_EmptyQuery(t *testing.T) {
	// Given: a server
	ts := newTestServer(t)

	// When: searching with an empty query
	_, _, err := ts.srv.mcpSearchHandler(context.Background(), nil, SearchDocumentsInput{})

	// Then: invalid params
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "query must not be empty")
}

func TestSearchDocumentsTool_FilterByDocument(t *testing.T) {
	// Given: two documents mentioning the same term
	ts := newTestServer(t)
	ts.seedChunks(t,
		textChunk("manual", 0, "the reactor manual describes the cooling system"),
		textChunk("notes", 0, "reactor cooling notes from the night shift"),
	)

	// When: filtering on one document id
	_, out, err := ts.srv.mcpSearchHandler(context.Background(), nil, SearchDocumentsInput{
		Query:       "reactor",
		DocumentIDs: []string{"notes"},
	})

	// Then: only that document's chunks match
	require.NoError(t, err)
	require.NotEmpty(t, out.Hits)
	for _, h := range out.Hits {
		assert.Equal(t, "notes", h.DocumentID)
	}
}

func TestSearchDocumentsTool_TopKClamped(t *testing.T) {
	// Given: a small corpus
	ts := newTestServer(t)
	ts.seedChunks(t, textChunk("pets", 0, "the parrot is named charlie"))

	// When: asking for far more hits than the cap allows
	_, out, err := ts.srv.mcpSearchHandler(context.Background(), nil, SearchDocumentsInput{
		Query: "parrot",
		TopK:  500,
	})

	// Then: the request is clamped, not rejected
	require.NoError(t, err)
	assert.NotEmpty(t, out.Hits)
}

func TestSearchDocumentsTool_NoMatches(t *testing.T) {
	// Given: a corpus without the term
	ts := newTestServer(t)
	ts.seedChunks(t, textChunk("pets", 0, "the parrot is named charlie"))

	// When: searching for an absent term
	_, out, err := ts.srv.mcpSearchHandler(context.Background(), nil, SearchDocumentsInput{
		Query: "submarine",
	})

	// Then: an empty hit list, not an error
	require.NoError(t, err)
	assert.Empty(t, out.Hits)
	assert.Zero(t, out.Total)
}
