package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/store"
)

func TestCheckVectorStore_EmbeddedEmpty(t *testing.T) {
	cfg := testConfig(t)
	checker := New(cfg)

	result := checker.CheckVectorStore(context.Background())

	assert.Equal(t, StatusPass, result.Status)
	assert.True(t, result.Required)
	assert.Contains(t, result.Message, "0 chunks stored")
	assert.Contains(t, result.Details, "embedded hnsw")
}

func TestCheckVectorStore_LockHeldByNode(t *testing.T) {
	cfg := testConfig(t)

	// Given another process holding the embedded data lock
	lock := store.NewDataLock(cfg.DataDir)
	require.NoError(t, lock.TryLock())
	defer func() { _ = lock.Unlock() }()

	result := New(cfg).CheckVectorStore(context.Background())

	// Then the store is reported as owned, not broken
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "in use by a running node")
}

func TestCheckLexicalIndex_SearchNodeReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Lexical.ServiceURL = srv.URL

	result := New(cfg).CheckLexicalIndex(context.Background())

	assert.Equal(t, StatusPass, result.Status)
	assert.False(t, result.Required)
	assert.Contains(t, result.Message, srv.URL)
}

func TestCheckLexicalIndex_SearchNodeDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	cfg := testConfig(t)
	cfg.Lexical.ServiceURL = srv.URL

	result := New(cfg).CheckLexicalIndex(context.Background())

	assert.Equal(t, StatusWarn, result.Status)
	assert.False(t, result.IsCritical())
	assert.Contains(t, result.Details, "vector-only")
}

func TestCheckLexicalIndex_EmbeddedMissing(t *testing.T) {
	cfg := testConfig(t)

	result := New(cfg).CheckLexicalIndex(context.Background())

	assert.Equal(t, StatusWarn, result.Status)
	assert.Contains(t, result.Message, "no BM25 index yet")
}

func TestCheckLexicalIndex_EmbeddedPresent(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.DataDir, "bm25.bleve"), 0o755))

	result := New(cfg).CheckLexicalIndex(context.Background())

	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "bm25.bleve")
}

func TestCheckEmbedder_Static(t *testing.T) {
	cfg := testConfig(t)

	result := New(cfg).CheckEmbedder(context.Background())

	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, `provider "static"`)
}

func TestCheckEmbedder_UnknownProviderIsCritical(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embed.Provider = "carrier-pigeon"

	result := New(cfg).CheckEmbedder(context.Background())

	assert.Equal(t, StatusFail, result.Status)
	assert.True(t, result.IsCritical())
}

func TestCheckChatModel_Unconfigured(t *testing.T) {
	cfg := testConfig(t)

	result := New(cfg).CheckChatModel(context.Background())

	assert.Equal(t, StatusWarn, result.Status)
	assert.Contains(t, result.Message, "no chat endpoint configured")
}

func TestCheckChatModel_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Chat.BaseURL = srv.URL
	cfg.Chat.Model = "test-chat"

	result := New(cfg).CheckChatModel(context.Background())

	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "test-chat")
}

func TestCheckChatModel_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	cfg := testConfig(t)
	cfg.Chat.BaseURL = srv.URL

	result := New(cfg).CheckChatModel(context.Background())

	assert.Equal(t, StatusWarn, result.Status)
	assert.False(t, result.IsCritical())
}
