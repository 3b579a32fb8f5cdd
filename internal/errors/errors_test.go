package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeFileNotFound, CategoryIO},
		{ErrCodeNetworkTimeout, CategoryNetwork},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeVectorUpsert, CategoryStore},
		{ErrCodeEmbeddingFailed, CategoryModel},
		{ErrCodeInternal, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
		})
	}
}

func TestNew_Retryable(t *testing.T) {
	assert.True(t, New(ErrCodeNetworkTimeout, "timeout", nil).Retryable)
	assert.True(t, New(ErrCodeServiceUnavailable, "down", nil).Retryable)
	assert.False(t, New(ErrCodeInvalidInput, "bad", nil).Retryable)
	assert.False(t, New(ErrCodeVectorUpsert, "write failed", nil).Retryable)
}

func TestError_Format(t *testing.T) {
	err := New(ErrCodeEmptyFile, "uploaded file is empty", nil)
	assert.Equal(t, "[ERR_402_EMPTY_FILE] uploaded file is empty", err.Error())
}

func TestUnwrap_PreservesChain(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(ErrCodeServiceUnavailable, cause)

	require.NotNil(t, err)
	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, stderrors.Is(err, cause))
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeInvalidInput, "first", nil)
	b := New(ErrCodeInvalidInput, "second", nil)
	c := New(ErrCodeInternal, "other", nil)

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	var err *RaglineError = Wrap(ErrCodeInternal, nil)
	assert.Nil(t, err)
}

func TestWithDetail_Chains(t *testing.T) {
	err := ValidationError("top_k out of range", nil).
		WithDetail("top_k", "99").
		WithSuggestion("use a value between 1 and 20")

	assert.Equal(t, "99", err.Details["top_k"])
	assert.Equal(t, "use a value between 1 and 20", err.Suggestion)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", ValidationError("question too short", nil), http.StatusBadRequest},
		{"empty file", New(ErrCodeEmptyFile, "empty", nil), http.StatusBadRequest},
		{"embedding", EmbeddingError("embed call failed", nil), http.StatusInternalServerError},
		{"vector store", VectorStoreError("upsert failed", nil), http.StatusInternalServerError},
		{"chat", ChatError("model call failed", nil), http.StatusInternalServerError},
		{"plain error", fmt.Errorf("anything"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeCorruptIndex, "index corrupted", nil)))
	assert.False(t, IsFatal(New(ErrCodeInvalidInput, "bad input", nil)))
	assert.False(t, IsFatal(nil))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeChatFailed, GetCode(ChatError("nope", nil)))
	assert.Equal(t, "", GetCode(stderrors.New("plain")))
}
