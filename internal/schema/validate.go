package schema

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ragline/ragline/internal/errors"
)

// Query request bounds.
const (
	MinQuestionLen   = 3
	DefaultQueryTopK = 5
	MaxQueryTopK     = 20
)

// Search request bounds.
const (
	DefaultSearchTopK = 10
	MaxSearchTopK     = 50
)

// Validate checks the query request and applies the top_k default.
func (r *QueryRequest) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(r.Question)) < MinQuestionLen {
		return errors.ValidationError(
			fmt.Sprintf("question must be at least %d characters", MinQuestionLen), nil)
	}
	if r.TopK == 0 {
		r.TopK = DefaultQueryTopK
	}
	if r.TopK < 1 || r.TopK > MaxQueryTopK {
		return errors.New(errors.ErrCodeRange,
			fmt.Sprintf("top_k must be between 1 and %d", MaxQueryTopK), nil)
	}
	return nil
}

// Validate checks the search request. top_k is clamped, not rejected.
func (r *SearchRequest) Validate() error {
	if len(r.Query) < 1 {
		return errors.ValidationError("query must not be empty", nil)
	}
	if r.TopK == 0 {
		r.TopK = DefaultSearchTopK
	}
	if r.TopK < 1 {
		r.TopK = 1
	}
	if r.TopK > MaxSearchTopK {
		r.TopK = MaxSearchTopK
	}
	return nil
}

// Validate checks the index request.
func (r *IndexRequest) Validate() error {
	if strings.TrimSpace(r.DocumentID) == "" {
		return errors.ValidationError("document_id must not be empty", nil)
	}
	if r.ChunkID < 0 {
		return errors.ValidationError("chunk_id must not be negative", nil)
	}
	if strings.TrimSpace(r.Source) == "" {
		return errors.ValidationError("source must not be empty", nil)
	}
	if r.Text == "" {
		return errors.ValidationError("text must not be empty", nil)
	}
	return nil
}
