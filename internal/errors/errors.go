package errors

import (
	"fmt"
	"net/http"
)

// RaglineError is the structured error type for ragline.
// It provides rich context for error handling, logging, and HTTP responses.
type RaglineError struct {
	// Code is the unique error code (e.g., "ERR_401_INVALID_INPUT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *RaglineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RaglineError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with RaglineError.
func (e *RaglineError) Is(target error) bool {
	if t, ok := target.(*RaglineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *RaglineError) WithDetail(key, value string) *RaglineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *RaglineError) WithSuggestion(suggestion string) *RaglineError {
	e.Suggestion = suggestion
	return e
}

// New creates a new RaglineError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *RaglineError {
	return &RaglineError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a RaglineError from an existing error.
// The error's message becomes the RaglineError message.
func Wrap(code string, err error) *RaglineError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *RaglineError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *RaglineError {
	return New(ErrCodeFileNotFound, message, cause)
}

// ValidationError creates a validation-related error. These map to
// HTTP 400 and carry no side effects.
func ValidationError(message string, cause error) *RaglineError {
	return New(ErrCodeInvalidInput, message, cause)
}

// EmbeddingError creates an embedding-model error.
func EmbeddingError(message string, cause error) *RaglineError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// ChatError creates a chat-model error.
func ChatError(message string, cause error) *RaglineError {
	return New(ErrCodeChatFailed, message, cause)
}

// VectorStoreError creates a vector-store error.
func VectorStoreError(message string, cause error) *RaglineError {
	return New(ErrCodeVectorQuery, message, cause)
}

// LexicalError creates a lexical-store error.
func LexicalError(message string, cause error) *RaglineError {
	return New(ErrCodeLexicalSearch, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *RaglineError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a RaglineError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if re, ok := err.(*RaglineError); ok {
		return re.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if re, ok := err.(*RaglineError); ok {
		return re.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a RaglineError.
// Returns empty string if not a RaglineError.
func GetCode(err error) string {
	if re, ok := err.(*RaglineError); ok {
		return re.Code
	}
	return ""
}

// GetCategory extracts the category from a RaglineError.
// Returns empty string if not a RaglineError.
func GetCategory(err error) Category {
	if re, ok := err.(*RaglineError); ok {
		return re.Category
	}
	return ""
}

// HTTPStatus maps an error to the HTTP status code the API contract
// prescribes: validation problems are the client's fault (400),
// everything else is a server-side failure (500).
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if re, ok := err.(*RaglineError); ok {
		if re.Category == CategoryValidation {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}
