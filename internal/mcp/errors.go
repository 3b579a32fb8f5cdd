// Package mcp exposes the retrieval engine over the Model Context
// Protocol so coding agents can query an ingested corpus over stdio,
// without going through the HTTP nodes.
package mcp

import (
	"context"
	"errors"
	"fmt"

	raglineerrors "github.com/ragline/ragline/internal/errors"
)

// Custom MCP error codes for ragline.
const (
	// ErrCodeStoreUnavailable indicates a vector or lexical store failure.
	ErrCodeStoreUnavailable = -32001

	// ErrCodeEmbeddingFailed indicates embedding generation failed.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeChatFailed indicates the chat model call failed.
	ErrCodeChatFailed = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError carries a JSON-RPC error code alongside the message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors. Known error types
// keep their message; anything unrecognized becomes an internal error.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var re *raglineerrors.RaglineError
	if errors.As(err, &re) {
		return mapRaglineError(re)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request was canceled.",
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Internal server error.",
		}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a
// custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// mapRaglineError picks the MCP code from the error's category. The
// suggestion rides along in the message so agents can surface it.
func mapRaglineError(re *raglineerrors.RaglineError) *MCPError {
	message := re.Message
	if re.Suggestion != "" {
		message = fmt.Sprintf("%s %s", re.Message, re.Suggestion)
	}

	switch re.Category {
	case raglineerrors.CategoryValidation:
		return &MCPError{
			Code:    ErrCodeInvalidParams,
			Message: message,
		}
	case raglineerrors.CategoryStore:
		return &MCPError{
			Code:    ErrCodeStoreUnavailable,
			Message: message,
		}
	case raglineerrors.CategoryNetwork:
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: message,
		}
	case raglineerrors.CategoryModel:
		if re.Code == raglineerrors.ErrCodeChatFailed {
			return &MCPError{
				Code:    ErrCodeChatFailed,
				Message: message,
			}
		}
		return &MCPError{
			Code:    ErrCodeEmbeddingFailed,
			Message: message,
		}
	default: // CategoryConfig, CategoryIO, CategoryInternal
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: message,
		}
	}
}
