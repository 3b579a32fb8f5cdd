// Package errors provides structured error handling for ragline.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk, locks)
//   - 3XX: Network errors
//   - 4XX: Validation errors
//   - 5XX: Store errors (vector, lexical)
//   - 6XX: Model errors (embedding, chat)
//   - 7XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryStore indicates vector or lexical store errors.
	CategoryStore Category = "STORE"
	// CategoryModel indicates embedding or chat model errors.
	CategoryModel Category = "MODEL"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid  = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigNotFound = "ERR_102_CONFIG_NOT_FOUND"

	// IO errors (200-299)
	ErrCodeFileNotFound = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFileCorrupt  = "ERR_202_FILE_CORRUPT"
	ErrCodeCorruptIndex = "ERR_203_CORRUPT_INDEX"
	ErrCodeLockHeld     = "ERR_204_LOCK_HELD"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeServiceUnavailable = "ERR_302_SERVICE_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeEmptyFile    = "ERR_402_EMPTY_FILE"
	ErrCodeFileType     = "ERR_403_FILE_TYPE"
	ErrCodeRange        = "ERR_404_RANGE"

	// Store errors (500-599)
	ErrCodeVectorUpsert  = "ERR_501_VECTOR_UPSERT"
	ErrCodeVectorQuery   = "ERR_502_VECTOR_QUERY"
	ErrCodeLexicalIndex  = "ERR_503_LEXICAL_INDEX"
	ErrCodeLexicalSearch = "ERR_504_LEXICAL_SEARCH"

	// Model errors (600-699)
	ErrCodeEmbeddingFailed = "ERR_601_EMBEDDING_FAILED"
	ErrCodeDimension       = "ERR_602_DIMENSION_MISMATCH"
	ErrCodeChatFailed      = "ERR_603_CHAT_FAILED"

	// Internal errors (700-799)
	ErrCodeInternal = "ERR_701_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "101" from "ERR_101_CONFIG_INVALID"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	case '5':
		return CategoryStore
	case '6':
		return CategoryModel
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Network failures and unavailable services may recover on their own;
// everything else needs intervention.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeServiceUnavailable:
		return true
	}
	return false
}
