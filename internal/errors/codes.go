// Package errors provides structured error handling for Custom-RAG.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and store errors
//   - 3XX: Network errors (embedding provider)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, disk, and store I/O errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
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
	ErrCodeConfigInvalid = "ERR_102_CONFIG_INVALID"
	ErrCodeUnknownPreset = "ERR_104_UNKNOWN_PRESET"

	// IO and store errors (200-299)
	ErrCodeFileUnreadable   = "ERR_201_FILE_UNREADABLE"
	ErrCodeStoreUnavailable = "ERR_205_STORE_UNAVAILABLE"
	ErrCodeIndexLocked      = "ERR_206_INDEX_LOCKED"

	// Network errors (300-399)
	ErrCodeEmbedProvider = "ERR_301_EMBED_PROVIDER"

	// Validation errors (400-499)
	ErrCodeInvalidQuery = "ERR_401_INVALID_QUERY"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_500_INTERNAL"
)

// categoryFromCode derives the category from the code's number range.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the default severity for a code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreUnavailable:
		return SeverityFatal
	case ErrCodeUnknownPreset, ErrCodeFileUnreadable:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with the code may be retried.
func isRetryableCode(code string) bool {
	return categoryFromCode(code) == CategoryNetwork
}
