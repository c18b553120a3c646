// Package errors provides structured error handling for zeno.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Index and storage IO errors
//   - 3XX: Network (fetch) errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates index, registry and disk errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates fetch errors.
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
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeIndexIO        = "ERR_201_INDEX_IO"
	ErrCodeSchemaMismatch = "ERR_202_SCHEMA_MISMATCH"
	ErrCodeIndexLocked    = "ERR_203_INDEX_LOCKED"
	ErrCodeNotFound       = "ERR_204_NOT_FOUND"
	ErrCodeExtractFailed  = "ERR_205_EXTRACT_FAILED"
	ErrCodeRegistryIO     = "ERR_206_REGISTRY_IO"

	// Network errors (300-399)
	ErrCodeFetchTimeout   = "ERR_301_FETCH_TIMEOUT"
	ErrCodeFetchFailed    = "ERR_302_FETCH_FAILED"
	ErrCodeUpstreamStatus = "ERR_303_UPSTREAM_STATUS"

	// Validation errors (400-499)
	ErrCodeEmptyField        = "ERR_401_EMPTY_FIELD"
	ErrCodeInvalidInput      = "ERR_402_INVALID_INPUT"
	ErrCodeQuerySyntax       = "ERR_403_QUERY_SYNTAX"
	ErrCodeTimestampOverflow = "ERR_404_TIMESTAMP_OVERFLOW"

	// Internal errors (500-599)
	ErrCodeChannelClosed = "ERR_501_CHANNEL_CLOSED"
	ErrCodeInternal      = "ERR_502_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "201" from "ERR_201_INDEX_IO"
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

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeSchemaMismatch, ErrCodeIndexLocked:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeFetchTimeout, ErrCodeUpstreamStatus:
		return true
	default:
		return false
	}
}
