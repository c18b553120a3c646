package errors

import (
	stderrors "errors"
	"fmt"
)

// ZenoError is the structured error type for zeno.
// It carries the error kind as a code, plus context for logging and
// presentation.
type ZenoError struct {
	// Code is the unique error code (e.g., "ERR_201_INDEX_IO").
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
func (e *ZenoError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ZenoError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a ZenoError with the same code.
func (e *ZenoError) Is(target error) bool {
	if t, ok := target.(*ZenoError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *ZenoError) WithDetail(key, value string) *ZenoError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *ZenoError) WithSuggestion(suggestion string) *ZenoError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ZenoError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ZenoError {
	return &ZenoError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ZenoError from an existing error.
// The error's message becomes the ZenoError message.
func Wrap(code string, err error) *ZenoError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *ZenoError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// EmptyField reports a required text field that was given an empty string.
func EmptyField(field string) *ZenoError {
	return New(ErrCodeEmptyField, field+" cannot be empty", nil).WithDetail("field", field)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *ZenoError {
	return New(ErrCodeInvalidInput, message, cause)
}

// TimestampOverflow reports a timestamp that does not fit the index's
// date representation.
func TimestampOverflow(millis uint64) *ZenoError {
	return New(ErrCodeTimestampOverflow,
		fmt.Sprintf("timestamp %d ms is not representable as a signed 64-bit date", millis), nil)
}

// IndexIOError creates an index open, write or commit error.
func IndexIOError(message string, cause error) *ZenoError {
	return New(ErrCodeIndexIO, message, cause)
}

// QuerySyntaxError creates an error for a query string that does not parse.
func QuerySyntaxError(query string, cause error) *ZenoError {
	return New(ErrCodeQuerySyntax, "malformed query", cause).WithDetail("query", query)
}

// ChannelClosed is returned by a coordinator handle that no longer accepts
// messages.
func ChannelClosed() *ZenoError {
	return New(ErrCodeChannelClosed, "index coordinator is not running", nil).
		WithSuggestion("restart the server")
}

// NotFound creates an error for a missing document.
func NotFound(what string) *ZenoError {
	return New(ErrCodeNotFound, what+" not found", nil)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ZenoError {
	return New(ErrCodeInternal, message, cause)
}

// As extracts the first ZenoError in err's chain.
func As(err error) (*ZenoError, bool) {
	var ze *ZenoError
	if stderrors.As(err, &ze) {
		return ze, true
	}
	return nil, false
}

func hasCode(err error, codes ...string) bool {
	ze, ok := As(err)
	if !ok {
		return false
	}
	for _, c := range codes {
		if ze.Code == c {
			return true
		}
	}
	return false
}

// IsValidation reports whether err is a validation error (empty field,
// invalid input).
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeEmptyField, ErrCodeInvalidInput)
}

// IsTimestampOverflow reports whether err is a timestamp overflow.
func IsTimestampOverflow(err error) bool {
	return hasCode(err, ErrCodeTimestampOverflow)
}

// IsIndexIO reports whether err is an index IO error. Schema mismatches and
// lock conflicts are index IO errors too.
func IsIndexIO(err error) bool {
	return hasCode(err, ErrCodeIndexIO, ErrCodeSchemaMismatch, ErrCodeIndexLocked)
}

// IsQuerySyntax reports whether err is a query syntax error.
func IsQuerySyntax(err error) bool {
	return hasCode(err, ErrCodeQuerySyntax)
}

// IsChannelClosed reports whether err came from a stopped coordinator.
func IsChannelClosed(err error) bool {
	return hasCode(err, ErrCodeChannelClosed)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if ze, ok := As(err); ok {
		return ze.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if ze, ok := As(err); ok {
		return ze.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a ZenoError.
// Returns empty string if err carries none.
func GetCode(err error) string {
	if ze, ok := As(err); ok {
		return ze.Code
	}
	return ""
}

// GetCategory extracts the category from a ZenoError.
func GetCategory(err error) Category {
	if ze, ok := As(err); ok {
		return ze.Category
	}
	return ""
}
