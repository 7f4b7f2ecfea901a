package connector

import (
	"errors"
	"fmt"
)

// ErrorCategory defines the normalized connector failure taxonomy
type ErrorCategory string

const (
	// ErrorTransient covers timeouts, connection failures and 5xx responses
	ErrorTransient ErrorCategory = "transient"

	// ErrorQuotaExhausted means the source will refuse further calls; it aborts the pipeline
	ErrorQuotaExhausted ErrorCategory = "quota_exhausted"

	// ErrorAuthentication indicates credential or permission issues
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorBadData indicates the source returned invalid or malformed data
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorBlocked means robots.txt or a similar policy forbids the call
	ErrorBlocked ErrorCategory = "blocked"

	// ErrorInternal indicates an unexpected internal error
	ErrorInternal ErrorCategory = "internal"
)

// ErrQuotaExhausted is matched by every quota error via errors.Is
var ErrQuotaExhausted = errors.New("source quota exhausted")

// Error wraps connector failures with normalized categorization
type Error struct {
	Category   ErrorCategory
	SourceID   string
	Message    string
	StatusCode int
	Underlying error
	Retryable  bool
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("source %s [%s]: %s: %v", e.SourceID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("source %s [%s]: %s", e.SourceID, e.Category, e.Message)
}

// Unwrap supports error unwrapping
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is lets errors.Is(err, ErrQuotaExhausted) match quota errors
func (e *Error) Is(target error) bool {
	return target == ErrQuotaExhausted && e.Category == ErrorQuotaExhausted
}

// NewError creates a new normalized connector error
func NewError(category ErrorCategory, sourceID, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		SourceID:   sourceID,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == ErrorTransient,
	}
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// IsQuotaExhausted reports whether err is fatal quota exhaustion
func IsQuotaExhausted(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}

// GetCategory extracts the error category from an error
func GetCategory(err error) ErrorCategory {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ErrorInternal
}
