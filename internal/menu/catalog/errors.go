package catalog

import (
	"errors"
	"fmt"

	"menuboard/pkg/platform/sentinel"
)

// ErrorCategory defines the normalized catalog failure taxonomy
type ErrorCategory string

const (
	// ErrorTimeout indicates the catalog took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the catalog returned a body that could not be decoded
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorAuthentication indicates rejected credentials
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorUnavailable indicates the catalog could not be reached or failed server-side
	ErrorUnavailable ErrorCategory = "unavailable"

	// ErrorNotFound indicates the requested category or asset does not exist
	ErrorNotFound ErrorCategory = "not_found"

	// ErrorBadStatus indicates any other non-success status
	ErrorBadStatus ErrorCategory = "bad_status"
)

// Error wraps catalog failures with normalized categorization
type Error struct {
	Category   ErrorCategory
	Endpoint   string
	Message    string
	Status     int
	Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("catalog %s [%s]: %s: %v", e.Endpoint, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("catalog %s [%s]: %s", e.Endpoint, e.Category, e.Message)
}

// Unwrap supports error unwrapping
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is maps categories onto the platform sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case sentinel.ErrNotFound:
		return e.Category == ErrorNotFound
	case sentinel.ErrUnavailable:
		return e.Category == ErrorUnavailable || e.Category == ErrorTimeout
	case sentinel.ErrBadData:
		return e.Category == ErrorBadData
	}
	return false
}

func newError(category ErrorCategory, endpoint, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Endpoint:   endpoint,
		Message:    message,
		Underlying: underlying,
	}
}

// IsRetryable reports whether a manual retry can reasonably succeed.
func IsRetryable(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Category == ErrorTimeout || ce.Category == ErrorUnavailable
	}
	return false
}

// GetCategory extracts the error category from an error
func GetCategory(err error) ErrorCategory {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ErrorUnavailable
}

func categoryForStatus(status int) ErrorCategory {
	switch {
	case status == 404:
		return ErrorNotFound
	case status == 401 || status == 403:
		return ErrorAuthentication
	case status >= 500:
		return ErrorUnavailable
	default:
		return ErrorBadStatus
	}
}
