package llm

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies provider failures for outcome recording and
// user-facing messaging.
type ErrorCategory string

const (
	ErrorRateLimit ErrorCategory = "RATE_LIMIT"
	ErrorAuth      ErrorCategory = "AUTH_ERROR"
	ErrorQuota     ErrorCategory = "QUOTA_EXCEEDED"
	ErrorUnknown   ErrorCategory = "UNKNOWN"
)

// ProviderError wraps a backend failure with its category and origin.
type ProviderError struct {
	Provider string
	Category ErrorCategory
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error (%s): %v", e.Provider, e.Category, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Categorize extracts the category from an error chain; anything that is not
// a ProviderError is Unknown.
func Categorize(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorUnknown
}

// CategoryFromStatus maps an HTTP status code to an error category.
func CategoryFromStatus(status int) ErrorCategory {
	switch status {
	case 429:
		return ErrorRateLimit
	case 401, 403:
		return ErrorAuth
	case 402:
		return ErrorQuota
	default:
		return ErrorUnknown
	}
}
