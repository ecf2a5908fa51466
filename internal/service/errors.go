package service

import (
	"fmt"
	"time"
)

// RateLimitedError is returned when a user's request budget is exhausted.
// Surfaced to the caller with explicit retry guidance, never swallowed.
type RateLimitedError struct {
	UserId     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %.0fs", e.RetryAfter.Seconds())
}

// AnalysisError carries the user-facing guidance for a failed AI call
// alongside the underlying cause.
type AnalysisError struct {
	UserMessage string
	Err         error
}

func (e *AnalysisError) Error() string {
	return e.UserMessage
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
