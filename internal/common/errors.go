// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors. ErrResultConflict marks an attempt to rewrite an
	// existing result version with different contents; identical rewrites
	// are no-ops.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrResultConflict = errors.New("result version conflict")

	// Rule errors.
	ErrInvalidRule = errors.New("invalid rule")

	// Iteration errors.
	ErrIterationExhausted = errors.New("iteration bound exhausted")

	// Run errors. ErrRunFatal marks failures that abort the whole run, such
	// as catalog store unavailability or a configuration violation.
	ErrRunFatal = errors.New("fatal run error")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsFatal reports whether an error must abort the entire run rather than a
// single brand's pipeline.
func IsFatal(err error) bool {
	return errors.Is(err, ErrRunFatal) || errors.Is(err, ErrInvalidConfig)
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	// Rate limits and timeouts are worth retrying
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Check for retryable error type
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
