package retry

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

// RecoverableError lets an error state explicitly whether it can be retried.
type RecoverableError interface {
	error
	IsRecoverable() bool
}

// IsRecoverable checks if an error can be retried. Errors that do not
// implement RecoverableError are classified heuristically: timeouts and
// transient network or backend failures are recoverable, cancellation and
// everything else is not.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var recoverable RecoverableError
	if errors.As(err, &recoverable) {
		return recoverable.IsRecoverable()
	}
	return isRecoverableByType(err)
}

func isRecoverableByType(err error) bool {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, context.Canceled):
		return false // Cancellation is intentional, don't retry
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return netErr.Temporary() || netErr.Timeout()
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isRecoverableByType(urlErr.Err)
	}

	// Common transient failure modes for the stores and HTTP sources we
	// talk to: connection churn, throttling, and 5xx-ish responses.
	errStr := strings.ToLower(err.Error())
	recoverablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"rate limit",
		"service unavailable",
		"database is locked",
		"internal server error",
		"bad gateway",
		"gateway timeout",
	}
	for _, pattern := range recoverablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

type recoverableError struct {
	err error
}

func (e *recoverableError) Error() string {
	return e.err.Error()
}

func (e *recoverableError) IsRecoverable() bool {
	return true
}

func (e *recoverableError) Unwrap() error {
	return e.err
}

// NewRecoverableError marks an error as safe to retry.
func NewRecoverableError(err error) RecoverableError {
	return &recoverableError{err: err}
}

type nonRecoverableError struct {
	err error
}

func (e *nonRecoverableError) Error() string {
	return e.err.Error()
}

func (e *nonRecoverableError) IsRecoverable() bool {
	return false
}

func (e *nonRecoverableError) Unwrap() error {
	return e.err
}

// NewNonRecoverableError marks an error as one that must not be retried.
func NewNonRecoverableError(err error) RecoverableError {
	return &nonRecoverableError{err: err}
}
