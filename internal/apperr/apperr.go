// Package apperr defines the error taxonomy shared by the query pipeline.
// Callers branch on Kind via errors.Is; the HTTP layer maps every kind to a
// safe response envelope so no internal detail crosses the request boundary.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindConfiguration marks missing credentials or settings. Fatal, not retryable.
	KindConfiguration Kind = "CONFIGURATION"
	// KindUpstreamProvider marks failed embedding/model/store calls. Recoverable
	// through the fallback chain or router fallback.
	KindUpstreamProvider Kind = "UPSTREAM_PROVIDER"
	// KindValidation marks malformed plans, disallowed operators and
	// out-of-vocabulary terms. Recovered by substituting the safe default plan.
	KindValidation Kind = "VALIDATION"
	// KindPartialResult marks requests where some sub-questions failed. The
	// aggregate response is still returned with its degraded flag set.
	KindPartialResult Kind = "PARTIAL_RESULT"
)

// Error carries a kind, a caller-safe message and the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a taxonomy error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a taxonomy kind to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// Retryable reports whether the error kind is safe to retry upstream.
func Retryable(err error) bool {
	return IsKind(err, KindUpstreamProvider)
}
