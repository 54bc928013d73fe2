package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures so that callers can choose a recovery
// strategy: transient errors are retried with jitter, auth errors surface to
// the operator, timeouts trigger fallbacks, and format errors route to
// per-generator defaults.
type ErrorKind int

const (
	// KindTransient covers rate limits, 5xx responses, and connection resets.
	KindTransient ErrorKind = iota

	// KindAuth covers invalid or expired credentials. Not retryable.
	KindAuth

	// KindTimeout covers per-call deadline expiry and context cancellation.
	KindTimeout

	// KindFormat covers responses that could not be parsed into the expected
	// shape (e.g., malformed JSON from a generator agent).
	KindFormat
)

// String returns the lowercase name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	case KindTimeout:
		return "timeout"
	case KindFormat:
		return "format"
	default:
		return "unknown"
	}
}

// Error is the typed error surfaced by providers and agents.
type Error struct {
	// Kind classifies the failure for recovery dispatch.
	Kind ErrorKind

	// Op names the failed operation (e.g., "stream", "complete").
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("llm: %s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with the given kind and operation name.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the ErrorKind from err. Context deadline and cancellation
// errors map to KindTimeout; anything without an embedded *Error defaults to
// KindTransient, the safe choice for retry logic.
func KindOf(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindTransient
}
