// Package fault defines the error taxonomy shared by all marketplace
// operations. Every operation fails with exactly one of the five kinds;
// the HTTP layer maps kinds to status codes in a single place.
package fault

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind classifies an operation failure.
type Kind uint8

const (
	// Unauthorized means the caller lacks the required role or ownership.
	Unauthorized Kind = iota + 1
	// NotFound means a referenced entity key is absent.
	NotFound
	// Conflict means a caller-supplied unique key already exists.
	Conflict
	// InvalidArgument means a field is malformed or out of range.
	InvalidArgument
	// InvalidState means the operation is not valid for the entity's
	// current lifecycle state.
	InvalidState
)

// String returns the canonical name of the kind.
func (k Kind) String() string {
	switch k {
	case Unauthorized:
		return "unauthorized"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case InvalidArgument:
		return "invalid_argument"
	case InvalidState:
		return "invalid_state"
	default:
		return "unknown"
	}
}

// Error is a classified operation failure. Failures are terminal and
// non-retryable; the caller is responsible for idempotency via unique keys.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Is reports whether err wraps a fault.Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// KindOf returns the kind of err, or 0 if err does not wrap a fault.Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
