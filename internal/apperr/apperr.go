// Package apperr carries the typed error taxonomy shared by every layer.
// Repositories and services return these; the transport layer maps kinds to
// wire status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindInvalidArgument: malformed or self-referential input.
	KindInvalidArgument Kind = iota + 1
	// KindNotAuthorized: the actor is not a party to the resource.
	KindNotAuthorized
	// KindInvalidTransition: the requested hire status edge is not permitted.
	KindInvalidTransition
	// KindConflict: a uniqueness constraint was violated.
	KindConflict
	// KindNotFound: the referenced resource is absent.
	KindNotFound
	// KindTransient: backing store or network unavailability; retriable by
	// the caller, no backoff is built in here.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotAuthorized:
		return "not_authorized"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	}
	return "unknown"
}

// Error is a failure tagged with a Kind. It supports errors.Is/errors.As
// and unwraps to any underlying cause.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the classification of the error.
func (e *Error) Kind() Kind { return e.kind }

// New returns an error of the given kind.
func New(k Kind, msg string) error {
	return &Error{kind: k, msg: msg}
}

// Newf returns a formatted error of the given kind.
func Newf(k Kind, format string, args ...any) error {
	return &Error{kind: k, msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind and context message.
func Wrap(k Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: k, msg: msg, err: err}
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}

// KindOf extracts the kind of err, or 0 when err is untyped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return 0
}
