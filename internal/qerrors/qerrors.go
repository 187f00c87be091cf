// Package qerrors provides typed errors for dataset operations. Every failure
// surfaced by an adapter or the orchestrator carries a Kind so callers and the
// resilience layer can branch on failure class instead of string matching.
package qerrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindInternal is an unclassified failure.
	KindInternal Kind = iota
	// KindTransient covers connection failures, timeouts and transient I/O
	// errors on external calls. Only transient failures are retried.
	KindTransient
	// KindRejected is a non-2xx application response (other than 404 on
	// lookups). Retrying cannot help.
	KindRejected
	// KindNotFound marks a missing entity (404 on a lookup, unknown dataset).
	KindNotFound
	// KindConflict marks a uniqueness violation, e.g. reusing a version tag.
	KindConflict
	// KindSecurity marks a rejected unsafe input, e.g. a path-traversal
	// archive entry.
	KindSecurity
	// KindInvalid marks a caller-side validation failure.
	KindInvalid
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRejected:
		return "rejected"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindSecurity:
		return "security"
	case KindInvalid:
		return "invalid"
	default:
		return "internal"
	}
}

// Error is a classified error with the originating operation name.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	default:
		return e.Op
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a classified error without a cause.
func New(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error.
func Wrap(op string, kind Kind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Cause: cause}
}

// Wrapf classifies an existing error with an additional message.
func Wrapf(op string, kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind from an error chain. Unclassified errors report
// KindInternal.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return KindInternal
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
