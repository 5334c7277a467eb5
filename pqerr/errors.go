// Package pqerr defines the error kinds shared across the engine.
package pqerr

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error kinds the core can produce.
type Kind int

const (
	// KindCancelled is returned when a caller's cancellation token fired.
	KindCancelled Kind = iota
	// KindUnknownColumn is a static contract violation from an operator
	// referencing a column that doesn't exist.
	KindUnknownColumn
	// KindInvalidJoin covers a merge whose key lists disagree in length.
	KindInvalidJoin
	// KindInvalidArgument covers any other static contract violation.
	KindInvalidArgument
	// KindUnknownQuery is raised by the refresh orchestrator/session for a
	// QueryRef that doesn't resolve.
	KindUnknownQuery
	// KindCycleError is raised when query references form a cycle.
	KindCycleError
	// KindPermissionDenied is raised by the permission hook.
	KindPermissionDenied
	// KindCredentialUnavailable is raised by the credential hook.
	KindCredentialUnavailable
	// KindConnectorFailure wraps an opaque connector error.
	KindConnectorFailure
	// KindPrivacyBlocked is raised by the formula firewall.
	KindPrivacyBlocked
	// KindCacheCorruption is raised internally; it is never fatal, always
	// downgraded to a cache miss by the caller.
	KindCacheCorruption
)

func (k Kind) String() string {
	switch k {
	case KindCancelled:
		return "Cancelled"
	case KindUnknownColumn:
		return "UnknownColumn"
	case KindInvalidJoin:
		return "InvalidJoin"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindUnknownQuery:
		return "UnknownQuery"
	case KindCycleError:
		return "CycleError"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindCredentialUnavailable:
		return "CredentialUnavailable"
	case KindConnectorFailure:
		return "ConnectorFailure"
	case KindPrivacyBlocked:
		return "PrivacyBlocked"
	case KindCacheCorruption:
		return "CacheCorruption"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by the core. Use errors.As to
// recover it and inspect Kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// UnknownColumn is a convenience constructor used pervasively by the
// operator library.
func UnknownColumn(name string) *Error {
	return New(KindUnknownColumn, fmt.Sprintf("unknown column %q", name))
}
