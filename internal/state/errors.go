// Package state implements the broker's authoritative, in-memory state
// engine: the Agents registry, per-agent message Queues, and the shared
// ContextStore. Every exported method is atomic with respect to every
// other — see the package-level comment on Engine for the locking
// discipline.
package state

import (
	"errors"
	"fmt"
)

// Kind classifies a state-engine error into the transport-agnostic
// taxonomy every RPC binding (HTTP today) maps onto status codes.
// Uses a single comparable enum, rather than distinct sentinel error
// values, so callers can switch on Kind instead of comparing package-level
// vars.
type Kind int

const (
	// KindNone marks a nil *Error; never returned from a failing call.
	KindNone Kind = iota
	// KindInvalidArgument marks a missing or malformed required field.
	KindInvalidArgument
	// KindNotFound marks an unknown agent or context key.
	KindNotFound
	// KindResourceExhausted marks a quota (MAX_AGENTS, MAX_CONTEXT_KEYS) reached.
	KindResourceExhausted
	// KindPayloadTooLarge marks a size bound (content or context value) exceeded.
	KindPayloadTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindPayloadTooLarge:
		return "payload_too_large"
	default:
		return "none"
	}
}

// Error is the error type returned by every Engine method. Kind is
// machine-readable and Message is safe to surface to a caller verbatim.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newErr(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func invalidArgument(format string, args ...any) *Error {
	return newErr(KindInvalidArgument, format, args...)
}

func notFound(format string, args ...any) *Error {
	return newErr(KindNotFound, format, args...)
}

func resourceExhausted(format string, args ...any) *Error {
	return newErr(KindResourceExhausted, format, args...)
}

func payloadTooLarge(format string, args ...any) *Error {
	return newErr(KindPayloadTooLarge, format, args...)
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error.
// Returns KindNone for any other error, including nil.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}
