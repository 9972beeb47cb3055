package daw

import (
	"errors"
	"fmt"
)

// Kind classifies every error the bridge can surface to a caller. The
// set is closed: the dispatcher maps anything unrecognized to KindInternal.
type Kind string

const (
	// KindInvalidInput means validation failed before any I/O.
	KindInvalidInput Kind = "invalid_input"
	// KindNotReady means a precondition resource (DAW connection, bridge
	// device, populated catalog) is unavailable.
	KindNotReady Kind = "not_ready"
	// KindTimeout means a bounded wait expired without resolution.
	KindTimeout Kind = "timeout"
	// KindDisconnected means a transport was lost and could not be
	// re-established within the attempt budget.
	KindDisconnected Kind = "disconnected"
	// KindDawReported means the DAW answered with status=error.
	KindDawReported Kind = "daw_reported"
	// KindBridgeBusy means the deep-API bridge rejected an operation
	// because another is in flight.
	KindBridgeBusy Kind = "bridge_busy"
	// KindBridgeReported means the bridge answered status=error for any
	// other reason.
	KindBridgeReported Kind = "bridge_reported"
	// KindProtocolError means unparseable framing, wrong field types, or
	// failed chunk reassembly.
	KindProtocolError Kind = "protocol_error"
	// KindInternal is everything else; the caller-facing message is
	// generic and the detail goes to the log.
	KindInternal Kind = "internal"
)

// Error is the bridge's typed error. Details carries structured context
// for the error envelope (offending field, missing chunk indices, ...).
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	wrapped error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.wrapped }

// E builds a typed error with a formatted message.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error, preserving it for
// errors.Is/As chains.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), wrapped: err}
}

// WithDetails returns a copy of e carrying structured detail fields.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// KindOf extracts the Kind from an error chain, defaulting to KindInternal.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
