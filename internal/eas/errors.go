// Package eas implements the ActiveSync protocol layer: the HTTP transport
// session, the provisioning handshake, and typed builders/projections for
// the wire commands the sync engine issues.
package eas

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a protocol failure. The sync engine is the only place
// that decides retry vs. surface vs. escalate based on the kind; lower
// layers just report it.
type ErrorKind string

const (
	// KindDecode: malformed server response. Abort the operation, never
	// retry blindly.
	KindDecode ErrorKind = "protocol_decode"

	// KindTransport: network or TLS level failure. Retryable with bounded
	// backoff at the orchestrator.
	KindTransport ErrorKind = "transport"

	// KindAuth: credentials rejected (401/403). Surfaced, never retried
	// automatically.
	KindAuth ErrorKind = "auth"

	// KindPolicyRequired: the server demands a provisioning handshake
	// (HTTP 449) before it will talk to us.
	KindPolicyRequired ErrorKind = "policy_required"

	// KindCursorInvalid: the server rejected our sync key. Triggers exactly
	// one full resync restart.
	KindCursorInvalid ErrorKind = "cursor_invalid"

	// KindObjectNotFound: the referenced item or attachment no longer
	// exists on the server.
	KindObjectNotFound ErrorKind = "object_not_found"

	// KindServer: the server reported a command-level failure that fits no
	// narrower kind.
	KindServer ErrorKind = "server"
)

// Error is the typed protocol error carried through the engine. Kind is the
// discriminant; Message is safe to derive user-facing text from.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("eas: %s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("eas: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError creates a typed protocol error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError attaches a kind and message to an underlying cause.
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the ErrorKind from an error chain. Unclassified errors
// report KindServer.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServer
}

// Retryable reports whether the engine may retry the operation that
// produced err.
func Retryable(err error) bool {
	return KindOf(err) == KindTransport
}

// UserMessage maps an error kind to a short, stable, user-facing message.
// Raw protocol strings never reach the user.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindDecode:
		return "The server sent a response this client could not understand."
	case KindTransport:
		return "The server could not be reached. Check your connection and try again."
	case KindAuth:
		return "Sign-in failed. Check the account's credentials."
	case KindPolicyRequired:
		return "The server requires a device policy update before syncing."
	case KindCursorInvalid:
		return "Sync state was reset by the server; a full resync is required."
	case KindObjectNotFound:
		return "The requested item or attachment no longer exists on the server."
	default:
		return "The server reported an error while syncing."
	}
}
