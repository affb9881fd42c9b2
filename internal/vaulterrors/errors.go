// Package vaulterrors defines the typed error taxonomy shared across the
// crypto, vault, sync and server layers so callers can branch on failure
// kind with errors.Is/errors.As instead of matching on string text.
package vaulterrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure into one of a small, closed set of outcomes
// the rest of the system needs to distinguish.
type Kind int

const (
	// Internal covers anything that should never surface to a caller as
	// actionable: bugs, exhausted entropy sources, corrupted state.
	Internal Kind = iota
	// AuthFail means an authentication or integrity check (AEAD tag,
	// SRP proof) did not verify.
	AuthFail
	// WrongPassword means the master password did not unlock the vault.
	WrongPassword
	// IntegrityFail means stored or synced data failed a tamper check
	// distinct from authentication, e.g. a downloaded sync envelope whose
	// digest does not match its verification envelope.
	IntegrityFail
	// NotFound means the requested entry, vault or account does not exist.
	NotFound
	// InvalidRequest means caller-supplied input was malformed.
	InvalidRequest
	// InvalidState means an operation was attempted against a vault or
	// session in the wrong lifecycle state (e.g. acting on a closed vault).
	InvalidState
	// SyncFailed means a reconciliation round-trip with the sync server
	// could not complete.
	SyncFailed
)

func (k Kind) String() string {
	switch k {
	case AuthFail:
		return "auth_fail"
	case WrongPassword:
		return "wrong_password"
	case IntegrityFail:
		return "integrity_fail"
	case NotFound:
		return "not_found"
	case InvalidRequest:
		return "invalid_request"
	case InvalidState:
		return "invalid_state"
	case SyncFailed:
		return "sync_failed"
	default:
		return "internal"
	}
}

// Error is the concrete error type carried through the system. It wraps
// an optional cause so errors.As/errors.Unwrap keep working through
// layers of adaptation.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, vaulterrors.New(k, "")) match on Kind alone,
// since two *Error values are considered equivalent once their Kind
// matches regardless of Message/Cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Of reports the Kind of err if it is (or wraps) a *Error, and Internal
// otherwise.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
