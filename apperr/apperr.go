// Package apperr defines the closed set of failure kinds surfaced by the
// commitment core. Callers branch on Kind; transport layers map kinds to
// status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindInvalidState   Kind = "INVALID_STATE"
	KindForbidden      Kind = "FORBIDDEN"
	KindPlanForbidden  Kind = "PLAN_FORBIDDEN"
	KindLinkInvalid    Kind = "LINK_INVALID"
	KindLinkOldVersion Kind = "LINK_OLD_VERSION"
	KindValidation     Kind = "VALIDATION"
)

// Error carries a Kind plus a human readable message. The wrapped error, if
// any, is kept for logging and is never shown to clients.
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

// Is reports whether target is an *Error of the same kind, so the sentinels
// below work with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound       = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict       = &Error{Kind: KindConflict, Message: "conflict"}
	ErrInvalidState   = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrForbidden      = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrPlanForbidden  = &Error{Kind: KindPlanForbidden, Message: "feature not available on plan"}
	ErrLinkInvalid    = &Error{Kind: KindLinkInvalid, Message: "link is invalid or expired"}
	ErrLinkOldVersion = &Error{Kind: KindLinkOldVersion, Message: "link refers to an outdated version"}
	ErrValidation     = &Error{Kind: KindValidation, Message: "validation failed"}
)

// New builds an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// NotFound, InvalidState, Conflict and Forbidden are shorthands for the kinds
// the state machine raises most often.
func NotFound(format string, args ...any) *Error { return New(KindNotFound, format, args...) }

func InvalidState(format string, args ...any) *Error {
	return New(KindInvalidState, format, args...)
}

func Conflict(format string, args ...any) *Error { return New(KindConflict, format, args...) }

func Forbidden(format string, args ...any) *Error { return New(KindForbidden, format, args...) }

// KindOf returns the kind of the first *Error in err's chain, or the empty
// Kind for infrastructure failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
