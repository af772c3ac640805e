package apperrors

import (
	"errors"
	"net/http"
	"strings"
)

// Kind classifies an application error for the HTTP boundary
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindIdentity     Kind = "identity"
)

// Error is a business or authentication failure carrying one or more
// human-readable messages.
type Error struct {
	Kind     Kind
	Messages []string
}

func (e *Error) Error() string {
	if len(e.Messages) == 0 {
		return string(e.Kind)
	}
	return strings.Join(e.Messages, "; ")
}

// StatusCode returns the HTTP status associated with the error kind
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, messages []string) *Error {
	return &Error{Kind: kind, Messages: messages}
}

// NotFound reports an absent entity
func NotFound(messages ...string) *Error { return newError(KindNotFound, messages) }

// Conflict reports a business-rule violation (duplicate, protected entity, quota)
func Conflict(messages ...string) *Error { return newError(KindConflict, messages) }

// Unauthorized reports an authentication or session failure
func Unauthorized(messages ...string) *Error { return newError(KindUnauthorized, messages) }

// Forbidden reports a failed authorization decision
func Forbidden(messages ...string) *Error { return newError(KindForbidden, messages) }

// Identity reports credential-store rule violations such as password policy failures
func Identity(messages ...string) *Error { return newError(KindIdentity, messages) }

// As extracts an *Error from err's chain
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func Is(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

func IsNotFound(err error) bool     { return Is(err, KindNotFound) }
func IsConflict(err error) bool     { return Is(err, KindConflict) }
func IsUnauthorized(err error) bool { return Is(err, KindUnauthorized) }
func IsForbidden(err error) bool    { return Is(err, KindForbidden) }
func IsIdentity(err error) bool     { return Is(err, KindIdentity) }
