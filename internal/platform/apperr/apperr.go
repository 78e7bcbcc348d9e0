package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable, machine-readable error category returned to callers.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindTokenExpired Kind = "token_expired"
	KindRateLimited  Kind = "rate_limited"
	KindInternal     Kind = "internal"
)

// Error is a structured error carried from the record store and gateway up
// to the HTTP boundary. Cause is for logs only and never serialized.
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

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Cause == nil
}

// ErrNotFound matches any not_found error under errors.Is.
var ErrNotFound = &Error{Kind: KindNotFound}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized never says which credential was wrong.
func Unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Message: "invalid credentials"}
}

func TokenExpired(cause error) *Error {
	return &Error{Kind: KindTokenExpired, Message: "token expired", Cause: cause}
}

func InvalidToken(cause error) *Error {
	return &Error{Kind: KindUnauthorized, Message: "invalid token", Cause: cause}
}

func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Message: "too many attempts"}
}

func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Cause: cause}
}

// KindOf returns the kind of err, or KindInternal for anything that is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Status maps a kind to its HTTP status code.
func Status(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized, KindTokenExpired:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
