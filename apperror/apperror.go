// Package apperror defines the error kinds shared by the session, audit and
// metrics services and their mapping onto HTTP statuses.
package apperror

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindExpiredOrRevoked
	KindUnauthenticated
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindExpiredOrRevoked:
		return "expired_or_revoked"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Message is safe to show to API callers;
// Err carries the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func ExpiredOrRevoked(message string) *Error {
	return New(KindExpiredOrRevoked, message)
}

func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, message)
}

// Store wraps a persistence failure. The public message never includes the cause.
func Store(op string, err error) *Error {
	return &Error{Kind: KindStore, Op: op, Message: "internal storage error", Err: err}
}

// KindOf returns the kind of the first *Error found in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// PublicMessage returns the caller-facing message for err.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindExpiredOrRevoked, KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
