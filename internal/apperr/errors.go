// Package apperr defines the error kinds surfaced to API callers and the HTTP
// status each one maps to.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is a machine-readable error classification.
type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindAuth         Kind = "auth_error"
	KindInvalidToken Kind = "invalid_token"
	KindExpiredToken Kind = "expired_token"
	KindNotFound     Kind = "not_found"
	KindStore        Kind = "store_error"
	KindIntegrity    Kind = "integrity_error"
	KindUpstream     Kind = "upstream_error"
	KindRateLimited  Kind = "rate_limited"
	KindInternal     Kind = "internal_error"
)

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindInvalidToken, KindExpiredToken:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) defaultMessage() string {
	switch k {
	case KindAuth:
		return "authentication required"
	case KindInvalidToken:
		return "invalid reset token"
	case KindExpiredToken:
		return "reset token has expired"
	case KindNotFound:
		return "not found"
	case KindStore:
		return "database error"
	case KindIntegrity:
		return "data integrity error"
	case KindUpstream:
		return "generation service error"
	case KindRateLimited:
		return "too many requests, please try again later"
	default:
		return "internal server error"
	}
}

// Error is an API-facing error. Message is safe to show to the caller;
// Cause holds the internal detail and is only logged.
type Error struct {
	Kind    Kind
	Message string
	// Status overrides Kind.Status when non-zero.
	Status int
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by kind so callers can write errors.Is(err, apperr.NotFound).
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// HTTPStatus returns the response status for the error.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return e.Kind.Status()
}

// Sentinels for errors.Is comparisons.
var (
	Validation   = &Error{Kind: KindValidation}
	Auth         = &Error{Kind: KindAuth}
	InvalidToken = &Error{Kind: KindInvalidToken}
	ExpiredToken = &Error{Kind: KindExpiredToken}
	NotFound     = &Error{Kind: KindNotFound}
	Store        = &Error{Kind: KindStore}
	Integrity    = &Error{Kind: KindIntegrity}
	Upstream     = &Error{Kind: KindUpstream}
	RateLimited  = &Error{Kind: KindRateLimited}
)

// New creates an error of the given kind. An empty message falls back to
// the kind's default.
func New(kind Kind, message string) *Error {
	if message == "" {
		message = kind.defaultMessage()
	}
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around an internal cause.
func Wrap(kind Kind, message string, cause error) *Error {
	e := New(kind, message)
	e.Cause = cause
	return e
}

// WithStatus returns a copy of e that renders with the given status.
func (e *Error) WithStatus(status int) *Error {
	c := *e
	c.Status = status
	return &c
}

// From converts any error into an *Error. Errors that are not already
// classified become internal errors carrying the original as cause.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(KindInternal, "", err)
}

// KindOf returns the kind of err, or KindInternal if it is not classified.
func KindOf(err error) Kind {
	return From(err).Kind
}
