// Package apperr defines the error kinds shared by the server and the client core.
//
// Every error that crosses a package boundary carries one kind (checked with
// errors.Is) and a human-readable message that is safe to show to users.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrAuth       = errors.New("authentication required")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrTransport  = errors.New("transport failure")
	ErrUpload     = errors.New("upload failed")
)

// Error is a kinded error with a user-facing message and an optional cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Kind.Error() + ": " + e.Err.Error()
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

func newErr(kind error, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

func Validation(format string, args ...any) error {
	return newErr(ErrValidation, nil, format, args...)
}

func Auth(format string, args ...any) error {
	return newErr(ErrAuth, nil, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newErr(ErrForbidden, nil, format, args...)
}

func NotFound(format string, args ...any) error {
	return newErr(ErrNotFound, nil, format, args...)
}

func Conflict(format string, args ...any) error {
	return newErr(ErrConflict, nil, format, args...)
}

func Transport(cause error, format string, args ...any) error {
	return newErr(ErrTransport, cause, format, args...)
}

func Upload(cause error, format string, args ...any) error {
	return newErr(ErrUpload, cause, format, args...)
}

// Status maps an error kind to the HTTP status the API answers with.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUpload), errors.Is(err, ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromStatus is the inverse of Status, used by the REST client.
func FromStatus(code int) error {
	switch code {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return ErrValidation
	case http.StatusUnauthorized:
		return ErrAuth
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	default:
		return ErrTransport
	}
}

// Message returns the user-facing message of err. Errors without a kind are
// reported as a generic internal error so driver details never leak.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Msg != "" {
			return e.Msg
		}
		return e.Kind.Error()
	}
	return "internal error"
}
