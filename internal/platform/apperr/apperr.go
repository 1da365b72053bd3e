// Package apperr defines the error taxonomy shared by all domain services.
// Every failure a service returns is classified into one of five kinds so
// that handlers can map it to an HTTP status without inspecting message
// strings, and callers can branch with errors.As.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Kind int

const (
	// Validation marks malformed or contradictory input (start >= end,
	// missing mandatory dosage). Recoverable by the caller.
	Validation Kind = iota
	// NotFound marks a referenced entity that is absent or not owned by
	// the caller.
	NotFound
	// Conflict marks a scheduling overlap or duplicate unique key.
	Conflict
	// Forbidden marks a role or ownership mismatch. Messages for this
	// kind must not reveal whether the target resource exists.
	Forbidden
	// Storage marks a transaction or connectivity failure. Surfaced as a
	// generic failure, never silently swallowed.
	Storage
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Forbidden:
		return "forbidden"
	case Storage:
		return "storage"
	}
	return "unknown"
}

// Error is a kind-tagged error. Msg is safe to return to the caller; Err
// holds the underlying cause for logs.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a kind-tagged error with a caller-visible message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind and a caller-visible message.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from an error chain. Untagged errors are
// treated as Storage: an unclassified failure must never be reported as a
// caller mistake.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Storage
}

func IsValidation(err error) bool { return is(err, Validation) }
func IsNotFound(err error) bool   { return is(err, NotFound) }
func IsConflict(err error) bool   { return is(err, Conflict) }
func IsForbidden(err error) bool  { return is(err, Forbidden) }
func IsStorage(err error) bool    { return is(err, Storage) }

func is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HTTPStatus maps an error kind to its HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// HTTP converts a service error into an echo HTTP error. Storage failures
// get a generic body so internals never leak to the caller.
func HTTP(err error) *echo.HTTPError {
	if KindOf(err) == Storage {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	var e *Error
	if errors.As(err, &e) {
		return echo.NewHTTPError(HTTPStatus(err), e.Msg)
	}
	return echo.NewHTTPError(HTTPStatus(err), err.Error())
}
