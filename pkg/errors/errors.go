package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed client error with HTTP awareness. Status is the
// HTTP status that produced the error, or 0 when the request never reached
// the server.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors covering the client failure taxonomy.
var (
	// ErrNetwork is a transport-level failure: no HTTP response was received.
	ErrNetwork = New("NETWORK_FAILURE", 0, "could not reach the server")
	// ErrValidation is a server-reported 4xx carrying a structured message.
	ErrValidation = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	// ErrUnauthorized triggers global session teardown at the HTTP adapter
	// boundary and is never re-surfaced by the state managers.
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "session expired")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	// ErrPrecondition means an operation was invoked without required local
	// state (e.g. no signed-in user). It never reaches the network.
	ErrPrecondition = New("LOCAL_PRECONDITION", http.StatusPreconditionFailed, "precondition failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Is reports whether err carries the same code as target. Predefined errors
// act as sentinels keyed by Code rather than pointer identity, so wrapped and
// cloned errors still match.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
