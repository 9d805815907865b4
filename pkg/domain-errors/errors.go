// Package domainerrors provides coded errors for the service boundary.
//
// Stores speak pkg/platform/sentinel; services translate sentinel errors into
// coded errors; the HTTP layer maps codes onto status lines. Keeping the code
// on the error (instead of matching strings) lets callers branch with HasCode
// without coupling to message text.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport mapping and caller branching.
type Code string

const (
	CodeInvalidInput          Code = "invalid_input"
	CodeInvalidState          Code = "invalid_state"
	CodeInvalidTransition     Code = "invalid_transition"
	CodeConflict              Code = "conflict"
	CodeInsufficientInventory Code = "insufficient_inventory"
	CodeNotFound              Code = "not_found"
	CodeUnauthorized          Code = "unauthorized"
	CodeForbidden             Code = "forbidden"
	CodeInvariantViolation    Code = "invariant_violation"
	CodeUnavailable           Code = "unavailable"
	CodeInternal              Code = "internal"
)

// DomainError carries a machine-readable code alongside the message.
type DomainError struct {
	Code    Code
	Message string
	cause   error
}

func (e DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e DomainError) Unwrap() error { return e.cause }

// New constructs a coded error with no underlying cause.
func New(code Code, message string) error {
	return DomainError{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	return DomainError{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de DomainError
	for err != nil {
		if errors.As(err, &de) {
			if de.Code == code {
				return true
			}
			err = de.Unwrap()
			continue
		}
		return false
	}
	return false
}

// CodeOf extracts the outermost code, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto the HTTP status the transport layer should use.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeInvariantViolation:
		return http.StatusBadRequest
	case CodeInvalidState, CodeInvalidTransition:
		return http.StatusUnprocessableEntity
	case CodeConflict, CodeInsufficientInventory:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
