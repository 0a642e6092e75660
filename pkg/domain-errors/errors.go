// Package domainerrors defines the error taxonomy shared by every service.
//
// Services return *Error values carrying a stable Code. Transports map codes to
// status (see pkg/platform/httputil) without inspecting messages, so messages
// must be safe to show a caller and never include internal state.
package domainerrors

import (
	"errors"
	"fmt"
	"time"
)

// Code identifies an error class.
type Code string

const (
	// Validation: malformed or out-of-range input.
	CodeValidation   Code = "validation_error"
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"

	// Authorization: policy denial or missing identity.
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"

	CodeNotFound Code = "not_found"

	// Conflict: uniqueness violation or state machine violation.
	CodeConflict          Code = "conflict"
	CodeInvalidTransition Code = "invalid_transition"

	// Retryable classes.
	CodeRateLimited Code = "rate_limited"
	CodeUnavailable Code = "unavailable"
	CodeTimeout     Code = "timeout"

	// Invariant violations are raised by aggregates and translated to
	// CodeValidation at the service boundary.
	CodeInvariantViolation Code = "invariant_violation"

	CodeInternal Code = "internal_error"
)

// Error is a coded domain error.
type Error struct {
	Code       Code
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// RateLimited builds a retryable rate limit error.
func RateLimited(msg string, retryAfter time.Duration) error {
	return &Error{Code: CodeRateLimited, Message: msg, RetryAfter: retryAfter}
}

// From extracts the outermost *Error in the chain.
func From(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the outermost coded error in the chain has code.
func HasCode(err error, code Code) bool {
	de, ok := From(err)
	return ok && de.Code == code
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the error code, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	if de, ok := From(err); ok {
		return de.Code
	}
	return CodeInternal
}

// IsRetryable reports whether a caller may retry the same command later.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeRateLimited, CodeUnavailable, CodeTimeout:
		return true
	}
	return false
}
