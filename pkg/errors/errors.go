// Package errors provides the typed failure taxonomy for the compliance engine.
// Every workflow failure is reported to the host as one of the kinds below; the
// engine never swallows or retries on its own.
package errors

import (
	"errors"
	"fmt"
)

// Standard error functions
var (
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

// Kind identifies the category of an engine failure.
type Kind string

const (
	KindValidation        Kind = "ValidationError"
	KindInvalidTransition Kind = "InvalidTransitionError"
	KindAlreadyFlagged    Kind = "AlreadyFlaggedError"
	KindRiskGate          Kind = "RiskGateError"
	KindRateNotFound      Kind = "RateNotFoundError"
	KindConflict          Kind = "ConflictError"
	KindNotFound          Kind = "NotFoundError"
)

// Error is a custom error type for passing more information
type Error struct {
	// Kind is the returned error type
	Kind Kind `json:"kind"`
	// Message is the human readable string that indicates the error
	Message string `json:"message"`

	cause error
}

var _ error = (*Error)(nil)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Error implements error
func (e *Error) Error() string {
	str := fmt.Sprintf("[%s] ", e.Kind)
	if e.Message != "" {
		str += e.Message
	}
	if e.cause != nil {
		str += fmt.Sprintf(" (%s)", e.cause)
	}
	return str
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is implements the needed interface for errors.Is.
// Two engine errors match when their kinds match.
func (e *Error) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	if other, ok := target.(*Error); ok {
		return other.Kind == e.Kind
	}
	if e.cause != nil {
		return Is(e.cause, target)
	}
	return false
}

// IsKind reports whether err (or anything it wraps) is an engine error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Convenience constructors for the taxonomy.

func Validation(format string, args ...any) *Error {
	return Newf(KindValidation, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return Newf(KindInvalidTransition, format, args...)
}

func AlreadyFlagged(format string, args ...any) *Error {
	return Newf(KindAlreadyFlagged, format, args...)
}

func RiskGate(format string, args ...any) *Error {
	return Newf(KindRiskGate, format, args...)
}

func RateNotFound(format string, args ...any) *Error {
	return Newf(KindRateNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return Newf(KindConflict, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return Newf(KindNotFound, format, args...)
}
