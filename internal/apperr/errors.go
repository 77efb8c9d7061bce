// Package apperr carries the coded errors returned by the allocation core.
package apperr

import (
	"errors"
	"fmt"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable message
	Metadata map[string]string // Additional context
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMetadata creates an error carrying extra context.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates an error that wraps a cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code of the first *Error in the chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrInvalidApplicationState = New(CodeInvalidApplicationState, "application is not approved by the dormitory")
	ErrGenderUndetermined      = New(CodeGenderUndetermined, "applicant has no binary gender on file")
	ErrCapacityExceeded        = New(CodeCapacityExceeded, "room has no free places")
	ErrGenderConflict          = New(CodeGenderConflict, "room is not compatible with the occupant's gender")
	ErrNoRoomAvailable         = New(CodeNoRoomAvailable, "no room available")
	ErrDuplicateActiveClaim    = New(CodeDuplicateActiveClaim, "an active claim for this academic year already exists")
	ErrInvalidTransition       = New(CodeInvalidTransition, "status transition is not allowed")
	ErrRoomNotReservable       = New(CodeRoomNotReservable, "room is not reservable")
	ErrInvalidArgument         = New(CodeInvalidArgument, "invalid argument")
	ErrNotFound                = New(CodeNotFound, "not found")
	ErrForbidden               = New(CodeForbidden, "forbidden")
)
