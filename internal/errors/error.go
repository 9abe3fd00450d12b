package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryResource Category = "resource"
	CategoryConfig   Category = "config"
	CategoryServer   Category = "server"
)

// StreamError is a coded error with an optional wrapped cause.
type StreamError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation, usually instance specific.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *StreamError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a StreamError with the same code.
func (e *StreamError) Is(target error) bool {
	t, ok := target.(*StreamError)
	if !ok || t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// WithDetail adds a detailed explanation to the error.
func (e *StreamError) WithDetail(format string, args ...any) *StreamError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *StreamError) WithSuggestion(s string) *StreamError {
	e.Suggestion = s
	return e
}

// Wrap sets the underlying error.
func (e *StreamError) Wrap(err error) *StreamError {
	e.Wrapped = err
	return e
}

// New creates a StreamError from a registered error code.
func New(code string) *StreamError {
	template, ok := registry[code]
	if !ok {
		return &StreamError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &StreamError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
	}
}

// Newf creates an uncoded StreamError with a formatted message.
func Newf(category Category, format string, args ...any) *StreamError {
	return &StreamError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Wrap wraps err under code. A nil err yields nil, and an error that
// already carries code is returned unchanged.
func Wrap(code string, err error) *StreamError {
	if err == nil {
		return nil
	}
	var se *StreamError
	if stderrors.As(err, &se) && se.Code == code {
		return se
	}
	return New(code).Wrap(err)
}

// Code returns the code of the first StreamError in err's chain, or "".
func Code(err error) string {
	var se *StreamError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Panicked converts a value recovered from a loader panic into an E101
// error. Error values are wrapped; anything else is rendered into the
// detail.
func Panicked(v any) *StreamError {
	e := New(CodeLoaderPanic)
	if err, ok := v.(error); ok {
		return e.Wrap(err)
	}
	return e.WithDetail("%v", v)
}

// Is, As and Join re-export the standard library helpers so callers need
// only one errors import.
var (
	Is   = stderrors.Is
	As   = stderrors.As
	Join = stderrors.Join
)
