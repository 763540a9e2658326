// Package errors defines the failure taxonomy shared by the gateway, repositories and HTTP layer.
package errors

import (
	"errors"
	"fmt"
)

// Code classifies a failure.
type Code string

const (
	// CodeAuth means no principal could be resolved or created.
	CodeAuth Code = "AUTH_ERROR"
	// CodeNotFound covers missing rows and rows owned by another principal.
	CodeNotFound Code = "NOT_FOUND"
	// CodeConflict is a rejected write that collides with existing state.
	CodeConflict Code = "CONFLICT"
	// CodeValidation is a rejected write with malformed input.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeTransport means the gateway could not be reached.
	CodeTransport Code = "TRANSPORT_ERROR"
	// CodeInternal is anything unclassified.
	CodeInternal Code = "INTERNAL_ERROR"
)

// AppError is a classified error with an optional cause.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is reports whether target is an AppError with the same code, so errors.Is(err, NotFound(""))
// matches any not-found error.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// New creates an AppError.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap creates an AppError carrying cause.
func Wrap(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, cause: cause}
}

func Auth(message string) *AppError {
	return New(CodeAuth, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message)
}

func Validation(message string) *AppError {
	return New(CodeValidation, message)
}

func Transport(cause error) *AppError {
	return Wrap(CodeTransport, "gateway unavailable", cause)
}

// AsAppError extracts an AppError from err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns err's code, or CodeInternal for unclassified errors.
func GetCode(err error) Code {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

func IsAuth(err error) bool       { return GetCode(err) == CodeAuth }
func IsNotFound(err error) bool   { return GetCode(err) == CodeNotFound }
func IsConflict(err error) bool   { return GetCode(err) == CodeConflict }
func IsValidation(err error) bool { return GetCode(err) == CodeValidation }
func IsTransport(err error) bool  { return GetCode(err) == CodeTransport }
