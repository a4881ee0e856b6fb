// Package apperror holds the error kinds shared by services and transports.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrTooManyRequests = errors.New("too many requests")
	ErrValidation      = errors.New("validation failed")
	ErrUpstream        = errors.New("upstream failure")
	ErrNotFound        = errors.New("not found")
)

// AppError carries a client-facing message next to its kind and the
// underlying cause, which is only ever logged.
type AppError struct {
	Kind    error
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) Is(target error) bool {
	return e.Kind == target
}

func New(kind error, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func Wrap(kind error, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

func Unauthorized(message string) *AppError {
	return New(ErrUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(ErrForbidden, message)
}

func Conflict(message string) *AppError {
	return New(ErrConflict, message)
}

func Validation(message string) *AppError {
	return New(ErrValidation, message)
}

func Upstream(cause error) *AppError {
	return Wrap(ErrUpstream, "Something went wrong", cause)
}

// MessageOf returns the client-facing message of err, or fallback when err
// does not carry one.
func MessageOf(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
