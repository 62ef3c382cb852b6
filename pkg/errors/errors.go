// Package errors defines custom error types and error handling utilities for the dashgate service.
// This package provides structured error types that map to HTTP status codes and JSON error bodies.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

const (
	ErrCodeInternal           = "internal_error"
	ErrCodeInvalidRequest     = "invalid_request"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeNotFound           = "not_found"
	ErrCodeRateLimitExceeded  = "rate_limit_exceeded"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeConfig             = "invalid_config"
	ErrCodeDatabase           = "database_error"
	ErrCodeCache              = "cache_error"
)

// AppError represents a structured application error.
// Message is the client-facing text rendered into {"error": Message}.
type AppError struct {
	Code       string
	Message    string
	Detail     string
	HTTPStatus int
	Err        error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithError returns a copy of the error carrying cause.
func (e *AppError) WithError(cause error) *AppError {
	cp := *e
	cp.Err = cause
	return &cp
}

// WithDetail returns a copy of the error carrying an additional client-facing detail.
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// New creates an internal AppError with the given message.
func New(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError}
}

// NewError creates an AppError with an explicit code and status.
func NewError(code string, status int, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// ================================================================================
// Predefined Errors
// ================================================================================

var (
	ErrUnauthorized       = NewError(ErrCodeUnauthorized, http.StatusUnauthorized, "Unauthorized")
	ErrRateLimitExceeded  = NewError(ErrCodeRateLimitExceeded, http.StatusTooManyRequests, "Too many requests").WithDetail("Rate limit exceeded. Please try again later.")
	ErrInternalServer     = NewError(ErrCodeInternal, http.StatusInternalServerError, "Internal server error")
	ErrNotFound           = NewError(ErrCodeNotFound, http.StatusNotFound, "Not found")
	ErrDatabase           = NewError(ErrCodeDatabase, http.StatusInternalServerError, "Database operation failed")
	ErrCache              = NewError(ErrCodeCache, http.StatusInternalServerError, "Cache operation failed")
	ErrInvalidConfig      = NewError(ErrCodeConfig, http.StatusInternalServerError, "Invalid configuration")
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, http.StatusServiceUnavailable, "Service unavailable")
)

// ErrInvalidRequest creates a 400 error with the given client-facing message.
func ErrInvalidRequest(message string) *AppError {
	return NewError(ErrCodeInvalidRequest, http.StatusBadRequest, message)
}

// ErrResourceNotFound creates a 404 error naming the missing resource.
func ErrResourceNotFound(resource string) *AppError {
	return NewError(ErrCodeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// ================================================================================
// Helpers
// ================================================================================

// As is a re-export of the standard library errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is is a re-export of the standard library errors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// FromError converts any error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.WithError(err)
}
