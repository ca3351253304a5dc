// Package errors carries the classified errors that services return and the
// REST layer maps onto status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an AppError for transport mapping.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeBusiness     ErrorType = "business"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeTooLarge     ErrorType = "too_large"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeInternal     ErrorType = "internal"
)

var statusByType = map[ErrorType]int{
	ErrorTypeValidation:   http.StatusBadRequest,
	ErrorTypeBusiness:     http.StatusUnprocessableEntity,
	ErrorTypeNotFound:     http.StatusNotFound,
	ErrorTypeConflict:     http.StatusConflict,
	ErrorTypeTooLarge:     http.StatusRequestEntityTooLarge,
	ErrorTypeUnauthorized: http.StatusUnauthorized,
	ErrorTypeRateLimit:    http.StatusTooManyRequests,
	ErrorTypeInternal:     http.StatusInternalServerError,
}

// AppError is an error with a stable machine-readable code. Message is safe to
// show to API clients; Cause is not.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StatusCode int                    `json:"status_code"`
}

func newAppError(t ErrorType, code, message string) *AppError {
	return &AppError{Type: t, Code: code, Message: message, StatusCode: statusByType[t]}
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithDetails attaches structured context, e.g. per-field messages.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewValidationError reports malformed input
func NewValidationError(code, message string) *AppError {
	return newAppError(ErrorTypeValidation, code, message)
}

// NewBusinessError reports a well-formed request the current state forbids,
// such as resolving an alert twice.
func NewBusinessError(code, message string) *AppError {
	return newAppError(ErrorTypeBusiness, code, message)
}

func NewNotFoundError(resource string) *AppError {
	return newAppError(ErrorTypeNotFound, "RESOURCE_NOT_FOUND", resource+" not found")
}

func NewConflictError(message string) *AppError {
	return newAppError(ErrorTypeConflict, "CONFLICT", message)
}

// NewPayloadTooLargeError reports a request body or upload over limit bytes
func NewPayloadTooLargeError(what string, limit int64) *AppError {
	return newAppError(ErrorTypeTooLarge, "PAYLOAD_TOO_LARGE",
		fmt.Sprintf("%s exceeds %d bytes", what, limit)).
		WithDetails(map[string]interface{}{"limitBytes": limit})
}

func NewUnauthorizedError(message string) *AppError {
	return newAppError(ErrorTypeUnauthorized, "UNAUTHORIZED", message)
}

func NewRateLimitError() *AppError {
	return newAppError(ErrorTypeRateLimit, "RATE_LIMIT_EXCEEDED", "Too many requests")
}

func NewInternalError(message string) *AppError {
	return newAppError(ErrorTypeInternal, "INTERNAL_ERROR", message)
}

// Wrap adds context to err while keeping it matchable with errors.As.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType reports whether err's chain holds an AppError of type t.
func IsType(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}

// As returns the AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
