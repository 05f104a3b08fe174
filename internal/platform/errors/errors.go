// Package errors provides the bridge's error taxonomy with context propagation and HTTP status code mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error for logging, metrics and response formatting.
type ErrorType string

const (
	// TypeInput indicates a malformed or unparseable inbound event. The event is dropped, processing continues.
	TypeInput ErrorType = "input"
	// TypeDelivery indicates a failed send to a single receiver. Only that receiver is affected.
	TypeDelivery ErrorType = "delivery"
	// TypeUpstream indicates the event source or broker is unavailable (HTTP 503)
	TypeUpstream ErrorType = "upstream"
	// TypeConfig indicates a fatal configuration or bind error. The bridge does not start.
	TypeConfig ErrorType = "config"
	// TypeValidation indicates invalid request input (HTTP 400)
	TypeValidation ErrorType = "validation"
	// TypeUnavailable indicates the bridge cannot accept more work right now (HTTP 503)
	TypeUnavailable ErrorType = "unavailable"
	// TypeRateLimited indicates a client exceeded its handshake rate (HTTP 429)
	TypeRateLimited ErrorType = "rate_limited"
	// TypeInternal indicates server-side error (HTTP 500)
	TypeInternal ErrorType = "internal"
)

// Error represents a structured error with type, message, and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation, TypeInput:
		return http.StatusBadRequest
	case TypeUpstream, TypeUnavailable:
		return http.StatusServiceUnavailable
	case TypeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    t,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// InputError creates a transient input error for a dropped inbound event.
func InputError(message string, cause error) *Error {
	return newError(TypeInput, message, cause)
}

// DeliveryError creates an error for a failed send to one receiver.
func DeliveryError(message string, cause error) *Error {
	return newError(TypeDelivery, message, cause)
}

// UpstreamError creates an error for an unavailable event source (HTTP 503).
func UpstreamError(message string, cause error) *Error {
	return newError(TypeUpstream, message, cause)
}

// ConfigError creates a fatal configuration error.
func ConfigError(message string, cause error) *Error {
	return newError(TypeConfig, message, cause)
}

// ValidationError creates a new validation error (HTTP 400).
func ValidationError(message string) *Error {
	return newError(TypeValidation, message, nil)
}

// UnavailableError creates a capacity error (HTTP 503).
func UnavailableError(message string, cause error) *Error {
	return newError(TypeUnavailable, message, cause)
}

// RateLimitedError creates an error for a client over its rate limit (HTTP 429).
func RateLimitedError(message string, cause error) *Error {
	return newError(TypeRateLimited, message, cause)
}

// InternalError creates a new internal error (HTTP 500).
func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

// WithField adds a context field to the error (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse represents the JSON structure sent to clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

// ToResponse converts an Error to an ErrorResponse for JSON serialization.
func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Type:    e.Type,
		Context: e.Context,
	}
}

// AsStructuredError converts any error into a structured Error.
// If err is already an *Error, returns it unchanged.
// Otherwise wraps it as an internal error.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return InternalError("internal server error", err)
}

// IsType reports whether err, or any error it wraps, is a structured error of type t.
func IsType(err error, t ErrorType) bool {
	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr.Type == t
	}
	return false
}
