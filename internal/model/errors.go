// Package model holds the gateway's wire types and error taxonomy.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrUnresolved     = errors.New("reference not resolved")
	ErrMisconfigured  = errors.New("crm misconfigured")
	ErrWriteFailed    = errors.New("crm write failed")
	ErrUpstreamError  = errors.New("upstream error")
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string          `json:"code"`
	Message    string          `json:"error"`
	Details    json.RawMessage `json:"details,omitempty"` // upstream payload, when there is one
	StatusCode int             `json:"-"`
	Err        error           `json:"-"`
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: 404,
		Err:        ErrNotFound,
	}
}

// NewMalformedRequest creates a 400 error for invalid input.
// The message is sent to the caller verbatim.
func NewMalformedRequest(message string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    message,
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewPayloadTooLarge creates a 413 error for bodies over the buffering limit.
func NewPayloadTooLarge(limit int64) *APIError {
	return &APIError{
		Code:       "PAYLOAD_TOO_LARGE",
		Message:    fmt.Sprintf("request body exceeds %d bytes", limit),
		StatusCode: 413,
		Err:        ErrInvalidRequest,
	}
}

// NewAuthFailure creates a 401 error for token exchange failures.
func NewAuthFailure(reason string, err error) *APIError {
	wrapped := ErrUnauthorized
	if err != nil {
		wrapped = fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return &APIError{
		Code:       "AUTH_FAILURE",
		Message:    reason,
		StatusCode: 401,
		Err:        wrapped,
	}
}

// NewResolutionError creates an error for a foreign reference that could not be found.
func NewResolutionError(status int, message string) *APIError {
	return &APIError{
		Code:       "RESOLUTION_ERROR",
		Message:    message,
		StatusCode: status,
		Err:        ErrUnresolved,
	}
}

// NewConfigurationError creates a 500 error for a missing hard dependency in the CRM org.
func NewConfigurationError(message string) *APIError {
	return &APIError{
		Code:       "CONFIGURATION_ERROR",
		Message:    message,
		StatusCode: 500,
		Err:        ErrMisconfigured,
	}
}

// NewWriteError creates a 502 error for a CRM create/update that did not succeed.
// details carries the upstream payload for diagnosability.
func NewWriteError(message string, details json.RawMessage) *APIError {
	return &APIError{
		Code:       "WRITE_ERROR",
		Message:    message,
		Details:    details,
		StatusCode: 502,
		Err:        ErrWriteFailed,
	}
}

// NewUpstreamError creates a 502 error for backend failures.
func NewUpstreamError(service string, err error) *APIError {
	return &APIError{
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("%s request failed: %v", service, err),
		StatusCode: 502,
		Err:        fmt.Errorf("%w: %v", ErrUpstreamError, err),
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: 500,
		Err:        err,
	}
}
