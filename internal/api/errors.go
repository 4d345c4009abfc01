package api

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes client errors.
type ErrorCode string

const (
	// ErrCodeSessionExpired: the refresh token was rejected or missing.
	ErrCodeSessionExpired ErrorCode = "SESSION_EXPIRED"

	// ErrCodeStatus: the backend answered with a non-2xx status or a
	// non-success envelope.
	ErrCodeStatus ErrorCode = "BAD_STATUS"

	// ErrCodeDecode: the response body was not the expected JSON.
	ErrCodeDecode ErrorCode = "DECODE_FAILED"
)

// APIError is returned for failures the backend (not the network) caused.
type APIError struct {
	Code ErrorCode

	// Method and Path identify the request.
	Method string
	Path   string

	// Status is the HTTP status, 0 when not applicable.
	Status int

	// Message is the backend's message, if it sent one.
	Message string

	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s %s: HTTP %d: %s", e.Code, e.Method, e.Path, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s %s: %s", e.Code, e.Method, e.Path, msg)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsSessionExpired returns true if the user must log in again.
// Uses errors.As to handle wrapped errors.
func IsSessionExpired(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Code == ErrCodeSessionExpired
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}
