// Package http provides the shared plumbing for outbound API calls:
// typed errors, the retry policy, and request/response logging.
package http

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error that occurred.
type ErrorType int

const (
	ErrTypeAuthentication ErrorType = iota
	ErrTypeRateLimit
	ErrTypeServiceUnavailable
	ErrTypeInvalidRequest
	ErrTypeInvalidResponse
	ErrTypeNetwork
	ErrTypeTimeout
	ErrTypeNotFound
	ErrTypeUnknown
)

// String returns a human-readable description of the error type.
func (e ErrorType) String() string {
	switch e {
	case ErrTypeAuthentication:
		return "authentication error"
	case ErrTypeRateLimit:
		return "rate limit exceeded"
	case ErrTypeServiceUnavailable:
		return "service unavailable"
	case ErrTypeInvalidRequest:
		return "invalid request"
	case ErrTypeInvalidResponse:
		return "invalid response"
	case ErrTypeNetwork:
		return "network error"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeNotFound:
		return "not found"
	default:
		return "unknown error"
	}
}

// Error represents an API client error with additional context.
// Provider names the remote service ("openai", "deepseek", "github").
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Retryable  bool
	Provider   string

	// RetryAfter carries the server-requested wait from a 429 response.
	// Zero when the server did not supply one.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s (status: %d)", e.Provider, e.Type.String(), e.Message, e.StatusCode)
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// Timeout reports whether the error is a timeout, satisfying the same
// interface net.Error does so callers can detect timeouts without
// depending on this package.
func (e *Error) Timeout() bool {
	return e.Type == ErrTypeTimeout
}

// NewAuthenticationError creates a new authentication error.
func NewAuthenticationError(provider, message string) *Error {
	return &Error{
		Type:       ErrTypeAuthentication,
		Message:    message,
		StatusCode: 401,
		Retryable:  false,
		Provider:   provider,
	}
}

// NewRateLimitError creates a new rate limit error. retryAfter is the
// wait requested through the Retry-After header, or zero.
func NewRateLimitError(provider, message string, retryAfter time.Duration) *Error {
	return &Error{
		Type:       ErrTypeRateLimit,
		Message:    message,
		StatusCode: 429,
		Retryable:  true,
		Provider:   provider,
		RetryAfter: retryAfter,
	}
}

// NewServiceUnavailableError creates a new service unavailable error.
func NewServiceUnavailableError(provider, message string, statusCode int) *Error {
	return &Error{
		Type:       ErrTypeServiceUnavailable,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  true,
		Provider:   provider,
	}
}

// NewInvalidRequestError creates a new invalid request error.
func NewInvalidRequestError(provider, message string) *Error {
	return &Error{
		Type:       ErrTypeInvalidRequest,
		Message:    message,
		StatusCode: 400,
		Retryable:  false,
		Provider:   provider,
	}
}

// NewInvalidResponseError creates an error for unparseable or empty
// response payloads.
func NewInvalidResponseError(provider, message string) *Error {
	return &Error{
		Type:      ErrTypeInvalidResponse,
		Message:   message,
		Retryable: false,
		Provider:  provider,
	}
}

// NewNetworkError creates a new network error.
func NewNetworkError(provider, message string) *Error {
	return &Error{
		Type:      ErrTypeNetwork,
		Message:   message,
		Retryable: true,
		Provider:  provider,
	}
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(provider, message string) *Error {
	return &Error{
		Type:      ErrTypeTimeout,
		Message:   message,
		Retryable: true,
		Provider:  provider,
	}
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(provider, message string) *Error {
	return &Error{
		Type:       ErrTypeNotFound,
		Message:    message,
		StatusCode: 404,
		Retryable:  false,
		Provider:   provider,
	}
}
