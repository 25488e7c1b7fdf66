package types

import "fmt"

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// External-call error codes
const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrAuthentication      ErrorCode = "AUTHENTICATION"
	ErrRateLimited         ErrorCode = "RATE_LIMITED"
	ErrQuotaExceeded       ErrorCode = "QUOTA_EXCEEDED"
	ErrModelOverloaded     ErrorCode = "MODEL_OVERLOADED"
	ErrUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrTimeout             ErrorCode = "TIMEOUT"
	ErrUpstreamError       ErrorCode = "UPSTREAM_ERROR"
	ErrInternalError       ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
	ErrProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
)

// Flow error codes
const (
	ErrInvalidGraph     ErrorCode = "INVALID_GRAPH"
	ErrNodeFailed       ErrorCode = "NODE_FAILED"
	ErrExecutorNotFound ErrorCode = "EXECUTOR_NOT_FOUND"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	NodeID    string    `json:"node_id,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithNodeID attaches the id of the node the error originated from.
func (e *Error) WithNodeID(nodeID string) *Error {
	e.NodeID = nodeID
	return e
}

// transientCodes are the codes considered transient regardless of the
// Retryable flag. They map to upstream conditions that usually clear on
// their own.
var transientCodes = map[ErrorCode]bool{
	ErrRateLimited:         true,
	ErrModelOverloaded:     true,
	ErrUpstreamTimeout:     true,
	ErrTimeout:             true,
	ErrUpstreamError:       true,
	ErrServiceUnavailable:  true,
	ErrProviderUnavailable: true,
}

// IsRetryable checks if an error is retryable. It is the platform's shared
// transient-error classifier: structured errors answer via their Retryable
// flag or a transient code; anything else is not retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable || transientCodes[e.Code]
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
