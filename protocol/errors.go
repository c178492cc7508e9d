package protocol

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents standardized error codes across transports
type ErrorCode int

const (
	// Connection errors (1000-1099)
	ErrorCodeConnectionRefused ErrorCode = 1001
	ErrorCodeTimeout           ErrorCode = 1002
	ErrorCodeClosed            ErrorCode = 1003
	ErrorCodeBackpressure      ErrorCode = 1010

	// Protocol errors (2000-2099)
	ErrorCodeProtocolError ErrorCode = 2001

	// Query errors (3000-3099)
	ErrorCodeQueryError ErrorCode = 3001
)

// TransportError represents an error with structured error code
type TransportError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	IsRetryable bool                   `json:"isRetryable"`
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if len(e.Details) > 0 {
		detailsJSON, _ := json.Marshal(e.Details)
		return fmt.Sprintf("[%d] %s (details: %s)", e.Code, e.Message, string(detailsJSON))
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// NewTransportError creates a new transport error
func NewTransportError(code ErrorCode, message string, details map[string]interface{}) *TransportError {
	return &TransportError{
		Code:        code,
		Message:     message,
		Details:     details,
		IsRetryable: isRetryable(code),
	}
}

func isRetryable(code ErrorCode) bool {
	switch code {
	case ErrorCodeTimeout, ErrorCodeBackpressure:
		return true
	default:
		return false
	}
}

// TimeoutError creates a timeout transport error
func TimeoutError(message string, details map[string]interface{}) *TransportError {
	return NewTransportError(ErrorCodeTimeout, message, details)
}

// ClosedError creates an error for use of a closed transport
func ClosedError() *TransportError {
	return NewTransportError(ErrorCodeClosed, "transport is closed", nil)
}

// QueryError creates an error reported by the server for a statement or batch
func QueryError(message string, details map[string]interface{}) *TransportError {
	return NewTransportError(ErrorCodeQueryError, message, details)
}

// ConnectionError creates an error for failed dials and handshakes
func ConnectionError(message string, details map[string]interface{}) *TransportError {
	return NewTransportError(ErrorCodeConnectionRefused, message, details)
}
