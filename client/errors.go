package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"time"
)

// Error codes returned by Session operations.
const (
	CodeSessionClosed   = "E_SESSION_CLOSED"
	CodeEmptyQuery      = "E_EMPTY_QUERY"
	CodeEmptyBatch      = "E_EMPTY_BATCH"
	CodeUnknownPrepared = "E_UNKNOWN_PREPARED"
	CodeSendFailed      = "E_SEND_FAILED"
	CodeReceiveFailed   = "E_RECEIVE_FAILED"
	CodeServerError     = "E_SERVER_ERROR"
)

// SessionError represents failures of a session operation.
type SessionError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

// Error implements the error interface.
// Returns JSON; use FormatError for the short form.
func (e *SessionError) Error() string {
	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{
			"message": e.Cause.Error(),
		}
	}

	b, _ := json.Marshal(errorData)
	return string(b)
}

// FormatError formats the error based on debug mode setting.
// When debugMode=false: returns "CODE: message".
// When debugMode=true: returns indented JSON with stack trace and timestamp.
func (e *SessionError) FormatError(debugMode bool) string {
	if !debugMode {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{"message": e.Cause.Error()}
	}

	if len(e.StackTrace) > 0 {
		errorData["stack_trace"] = e.StackTrace
	}

	if !e.Timestamp.IsZero() {
		errorData["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// Unwrap returns the underlying cause error for errors.Is and errors.As compatibility.
func (e *SessionError) Unwrap() error {
	return e.Cause
}

// StatementError represents a failure tied to one statement or batch.
type StatementError struct {
	SessionError
	Query string `json:"query,omitempty"`
}

// Error implements the error interface for StatementError.
func (e *StatementError) Error() string {
	return e.FormatError(false)
}

// FormatError formats the error based on debug mode.
func (e *StatementError) FormatError(debugMode bool) string {
	if !debugMode {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (query: %s, caused by: %s)", e.Code, e.Message, e.Query, e.Cause.Error())
		}
		return fmt.Sprintf("%s: %s (query: %s)", e.Code, e.Message, e.Query)
	}

	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
		"query":   e.Query,
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{"message": e.Cause.Error()}
	}

	if len(e.StackTrace) > 0 {
		errorData["stack_trace"] = e.StackTrace
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// ErrSessionClosed creates an error for operations on a closed session.
func ErrSessionClosed(operation string) *SessionError {
	return &SessionError{
		Code:    CodeSessionClosed,
		Type:    "SESSION_ERROR",
		Message: fmt.Sprintf("%s called on closed session", operation),
		Details: map[string]interface{}{
			"operation": operation,
		},
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// ErrEmptyQuery creates an error for statements without query text.
func ErrEmptyQuery(operation string) *StatementError {
	return &StatementError{
		SessionError: SessionError{
			Code:       CodeEmptyQuery,
			Type:       "STATEMENT_ERROR",
			Message:    fmt.Sprintf("%s requires a non-empty query", operation),
			StackTrace: captureStackTrace(),
			Timestamp:  time.Now(),
		},
	}
}

// ErrEmptyBatch creates an error for batches without statements.
func ErrEmptyBatch() *StatementError {
	return &StatementError{
		SessionError: SessionError{
			Code:       CodeEmptyBatch,
			Type:       "STATEMENT_ERROR",
			Message:    "batch has no statements",
			StackTrace: captureStackTrace(),
			Timestamp:  time.Now(),
		},
	}
}

// ErrUnknownPrepared creates an error when a prepared statement ID is not cached.
func ErrUnknownPrepared(id string) *StatementError {
	return &StatementError{
		SessionError: SessionError{
			Code:    CodeUnknownPrepared,
			Type:    "STATEMENT_ERROR",
			Message: fmt.Sprintf("prepared statement '%s' is not known to this session", id),
			Details: map[string]interface{}{
				"prepared_id": id,
			},
			StackTrace: captureStackTrace(),
			Timestamp:  time.Now(),
		},
	}
}

// wrapTransportError wraps a transport failure for the given query label.
func wrapTransportError(code, message, query string, cause error) *StatementError {
	return &StatementError{
		SessionError: SessionError{
			Code:      code,
			Type:      "STATEMENT_ERROR",
			Message:   message,
			Cause:     cause,
			Timestamp: time.Now(),
		},
		Query: query,
	}
}

// IsCode reports whether err is a SessionError or StatementError with code.
func IsCode(err error, code string) bool {
	var serr *StatementError
	if errors.As(err, &serr) {
		return serr.Code == code
	}
	var sess *SessionError
	if errors.As(err, &sess) {
		return sess.Code == code
	}
	return false
}

// captureStackTrace captures the current stack trace for error reporting.
func captureStackTrace() []string {
	const maxDepth = 32
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(3, pcs) // skip runtime.Callers, captureStackTrace and the constructor

	frames := make([]string, 0, n)
	callersFrames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := callersFrames.Next()
		frames = append(frames, fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}

	return frames
}

// FormatError is a helper to format any error with debug mode support.
func FormatError(err error, debugMode bool) string {
	if err == nil {
		return ""
	}

	type debugFormatter interface {
		FormatError(bool) string
	}

	var formatter debugFormatter
	if errors.As(err, &formatter) {
		return formatter.FormatError(debugMode)
	}

	return err.Error()
}
