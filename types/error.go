package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the pipeline.
type ErrorCode string

// Task failure codes
const (
	ErrArchive                 ErrorCode = "ARCHIVE_ERROR"
	ErrUnsatisfiedRequirements ErrorCode = "UNSATISFIED_REQUIREMENTS"
	ErrExecutionFailure        ErrorCode = "EXECUTION_FAILURE"
	ErrRender                  ErrorCode = "RENDER_ERROR"
	ErrIndexingFailure         ErrorCode = "INDEXING_FAILURE"
	ErrPluginNotFound          ErrorCode = "PLUGIN_NOT_FOUND"
	ErrTaskTimeout             ErrorCode = "TASK_TIMEOUT"
	ErrSubmitFailure           ErrorCode = "SUBMIT_FAILURE"
)

// Persistence error codes
const (
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrAlreadyDispatched ErrorCode = "ALREADY_DISPATCHED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
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

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode returns the code of the outermost *Error in err's chain.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether any *Error in err's chain carries code, including
// errors nested through Cause.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// StatusForError maps a task failure to its terminal status. Failures that
// carry no known code are treated as plugin execution failures.
func StatusForError(err error) TaskStatus {
	switch GetErrorCode(err) {
	case ErrUnsatisfiedRequirements:
		return StatusUnsatisfied
	case ErrIndexingFailure:
		return StatusIndexingFailed
	default:
		return StatusExecutionFailed
	}
}

// Diagnostic returns the text stored as a task description for err: the
// message of the outermost *Error when present, otherwise err.Error().
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
