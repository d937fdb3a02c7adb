package tool

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a tool failure class.
type ErrorCode string

const (
	// ErrorCodeNotFound indicates the named tool is not registered.
	ErrorCodeNotFound ErrorCode = "TOOL_NOT_FOUND"

	// ErrorCodeInvalidArgs indicates the arguments failed the tool's
	// schema. Never retried: the same arguments will fail again.
	ErrorCodeInvalidArgs ErrorCode = "INVALID_ARGS"

	// ErrorCodeExecution indicates the tool ran and failed. Transient by
	// default.
	ErrorCodeExecution ErrorCode = "EXECUTION_FAILED"

	// ErrorCodeTimeout indicates the per-call deadline elapsed.
	ErrorCodeTimeout ErrorCode = "TIMEOUT"
)

// Error is a typed tool failure carrying a retryability classification.
type Error struct {
	// Code identifies the failure class.
	Code ErrorCode

	// Tool names the tool that failed.
	Tool string

	// Message is a human-readable description.
	Message string

	// Retryable reports whether retrying the same call can succeed.
	Retryable bool

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tool %s: [%s] %s: %v", e.Tool, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("tool %s: [%s] %s", e.Tool, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches tool errors by code.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// NewInvalidArgsError builds a terminal argument-validation failure.
func NewInvalidArgsError(tool, message string) *Error {
	return &Error{Code: ErrorCodeInvalidArgs, Tool: tool, Message: message, Retryable: false}
}

// NewExecutionError builds a transient execution failure.
func NewExecutionError(tool string, cause error) *Error {
	return &Error{Code: ErrorCodeExecution, Tool: tool, Message: "execution failed", Retryable: true, Cause: cause}
}
