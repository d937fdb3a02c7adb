package planner

import (
	"errors"
	"fmt"
)

// ErrorType represents specific planner registry error types.
type ErrorType string

const (
	// ErrorTypeNotFound indicates the named planner is not registered.
	ErrorTypeNotFound ErrorType = "planner_not_found"

	// ErrorTypeQuarantined indicates the planner is excluded from use
	// after repeated failures.
	ErrorTypeQuarantined ErrorType = "planner_quarantined"

	// ErrorTypeNoActivePlanners indicates no registered planner cleared
	// the selection floor.
	ErrorTypeNoActivePlanners ErrorType = "no_active_planners"

	// ErrorTypeSelection indicates selection failed for another reason.
	ErrorTypeSelection ErrorType = "selection_failed"

	// ErrorTypeConstruct indicates the planner constructor failed.
	ErrorTypeConstruct ErrorType = "construct_failed"

	// ErrorTypeConstructTimeout indicates the constructor exceeded its
	// deadline.
	ErrorTypeConstructTimeout ErrorType = "construct_timeout"
)

// Error is a planner registry error with a type, message and optional
// cause. It supports errors.Is matching by type and errors.As chain
// traversal.
type Error struct {
	// Type identifies the specific error type.
	Type ErrorType

	// Planner names the planner involved, when the error concerns one.
	Planner string

	// Message is a human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := string(e.Type)
	if e.Planner != "" {
		prefix = fmt.Sprintf("%s (%s)", e.Type, e.Planner)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", prefix, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches planner errors by type.
func (e *Error) Is(target error) bool {
	var pe *Error
	if errors.As(target, &pe) {
		return e.Type == pe.Type
	}
	return false
}

// NewError creates a planner error with the given type and message.
func NewError(errType ErrorType, planner, message string) *Error {
	return &Error{Type: errType, Planner: planner, Message: message}
}

// WrapError wraps a cause with planner error context.
func WrapError(errType ErrorType, planner, message string, cause error) *Error {
	return &Error{Type: errType, Planner: planner, Message: message, Cause: cause}
}
