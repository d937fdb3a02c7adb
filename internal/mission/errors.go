package mission

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zenithsec/helmsman/internal/types"
)

// ExecutionErrorCode identifies an execution failure class.
type ExecutionErrorCode string

const (
	// ErrorCodePlanNotValidated indicates Execute was given a plan that
	// never passed validation.
	ErrorCodePlanNotValidated ExecutionErrorCode = "PLAN_NOT_VALIDATED"

	// ErrorCodeDeadlock indicates no task was runnable but the plan was
	// not complete. Cannot happen for a validated DAG; kept as a guard.
	ErrorCodeDeadlock ExecutionErrorCode = "DEADLOCK"

	// ErrorCodeTaskFailed indicates a task failed terminally after its
	// retry budget.
	ErrorCodeTaskFailed ExecutionErrorCode = "TASK_FAILED"

	// ErrorCodeCancelled indicates execution was cancelled.
	ErrorCodeCancelled ExecutionErrorCode = "CANCELLED"
)

// ExecutionError is a typed execution failure. For task failures it
// carries the terminal task and the dependents that were skipped
// because of it.
type ExecutionError struct {
	// Code identifies the failure class.
	Code ExecutionErrorCode

	// MissionID is the mission being executed.
	MissionID types.ID

	// TaskID names the terminally failed task, when applicable.
	TaskID string

	// Message is a human-readable description.
	Message string

	// SkippedTasks lists dependents skipped because of the failure.
	SkippedTasks []string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.TaskID != "" {
		fmt.Fprintf(&b, " (task %s)", e.TaskID)
	}
	if len(e.SkippedTasks) > 0 {
		fmt.Fprintf(&b, "; skipped dependents: %s", strings.Join(e.SkippedTasks, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches execution errors by code.
func (e *ExecutionError) Is(target error) bool {
	var ee *ExecutionError
	if errors.As(target, &ee) {
		return e.Code == ee.Code
	}
	return false
}
