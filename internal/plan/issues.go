package plan

import (
	"fmt"
	"strings"
)

// IssueCode identifies a hard validation failure.
type IssueCode string

const (
	// IssueEmptyPlan indicates the plan has no tasks.
	IssueEmptyPlan IssueCode = "EMPTY_PLAN"

	// IssueTooManyTasks indicates the plan exceeds the task ceiling.
	IssueTooManyTasks IssueCode = "TOO_MANY_TASKS"

	// IssueDuplicateTaskID indicates two tasks share a task id.
	IssueDuplicateTaskID IssueCode = "DUPLICATE_TASK_ID"

	// IssueDanglingDependency indicates a dependency references an
	// unknown task id.
	IssueDanglingDependency IssueCode = "DANGLING_DEPENDENCY"

	// IssueFanOutExceeded indicates a task has more direct dependents
	// than the configured ceiling.
	IssueFanOutExceeded IssueCode = "FAN_OUT_EXCEEDED"

	// IssueCycleDetected indicates the dependency graph is not acyclic.
	IssueCycleDetected IssueCode = "CYCLE_DETECTED"

	// IssueDepthExceeded indicates a dependency chain is longer than the
	// configured ceiling.
	IssueDepthExceeded IssueCode = "DEPTH_EXCEEDED"
)

// Issue is a hard validation failure. Any issue makes the plan invalid.
type Issue struct {
	// Code identifies the failure class.
	Code IssueCode `json:"code" yaml:"code"`

	// Message is a human-readable description.
	Message string `json:"message" yaml:"message"`

	// TaskIDs lists the tasks involved, sorted ascending.
	TaskIDs []string `json:"task_ids,omitempty" yaml:"task_ids,omitempty"`
}

// WarningCode identifies a non-blocking heuristic finding.
type WarningCode string

const (
	// WarnRootDensity indicates an unusually high fraction of tasks have
	// no dependencies, suggesting the planner failed to order the work.
	WarnRootDensity WarningCode = "ROOT_DENSITY"

	// WarnOrphanTasks indicates tasks connected to nothing else.
	WarnOrphanTasks WarningCode = "ORPHAN_TASKS"

	// WarnUniformPriority indicates all tasks share one priority,
	// suggesting the planner did not actually prioritize.
	WarnUniformPriority WarningCode = "UNIFORM_PRIORITY"

	// WarnHighRiskDensity indicates a high fraction of high or critical
	// risk tasks.
	WarnHighRiskDensity WarningCode = "HIGH_RISK_DENSITY"
)

// Warning is a non-blocking heuristic finding about plan quality.
type Warning struct {
	// Code identifies the heuristic.
	Code WarningCode `json:"code" yaml:"code"`

	// Message is a human-readable description.
	Message string `json:"message" yaml:"message"`

	// TaskIDs lists the tasks involved, sorted ascending.
	TaskIDs []string `json:"task_ids,omitempty" yaml:"task_ids,omitempty"`
}

// ValidationError carries the full batch of issues found during
// validation. Issues are always reported together, never one at a time.
type ValidationError struct {
	// PlanID identifies the plan that failed validation.
	PlanID string

	// Issues is the complete issue batch, in pipeline order.
	Issues []Issue
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	codes := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		codes[i] = string(issue.Code)
	}
	return fmt.Sprintf("plan %s failed validation with %d issue(s): %s",
		e.PlanID, len(e.Issues), strings.Join(codes, ", "))
}
