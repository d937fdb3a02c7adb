package mission

import (
	"time"

	"github.com/zenithsec/helmsman/internal/types"
)

// TaskResult is the terminal outcome of one task.
type TaskResult struct {
	// TaskID identifies the task.
	TaskID string `json:"task_id"`

	// Status is the terminal task status.
	Status types.TaskStatus `json:"status"`

	// RetryCount is how many retries the task consumed.
	RetryCount int `json:"retry_count"`

	// Output holds the tool output for succeeded tasks.
	Output map[string]any `json:"output,omitempty"`

	// Error describes the terminal failure, if any.
	Error string `json:"error,omitempty"`

	// Duration is how long the task ran across all attempts.
	Duration time.Duration `json:"duration"`
}

// ExecutionResult summarizes one orchestrator run.
type ExecutionResult struct {
	// MissionID is the mission that was executed.
	MissionID types.ID `json:"mission_id"`

	// Status is the terminal mission status.
	Status types.MissionStatus `json:"status"`

	// TaskResults maps task ids to their terminal outcomes.
	TaskResults map[string]*TaskResult `json:"task_results"`

	// Succeeded, Failed and Skipped count terminal task statuses.
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`

	// FailedTask names the first terminally failed task, when any.
	FailedTask string `json:"failed_task,omitempty"`

	// FailedTaskError is the terminal error of that task.
	FailedTaskError string `json:"failed_task_error,omitempty"`

	// SkippedTasks lists every skipped task id, sorted ascending.
	SkippedTasks []string `json:"skipped_tasks,omitempty"`

	// Duration is the wall-clock execution time.
	Duration time.Duration `json:"duration"`
}
