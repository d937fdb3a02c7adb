// Package plan defines the task-dependency plan model and the pure
// graph-validation engine that turns a draft plan into a validated DAG.
package plan

import (
	"time"

	"github.com/zenithsec/helmsman/internal/types"
)

// Task is a single unit of work in a plan. Tasks reference each other
// by TaskID through the Dependencies set, forming a DAG.
type Task struct {
	// TaskID uniquely identifies the task within its plan.
	TaskID string `json:"task_id" yaml:"task_id"`

	// Description is a human-readable summary of what the task does.
	Description string `json:"description" yaml:"description"`

	// Dependencies lists the TaskIDs that must succeed before this task
	// may start.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	// Priority orders tasks that become ready at the same time.
	// Higher values dispatch first.
	Priority int `json:"priority" yaml:"priority"`

	// RiskLevel classifies how dangerous the task is to execute.
	RiskLevel types.RiskLevel `json:"risk_level" yaml:"risk_level"`

	// Status is the current execution status. New tasks are pending.
	Status types.TaskStatus `json:"status" yaml:"status"`

	// RetryCount tracks how many retries the task has consumed.
	RetryCount int `json:"retry_count" yaml:"retry_count"`

	// Result holds the task output once it reaches a terminal status.
	Result map[string]any `json:"result,omitempty" yaml:"result,omitempty"`

	// ToolName names the external tool that executes this task.
	ToolName string `json:"tool_name" yaml:"tool_name"`

	// ToolArgs are the arguments passed to the tool.
	ToolArgs map[string]any `json:"tool_args,omitempty" yaml:"tool_args,omitempty"`
}

// Settings holds the structural ceilings a plan is validated against.
type Settings struct {
	// MaxTasks is the maximum number of tasks a plan may contain.
	MaxTasks int `json:"max_tasks" yaml:"max_tasks"`

	// MaxDepth is the maximum length of any dependency chain, counted
	// in tasks.
	MaxDepth int `json:"max_depth" yaml:"max_depth"`

	// MaxOutDegree is the maximum number of direct dependents any
	// single task may have.
	MaxOutDegree int `json:"max_out_degree" yaml:"max_out_degree"`
}

// DefaultSettings returns the structural ceilings used when a plan does
// not carry its own.
func DefaultSettings() Settings {
	return Settings{
		MaxTasks:     100,
		MaxDepth:     20,
		MaxOutDegree: 10,
	}
}

// Plan is a candidate task-dependency graph produced by a planner.
// A plan is validated exactly once; after validation only task statuses
// change, never the structure.
type Plan struct {
	// ID uniquely identifies the plan.
	ID types.ID `json:"id" yaml:"id"`

	// Objective is the free-text goal this plan decomposes.
	Objective string `json:"objective" yaml:"objective"`

	// Planner names the planner that produced this plan.
	Planner string `json:"planner" yaml:"planner"`

	// Tasks is the ordered task list.
	Tasks []*Task `json:"tasks" yaml:"tasks"`

	// Settings are the structural ceilings for validation.
	Settings Settings `json:"settings" yaml:"settings"`

	// Status is draft until validation, then validated or invalid.
	Status types.PlanStatus `json:"status" yaml:"status"`

	// ContentHash is a hash over the canonicalized task set, invariant
	// under task-list reordering. Populated on successful validation.
	ContentHash string `json:"content_hash,omitempty" yaml:"content_hash,omitempty"`

	// StructuralHash is a hash over the dependency topology only.
	// Populated on successful validation.
	StructuralHash string `json:"structural_hash,omitempty" yaml:"structural_hash,omitempty"`

	// Issues holds the hard validation failures, if any.
	Issues []Issue `json:"issues,omitempty" yaml:"issues,omitempty"`

	// Warnings holds non-blocking heuristic findings.
	Warnings []Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Stats holds aggregate metrics computed during validation.
	Stats *Stats `json:"stats,omitempty" yaml:"stats,omitempty"`

	// CreatedAt is when the planner produced this plan.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// NewPlan creates a draft plan for the given objective with default
// settings and all tasks pending.
func NewPlan(objective, planner string, tasks []*Task) *Plan {
	for _, t := range tasks {
		if t.Status == "" {
			t.Status = types.TaskStatusPending
		}
		if t.RiskLevel == "" {
			t.RiskLevel = types.RiskLevelLow
		}
	}
	return &Plan{
		ID:        types.NewID(),
		Objective: objective,
		Planner:   planner,
		Tasks:     tasks,
		Settings:  DefaultSettings(),
		Status:    types.PlanStatusDraft,
		CreatedAt: time.Now(),
	}
}

// Task returns the task with the given id, or nil if absent.
func (p *Plan) Task(taskID string) *Task {
	for _, t := range p.Tasks {
		if t.TaskID == taskID {
			return t
		}
	}
	return nil
}

// IsValidated reports whether the plan passed validation.
func (p *Plan) IsValidated() bool {
	return p.Status == types.PlanStatusValidated
}

// Stats holds aggregate metrics computed during validation.
type Stats struct {
	// TaskCount is the number of tasks in the plan.
	TaskCount int `json:"task_count" yaml:"task_count"`

	// Depth is the longest dependency chain, counted in tasks.
	Depth int `json:"depth" yaml:"depth"`

	// RootCount is the number of tasks with no dependencies.
	RootCount int `json:"root_count" yaml:"root_count"`

	// LeafCount is the number of tasks with no dependents.
	LeafCount int `json:"leaf_count" yaml:"leaf_count"`

	// RiskScore is the weighted average of task risk levels in [0, 1].
	RiskScore float64 `json:"risk_score" yaml:"risk_score"`

	// FanOutMin, FanOutAvg and FanOutMax describe the distribution of
	// direct dependents per task.
	FanOutMin int     `json:"fan_out_min" yaml:"fan_out_min"`
	FanOutAvg float64 `json:"fan_out_avg" yaml:"fan_out_avg"`
	FanOutMax int     `json:"fan_out_max" yaml:"fan_out_max"`
}
