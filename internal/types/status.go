// Package types contains identifier and status primitives shared across
// the planning, validation and execution packages.
package types

import (
	"encoding/json"
	"fmt"
)

// MissionStatus represents the lifecycle state of a mission.
type MissionStatus string

const (
	MissionStatusCreated   MissionStatus = "created"
	MissionStatusPlanning  MissionStatus = "planning"
	MissionStatusValidated MissionStatus = "validated"
	MissionStatusExecuting MissionStatus = "executing"
	MissionStatusCompleted MissionStatus = "completed"
	MissionStatusFailed    MissionStatus = "failed"
	MissionStatusCancelled MissionStatus = "cancelled"
)

// String returns the string representation of MissionStatus.
func (s MissionStatus) String() string {
	return string(s)
}

// IsValid checks if the MissionStatus is a known value.
func (s MissionStatus) IsValid() bool {
	switch s {
	case MissionStatusCreated, MissionStatusPlanning, MissionStatusValidated,
		MissionStatusExecuting, MissionStatusCompleted, MissionStatusFailed,
		MissionStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the mission has reached a final state.
func (s MissionStatus) IsTerminal() bool {
	switch s {
	case MissionStatusCompleted, MissionStatusFailed, MissionStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the mission state machine permits a
// transition from s to next. The machine is strictly forward-moving:
// Created -> Planning -> Validated -> Executing -> terminal.
func (s MissionStatus) CanTransitionTo(next MissionStatus) bool {
	switch s {
	case MissionStatusCreated:
		return next == MissionStatusPlanning || next == MissionStatusCancelled
	case MissionStatusPlanning:
		return next == MissionStatusValidated || next == MissionStatusFailed || next == MissionStatusCancelled
	case MissionStatusValidated:
		return next == MissionStatusExecuting || next == MissionStatusCancelled
	case MissionStatusExecuting:
		return next.IsTerminal()
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (s MissionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *MissionStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := MissionStatus(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid mission status: %s", str)
	}
	*s = status
	return nil
}

// PlanStatus represents the validation state of a plan.
type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "draft"
	PlanStatusValidated PlanStatus = "validated"
	PlanStatusInvalid   PlanStatus = "invalid"
)

// String returns the string representation of PlanStatus.
func (s PlanStatus) String() string {
	return string(s)
}

// IsValid checks if the PlanStatus is a known value.
func (s PlanStatus) IsValid() bool {
	switch s {
	case PlanStatusDraft, PlanStatusValidated, PlanStatusInvalid:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (s PlanStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *PlanStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := PlanStatus(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid plan status: %s", str)
	}
	*s = status
	return nil
}

// TaskStatus represents the execution state of a single task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusRetrying  TaskStatus = "retrying"
	TaskStatusSkipped   TaskStatus = "skipped"
)

// String returns the string representation of TaskStatus.
func (s TaskStatus) String() string {
	return string(s)
}

// IsValid checks if the TaskStatus is a known value.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusSucceeded,
		TaskStatusFailed, TaskStatusRetrying, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the task has reached a final state.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (s TaskStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := TaskStatus(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid task status: %s", str)
	}
	*s = status
	return nil
}

// RiskLevel classifies how dangerous a task is to execute.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// String returns the string representation of RiskLevel.
func (r RiskLevel) String() string {
	return string(r)
}

// IsValid checks if the RiskLevel is a known value.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical:
		return true
	default:
		return false
	}
}

// Weight returns the numeric weight used for plan risk scoring.
// Higher risk levels contribute more to the aggregate score.
func (r RiskLevel) Weight() float64 {
	switch r {
	case RiskLevelLow:
		return 0.1
	case RiskLevelMedium:
		return 0.3
	case RiskLevelHigh:
		return 0.6
	case RiskLevelCritical:
		return 1.0
	default:
		return 0.0
	}
}

// MarshalJSON implements json.Marshaler.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(r))
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	level := RiskLevel(str)
	if !level.IsValid() {
		return fmt.Errorf("invalid risk level: %s", str)
	}
	*r = level
	return nil
}

// PlannerState represents the registry state of a planner record.
type PlannerState string

const (
	PlannerStateRegistered  PlannerState = "registered"
	PlannerStateActive      PlannerState = "active"
	PlannerStateQuarantined PlannerState = "quarantined"
)

// String returns the string representation of PlannerState.
func (s PlannerState) String() string {
	return string(s)
}

// IsValid checks if the PlannerState is a known value.
func (s PlannerState) IsValid() bool {
	switch s {
	case PlannerStateRegistered, PlannerStateActive, PlannerStateQuarantined:
		return true
	default:
		return false
	}
}
