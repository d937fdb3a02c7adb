package mission

import (
	"fmt"
	"time"

	"github.com/zenithsec/helmsman/internal/types"
)

// Mission is one end-to-end run: an objective, the plan produced for
// it, and its position in the mission state machine
// Created -> Planning -> Validated -> Executing -> terminal.
type Mission struct {
	// ID uniquely identifies the mission.
	ID types.ID `json:"id"`

	// Objective is the free-text goal the mission pursues.
	Objective string `json:"objective"`

	// Status is the mission's position in the state machine.
	Status types.MissionStatus `json:"status"`

	// PlannerName is the planner selected for this mission.
	PlannerName string `json:"planner_name,omitempty"`

	// PlanID references the plan once one exists.
	PlanID types.ID `json:"plan_id,omitempty"`

	// CreatedAt is when the mission was created.
	CreatedAt time.Time `json:"created_at"`

	// CompletedAt is when the mission reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewMission creates a mission in Created state.
func NewMission(objective string) *Mission {
	return &Mission{
		ID:        types.NewID(),
		Objective: objective,
		Status:    types.MissionStatusCreated,
		CreatedAt: time.Now(),
	}
}

// Transition moves the mission to the next status, enforcing the state
// machine. Terminal transitions stamp CompletedAt.
func (m *Mission) Transition(next types.MissionStatus) error {
	if !m.Status.CanTransitionTo(next) {
		return fmt.Errorf("invalid mission transition %s -> %s", m.Status, next)
	}
	m.Status = next
	if next.IsTerminal() {
		now := time.Now()
		m.CompletedAt = &now
	}
	return nil
}
