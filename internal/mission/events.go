// Package mission contains the mission lifecycle, the concurrent
// task-execution orchestrator, and the event surface execution reports
// through.
package mission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zenithsec/helmsman/internal/types"
)

// EventType identifies the type of mission or task event.
type EventType string

const (
	// EventMissionStarted indicates a mission began planning.
	EventMissionStarted EventType = "mission.started"

	// EventPlanGenerated indicates a planner produced a draft plan.
	EventPlanGenerated EventType = "mission.plan_generated"

	// EventPlanValidated indicates the plan passed validation.
	EventPlanValidated EventType = "mission.plan_validated"

	// EventPlanInvalid indicates the plan failed validation.
	EventPlanInvalid EventType = "mission.plan_invalid"

	// EventMissionCompleted indicates every task succeeded.
	EventMissionCompleted EventType = "mission.completed"

	// EventMissionFailed indicates at least one task failed terminally.
	EventMissionFailed EventType = "mission.failed"

	// EventMissionCancelled indicates execution was cancelled.
	EventMissionCancelled EventType = "mission.cancelled"

	// EventTaskStarted indicates a task transitioned to running.
	EventTaskStarted EventType = "task.started"

	// EventTaskSucceeded indicates a task completed successfully.
	EventTaskSucceeded EventType = "task.succeeded"

	// EventTaskFailed indicates a task failed terminally.
	EventTaskFailed EventType = "task.failed"

	// EventTaskRetrying indicates a task failed transiently and will be
	// retried.
	EventTaskRetrying EventType = "task.retrying"

	// EventTaskSkipped indicates a task was skipped because a dependency
	// failed or the mission was cancelled.
	EventTaskSkipped EventType = "task.skipped"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// Event is a mission or task lifecycle event. Events are the execution
// core's only externally visible mutation channel.
type Event struct {
	// Type identifies the event type.
	Type EventType `json:"type"`

	// MissionID is the mission this event belongs to.
	MissionID types.ID `json:"mission_id"`

	// TaskID is set for task-level events.
	TaskID string `json:"task_id,omitempty"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Payload contains type-specific event data.
	Payload map[string]any `json:"payload,omitempty"`
}

// Sink receives every emitted event for persistence. Implementations
// must be safe for concurrent use.
type Sink interface {
	// Persist durably records the event.
	Persist(ctx context.Context, event *Event) error
}

// Emitter publishes mission events to a persistence sink and to any
// number of in-process subscribers. Subscribers with full channels drop
// events rather than block execution.
type Emitter struct {
	mu          sync.RWMutex
	sink        Sink
	subscribers map[int]chan Event
	nextSub     int
	bufferSize  int
	closed      bool
}

// EmitterOption is a functional option for configuring an Emitter.
type EmitterOption func(*Emitter)

// WithSink attaches the persistence sink events are written to.
func WithSink(sink Sink) EmitterOption {
	return func(e *Emitter) {
		e.sink = sink
	}
}

// WithBufferSize sets the subscriber channel buffer. Default is 100.
func WithBufferSize(size int) EmitterOption {
	return func(e *Emitter) {
		if size > 0 {
			e.bufferSize = size
		}
	}
}

// NewEmitter creates an event emitter.
func NewEmitter(opts ...EmitterOption) *Emitter {
	e := &Emitter{
		subscribers: make(map[int]chan Event),
		bufferSize:  100,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit persists the event and fans it out to subscribers. Persistence
// errors are returned; subscriber delivery is best-effort.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return fmt.Errorf("emitter is closed")
	}
	sink := e.sink
	for _, ch := range e.subscribers {
		select {
		case ch <- event:
		default:
			// Slow subscriber, drop rather than stall execution.
		}
	}
	e.mu.RUnlock()

	if sink != nil {
		if err := sink.Persist(ctx, &event); err != nil {
			return fmt.Errorf("failed to persist event: %w", err)
		}
	}
	return nil
}

// Subscribe returns a channel of future events and a cancel function.
// The cancel function must be called to release the subscription.
func (e *Emitter) Subscribe() (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++
	ch := make(chan Event, e.bufferSize)
	e.subscribers[id] = ch

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subscribers[id]; ok {
			delete(e.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close shuts down the emitter and all subscriptions.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	for id, ch := range e.subscribers {
		delete(e.subscribers, id)
		close(ch)
	}
}
