package mission

import (
	"sort"
	"sync"
	"time"

	"github.com/zenithsec/helmsman/internal/plan"
	"github.com/zenithsec/helmsman/internal/types"
)

// executionState tracks task progress during one orchestrator run. The
// plan's tasks are exclusively owned by the run; status updates are the
// only mutation and happen under the state lock.
type executionState struct {
	mu      sync.Mutex
	plan    *plan.Plan
	graph   *plan.GraphData
	results map[string]*TaskResult
	started map[string]time.Time
}

// newExecutionState initializes tracking for a validated plan.
func newExecutionState(p *plan.Plan, g *plan.GraphData) *executionState {
	return &executionState{
		plan:    p,
		graph:   g,
		results: make(map[string]*TaskResult, len(p.Tasks)),
		started: make(map[string]time.Time, len(p.Tasks)),
	}
}

// readyTasks returns pending tasks whose dependencies have all
// succeeded, ordered by priority descending then task id ascending so
// dispatch order is deterministic for a given state.
func (s *executionState) readyTasks() []*plan.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []*plan.Task
	for _, t := range s.plan.Tasks {
		if t.Status != types.TaskStatusPending {
			continue
		}
		if s.dependenciesSucceededLocked(t) {
			ready = append(ready, t)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority > ready[j].Priority
		}
		return ready[i].TaskID < ready[j].TaskID
	})
	return ready
}

// dependenciesSucceededLocked reports whether every dependency of t has
// succeeded. Must be called with mu held.
func (s *executionState) dependenciesSucceededLocked(t *plan.Task) bool {
	for _, dep := range t.Dependencies {
		depTask, ok := s.graph.Tasks[dep]
		if !ok || depTask.Status != types.TaskStatusSucceeded {
			return false
		}
	}
	return true
}

// markRunning transitions a task to running and stamps its start time.
func (s *executionState) markRunning(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.graph.Tasks[taskID]; ok {
		t.Status = types.TaskStatusRunning
		if _, started := s.started[taskID]; !started {
			s.started[taskID] = time.Now()
		}
	}
}

// markRetrying transitions a task to retrying and bumps its retry count.
func (s *executionState) markRetrying(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.graph.Tasks[taskID]; ok {
		t.Status = types.TaskStatusRetrying
		t.RetryCount++
	}
}

// markSucceeded records a successful terminal outcome.
func (s *executionState) markSucceeded(taskID string, output map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.graph.Tasks[taskID]
	if !ok {
		return
	}
	t.Status = types.TaskStatusSucceeded
	t.Result = output
	s.results[taskID] = &TaskResult{
		TaskID:     taskID,
		Status:     types.TaskStatusSucceeded,
		RetryCount: t.RetryCount,
		Output:     output,
		Duration:   time.Since(s.started[taskID]),
	}
}

// markFailed records a terminal failure and skips all transitive
// dependents, returning their ids sorted ascending. Skipped tasks are
// never dispatched.
func (s *executionState) markFailed(taskID string, err error) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.graph.Tasks[taskID]
	if !ok {
		return nil
	}
	t.Status = types.TaskStatusFailed
	s.results[taskID] = &TaskResult{
		TaskID:     taskID,
		Status:     types.TaskStatusFailed,
		RetryCount: t.RetryCount,
		Error:      err.Error(),
		Duration:   time.Since(s.started[taskID]),
	}

	// Transitive closure over the dependents of the failed task.
	var skipped []string
	queue := append([]string(nil), s.graph.Adjacency[taskID]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		dep, ok := s.graph.Tasks[id]
		if !ok || dep.Status != types.TaskStatusPending {
			continue
		}
		dep.Status = types.TaskStatusSkipped
		s.results[id] = &TaskResult{
			TaskID: id,
			Status: types.TaskStatusSkipped,
			Error:  "dependency " + taskID + " failed",
		}
		skipped = append(skipped, id)
		queue = append(queue, s.graph.Adjacency[id]...)
	}
	sort.Strings(skipped)
	return skipped
}

// skipPending skips every still-pending task, returning their ids
// sorted ascending. Used when cancellation is observed.
func (s *executionState) skipPending(reason string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var skipped []string
	for _, t := range s.plan.Tasks {
		if t.Status != types.TaskStatusPending {
			continue
		}
		t.Status = types.TaskStatusSkipped
		s.results[t.TaskID] = &TaskResult{
			TaskID: t.TaskID,
			Status: types.TaskStatusSkipped,
			Error:  reason,
		}
		skipped = append(skipped, t.TaskID)
	}
	sort.Strings(skipped)
	return skipped
}

// isComplete reports whether every task has reached a terminal status.
func (s *executionState) isComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.plan.Tasks {
		if !t.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// snapshot builds the final result map and counters.
func (s *executionState) snapshot() (map[string]*TaskResult, int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*TaskResult, len(s.results))
	var succeeded, failed, skipped int
	for id, r := range s.results {
		out[id] = r
		switch r.Status {
		case types.TaskStatusSucceeded:
			succeeded++
		case types.TaskStatusFailed:
			failed++
		case types.TaskStatusSkipped:
			skipped++
		}
	}
	return out, succeeded, failed, skipped
}
