package mission

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zenithsec/helmsman/internal/plan"
	"github.com/zenithsec/helmsman/internal/resilience"
	"github.com/zenithsec/helmsman/internal/tool"
	"github.com/zenithsec/helmsman/internal/types"
)

// Orchestrator executes validated plans. Tasks dispatch eagerly the
// moment their dependencies succeed, within a bounded worker pool; each
// external call runs behind the shared circuit breaker and a retry
// policy. A terminally failed task skips all transitive dependents
// while independent branches continue.
type Orchestrator struct {
	executor    *tool.Executor
	emitter     *Emitter
	breaker     *resilience.CircuitBreaker
	retryPolicy resilience.RetryPolicy
	logger      *slog.Logger
	tracer      trace.Tracer
	maxParallel int
}

// OrchestratorOption is a functional option for configuring an
// Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger configures the orchestrator's structured logger.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer configures the orchestrator to emit OpenTelemetry spans.
func WithTracer(tracer trace.Tracer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// WithMaxParallel bounds the worker pool. Default is 4.
func WithMaxParallel(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxParallel = n
		}
	}
}

// WithRetryPolicy sets the default retry policy for task failures.
func WithRetryPolicy(policy resilience.RetryPolicy) OrchestratorOption {
	return func(o *Orchestrator) {
		o.retryPolicy = policy
	}
}

// WithBreaker sets the circuit breaker shared across the run's external
// calls. One breaker instance tracks one circuit per logical
// dependency.
func WithBreaker(breaker *resilience.CircuitBreaker) OrchestratorOption {
	return func(o *Orchestrator) {
		if breaker != nil {
			o.breaker = breaker
		}
	}
}

// NewOrchestrator creates an orchestrator over the tool executor and
// event emitter.
func NewOrchestrator(executor *tool.Executor, emitter *Emitter, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		executor:    executor,
		emitter:     emitter,
		breaker:     resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retryPolicy: resilience.DefaultRetryPolicy(),
		logger:      slog.Default(),
		maxParallel: 4,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// taskOutcome is the completion message a worker sends back to the
// scheduling loop.
type taskOutcome struct {
	taskID string
	output map[string]any
	err    error
}

// Execute runs the plan to completion under the execution context.
//
// Scheduling is eager: whenever a worker slot is free and a task's
// dependencies have all succeeded, the task dispatches immediately.
// Cancellation is cooperative: it is observed between dispatches,
// in-flight tasks run to completion, and tasks that never started are
// skipped.
//
// The returned ExecutionResult is always non-nil; the error is non-nil
// when the mission did not complete (task failure, cancellation).
func (o *Orchestrator) Execute(ctx context.Context, p *plan.Plan, execCtx ExecutionContext) (*ExecutionResult, error) {
	if o.tracer != nil {
		var span trace.Span
		ctx, span = o.tracer.Start(ctx, "mission.execute",
			trace.WithAttributes(
				attribute.String("mission.id", execCtx.MissionID.String()),
				attribute.Int("plan.task_count", len(p.Tasks)),
			),
		)
		defer span.End()
	}

	if !p.IsValidated() {
		return nil, &ExecutionError{
			Code:      ErrorCodePlanNotValidated,
			MissionID: execCtx.MissionID,
			Message:   "plan must pass validation before execution",
		}
	}

	limit := execCtx.ConcurrencyLimit
	if limit <= 0 {
		limit = o.maxParallel
	}
	policy := execCtx.RetryPolicy
	if policy == (resilience.RetryPolicy{}) {
		policy = o.retryPolicy
	}

	o.logger.InfoContext(ctx, "starting mission execution",
		"mission_id", execCtx.MissionID,
		"task_count", len(p.Tasks),
		"concurrency_limit", limit,
	)

	graph, _ := plan.BuildGraph(p)
	state := newExecutionState(p, graph)
	startTime := time.Now()

	outcomes := make(chan taskOutcome, limit)
	inFlight := 0
	cancelled := false
	var firstFailure *ExecutionError

	for {
		// Observe cancellation between dispatches.
		if !cancelled {
			select {
			case <-ctx.Done():
				cancelled = true
				o.logger.WarnContext(ctx, "mission execution cancelled",
					"mission_id", execCtx.MissionID,
					"reason", ctx.Err(),
				)
			default:
			}
		}

		// Eager dispatch while worker slots remain.
		if !cancelled {
			for _, t := range state.readyTasks() {
				if inFlight >= limit {
					break
				}
				o.dispatch(ctx, t, state, execCtx, policy, outcomes)
				inFlight++
			}
		}

		if inFlight == 0 {
			if cancelled {
				skipped := state.skipPending("mission cancelled")
				for _, id := range skipped {
					o.emitTask(ctx, execCtx.MissionID, EventTaskSkipped, id,
						map[string]any{"reason": "mission cancelled"})
				}
				return o.finish(ctx, state, execCtx, types.MissionStatusCancelled, startTime, &ExecutionError{
					Code:         ErrorCodeCancelled,
					MissionID:    execCtx.MissionID,
					Message:      "execution cancelled before completion",
					SkippedTasks: skipped,
					Cause:        ctx.Err(),
				})
			}
			if state.isComplete() {
				status := types.MissionStatusCompleted
				var err error
				if firstFailure != nil {
					status = types.MissionStatusFailed
					err = firstFailure
				}
				return o.finish(ctx, state, execCtx, status, startTime, err)
			}
			if len(state.readyTasks()) == 0 {
				// Unreachable for a validated DAG with skip propagation.
				return o.finish(ctx, state, execCtx, types.MissionStatusFailed, startTime, &ExecutionError{
					Code:      ErrorCodeDeadlock,
					MissionID: execCtx.MissionID,
					Message:   "no runnable task but plan is not complete",
				})
			}
			continue
		}

		// Block until a worker finishes or cancellation arrives. Once
		// cancelled, drain outcomes only: in-flight tasks run to
		// completion.
		var out taskOutcome
		received := false
		if cancelled {
			out = <-outcomes
			received = true
		} else {
			select {
			case <-ctx.Done():
				cancelled = true
			case out = <-outcomes:
				received = true
			}
		}
		if !received {
			continue
		}
		inFlight--

		if out.err == nil {
			state.markSucceeded(out.taskID, out.output)
			o.emitTask(ctx, execCtx.MissionID, EventTaskSucceeded, out.taskID, nil)
			continue
		}
		skipped := state.markFailed(out.taskID, out.err)
		o.emitTask(ctx, execCtx.MissionID, EventTaskFailed, out.taskID,
			map[string]any{"error": out.err.Error()})
		for _, id := range skipped {
			o.emitTask(ctx, execCtx.MissionID, EventTaskSkipped, id,
				map[string]any{"reason": "dependency " + out.taskID + " failed"})
		}
		o.logger.ErrorContext(ctx, "task failed terminally",
			"mission_id", execCtx.MissionID,
			"task_id", out.taskID,
			"skipped_dependents", len(skipped),
			"error", out.err,
		)
		if firstFailure == nil {
			firstFailure = &ExecutionError{
				Code:         ErrorCodeTaskFailed,
				MissionID:    execCtx.MissionID,
				TaskID:       out.taskID,
				Message:      "task failed after exhausting retries",
				SkippedTasks: skipped,
				Cause:        out.err,
			}
		}
	}
}

// dispatch marks the task running and launches a worker goroutine.
func (o *Orchestrator) dispatch(
	ctx context.Context,
	t *plan.Task,
	state *executionState,
	execCtx ExecutionContext,
	policy resilience.RetryPolicy,
	outcomes chan<- taskOutcome,
) {
	state.markRunning(t.TaskID)
	o.emitTask(ctx, execCtx.MissionID, EventTaskStarted, t.TaskID,
		map[string]any{"tool": t.ToolName})

	go func() {
		output, err := o.runTask(ctx, t, state, execCtx, policy)
		outcomes <- taskOutcome{taskID: t.TaskID, output: output, err: err}
	}()
}

// runTask executes one task's tool call under the breaker and retry
// policy. The breaker circuit is keyed by tool name: one circuit per
// logical external dependency, shared across concurrent tasks.
func (o *Orchestrator) runTask(
	ctx context.Context,
	t *plan.Task,
	state *executionState,
	execCtx ExecutionContext,
	policy resilience.RetryPolicy,
) (map[string]any, error) {
	dependency := t.ToolName
	var output map[string]any

	err := resilience.Retry(ctx, policy, func(ctx context.Context, attempt int) error {
		if attempt > 0 {
			state.markRetrying(t.TaskID)
			o.emitTask(ctx, execCtx.MissionID, EventTaskRetrying, t.TaskID,
				map[string]any{"attempt": attempt})
			state.markRunning(t.TaskID)
		}

		// Breaker rejection happens before the dependency is touched and
		// counts as a transient failure: the circuit may close before the
		// retry budget runs out.
		if err := o.breaker.Allow(dependency); err != nil {
			return err
		}

		result, err := o.executor.Execute(ctx, t.ToolName, t.ToolArgs)
		if err != nil {
			var te *tool.Error
			if errors.As(err, &te) && !te.Retryable {
				// Terminal failures (unknown tool, malformed arguments) are
				// the caller's fault, not the dependency's; the circuit
				// stays untouched.
				return err
			}
			o.breaker.RecordFailure(dependency)
			return resilience.Retryable(err)
		}

		o.breaker.RecordSuccess(dependency)
		output = result
		return nil
	})
	return output, err
}

// finish assembles the execution result and emits the terminal mission
// event.
func (o *Orchestrator) finish(
	ctx context.Context,
	state *executionState,
	execCtx ExecutionContext,
	status types.MissionStatus,
	startTime time.Time,
	execErr error,
) (*ExecutionResult, error) {
	taskResults, succeeded, failed, skipped := state.snapshot()

	result := &ExecutionResult{
		MissionID:   execCtx.MissionID,
		Status:      status,
		TaskResults: taskResults,
		Succeeded:   succeeded,
		Failed:      failed,
		Skipped:     skipped,
		Duration:    time.Since(startTime),
	}

	var ee *ExecutionError
	if errors.As(execErr, &ee) && ee.Code == ErrorCodeTaskFailed {
		result.FailedTask = ee.TaskID
		if ee.Cause != nil {
			result.FailedTaskError = ee.Cause.Error()
		}
		result.SkippedTasks = ee.SkippedTasks
	}

	eventType := EventMissionCompleted
	switch status {
	case types.MissionStatusFailed:
		eventType = EventMissionFailed
	case types.MissionStatusCancelled:
		eventType = EventMissionCancelled
	}
	o.emitMission(ctx, execCtx.MissionID, eventType, map[string]any{
		"succeeded": succeeded,
		"failed":    failed,
		"skipped":   skipped,
		"duration":  result.Duration.String(),
	})

	o.logger.InfoContext(ctx, "mission execution finished",
		"mission_id", execCtx.MissionID,
		"status", status,
		"succeeded", succeeded,
		"failed", failed,
		"skipped", skipped,
		"duration", result.Duration,
	)
	return result, execErr
}

// emitTask emits a task-level event. Emission failures are logged, not
// propagated: execution state is authoritative, events are advisory.
func (o *Orchestrator) emitTask(ctx context.Context, missionID types.ID, eventType EventType, taskID string, payload map[string]any) {
	if o.emitter == nil {
		return
	}
	if err := o.emitter.Emit(ctx, Event{
		Type:      eventType,
		MissionID: missionID,
		TaskID:    taskID,
		Payload:   payload,
	}); err != nil {
		o.logger.WarnContext(ctx, "failed to emit task event",
			"event", eventType, "task_id", taskID, "error", err)
	}
}

// emitMission emits a mission-level event.
func (o *Orchestrator) emitMission(ctx context.Context, missionID types.ID, eventType EventType, payload map[string]any) {
	if o.emitter == nil {
		return
	}
	if err := o.emitter.Emit(ctx, Event{
		Type:      eventType,
		MissionID: missionID,
		Payload:   payload,
	}); err != nil {
		o.logger.WarnContext(ctx, "failed to emit mission event",
			"event", eventType, "error", err)
	}
}

// BreakerStats exposes the shared breaker's circuit snapshot.
func (o *Orchestrator) BreakerStats() resilience.CircuitBreakerStats {
	return o.breaker.Stats()
}
