package mission

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zenithsec/helmsman/internal/plan"
	"github.com/zenithsec/helmsman/internal/planner"
	"github.com/zenithsec/helmsman/internal/types"
)

// Service drives a mission end to end: planner selection, plan
// generation, validation, and execution. It owns the mission state
// machine and emits lifecycle events at each stage.
type Service struct {
	factory      *planner.Factory
	validator    *plan.Validator
	orchestrator *Orchestrator
	emitter      *Emitter
	logger       *slog.Logger
	tracer       trace.Tracer
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for mission lifecycle logging.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithServiceTracer sets the tracer for mission spans.
func WithServiceTracer(tracer trace.Tracer) ServiceOption {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// NewService creates a mission service. The emitter may be shared with
// the orchestrator so task and mission events interleave on one stream.
func NewService(factory *planner.Factory, orchestrator *Orchestrator, emitter *Emitter, opts ...ServiceOption) *Service {
	s := &Service{
		factory:      factory,
		validator:    plan.NewValidator(),
		orchestrator: orchestrator,
		emitter:      emitter,
		logger:       slog.Default(),
		tracer:       otel.Tracer("helmsman.mission"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunRequest describes one mission to run.
type RunRequest struct {
	// Objective is the free-text goal.
	Objective string

	// RequiredCapabilities constrains planner selection.
	RequiredCapabilities []string

	// DeepContext is optional hotspot context forwarded to the planner.
	DeepContext *planner.DeepContext

	// Settings overrides plan validation ceilings when non-zero.
	Settings plan.Settings

	// ConcurrencyLimit bounds simultaneous task execution. Zero uses
	// the orchestrator default.
	ConcurrencyLimit int
}

// RunResult bundles the mission, its plan, the validation report, and
// the execution outcome. Plan and Report are set once planning
// completed even when the mission failed; Execution is nil unless the
// mission reached the executing stage.
type RunResult struct {
	Mission   *Mission
	Plan      *plan.Plan
	Report    *plan.Report
	Execution *ExecutionResult
}

// Run takes a mission from objective to terminal state. The returned
// RunResult is populated as far as the mission got; the error reflects
// the stage that stopped it.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	m := NewMission(req.Objective)
	result := &RunResult{Mission: m}

	ctx, span := s.tracer.Start(ctx, "mission.run",
		trace.WithAttributes(
			attribute.String("mission.id", m.ID.String()),
			attribute.String("mission.objective", req.Objective),
		))
	defer span.End()

	s.emitMission(ctx, m, EventMissionStarted, map[string]any{
		"objective": req.Objective,
	})

	p, report, err := s.planMission(ctx, m, req)
	result.Plan = p
	result.Report = report
	if err != nil {
		s.failMission(ctx, m, err)
		return result, err
	}

	if err := m.Transition(types.MissionStatusExecuting); err != nil {
		s.failMission(ctx, m, err)
		return result, err
	}

	execCtx := ExecutionContext{
		MissionID:        m.ID,
		ConcurrencyLimit: req.ConcurrencyLimit,
	}
	exec, err := s.orchestrator.Execute(ctx, p, execCtx)
	result.Execution = exec
	if exec != nil {
		// The orchestrator decided the terminal status; mirror it on
		// the mission record.
		if terr := m.Transition(exec.Status); terr != nil {
			s.logger.WarnContext(ctx, "mission status out of sync",
				"mission_id", m.ID,
				"status", exec.Status,
				"error", terr)
		}
	} else if err != nil {
		s.failMission(ctx, m, err)
	}

	s.logger.InfoContext(ctx, "mission finished",
		"mission_id", m.ID,
		"status", m.Status,
		"planner", m.PlannerName)
	return result, err
}

// planMission selects a planner, builds the plan, and validates it. The
// mission is left in Validated state on success.
func (s *Service) planMission(ctx context.Context, m *Mission, req RunRequest) (*plan.Plan, *plan.Report, error) {
	if err := m.Transition(types.MissionStatusPlanning); err != nil {
		return nil, nil, err
	}

	plannerReq := planner.Request{
		Objective:            req.Objective,
		RequiredCapabilities: req.RequiredCapabilities,
		DeepContext:          req.DeepContext,
		Settings:             req.Settings,
	}

	name, err := s.factory.SelectBestPlanner(ctx, plannerReq)
	if err != nil {
		return nil, nil, err
	}
	m.PlannerName = name

	instance, err := s.factory.Instantiate(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	p, err := instance.BuildPlan(ctx, plannerReq)
	if recErr := s.factory.RecordOutcome(name, err == nil); recErr != nil {
		s.logger.WarnContext(ctx, "failed to record planner outcome",
			"planner", name,
			"error", recErr)
	}
	if err != nil {
		return nil, nil, err
	}
	m.PlanID = p.ID

	s.emitMission(ctx, m, EventPlanGenerated, map[string]any{
		"plan_id":     p.ID.String(),
		"planner":     name,
		"task_count":  len(p.Tasks),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	report := s.validator.Validate(p)
	if !report.Valid() {
		codes := make([]string, 0, len(report.Issues))
		for _, issue := range report.Issues {
			codes = append(codes, string(issue.Code))
		}
		s.emitMission(ctx, m, EventPlanInvalid, map[string]any{
			"plan_id": p.ID.String(),
			"issues":  codes,
		})
		return p, report, &plan.ValidationError{PlanID: p.ID.String(), Issues: report.Issues}
	}

	s.emitMission(ctx, m, EventPlanValidated, map[string]any{
		"plan_id":         p.ID.String(),
		"content_hash":    p.ContentHash,
		"structural_hash": p.StructuralHash,
		"warnings":        len(report.Warnings),
	})
	return p, report, m.Transition(types.MissionStatusValidated)
}

func (s *Service) failMission(ctx context.Context, m *Mission, cause error) {
	if !m.Status.IsTerminal() {
		if err := m.Transition(types.MissionStatusFailed); err != nil {
			s.logger.WarnContext(ctx, "mission could not transition to failed",
				"mission_id", m.ID,
				"from", m.Status,
				"error", err)
			return
		}
	}
	s.emitMission(ctx, m, EventMissionFailed, map[string]any{
		"error": cause.Error(),
	})
}

func (s *Service) emitMission(ctx context.Context, m *Mission, eventType EventType, payload map[string]any) {
	if s.emitter == nil {
		return
	}
	event := Event{
		Type:      eventType,
		MissionID: m.ID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit mission event",
			"mission_id", m.ID,
			"event", eventType,
			"error", err)
	}
}
