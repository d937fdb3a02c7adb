package planner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zenithsec/helmsman/internal/plan"
	"github.com/zenithsec/helmsman/internal/types"
)

// DefaultPlanner is the template-based fallback planner. It decomposes
// any objective into a fixed analyze/gather/execute/verify/report
// pipeline without calling an LLM, so it always produces a valid plan
// and never consumes tokens.
type DefaultPlanner struct {
	logger *slog.Logger
}

// NewDefaultPlanner creates the template planner.
func NewDefaultPlanner(logger *slog.Logger) *DefaultPlanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultPlanner{logger: logger}
}

// Name returns "default".
func (p *DefaultPlanner) Name() string {
	return "default"
}

// Capabilities returns the capability tags for the template planner.
func (p *DefaultPlanner) Capabilities() []string {
	return []string{"decomposition", "sequential", "deterministic"}
}

// BuildPlan produces the fixed five-stage pipeline for the objective.
// The output is fully deterministic for a given request.
func (p *DefaultPlanner) BuildPlan(ctx context.Context, req Request) (*plan.Plan, error) {
	if req.Objective == "" {
		return nil, NewError(ErrorTypeSelection, p.Name(), "objective cannot be empty")
	}

	stage := func(id, desc string, deps []string, priority int, risk types.RiskLevel) *plan.Task {
		return &plan.Task{
			TaskID:       id,
			Description:  desc,
			Dependencies: deps,
			Priority:     priority,
			RiskLevel:    risk,
			Status:       types.TaskStatusPending,
			ToolName:     "echo",
			ToolArgs:     map[string]any{"stage": id, "objective": req.Objective},
		}
	}

	tasks := []*plan.Task{
		stage("analyze", fmt.Sprintf("Analyze the objective: %s", req.Objective), nil, 50, types.RiskLevelLow),
		stage("gather", "Gather inputs and context needed for execution", []string{"analyze"}, 40, types.RiskLevelLow),
		stage("execute", "Carry out the main work of the objective", []string{"gather"}, 30, types.RiskLevelMedium),
		stage("verify", "Verify the results against the objective", []string{"execute"}, 20, types.RiskLevelLow),
		stage("report", "Summarize outcomes and remaining gaps", []string{"verify"}, 10, types.RiskLevelLow),
	}

	result := plan.NewPlan(req.Objective, p.Name(), tasks)
	if req.Settings != (plan.Settings{}) {
		result.Settings = req.Settings
	}

	p.logger.DebugContext(ctx, "template plan generated",
		"plan_id", result.ID,
		"tasks", len(result.Tasks),
	)
	return result, nil
}
