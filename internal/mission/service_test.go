package mission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenithsec/helmsman/internal/plan"
	"github.com/zenithsec/helmsman/internal/planner"
	"github.com/zenithsec/helmsman/internal/tool"
	"github.com/zenithsec/helmsman/internal/types"
)

// planFn adapts a function into a planner for service tests.
type planFn struct {
	name  string
	build func(ctx context.Context, req planner.Request) (*plan.Plan, error)
}

func (p *planFn) Name() string           { return p.name }
func (p *planFn) Capabilities() []string { return []string{"decomposition"} }
func (p *planFn) BuildPlan(ctx context.Context, req planner.Request) (*plan.Plan, error) {
	return p.build(ctx, req)
}

// serviceHarness bundles the service with its collaborators so tests
// can inspect factory state and subscribe to events.
type serviceHarness struct {
	service *Service
	factory *planner.Factory
	emitter *Emitter
}

func newServiceHarness(t *testing.T, build func(ctx context.Context, req planner.Request) (*plan.Plan, error)) *serviceHarness {
	t.Helper()

	cfg := planner.DefaultFactoryConfig()
	cfg.MinReliability = 0.25
	cfg.InitialReliability = 0.5
	cfg.DiscoveryBackoff = time.Millisecond
	cfg.DiscoveryMaxBackoff = 2 * time.Millisecond

	catalog := []planner.Builder{{
		Name:         "fixture",
		Capabilities: []string{"decomposition"},
		New: func(ctx context.Context, deps planner.Deps) (planner.Planner, error) {
			return &planFn{name: "fixture", build: build}, nil
		},
	}}
	factory := planner.NewFactory(cfg, catalog, planner.Deps{})
	require.NoError(t, factory.Discover(context.Background(), false))

	registry := tool.NewRegistry()
	require.NoError(t, tool.RegisterBuiltins(registry))
	executor := tool.NewExecutor(registry, time.Second)

	emitter := NewEmitter()
	t.Cleanup(emitter.Close)
	orchestrator := NewOrchestrator(executor, emitter)

	return &serviceHarness{
		service: NewService(factory, orchestrator, emitter),
		factory: factory,
		emitter: emitter,
	}
}

// echoTask builds a plan task targeting the built-in echo tool.
func echoTask(id string, deps ...string) *plan.Task {
	return &plan.Task{
		TaskID:       id,
		Description:  "echo " + id,
		Priority:     10,
		ToolName:     "echo",
		ToolArgs:     map[string]any{"task": id},
		Dependencies: deps,
	}
}

func drainEvents(sub <-chan Event) []EventType {
	var seen []EventType
	for {
		select {
		case ev := <-sub:
			seen = append(seen, ev.Type)
		default:
			return seen
		}
	}
}

func TestService_Run_CompletesEndToEnd(t *testing.T) {
	h := newServiceHarness(t, func(ctx context.Context, req planner.Request) (*plan.Plan, error) {
		return plan.NewPlan(req.Objective, "fixture", []*plan.Task{
			echoTask("gather"),
			echoTask("act", "gather"),
		}), nil
	})

	sub, cancelSub := h.emitter.Subscribe()
	defer cancelSub()

	result, err := h.service.Run(context.Background(), RunRequest{
		Objective:            "probe the staging target",
		RequiredCapabilities: []string{"decomposition"},
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, types.MissionStatusCompleted, result.Mission.Status)
	assert.Equal(t, "fixture", result.Mission.PlannerName)
	assert.Equal(t, result.Plan.ID, result.Mission.PlanID)
	require.NotNil(t, result.Report)
	assert.True(t, result.Report.Valid())
	require.NotNil(t, result.Execution)
	assert.Equal(t, 2, result.Execution.Succeeded)
	assert.Equal(t, types.MissionStatusCompleted, result.Execution.Status)

	// A successful build feeds the reliability average.
	rec, err := h.factory.Record("fixture")
	require.NoError(t, err)
	assert.Greater(t, rec.Reliability, 0.5)

	seen := drainEvents(sub)
	assert.Equal(t, EventMissionStarted, seen[0])
	assert.Contains(t, seen, EventPlanGenerated)
	assert.Contains(t, seen, EventPlanValidated)
	assert.Contains(t, seen, EventTaskStarted)
	assert.Equal(t, EventMissionCompleted, seen[len(seen)-1])
}

func TestService_Run_InvalidPlanFailsMission(t *testing.T) {
	h := newServiceHarness(t, func(ctx context.Context, req planner.Request) (*plan.Plan, error) {
		// Mutually dependent tasks can never validate.
		return plan.NewPlan(req.Objective, "fixture", []*plan.Task{
			echoTask("a", "b"),
			echoTask("b", "a"),
		}), nil
	})

	sub, cancelSub := h.emitter.Subscribe()
	defer cancelSub()

	result, err := h.service.Run(context.Background(), RunRequest{Objective: "doomed"})

	var ve *plan.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, result.Plan.ID.String(), ve.PlanID)
	assert.NotEmpty(t, ve.Issues)

	assert.Equal(t, types.MissionStatusFailed, result.Mission.Status)
	require.NotNil(t, result.Report)
	assert.False(t, result.Report.Valid())
	assert.Nil(t, result.Execution)

	seen := drainEvents(sub)
	assert.Contains(t, seen, EventPlanInvalid)
	assert.Equal(t, EventMissionFailed, seen[len(seen)-1])
	assert.NotContains(t, seen, EventTaskStarted)
}

func TestService_Run_PlannerFailureFailsMission(t *testing.T) {
	h := newServiceHarness(t, func(ctx context.Context, req planner.Request) (*plan.Plan, error) {
		return nil, errors.New("model unavailable")
	})

	result, err := h.service.Run(context.Background(), RunRequest{Objective: "doomed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")

	assert.Equal(t, types.MissionStatusFailed, result.Mission.Status)
	assert.Nil(t, result.Plan)
	assert.Nil(t, result.Execution)

	// The failed build dragged reliability down.
	rec, recErr := h.factory.Record("fixture")
	require.NoError(t, recErr)
	assert.Less(t, rec.Reliability, 0.5)
}

func TestService_Run_NoPlannerAvailableFailsMission(t *testing.T) {
	cfg := planner.DefaultFactoryConfig()
	cfg.DiscoveryBackoff = time.Millisecond
	cfg.DiscoveryMaxBackoff = 2 * time.Millisecond
	factory := planner.NewFactory(cfg, nil, planner.Deps{})

	registry := tool.NewRegistry()
	require.NoError(t, tool.RegisterBuiltins(registry))
	orchestrator := NewOrchestrator(tool.NewExecutor(registry, time.Second), NewEmitter())
	service := NewService(factory, orchestrator, nil)

	result, err := service.Run(context.Background(), RunRequest{Objective: "nothing to plan with"})
	require.Error(t, err)
	assert.Equal(t, types.MissionStatusFailed, result.Mission.Status)
	assert.Empty(t, result.Mission.PlannerName)
	assert.Nil(t, result.Plan)
}
