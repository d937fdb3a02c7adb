package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenithsec/helmsman/internal/plan"
	"github.com/zenithsec/helmsman/internal/types"
)

// stubPlanner is a minimal planner for factory tests.
type stubPlanner struct {
	name string
	caps []string
}

func (s *stubPlanner) Name() string           { return s.name }
func (s *stubPlanner) Capabilities() []string { return s.caps }

func (s *stubPlanner) BuildPlan(ctx context.Context, req Request) (*plan.Plan, error) {
	return plan.NewPlan(req.Objective, s.name, []*plan.Task{
		{TaskID: "t1", Description: "stub", ToolName: "echo", Priority: 1},
	}), nil
}

func stubBuilder(name string, hotspotAware bool, caps ...string) Builder {
	return Builder{
		Name:         name,
		Capabilities: caps,
		HotspotAware: hotspotAware,
		New: func(ctx context.Context, deps Deps) (Planner, error) {
			return &stubPlanner{name: name, caps: caps}, nil
		},
	}
}

// testConfig is a permissive config where freshly discovered planners
// clear the floor and rediscovery retries do not slow tests down.
func testConfig(whitelist ...string) FactoryConfig {
	cfg := DefaultFactoryConfig()
	cfg.Whitelist = whitelist
	cfg.MinReliability = 0.25
	cfg.InitialReliability = 0.5
	cfg.DiscoveryBackoff = time.Millisecond
	cfg.DiscoveryMaxBackoff = 2 * time.Millisecond
	return cfg
}

func TestFactory_DiscoverRegistersWhitelist(t *testing.T) {
	catalog := []Builder{
		stubBuilder("alpha", false, "decomposition"),
		stubBuilder("beta", false, "decomposition"),
		stubBuilder("gamma", false, "adaptive"),
	}
	f := NewFactory(testConfig("alpha", "gamma", "missing"), catalog, Deps{})
	require.NoError(t, f.Discover(context.Background(), false))

	records := f.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].Name)
	assert.Equal(t, "gamma", records[1].Name)
	assert.Equal(t, types.PlannerStateRegistered, records[0].State)
	assert.InDelta(t, 0.5, records[0].Reliability, 1e-9)
}

func TestFactory_DiscoverEmptyWhitelistAdmitsCatalog(t *testing.T) {
	catalog := []Builder{stubBuilder("alpha", false), stubBuilder("beta", false)}
	f := NewFactory(testConfig(), catalog, Deps{})
	require.NoError(t, f.Discover(context.Background(), false))

	assert.Len(t, f.Records(), 2)
}

func TestFactory_DiscoverPreservesStateAcrossRediscovery(t *testing.T) {
	f := NewFactory(testConfig("alpha"), []Builder{stubBuilder("alpha", false)}, Deps{})
	ctx := context.Background()
	require.NoError(t, f.Discover(ctx, false))

	require.NoError(t, f.RecordOutcome("alpha", true))
	before, err := f.Record("alpha")
	require.NoError(t, err)

	require.NoError(t, f.Discover(ctx, true))
	after, err := f.Record("alpha")
	require.NoError(t, err)
	assert.Equal(t, before.Reliability, after.Reliability,
		"rediscovery must not reset reliability")
}

func TestFactory_SelectBestPlanner_CapabilityMatch(t *testing.T) {
	catalog := []Builder{
		stubBuilder("generalist", false, "decomposition"),
		stubBuilder("specialist", false, "decomposition", "adaptive"),
	}
	f := NewFactory(testConfig("generalist", "specialist"), catalog, Deps{})
	require.NoError(t, f.Discover(context.Background(), false))

	name, err := f.SelectBestPlanner(context.Background(), Request{
		Objective:            "do the thing",
		RequiredCapabilities: []string{"decomposition", "adaptive"},
	})
	require.NoError(t, err)
	assert.Equal(t, "specialist", name)
}

func TestFactory_SelectBestPlanner_DeterministicTieBreak(t *testing.T) {
	// Identical capabilities and reliability: the name decides,
	// ascending.
	catalog := []Builder{
		stubBuilder("zeta", false, "decomposition"),
		stubBuilder("alpha", false, "decomposition"),
		stubBuilder("mike", false, "decomposition"),
	}
	f := NewFactory(testConfig("zeta", "alpha", "mike"), catalog, Deps{})
	require.NoError(t, f.Discover(context.Background(), false))

	for i := 0; i < 10; i++ {
		name, err := f.SelectBestPlanner(context.Background(), Request{Objective: "x"})
		require.NoError(t, err)
		assert.Equal(t, "alpha", name)
	}
}

func TestFactory_SelectBestPlanner_ReliabilityFloor(t *testing.T) {
	// 50 planners; the best capability match sits below the floor and
	// must be passed over for the next eligible candidate.
	var catalog []Builder
	whitelist := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		name := fmt.Sprintf("planner%02d", i)
		caps := []string{"decomposition"}
		if name == "planner25" {
			caps = append(caps, "adaptive") // the perfect match
		}
		catalog = append(catalog, stubBuilder(name, false, caps...))
		whitelist = append(whitelist, name)
	}

	cfg := testConfig(whitelist...)
	cfg.QuarantineThreshold = 100 // keep quarantine out of this test
	f := NewFactory(cfg, catalog, Deps{})
	require.NoError(t, f.Discover(context.Background(), false))

	// Drive the perfect match below the floor: 0.5 -> 0.35 -> 0.245.
	require.NoError(t, f.RecordOutcome("planner25", false))
	require.NoError(t, f.RecordOutcome("planner25", false))
	rec, err := f.Record("planner25")
	require.NoError(t, err)
	require.Less(t, rec.Reliability, cfg.MinReliability)

	name, err := f.SelectBestPlanner(context.Background(), Request{
		Objective:            "x",
		RequiredCapabilities: []string{"decomposition", "adaptive"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, "planner25", name,
		"a planner below the reliability floor is never selected")
	assert.Equal(t, "planner00", name, "half-match candidates tie-break on name")
}

func TestFactory_SelectBestPlanner_DeepContextBoost(t *testing.T) {
	catalog := []Builder{
		stubBuilder("plain", false, "decomposition"),
		stubBuilder("aware", true, "decomposition"),
	}
	f := NewFactory(testConfig("plain", "aware"), catalog, Deps{})
	require.NoError(t, f.Discover(context.Background(), false))

	// Without deep context the tie-break favors "aware" alphabetically
	// anyway, so check the inverse first with a reliability edge.
	require.NoError(t, f.RecordOutcome("plain", true))
	name, err := f.SelectBestPlanner(context.Background(), Request{Objective: "x"})
	require.NoError(t, err)
	assert.Equal(t, "plain", name)

	// The bounded boost cannot outweigh a real reliability gap, but it
	// decides otherwise-equal scores.
	require.NoError(t, f.RecordOutcome("aware", true))
	name, err = f.SelectBestPlanner(context.Background(), Request{
		Objective:   "x",
		DeepContext: &DeepContext{Hotspots: []string{"pkg/auth"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "aware", name)
}

func TestFactory_SelectBestPlanner_NoActivePlanners(t *testing.T) {
	f := NewFactory(testConfig("ghost"), nil, Deps{})
	require.NoError(t, f.Discover(context.Background(), false))

	start := time.Now()
	_, err := f.SelectBestPlanner(context.Background(), Request{Objective: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, NewError(ErrorTypeNoActivePlanners, "", ""))
	assert.Less(t, time.Since(start), time.Second,
		"rediscovery retries must be bounded")
}

func TestFactory_RecordOutcome_EMA(t *testing.T) {
	f := NewFactory(testConfig("alpha"), []Builder{stubBuilder("alpha", false)}, Deps{})
	require.NoError(t, f.Discover(context.Background(), false))

	require.NoError(t, f.RecordOutcome("alpha", true))
	rec, err := f.Record("alpha")
	require.NoError(t, err)
	// 0.3*1 + 0.7*0.5
	assert.InDelta(t, 0.65, rec.Reliability, 1e-9)

	require.NoError(t, f.RecordOutcome("alpha", false))
	rec, err = f.Record("alpha")
	require.NoError(t, err)
	// 0.3*0 + 0.7*0.65
	assert.InDelta(t, 0.455, rec.Reliability, 1e-9)
	assert.Equal(t, 1, rec.ConsecutiveFailures)
}

func TestFactory_RecordOutcome_QuarantineAndReactivate(t *testing.T) {
	cfg := testConfig("alpha", "beta")
	catalog := []Builder{stubBuilder("alpha", false), stubBuilder("beta", false)}
	f := NewFactory(cfg, catalog, Deps{})
	ctx := context.Background()
	require.NoError(t, f.Discover(ctx, false))

	for i := 0; i < cfg.QuarantineThreshold; i++ {
		require.NoError(t, f.RecordOutcome("alpha", false))
	}
	rec, err := f.Record("alpha")
	require.NoError(t, err)
	assert.Equal(t, types.PlannerStateQuarantined, rec.State)

	// Quarantined planners are excluded from selection and
	// instantiation.
	name, err := f.SelectBestPlanner(ctx, Request{Objective: "x"})
	require.NoError(t, err)
	assert.Equal(t, "beta", name)

	_, err = f.Instantiate(ctx, "alpha")
	assert.ErrorIs(t, err, NewError(ErrorTypeQuarantined, "", ""))

	// Manual reactivation clears the streak but not the reliability.
	require.NoError(t, f.Reactivate("alpha"))
	rec, err = f.Record("alpha")
	require.NoError(t, err)
	assert.Equal(t, types.PlannerStateActive, rec.State)
	assert.Equal(t, 0, rec.ConsecutiveFailures)
	assert.Less(t, rec.Reliability, 0.25, "reliability must be earned back")
}

func TestFactory_Instantiate_CachesInstance(t *testing.T) {
	constructions := 0
	builder := Builder{
		Name:         "alpha",
		Capabilities: []string{"decomposition"},
		New: func(ctx context.Context, deps Deps) (Planner, error) {
			constructions++
			return &stubPlanner{name: "alpha"}, nil
		},
	}
	f := NewFactory(testConfig("alpha"), []Builder{builder}, Deps{})
	ctx := context.Background()
	require.NoError(t, f.Discover(ctx, false))

	first, err := f.Instantiate(ctx, "alpha")
	require.NoError(t, err)
	second, err := f.Instantiate(ctx, "alpha")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, constructions)

	rec, err := f.Record("alpha")
	require.NoError(t, err)
	assert.Equal(t, types.PlannerStateActive, rec.State)
}

func TestFactory_Instantiate_NotFound(t *testing.T) {
	f := NewFactory(testConfig("alpha"), []Builder{stubBuilder("alpha", false)}, Deps{})
	require.NoError(t, f.Discover(context.Background(), false))

	_, err := f.Instantiate(context.Background(), "nope")
	assert.ErrorIs(t, err, NewError(ErrorTypeNotFound, "", ""))
}

func TestFactory_Instantiate_ConstructFailure(t *testing.T) {
	boom := errors.New("boom")
	builder := Builder{
		Name: "broken",
		New: func(ctx context.Context, deps Deps) (Planner, error) {
			return nil, boom
		},
	}
	f := NewFactory(testConfig("broken"), []Builder{builder}, Deps{})
	ctx := context.Background()
	require.NoError(t, f.Discover(ctx, false))

	_, err := f.Instantiate(ctx, "broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, NewError(ErrorTypeConstruct, "", ""))
	assert.ErrorIs(t, err, boom)

	rec, rerr := f.Record("broken")
	require.NoError(t, rerr)
	assert.NotEmpty(t, rec.LastError)
}

func TestFactory_Instantiate_ConstructTimeout(t *testing.T) {
	builder := Builder{
		Name: "slow",
		New: func(ctx context.Context, deps Deps) (Planner, error) {
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			return &stubPlanner{name: "slow"}, nil
		},
	}
	cfg := testConfig("slow")
	cfg.ConstructTimeout = 10 * time.Millisecond
	f := NewFactory(cfg, []Builder{builder}, Deps{})
	ctx := context.Background()
	require.NoError(t, f.Discover(ctx, false))

	_, err := f.Instantiate(ctx, "slow")
	assert.ErrorIs(t, err, NewError(ErrorTypeConstructTimeout, "", ""))
}

func TestFactory_Instantiate_ConstructPanicIsolated(t *testing.T) {
	builder := Builder{
		Name: "panicky",
		New: func(ctx context.Context, deps Deps) (Planner, error) {
			panic("constructor bug")
		},
	}
	catalog := []Builder{builder, stubBuilder("healthy", false)}
	f := NewFactory(testConfig("panicky", "healthy"), catalog, Deps{})
	ctx := context.Background()
	require.NoError(t, f.Discover(ctx, false))

	_, err := f.Instantiate(ctx, "panicky")
	require.Error(t, err)
	assert.ErrorIs(t, err, NewError(ErrorTypeConstruct, "", ""))

	// Other planners are unaffected.
	_, err = f.Instantiate(ctx, "healthy")
	assert.NoError(t, err)
}

func TestFactory_Telemetry(t *testing.T) {
	cfg := testConfig("alpha")
	cfg.TelemetryCapacity = 3
	f := NewFactory(cfg, []Builder{stubBuilder("alpha", false)}, Deps{})
	ctx := context.Background()
	require.NoError(t, f.Discover(ctx, false))

	for i := 0; i < 5; i++ {
		_, err := f.SelectBestPlanner(ctx, Request{Objective: "x"})
		require.NoError(t, err)
	}
	_, err := f.Instantiate(ctx, "alpha")
	require.NoError(t, err)

	entries := f.Telemetry()
	require.Len(t, entries, 3, "ring evicts oldest entries beyond capacity")
	// Newest entry is the instantiation.
	last := entries[len(entries)-1]
	assert.Equal(t, "instantiate", last.Operation)
	assert.Equal(t, "ok", last.Outcome)
	assert.Equal(t, "alpha", last.Planner)
	for _, e := range entries[:2] {
		assert.Equal(t, "select", e.Operation)
	}
	// Oldest-first ordering.
	assert.False(t, entries[0].Timestamp.After(entries[2].Timestamp))
}
