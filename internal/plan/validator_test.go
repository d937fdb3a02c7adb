package plan

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenithsec/helmsman/internal/types"
)

func task(id string, deps ...string) *Task {
	return &Task{
		TaskID:       id,
		Description:  "task " + id,
		Dependencies: deps,
		Priority:     10,
		RiskLevel:    types.RiskLevelLow,
		Status:       types.TaskStatusPending,
		ToolName:     "echo",
	}
}

// chainPlan builds a linear plan a1 <- a2 <- ... <- aN with varied
// priorities so the uniform-priority heuristic stays quiet.
func chainPlan(n int) *Plan {
	tasks := make([]*Task, 0, n)
	for i := 1; i <= n; i++ {
		t := task(fmt.Sprintf("a%02d", i))
		if i > 1 {
			t.Dependencies = []string{fmt.Sprintf("a%02d", i-1)}
		}
		t.Priority = 100 - i
		tasks = append(tasks, t)
	}
	return NewPlan("chain objective", "test", tasks)
}

func TestValidator_ValidPlan(t *testing.T) {
	p := chainPlan(4)
	report := NewValidator().Validate(p)

	require.True(t, report.Valid())
	assert.Equal(t, types.PlanStatusValidated, p.Status)
	assert.NotEmpty(t, p.ContentHash)
	assert.NotEmpty(t, p.StructuralHash)
	require.NotNil(t, report.Stats)
	assert.Equal(t, 4, report.Stats.TaskCount)
	assert.Equal(t, 4, report.Stats.Depth)
	assert.Equal(t, 1, report.Stats.RootCount)
	assert.Equal(t, 1, report.Stats.LeafCount)
	assert.Empty(t, report.Warnings)
}

func TestValidator_EmptyPlan(t *testing.T) {
	p := NewPlan("nothing to do", "test", nil)
	report := NewValidator().Validate(p)

	require.False(t, report.Valid())
	require.Len(t, report.Issues, 1)
	assert.Equal(t, IssueEmptyPlan, report.Issues[0].Code)
	assert.Equal(t, types.PlanStatusInvalid, p.Status)
	assert.Empty(t, p.ContentHash, "invalid plans must not carry hashes")
	assert.Empty(t, p.StructuralHash)
	assert.Nil(t, report.Stats)
}

func TestValidator_TooManyTasks(t *testing.T) {
	p := chainPlan(5)
	p.Settings = Settings{MaxTasks: 3, MaxDepth: 20, MaxOutDegree: 10}
	report := NewValidator().Validate(p)

	require.Len(t, report.Issues, 1)
	assert.Equal(t, IssueTooManyTasks, report.Issues[0].Code)
}

func TestValidator_DuplicateTaskIDs(t *testing.T) {
	p := NewPlan("dupes", "test", []*Task{
		task("a"), task("b"), task("a"), task("b"), task("c"),
	})
	report := NewValidator().Validate(p)

	require.False(t, report.Valid())
	require.Len(t, report.Issues, 2)
	// One issue per duplicated id, in sorted id order.
	assert.Equal(t, IssueDuplicateTaskID, report.Issues[0].Code)
	assert.Equal(t, []string{"a"}, report.Issues[0].TaskIDs)
	assert.Equal(t, []string{"b"}, report.Issues[1].TaskIDs)
}

func TestValidator_DanglingDependency(t *testing.T) {
	p := NewPlan("dangling", "test", []*Task{
		task("a"),
		task("b", "a", "ghost"),
	})
	report := NewValidator().Validate(p)

	require.Len(t, report.Issues, 1)
	assert.Equal(t, IssueDanglingDependency, report.Issues[0].Code)
	assert.Contains(t, report.Issues[0].Message, "b -> ghost")
}

func TestValidator_CycleDetected(t *testing.T) {
	// Two tasks that depend on each other form the minimal cycle.
	p := NewPlan("cyclic", "test", []*Task{
		task("A", "B"),
		task("B", "A"),
	})
	report := NewValidator().Validate(p)

	require.False(t, report.Valid())
	require.Len(t, report.Issues, 1)
	assert.Equal(t, IssueCycleDetected, report.Issues[0].Code)
	assert.Equal(t, []string{"A", "B"}, report.Issues[0].TaskIDs)
}

func TestValidator_CycleReportsOnlyCyclicNodes(t *testing.T) {
	// root is acyclic; x/y/z form a cycle and mid depends on it.
	p := NewPlan("partial cycle", "test", []*Task{
		task("root"),
		task("x", "z"),
		task("y", "x"),
		task("z", "y"),
		task("mid", "x"),
	})
	report := NewValidator().Validate(p)

	require.Len(t, report.Issues, 1)
	assert.Equal(t, IssueCycleDetected, report.Issues[0].Code)
	// mid never becomes dequeueable either; root does.
	assert.Equal(t, []string{"mid", "x", "y", "z"}, report.Issues[0].TaskIDs)
}

func TestValidator_DepthExceeded(t *testing.T) {
	p := chainPlan(6)
	p.Settings = Settings{MaxTasks: 100, MaxDepth: 5, MaxOutDegree: 10}
	report := NewValidator().Validate(p)

	require.Len(t, report.Issues, 1)
	assert.Equal(t, IssueDepthExceeded, report.Issues[0].Code)
}

func TestValidator_FanOutExceeded(t *testing.T) {
	tasks := []*Task{task("hub")}
	for i := 0; i < 4; i++ {
		tasks = append(tasks, task(fmt.Sprintf("leaf%d", i), "hub"))
	}
	p := NewPlan("fan", "test", tasks)
	p.Settings = Settings{MaxTasks: 100, MaxDepth: 20, MaxOutDegree: 3}
	report := NewValidator().Validate(p)

	require.Len(t, report.Issues, 1)
	assert.Equal(t, IssueFanOutExceeded, report.Issues[0].Code)
	assert.Equal(t, []string{"hub"}, report.Issues[0].TaskIDs)
}

func TestValidator_Warnings(t *testing.T) {
	t.Run("root density", func(t *testing.T) {
		p := NewPlan("flat", "test", []*Task{
			task("a"), task("b"), task("c"), task("d", "a"),
		})
		p.Tasks[0].Priority = 1
		report := NewValidator().Validate(p)

		require.True(t, report.Valid())
		var codes []WarningCode
		for _, w := range report.Warnings {
			codes = append(codes, w.Code)
		}
		assert.Contains(t, codes, WarnRootDensity)
	})

	t.Run("orphan tasks", func(t *testing.T) {
		p := NewPlan("orphan", "test", []*Task{
			task("a"), task("b", "a"), task("island"),
		})
		p.Tasks[2].Priority = 5
		report := NewValidator().Validate(p)

		require.True(t, report.Valid())
		found := false
		for _, w := range report.Warnings {
			if w.Code == WarnOrphanTasks {
				found = true
				assert.Equal(t, []string{"island"}, w.TaskIDs)
			}
		}
		assert.True(t, found)
	})

	t.Run("uniform priority", func(t *testing.T) {
		p := NewPlan("uniform", "test", []*Task{
			task("a"), task("b", "a"), task("c", "b"),
		})
		report := NewValidator().Validate(p)

		require.True(t, report.Valid())
		require.Len(t, report.Warnings, 1)
		assert.Equal(t, WarnUniformPriority, report.Warnings[0].Code)
	})

	t.Run("high risk density", func(t *testing.T) {
		hot := task("hot")
		hot.RiskLevel = types.RiskLevelCritical
		hot.Priority = 1
		warm := task("warm", "hot")
		warm.RiskLevel = types.RiskLevelHigh
		warm.Priority = 2
		cool := task("cool", "warm")
		cool.Priority = 3

		p := NewPlan("risky", "test", []*Task{hot, warm, cool})
		report := NewValidator().Validate(p)

		require.True(t, report.Valid())
		require.Len(t, report.Warnings, 1)
		assert.Equal(t, WarnHighRiskDensity, report.Warnings[0].Code)
		assert.Equal(t, []string{"hot", "warm"}, report.Warnings[0].TaskIDs)
	})
}

func TestValidator_Deterministic(t *testing.T) {
	// Same plan validated twice yields byte-identical reports.
	build := func() *Plan {
		return NewPlan("deterministic", "test", []*Task{
			task("setup"),
			task("fetch", "setup"),
			task("parse", "fetch"),
			task("store", "parse"),
			task("verify", "store"),
		})
	}
	p1, p2 := build(), build()
	for i, t1 := range p1.Tasks {
		t1.Priority = 50 - i
		p2.Tasks[i].Priority = 50 - i
	}

	r1 := NewValidator().Validate(p1)
	r2 := NewValidator().Validate(p2)

	assert.Equal(t, r1.Issues, r2.Issues)
	assert.Equal(t, r1.Warnings, r2.Warnings)
	assert.Equal(t, r1.Stats, r2.Stats)
	assert.Equal(t, p1.ContentHash, p2.ContentHash)
	assert.Equal(t, p1.StructuralHash, p2.StructuralHash)
}

func TestValidator_StatsRiskScore(t *testing.T) {
	low := task("low")
	low.Priority = 1
	critical := task("critical", "low")
	critical.RiskLevel = types.RiskLevelCritical
	critical.Priority = 2

	p := NewPlan("risk", "test", []*Task{low, critical})
	report := NewValidator().Validate(p)

	require.True(t, report.Valid())
	assert.InDelta(t, (0.1+1.0)/2, report.Stats.RiskScore, 1e-9)
}

func TestValidator_ZeroSettingsFallBackToDefaults(t *testing.T) {
	p := chainPlan(3)
	p.Settings = Settings{}
	report := NewValidator().Validate(p)

	assert.True(t, report.Valid())
}
