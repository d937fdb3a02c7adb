package plan

import (
	"fmt"
	"sort"

	"github.com/zenithsec/helmsman/internal/types"
)

// Validator is the stateless graph-validation engine. It checks a draft
// plan against its structural ceilings in a fixed order, computes
// heuristic warnings and aggregate stats for clean plans, and stamps
// content and structural hashes.
//
// Validate is pure: the same plan yields the same issues, warnings,
// stats and hashes on every call.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Report is the outcome of one validation pass.
type Report struct {
	// Issues holds hard failures, in pipeline order. Non-empty issues
	// mean the plan is invalid.
	Issues []Issue

	// Warnings holds heuristic findings. Only computed for clean plans.
	Warnings []Warning

	// Stats holds aggregate metrics. Only computed for clean plans.
	Stats *Stats
}

// Valid reports whether the pass found no hard issues.
func (r *Report) Valid() bool {
	return len(r.Issues) == 0
}

// Validate runs the validation pipeline against the plan.
//
// The checks run in a fixed sequence: basic constraints, task-id
// uniqueness, graph construction, fan-out ceiling, topological
// validation, depth ceiling. The first failing stage short-circuits the
// rest: warnings, stats and hashes are never produced for a plan with
// hard issues.
//
// The plan is stamped with the outcome: status becomes validated or
// invalid, and clean plans receive their hashes, warnings and stats.
func (v *Validator) Validate(p *Plan) *Report {
	report := &Report{}

	settings := p.Settings
	if settings.MaxTasks <= 0 && settings.MaxDepth <= 0 && settings.MaxOutDegree <= 0 {
		settings = DefaultSettings()
	}

	// 1. Basic constraints.
	if len(p.Tasks) == 0 {
		report.Issues = append(report.Issues, Issue{
			Code:    IssueEmptyPlan,
			Message: "plan contains no tasks",
		})
		return v.finish(p, report)
	}
	if settings.MaxTasks > 0 && len(p.Tasks) > settings.MaxTasks {
		report.Issues = append(report.Issues, Issue{
			Code:    IssueTooManyTasks,
			Message: fmt.Sprintf("plan has %d tasks, limit is %d", len(p.Tasks), settings.MaxTasks),
		})
		return v.finish(p, report)
	}

	// 2. Task-id uniqueness.
	if issues := v.checkDuplicateIDs(p); len(issues) > 0 {
		report.Issues = append(report.Issues, issues...)
		return v.finish(p, report)
	}

	// 3. Graph construction; dangling references are hard issues.
	graph, dangling := BuildGraph(p)
	if len(dangling) > 0 {
		report.Issues = append(report.Issues, Issue{
			Code:    IssueDanglingDependency,
			Message: fmt.Sprintf("dependencies reference unknown tasks: %v", dangling),
		})
		return v.finish(p, report)
	}

	// 4. Fan-out ceiling per task.
	if settings.MaxOutDegree > 0 {
		if issues := v.checkFanOut(graph, settings.MaxOutDegree); len(issues) > 0 {
			report.Issues = append(report.Issues, issues...)
			return v.finish(p, report)
		}
	}

	// 5. Topological validation via Kahn's algorithm. Nodes that are
	// never dequeued form the cyclic set, reported as one issue.
	topoOrder, cyclic := graph.TopologicalSort()
	if len(cyclic) > 0 {
		report.Issues = append(report.Issues, Issue{
			Code:    IssueCycleDetected,
			Message: fmt.Sprintf("dependency cycle involves tasks: %v", cyclic),
			TaskIDs: cyclic,
		})
		return v.finish(p, report)
	}

	// 6. Depth ceiling via depth propagation along the topological order.
	depth := graph.Depth(topoOrder)
	if settings.MaxDepth > 0 && depth > settings.MaxDepth {
		report.Issues = append(report.Issues, Issue{
			Code:    IssueDepthExceeded,
			Message: fmt.Sprintf("dependency chain depth %d exceeds limit %d", depth, settings.MaxDepth),
		})
		return v.finish(p, report)
	}

	// 7. Heuristic warnings, only for structurally clean plans.
	report.Warnings = v.collectWarnings(p, graph)

	// 8. Aggregate stats.
	report.Stats = v.computeStats(p, graph, depth)

	// 9. Hashes.
	p.ContentHash = ContentHash(p)
	p.StructuralHash = StructuralHash(p)

	return v.finish(p, report)
}

// finish stamps the plan with the report outcome and returns the report.
func (v *Validator) finish(p *Plan, report *Report) *Report {
	p.Issues = report.Issues
	p.Warnings = report.Warnings
	p.Stats = report.Stats
	if report.Valid() {
		p.Status = types.PlanStatusValidated
	} else {
		p.Status = types.PlanStatusInvalid
		p.ContentHash = ""
		p.StructuralHash = ""
	}
	return report
}

// checkDuplicateIDs reports one issue per duplicated task id.
func (v *Validator) checkDuplicateIDs(p *Plan) []Issue {
	seen := make(map[string]int, len(p.Tasks))
	for _, t := range p.Tasks {
		seen[t.TaskID]++
	}

	var dupes []string
	for id, count := range seen {
		if count > 1 {
			dupes = append(dupes, id)
		}
	}
	if len(dupes) == 0 {
		return nil
	}
	sort.Strings(dupes)

	issues := make([]Issue, 0, len(dupes))
	for _, id := range dupes {
		issues = append(issues, Issue{
			Code:    IssueDuplicateTaskID,
			Message: fmt.Sprintf("task id %q appears %d times", id, seen[id]),
			TaskIDs: []string{id},
		})
	}
	return issues
}

// checkFanOut reports one issue per task whose direct dependent count
// exceeds the ceiling, in task-id order.
func (v *Validator) checkFanOut(g *GraphData, maxOutDegree int) []Issue {
	var offenders []string
	for id, dependents := range g.Adjacency {
		if len(dependents) > maxOutDegree {
			offenders = append(offenders, id)
		}
	}
	if len(offenders) == 0 {
		return nil
	}
	sort.Strings(offenders)

	issues := make([]Issue, 0, len(offenders))
	for _, id := range offenders {
		issues = append(issues, Issue{
			Code:    IssueFanOutExceeded,
			Message: fmt.Sprintf("task %q has %d dependents, limit is %d", id, len(g.Adjacency[id]), maxOutDegree),
			TaskIDs: []string{id},
		})
	}
	return issues
}

// Warning heuristics. Thresholds are intentionally loose: warnings flag
// suspicious shapes for a human, they never block execution.
const (
	rootDensityThreshold     = 0.5
	rootDensityMinTasks      = 4
	uniformPriorityMinTasks  = 3
	highRiskDensityThreshold = 0.5
)

// collectWarnings runs the heuristic checks in a fixed order.
func (v *Validator) collectWarnings(p *Plan, g *GraphData) []Warning {
	var warnings []Warning

	// Root density: too many entry points for the plan size.
	roots := g.Roots()
	if len(p.Tasks) >= rootDensityMinTasks &&
		float64(len(roots))/float64(len(p.Tasks)) > rootDensityThreshold {
		warnings = append(warnings, Warning{
			Code: WarnRootDensity,
			Message: fmt.Sprintf("%d of %d tasks have no dependencies; the plan may be missing ordering",
				len(roots), len(p.Tasks)),
			TaskIDs: roots,
		})
	}

	// Orphans: tasks with neither dependencies nor dependents.
	if len(p.Tasks) > 1 {
		var orphans []string
		for id := range g.Tasks {
			if g.InDegree[id] == 0 && len(g.Adjacency[id]) == 0 {
				orphans = append(orphans, id)
			}
		}
		if len(orphans) > 0 {
			sort.Strings(orphans)
			warnings = append(warnings, Warning{
				Code:    WarnOrphanTasks,
				Message: fmt.Sprintf("%d task(s) are connected to nothing else in the plan", len(orphans)),
				TaskIDs: orphans,
			})
		}
	}

	// Uniform priority across the whole plan.
	if len(p.Tasks) >= uniformPriorityMinTasks {
		uniform := true
		for _, t := range p.Tasks[1:] {
			if t.Priority != p.Tasks[0].Priority {
				uniform = false
				break
			}
		}
		if uniform {
			warnings = append(warnings, Warning{
				Code:    WarnUniformPriority,
				Message: fmt.Sprintf("all %d tasks share priority %d", len(p.Tasks), p.Tasks[0].Priority),
			})
		}
	}

	// High-risk density.
	highRisk := 0
	var highRiskIDs []string
	for _, t := range p.Tasks {
		if t.RiskLevel == types.RiskLevelHigh || t.RiskLevel == types.RiskLevelCritical {
			highRisk++
			highRiskIDs = append(highRiskIDs, t.TaskID)
		}
	}
	if float64(highRisk)/float64(len(p.Tasks)) > highRiskDensityThreshold {
		sort.Strings(highRiskIDs)
		warnings = append(warnings, Warning{
			Code:    WarnHighRiskDensity,
			Message: fmt.Sprintf("%d of %d tasks are high or critical risk", highRisk, len(p.Tasks)),
			TaskIDs: highRiskIDs,
		})
	}

	return warnings
}

// computeStats builds the aggregate metrics for a clean plan.
func (v *Validator) computeStats(p *Plan, g *GraphData, depth int) *Stats {
	stats := &Stats{
		TaskCount: len(p.Tasks),
		Depth:     depth,
		RootCount: len(g.Roots()),
		LeafCount: len(g.Leaves()),
	}

	var riskSum float64
	for _, t := range p.Tasks {
		riskSum += t.RiskLevel.Weight()
	}
	stats.RiskScore = riskSum / float64(len(p.Tasks))

	first := true
	total := 0
	for _, dependents := range g.Adjacency {
		n := len(dependents)
		total += n
		if first || n < stats.FanOutMin {
			stats.FanOutMin = n
		}
		if n > stats.FanOutMax {
			stats.FanOutMax = n
		}
		first = false
	}
	stats.FanOutAvg = float64(total) / float64(len(p.Tasks))

	return stats
}
