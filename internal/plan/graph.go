package plan

import "sort"

// GraphData is the ephemeral adjacency representation of a plan,
// derived from Task.Dependencies on every validation call. It is never
// persisted and never mutated independently of the tasks it was built
// from.
type GraphData struct {
	// Adjacency maps a task id to the ids of its direct dependents,
	// sorted ascending for deterministic traversal.
	Adjacency map[string][]string

	// InDegree maps a task id to its number of direct dependencies.
	InDegree map[string]int

	// Tasks maps task ids to their task definitions.
	Tasks map[string]*Task
}

// BuildGraph derives adjacency and indegree maps from the plan's tasks.
// Dependencies that reference unknown task ids are reported as dangling
// references and excluded from the graph; the caller decides whether
// they are fatal.
func BuildGraph(p *Plan) (*GraphData, []string) {
	g := &GraphData{
		Adjacency: make(map[string][]string, len(p.Tasks)),
		InDegree:  make(map[string]int, len(p.Tasks)),
		Tasks:     make(map[string]*Task, len(p.Tasks)),
	}

	for _, t := range p.Tasks {
		g.Tasks[t.TaskID] = t
		if _, ok := g.Adjacency[t.TaskID]; !ok {
			g.Adjacency[t.TaskID] = []string{}
		}
		g.InDegree[t.TaskID] = 0
	}

	var dangling []string
	for _, t := range p.Tasks {
		for _, dep := range t.Dependencies {
			if _, ok := g.Tasks[dep]; !ok {
				dangling = append(dangling, t.TaskID+" -> "+dep)
				continue
			}
			// A dependency is an edge from the dependency to the task.
			g.Adjacency[dep] = append(g.Adjacency[dep], t.TaskID)
			g.InDegree[t.TaskID]++
		}
	}

	// Sort adjacency lists so traversal order never depends on task-list
	// order.
	for id := range g.Adjacency {
		sort.Strings(g.Adjacency[id])
	}
	sort.Strings(dangling)

	return g, dangling
}

// TopologicalSort runs Kahn's algorithm over the graph. It returns the
// sorted task ids and the set of ids that were never dequeued; a
// non-empty remainder means those nodes participate in or depend on a
// cycle. Both slices are deterministic for a given graph.
func (g *GraphData) TopologicalSort() (sorted []string, cyclic []string) {
	inDegree := make(map[string]int, len(g.InDegree))
	for id, d := range g.InDegree {
		inDegree[id] = d
	}

	var queue []string
	for id, d := range inDegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted = append(sorted, current)

		var released []string
		for _, next := range g.Adjacency[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				released = append(released, next)
			}
		}
		sort.Strings(released)
		queue = append(queue, released...)
	}

	if len(sorted) < len(g.Tasks) {
		seen := make(map[string]bool, len(sorted))
		for _, id := range sorted {
			seen[id] = true
		}
		for id := range g.Tasks {
			if !seen[id] {
				cyclic = append(cyclic, id)
			}
		}
		sort.Strings(cyclic)
	}

	return sorted, cyclic
}

// Depth returns the longest dependency chain in the graph, counted in
// tasks, by propagating depths along a topological order. The order
// must come from TopologicalSort on the same graph and must be
// complete (acyclic graph).
func (g *GraphData) Depth(topoOrder []string) int {
	if len(topoOrder) == 0 {
		return 0
	}
	depth := make(map[string]int, len(topoOrder))
	maxDepth := 1
	for _, id := range topoOrder {
		if depth[id] == 0 {
			depth[id] = 1
		}
		for _, next := range g.Adjacency[id] {
			if depth[id]+1 > depth[next] {
				depth[next] = depth[id] + 1
				if depth[next] > maxDepth {
					maxDepth = depth[next]
				}
			}
		}
	}
	return maxDepth
}

// Roots returns the task ids with no dependencies, sorted ascending.
func (g *GraphData) Roots() []string {
	var roots []string
	for id, d := range g.InDegree {
		if d == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns the task ids with no dependents, sorted ascending.
func (g *GraphData) Leaves() []string {
	var leaves []string
	for id, dependents := range g.Adjacency {
		if len(dependents) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}
