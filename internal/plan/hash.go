package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ContentHash computes a hash over the canonicalized task set.
//
// Tasks are serialized in task-id order with their fields in a fixed
// sequence and their dependency sets sorted, so two plans with the same
// tasks hash identically regardless of task-list order. Callers key
// replanning caches on this value.
func ContentHash(p *Plan) string {
	tasks := make([]*Task, len(p.Tasks))
	copy(tasks, p.Tasks)
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].TaskID < tasks[j].TaskID })

	h := sha256.New()
	for _, t := range tasks {
		deps := make([]string, len(t.Dependencies))
		copy(deps, t.Dependencies)
		sort.Strings(deps)

		fmt.Fprintf(h, "id=%s;desc=%s;deps=%s;priority=%d;risk=%s;tool=%s;args=%s\n",
			t.TaskID,
			t.Description,
			strings.Join(deps, ","),
			t.Priority,
			t.RiskLevel,
			t.ToolName,
			canonicalArgs(t.ToolArgs),
		)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// StructuralHash computes a hash over the dependency topology only.
// Task ids are replaced by indices assigned in sorted-id order and
// edges are serialized in canonical order, so plans with the same shape
// but different payloads hash identically.
func StructuralHash(p *Plan) string {
	ids := make([]string, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		ids = append(ids, t.TaskID)
	}
	sort.Strings(ids)

	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	var edges []string
	for _, t := range p.Tasks {
		for _, dep := range t.Dependencies {
			if _, ok := index[dep]; !ok {
				continue
			}
			edges = append(edges, fmt.Sprintf("%d>%d", index[dep], index[t.TaskID]))
		}
	}
	sort.Strings(edges)

	h := sha256.New()
	fmt.Fprintf(h, "nodes=%d;edges=%s", len(ids), strings.Join(edges, ","))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalArgs serializes tool args deterministically. encoding/json
// sorts map keys, which is exactly the canonical form needed here.
func canonicalArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		// Unknown value types degrade to the fmt representation rather
		// than failing the hash.
		return fmt.Sprintf("%v", args)
	}
	return string(data)
}
