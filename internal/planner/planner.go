// Package planner provides the pluggable planner registry: metadata-only
// discovery, deterministic reliability-weighted selection, lazy
// construction, outcome tracking with quarantine, and selection
// telemetry.
package planner

import (
	"context"
	"log/slog"

	"github.com/zenithsec/helmsman/internal/llm"
	"github.com/zenithsec/helmsman/internal/plan"
	"github.com/zenithsec/helmsman/internal/tool"
)

// Planner converts a free-text objective into a candidate plan.
// Implementations must be safe for concurrent use once constructed.
type Planner interface {
	// Name returns the unique planner name.
	Name() string

	// Capabilities returns the capability tags this planner advertises.
	Capabilities() []string

	// BuildPlan produces a draft plan for the request.
	BuildPlan(ctx context.Context, req Request) (*plan.Plan, error)
}

// Request carries everything a planner needs to produce a plan.
type Request struct {
	// Objective is the free-text goal to decompose.
	Objective string

	// RequiredCapabilities lists the capability tags the caller needs.
	RequiredCapabilities []string

	// DeepContext is the optional code/hotspot index from the external
	// indexing collaborator. Hotspot-aware planners use it to focus the
	// plan; others ignore it.
	DeepContext *DeepContext

	// Settings overrides the plan's structural ceilings when non-zero.
	Settings plan.Settings
}

// DeepContext is a distilled view of an external index: the areas of
// the target most relevant to the objective.
type DeepContext struct {
	// Hotspots lists the index entries ranked most relevant.
	Hotspots []string

	// Summary is a short prose digest of the indexed material.
	Summary string
}

// Deps are the injected collaborators planner constructors may use.
// The factory owns no I/O of its own.
type Deps struct {
	// LLM is the completion provider for LLM-backed planners.
	LLM llm.Provider

	// Tools is the registry generated tasks will execute against,
	// letting planners emit only tool names that exist.
	Tools *tool.Registry

	// Logger is the structured logger. Nil falls back to slog.Default.
	Logger *slog.Logger
}

// Builder is a catalog entry: planner metadata plus a constructor.
// Discovery registers the metadata without invoking New; construction
// is deferred until the planner is actually selected.
type Builder struct {
	// Name is the unique planner name.
	Name string

	// Capabilities are the capability tags, known without construction.
	Capabilities []string

	// HotspotAware marks planners that exploit a deep-context index and
	// earn the selection boost when one is supplied.
	HotspotAware bool

	// New constructs the planner. Called at most once per factory
	// lifetime, under the construction deadline.
	New func(ctx context.Context, deps Deps) (Planner, error)
}
