package mission

import (
	"github.com/zenithsec/helmsman/internal/resilience"
	"github.com/zenithsec/helmsman/internal/types"
)

// ExecutionContext carries the per-run execution parameters. The
// cancellation channel is the context.Context passed to Execute;
// nothing here is mutated during the run.
type ExecutionContext struct {
	// MissionID is the mission this execution belongs to.
	MissionID types.ID

	// ConcurrencyLimit bounds the worker pool. Non-positive values fall
	// back to the orchestrator default.
	ConcurrencyLimit int

	// RetryPolicy governs transient task failures. A zero policy falls
	// back to the orchestrator default.
	RetryPolicy resilience.RetryPolicy
}
