// Package tool defines the external tool abstraction tasks execute
// against, an in-memory registry, and an executor that applies
// per-call timeouts and failure classification.
package tool

import (
	"context"
)

// Tool is an atomic, stateless operation a task can invoke. Tools are
// the execution core's only side-effect channel besides events.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this
	// tool does.
	Description() string

	// Execute runs the tool. The context carries cancellation and the
	// per-call deadline. Arguments and results are free-form maps; the
	// tool validates its own argument schema.
	Execute(ctx context.Context, args map[string]any) (map[string]any, error)
}
