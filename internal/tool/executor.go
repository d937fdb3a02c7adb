package tool

import (
	"context"
	"errors"
	"time"
)

// Executor executes registered tools with a per-call timeout. The
// timeout is independent of any breaker cool-down the caller applies.
type Executor struct {
	registry *Registry
	timeout  time.Duration
}

// NewExecutor creates an executor over the registry. A non-positive
// timeout disables the per-call deadline.
func NewExecutor(registry *Registry, timeout time.Duration) *Executor {
	return &Executor{registry: registry, timeout: timeout}
}

// Execute looks up and runs the named tool. Unknown tools and invalid
// arguments fail terminally; deadline expiry and plain execution errors
// are classified transient so callers may retry.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	t, err := e.registry.Get(name)
	if err != nil {
		return nil, err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	result, err := t.Execute(ctx, args)
	if err != nil {
		var te *Error
		if errors.As(err, &te) {
			return nil, te
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Code: ErrorCodeTimeout, Tool: name, Message: "call deadline exceeded", Retryable: true, Cause: err}
		}
		return nil, NewExecutionError(name, err)
	}
	return result, nil
}
