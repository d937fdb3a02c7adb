package tool

import (
	"context"
	"fmt"
	"time"
)

// EchoTool returns its arguments unchanged. Used by the CLI demo flow
// and as a harmless default target for generated plans.
type EchoTool struct{}

// Name returns "echo".
func (t *EchoTool) Name() string { return "echo" }

// Description describes the tool.
func (t *EchoTool) Description() string { return "returns its arguments unchanged" }

// Execute copies args into the result.
func (t *EchoTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	result := make(map[string]any, len(args))
	for k, v := range args {
		result[k] = v
	}
	return result, nil
}

// SleepTool pauses for the requested duration, respecting cancellation.
// Useful for exercising timeouts and cancellation in integration flows.
type SleepTool struct{}

// Name returns "sleep".
func (t *SleepTool) Name() string { return "sleep" }

// Description describes the tool.
func (t *SleepTool) Description() string { return "sleeps for the duration given in the 'duration' argument" }

// Execute sleeps for args["duration"] (a Go duration string).
func (t *SleepTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	raw, ok := args["duration"].(string)
	if !ok {
		return nil, NewInvalidArgsError(t.Name(), "missing or non-string 'duration' argument")
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return nil, NewInvalidArgsError(t.Name(), fmt.Sprintf("invalid duration %q", raw))
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(d):
	}
	return map[string]any{"slept": raw}, nil
}

// RegisterBuiltins registers the built-in tools on the registry.
func RegisterBuiltins(r *Registry) error {
	for _, t := range []Tool{&EchoTool{}, &SleepTool{}} {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
