package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy determines how retry delays grow between attempts.
type BackoffStrategy string

const (
	// BackoffConstant uses the same delay for every attempt.
	BackoffConstant BackoffStrategy = "constant"

	// BackoffLinear grows the delay by InitialDelay each attempt.
	BackoffLinear BackoffStrategy = "linear"

	// BackoffExponential multiplies the delay by Multiplier each attempt,
	// capped at MaxDelay.
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryPolicy configures retry behavior for a failing operation.
type RetryPolicy struct {
	// MaxRetries is the maximum number of retries after the initial
	// attempt. Zero disables retrying.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"`

	// MaxDelay caps the delay for exponential backoff.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`

	// Multiplier is the exponential growth factor. Values below 1 are
	// treated as 2.
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`

	// BackoffStrategy selects the delay progression.
	BackoffStrategy BackoffStrategy `json:"backoff_strategy" yaml:"backoff_strategy"`

	// Jitter adds up to 25% random variation to each delay when true,
	// which avoids synchronized retry storms across workers.
	Jitter bool `json:"jitter" yaml:"jitter"`
}

// DefaultRetryPolicy returns a policy with exponential backoff and
// three retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		Multiplier:      2.0,
		BackoffStrategy: BackoffExponential,
	}
}

// Delay calculates the delay before the retry following the given
// zero-based attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	var delay time.Duration
	switch p.BackoffStrategy {
	case BackoffConstant:
		delay = p.InitialDelay
	case BackoffLinear:
		delay = p.InitialDelay + p.InitialDelay*time.Duration(attempt)
	case BackoffExponential:
		multiplier := p.Multiplier
		if multiplier < 1 {
			multiplier = 2.0
		}
		delay = time.Duration(float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt)))
	default:
		delay = p.InitialDelay
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter && delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay)/4 + 1))
	}
	return delay
}

// RetryableError marks an error as transient. Operations wrapped by
// Retry inspect the chain for this marker: errors that carry it are
// retried, everything else fails immediately.
type RetryableError struct {
	Cause error
}

// Error implements the error interface.
func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *RetryableError) Unwrap() error {
	return e.Cause
}

// Retryable wraps err as transient. A nil err returns nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Cause: err}
}

// IsRetryable reports whether err or anything in its chain is marked
// retryable. Circuit-open rejections are retryable: the dependency may
// recover before the retry budget runs out.
func IsRetryable(err error) bool {
	var re *RetryableError
	if errors.As(err, &re) {
		return true
	}
	var coe *CircuitOpenError
	return errors.As(err, &coe)
}

// Retry executes fn, retrying transient failures according to the
// policy. Between attempts it sleeps for the policy delay, aborting
// early if ctx is cancelled. The attempts counter passed to fn is
// zero-based.
//
// Non-retryable errors are returned immediately without consuming the
// retry budget.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxRetries {
			break
		}

		delay := policy.Delay(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("retries exhausted after %d attempts: %w", policy.MaxRetries+1, lastErr)
}
