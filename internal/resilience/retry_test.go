package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Delay(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		attempt int
		want    time.Duration
	}{
		{
			name:    "constant stays flat",
			policy:  RetryPolicy{InitialDelay: 100 * time.Millisecond, BackoffStrategy: BackoffConstant},
			attempt: 5,
			want:    100 * time.Millisecond,
		},
		{
			name:    "linear grows by initial delay",
			policy:  RetryPolicy{InitialDelay: 100 * time.Millisecond, BackoffStrategy: BackoffLinear},
			attempt: 2,
			want:    300 * time.Millisecond,
		},
		{
			name:    "exponential doubles",
			policy:  RetryPolicy{InitialDelay: 100 * time.Millisecond, Multiplier: 2, BackoffStrategy: BackoffExponential},
			attempt: 3,
			want:    800 * time.Millisecond,
		},
		{
			name: "exponential respects max delay",
			policy: RetryPolicy{
				InitialDelay:    time.Second,
				MaxDelay:        2 * time.Second,
				Multiplier:      10,
				BackoffStrategy: BackoffExponential,
			},
			attempt: 4,
			want:    2 * time.Second,
		},
		{
			name:    "unknown strategy falls back to initial delay",
			policy:  RetryPolicy{InitialDelay: 250 * time.Millisecond, BackoffStrategy: "bogus"},
			attempt: 7,
			want:    250 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Delay(tt.attempt))
		})
	}
}

func TestRetryPolicy_DelayJitterStaysBounded(t *testing.T) {
	policy := RetryPolicy{
		InitialDelay:    100 * time.Millisecond,
		BackoffStrategy: BackoffConstant,
		Jitter:          true,
	}
	for i := 0; i < 50; i++ {
		d := policy.Delay(0)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffStrategy: BackoffConstant}

	calls := 0
	err := Retry(context.Background(), policy, func(ctx context.Context, attempt int) error {
		assert.Equal(t, calls, attempt)
		calls++
		if calls < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_NonRetryableFailsImmediately(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, InitialDelay: time.Millisecond, BackoffStrategy: BackoffConstant}

	terminal := errors.New("bad arguments")
	calls := 0
	err := Retry(context.Background(), policy, func(ctx context.Context, attempt int) error {
		calls++
		return terminal
	})

	require.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, calls, "non-retryable errors must not consume the retry budget")
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffStrategy: BackoffConstant}

	cause := errors.New("still down")
	calls := 0
	err := Retry(context.Background(), policy, func(ctx context.Context, attempt int) error {
		calls++
		return Retryable(cause)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "initial attempt plus MaxRetries")
	assert.ErrorIs(t, err, cause)
}

func TestRetry_ZeroRetriesSingleAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{}, func(ctx context.Context, attempt int) error {
		calls++
		return Retryable(errors.New("transient"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancellationAbortsBackoff(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 10, InitialDelay: time.Hour, BackoffStrategy: BackoffConstant}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Retry(ctx, policy, func(ctx context.Context, attempt int) error {
		return Retryable(errors.New("transient"))
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second, "cancellation must interrupt the backoff sleep")
}

func TestRetryable_NilPassthrough(t *testing.T) {
	assert.NoError(t, Retryable(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.True(t, IsRetryable(Retryable(errors.New("transient"))))
	assert.True(t, IsRetryable(&CircuitOpenError{Dependency: "llm"}))
}
