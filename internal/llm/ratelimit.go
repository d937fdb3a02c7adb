package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedProvider wraps a Provider with a token-bucket rate limiter
// so concurrent tasks cannot exceed the backend's request budget.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider wraps the provider with a limiter admitting
// requestsPerSecond sustained calls and a burst of the same size.
// A non-positive rate disables limiting.
func NewRateLimitedProvider(inner Provider, requestsPerSecond float64) *RateLimitedProvider {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return &RateLimitedProvider{inner: inner, limiter: limiter}
}

// Name returns the wrapped provider's name.
func (p *RateLimitedProvider) Name() string {
	return p.inner.Name()
}

// Complete waits for a limiter slot, then delegates to the wrapped
// provider. Waiting respects context cancellation.
func (p *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return p.inner.Complete(ctx, req)
}
