// Package llm defines the completion-provider abstraction used by
// LLM-backed planners, plus adapters for concrete backends.
package llm

import (
	"context"
)

// CompletionRequest is a single completion call to a provider.
type CompletionRequest struct {
	// SystemPrompt sets the assistant's role and constraints.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Prompt is the user-visible request body.
	Prompt string `json:"prompt"`

	// MaxTokens caps the generated output length. Zero uses the
	// provider default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls sampling randomness.
	Temperature float64 `json:"temperature,omitempty"`
}

// CompletionResponse is the provider's answer to a completion request.
type CompletionResponse struct {
	// Content is the generated text.
	Content string `json:"content"`

	// Model names the model that produced the content, when known.
	Model string `json:"model,omitempty"`
}

// Provider is the unified abstraction over LLM backends. Implementations
// must be safe for concurrent use; every blocking call takes a context
// for cancellation and deadlines.
type Provider interface {
	// Name returns the provider name (e.g. "anthropic", "openai").
	Name() string

	// Complete sends a completion request and blocks until the full
	// response arrives or the context is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
