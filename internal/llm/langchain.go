package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// LangChainProvider adapts a langchaingo model to the Provider
// interface, giving access to every backend langchaingo supports
// (OpenAI, Anthropic, Ollama, ...) behind one constructor.
type LangChainProvider struct {
	name  string
	model llms.Model
}

// NewLangChainProvider wraps a langchaingo model. The name is reported
// by Name and used as the breaker dependency key by callers.
func NewLangChainProvider(name string, model llms.Model) *LangChainProvider {
	return &LangChainProvider{name: name, model: model}
}

// Name returns the provider name.
func (p *LangChainProvider) Name() string {
	return p.name
}

// Complete sends a single-prompt completion through the wrapped model.
// The system prompt, when present, is prepended to the user prompt
// since GenerateFromSinglePrompt carries only one message.
func (p *LangChainProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	prompt := req.Prompt
	if req.SystemPrompt != "" {
		prompt = strings.TrimSpace(req.SystemPrompt) + "\n\n" + prompt
	}

	var opts []llms.CallOption
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Temperature))
	}

	content, err := llms.GenerateFromSinglePrompt(ctx, p.model, prompt, opts...)
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	return &CompletionResponse{Content: content}, nil
}
