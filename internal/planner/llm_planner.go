package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zenithsec/helmsman/internal/llm"
	"github.com/zenithsec/helmsman/internal/plan"
	"github.com/zenithsec/helmsman/internal/tool"
	"github.com/zenithsec/helmsman/internal/types"
)

const llmPlannerSystemPrompt = `You are a mission planner. Decompose the objective into a JSON array of tasks.
Each task is an object with fields:
  task_id       string, short kebab-case identifier, unique
  description   string
  dependencies  array of task_id strings that must finish first
  priority      integer, higher runs earlier among ready tasks
  risk_level    one of "low", "medium", "high", "critical"
  tool_name     one of the available tools
  tool_args     object of arguments for the tool
Return ONLY the JSON array, no prose, no markdown fences.`

// LLMPlanner generates plans by prompting a completion provider for a
// JSON task array. It is hotspot-aware: deep-context hotspots are
// folded into the prompt so the model plans around them.
type LLMPlanner struct {
	provider llm.Provider
	tools    *tool.Registry
	logger   *slog.Logger
}

// NewLLMPlanner creates an LLM-backed planner. The provider is
// required; the tool registry, when present, constrains the tool names
// the prompt offers.
func NewLLMPlanner(provider llm.Provider, tools *tool.Registry, logger *slog.Logger) (*LLMPlanner, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMPlanner{provider: provider, tools: tools, logger: logger}, nil
}

// Name returns "llm".
func (p *LLMPlanner) Name() string {
	return "llm"
}

// Capabilities returns the capability tags for the LLM planner.
func (p *LLMPlanner) Capabilities() []string {
	return []string{"decomposition", "llm", "adaptive", "hotspot_aware"}
}

// BuildPlan prompts the provider and parses the returned JSON task
// array into a draft plan.
func (p *LLMPlanner) BuildPlan(ctx context.Context, req Request) (*plan.Plan, error) {
	if req.Objective == "" {
		return nil, NewError(ErrorTypeSelection, p.Name(), "objective cannot be empty")
	}

	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: llmPlannerSystemPrompt,
		Prompt:       p.buildPrompt(req),
		MaxTokens:    4096,
	})
	if err != nil {
		return nil, fmt.Errorf("plan generation failed: %w", err)
	}

	tasks, err := p.parseTasks(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("plan generation returned unparseable output: %w", err)
	}

	result := plan.NewPlan(req.Objective, p.Name(), tasks)
	if req.Settings != (plan.Settings{}) {
		result.Settings = req.Settings
	}

	p.logger.InfoContext(ctx, "llm plan generated",
		"plan_id", result.ID,
		"tasks", len(result.Tasks),
		"provider", p.provider.Name(),
	)
	return result, nil
}

// buildPrompt assembles the user prompt from the objective, available
// tools and any deep-context hotspots.
func (p *LLMPlanner) buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n", req.Objective)

	if p.tools != nil {
		fmt.Fprintf(&b, "Available tools: %s\n", strings.Join(p.tools.Names(), ", "))
	}
	if req.DeepContext != nil {
		if req.DeepContext.Summary != "" {
			fmt.Fprintf(&b, "Context summary: %s\n", req.DeepContext.Summary)
		}
		if len(req.DeepContext.Hotspots) > 0 {
			fmt.Fprintf(&b, "Focus areas (most relevant first): %s\n",
				strings.Join(req.DeepContext.Hotspots, "; "))
		}
	}
	return b.String()
}

// taskSpec mirrors the JSON shape the prompt requests.
type taskSpec struct {
	TaskID       string         `json:"task_id"`
	Description  string         `json:"description"`
	Dependencies []string       `json:"dependencies"`
	Priority     int            `json:"priority"`
	RiskLevel    string         `json:"risk_level"`
	ToolName     string         `json:"tool_name"`
	ToolArgs     map[string]any `json:"tool_args"`
}

// parseTasks extracts the first JSON array from the model output and
// converts it into tasks. Models occasionally wrap output in markdown
// fences or prose despite instructions; extraction tolerates that.
func (p *LLMPlanner) parseTasks(content string) ([]*plan.Task, error) {
	raw := extractJSONArray(content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON array found in output")
	}

	var specs []taskSpec
	if err := json.Unmarshal([]byte(raw), &specs); err != nil {
		return nil, fmt.Errorf("invalid task JSON: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("model returned an empty task array")
	}

	tasks := make([]*plan.Task, 0, len(specs))
	for _, s := range specs {
		risk := types.RiskLevel(s.RiskLevel)
		if !risk.IsValid() {
			risk = types.RiskLevelMedium
		}
		tasks = append(tasks, &plan.Task{
			TaskID:       s.TaskID,
			Description:  s.Description,
			Dependencies: s.Dependencies,
			Priority:     s.Priority,
			RiskLevel:    risk,
			Status:       types.TaskStatusPending,
			ToolName:     s.ToolName,
			ToolArgs:     s.ToolArgs,
		})
	}
	return tasks, nil
}

// extractJSONArray returns the first top-level JSON array in the text,
// or empty if none is found.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// DefaultCatalog returns the built-in planner catalog. Constructors
// capture nothing; dependencies arrive at construction time, so
// discovery stays metadata-only.
func DefaultCatalog() []Builder {
	return []Builder{
		{
			Name:         "default",
			Capabilities: []string{"decomposition", "sequential", "deterministic"},
			New: func(ctx context.Context, deps Deps) (Planner, error) {
				return NewDefaultPlanner(deps.Logger), nil
			},
		},
		{
			Name:         "llm",
			Capabilities: []string{"decomposition", "llm", "adaptive", "hotspot_aware"},
			HotspotAware: true,
			New: func(ctx context.Context, deps Deps) (Planner, error) {
				return NewLLMPlanner(deps.LLM, deps.Tools, deps.Logger)
			},
		},
	}
}
