package config

import (
	"time"
)

// Config is the root configuration for helmsman.
type Config struct {
	Core       CoreConfig       `mapstructure:"core" yaml:"core" validate:"required"`
	Planner    PlannerConfig    `mapstructure:"planner" yaml:"planner" validate:"required"`
	Validation ValidationConfig `mapstructure:"validation" yaml:"validation" validate:"required"`
	Execution  ExecutionConfig  `mapstructure:"execution" yaml:"execution" validate:"required"`
	Resilience ResilienceConfig `mapstructure:"resilience" yaml:"resilience"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	Events     EventsConfig     `mapstructure:"events" yaml:"events"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// CoreConfig contains core application settings.
type CoreConfig struct {
	HomeDir string `mapstructure:"home_dir" yaml:"home_dir"`
	Debug   bool   `mapstructure:"debug" yaml:"debug"`
}

// PlannerConfig governs the planner factory: the discovery whitelist,
// the reliability model, and the quarantine policy.
type PlannerConfig struct {
	// Whitelist names the planners eligible for discovery. Empty means
	// every cataloged planner.
	Whitelist []string `mapstructure:"whitelist" yaml:"whitelist"`

	MinReliability      float64       `mapstructure:"min_reliability" yaml:"min_reliability" validate:"min=0,max=1"`
	InitialReliability  float64       `mapstructure:"initial_reliability" yaml:"initial_reliability" validate:"min=0,max=1"`
	QuarantineThreshold int           `mapstructure:"quarantine_threshold" yaml:"quarantine_threshold" validate:"min=1"`
	TelemetryCapacity   int           `mapstructure:"telemetry_capacity" yaml:"telemetry_capacity" validate:"min=1"`
	ConstructTimeout    time.Duration `mapstructure:"construct_timeout" yaml:"construct_timeout" validate:"min=1ms"`
}

// ValidationConfig carries the structural ceilings applied to every
// generated plan.
type ValidationConfig struct {
	MaxTasks     int `mapstructure:"max_tasks" yaml:"max_tasks" validate:"min=1"`
	MaxDepth     int `mapstructure:"max_depth" yaml:"max_depth" validate:"min=1"`
	MaxOutDegree int `mapstructure:"max_out_degree" yaml:"max_out_degree" validate:"min=1"`
}

// ExecutionConfig governs the orchestrator.
type ExecutionConfig struct {
	ConcurrencyLimit int           `mapstructure:"concurrency_limit" yaml:"concurrency_limit" validate:"min=1,max=100"`
	TaskTimeout      time.Duration `mapstructure:"task_timeout" yaml:"task_timeout" validate:"min=1s"`
}

// ResilienceConfig holds retry and circuit-breaker settings shared by
// the execution layer.
type ResilienceConfig struct {
	MaxRetries       int           `mapstructure:"max_retries" yaml:"max_retries" validate:"min=0,max=10"`
	InitialDelay     time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay         time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	FailureThreshold int           `mapstructure:"failure_threshold" yaml:"failure_threshold" validate:"min=1"`
	CoolDown         time.Duration `mapstructure:"cool_down" yaml:"cool_down"`
}

// LLMConfig contains LLM provider configuration.
type LLMConfig struct {
	// Provider selects the backend: "openai", "anthropic", or "" to
	// disable the LLM planner.
	Provider string `mapstructure:"provider" yaml:"provider"`

	Model       string  `mapstructure:"model" yaml:"model"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" validate:"min=0,max=2"`

	// RequestsPerMinute rate-limits provider calls. Zero disables the
	// limiter.
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute" validate:"min=0"`
}

// EventsConfig controls mission event persistence.
type EventsConfig struct {
	// StorePath is the SQLite database for the event log. Empty
	// disables persistence.
	StorePath string `mapstructure:"store_path" yaml:"store_path"`

	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size" validate:"min=1"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
}
