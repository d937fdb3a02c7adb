package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Loader loads configuration from YAML files with environment variable
// interpolation.
type Loader struct {
	validator *Validator
}

// NewLoader creates a Loader backed by the standard validator.
func NewLoader() *Loader {
	return &Loader{validator: NewValidator()}
}

// Load reads and validates configuration from path. The file must
// exist.
func (l *Loader) Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setViperDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	interpolateConfig(&cfg)

	if err := l.validator.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadWithDefaults loads configuration from path, returning defaults
// when the file does not exist.
func (l *Loader) LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := l.validator.Validate(cfg); err != nil {
			return nil, fmt.Errorf("default configuration validation failed: %w", err)
		}
		return cfg, nil
	}
	return l.Load(path)
}

// setViperDefaults seeds viper with DefaultConfig so partial files
// inherit the missing keys.
func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("core.home_dir", d.Core.HomeDir)
	v.SetDefault("planner.min_reliability", d.Planner.MinReliability)
	v.SetDefault("planner.initial_reliability", d.Planner.InitialReliability)
	v.SetDefault("planner.quarantine_threshold", d.Planner.QuarantineThreshold)
	v.SetDefault("planner.telemetry_capacity", d.Planner.TelemetryCapacity)
	v.SetDefault("planner.construct_timeout", d.Planner.ConstructTimeout)
	v.SetDefault("validation.max_tasks", d.Validation.MaxTasks)
	v.SetDefault("validation.max_depth", d.Validation.MaxDepth)
	v.SetDefault("validation.max_out_degree", d.Validation.MaxOutDegree)
	v.SetDefault("execution.concurrency_limit", d.Execution.ConcurrencyLimit)
	v.SetDefault("execution.task_timeout", d.Execution.TaskTimeout)
	v.SetDefault("resilience.max_retries", d.Resilience.MaxRetries)
	v.SetDefault("resilience.initial_delay", d.Resilience.InitialDelay)
	v.SetDefault("resilience.max_delay", d.Resilience.MaxDelay)
	v.SetDefault("resilience.failure_threshold", d.Resilience.FailureThreshold)
	v.SetDefault("resilience.cool_down", d.Resilience.CoolDown)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.requests_per_minute", d.LLM.RequestsPerMinute)
	v.SetDefault("events.store_path", d.Events.StorePath)
	v.SetDefault("events.buffer_size", d.Events.BufferSize)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolateConfig replaces ${VAR_NAME} references in string fields
// that commonly carry secrets or machine-specific paths.
func interpolateConfig(cfg *Config) {
	cfg.Core.HomeDir = interpolateString(cfg.Core.HomeDir)
	cfg.Events.StorePath = interpolateString(cfg.Events.StorePath)
	cfg.LLM.Provider = interpolateString(cfg.LLM.Provider)
	cfg.LLM.Model = interpolateString(cfg.LLM.Model)
}

// interpolateString replaces ${VAR_NAME} with environment variable
// values, leaving unset references untouched.
func interpolateString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}
