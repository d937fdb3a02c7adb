package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	homeDir := getDefaultHomeDir()

	return &Config{
		Core: CoreConfig{
			HomeDir: homeDir,
			Debug:   false,
		},
		Planner: PlannerConfig{
			Whitelist: nil,
			// Matches the initial reliability so freshly discovered
			// planners are selectable before any outcome history
			// exists. Raise it once planners have a track record.
			MinReliability:      0.1,
			InitialReliability:  0.1,
			QuarantineThreshold: 3,
			TelemetryCapacity:   64,
			ConstructTimeout:    10 * time.Second,
		},
		Validation: ValidationConfig{
			MaxTasks:     100,
			MaxDepth:     20,
			MaxOutDegree: 10,
		},
		Execution: ExecutionConfig{
			ConcurrencyLimit: 4,
			TaskTimeout:      2 * time.Minute,
		},
		Resilience: ResilienceConfig{
			MaxRetries:       3,
			InitialDelay:     500 * time.Millisecond,
			MaxDelay:         30 * time.Second,
			FailureThreshold: 5,
			CoolDown:         30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:          "",
			Model:             "gpt-4o-mini",
			MaxTokens:         4096,
			Temperature:       0.2,
			RequestsPerMinute: 60,
		},
		Events: EventsConfig{
			StorePath:  filepath.Join(homeDir, "events.db"),
			BufferSize: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// getDefaultHomeDir returns the default helmsman home directory,
// falling back to a temporary directory if user home cannot be
// determined.
func getDefaultHomeDir() string {
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".helmsman")
	}
	return filepath.Join(userHome, ".helmsman")
}
