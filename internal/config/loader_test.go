package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_LoadWithDefaults_MissingFile(t *testing.T) {
	loader := NewLoader()

	cfg, err := loader.LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.InEpsilon(t, 0.1, cfg.Planner.MinReliability, 1e-9)
	assert.Equal(t, 4, cfg.Execution.ConcurrencyLimit)
	assert.Equal(t, 3, cfg.Resilience.MaxRetries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoader_Load_MissingFileFails(t *testing.T) {
	loader := NewLoader()

	_, err := loader.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoader_Load_PartialFileInheritsDefaults(t *testing.T) {
	path := writeConfigFile(t, `
planner:
  min_reliability: 0.4
logging:
  level: debug
`)
	loader := NewLoader()

	cfg, err := loader.Load(path)
	require.NoError(t, err)

	assert.InEpsilon(t, 0.4, cfg.Planner.MinReliability, 1e-9)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, 100, cfg.Validation.MaxTasks)
	assert.Equal(t, 4, cfg.Execution.ConcurrencyLimit)
	assert.Equal(t, 2*time.Minute, cfg.Execution.TaskTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Resilience.InitialDelay)
}

func TestLoader_Load_DurationsParseFromStrings(t *testing.T) {
	path := writeConfigFile(t, `
planner:
  construct_timeout: 3s
execution:
  task_timeout: 90s
resilience:
  initial_delay: 250ms
  max_delay: 10s
`)
	loader := NewLoader()

	cfg, err := loader.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Planner.ConstructTimeout)
	assert.Equal(t, 90*time.Second, cfg.Execution.TaskTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Resilience.InitialDelay)
	assert.Equal(t, 10*time.Second, cfg.Resilience.MaxDelay)
}

func TestLoader_Load_EnvInterpolation(t *testing.T) {
	t.Setenv("HELMSMAN_TEST_MODEL", "gpt-4o")
	t.Setenv("HELMSMAN_TEST_DATA", "/var/lib/helmsman")

	path := writeConfigFile(t, `
llm:
  model: ${HELMSMAN_TEST_MODEL}
events:
  store_path: ${HELMSMAN_TEST_DATA}/events.db
core:
  home_dir: ${HELMSMAN_TEST_UNSET}/home
`)
	loader := NewLoader()

	cfg, err := loader.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "/var/lib/helmsman/events.db", cfg.Events.StorePath)
	// Unset references are left untouched rather than blanked.
	assert.Equal(t, "${HELMSMAN_TEST_UNSET}/home", cfg.Core.HomeDir)
}

func TestLoader_Load_InvalidLoggingLevel(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: verbose
`)
	loader := NewLoader()

	_, err := loader.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level must be one of")
}

func TestLoader_Load_FieldRangeViolation(t *testing.T) {
	path := writeConfigFile(t, `
execution:
  concurrency_limit: 0
`)
	loader := NewLoader()

	_, err := loader.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution.concurrency_limit must be at least 1")
}

func TestLoader_Load_MaxDelayBelowInitialDelay(t *testing.T) {
	path := writeConfigFile(t, `
resilience:
  initial_delay: 10s
  max_delay: 1s
`)
	loader := NewLoader()

	_, err := loader.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resilience.max_delay must be at least resilience.initial_delay")
}

func TestValidator_NilConfig(t *testing.T) {
	assert.Error(t, NewValidator().Validate(nil))
}

func TestDefaultConfig_Validates(t *testing.T) {
	require.NoError(t, NewValidator().Validate(DefaultConfig()))
}
