package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/zenithsec/helmsman/internal/config"
	"github.com/zenithsec/helmsman/internal/llm"
	"github.com/zenithsec/helmsman/internal/mission"
	"github.com/zenithsec/helmsman/internal/planner"
	"github.com/zenithsec/helmsman/internal/resilience"
	"github.com/zenithsec/helmsman/internal/tool"
	"github.com/zenithsec/helmsman/internal/util"
)

var (
	configFile string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "helmsman",
	Short: "Helmsman - mission planning and execution engine",
	Long: `Helmsman decomposes free-text objectives into validated task
dependency graphs and executes them with bounded concurrency, retries
and circuit breaking.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// loadConfig runs before every command, loading configuration and
// building the logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	path := configFile
	if path == "" {
		path = os.Getenv("HELMSMAN_CONFIG")
	}
	if path == "" {
		path = filepath.Join(config.DefaultConfig().Core.HomeDir, "config.yaml")
	}
	path, err := util.ExpandPath(path)
	if err != nil {
		return err
	}

	loaded, err := config.NewLoader().LoadWithDefaults(path)
	if err != nil {
		return err
	}
	cfg = loaded
	if verbose {
		cfg.Logging.Level = "debug"
	}
	logger = newLogger(cfg.Logging)
	slog.SetDefault(logger)
	return nil
}

// newLogger builds the slog logger from logging config.
func newLogger(lc config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// app bundles the wired components a command needs. Close releases the
// event store and emitter.
type app struct {
	factory      *planner.Factory
	orchestrator *mission.Orchestrator
	service      *mission.Service
	emitter      *mission.Emitter
	store        *mission.SQLiteEventStore
}

func (a *app) Close() {
	if a.emitter != nil {
		a.emitter.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// buildApp assembles the planning and execution stack from the loaded
// configuration.
func buildApp(ctx context.Context) (*app, error) {
	registry := tool.NewRegistry()
	if err := tool.RegisterBuiltins(registry); err != nil {
		return nil, err
	}
	executor := tool.NewExecutor(registry, cfg.Execution.TaskTimeout)

	provider, err := newLLMProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}

	factoryCfg := planner.DefaultFactoryConfig()
	factoryCfg.Whitelist = cfg.Planner.Whitelist
	factoryCfg.MinReliability = cfg.Planner.MinReliability
	factoryCfg.InitialReliability = cfg.Planner.InitialReliability
	factoryCfg.QuarantineThreshold = cfg.Planner.QuarantineThreshold
	factoryCfg.TelemetryCapacity = cfg.Planner.TelemetryCapacity
	factoryCfg.ConstructTimeout = cfg.Planner.ConstructTimeout

	catalog := planner.DefaultCatalog()
	if provider == nil {
		// Without a provider the LLM planner can only fail; keep it out
		// of discovery.
		catalog = filterCatalog(catalog, "llm")
	}

	factory := planner.NewFactory(factoryCfg, catalog, planner.Deps{
		LLM:    provider,
		Tools:  registry,
		Logger: logger,
	}, planner.WithLogger(logger))

	if err := factory.Discover(ctx, false); err != nil {
		return nil, err
	}

	a := &app{factory: factory}

	emitterOpts := []mission.EmitterOption{mission.WithBufferSize(cfg.Events.BufferSize)}
	if cfg.Events.StorePath != "" {
		storePath, err := util.ExpandPath(cfg.Events.StorePath)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create event store directory: %w", err)
		}
		store, err := mission.OpenSQLiteEventStore(storePath)
		if err != nil {
			return nil, err
		}
		a.store = store
		emitterOpts = append(emitterOpts, mission.WithSink(store))
	}
	a.emitter = mission.NewEmitter(emitterOpts...)

	retryPolicy := resilience.DefaultRetryPolicy()
	retryPolicy.MaxRetries = cfg.Resilience.MaxRetries
	if cfg.Resilience.InitialDelay > 0 {
		retryPolicy.InitialDelay = cfg.Resilience.InitialDelay
	}
	if cfg.Resilience.MaxDelay > 0 {
		retryPolicy.MaxDelay = cfg.Resilience.MaxDelay
	}

	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	breakerCfg.FailureThreshold = cfg.Resilience.FailureThreshold
	if cfg.Resilience.CoolDown > 0 {
		breakerCfg.CoolDown = cfg.Resilience.CoolDown
	}

	a.orchestrator = mission.NewOrchestrator(executor, a.emitter,
		mission.WithLogger(logger),
		mission.WithMaxParallel(cfg.Execution.ConcurrencyLimit),
		mission.WithRetryPolicy(retryPolicy),
		mission.WithBreaker(resilience.NewCircuitBreaker(breakerCfg)),
	)
	a.service = mission.NewService(factory, a.orchestrator, a.emitter,
		mission.WithServiceLogger(logger))
	return a, nil
}

// newLLMProvider builds the completion provider, or nil when no
// provider is configured.
func newLLMProvider(lc config.LLMConfig) (llm.Provider, error) {
	var (
		model llms.Model
		err   error
	)
	switch lc.Provider {
	case "":
		return nil, nil
	case "openai":
		model, err = openai.New(openai.WithModel(lc.Model))
	case "anthropic":
		model, err = anthropic.New(anthropic.WithModel(lc.Model))
	default:
		return nil, fmt.Errorf("unknown llm provider %q (expected openai or anthropic)", lc.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s provider: %w", lc.Provider, err)
	}

	var provider llm.Provider = llm.NewLangChainProvider(lc.Provider, model)
	if lc.RequestsPerMinute > 0 {
		provider = llm.NewRateLimitedProvider(provider, float64(lc.RequestsPerMinute)/60.0)
	}
	return provider, nil
}

// filterCatalog removes the named builder from the catalog.
func filterCatalog(catalog []planner.Builder, name string) []planner.Builder {
	out := catalog[:0]
	for _, b := range catalog {
		if b.Name != name {
			out = append(out, b)
		}
	}
	return out
}

// durationFlag formats a duration for display, trimming sub-millisecond
// noise.
func durationFlag(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(plannersCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(versionCmd)
}
