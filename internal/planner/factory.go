package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zenithsec/helmsman/internal/types"
)

// FactoryConfig holds the tunables for planner discovery and selection.
type FactoryConfig struct {
	// Whitelist names the planners eligible for registration. Empty
	// admits every catalog entry.
	Whitelist []string

	// MinReliability is the selection floor: records below it are
	// excluded outright regardless of capability match. Default: 0.25.
	MinReliability float64

	// InitialReliability seeds new records. Default: 0.1, deliberately
	// below typical floors so unproven planners must earn selection
	// through recorded outcomes or a permissive floor.
	InitialReliability float64

	// EMAAlpha is the smoothing factor for reliability updates.
	// Default: 0.3.
	EMAAlpha float64

	// QuarantineThreshold is the consecutive-failure count that
	// quarantines a planner. Default: 3.
	QuarantineThreshold int

	// TelemetryCapacity bounds the telemetry ring buffer. Default: 64.
	TelemetryCapacity int

	// ConstructTimeout bounds planner construction. Default: 10s.
	ConstructTimeout time.Duration

	// DeepContextBoost is the bounded score boost for hotspot-aware
	// planners when a deep context is supplied. Capped at 0.05.
	DeepContextBoost float64

	// DiscoveryMaxAttempts bounds the rediscovery retries when selection
	// finds no candidates. Default: 3.
	DiscoveryMaxAttempts int

	// DiscoveryBackoff is the initial rediscovery backoff, doubled per
	// attempt. Default: 100ms.
	DiscoveryBackoff time.Duration

	// DiscoveryMaxBackoff caps the rediscovery backoff. Default: 2s.
	DiscoveryMaxBackoff time.Duration
}

// DefaultFactoryConfig returns a configuration with sensible defaults.
// The whitelist is empty; callers fill it from their config surface.
func DefaultFactoryConfig() FactoryConfig {
	return FactoryConfig{
		MinReliability:       0.25,
		InitialReliability:   0.1,
		EMAAlpha:             0.3,
		QuarantineThreshold:  3,
		TelemetryCapacity:    64,
		ConstructTimeout:     10 * time.Second,
		DeepContextBoost:     0.05,
		DiscoveryMaxAttempts: 3,
		DiscoveryBackoff:     100 * time.Millisecond,
		DiscoveryMaxBackoff:  2 * time.Second,
	}
}

// maxDeepContextBoost is the hard ceiling on the deep-context boost.
const maxDeepContextBoost = 0.05

// normalize fills zero config fields with defaults and clamps bounds.
func (c FactoryConfig) normalize() FactoryConfig {
	def := DefaultFactoryConfig()
	if c.MinReliability <= 0 {
		c.MinReliability = def.MinReliability
	}
	if c.InitialReliability <= 0 {
		c.InitialReliability = def.InitialReliability
	}
	if c.EMAAlpha <= 0 || c.EMAAlpha > 1 {
		c.EMAAlpha = def.EMAAlpha
	}
	if c.QuarantineThreshold <= 0 {
		c.QuarantineThreshold = def.QuarantineThreshold
	}
	if c.TelemetryCapacity <= 0 {
		c.TelemetryCapacity = def.TelemetryCapacity
	}
	if c.ConstructTimeout <= 0 {
		c.ConstructTimeout = def.ConstructTimeout
	}
	if c.DeepContextBoost <= 0 || c.DeepContextBoost > maxDeepContextBoost {
		c.DeepContextBoost = def.DeepContextBoost
	}
	if c.DiscoveryMaxAttempts <= 0 {
		c.DiscoveryMaxAttempts = def.DiscoveryMaxAttempts
	}
	if c.DiscoveryBackoff <= 0 {
		c.DiscoveryBackoff = def.DiscoveryBackoff
	}
	if c.DiscoveryMaxBackoff <= 0 {
		c.DiscoveryMaxBackoff = def.DiscoveryMaxBackoff
	}
	return c
}

// Factory discovers, selects and lazily constructs planners.
//
// All state (records, instance cache, telemetry) is guarded by one
// coarse mutex, always acquired first; there are no per-planner locks,
// so lock ordering is trivially deadlock-free. Construction runs
// outside the lock under its own deadline so a hanging constructor
// cannot stall selection for other callers.
type Factory struct {
	config  FactoryConfig
	catalog map[string]Builder
	deps    Deps
	logger  *slog.Logger
	tracer  trace.Tracer

	mu          sync.Mutex
	records     map[string]*Record
	instances   map[string]Planner
	fingerprint string
	telemetry   *telemetryRing
}

// FactoryOption is a functional option for configuring a Factory.
type FactoryOption func(*Factory)

// WithLogger configures the factory to use the given structured logger.
func WithLogger(logger *slog.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithTracer configures the factory to emit OpenTelemetry spans for
// selection and instantiation.
func WithTracer(tracer trace.Tracer) FactoryOption {
	return func(f *Factory) {
		f.tracer = tracer
	}
}

// NewFactory creates a factory over the given catalog. Discovery does
// not run automatically; call Discover before selecting.
func NewFactory(config FactoryConfig, catalog []Builder, deps Deps, opts ...FactoryOption) *Factory {
	cfg := config.normalize()

	byName := make(map[string]Builder, len(catalog))
	for _, b := range catalog {
		byName[b.Name] = b
	}

	f := &Factory{
		config:    cfg,
		catalog:   byName,
		deps:      deps,
		logger:    slog.Default(),
		records:   make(map[string]*Record),
		instances: make(map[string]Planner),
		telemetry: newTelemetryRing(cfg.TelemetryCapacity),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Discover registers a metadata-only record for every whitelisted
// catalog entry. Planners are not constructed. Discovery is idempotent:
// it re-runs only when forced or when the whitelist fingerprint has
// changed since the last pass. Existing records keep their reliability
// and quarantine state across rediscovery.
func (f *Factory) Discover(ctx context.Context, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discoverLocked(ctx, force)
}

// discoverLocked is Discover without the lock. Must be called with mu
// held.
func (f *Factory) discoverLocked(ctx context.Context, force bool) error {
	fp := f.whitelistFingerprint()
	if !force && fp == f.fingerprint {
		return nil
	}

	// An empty whitelist admits the whole catalog.
	names := f.config.Whitelist
	if len(names) == 0 {
		names = make([]string, 0, len(f.catalog))
		for name := range f.catalog {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	registered := 0
	for _, name := range names {
		builder, ok := f.catalog[name]
		if !ok {
			f.logger.WarnContext(ctx, "whitelisted planner not in catalog", "planner", name)
			continue
		}
		if _, exists := f.records[name]; exists {
			continue
		}
		f.records[name] = &Record{
			Name:         name,
			Capabilities: append([]string(nil), builder.Capabilities...),
			HotspotAware: builder.HotspotAware,
			State:        types.PlannerStateRegistered,
			Reliability:  f.config.InitialReliability,
			RegisteredAt: time.Now(),
		}
		registered++
	}

	f.fingerprint = fp
	f.logger.InfoContext(ctx, "planner discovery complete",
		"registered", registered,
		"total", len(f.records),
	)
	return nil
}

// whitelistFingerprint hashes the sorted whitelist plus each catalog
// entry's capability set, so adding, removing or re-tagging a planner
// invalidates the previous discovery pass.
func (f *Factory) whitelistFingerprint() string {
	names := append([]string(nil), f.config.Whitelist...)
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		caps := ""
		if b, ok := f.catalog[name]; ok {
			sorted := append([]string(nil), b.Capabilities...)
			sort.Strings(sorted)
			caps = strings.Join(sorted, ",")
		}
		fmt.Fprintf(h, "%s:%s\n", name, caps)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SelectBestPlanner scores every selectable record against the request
// and returns the winning planner name.
//
// Score = capability-match ratio weighted by reliability, plus a small
// bounded boost for hotspot-aware planners when a deep context is
// supplied. Records below the reliability floor or in quarantine are
// excluded outright. Ties break deterministically on
// (score desc, reliability desc, name asc).
//
// When no record clears the floor the factory re-runs discovery a
// bounded number of times with capped exponential backoff, then fails
// with ErrorTypeNoActivePlanners.
func (f *Factory) SelectBestPlanner(ctx context.Context, req Request) (string, error) {
	if f.tracer != nil {
		var span trace.Span
		ctx, span = f.tracer.Start(ctx, "planner.select",
			trace.WithAttributes(attribute.Int("required_capabilities", len(req.RequiredCapabilities))),
		)
		defer span.End()
	}

	start := time.Now()
	backoff := f.config.DiscoveryBackoff

	for attempt := 0; ; attempt++ {
		f.mu.Lock()
		name, err := f.selectLocked(req)
		if err == nil {
			f.telemetry.append(TelemetryEntry{
				Timestamp: time.Now(),
				Duration:  time.Since(start),
				Planner:   name,
				Operation: "select",
				Outcome:   "ok",
			})
			f.mu.Unlock()
			return name, nil
		}
		if attempt >= f.config.DiscoveryMaxAttempts {
			f.telemetry.append(TelemetryEntry{
				Timestamp: time.Now(),
				Duration:  time.Since(start),
				Operation: "select",
				Outcome:   string(ErrorTypeNoActivePlanners),
			})
			f.mu.Unlock()
			return "", err
		}

		// Bounded self-heal: rediscovery may pick up whitelist changes,
		// but a permanently quarantined registry must still terminate in
		// NoActivePlanners rather than loop.
		f.logger.WarnContext(ctx, "no selectable planner, retrying discovery",
			"attempt", attempt+1,
			"backoff", backoff,
		)
		if derr := f.discoverLocked(ctx, true); derr != nil {
			f.mu.Unlock()
			return "", derr
		}
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > f.config.DiscoveryMaxBackoff {
			backoff = f.config.DiscoveryMaxBackoff
		}
	}
}

// candidate pairs a record with its computed score for sorting.
type candidate struct {
	name        string
	score       float64
	reliability float64
}

// selectLocked performs one scoring pass. Must be called with mu held.
func (f *Factory) selectLocked(req Request) (string, error) {
	if len(f.records) == 0 {
		return "", NewError(ErrorTypeNoActivePlanners, "", "no planners registered")
	}

	var candidates []candidate
	for name, rec := range f.records {
		if !rec.Selectable(f.config.MinReliability) {
			continue
		}
		score := f.capabilityMatch(rec.Capabilities, req.RequiredCapabilities) * rec.Reliability
		if req.DeepContext != nil && rec.HotspotAware {
			score += f.config.DeepContextBoost
		}
		candidates = append(candidates, candidate{
			name:        name,
			score:       score,
			reliability: rec.Reliability,
		})
	}

	if len(candidates) == 0 {
		return "", NewError(ErrorTypeNoActivePlanners, "",
			fmt.Sprintf("no planner clears the reliability floor %.2f", f.config.MinReliability))
	}

	// Deterministic tie-break: score desc, reliability desc, name asc.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].reliability != candidates[j].reliability {
			return candidates[i].reliability > candidates[j].reliability
		}
		return candidates[i].name < candidates[j].name
	})

	return candidates[0].name, nil
}

// capabilityMatch returns the fraction of required capabilities the
// planner advertises. No requirements means a full match.
func (f *Factory) capabilityMatch(have, required []string) float64 {
	if len(required) == 0 {
		return 1.0
	}
	haveSet := make(map[string]bool, len(have))
	for _, c := range have {
		haveSet[c] = true
	}
	matched := 0
	for _, c := range required {
		if haveSet[c] {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

// Instantiate constructs the named planner, caching the instance for
// the factory lifetime. Construction failures are recorded on the
// planner's record and isolated there: other planners are unaffected.
func (f *Factory) Instantiate(ctx context.Context, name string) (Planner, error) {
	if f.tracer != nil {
		var span trace.Span
		ctx, span = f.tracer.Start(ctx, "planner.instantiate",
			trace.WithAttributes(attribute.String("planner", name)),
		)
		defer span.End()
	}

	start := time.Now()

	f.mu.Lock()
	rec, ok := f.records[name]
	if !ok {
		f.mu.Unlock()
		return nil, NewError(ErrorTypeNotFound, name, "planner is not registered")
	}
	if rec.State == types.PlannerStateQuarantined {
		f.mu.Unlock()
		return nil, NewError(ErrorTypeQuarantined, name, "planner is quarantined")
	}
	if inst, cached := f.instances[name]; cached {
		f.mu.Unlock()
		return inst, nil
	}
	builder, ok := f.catalog[name]
	timeout := f.config.ConstructTimeout
	deps := f.deps
	f.mu.Unlock()

	if !ok {
		return nil, NewError(ErrorTypeNotFound, name, "planner has no catalog entry")
	}

	inst, cerr := construct(ctx, builder, deps, timeout)

	f.mu.Lock()
	defer f.mu.Unlock()

	outcome := "ok"
	if cerr != nil {
		outcome = string(cerr.Type)
		rec.LastError = cerr.Error()
	}
	f.telemetry.append(TelemetryEntry{
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Planner:   name,
		Operation: "instantiate",
		Outcome:   outcome,
	})
	if cerr != nil {
		return nil, cerr
	}

	// A concurrent caller may have constructed the planner while this
	// one was outside the lock; keep the first instance.
	if existing, cached := f.instances[name]; cached {
		return existing, nil
	}
	f.instances[name] = inst
	rec.State = types.PlannerStateActive
	rec.LastError = ""
	return inst, nil
}

// construct invokes the builder under a deadline. A constructor that
// outlives the deadline is abandoned; its result is discarded.
func construct(ctx context.Context, builder Builder, deps Deps, timeout time.Duration) (Planner, *Error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		planner Planner
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("constructor panicked: %v", r)}
			}
		}()
		p, err := builder.New(cctx, deps)
		done <- outcome{planner: p, err: err}
	}()

	select {
	case <-cctx.Done():
		if cctx.Err() == context.DeadlineExceeded {
			return nil, NewError(ErrorTypeConstructTimeout, builder.Name,
				fmt.Sprintf("construction exceeded %s", timeout))
		}
		return nil, WrapError(ErrorTypeConstruct, builder.Name, "construction cancelled", cctx.Err())
	case out := <-done:
		if out.err != nil {
			return nil, WrapError(ErrorTypeConstruct, builder.Name, "construction failed", out.err)
		}
		return out.planner, nil
	}
}

// RecordOutcome feeds a planning outcome back into the planner's
// reliability score via an exponential moving average. Reaching the
// consecutive-failure threshold quarantines the planner until Reactivate.
func (f *Factory) RecordOutcome(name string, success bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[name]
	if !ok {
		return NewError(ErrorTypeNotFound, name, "planner is not registered")
	}

	value := 0.0
	if success {
		value = 1.0
	}
	rec.Reliability = f.config.EMAAlpha*value + (1-f.config.EMAAlpha)*rec.Reliability
	if rec.Reliability < 0 {
		rec.Reliability = 0
	}
	if rec.Reliability > 1 {
		rec.Reliability = 1
	}

	if success {
		rec.ConsecutiveFailures = 0
		return nil
	}

	rec.ConsecutiveFailures++
	if rec.ConsecutiveFailures >= f.config.QuarantineThreshold &&
		rec.State != types.PlannerStateQuarantined {
		rec.State = types.PlannerStateQuarantined
		f.logger.Warn("planner quarantined",
			"planner", name,
			"consecutive_failures", rec.ConsecutiveFailures,
			"reliability", rec.Reliability,
		)
	}
	return nil
}

// Reactivate manually returns a quarantined planner to active state and
// clears its failure streak. Reliability is preserved: a reactivated
// planner still has to earn its score back.
func (f *Factory) Reactivate(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[name]
	if !ok {
		return NewError(ErrorTypeNotFound, name, "planner is not registered")
	}
	rec.State = types.PlannerStateActive
	rec.ConsecutiveFailures = 0
	rec.LastError = ""
	return nil
}

// Record returns a copy of the named planner's registry record.
func (f *Factory) Record(name string) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[name]
	if !ok {
		return nil, NewError(ErrorTypeNotFound, name, "planner is not registered")
	}
	return rec.clone(), nil
}

// Records returns copies of all registry records sorted by name.
func (f *Factory) Records() []*Record {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*Record, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Telemetry returns the buffered telemetry entries oldest-first.
func (f *Factory) Telemetry() []TelemetryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.telemetry.snapshot()
}
