package planner

import "time"

// TelemetryEntry records one selection or instantiation event.
// Telemetry is observational only: nothing here feeds back into
// scoring beyond the reliability score the factory already tracks.
type TelemetryEntry struct {
	// Timestamp is when the operation completed.
	Timestamp time.Time `json:"timestamp"`

	// Duration is how long the operation took.
	Duration time.Duration `json:"duration"`

	// Planner is the planner involved, empty when none was chosen.
	Planner string `json:"planner,omitempty"`

	// Operation is "select" or "instantiate".
	Operation string `json:"operation"`

	// Outcome is "ok" or an error-type string.
	Outcome string `json:"outcome"`
}

// telemetryRing is a fixed-capacity circular buffer of telemetry
// entries with oldest-first eviction. Not safe for concurrent use on
// its own; the factory serializes access under its lock.
type telemetryRing struct {
	entries []TelemetryEntry
	next    int
	full    bool
}

// newTelemetryRing creates a ring with the given capacity. Capacities
// below one are treated as one.
func newTelemetryRing(capacity int) *telemetryRing {
	if capacity < 1 {
		capacity = 1
	}
	return &telemetryRing{entries: make([]TelemetryEntry, capacity)}
}

// append adds an entry, evicting the oldest when full.
func (t *telemetryRing) append(e TelemetryEntry) {
	t.entries[t.next] = e
	t.next = (t.next + 1) % len(t.entries)
	if t.next == 0 {
		t.full = true
	}
}

// snapshot returns the buffered entries oldest-first.
func (t *telemetryRing) snapshot() []TelemetryEntry {
	if !t.full {
		out := make([]TelemetryEntry, t.next)
		copy(out, t.entries[:t.next])
		return out
	}
	out := make([]TelemetryEntry, 0, len(t.entries))
	out = append(out, t.entries[t.next:]...)
	out = append(out, t.entries[:t.next]...)
	return out
}

// len returns the number of buffered entries.
func (t *telemetryRing) len() int {
	if t.full {
		return len(t.entries)
	}
	return t.next
}
