package planner

import (
	"time"

	"github.com/zenithsec/helmsman/internal/types"
)

// Record is the registry entry for one planner. Created at discovery
// with metadata only; mutated by outcome feedback; never deleted, only
// quarantined and reactivated.
type Record struct {
	// Name is the planner name, unique within the factory.
	Name string `json:"name"`

	// Capabilities are the advertised capability tags.
	Capabilities []string `json:"capabilities"`

	// HotspotAware marks planners eligible for the deep-context boost.
	HotspotAware bool `json:"hotspot_aware"`

	// State tracks the planner through
	// registered -> active -> quarantined -> (manual) active.
	State types.PlannerState `json:"state"`

	// Reliability is the exponential-moving-average success estimate,
	// always in [0, 1].
	Reliability float64 `json:"reliability"`

	// ConsecutiveFailures counts failures since the last success.
	// Reaching the quarantine threshold quarantines the record.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// LastError describes the most recent construction or outcome
	// failure.
	LastError string `json:"last_error,omitempty"`

	// RegisteredAt is when discovery created the record.
	RegisteredAt time.Time `json:"registered_at"`
}

// Selectable reports whether the record may participate in selection
// against the given reliability floor.
func (r *Record) Selectable(minReliability float64) bool {
	if r.State == types.PlannerStateQuarantined {
		return false
	}
	return r.Reliability >= minReliability
}

// clone returns a copy safe to hand out without the factory lock.
func (r *Record) clone() *Record {
	c := *r
	c.Capabilities = append([]string(nil), r.Capabilities...)
	return &c
}
