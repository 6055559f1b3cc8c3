// Package epistemic implements the epistemic status state machine (§4.6):
// a closed four-state DAG (Conjecture → Provisional → Verified → Stale) and
// two confidence aggregation strategies. Grounded on the original temporal
// crate's epistemic tests (TTD2-01..15, TTD2-Extra), which specify the exact
// per-state fields and the transitions that must be rejected.
package epistemic

import (
	"fmt"
	"strings"
	"time"

	"cortexstore/internal/errs"
	"cortexstore/internal/model"
)

// State names the four-state DAG's closed set.
type State string

const (
	StateConjecture  State = "conjecture"
	StateProvisional State = "provisional"
	StateVerified    State = "verified"
	StateStale       State = "stale"
)

// Status is the tagged union of epistemic states. Only the fields that
// belong to Kind are meaningful; the others are zero.
type Status struct {
	Kind State

	// Conjecture
	Source    string
	CreatedAt time.Time

	// Provisional
	EvidenceCount int
	LastValidated time.Time

	// Verified
	VerifiedBy   []string
	VerifiedAt   time.Time
	EvidenceRefs []string

	// Stale
	WasVerifiedAt       time.Time
	StalenessDetectedAt time.Time
	Reason              string
}

// actorLabel renders an actor as "kind:name", the Source format a freshly
// created Conjecture records.
func actorLabel(actor model.EventActor, name string) string {
	return fmt.Sprintf("%s:%s", strings.ToLower(string(actor)), name)
}

// DetermineInitialStatus returns the Conjecture every new memory starts in,
// attributed to the actor that created it.
func DetermineInitialStatus(actor model.EventActor, actorName string, now time.Time) Status {
	return Status{Kind: StateConjecture, Source: actorLabel(actor, actorName), CreatedAt: now}
}

// PromoteToProvisional transitions Conjecture → Provisional. Any other
// source state is rejected.
func PromoteToProvisional(s Status, evidenceCount int, now time.Time) (Status, error) {
	if s.Kind != StateConjecture {
		return Status{}, errs.InvalidTransition("epistemic.PromoteToProvisional", string(s.Kind), string(StateProvisional))
	}
	return Status{Kind: StateProvisional, EvidenceCount: evidenceCount, LastValidated: now}, nil
}

// PromoteToVerified transitions Provisional → Verified. Any other source
// state (including re-verifying from Stale) is rejected.
func PromoteToVerified(s Status, verifiedBy, evidenceRefs []string, now time.Time) (Status, error) {
	if s.Kind != StateProvisional {
		return Status{}, errs.InvalidTransition("epistemic.PromoteToVerified", string(s.Kind), string(StateVerified))
	}
	return Status{Kind: StateVerified, VerifiedBy: verifiedBy, VerifiedAt: now, EvidenceRefs: evidenceRefs}, nil
}

// DemoteToStale transitions Verified → Stale. Any other source state is
// rejected.
func DemoteToStale(s Status, reason string, now time.Time) (Status, error) {
	if s.Kind != StateVerified {
		return Status{}, errs.InvalidTransition("epistemic.DemoteToStale", string(s.Kind), string(StateStale))
	}
	return Status{Kind: StateStale, WasVerifiedAt: s.VerifiedAt, StalenessDetectedAt: now, Reason: reason}, nil
}

// AggregationStrategy selects how a pattern's evidence confidence values
// combine into one score.
type AggregationStrategy string

const (
	// WeightedAverage is the arithmetic mean of the evidence values (every
	// piece of evidence weighted equally; §4.6 leaves per-evidence weights
	// as a future refinement).
	WeightedAverage AggregationStrategy = "weighted_average"
	// GodelTNorm takes the minimum: a chain of evidence is only as strong
	// as its weakest link.
	GodelTNorm AggregationStrategy = "godel_t_norm"
)

// AggregateConfidence combines evidence under strategy. An empty slice
// aggregates to 0.
func AggregateConfidence(evidence []float64, strategy AggregationStrategy) float64 {
	if len(evidence) == 0 {
		return 0
	}
	switch strategy {
	case GodelTNorm:
		min := evidence[0]
		for _, v := range evidence[1:] {
			if v < min {
				min = v
			}
		}
		return min
	default: // WeightedAverage
		var sum float64
		for _, v := range evidence {
			sum += v
		}
		return sum / float64(len(evidence))
	}
}
