package views

import (
	"context"

	"cortexstore/internal/model"
)

// ChangeKind classifies one memory's difference between two views.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeArchived ChangeKind = "archived"
	ChangeModified ChangeKind = "modified"
	// ChangeRemoved marks a memory present in view A but not yet existing as
	// of view B's timestamp (B predates the memory's creation).
	ChangeRemoved ChangeKind = "removed"
)

// MemoryChange is one memory's difference between two views.
type MemoryChange struct {
	MemoryID         string
	Kind             ChangeKind
	ConfidenceBefore float64
	ConfidenceAfter  float64
}

// ViewDiff is the result of comparing two materialized views (§4.8).
type ViewDiff struct {
	LabelA, LabelB     string
	Changes            []MemoryChange
	NetChange          int
	ConfidenceTrend    float64
	KnowledgeChurnRate float64
}

// DiffViews computes the per-memory and aggregate difference between the
// views bound to labelA and labelB. DiffViews(label, label) always returns
// an empty diff: the same view compared to itself has nothing to report.
func (e *Engine) DiffViews(ctx context.Context, labelA, labelB string) (ViewDiff, error) {
	viewA, err := e.GetView(ctx, labelA)
	if err != nil {
		return ViewDiff{}, err
	}
	viewB, err := e.GetView(ctx, labelB)
	if err != nil {
		return ViewDiff{}, err
	}

	diff := ViewDiff{LabelA: labelA, LabelB: labelB}
	diff.NetChange = len(viewB.SnapshotIDs) - len(viewA.SnapshotIDs)

	inA := toSet(viewA.SnapshotIDs)
	inB := toSet(viewB.SnapshotIDs)

	var confidenceDeltaSum float64
	var confidenceCompared int

	for id := range union(inA, inB) {
		_, presentA := inA[id]
		_, presentB := inB[id]

		switch {
		case presentA && !presentB:
			diff.Changes = append(diff.Changes, MemoryChange{MemoryID: id, Kind: ChangeRemoved})
			continue
		case !presentA && presentB:
			stateB, err := e.store.ReconstructAt(ctx, id, viewB.Timestamp)
			if err != nil {
				return ViewDiff{}, err
			}
			diff.Changes = append(diff.Changes, MemoryChange{MemoryID: id, Kind: ChangeCreated, ConfidenceAfter: stateB.Confidence})
			continue
		}

		stateA, err := e.store.ReconstructAt(ctx, id, viewA.Timestamp)
		if err != nil {
			return ViewDiff{}, err
		}
		stateB, err := e.store.ReconstructAt(ctx, id, viewB.Timestamp)
		if err != nil {
			return ViewDiff{}, err
		}

		confidenceDeltaSum += stateB.Confidence - stateA.Confidence
		confidenceCompared++

		if change, changed := classifyChange(id, stateA, stateB); changed {
			diff.Changes = append(diff.Changes, change)
		}
	}

	if confidenceCompared > 0 {
		diff.ConfidenceTrend = confidenceDeltaSum / float64(confidenceCompared)
	}
	totalConsidered := len(inA) + len(inB)
	if totalConsidered > 0 {
		diff.KnowledgeChurnRate = float64(len(diff.Changes)) / float64(totalConsidered)
	}
	return diff, nil
}

func classifyChange(id string, a, b model.BaseMemory) (MemoryChange, bool) {
	change := MemoryChange{MemoryID: id, ConfidenceBefore: a.Confidence, ConfidenceAfter: b.Confidence}

	if !a.Archived && b.Archived {
		change.Kind = ChangeArchived
		return change, true
	}

	if a.ContentHash != b.ContentHash || a.Summary != b.Summary || a.Confidence != b.Confidence ||
		a.Importance != b.Importance || !stringSliceEqual(a.Tags, b.Tags) {
		change.Kind = ChangeModified
		return change, true
	}

	return MemoryChange{}, false
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func union(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for id := range a {
		out[id] = struct{}{}
	}
	for id := range b {
		out[id] = struct{}{}
	}
	return out
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		seen[v]--
	}
	for _, n := range seen {
		if n != 0 {
			return false
		}
	}
	return true
}
