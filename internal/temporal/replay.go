// Package temporal implements the Temporal Event Store (§4.5): an
// append-only event log, a replay engine folding events into a BaseMemory,
// snapshot-accelerated reconstruction, and cross-agent causal traversal.
// Grounded on the original temporal crate's golden fixture tests
// (replay_events(events, shell) folding pattern) and epistemic tests
// (event/actor shapes).
package temporal

import (
	"encoding/json"
	"strconv"

	"cortexstore/internal/errs"
	"cortexstore/internal/model"
)

// Shell returns a minimally populated BaseMemory for id, the starting point
// replay folds events onto when no snapshot exists.
func Shell(id string) model.BaseMemory {
	return model.BaseMemory{ID: id, MemoryType: model.MemoryEpisodic}
}

// Replay folds an ordered event list onto shell, in order, returning the
// resulting state. Events must already be sorted by (recorded_at, event_id)
// ascending, as ListEvents returns them. Unknown event types or a
// schema_version newer than this reader supports abort replay with a
// structured error rather than silently skipping or corrupting state.
func Replay(events []model.MemoryEvent, shell model.BaseMemory) (model.BaseMemory, error) {
	state := shell
	for _, e := range events {
		var err error
		state, err = applyEvent(state, e)
		if err != nil {
			return model.BaseMemory{}, err
		}
	}
	return state, nil
}

func applyEvent(state model.BaseMemory, e model.MemoryEvent) (model.BaseMemory, error) {
	const op = "temporal.Replay"

	if e.SchemaVersion > model.CurrentSchemaVersion {
		return model.BaseMemory{}, errs.New(errs.KindSchemaVersionTooNew, op).
			WithField("event_schema_version", strconv.Itoa(e.SchemaVersion)).
			WithField("max_supported", strconv.Itoa(model.CurrentSchemaVersion))
	}

	switch e.EventType {
	case model.EventCreated:
		var d createdDelta
		if err := json.Unmarshal(e.Delta, &d); err != nil {
			return model.BaseMemory{}, errs.Deserialization(op, "delta", err.Error())
		}
		return d, nil

	case model.EventContentUpdated:
		var d contentUpdatedDelta
		if err := json.Unmarshal(e.Delta, &d); err != nil {
			return model.BaseMemory{}, errs.Deserialization(op, "delta", err.Error())
		}
		if len(d.Content) > 0 {
			state.Content = []byte(d.Content)
		}
		if d.Summary != nil {
			state.Summary = *d.Summary
		}
		if d.ContentHash != "" {
			state.ContentHash = d.ContentHash
		}
		return state, nil

	case model.EventTagsModified:
		var d tagsModifiedDelta
		if err := json.Unmarshal(e.Delta, &d); err != nil {
			return model.BaseMemory{}, errs.Deserialization(op, "delta", err.Error())
		}
		state.Tags = d.Tags
		return state, nil

	case model.EventConfidenceChanged:
		var d confidenceChangedDelta
		if err := json.Unmarshal(e.Delta, &d); err != nil {
			return model.BaseMemory{}, errs.Deserialization(op, "delta", err.Error())
		}
		state.Confidence = d.Confidence
		return state, nil

	case model.EventImportanceChanged:
		var d importanceChangedDelta
		if err := json.Unmarshal(e.Delta, &d); err != nil {
			return model.BaseMemory{}, errs.Deserialization(op, "delta", err.Error())
		}
		state.Importance = d.Importance
		return state, nil

	case model.EventArchived:
		state.Archived = true
		return state, nil

	case model.EventRestored:
		state.Archived = false
		return state, nil

	case model.EventLinkAdded:
		var d linkDelta
		if err := json.Unmarshal(e.Delta, &d); err != nil {
			return model.BaseMemory{}, errs.Deserialization(op, "delta", err.Error())
		}
		applyLinkChange(&state, d, true)
		return state, nil

	case model.EventLinkRemoved:
		var d linkDelta
		if err := json.Unmarshal(e.Delta, &d); err != nil {
			return model.BaseMemory{}, errs.Deserialization(op, "delta", err.Error())
		}
		applyLinkChange(&state, d, false)
		return state, nil

	case model.EventSuperseded:
		var d supersededDelta
		if err := json.Unmarshal(e.Delta, &d); err != nil {
			return model.BaseMemory{}, errs.Deserialization(op, "delta", err.Error())
		}
		state.SupersededBy = d.SupersededBy
		return state, nil

	case model.EventStatusChanged:
		// Epistemic status lives outside BaseMemory (internal/epistemic);
		// this event marks the transition in the log without mutating state.
		return state, nil

	default:
		return model.BaseMemory{}, errs.New(errs.KindUnknownEventType, op).WithField("event_type", string(e.EventType))
	}
}

func applyLinkChange(state *model.BaseMemory, d linkDelta, add bool) {
	var target *[]string
	switch d.Kind {
	case "pattern":
		target = &state.LinkedPatterns
	case "constraint":
		target = &state.LinkedConstraints
	case "file":
		target = &state.LinkedFiles
	case "function":
		target = &state.LinkedFunctions
	default:
		return
	}
	if add {
		*target = addLink(*target, d.ID)
	} else {
		*target = removeLink(*target, d.ID)
	}
}

