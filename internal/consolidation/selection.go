package consolidation

import (
	"time"

	"cortexstore/internal/model"
)

// MinCandidateAge is how old an episodic memory must be before it becomes
// eligible for consolidation.
const MinCandidateAge = 7 * 24 * time.Hour

// MinAccessSignal is the access count floor a candidate must clear unless
// its importance alone justifies consolidating it.
const MinAccessSignal = 2

// SelectCandidates picks episodic memories old enough and with enough
// access/importance signal to be worth consolidating (phase1_selection).
// Only MemoryEpisodic memories are ever candidates — semantic, tribal,
// core, pattern-rationale, and feedback memories are the pipeline's output
// types, not its input, so re-running selection over already-consolidated
// memories always yields an empty candidate set.
func SelectCandidates(memories []model.BaseMemory) []model.BaseMemory {
	return SelectCandidatesAt(memories, time.Now())
}

// SelectCandidatesAt is SelectCandidates with an explicit reference time,
// for deterministic testing.
func SelectCandidatesAt(memories []model.BaseMemory, now time.Time) []model.BaseMemory {
	var out []model.BaseMemory
	for _, m := range memories {
		if m.MemoryType != model.MemoryEpisodic {
			continue
		}
		if now.Sub(m.ValidTime) < MinCandidateAge {
			continue
		}
		signal := m.AccessCount >= MinAccessSignal ||
			m.Importance == model.ImportanceHigh || m.Importance == model.ImportanceCritical
		if !signal {
			continue
		}
		out = append(out, m)
	}
	return out
}
