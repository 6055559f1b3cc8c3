package consolidation

import "cortexstore/internal/model"

// overlapThreshold is how similar a new semantic memory's embedding must
// be to an existing one before integration treats them as the same claim.
const overlapThreshold = 0.92

// DetermineAction decides how a freshly abstracted semantic memory should
// be integrated against the semantic memories already on record
// (phase5_integration): a close embedding match against an existing
// semantic memory means Update, otherwise the memory is newly Created.
// An empty knowledge payload is never worth creating, so it's Skipped.
func DetermineAction(newMem model.BaseMemory, embedding []float32, existing []ExistingSemantic) IntegrationAction {
	if len(newMem.Summary) == 0 {
		return IntegrationAction{Kind: ActionSkip}
	}

	bestID := ""
	bestScore := -1.0
	for _, e := range existing {
		if s := cosineSimilarity(embedding, e.Embedding); s > bestScore {
			bestScore = s
			bestID = e.ID
		}
	}

	if bestID != "" && bestScore >= overlapThreshold {
		merged := newMem
		merged.ID = bestID
		return IntegrationAction{Kind: ActionUpdate, ExistingID: bestID, Merged: merged}
	}
	return IntegrationAction{Kind: ActionCreate, Merged: newMem}
}
