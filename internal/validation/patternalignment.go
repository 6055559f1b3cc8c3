package validation

import "cortexstore/internal/model"

// ValidatePatternAlignment scores how well a memory's linked patterns still
// check out against the pattern store: missing patterns pull the score
// down, a pattern the checker reports low confidence on pulls it down less
// sharply. No linked patterns trivially scores full marks.
func ValidatePatternAlignment(mem model.BaseMemory, patternChecker PatternChecker) DimensionResult {
	if len(mem.LinkedPatterns) == 0 {
		return DimensionResult{Score: 1.0}
	}

	var healing []HealingAction
	var total float64
	for _, patternID := range mem.LinkedPatterns {
		info := patternChecker(patternID)
		switch {
		case !info.Exists:
			healing = append(healing, HealingAction{
				ActionType: HealingFlagForReview,
				MemoryID:   mem.ID,
				Reason:     "linked pattern " + patternID + " no longer exists",
			})
		case info.Confidence != nil:
			total += *info.Confidence
			continue
		default:
			total += 1.0
			continue
		}
	}
	score := total / float64(len(mem.LinkedPatterns))
	return DimensionResult{Score: score, HealingActions: healing}
}
