package validation

import "cortexstore/internal/model"

// ValidateCitation scores how well a memory's linked files still exist and
// haven't been silently moved out from under it (the citation dimension).
// cortexstore's LinkedFiles is a flat path list with no stored line range
// or content hash per link (unlike a richer per-citation record), so this
// dimension checks existence and rename only — it cannot detect content
// drift within a file that still exists at the same path. A memory with no
// linked files trivially scores full marks.
func ValidateCitation(mem model.BaseMemory, fileChecker FileChecker, renameDetector RenameDetector) DimensionResult {
	if len(mem.LinkedFiles) == 0 {
		return DimensionResult{Score: 1.0}
	}

	var healing []HealingAction
	var goodCount int
	for _, path := range mem.LinkedFiles {
		info := fileChecker(path)
		if info != nil {
			goodCount++
			continue
		}
		if renamed := renameDetector(path); renamed != "" {
			healing = append(healing, HealingAction{
				ActionType: HealingCitationUpdate,
				MemoryID:   mem.ID,
				Reason:     "linked file " + path + " renamed to " + renamed,
			})
			continue
		}
		healing = append(healing, HealingAction{
			ActionType: HealingFlagForReview,
			MemoryID:   mem.ID,
			Reason:     "linked file " + path + " no longer exists",
		})
	}

	score := float64(goodCount) / float64(len(mem.LinkedFiles))
	return DimensionResult{Score: score, HealingActions: healing}
}
