package validation

import "cortexstore/internal/model"

// archivalConfidenceThreshold is the confidence floor below which a memory
// is considered no longer worth keeping active.
const archivalConfidenceThreshold = 0.15

// ShouldArchive reports whether mem's confidence has decayed past the
// point of being useful.
func ShouldArchive(mem model.BaseMemory, threshold float64) bool {
	return mem.Confidence < threshold
}

// Archive marks mem archived in place, zeroing its confidence so it can
// no longer influence retrieval ranking.
func Archive(mem *model.BaseMemory) {
	mem.Archived = true
	mem.Confidence = 0
}
