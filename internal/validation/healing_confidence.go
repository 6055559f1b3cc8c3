package validation

import "cortexstore/internal/model"

// Adjust adds delta scaled by strength to mem's confidence, clamped to
// [0,1] by ApplyDelta — a strength below 1 damps each finding, so repeated
// small contradictions accumulate instead of one finding swinging
// confidence wildly.
func Adjust(mem model.BaseMemory, delta float64, strength float64) float64 {
	return ApplyDelta(mem.Confidence, delta*strength)
}

// ApplyDelta adds delta to confidence, floor-clamped at zero and capped at
// one so repeated negative findings can't push a memory negative.
func ApplyDelta(confidence, delta float64) float64 {
	result := confidence + delta
	if result < 0 {
		return 0
	}
	if result > 1 {
		return 1
	}
	return result
}
