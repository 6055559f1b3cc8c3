package validation

import (
	"time"

	"cortexstore/internal/model"
)

// ValidateTemporal scores a memory's freshness as of now (the temporal
// dimension): a memory with no ValidUntil is assumed durable and scores
// well; one whose ValidUntil has passed scores lower the longer ago it
// expired and carries an archive recommendation.
func ValidateTemporal(mem model.BaseMemory, now time.Time) DimensionResult {
	if mem.ValidUntil == nil {
		return DimensionResult{Score: 0.9}
	}

	if now.Before(*mem.ValidUntil) {
		remaining := mem.ValidUntil.Sub(now)
		horizon := 30 * 24 * time.Hour
		score := 0.6 + 0.3*clamp01(float64(remaining)/float64(horizon))
		return DimensionResult{Score: clamp01(score)}
	}

	expiredBy := now.Sub(*mem.ValidUntil)
	decay := clamp01(float64(expiredBy) / float64(30*24*time.Hour))
	score := clamp01(0.4 * (1 - decay))
	return DimensionResult{
		Score: score,
		HealingActions: []HealingAction{{
			ActionType: HealingArchive,
			MemoryID:   mem.ID,
			Reason:     "valid_until has elapsed",
		}},
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
