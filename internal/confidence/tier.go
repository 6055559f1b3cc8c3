package confidence

import "cortexstore/internal/model"

// TierFromPosteriorMean maps a posterior mean to its trust tier (§4.7).
// Boundaries are closed on the lower edge: 0.50 -> Tentative, 0.70 ->
// Emerging, 0.85 -> Established.
func TierFromPosteriorMean(mean float64) model.ConfidenceTier {
	switch {
	case mean >= 0.85:
		return model.TierEstablished
	case mean >= 0.70:
		return model.TierEmerging
	case mean >= 0.50:
		return model.TierTentative
	default:
		return model.TierUncertain
	}
}
