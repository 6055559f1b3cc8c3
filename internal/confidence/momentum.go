package confidence

import "cortexstore/internal/model"

// MomentumTracker discretizes a pattern's recent trajectory of confidence
// deltas into {Rising, Stable, Falling} (§4.7). It holds a bounded window of
// recent deltas rather than the full feedback history.
type MomentumTracker struct {
	window []float64
	cap    int
}

// NewMomentumTracker builds a tracker retaining the most recent windowSize
// deltas (values <= 0 fall back to a sensible default of 10).
func NewMomentumTracker(windowSize int) *MomentumTracker {
	if windowSize <= 0 {
		windowSize = 10
	}
	return &MomentumTracker{cap: windowSize}
}

// Record appends one (alpha_delta - beta_delta)-style net delta to the
// window, dropping the oldest entry once full.
func (m *MomentumTracker) Record(delta float64) {
	m.window = append(m.window, delta)
	if len(m.window) > m.cap {
		m.window = m.window[len(m.window)-m.cap:]
	}
}

// Direction discretizes the window's net trend.
func (m *MomentumTracker) Direction() model.Momentum {
	if len(m.window) == 0 {
		return model.MomentumStable
	}
	var sum float64
	for _, d := range m.window {
		sum += d
	}
	switch {
	case sum > 0:
		return model.MomentumRising
	case sum < 0:
		return model.MomentumFalling
	default:
		return model.MomentumStable
	}
}

// MomentumScore maps a momentum direction to the [0,1] evidence-factor scale Score
// expects: Rising=1, Stable=0.5, Falling=0.
func MomentumScore(dir model.Momentum) float64 {
	switch dir {
	case model.MomentumRising:
		return 1
	case model.MomentumFalling:
		return 0
	default:
		return 0.5
	}
}
