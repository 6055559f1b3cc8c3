package consolidation

import "fmt"

// Quality gate thresholds, applied per consolidation run.
const (
	minPrecision        = 0.7
	minCompressionRatio = 2.0
	minLift             = 1.0
	minStability        = 0.7
)

// QualityAssessment records whether each of the four consolidation quality
// signals cleared its threshold.
type QualityAssessment struct {
	PrecisionOK   bool
	CompressionOK bool
	LiftOK        bool
	StabilityOK   bool
	OverallPass   bool
	Issues        []string
}

// AssessQuality checks a run's metrics against the fixed quality gates,
// collecting a human-readable issue per failed dimension.
func AssessQuality(m ConsolidationMetrics) QualityAssessment {
	a := QualityAssessment{
		PrecisionOK:   m.Precision >= minPrecision,
		CompressionOK: m.CompressionRatio >= minCompressionRatio,
		LiftOK:        m.Lift >= minLift,
		StabilityOK:   m.Stability >= minStability,
	}
	if !a.PrecisionOK {
		a.Issues = append(a.Issues, fmt.Sprintf("precision %.2f below %.2f", m.Precision, minPrecision))
	}
	if !a.CompressionOK {
		a.Issues = append(a.Issues, fmt.Sprintf("compression ratio %.2f below %.2f", m.CompressionRatio, minCompressionRatio))
	}
	if !a.LiftOK {
		a.Issues = append(a.Issues, fmt.Sprintf("lift %.2f below %.2f", m.Lift, minLift))
	}
	if !a.StabilityOK {
		a.Issues = append(a.Issues, fmt.Sprintf("stability %.2f below %.2f", m.Stability, minStability))
	}
	a.OverallPass = a.PrecisionOK && a.CompressionOK && a.LiftOK && a.StabilityOK
	return a
}

// TuningEventInterval is how many consolidation events pass between
// auto-tuning evaluations.
const TuningEventInterval = 50

// maxMinConfidence caps how far auto-tuning will raise the selection
// confidence floor.
const maxMinConfidence = 0.95

// tuningStep is how much min_confidence moves per tuning event.
const tuningStep = 0.05

// TunableThresholds are the pipeline knobs auto-tuning is allowed to
// adjust in response to sustained quality-gate failures.
type TunableThresholds struct {
	MinConfidence     float64
	EventsSinceTuning int
}

// DefaultTunableThresholds returns the pipeline's starting thresholds.
func DefaultTunableThresholds() TunableThresholds {
	return TunableThresholds{MinConfidence: 0.6}
}

// MaybeTune advances thresholds' event counter and, once TuningEventInterval
// has elapsed, nudges MinConfidence upward if more than half of the recent
// assessments failed on precision. It returns a human-readable log of any
// adjustments made (empty if it wasn't yet time to tune, or metrics were
// healthy).
func MaybeTune(thresholds *TunableThresholds, assessments []QualityAssessment) []string {
	thresholds.EventsSinceTuning++
	if thresholds.EventsSinceTuning < TuningEventInterval {
		return nil
	}
	thresholds.EventsSinceTuning = 0

	if len(assessments) == 0 {
		return nil
	}
	var precisionFailures int
	for _, a := range assessments {
		if !a.PrecisionOK {
			precisionFailures++
		}
	}

	var adjustments []string
	if precisionFailures*2 > len(assessments) {
		before := thresholds.MinConfidence
		thresholds.MinConfidence = minF(thresholds.MinConfidence+tuningStep, maxMinConfidence)
		if thresholds.MinConfidence > before {
			adjustments = append(adjustments, fmt.Sprintf(
				"raised min_confidence %.2f -> %.2f after %d/%d precision failures",
				before, thresholds.MinConfidence, precisionFailures, len(assessments)))
		}
	}
	return adjustments
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
