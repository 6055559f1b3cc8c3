package confidence

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"cortexstore/internal/config"
	"cortexstore/internal/errs"
	"cortexstore/internal/model"
	"cortexstore/internal/query"
	"cortexstore/internal/storage"
)

// Scorer computes and persists Beta-posterior confidence records (§4.7),
// wrapping a storage.Manager and a per-pattern momentum tracker.
type Scorer struct {
	mgr      *storage.Manager
	cfg      config.ConfidenceConfig
	provider WeightProvider

	momentumMu sync.Mutex
	momentum   map[string]*MomentumTracker
}

// NewScorer builds a Scorer over mgr using cfg's weights/decay parameters.
// provider may be nil to use the static cfg-derived weights for every
// migration path.
func NewScorer(mgr *storage.Manager, cfg config.ConfidenceConfig, provider WeightProvider) *Scorer {
	if provider == nil {
		provider = StaticWeightProvider{W: Weights{
			Frequency:   cfg.WeightFrequency,
			Consistency: cfg.WeightConsistency,
			Spread:      cfg.WeightSpread,
			Momentum:    cfg.WeightMomentum,
			DataQuality: cfg.WeightDataQuality,
			Age:         cfg.WeightAge,
		}}
	}
	return &Scorer{mgr: mgr, cfg: cfg, provider: provider, momentum: make(map[string]*MomentumTracker)}
}

// trackerLocked returns patternID's tracker, creating it if absent. Callers
// must hold momentumMu.
func (s *Scorer) trackerLocked(patternID string) *MomentumTracker {
	t, ok := s.momentum[patternID]
	if !ok {
		t = NewMomentumTracker(10)
		s.momentum[patternID] = t
	}
	return t
}

// momentumDirection returns patternID's current momentum direction,
// guarding the tracker's internal window against concurrent ScorePattern/
// ApplyFeedback calls for the same pattern.
func (s *Scorer) momentumDirection(patternID string) model.Momentum {
	s.momentumMu.Lock()
	defer s.momentumMu.Unlock()
	return s.trackerLocked(patternID).Direction()
}

// momentumRecord appends delta to patternID's momentum window under the
// same lock momentumDirection reads it under.
func (s *Scorer) momentumRecord(patternID string, delta float64) {
	s.momentumMu.Lock()
	defer s.momentumMu.Unlock()
	s.trackerLocked(patternID).Record(delta)
}

// ScorePattern runs the evidence model against e, combines it with the
// pattern's existing Beta posterior (decayed by daysSinceLastSeen), and
// persists the result on every call. Invariant 7 (a user-approved status)
// freezes pattern_status fields only, which the scorer never writes; the
// confidence record itself updates every scan.
func (s *Scorer) ScorePattern(ctx context.Context, patternID string, e Evidence, daysSinceLastSeen float64) (model.PatternConfidence, error) {
	const op = "confidence.ScorePattern"

	e.Momentum = MomentumScore(s.momentumDirection(patternID))
	observation := Score(e, s.provider)

	var result model.PatternConfidence
	err := s.mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		existing, err := query.GetPatternConfidence(ctx, db, patternID)
		if errs.Of(err, errs.KindNotFound) {
			existing = model.PatternConfidence{PatternID: patternID, Alpha: s.cfg.MinAlphaBeta, Beta: s.cfg.MinAlphaBeta}
		} else if err != nil {
			return err
		}

		alpha, beta := ApplyDecay(existing.Alpha, existing.Beta, daysSinceLastSeen, s.cfg.DecayHalfLifeDays, s.cfg.StaleAfterDays, s.cfg.MinAlphaBeta)

		// The observation nudges alpha/beta directly: a high evidence score
		// reads as a success observation, a low one as a failure observation.
		alpha += observation
		beta += 1 - observation

		result = buildPatternConfidence(patternID, alpha, beta, s.cfg.MinAlphaBeta, s.momentumDirection(patternID))
		return query.UpsertPatternConfidence(ctx, db, result)
	})
	if err != nil {
		return model.PatternConfidence{}, errs.Wrap(errs.KindSqliteError, op, err)
	}
	return result, nil
}

// ApplyFeedback records one (alpha_delta, beta_delta) feedback event and
// immediately re-derives the pattern's posterior, flooring alpha/beta at
// MinAlphaBeta regardless of accumulated dismissal count (§4.7 "results must
// remain finite after 10,000 dismissals").
func (s *Scorer) ApplyFeedback(ctx context.Context, patternID string, alphaDelta, betaDelta float64, at time.Time) (model.PatternConfidence, error) {
	const op = "confidence.ApplyFeedback"

	s.momentumRecord(patternID, alphaDelta-betaDelta)

	var result model.PatternConfidence
	err := s.mgr.WithWriter(ctx, func(ctx context.Context, db *sql.DB) error {
		if err := query.InsertPatternFeedback(ctx, db, patternID, alphaDelta, betaDelta, at); err != nil {
			return err
		}

		existing, err := query.GetPatternConfidence(ctx, db, patternID)
		if errs.Of(err, errs.KindNotFound) {
			existing = model.PatternConfidence{PatternID: patternID, Alpha: s.cfg.MinAlphaBeta, Beta: s.cfg.MinAlphaBeta}
		} else if err != nil {
			return err
		}

		alpha := existing.Alpha + alphaDelta
		beta := existing.Beta + betaDelta
		result = buildPatternConfidence(patternID, alpha, beta, s.cfg.MinAlphaBeta, s.momentumDirection(patternID))
		return query.UpsertPatternConfidence(ctx, db, result)
	})
	if err != nil {
		return model.PatternConfidence{}, errs.Wrap(errs.KindSqliteError, op, err)
	}
	return result, nil
}

func buildPatternConfidence(patternID string, alpha, beta, minAlphaBeta float64, momentum model.Momentum) model.PatternConfidence {
	if alpha < minAlphaBeta {
		alpha = minAlphaBeta
	}
	if beta < minAlphaBeta {
		beta = minAlphaBeta
	}
	mean := PosteriorMean(alpha, beta)
	low, high := CredibleInterval(alpha, beta)
	return model.PatternConfidence{
		PatternID:     patternID,
		Alpha:         alpha,
		Beta:          beta,
		PosteriorMean: mean,
		CILow:         low,
		CIHigh:        high,
		Tier:          TierFromPosteriorMean(mean),
		Momentum:      momentum,
	}
}
