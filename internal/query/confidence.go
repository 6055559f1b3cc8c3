package query

import (
	"context"
	"database/sql"
	"time"

	"cortexstore/internal/errs"
	"cortexstore/internal/model"
)

// GetPatternConfidence loads a pattern's current Beta-posterior record.
func GetPatternConfidence(ctx context.Context, q querier, patternID string) (model.PatternConfidence, error) {
	const op = "query.GetPatternConfidence"
	row := q.QueryRowContext(ctx, `
		SELECT pattern_id, alpha, beta, posterior_mean, ci_low, ci_high, tier, momentum
		FROM pattern_confidence WHERE pattern_id = ?
	`, patternID)

	var (
		c               model.PatternConfidence
		tier, momentum  string
	)
	err := row.Scan(&c.PatternID, &c.Alpha, &c.Beta, &c.PosteriorMean, &c.CILow, &c.CIHigh, &tier, &momentum)
	if err == sql.ErrNoRows {
		return model.PatternConfidence{}, errs.New(errs.KindNotFound, op)
	}
	if err != nil {
		return model.PatternConfidence{}, errs.Wrap(errs.KindSqliteError, op, err)
	}
	c.Tier = model.ConfidenceTier(tier)
	c.Momentum = model.Momentum(momentum)
	return c, nil
}

// UpsertPatternConfidence writes pattern's confidence record, replacing any
// prior one. Callers enforcing invariant 7 (a user-approved status freezes
// automated fields) must check PatternStatus first.
func UpsertPatternConfidence(ctx context.Context, q interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}, c model.PatternConfidence) error {
	const op = "query.UpsertPatternConfidence"
	_, err := q.ExecContext(ctx, `
		INSERT INTO pattern_confidence (pattern_id, alpha, beta, posterior_mean, ci_low, ci_high, tier, momentum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pattern_id) DO UPDATE SET
			alpha=excluded.alpha, beta=excluded.beta, posterior_mean=excluded.posterior_mean,
			ci_low=excluded.ci_low, ci_high=excluded.ci_high, tier=excluded.tier,
			momentum=excluded.momentum, updated_at=excluded.updated_at
	`, c.PatternID, c.Alpha, c.Beta, c.PosteriorMean, c.CILow, c.CIHigh, string(c.Tier), string(c.Momentum), timeToStr(time.Now()))
	if err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	return nil
}

// InsertPatternFeedback appends one Beta-update event to the feedback log,
// the audit trail a momentum/decay recompute replays.
func InsertPatternFeedback(ctx context.Context, q interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}, patternID string, alphaDelta, betaDelta float64, appliedAt time.Time) error {
	const op = "query.InsertPatternFeedback"
	_, err := q.ExecContext(ctx, `
		INSERT INTO pattern_feedback (pattern_id, alpha_delta, beta_delta, applied_at) VALUES (?, ?, ?, ?)
	`, patternID, alphaDelta, betaDelta, timeToStr(appliedAt))
	if err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	return nil
}

// ListPatternFeedbackSince returns feedback entries applied at or after
// since, oldest first, for momentum/decay recomputation.
func ListPatternFeedbackSince(ctx context.Context, q querier, patternID string, since time.Time) ([]time.Time, []float64, error) {
	const op = "query.ListPatternFeedbackSince"
	rows, err := q.QueryContext(ctx, `
		SELECT applied_at, alpha_delta - beta_delta FROM pattern_feedback
		WHERE pattern_id = ? AND applied_at >= ? ORDER BY applied_at ASC
	`, patternID, timeToStr(since))
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	defer rows.Close()

	var times []time.Time
	var deltas []float64
	for rows.Next() {
		var ts string
		var delta float64
		if err := rows.Scan(&ts, &delta); err != nil {
			return nil, nil, errs.Wrap(errs.KindSqliteError, op, err)
		}
		t, err := strToTime(op, "applied_at", ts)
		if err != nil {
			return nil, nil, err
		}
		times = append(times, t)
		deltas = append(deltas, delta)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	return times, deltas, nil
}

// GetPatternStatus loads the (possibly user-made) decision on a pattern.
// Returns a zero-value PatternDiscovered status with no error if none exists
// yet, since an unset status is the common case rather than a failure.
func GetPatternStatus(ctx context.Context, q querier, patternID string) (model.PatternStatus, error) {
	const op = "query.GetPatternStatus"
	row := q.QueryRowContext(ctx, `
		SELECT pattern_id, status, approved_by, approved_at, confidence_at_approval, reason, updated_at
		FROM pattern_status WHERE pattern_id = ?
	`, patternID)

	var (
		s                          model.PatternStatus
		status, approvedBy, reason sql.NullString
		approvedAt                 sql.NullString
		confidenceAtApproval       sql.NullFloat64
		updatedAt                  string
	)
	err := row.Scan(&s.PatternID, &status, &approvedBy, &approvedAt, &confidenceAtApproval, &reason, &updatedAt)
	if err == sql.ErrNoRows {
		return model.PatternStatus{PatternID: patternID, Status: model.PatternDiscovered}, nil
	}
	if err != nil {
		return model.PatternStatus{}, errs.Wrap(errs.KindSqliteError, op, err)
	}
	s.Status = model.PatternDecisionStatus(status.String)
	s.ApprovedBy = approvedBy.String
	s.Reason = reason.String
	if confidenceAtApproval.Valid {
		v := confidenceAtApproval.Float64
		s.ConfidenceAtApproval = &v
	}
	if approvedAt.Valid {
		t, err := strToTime(op, "approved_at", approvedAt.String)
		if err != nil {
			return model.PatternStatus{}, err
		}
		s.ApprovedAt = &t
	}
	if s.UpdatedAt, err = strToTime(op, "updated_at", updatedAt); err != nil {
		return model.PatternStatus{}, err
	}
	return s, nil
}

// UpsertPatternStatus writes a pattern's status decision.
func UpsertPatternStatus(ctx context.Context, q interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}, s model.PatternStatus) error {
	const op = "query.UpsertPatternStatus"

	var approvedAt interface{}
	if s.ApprovedAt != nil {
		approvedAt = timeToStr(*s.ApprovedAt)
	}
	var confidenceAtApproval interface{}
	if s.ConfidenceAtApproval != nil {
		confidenceAtApproval = *s.ConfidenceAtApproval
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO pattern_status (pattern_id, status, approved_by, approved_at, confidence_at_approval, reason, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pattern_id) DO UPDATE SET
			status=excluded.status, approved_by=excluded.approved_by, approved_at=excluded.approved_at,
			confidence_at_approval=excluded.confidence_at_approval, reason=excluded.reason, updated_at=excluded.updated_at
	`, s.PatternID, string(s.Status), nullString(s.ApprovedBy), approvedAt, confidenceAtApproval, nullString(s.Reason), timeToStr(s.UpdatedAt))
	if err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	return nil
}
