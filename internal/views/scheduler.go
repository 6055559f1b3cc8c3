package views

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cortexstore/internal/config"
	"cortexstore/internal/query"
)

const autoLabelPrefix = "auto-"

// Scheduler decides when the knowledge base has drifted enough since the
// last automatic view to warrant creating another one (§4.8).
type Scheduler struct {
	engine *Engine
	cfg    config.ViewConfig
}

// NewScheduler builds a Scheduler over engine, reading ViewConfig.
func NewScheduler(engine *Engine, cfg config.ViewConfig) *Scheduler {
	return &Scheduler{engine: engine, cfg: cfg}
}

// ShouldAutoRefresh reports whether a new auto-* view is due as of now: the
// configured interval must have elapsed since the last one AND at least one
// event must have been recorded since it was taken. Absent either condition,
// no view is created — matching §4.8's auto-refresh rule exactly.
func (s *Scheduler) ShouldAutoRefresh(ctx context.Context, now time.Time) (bool, error) {
	if !s.cfg.AutoRefreshEnabled {
		return false, nil
	}

	last, ok, err := s.latestAutoView(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}

	interval := parseInterval(s.cfg.AutoRefreshInterval)
	if now.Sub(last.Timestamp) < interval {
		return false, nil
	}

	var newEvents int
	err = s.engine.mgr.WithReader(ctx, func(ctx context.Context, db *sql.DB) error {
		n, err := query.CountEventsAfter(ctx, db, last.Timestamp)
		newEvents = n
		return err
	})
	if err != nil {
		return false, err
	}
	return newEvents > 0, nil
}

// RefreshIfDue creates a new auto-* view labeled from now if ShouldAutoRefresh
// says one is due, returning true when it did so.
func (s *Scheduler) RefreshIfDue(ctx context.Context, now time.Time, createdBy string) (bool, error) {
	due, err := s.ShouldAutoRefresh(ctx, now)
	if err != nil || !due {
		return false, err
	}
	label := fmt.Sprintf("%s%d", autoLabelPrefix, now.UnixNano())
	_, err = s.engine.createView(ctx, label, now, createdBy, true)
	return err == nil, err
}

func (s *Scheduler) latestAutoView(ctx context.Context) (viewSummary, bool, error) {
	views, err := s.engine.ListViews(ctx)
	if err != nil {
		return viewSummary{}, false, err
	}
	// ListViews orders most-recent-first; the first auto-* label is the latest.
	for _, v := range views {
		if strings.HasPrefix(v.Label, autoLabelPrefix) {
			return viewSummary{Label: v.Label, Timestamp: v.Timestamp}, true, nil
		}
	}
	return viewSummary{}, false, nil
}

type viewSummary struct {
	Label     string
	Timestamp time.Time
}

func parseInterval(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}
