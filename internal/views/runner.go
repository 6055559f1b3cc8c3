package views

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"cortexstore/internal/logging"
)

// Runner drives Scheduler off a cron expression instead of an explicit
// caller-driven tick, the periodic-background-job idiom this codebase
// otherwise has no use for.
type Runner struct {
	sched *Scheduler
	cron  *cron.Cron
	log   *zap.Logger
}

// NewRunner builds a Runner that checks sched every time spec fires (a
// standard 5-field cron expression, e.g. "*/5 * * * *" for every five
// minutes). createdBy is recorded as the CreatedBy of any view it creates.
func NewRunner(sched *Scheduler, spec string, createdBy string) (*Runner, error) {
	log := logging.Get(logging.CategoryViews)
	c := cron.New()
	r := &Runner{sched: sched, cron: c, log: log}
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		created, err := sched.RefreshIfDue(ctx, time.Now().UTC(), createdBy)
		if err != nil {
			r.log.Warn("auto view refresh failed", zap.Error(err))
			return
		}
		if created {
			r.log.Info("created auto materialized view")
		}
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins running the cron schedule in the background.
func (r *Runner) Start() { r.cron.Start() }

// Stop halts the schedule, blocking until any in-flight run finishes.
func (r *Runner) Stop() { <-r.cron.Stop().Done() }
