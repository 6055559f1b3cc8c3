package logging

import (
	"time"

	"go.uber.org/zap"
)

// Timer measures elapsed wall time for one operation and logs it as a
// structured field pair on Stop, mirroring the teacher's StartTimer/Stop
// idiom but emitting zap fields instead of formatted text.
type Timer struct {
	logger    *zap.Logger
	operation string
	start     time.Time
}

// StartTimer begins timing operation under category.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		logger:    Get(category),
		operation: operation,
		start:     time.Now(),
	}
}

// Stop logs the elapsed duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.logger.Debug("operation completed",
		zap.String("operation", t.operation),
		zap.Duration("elapsed", elapsed),
	)
	return elapsed
}

// StopWithThreshold logs at warn level instead of debug if elapsed exceeds
// threshold, for flagging slow operations without instrumenting every call
// site with its own comparison.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	fields := []zap.Field{
		zap.String("operation", t.operation),
		zap.Duration("elapsed", elapsed),
		zap.Duration("threshold", threshold),
	}
	if elapsed > threshold {
		t.logger.Warn("operation exceeded threshold", fields...)
	} else {
		t.logger.Debug("operation completed", fields...)
	}
	return elapsed
}
