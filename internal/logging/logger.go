// Package logging provides categorized, structured logging for cortexstore,
// adapted from the teacher's category-logger idiom but backed by
// go.uber.org/zap instead of a hand-rolled file writer.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

// Category identifies which subsystem a logger belongs to. Each gets a
// *zap.Logger child with a "component" field.
type Category string

const (
	CategoryStorage       Category = "storage"
	CategoryBatch         Category = "batch"
	CategoryTemporal      Category = "temporal"
	CategoryEpistemic     Category = "epistemic"
	CategoryConfidence    Category = "confidence"
	CategoryViews         Category = "views"
	CategoryReachability  Category = "reachability"
	CategoryConsolidation Category = "consolidation"
	CategoryValidation    Category = "validation"
)

var (
	mu      sync.RWMutex
	base    *zap.Logger
	loggers = make(map[Category]*zap.Logger)
)

// Initialize sets the base zap logger that per-category children are
// derived from. debug selects zap's development config (human-readable,
// caller info, debug level) over its production config (JSON, info level).
// Safe to call more than once; later calls replace the base logger and
// clear cached children.
func Initialize(debug bool) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	l, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	base = l
	loggers = make(map[Category]*zap.Logger)
	return nil
}

// Get returns the logger for category, lazily deriving it from the base
// logger. If Initialize was never called, a no-op logger is used so callers
// never need a nil check.
func Get(category Category) *zap.Logger {
	mu.RLock()
	l, ok := loggers[category]
	b := base
	mu.RUnlock()
	if ok {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	if b == nil {
		b = zap.NewNop()
	}
	child := b.With(zap.String("component", string(category)))
	loggers[category] = child
	return child
}

// Sync flushes any buffered log entries on the base logger and all derived
// children. Call before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if base != nil {
		_ = base.Sync()
	}
}
