// Package metrics centralizes the prometheus collectors cortexstore's
// components report to, grounded on the prometheus/client_golang usage in
// cuemby-warren and r3e-network-service_layer.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// StorageCheckpointDuration times storage.Manager.Checkpoint calls.
	StorageCheckpointDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cortexstore",
		Subsystem: "storage",
		Name:      "checkpoint_duration_seconds",
		Help:      "Duration of PRAGMA wal_checkpoint(TRUNCATE) calls.",
		Buckets:   prometheus.DefBuckets,
	})

	// StorageReaderInUse tracks how many reader-pool slots are currently
	// checked out.
	StorageReaderInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cortexstore",
		Subsystem: "storage",
		Name:      "reader_in_use",
		Help:      "Number of reader pool slots currently checked out.",
	})

	// StorageWriterErrors counts WithWriter calls that returned an error.
	StorageWriterErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cortexstore",
		Subsystem: "storage",
		Name:      "writer_errors_total",
		Help:      "Total WithWriter calls that returned an error.",
	})

	// BatchFlushesTotal counts batch writer flushes.
	BatchFlushesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cortexstore",
		Subsystem: "batch",
		Name:      "flushes_total",
		Help:      "Total number of batch writer flush transactions.",
	})

	// BatchRowsByVariant counts rows flushed per BatchCommand variant.
	BatchRowsByVariant = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cortexstore",
		Subsystem: "batch",
		Name:      "rows_total",
		Help:      "Total rows flushed, labeled by command variant.",
	}, []string{"variant"})

	// BatchFlushFailures counts flush transactions that rolled back.
	BatchFlushFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cortexstore",
		Subsystem: "batch",
		Name:      "flush_failures_total",
		Help:      "Total batch flush transactions that rolled back.",
	})

	// ReachabilityCacheHits/Misses track the reachability LRU cache.
	ReachabilityCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cortexstore",
		Subsystem: "reachability",
		Name:      "cache_hits_total",
		Help:      "Total reachability cache hits.",
	})
	ReachabilityCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cortexstore",
		Subsystem: "reachability",
		Name:      "cache_misses_total",
		Help:      "Total reachability cache misses.",
	})
)

func init() {
	prometheus.MustRegister(
		StorageCheckpointDuration,
		StorageReaderInUse,
		StorageWriterErrors,
		BatchFlushesTotal,
		BatchRowsByVariant,
		BatchFlushFailures,
		ReachabilityCacheHits,
		ReachabilityCacheMisses,
	)
}
