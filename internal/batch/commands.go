// Package batch implements the Batch Writer (§4.3): a bounded
// multi-producer/single-consumer command queue that multiplexes ~30 typed
// insert/delete variants onto the sole write connection, flushing them as
// size- or time-triggered transactions.
package batch

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"cortexstore/internal/model"
)

// BatchCommand is one typed, table-scoped unit of work the writer consumer
// applies inside a flush transaction.
type BatchCommand interface {
	// Variant names the table/operation this command targets, used for
	// per-variant row counters in Stats.
	Variant() string
	// RowCount is the number of logical rows this command carries.
	RowCount() int

	apply(ctx context.Context, tx *sql.Tx) error
}

// command is the shared implementation behind every constructor below: a
// variant name, a row count, and a closure that executes it against the
// flush transaction.
type command struct {
	variant string
	rows    int
	exec    func(ctx context.Context, tx *sql.Tx) error
}

func (c *command) Variant() string { return c.variant }
func (c *command) RowCount() int   { return c.rows }
func (c *command) apply(ctx context.Context, tx *sql.Tx) error {
	return c.exec(ctx, tx)
}

func jsonOrEmpty(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func execEach(ctx context.Context, tx *sql.Tx, query string, n int, args func(i int) []interface{}) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return nil
}

// UpsertFileMetadata upserts scanned-file rows; re-scanning an unchanged
// file is idempotent via ON CONFLICT DO UPDATE.
func UpsertFileMetadata(rows []model.FileMetadata) BatchCommand {
	return &command{
		variant: "UpsertFileMetadata",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT INTO file_metadata (path, language, size, content_hash, mtime_secs, mtime_nanos, last_scanned_at, scan_duration_us)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(path) DO UPDATE SET
					language=excluded.language, size=excluded.size, content_hash=excluded.content_hash,
					mtime_secs=excluded.mtime_secs, mtime_nanos=excluded.mtime_nanos,
					last_scanned_at=excluded.last_scanned_at, scan_duration_us=excluded.scan_duration_us
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.Path, r.Language, r.Size, r.ContentHash, r.MtimeSecs, r.MtimeNanos, r.LastScannedAt, r.ScanDurationUs}
			})
		},
	}
}

// DeleteFileMetadata removes rows for files absent from the latest scan.
func DeleteFileMetadata(paths []string) BatchCommand {
	return &command{
		variant: "DeleteFileMetadata",
		rows:    len(paths),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `DELETE FROM file_metadata WHERE path = ?`, len(paths), func(i int) []interface{} {
				return []interface{}{paths[i]}
			})
		},
	}
}

// InsertFunctions bulk-inserts parsed functions for the current scan.
func InsertFunctions(rows []model.Function) BatchCommand {
	return &command{
		variant: "InsertFunctions",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO functions
				(id, file, name, qualified_name, language, line, end_line, parameter_count, return_type, is_exported, is_async, body_hash, signature_hash)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.File, r.Name, r.QualifiedName, r.Language, r.Line, r.EndLine,
					r.ParameterCount, r.ReturnType, boolInt(r.IsExported), boolInt(r.IsAsync), r.BodyHash, r.SignatureHash}
			})
		},
	}
}

// InsertCallEdges bulk-inserts call-graph edges.
func InsertCallEdges(rows []model.CallEdge) BatchCommand {
	return &command{
		variant: "InsertCallEdges",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR IGNORE INTO call_edges (caller_id, callee_id, resolution, confidence, call_site_line)
				VALUES (?, ?, ?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.CallerID, r.CalleeID, string(r.Resolution), r.Confidence, r.CallSiteLine}
			})
		},
	}
}

// InsertDataAccess bulk-inserts function→table access records.
func InsertDataAccess(rows []model.DataAccess) BatchCommand {
	return &command{
		variant: "InsertDataAccess",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			for _, r := range rows {
				fields := strings.Join(r.Fields, ",")
				if _, err := tx.ExecContext(ctx, `
					INSERT OR REPLACE INTO data_access (function_id, table_name, operation, fields, framework_hint)
					VALUES (?, ?, ?, ?, ?)
				`, r.FunctionID, r.Table, string(r.Operation), fields, r.FrameworkHint); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// InsertDetections bulk-inserts raw quality-gate detections.
func InsertDetections(rows []model.Detection) BatchCommand {
	return &command{
		variant: "InsertDetections",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO detections (id, rule_id, file, line, severity, cwe, message, is_new)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.RuleID, r.File, r.Line, string(r.Severity), r.CWE, r.Message, boolInt(r.IsNew)}
			})
		},
	}
}

// InsertViolations bulk-inserts gated violations.
func InsertViolations(rows []model.Violation) BatchCommand {
	return &command{
		variant: "InsertViolations",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO violations (id, detection_id, rule_id, file, line, severity, cwe, suppressed, is_new)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.DetectionID, r.RuleID, r.File, r.Line, string(r.Severity), r.CWE, boolInt(r.Suppressed), boolInt(r.IsNew)}
			})
		},
	}
}

// InsertGateResults bulk-inserts quality-gate run outcomes.
func InsertGateResults(rows []model.GateResult) BatchCommand {
	return &command{
		variant: "InsertGateResults",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO gate_results (id, gate_name, passed, violation_count, created_at)
				VALUES (?, ?, ?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.GateName, boolInt(r.Passed), r.ViolationCount, r.CreatedAt}
			})
		},
	}
}

// InsertDegradationAlerts bulk-inserts metric-regression alerts.
func InsertDegradationAlerts(rows []model.DegradationAlert) BatchCommand {
	return &command{
		variant: "InsertDegradationAlerts",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT OR REPLACE INTO degradation_alerts (id, metric, previous, current, severity, created_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.ID, r.Metric, r.Previous, r.Current, string(r.Severity), r.CreatedAt}
			})
		},
	}
}

// InsertPatternConfidence bulk-upserts confidence-scorer output rows.
func InsertPatternConfidence(rows []model.PatternConfidence) BatchCommand {
	return &command{
		variant: "InsertPatternConfidence",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			return execEach(ctx, tx, `
				INSERT INTO pattern_confidence (pattern_id, alpha, beta, posterior_mean, ci_low, ci_high, tier, momentum, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
				ON CONFLICT(pattern_id) DO UPDATE SET
					alpha=excluded.alpha, beta=excluded.beta, posterior_mean=excluded.posterior_mean,
					ci_low=excluded.ci_low, ci_high=excluded.ci_high, tier=excluded.tier,
					momentum=excluded.momentum, updated_at=excluded.updated_at
			`, len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{r.PatternID, r.Alpha, r.Beta, r.PosteriorMean, r.CILow, r.CIHigh, string(r.Tier), string(r.Momentum)}
			})
		},
	}
}

// InsertReachabilityCache bulk-upserts reachability query results.
func InsertReachabilityCache(rows []model.ReachabilityCache) BatchCommand {
	return &command{
		variant: "InsertReachabilityCache",
		rows:    len(rows),
		exec: func(ctx context.Context, tx *sql.Tx) error {
			for _, r := range rows {
				set, err := jsonOrEmpty(r.ReachableSet)
				if err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT OR REPLACE INTO reachability_cache (source_node, direction, reachable_set, sensitivity)
					VALUES (?, ?, ?, ?)
				`, r.SourceNode, string(r.Direction), set, string(r.Sensitivity)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
