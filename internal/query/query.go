// Package query implements the Query Layer (§4.4): parameterized CRUD and
// read helpers over every table the storage schema defines, plus the two
// specialized query modules (VectorSearch, FTS5Search) the spec defers to.
// Every row-to-struct parser here returns an error instead of panicking on
// malformed data, per §4.4's "never panics" requirement.
package query

import (
	"database/sql"
	"encoding/json"
	"time"

	"cortexstore/internal/errs"
)

func timeToStr(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func strToTime(op, field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errs.Deserialization(op, field, err.Error())
	}
	return t, nil
}

func nullTimeToStr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: timeToStr(*t), Valid: true}
}

func strToNullTime(op, field string, ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := strToTime(op, field, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func marshalJSON(op, field string, v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errs.Deserialization(op, field, err.Error())
	}
	return string(b), nil
}

func unmarshalJSON(op, field string, s string, v interface{}) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return errs.Deserialization(op, field, err.Error())
	}
	return nil
}

// allTables lists every table the storage schema defines, used by Stats to
// report row counts the way the teacher's GetStats does.
var allTables = []string{
	"file_metadata", "functions", "call_edges", "data_access",
	"memories", "memory_patterns", "memory_constraints", "memory_files", "memory_functions",
	"memory_events", "snapshots",
	"materialized_temporal_views", "materialized_view_snapshots",
	"pattern_confidence", "pattern_feedback", "pattern_status",
	"detections", "violations", "gate_results", "degradation_alerts",
	"reachability_cache",
	"owasp_findings", "crypto_findings", "dna_genes", "dna_mutations", "secrets",
	"constants", "env_variables", "wrappers", "contracts", "contract_mismatches",
	"coupling_metrics", "coupling_cycles", "test_quality_scores", "decomposition_decisions",
	"taint_flows", "error_gaps", "impact_scores", "outliers", "conventions", "parse_cache",
	"memory_embeddings", "pattern_embeddings", "causal_edges",
}

// Stats counts rows in every table the schema defines. Tables that don't
// exist yet (e.g. a database opened against an older migration) are skipped
// rather than failing the whole call, mirroring the teacher's tolerant
// per-table counting.
func Stats(db interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}) map[string]int64 {
	stats := make(map[string]int64, len(allTables))
	for _, table := range allTables {
		var count int64
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			continue
		}
		stats[table] = count
	}
	return stats
}
