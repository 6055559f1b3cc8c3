package query

import (
	"context"
	"database/sql"

	"cortexstore/internal/errs"
)

// CausalRelation enumerates the cross-agent causal edge kinds (§4.5).
type CausalRelation string

const (
	RelationCaused      CausalRelation = "caused"
	RelationDerivedFrom CausalRelation = "derived_from"
	RelationContradicts CausalRelation = "contradicts"
	RelationSupersedes  CausalRelation = "supersedes"
	RelationCrossAgent  CausalRelation = "cross_agent"
)

// CausalEdge is one directed edge between two memories.
type CausalEdge struct {
	FromMemoryID string
	Relation     CausalRelation
	ToMemoryID   string
	Strength     float64
	Evidence     []string
}

// InsertCausalEdge records one causal edge.
func InsertCausalEdge(ctx context.Context, q interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}, e CausalEdge) error {
	const op = "query.InsertCausalEdge"
	evidence, err := marshalJSON(op, "evidence", e.Evidence)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT OR REPLACE INTO causal_edges (memory_id_a, relation, memory_id_b, strength, evidence)
		VALUES (?, ?, ?, ?, ?)
	`, e.FromMemoryID, string(e.Relation), e.ToMemoryID, e.Strength, evidence)
	if err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	return nil
}

// ListOutgoingCausalEdges returns every causal edge rooted at memoryID, the
// one-hop expansion step of the cross-agent causal traversal.
func ListOutgoingCausalEdges(ctx context.Context, q querier, memoryID string) ([]CausalEdge, error) {
	const op = "query.ListOutgoingCausalEdges"
	rows, err := q.QueryContext(ctx, `
		SELECT memory_id_a, relation, memory_id_b, strength, evidence FROM causal_edges WHERE memory_id_a = ?
	`, memoryID)
	if err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	defer rows.Close()

	var out []CausalEdge
	for rows.Next() {
		var (
			e            CausalEdge
			relation     string
			evidenceJSON sql.NullString
		)
		if err := rows.Scan(&e.FromMemoryID, &relation, &e.ToMemoryID, &e.Strength, &evidenceJSON); err != nil {
			return nil, errs.Wrap(errs.KindSqliteError, op, err)
		}
		e.Relation = CausalRelation(relation)
		if evidenceJSON.Valid {
			if err := unmarshalJSON(op, "evidence", evidenceJSON.String, &e.Evidence); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	return out, nil
}
