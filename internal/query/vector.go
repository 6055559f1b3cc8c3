package query

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"sort"

	"cortexstore/internal/errs"
)

// encodeEmbedding packs a float32 vector as a little-endian byte blob, the
// wire format sqlite-vec's vec0 shadow tables and our brute-force fallback
// both read.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// UpsertMemoryEmbedding stores (or replaces) memoryID's embedding vector.
func UpsertMemoryEmbedding(ctx context.Context, db *sql.DB, memoryID, modelName string, vec []float32) error {
	const op = "query.UpsertMemoryEmbedding"
	_, err := db.ExecContext(ctx, `
		INSERT INTO memory_embeddings (memory_id, model, dims, embedding, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(memory_id) DO UPDATE SET model=excluded.model, dims=excluded.dims,
			embedding=excluded.embedding, updated_at=excluded.updated_at
	`, memoryID, modelName, len(vec), encodeEmbedding(vec))
	if err != nil {
		return errs.Wrap(errs.KindSqliteError, op, err)
	}
	return nil
}

// VectorMatch is one ranked result from VectorSearch.
type VectorMatch struct {
	MemoryID string
	Score    float64
}

// VectorSearch finds the topK memory embeddings most similar to query by
// cosine similarity. It uses a brute-force scan over memory_embeddings,
// mirroring the teacher's CosineSimilarity helper; a build tagged with
// sqlite_vec can swap this for a vec0 ANN index over the same table without
// changing this function's signature.
func VectorSearch(ctx context.Context, q querier, query []float32, topK int) ([]VectorMatch, error) {
	const op = "query.VectorSearch"
	rows, err := q.QueryContext(ctx, `SELECT memory_id, embedding FROM memory_embeddings`)
	if err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}
	defer rows.Close()

	var matches []VectorMatch
	for rows.Next() {
		var (
			memoryID string
			blob     []byte
		)
		if err := rows.Scan(&memoryID, &blob); err != nil {
			return nil, errs.Wrap(errs.KindSqliteError, op, err)
		}
		score := cosineSimilarity(query, decodeEmbedding(blob))
		matches = append(matches, VectorMatch{MemoryID: memoryID, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindSqliteError, op, err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}
