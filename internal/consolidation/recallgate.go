package consolidation

import (
	"cortexstore/internal/errs"
	"cortexstore/internal/model"
)

// recallGateThreshold is the minimum score check_recall requires to pass a
// cluster through to abstraction.
const recallGateThreshold = 0.5

// CheckRecall rejects clusters whose embeddings are too degenerate to trust
// (phase3_recall_gate): a cluster's score is the fraction of its embeddings
// with non-zero norm, scaled by the members' average pairwise similarity.
// allEmbeddings is accepted but not used: the score does not compare the
// cluster against the rest of the candidate population. A cluster of
// all-zero embeddings — the canonical "poorly encoded" case — always scores
// below the gate.
func CheckRecall(cluster []model.BaseMemory, embeddings [][]float32, allEmbeddings [][]float32) (RecallResult, error) {
	const op = "consolidation.CheckRecall"
	if len(cluster) != len(embeddings) {
		return RecallResult{}, errs.Deserialization(op, "embeddings", "length does not match cluster size")
	}

	quality := embeddingQuality(embeddings)
	internal := averagePairwiseSimilarity(embeddings)
	score := quality * (0.5 + 0.5*internal)
	_ = allEmbeddings // not part of the score

	return RecallResult{Score: score, Passed: score >= recallGateThreshold}, nil
}

// embeddingQuality is the fraction of embeddings in the set that carry any
// signal at all (non-zero norm).
func embeddingQuality(embeddings [][]float32) float64 {
	if len(embeddings) == 0 {
		return 0
	}
	nonZero := 0
	for _, e := range embeddings {
		if vectorNorm(e) > 1e-9 {
			nonZero++
		}
	}
	return float64(nonZero) / float64(len(embeddings))
}

func averagePairwiseSimilarity(embeddings [][]float32) float64 {
	n := len(embeddings)
	if n < 2 {
		return 1
	}
	var sum float64
	var count int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += cosineSimilarity(embeddings[i], embeddings[j])
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return sum / float64(count)
}
