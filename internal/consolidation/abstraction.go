package consolidation

import (
	"strings"

	"cortexstore/internal/consolidation/textrank"
	"cortexstore/internal/errs"
	"cortexstore/internal/model"
)

// noveltyThreshold: a cluster member whose embedding is at least this
// similar to an already-merged member contributes no new sentences —
// its content is assumed to already be represented.
const noveltyThreshold = 0.97

// summarySentenceCount is how many sentences build_semantic_memory keeps
// from the merged knowledge text, always strictly fewer than the merged
// sentence count once there are more than two to pick from.
const summarySentenceCount = 2

// SelectAnchor picks the highest-scoring memory in a cluster — the one
// whose access count and confidence together best justify anchoring the
// abstraction (phase4_abstraction). An empty cluster is a caller error.
func SelectAnchor(cluster []model.BaseMemory) (model.BaseMemory, error) {
	const op = "consolidation.SelectAnchor"
	if len(cluster) == 0 {
		return model.BaseMemory{}, errs.New(errs.KindNotFound, op)
	}
	best := cluster[0]
	bestScore := anchorScore(best)
	for _, m := range cluster[1:] {
		if s := anchorScore(m); s > bestScore {
			best, bestScore = m, s
		}
	}
	return best, nil
}

func anchorScore(m model.BaseMemory) float64 {
	return float64(m.AccessCount+1) * m.Confidence
}

// AbstractCluster merges a cluster's episodic memories into one semantic
// knowledge statement: exact-duplicate sentences are dropped, a member
// whose embedding nearly duplicates an already-merged member's is skipped
// entirely (its information is assumed redundant), and confidence rises
// monotonically with cluster size since more corroborating episodes is
// stronger evidence for the same claim.
func AbstractCluster(cluster []model.BaseMemory, embeddings [][]float32) AbstractionResult {
	var sentences []string
	seenExact := make(map[string]bool)
	var keptIdx []int

	for i, m := range cluster {
		novel := true
		if i < len(embeddings) {
			for _, j := range keptIdx {
				if cosineSimilarity(embeddings[i], embeddings[j]) >= noveltyThreshold {
					novel = false
					break
				}
			}
		}
		if novel {
			for _, s := range splitSentences(memoryText(m)) {
				key := normalizeSentence(s)
				if key == "" || seenExact[key] {
					continue
				}
				seenExact[key] = true
				sentences = append(sentences, strings.TrimSpace(s))
			}
			if i < len(embeddings) {
				keptIdx = append(keptIdx, i)
			}
		}
	}

	sourceIDs := make([]string, len(cluster))
	var tags, patterns, constraints, files, functions []string
	for i, m := range cluster {
		sourceIDs[i] = m.ID
		tags = append(tags, m.Tags...)
		patterns = append(patterns, m.LinkedPatterns...)
		constraints = append(constraints, m.LinkedConstraints...)
		files = append(files, m.LinkedFiles...)
		functions = append(functions, m.LinkedFunctions...)
	}

	return AbstractionResult{
		Knowledge:         strings.Join(sentences, ". "),
		SourceEpisodes:    sourceIDs,
		Confidence:        clusterConfidence(cluster),
		Tags:              unionStrings(tags),
		LinkedPatterns:    unionStrings(patterns),
		LinkedConstraints: unionStrings(constraints),
		LinkedFiles:       unionStrings(files),
		LinkedFunctions:   unionStrings(functions),
	}
}

// clusterConfidence blends the cluster's average stored confidence with a
// corroboration boost that grows with cluster size but never reaches 1,
// so consolidate(N+1 episodes) never produces a lower confidence than
// consolidate(N episodes) of the same topic.
func clusterConfidence(cluster []model.BaseMemory) float64 {
	if len(cluster) == 0 {
		return 0
	}
	var sum float64
	for _, m := range cluster {
		sum += m.Confidence
	}
	avg := sum / float64(len(cluster))
	n := float64(len(cluster))
	corroboration := n / (2 + n)
	return clamp01(avg*0.5 + corroboration*0.5)
}

// BuildSemanticMemory turns an AbstractionResult into a persistable
// MemorySemantic BaseMemory, preserving only links that existed on at
// least one input memory and summarizing via TextRank so the summary is
// never longer than the merged knowledge it was extracted from.
func BuildSemanticMemory(result AbstractionResult) (model.BaseMemory, error) {
	const op = "consolidation.BuildSemanticMemory"
	content := SemanticContent{
		Knowledge:               result.Knowledge,
		SourceEpisodes:          result.SourceEpisodes,
		ConsolidationConfidence: result.Confidence,
	}
	payload, err := marshalContent(content)
	if err != nil {
		return model.BaseMemory{}, errs.Wrap(errs.KindDeserialization, op, err)
	}

	summary := textrank.Summarize(result.Knowledge, summarySentenceCount)
	return model.BaseMemory{
		MemoryType:        model.MemorySemantic,
		Content:           payload,
		Summary:           summary,
		Confidence:        result.Confidence,
		Importance:        model.ImportanceMedium,
		LinkedPatterns:    result.LinkedPatterns,
		LinkedConstraints: result.LinkedConstraints,
		LinkedFiles:       result.LinkedFiles,
		LinkedFunctions:   result.LinkedFunctions,
		Tags:              result.Tags,
	}, nil
}
