package consolidation

import "cortexstore/internal/model"

// similarityThreshold is how close two embeddings (by cosine similarity)
// must be to count as neighbors during density clustering.
const similarityThreshold = 0.5

// minClusterSize is the smallest neighborhood (self included) that forms a
// cluster core point; points that never reach it fall into the noise
// bucket rather than a singleton cluster.
const minClusterSize = 2

// ClusterCandidates runs a density-based clustering pass over candidates'
// embeddings (phase2_clustering), grouping points whose neighborhoods
// overlap and leaving the rest in result.Noise. Noise is a pending bucket,
// never a discard: every candidate index appears exactly once across
// Clusters and Noise combined.
func ClusterCandidates(candidates []model.BaseMemory, embeddings [][]float32) ClusterResult {
	n := len(candidates)
	visited := make([]bool, n)
	assigned := make([]bool, n)
	var clusters [][]int

	neighborsOf := func(i int) []int {
		var nb []int
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if cosineSimilarity(embeddings[i], embeddings[j]) >= similarityThreshold {
				nb = append(nb, j)
			}
		}
		return nb
	}

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true
		neighbors := neighborsOf(i)
		if len(neighbors) < minClusterSize-1 {
			continue
		}

		cluster := []int{i}
		assigned[i] = true
		queue := append([]int{}, neighbors...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if assigned[j] {
				continue
			}
			assigned[j] = true
			cluster = append(cluster, j)
			if !visited[j] {
				visited[j] = true
				jn := neighborsOf(j)
				if len(jn) >= minClusterSize-1 {
					queue = append(queue, jn...)
				}
			}
		}
		clusters = append(clusters, cluster)
	}

	var noise []int
	for i := 0; i < n; i++ {
		if !assigned[i] {
			noise = append(noise, i)
		}
	}
	return ClusterResult{Clusters: clusters, Noise: noise}
}
