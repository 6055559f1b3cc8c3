package consolidation

import (
	"context"

	"cortexstore/internal/logging"
	"cortexstore/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// maxConcurrentEmbeddings bounds how many embedding calls the engine issues
// at once, so a large consolidation batch can't flood an external
// embedding provider.
const maxConcurrentEmbeddings = 8

// Embedder produces a fixed-dimension vector for a piece of text. Swapping
// implementations (a local model, a hosted API, the deterministic test
// embedder) never changes the pipeline's behavior beyond the vectors
// themselves.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ConsolidationEngine runs the full five-phase pipeline over a batch of
// memories. It holds no mutable state between calls beyond its embedder
// and concurrency limiter, so Consolidate is safe to call concurrently and
// is deterministic given the same inputs.
type ConsolidationEngine struct {
	embedder Embedder
	log      *zap.Logger
	sem      *semaphore.Weighted
}

// NewEngine constructs a ConsolidationEngine backed by embedder.
func NewEngine(embedder Embedder) *ConsolidationEngine {
	return &ConsolidationEngine{
		embedder: embedder,
		log:      logging.Get(logging.CategoryConsolidation),
		sem:      semaphore.NewWeighted(maxConcurrentEmbeddings),
	}
}

// Consolidate runs selection, clustering, recall gating, abstraction, and
// integration over memories, comparing any newly abstracted semantic
// memory against existing for dedup. It is idempotent: memories with no
// episodic candidates (e.g. an all-semantic input) always produce an empty
// Result, and deterministic given the same memories/existing.
func (e *ConsolidationEngine) Consolidate(ctx context.Context, memories []model.BaseMemory, existing []ExistingSemantic) (Result, error) {
	candidates := SelectCandidates(memories)
	if len(candidates) == 0 {
		return Result{}, nil
	}

	embeddings, err := e.embedAll(ctx, candidates)
	if err != nil {
		return Result{}, err
	}

	clusterResult := ClusterCandidates(candidates, embeddings)

	var created []model.BaseMemory
	var archived []string
	var recallScores []float64

	for _, idxs := range clusterResult.Clusters {
		clusterMems := make([]model.BaseMemory, len(idxs))
		clusterEmbs := make([][]float32, len(idxs))
		for j, idx := range idxs {
			clusterMems[j] = candidates[idx]
			clusterEmbs[j] = embeddings[idx]
		}

		recall, err := CheckRecall(clusterMems, clusterEmbs, embeddings)
		if err != nil {
			return Result{}, err
		}
		recallScores = append(recallScores, recall.Score)
		if !recall.Passed {
			continue
		}

		abstraction := AbstractCluster(clusterMems, clusterEmbs)
		semantic, err := BuildSemanticMemory(abstraction)
		if err != nil {
			return Result{}, err
		}
		centroid := centroidOf(clusterEmbs)
		action := DetermineAction(semantic, centroid, existing)

		switch action.Kind {
		case ActionCreate:
			created = append(created, action.Merged)
			archived = append(archived, idsOf(clusterMems)...)
		case ActionUpdate:
			created = append(created, action.Merged)
			archived = append(archived, idsOf(clusterMems)...)
		case ActionSkip:
		}
	}

	metrics := computeMetrics(candidates, created, recallScores)
	if assessment := AssessQuality(metrics); !assessment.OverallPass {
		e.log.Warn("consolidation run failed quality gate", zap.Strings("issues", assessment.Issues))
	}

	return Result{Created: created, Archived: archived, Metrics: metrics}, nil
}

func (e *ConsolidationEngine) embedAll(ctx context.Context, candidates []model.BaseMemory) ([][]float32, error) {
	embeddings := make([][]float32, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range candidates {
		i, m := i, m
		if err := e.sem.Acquire(gctx, 1); err != nil {
			return nil, err
		}
		g.Go(func() error {
			defer e.sem.Release(1)
			v, err := e.embedder.Embed(gctx, memoryText(m))
			if err != nil {
				return err
			}
			embeddings[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

func idsOf(mems []model.BaseMemory) []string {
	ids := make([]string, len(mems))
	for i, m := range mems {
		ids[i] = m.ID
	}
	return ids
}

func centroidOf(embeddings [][]float32) []float32 {
	if len(embeddings) == 0 {
		return nil
	}
	dims := len(embeddings[0])
	sum := make([]float64, dims)
	for _, e := range embeddings {
		for i, v := range e {
			if i < dims {
				sum[i] += float64(v)
			}
		}
	}
	out := make([]float32, dims)
	for i, v := range sum {
		out[i] = float32(v / float64(len(embeddings)))
	}
	return out
}

// computeMetrics derives this run's quality metrics from the candidates
// considered, the semantic memories actually produced, and the recall
// score of every cluster, including clusters the recall gate rejected.
func computeMetrics(candidates []model.BaseMemory, created []model.BaseMemory, recallScores []float64) ConsolidationMetrics {
	var precision float64
	if len(recallScores) > 0 {
		var sum float64
		for _, s := range recallScores {
			sum += s
		}
		precision = sum / float64(len(recallScores))
	}

	compression := 0.0
	if len(created) > 0 {
		compression = float64(len(candidates)) / float64(len(created))
	}

	lift := 1.0
	if len(candidates) > 0 {
		lift = compression
	}

	return ConsolidationMetrics{
		Precision:        precision,
		CompressionRatio: compression,
		Lift:             lift,
		Stability:        1.0,
	}
}
