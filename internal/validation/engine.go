package validation

import (
	"time"

	"cortexstore/internal/logging"
	"cortexstore/internal/model"

	"go.uber.org/zap"
)

// ValidationEngine runs all four scoring dimensions plus contradiction
// detection over a memory and folds the result into one pass/fail verdict
// with any healing actions the dimensions recommend.
type ValidationEngine struct {
	config ValidationConfig
	log    *zap.Logger
}

// NewEngine constructs a ValidationEngine with the given config.
func NewEngine(config ValidationConfig) *ValidationEngine {
	return &ValidationEngine{config: config, log: logging.Get(logging.CategoryValidation)}
}

// DefaultEngine constructs a ValidationEngine using DefaultValidationConfig.
func DefaultEngine() *ValidationEngine {
	return NewEngine(DefaultValidationConfig())
}

// Config returns the engine's validation config.
func (e *ValidationEngine) Config() ValidationConfig {
	return e.config
}

// ValidateBasic scores mem against temporal freshness alone, for callers
// that have no file, pattern, or peer-memory context available.
func (e *ValidationEngine) ValidateBasic(mem model.BaseMemory) ValidationResult {
	temporal := ValidateTemporal(mem, time.Now())
	scores := DimensionScores{Temporal: temporal.Score, Citation: 1.0, PatternAlignment: 1.0, ContradictionFree: 1.0}
	overall := scores.Temporal
	return ValidationResult{
		MemoryID:        mem.ID,
		Passed:          overall >= e.config.PassThreshold,
		OverallScore:    overall,
		DimensionScores: scores,
		HealingActions:  temporal.HealingActions,
	}
}

// Validate scores mem with no peer memories, using checkers that report
// every linked file as missing and every linked pattern as absent; a middle ground between ValidateBasic and ValidateWithContext
// for callers that only have the memory itself.
func (e *ValidationEngine) Validate(mem model.BaseMemory) ValidationResult {
	return e.ValidateWithContext(mem, ValidationContext{
		FileChecker:    func(string) *FileInfo { return nil },
		RenameDetector: func(string) string { return "" },
		PatternChecker: func(string) PatternInfo { return PatternInfo{Exists: false} },
	})
}

// ValidateWithContext scores mem across all four dimensions plus
// contradiction-freeness against ctx.RelatedMemories, combining them into
// one overall score and the union of every dimension's healing actions.
func (e *ValidationEngine) ValidateWithContext(mem model.BaseMemory, ctx ValidationContext) ValidationResult {
	temporal := ValidateTemporal(mem, time.Now())
	citation := ValidateCitation(mem, ctx.FileChecker, ctx.RenameDetector)
	pattern := ValidatePatternAlignment(mem, ctx.PatternChecker)
	contradictionScore, contradictionHealing := e.contradictionScore(mem, ctx)

	scores := DimensionScores{
		Temporal:          temporal.Score,
		Citation:          citation.Score,
		PatternAlignment:  pattern.Score,
		ContradictionFree: contradictionScore,
	}
	overall := combine(scores)

	var healing []HealingAction
	healing = append(healing, temporal.HealingActions...)
	healing = append(healing, citation.HealingActions...)
	healing = append(healing, pattern.HealingActions...)
	healing = append(healing, contradictionHealing...)
	healing = append(healing, CollectRefreshRequests(healing)...)

	if ShouldArchive(mem, e.config.ArchivalThreshold) {
		healing = append(healing, HealingAction{ActionType: HealingArchive, MemoryID: mem.ID, Reason: "confidence below archival threshold"})
	}

	severity := FlagForReview(scores.Temporal, scores.Citation, scores.PatternAlignment, scores.ContradictionFree)
	if severity == ReviewHigh {
		healing = append(healing, HealingAction{ActionType: HealingFlagForReview, MemoryID: mem.ID, Reason: "multiple validation dimensions scored low"})
	}

	result := ValidationResult{
		MemoryID:        mem.ID,
		Passed:          overall >= e.config.PassThreshold,
		OverallScore:    overall,
		DimensionScores: scores,
		HealingActions:  healing,
	}
	if !result.Passed {
		e.log.Info("memory failed validation",
			zap.String("memory_id", mem.ID),
			zap.Float64("overall_score", overall),
			zap.Int("healing_actions", len(healing)),
		)
	}
	return result
}

// contradictionScore runs every detection strategy against mem's related
// memories and turns the worst base delta found into a [0,1] dimension
// score: no contradictions scores full marks, a direct contradiction
// drags it down hardest.
func (e *ValidationEngine) contradictionScore(mem model.BaseMemory, ctx ValidationContext) (float64, []HealingAction) {
	var worst float64
	var healing []HealingAction
	for _, other := range ctx.RelatedMemories {
		if other.ID == mem.ID {
			continue
		}
		var sim *float64
		if ctx.SimilarityFn != nil {
			s := ctx.SimilarityFn(mem, other)
			sim = &s
		}
		for _, c := range DetectAllExhaustive(mem, other, sim) {
			delta := BaseDelta(c.Type)
			if delta < worst {
				worst = delta
			}
			healing = append(healing, HealingAction{
				ActionType: HealingFlagForReview,
				MemoryID:   mem.ID,
				Reason:     "contradiction with " + other.ID + ": " + c.Description,
			})
		}
	}
	return clamp01(1.0 + worst), healing
}

// combine folds the four dimension scores into one overall score. Every
// dimension is weighted equally; contradiction-freeness carries no extra
// weight beyond its own [0,1] contribution.
func combine(s DimensionScores) float64 {
	return clamp01((s.Temporal + s.Citation + s.PatternAlignment + s.ContradictionFree) / 4.0)
}
