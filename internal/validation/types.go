// Package validation implements the Validation / Healing subsystem
// (§4.11): four per-memory validation dimensions, pairwise and
// graph-propagated contradiction detection, consensus grouping, and the
// healing actions (archival, confidence adjustment, review flagging,
// citation repair, embedding refresh) those checks feed into.
package validation

import "cortexstore/internal/model"

// DimensionResult is the [0,1] score plus healing actions one validation
// dimension produces for one memory.
type DimensionResult struct {
	Score          float64
	HealingActions []HealingAction
}

// HealingActionType enumerates the kinds of remediation a validation
// dimension or contradiction check can recommend.
type HealingActionType string

const (
	HealingArchive          HealingActionType = "archive"
	HealingConfidenceAdjust HealingActionType = "confidence_adjust"
	HealingFlagForReview    HealingActionType = "flag_for_review"
	HealingCitationUpdate   HealingActionType = "citation_update"
	HealingEmbeddingRefresh HealingActionType = "embedding_refresh"
)

// HealingAction is one recommended remediation, carrying enough context for
// whatever executes it to act without re-deriving why.
type HealingAction struct {
	ActionType HealingActionType
	MemoryID   string
	Reason     string
}

// ContradictionType enumerates how two memories were found to conflict,
// mirroring the sub-strategies in the contradiction detector.
type ContradictionType string

const (
	ContradictionDirect       ContradictionType = "direct"
	ContradictionSupersession ContradictionType = "supersession"
	ContradictionFeedback     ContradictionType = "feedback"
	ContradictionCrossPattern ContradictionType = "cross_pattern"
)

// Contradiction records one pairwise conflict found between two memories.
type Contradiction struct {
	MemoryA     string
	MemoryB     string
	Type        ContradictionType
	Description string
}

// RelationshipType enumerates how two memories relate, weighting how far a
// contradiction's confidence adjustment ripples through propagation.
type RelationshipType string

const (
	RelationshipSupports RelationshipType = "supports"
	RelationshipRelated  RelationshipType = "related"
	RelationshipConflicts RelationshipType = "conflicts"
)

// RelationshipEdge is a directed, weighted link between two memories that
// propagation walks outward from a contradiction's source.
type RelationshipEdge struct {
	SourceID         string
	TargetID         string
	RelationshipType RelationshipType
	Strength         float64
	Evidence         []string
}

// Adjustment is one confidence delta propagation recommends for a memory,
// at some depth from the contradiction's source.
type Adjustment struct {
	MemoryID string
	Delta    float64
	Depth    int
}

// ConsensusGroup is a set of memories consensus::detect_consensus judges to
// agree with each other.
type ConsensusGroup struct {
	MemberIDs []string
}

// ValidationConfig are the ValidationEngine's tunable pass/adjustment
// thresholds.
type ValidationConfig struct {
	PassThreshold      float64
	AdjustmentStrength float64
	ArchivalThreshold  float64
}

// DefaultValidationConfig returns the documented default thresholds.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{PassThreshold: 0.5, AdjustmentStrength: 0.3, ArchivalThreshold: 0.15}
}

// DimensionScores names each dimension's score from one validation pass.
type DimensionScores struct {
	Temporal          float64
	Citation          float64
	PatternAlignment  float64
	ContradictionFree float64
}

// ValidationResult is the outcome of validating one memory.
type ValidationResult struct {
	MemoryID        string
	Passed          bool
	OverallScore    float64
	DimensionScores DimensionScores
	HealingActions  []HealingAction
}

// SimilarityFunc computes an external embedding-based similarity between
// two memories, used where a dimension or detector needs it but the
// caller, not validation, owns the embedding store.
type SimilarityFunc func(a, b model.BaseMemory) float64

// FileChecker reports what's known about a linked file path, or nil if it
// no longer exists.
type FileChecker func(path string) *FileInfo

// RenameDetector reports the new path a since-moved file now lives at, or
// "" if no rename was detected for path.
type RenameDetector func(path string) string

// FileInfo is what a FileChecker reports about a linked file.
type FileInfo struct {
	ContentHash string // empty if unknown
	TotalLines  int    // 0 if unknown
}

// PatternChecker reports what's known about a linked pattern id.
type PatternChecker func(patternID string) PatternInfo

// PatternInfo is what a PatternChecker reports about a linked pattern.
type PatternInfo struct {
	Exists     bool
	Confidence *float64
}

// ValidationContext supplies validate_with_context everything the richer
// dimensions need that a bare memory can't provide on its own.
type ValidationContext struct {
	RelatedMemories []model.BaseMemory
	AllMemories     []model.BaseMemory
	FileChecker     FileChecker
	RenameDetector  RenameDetector
	PatternChecker  PatternChecker
	SimilarityFn    SimilarityFunc
}
