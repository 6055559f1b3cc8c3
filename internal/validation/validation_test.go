package validation

import (
	"testing"
	"time"

	"cortexstore/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memFixture(id string, mtype model.MemoryType, summary string, tags []string) model.BaseMemory {
	now := time.Now()
	return model.BaseMemory{
		ID:              id,
		MemoryType:      mtype,
		Summary:         summary,
		Tags:            tags,
		TransactionTime: now,
		ValidTime:       now,
		Confidence:      0.8,
		Importance:      model.ImportanceMedium,
	}
}

func TestValidateTemporalFreshNoExpiry(t *testing.T) {
	mem := memFixture("m1", model.MemoryEpisodic, "fresh memory", nil)
	result := ValidateTemporal(mem, time.Now())
	assert.GreaterOrEqual(t, result.Score, 0.8)
	assert.Empty(t, result.HealingActions)
}

func TestValidateTemporalExpiredTriggersArchive(t *testing.T) {
	mem := memFixture("m1", model.MemoryEpisodic, "stale memory", nil)
	expired := time.Now().Add(-30 * 24 * time.Hour)
	mem.ValidUntil = &expired
	result := ValidateTemporal(mem, time.Now())
	assert.Less(t, result.Score, 0.5)
	require.Len(t, result.HealingActions, 1)
	assert.Equal(t, HealingArchive, result.HealingActions[0].ActionType)
}

func TestValidateTemporalCoreNoExpiryStillScoresWell(t *testing.T) {
	mem := memFixture("m1", model.MemoryCore, "durable rule", nil)
	result := ValidateTemporal(mem, time.Now())
	assert.GreaterOrEqual(t, result.Score, 0.5)
}

func TestValidateCitationAllFilesExist(t *testing.T) {
	mem := memFixture("m1", model.MemoryTribal, "uses config.go", nil)
	mem.LinkedFiles = []string{"internal/config/config.go"}
	checker := func(path string) *FileInfo { return &FileInfo{TotalLines: 100} }
	rename := func(string) string { return "" }
	result := ValidateCitation(mem, checker, rename)
	assert.Equal(t, 1.0, result.Score)
	assert.Empty(t, result.HealingActions)
}

func TestValidateCitationMissingFileFlagsForReview(t *testing.T) {
	mem := memFixture("m1", model.MemoryTribal, "uses gone.go", nil)
	mem.LinkedFiles = []string{"internal/gone.go"}
	checker := func(string) *FileInfo { return nil }
	rename := func(string) string { return "" }
	result := ValidateCitation(mem, checker, rename)
	assert.Equal(t, 0.0, result.Score)
	require.Len(t, result.HealingActions, 1)
	assert.Equal(t, HealingFlagForReview, result.HealingActions[0].ActionType)
}

func TestValidateCitationRenamedFileTriggersCitationUpdate(t *testing.T) {
	mem := memFixture("m1", model.MemoryTribal, "uses old.go", nil)
	mem.LinkedFiles = []string{"internal/old.go"}
	checker := func(string) *FileInfo { return nil }
	rename := func(path string) string {
		if path == "internal/old.go" {
			return "internal/new.go"
		}
		return ""
	}
	result := ValidateCitation(mem, checker, rename)
	require.Len(t, result.HealingActions, 1)
	assert.Equal(t, HealingCitationUpdate, result.HealingActions[0].ActionType)
}

func TestValidateCitationNoLinkedFilesScoresFull(t *testing.T) {
	mem := memFixture("m1", model.MemoryTribal, "no citations here", nil)
	result := ValidateCitation(mem, func(string) *FileInfo { return nil }, func(string) string { return "" })
	assert.Equal(t, 1.0, result.Score)
}

func TestUpdateCitationsRewritesOnlyFileLinks(t *testing.T) {
	mem := memFixture("m1", model.MemoryTribal, "uses old.go and OldFunc", nil)
	mem.LinkedFiles = []string{"internal/old.go"}
	mem.LinkedFunctions = []string{"OldFunc"}
	count := UpdateCitations(&mem, func(path string) string {
		if path == "internal/old.go" {
			return "internal/new.go"
		}
		return ""
	})
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"internal/new.go"}, mem.LinkedFiles)
	assert.Equal(t, []string{"OldFunc"}, mem.LinkedFunctions)
}

func TestValidatePatternAlignmentMissingPatternFlags(t *testing.T) {
	mem := memFixture("m1", model.MemoryTribal, "follows repository pattern", nil)
	mem.LinkedPatterns = []string{"pattern-repo"}
	checker := func(string) PatternInfo { return PatternInfo{Exists: false} }
	result := ValidatePatternAlignment(mem, checker)
	assert.Equal(t, 0.0, result.Score)
	require.Len(t, result.HealingActions, 1)
	assert.Equal(t, HealingFlagForReview, result.HealingActions[0].ActionType)
}

func TestValidatePatternAlignmentWeightsByConfidence(t *testing.T) {
	mem := memFixture("m1", model.MemoryTribal, "follows repository pattern", nil)
	mem.LinkedPatterns = []string{"pattern-repo"}
	conf := 0.6
	checker := func(string) PatternInfo { return PatternInfo{Exists: true, Confidence: &conf} }
	result := ValidatePatternAlignment(mem, checker)
	assert.Equal(t, 0.6, result.Score)
}

func TestDetectOpposingAlwaysNeverStatements(t *testing.T) {
	a := memFixture("a", model.MemoryTribal, "always use context.Context for cancellation", []string{"go"})
	b := memFixture("b", model.MemoryTribal, "never use context.Context for cancellation", []string{"go"})
	c := DetectAll(a, b, nil)
	require.NotNil(t, c)
	assert.Equal(t, ContradictionDirect, c.Type)
}

func TestDetectOpposingStatementsRequiresOverlap(t *testing.T) {
	a := memFixture("a", model.MemoryTribal, "always validate user input", []string{"go"})
	b := memFixture("b", model.MemoryTribal, "never deploy on fridays", []string{"go"})
	// Same valid time, so the shared tag does not read as a supersession.
	b.ValidTime = a.ValidTime
	c := DetectAll(a, b, nil)
	assert.Nil(t, c)
}

func TestDetectTemporalSupersessionExplicit(t *testing.T) {
	a := memFixture("a", model.MemoryTribal, "old rule", nil)
	b := memFixture("b", model.MemoryTribal, "new rule", nil)
	b.Supersedes = "a"
	c := DetectAll(a, b, nil)
	require.NotNil(t, c)
	assert.Equal(t, ContradictionSupersession, c.Type)
}

func TestDetectTemporalSupersessionBySharedTagsAndTime(t *testing.T) {
	a := memFixture("a", model.MemoryTribal, "use library X for HTTP", []string{"http"})
	b := memFixture("b", model.MemoryTribal, "use library Y for HTTP", []string{"http"})
	b.ValidTime = a.ValidTime.Add(time.Hour)
	c := DetectAll(a, b, nil)
	require.NotNil(t, c)
	assert.Equal(t, ContradictionSupersession, c.Type)
}

func TestDetectFeedbackContradiction(t *testing.T) {
	tribal := memFixture("t1", model.MemoryTribal, "use the singleton pattern here", []string{"pattern"})
	feedback := memFixture("f1", model.MemoryFeedback, "", []string{"pattern"})
	feedback.Content = []byte(`{"feedback":"this is an anti-pattern, avoid it","source":"reviewer"}`)
	c := DetectAll(tribal, feedback, nil)
	require.NotNil(t, c)
	assert.Equal(t, ContradictionFeedback, c.Type)
}

func TestDetectCrossPatternContradiction(t *testing.T) {
	a := memFixture("a", model.MemoryTribal, "pattern-singleton is a good choice here", nil)
	a.LinkedPatterns = []string{"pattern-singleton"}
	b := memFixture("b", model.MemoryTribal, "pattern-singleton is an anti-pattern in this codebase", nil)
	b.LinkedPatterns = []string{"pattern-singleton"}
	c := DetectAll(a, b, nil)
	require.NotNil(t, c)
	assert.Equal(t, ContradictionCrossPattern, c.Type)
}

func TestDetectAllExhaustiveReturnsMultiple(t *testing.T) {
	a := memFixture("a", model.MemoryTribal, "always use pattern-x, it is good", []string{"go"})
	a.LinkedPatterns = []string{"pattern-x"}
	b := memFixture("b", model.MemoryTribal, "never use pattern-x, it is an anti-pattern", []string{"go"})
	b.LinkedPatterns = []string{"pattern-x"}
	all := DetectAllExhaustive(a, b, nil)
	assert.GreaterOrEqual(t, len(all), 1)
}

func TestBaseDeltaOrdering(t *testing.T) {
	assert.Less(t, BaseDelta(ContradictionDirect), BaseDelta(ContradictionSupersession))
	assert.Less(t, BaseDelta(ContradictionSupersession), BaseDelta(ContradictionFeedback))
	assert.Less(t, BaseDelta(ContradictionFeedback), BaseDelta(ContradictionCrossPattern))
}

func TestPropagateAppliesBaseDeltaAtSource(t *testing.T) {
	adjustments := Propagate([]string{"m1"}, ContradictionDirect, nil, nil)
	require.Len(t, adjustments, 1)
	assert.Equal(t, BaseDelta(ContradictionDirect), adjustments[0].Delta)
	assert.Equal(t, 0, adjustments[0].Depth)
}

func TestPropagateDecaysOverHops(t *testing.T) {
	edges := []RelationshipEdge{
		{SourceID: "m1", TargetID: "m2", RelationshipType: RelationshipRelated, Strength: 1.0},
		{SourceID: "m2", TargetID: "m3", RelationshipType: RelationshipRelated, Strength: 1.0},
	}
	adjustments := Propagate([]string{"m1"}, ContradictionDirect, edges, nil)
	byID := make(map[string]Adjustment)
	for _, a := range adjustments {
		byID[a.MemoryID] = a
	}
	require.Contains(t, byID, "m2")
	require.Contains(t, byID, "m3")
	assert.Greater(t, byID["m2"].Delta, byID["m1"].Delta) // decayed magnitude is smaller
	assert.Greater(t, byID["m3"].Delta, byID["m2"].Delta)
	assert.Equal(t, 1, byID["m2"].Depth)
	assert.Equal(t, 2, byID["m3"].Depth)
}

func TestPropagateRespectsMaxDepth(t *testing.T) {
	edges := []RelationshipEdge{
		{SourceID: "m1", TargetID: "m2", RelationshipType: RelationshipRelated, Strength: 1.0},
		{SourceID: "m2", TargetID: "m3", RelationshipType: RelationshipRelated, Strength: 1.0},
		{SourceID: "m3", TargetID: "m4", RelationshipType: RelationshipRelated, Strength: 1.0},
		{SourceID: "m4", TargetID: "m5", RelationshipType: RelationshipRelated, Strength: 1.0},
	}
	adjustments := Propagate([]string{"m1"}, ContradictionDirect, edges, nil)
	byID := make(map[string]bool)
	for _, a := range adjustments {
		byID[a.MemoryID] = true
	}
	assert.False(t, byID["m5"], "delta should not reach beyond maxPropagationDepth hops")
}

func TestPropagateKeepsMostNegativeOnMultiplePaths(t *testing.T) {
	edges := []RelationshipEdge{
		{SourceID: "m1", TargetID: "m2", RelationshipType: RelationshipRelated, Strength: 0.2},
		{SourceID: "m3", TargetID: "m2", RelationshipType: RelationshipRelated, Strength: 1.0},
	}
	a := Propagate([]string{"m1", "m3"}, ContradictionDirect, edges, nil)
	byID := make(map[string]Adjustment)
	for _, adj := range a {
		byID[adj.MemoryID] = adj
	}
	require.Contains(t, byID, "m2")
	// The path through m3 (strength 1.0) yields a more negative delta than
	// the path through m1 (strength 0.2), so it should win.
	assert.InDelta(t, BaseDelta(ContradictionDirect)*1.0*propagationDecay, byID["m2"].Delta, 1e-9)
}

func TestDetectConsensusGroupsOverlappingMemories(t *testing.T) {
	a := memFixture("a", model.MemoryTribal, "use dependency injection for testability", []string{"go", "testing"})
	b := memFixture("b", model.MemoryTribal, "use dependency injection for testability here", []string{"go", "testing"})
	c := memFixture("c", model.MemoryTribal, "unrelated content about deployments", []string{"ops"})
	groups := DetectConsensus([]model.BaseMemory{a, b, c})
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, groups[0].MemberIDs)
	assert.True(t, IsInConsensus("a", groups))
	assert.False(t, IsInConsensus("c", groups))
}

func TestDetectConsensusNoGroupsBelowMinSize(t *testing.T) {
	a := memFixture("a", model.MemoryTribal, "one of a kind observation", []string{"x"})
	groups := DetectConsensus([]model.BaseMemory{a})
	assert.Empty(t, groups)
}

func TestShouldArchiveBelowThreshold(t *testing.T) {
	mem := memFixture("m1", model.MemoryEpisodic, "low confidence", nil)
	mem.Confidence = 0.1
	assert.True(t, ShouldArchive(mem, archivalConfidenceThreshold))
}

func TestArchiveZeroesConfidence(t *testing.T) {
	mem := memFixture("m1", model.MemoryEpisodic, "to archive", nil)
	Archive(&mem)
	assert.True(t, mem.Archived)
	assert.Equal(t, 0.0, mem.Confidence)
}

func TestApplyDeltaFloorClampsAtZero(t *testing.T) {
	result := ApplyDelta(0.1, -0.5)
	assert.Equal(t, 0.0, result)
}

func TestApplyDeltaCapsAtOne(t *testing.T) {
	result := ApplyDelta(0.9, 0.5)
	assert.Equal(t, 1.0, result)
}

func TestAdjustScalesDeltaByStrength(t *testing.T) {
	mem := memFixture("m1", model.MemoryEpisodic, "x", nil)
	mem.Confidence = 0.8
	result := Adjust(mem, -0.3, 0.5)
	assert.InDelta(t, 0.65, result, 1e-9)
}

func TestFlagForReviewSeverityTiers(t *testing.T) {
	assert.Equal(t, ReviewLow, FlagForReview(0.9, 0.9, 0.9, 0.9))
	assert.Equal(t, ReviewLow, FlagForReview(0.2, 0.9, 0.9, 0.9))
	assert.Equal(t, ReviewMedium, FlagForReview(0.2, 0.2, 0.9, 0.9))
	assert.Equal(t, ReviewHigh, FlagForReview(0.2, 0.2, 0.2, 0.9))
}

func TestCollectRefreshRequestsOnCitationUpdate(t *testing.T) {
	actions := []HealingAction{
		{ActionType: HealingCitationUpdate, MemoryID: "m1"},
		{ActionType: HealingFlagForReview, MemoryID: "m2"},
	}
	refresh := CollectRefreshRequests(actions)
	require.Len(t, refresh, 1)
	assert.Equal(t, "m1", refresh[0].MemoryID)
	assert.Equal(t, HealingEmbeddingRefresh, refresh[0].ActionType)
}

func TestValidateBasicScoresFreshMemoryAsPassing(t *testing.T) {
	engine := DefaultEngine()
	mem := memFixture("m1", model.MemoryEpisodic, "a fresh memory", nil)
	result := engine.ValidateBasic(mem)
	assert.True(t, result.Passed)
}

func TestValidateWithContextFailsOnMissingFile(t *testing.T) {
	engine := DefaultEngine()
	mem := memFixture("m1", model.MemoryTribal, "documents gone.go", nil)
	mem.LinkedFiles = []string{"internal/gone.go"}
	result := engine.ValidateWithContext(mem, ValidationContext{
		FileChecker:    func(string) *FileInfo { return nil },
		RenameDetector: func(string) string { return "" },
		PatternChecker: func(string) PatternInfo { return PatternInfo{Exists: true} },
	})
	assert.Less(t, result.DimensionScores.Citation, 1.0)
	assert.NotEmpty(t, result.HealingActions)
}

func TestValidateWithContextDetectsContradictionAgainstRelated(t *testing.T) {
	engine := DefaultEngine()
	a := memFixture("a", model.MemoryTribal, "always use pattern-x here", nil)
	b := memFixture("b", model.MemoryTribal, "never use pattern-x here", nil)
	result := engine.ValidateWithContext(a, ValidationContext{
		RelatedMemories: []model.BaseMemory{b},
		FileChecker:     func(string) *FileInfo { return nil },
		RenameDetector:  func(string) string { return "" },
		PatternChecker:  func(string) PatternInfo { return PatternInfo{Exists: true} },
	})
	assert.Less(t, result.DimensionScores.ContradictionFree, 1.0)
}

func TestValidateWithContextNoContradictionsScoresFull(t *testing.T) {
	engine := DefaultEngine()
	a := memFixture("a", model.MemoryTribal, "use retries with backoff", nil)
	b := memFixture("b", model.MemoryTribal, "unrelated fact about deployments", nil)
	result := engine.ValidateWithContext(a, ValidationContext{
		RelatedMemories: []model.BaseMemory{b},
		FileChecker:     func(string) *FileInfo { return nil },
		RenameDetector:  func(string) string { return "" },
		PatternChecker:  func(string) PatternInfo { return PatternInfo{Exists: true} },
	})
	assert.Equal(t, 1.0, result.DimensionScores.ContradictionFree)
}
