package validation

import (
	"encoding/json"
	"strings"

	"cortexstore/internal/model"
)

// ContradictionDetector runs every detection strategy pairwise across a
// memory set, optionally propagating each finding's confidence impact
// through a relationship graph.
type ContradictionDetector struct{}

// NewContradictionDetector constructs a ContradictionDetector. It carries
// no state; the zero value works identically.
func NewContradictionDetector() ContradictionDetector { return ContradictionDetector{} }

// Detect checks every pair in memories with DetectAll. similarity, when
// non-nil, is the embedding similarity to use for pairs where
// DetectTemporalSupersession's tag/explicit checks don't already decide.
func (ContradictionDetector) Detect(memories []model.BaseMemory, similarity *float64) []Contradiction {
	var out []Contradiction
	for i := 0; i < len(memories); i++ {
		for j := i + 1; j < len(memories); j++ {
			if c := DetectAll(memories[i], memories[j], similarity); c != nil {
				out = append(out, *c)
			}
		}
	}
	return out
}

// DetectAndPropagate runs Detect and then walks each finding's confidence
// impact outward through edges, returning both the raw findings and the
// resulting per-memory adjustments.
func (d ContradictionDetector) DetectAndPropagate(memories []model.BaseMemory, edges []RelationshipEdge, similarity *float64) ([]Contradiction, []Adjustment) {
	contradictions := d.Detect(memories, similarity)
	var adjustments []Adjustment
	for _, c := range contradictions {
		adjustments = append(adjustments, Propagate([]string{c.MemoryA, c.MemoryB}, c.Type, edges, nil)...)
	}
	return contradictions, adjustments
}

// DetectAll returns the first contradiction any strategy finds between a
// and b, or nil if none fires.
func DetectAll(a, b model.BaseMemory, similarity *float64) *Contradiction {
	all := DetectAllExhaustive(a, b, similarity)
	if len(all) == 0 {
		return nil
	}
	return &all[0]
}

// DetectAllExhaustive runs every detection strategy on the pair and
// returns every contradiction found, instead of stopping at the first.
func DetectAllExhaustive(a, b model.BaseMemory, similarity *float64) []Contradiction {
	var out []Contradiction
	if c := detectOpposingStatements(a, b); c != nil {
		out = append(out, *c)
	}
	if c := DetectTemporalSupersession(a, b, similarity); c != nil {
		out = append(out, *c)
	}
	if c := DetectFeedbackContradiction(a, b); c != nil {
		out = append(out, *c)
	}
	if c := DetectCrossPatternContradiction(a, b); c != nil {
		out = append(out, *c)
	}
	return out
}

// detectOpposingStatements finds the "Always X" vs "Never X" shape: two
// Tribal memories whose summaries agree on everything except an
// always/never polarity flip.
func detectOpposingStatements(a, b model.BaseMemory) *Contradiction {
	if a.MemoryType != model.MemoryTribal || b.MemoryType != model.MemoryTribal {
		return nil
	}
	la, lb := strings.ToLower(a.Summary), strings.ToLower(b.Summary)
	aAlways, aNever := strings.Contains(la, "always"), strings.Contains(la, "never")
	bAlways, bNever := strings.Contains(lb, "always"), strings.Contains(lb, "never")
	if !((aAlways && bNever) || (aNever && bAlways)) {
		return nil
	}
	replacer := strings.NewReplacer("always", "", "never", "")
	if wordOverlapRatio(replacer.Replace(la), replacer.Replace(lb)) < 0.5 {
		return nil
	}
	return &Contradiction{
		MemoryA: a.ID, MemoryB: b.ID,
		Type:        ContradictionDirect,
		Description: "opposing always/never statements",
	}
}

// supersessionSimilarityThreshold is how similar two embeddings must be,
// on their own, to imply one memory supersedes the other.
const supersessionSimilarityThreshold = 0.9

// DetectTemporalSupersession finds pairs where b looks like a later
// revision of a: same memory type, and either an explicit Supersedes
// link, shared tags with b the more recent, or high embedding similarity
// with b the more recent.
func DetectTemporalSupersession(a, b model.BaseMemory, similarity *float64) *Contradiction {
	if a.MemoryType != b.MemoryType {
		return nil
	}
	if b.Supersedes == a.ID {
		return &Contradiction{
			MemoryA: a.ID, MemoryB: b.ID,
			Type:        ContradictionSupersession,
			Description: "Explicit supersession of " + a.ID + " by " + b.ID,
		}
	}
	if !b.ValidTime.After(a.ValidTime) {
		return nil
	}
	if sharesTag(a, b) {
		return &Contradiction{
			MemoryA: a.ID, MemoryB: b.ID,
			Type:        ContradictionSupersession,
			Description: "shared tags with a later valid_time suggest supersession",
		}
	}
	if similarity != nil && *similarity >= supersessionSimilarityThreshold {
		return &Contradiction{
			MemoryA: a.ID, MemoryB: b.ID,
			Type:        ContradictionSupersession,
			Description: "high embedding similarity with a later valid_time suggests supersession",
		}
	}
	return nil
}

// FeedbackContent is the typed payload a MemoryFeedback BaseMemory's
// Content carries.
type FeedbackContent struct {
	Feedback string `json:"feedback"`
	Source   string `json:"source"`
	Category string `json:"category"`
}

var negativeFeedbackWords = []string{
	"wrong", "outdated", "anti-pattern", "bad", "incorrect", "avoid", "broken", "doesn't work",
}

// DetectFeedbackContradiction finds a Feedback memory expressing negative
// sentiment about a tagged-related Tribal/rule memory.
func DetectFeedbackContradiction(a, b model.BaseMemory) *Contradiction {
	feedback, other, ok := pickFeedback(a, b)
	if !ok {
		return nil
	}
	if !sharesTag(feedback, other) {
		return nil
	}
	if !matchesAny(feedbackText(feedback), negativeFeedbackWords) {
		return nil
	}
	return &Contradiction{
		MemoryA: other.ID, MemoryB: feedback.ID,
		Type:        ContradictionFeedback,
		Description: "negative feedback contradicts " + other.ID,
	}
}

func pickFeedback(a, b model.BaseMemory) (feedback, other model.BaseMemory, ok bool) {
	if a.MemoryType == model.MemoryFeedback && b.MemoryType != model.MemoryFeedback {
		return a, b, true
	}
	if b.MemoryType == model.MemoryFeedback && a.MemoryType != model.MemoryFeedback {
		return b, a, true
	}
	return model.BaseMemory{}, model.BaseMemory{}, false
}

func feedbackText(mem model.BaseMemory) string {
	var fc FeedbackContent
	if len(mem.Content) > 0 {
		if err := json.Unmarshal(mem.Content, &fc); err == nil && fc.Feedback != "" {
			return fc.Feedback
		}
	}
	return mem.Summary
}

var positivePatternWords = []string{"good", "recommended", "best practice", "preferred"}
var negativePatternWords = []string{"bad", "anti-pattern", "avoid", "discouraged"}

// DetectCrossPatternContradiction finds two memories that link the same
// pattern but express opposing sentiment about it.
func DetectCrossPatternContradiction(a, b model.BaseMemory) *Contradiction {
	shared := sharedPattern(a.LinkedPatterns, b.LinkedPatterns)
	if shared == "" {
		return nil
	}
	aPos, aNeg := matchesAny(a.Summary, positivePatternWords), matchesAny(a.Summary, negativePatternWords)
	bPos, bNeg := matchesAny(b.Summary, positivePatternWords), matchesAny(b.Summary, negativePatternWords)
	if !((aPos && bNeg) || (aNeg && bPos)) {
		return nil
	}
	return &Contradiction{
		MemoryA: a.ID, MemoryB: b.ID,
		Type:        ContradictionCrossPattern,
		Description: "opposing sentiment on shared pattern " + shared,
	}
}

func sharedPattern(a, b []string) string {
	set := tagSet(a)
	for _, p := range b {
		if set[p] {
			return p
		}
	}
	return ""
}
