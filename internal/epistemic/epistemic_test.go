package epistemic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortexstore/internal/model"
)

func TestDetermineInitialStatusLabelsSource(t *testing.T) {
	now := time.Now()
	s := DetermineInitialStatus(model.ActorUser, "alice", now)
	assert.Equal(t, StateConjecture, s.Kind)
	assert.Equal(t, "user:alice", s.Source)
}

func TestFullPromotionPath(t *testing.T) {
	now := time.Now()
	s := DetermineInitialStatus(model.ActorUser, "alice", now)

	s, err := PromoteToProvisional(s, 3, now)
	require.NoError(t, err)
	assert.Equal(t, StateProvisional, s.Kind)
	assert.Equal(t, 3, s.EvidenceCount)

	s, err = PromoteToVerified(s, []string{"alice", "bob"}, []string{"ref-1"}, now)
	require.NoError(t, err)
	assert.Equal(t, StateVerified, s.Kind)
	assert.Equal(t, []string{"alice", "bob"}, s.VerifiedBy)

	s, err = DemoteToStale(s, "evidence decay", now)
	require.NoError(t, err)
	assert.Equal(t, StateStale, s.Kind)
	assert.Equal(t, "evidence decay", s.Reason)
}

func TestRejectedTransitions(t *testing.T) {
	now := time.Now()
	conjecture := DetermineInitialStatus(model.ActorUser, "alice", now)
	verified := Status{Kind: StateVerified, VerifiedAt: now}
	provisional := Status{Kind: StateProvisional, LastValidated: now}
	stale := Status{Kind: StateStale}

	_, err := PromoteToVerified(conjecture, nil, nil, now)
	assert.Error(t, err)

	_, err = PromoteToProvisional(verified, 5, now)
	assert.Error(t, err)

	_, err = DemoteToStale(provisional, "x", now)
	assert.Error(t, err)

	_, err = DemoteToStale(conjecture, "x", now)
	assert.Error(t, err)

	_, err = PromoteToVerified(stale, nil, nil, now)
	assert.Error(t, err)
}

func TestAggregateConfidenceWeightedAverage(t *testing.T) {
	got := AggregateConfidence([]float64{0.9, 0.3, 0.8}, WeightedAverage)
	assert.InDelta(t, (0.9+0.3+0.8)/3.0, got, 0.0001)

	assert.InDelta(t, 0.7, AggregateConfidence([]float64{0.7}, WeightedAverage), 0.0001)
	assert.Equal(t, 0.0, AggregateConfidence(nil, WeightedAverage))
}

func TestAggregateConfidenceGodelTNorm(t *testing.T) {
	got := AggregateConfidence([]float64{0.9, 0.3, 0.8}, GodelTNorm)
	assert.InDelta(t, 0.3, got, 0.0001)

	got = AggregateConfidence([]float64{0.9, 0.95, 0.85}, GodelTNorm)
	assert.InDelta(t, 0.85, got, 0.0001)

	assert.InDelta(t, 0.5, AggregateConfidence([]float64{0.5}, GodelTNorm), 0.0001)
	assert.Equal(t, 0.0, AggregateConfidence(nil, GodelTNorm))
}
