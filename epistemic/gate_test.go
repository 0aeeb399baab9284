package epistemic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rand/loop/memory"
)

func establishedNode(confidence float64) *memory.Node {
	node := memory.NewNode(memory.NodeFact, "established fact").
		WithTier(memory.TierLongTerm).
		WithConfidence(confidence)
	node.RecordAccess()
	return node
}

func TestGateAdmitsConfidentNode(t *testing.T) {
	gate := NewGate(DefaultGateConfig())

	decision := gate.Evaluate(establishedNode(0.9))
	assert.True(t, decision.Allowed)
	assert.Equal(t, RecommendUse, decision.Recommendation)
	assert.Equal(t, 0.9, decision.AdjustedConfidence)
}

func TestGateRejectsLowConfidence(t *testing.T) {
	gate := NewGate(DefaultGateConfig())

	decision := gate.Evaluate(establishedNode(0.1))
	assert.False(t, decision.Allowed)
	assert.Equal(t, RecommendReject, decision.Recommendation)
	assert.NotEmpty(t, decision.Reason)
}

func TestGateFlagsMiddlingConfidenceForVerification(t *testing.T) {
	gate := NewGate(DefaultGateConfig())

	decision := gate.Evaluate(establishedNode(0.45))
	assert.True(t, decision.Allowed)
	assert.Equal(t, RecommendVerify, decision.Recommendation)
}

func TestGateWeakGroundingPenalty(t *testing.T) {
	gate := NewGate(DefaultGateConfig())

	// fresh task-tier node that was never accessed takes the penalty
	fresh := memory.NewNode(memory.NodeFact, "unverified claim").WithConfidence(0.35)
	decision := gate.Evaluate(fresh)
	assert.InDelta(t, 0.25, decision.AdjustedConfidence, 1e-9)
	assert.False(t, decision.Allowed)

	// the same confidence passes once the node has been accessed
	accessed := memory.NewNode(memory.NodeFact, "checked claim").WithConfidence(0.35)
	accessed.RecordAccess()
	decision = gate.Evaluate(accessed)
	assert.Equal(t, 0.35, decision.AdjustedConfidence)
	assert.True(t, decision.Allowed)
}

func TestStrictGate(t *testing.T) {
	gate := NewGate(StrictGateConfig())

	// task tier never passes strict
	taskNode := memory.NewNode(memory.NodeFact, "working note").WithConfidence(0.95)
	assert.False(t, gate.Evaluate(taskNode).Allowed)

	// session tier with strong confidence passes
	assert.True(t, gate.Evaluate(establishedNode(0.9)).Allowed)

	// confidence below the strict floor fails even at high tier
	assert.False(t, gate.Evaluate(establishedNode(0.6)).Allowed)
}

func TestPermissiveGate(t *testing.T) {
	gate := NewGate(PermissiveGateConfig())

	decision := gate.Evaluate(establishedNode(0.1))
	assert.True(t, decision.Allowed)
	assert.Equal(t, RecommendVerify, decision.Recommendation)
}

func TestGateTypeFilter(t *testing.T) {
	cfg := DefaultGateConfig()
	cfg.AllowedTypes = []memory.NodeType{memory.NodeFact, memory.NodeDecision}
	gate := NewGate(cfg)

	fact := establishedNode(0.9)
	assert.True(t, gate.Evaluate(fact).Allowed)

	snippet := memory.NewNode(memory.NodeSnippet, "code").
		WithTier(memory.TierLongTerm).
		WithConfidence(0.9)
	snippet.RecordAccess()
	decision := gate.Evaluate(snippet)
	assert.False(t, decision.Allowed)
	assert.Equal(t, RecommendReject, decision.Recommendation)
}

func TestGateNilNode(t *testing.T) {
	gate := NewGate(DefaultGateConfig())
	decision := gate.Evaluate(nil)
	assert.False(t, decision.Allowed)
	assert.Equal(t, RecommendReject, decision.Recommendation)
}

func TestGateStats(t *testing.T) {
	gate := NewGate(DefaultGateConfig())

	gate.Evaluate(establishedNode(0.9))
	gate.Evaluate(establishedNode(0.9))
	gate.Evaluate(establishedNode(0.05))

	stats := gate.Stats()
	assert.Equal(t, 3, stats.Evaluated)
	assert.Equal(t, 2, stats.Allowed)
	assert.Equal(t, 1, stats.Rejected)
}
