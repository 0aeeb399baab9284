package epistemic

import (
	"fmt"
	"sync"

	"github.com/rand/loop/memory"
)

// Recommendation is the gate's advice on how to treat a node that passed or
// failed evaluation.
type Recommendation string

const (
	// RecommendUse means the node is trustworthy as-is.
	RecommendUse Recommendation = "use"
	// RecommendVerify means the node passed but should be re-verified
	// before being load-bearing.
	RecommendVerify Recommendation = "verify"
	// RecommendReject means the node should not inform reasoning.
	RecommendReject Recommendation = "reject"
)

// Decision is the outcome of gating one node.
type Decision struct {
	Allowed            bool           `json:"allowed"`
	Reason             string         `json:"reason"`
	AdjustedConfidence float64        `json:"adjusted_confidence"`
	Recommendation     Recommendation `json:"recommendation"`
}

// GateConfig controls which nodes pass the gate.
type GateConfig struct {
	// MinConfidence is the floor applied to the adjusted confidence.
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`

	// MinTier excludes nodes below this lifecycle stage.
	MinTier memory.Tier `mapstructure:"min_tier" yaml:"min_tier" json:"min_tier"`

	// AllowedTypes restricts the node types that may pass. Empty allows all.
	AllowedTypes []memory.NodeType `mapstructure:"allowed_types" yaml:"allowed_types" json:"allowed_types"`

	// WeakGroundingPenalty is subtracted from the confidence of nodes that
	// have never been accessed and still sit in task tier.
	WeakGroundingPenalty float64 `mapstructure:"weak_grounding_penalty" yaml:"weak_grounding_penalty" json:"weak_grounding_penalty"`

	// VerifyBelow marks passing nodes under this confidence for
	// re-verification instead of direct use.
	VerifyBelow float64 `mapstructure:"verify_below" yaml:"verify_below" json:"verify_below"`
}

// DefaultGateConfig is the balanced preset.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MinConfidence:        0.3,
		MinTier:              memory.TierTask,
		WeakGroundingPenalty: 0.1,
		VerifyBelow:          0.6,
	}
}

// StrictGateConfig admits only well-established knowledge.
func StrictGateConfig() GateConfig {
	return GateConfig{
		MinConfidence:        0.7,
		MinTier:              memory.TierSession,
		WeakGroundingPenalty: 0.2,
		VerifyBelow:          0.85,
	}
}

// PermissiveGateConfig admits nearly everything, flagging most of it for
// verification.
func PermissiveGateConfig() GateConfig {
	return GateConfig{
		MinConfidence:        0.05,
		MinTier:              memory.TierTask,
		WeakGroundingPenalty: 0.0,
		VerifyBelow:          0.8,
	}
}

// GateStats counts gate outcomes.
type GateStats struct {
	Evaluated int `json:"evaluated"`
	Allowed   int `json:"allowed"`
	Rejected  int `json:"rejected"`
}

// Gate evaluates memory nodes against a confidence policy. Safe for
// concurrent use.
type Gate struct {
	mu    sync.Mutex
	cfg   GateConfig
	stats GateStats
}

// NewGate creates a gate with the given configuration.
func NewGate(cfg GateConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Evaluate gates a single node. The node is read only.
func (g *Gate) Evaluate(node *memory.Node) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stats.Evaluated++

	if node == nil {
		g.stats.Rejected++
		return Decision{
			Allowed:        false,
			Reason:         "no node",
			Recommendation: RecommendReject,
		}
	}

	adjusted := node.Confidence
	if node.AccessCount == 0 && node.Tier == memory.TierTask {
		adjusted -= g.cfg.WeakGroundingPenalty
		if adjusted < 0 {
			adjusted = 0
		}
	}

	if !g.typeAllowed(node.NodeType) {
		g.stats.Rejected++
		return Decision{
			Allowed:            false,
			Reason:             fmt.Sprintf("node type %s not admitted", node.NodeType),
			AdjustedConfidence: adjusted,
			Recommendation:     RecommendReject,
		}
	}

	if node.Tier < g.cfg.MinTier {
		g.stats.Rejected++
		return Decision{
			Allowed:            false,
			Reason:             fmt.Sprintf("tier %s below required %s", node.Tier, g.cfg.MinTier),
			AdjustedConfidence: adjusted,
			Recommendation:     RecommendReject,
		}
	}

	if adjusted < g.cfg.MinConfidence {
		g.stats.Rejected++
		return Decision{
			Allowed:            false,
			Reason:             fmt.Sprintf("confidence %.2f below floor %.2f", adjusted, g.cfg.MinConfidence),
			AdjustedConfidence: adjusted,
			Recommendation:     RecommendReject,
		}
	}

	g.stats.Allowed++
	recommendation := RecommendUse
	reason := "admitted"
	if adjusted < g.cfg.VerifyBelow {
		recommendation = RecommendVerify
		reason = "admitted, re-verification advised"
	}
	return Decision{
		Allowed:            true,
		Reason:             reason,
		AdjustedConfidence: adjusted,
		Recommendation:     recommendation,
	}
}

// Stats returns a copy of the gate's outcome counters.
func (g *Gate) Stats() GateStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

func (g *Gate) typeAllowed(nt memory.NodeType) bool {
	if len(g.cfg.AllowedTypes) == 0 {
		return true
	}
	for _, allowed := range g.cfg.AllowedTypes {
		if allowed == nt {
			return true
		}
	}
	return false
}
