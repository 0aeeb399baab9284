package memory

import (
	"fmt"
)

// Tier represents the lifecycle stage of a memory node, ordered by
// increasing durability and importance.
type Tier int

const (
	// TierTask is working memory for the current task.
	TierTask Tier = iota
	// TierSession is knowledge accumulated during a session.
	TierSession
	// TierLongTerm is persistent knowledge across sessions.
	TierLongTerm
	// TierArchive is decayed but preserved knowledge. Promotion stops here.
	TierArchive
)

// tierNames maps tiers to their canonical lower-case names used in JSON
// and persistence payloads.
var tierNames = map[Tier]string{
	TierTask:     "task",
	TierSession:  "session",
	TierLongTerm: "longterm",
	TierArchive:  "archive",
}

// String returns the canonical name of the tier.
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// IsValid reports whether the tier is one of the defined lifecycle stages.
func (t Tier) IsValid() bool {
	return t >= TierTask && t <= TierArchive
}

// Next returns the next tier in the promotion ordering.
// The second return value is false when the tier is already at the
// Archive ceiling.
func (t Tier) Next() (Tier, bool) {
	if t >= TierArchive {
		return TierArchive, false
	}
	return t + 1, true
}

// ParseTier parses a canonical tier name.
func ParseTier(s string) (Tier, error) {
	for tier, name := range tierNames {
		if name == s {
			return tier, nil
		}
	}
	return TierTask, fmt.Errorf("unknown tier: %q", s)
}

// MarshalText encodes the tier as its canonical name. Serving JSON through
// the text interface keeps map keys and values consistent.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid tier: %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a canonical tier name, rejecting unknown values.
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// NodeType represents the kind of knowledge a memory node holds.
// It is fixed at node creation.
type NodeType int

const (
	// NodeEntity is a named thing: a person, system, file, concept.
	NodeEntity NodeType = iota
	// NodeFact is a declarative statement believed to be true.
	NodeFact
	// NodeExperience is an observation from executing an action.
	NodeExperience
	// NodeDecision is a recorded choice with its rationale.
	NodeDecision
	// NodeSnippet is a fragment of code or text worth keeping verbatim.
	NodeSnippet
)

var nodeTypeNames = map[NodeType]string{
	NodeEntity:     "entity",
	NodeFact:       "fact",
	NodeExperience: "experience",
	NodeDecision:   "decision",
	NodeSnippet:    "snippet",
}

// String returns the canonical name of the node type.
func (nt NodeType) String() string {
	if name, ok := nodeTypeNames[nt]; ok {
		return name
	}
	return fmt.Sprintf("nodetype(%d)", int(nt))
}

// IsValid reports whether the node type is one of the defined kinds.
func (nt NodeType) IsValid() bool {
	return nt >= NodeEntity && nt <= NodeSnippet
}

// ParseNodeType parses a canonical node type name.
func ParseNodeType(s string) (NodeType, error) {
	for nt, name := range nodeTypeNames {
		if name == s {
			return nt, nil
		}
	}
	return NodeFact, fmt.Errorf("unknown node type: %q", s)
}

// MarshalText encodes the node type as its canonical name.
func (nt NodeType) MarshalText() ([]byte, error) {
	if !nt.IsValid() {
		return nil, fmt.Errorf("invalid node type: %d", int(nt))
	}
	return []byte(nt.String()), nil
}

// UnmarshalText decodes a canonical node type name, rejecting unknown values.
func (nt *NodeType) UnmarshalText(text []byte) error {
	parsed, err := ParseNodeType(string(text))
	if err != nil {
		return err
	}
	*nt = parsed
	return nil
}
