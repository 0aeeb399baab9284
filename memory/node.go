package memory

import (
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/rand/loop/types"
)

// Node is a single unit of stored memory content. Its identity and content
// are fixed at creation; tier, confidence, subtype, and access tracking are
// mutable metadata. Callers always work on copies: the owning store never
// hands out a live alias into its internal state.
type Node struct {
	ID           types.ID       `json:"id"`
	NodeType     NodeType       `json:"node_type"`
	Subtype      string         `json:"subtype,omitempty"`
	Content      string         `json:"content"`
	Tier         Tier           `json:"tier"`
	Confidence   float64        `json:"confidence"`
	AccessCount  uint64         `json:"access_count"`
	CreatedAt    time.Time      `json:"created_at"`
	LastAccessed time.Time      `json:"last_accessed"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// NewNode creates a node with the given type and content.
// Defaults: tier=Task, confidence=1.0.
func NewNode(nodeType NodeType, content string) *Node {
	now := time.Now().UTC()
	return &Node{
		ID:           types.NewID(),
		NodeType:     nodeType,
		Content:      content,
		Tier:         TierTask,
		Confidence:   1.0,
		CreatedAt:    now,
		LastAccessed: now,
	}
}

// WithTier sets the initial tier and returns the node for chaining.
func (n *Node) WithTier(tier Tier) *Node {
	n.Tier = tier
	return n
}

// WithConfidence sets the initial confidence, clamped to [0,1], and returns
// the node for chaining.
func (n *Node) WithConfidence(confidence float64) *Node {
	n.Confidence = clamp01(confidence)
	return n
}

// WithSubtype sets the subtype and returns the node for chaining.
func (n *Node) WithSubtype(subtype string) *Node {
	n.Subtype = subtype
	return n
}

// WithMetadata attaches a metadata key/value and returns the node for chaining.
func (n *Node) WithMetadata(key string, value any) *Node {
	if n.Metadata == nil {
		n.Metadata = make(map[string]any)
	}
	n.Metadata[key] = value
	return n
}

// SetSubtype updates the free-form subtype refinement.
func (n *Node) SetSubtype(subtype string) {
	n.Subtype = subtype
}

// SetConfidence sets the confidence explicitly.
// Values outside [0,1] are rejected with a validation error.
func (n *Node) SetConfidence(confidence float64) error {
	if confidence < 0.0 || confidence > 1.0 {
		return NewValidationError("confidence must be within [0,1]")
	}
	n.Confidence = confidence
	return nil
}

// RecordAccess increments the access counter and refreshes the
// last-accessed timestamp. Access tracking is caller-driven; plain reads
// never record an access.
func (n *Node) RecordAccess() {
	n.AccessCount++
	n.LastAccessed = time.Now().UTC()
}

// IsDecayed reports whether the node's confidence has fallen below the
// given floor.
func (n *Node) IsDecayed(minConfidence float64) bool {
	return n.Confidence < minConfidence
}

// AgeHours returns the node's age in whole hours since creation.
func (n *Node) AgeHours() int64 {
	return int64(time.Since(n.CreatedAt).Hours())
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	cp := *n
	if n.Metadata != nil {
		cp.Metadata = make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Validate checks the node's invariants: valid id, known type and tier,
// confidence within [0,1], UTF-8 content. Content is an arbitrary text
// payload; the empty string is allowed.
func (n *Node) Validate() error {
	if err := n.ID.Validate(); err != nil {
		return WrapValidationError("invalid node id", err)
	}
	if !n.NodeType.IsValid() {
		return NewValidationError("unknown node type")
	}
	if !n.Tier.IsValid() {
		return NewValidationError("unknown tier")
	}
	if n.Confidence < 0.0 || n.Confidence > 1.0 {
		return NewValidationError("confidence must be within [0,1]")
	}
	if !utf8.ValidString(n.Content) || !utf8.ValidString(n.Subtype) {
		return NewValidationError("content and subtype must be valid UTF-8")
	}
	if n.CreatedAt.IsZero() {
		return NewValidationError("created_at cannot be zero")
	}
	return nil
}

// nodeJSON mirrors Node with pointer fields so decoding can distinguish
// missing required fields from zero values. Unknown extra fields are ignored.
type nodeJSON struct {
	ID           types.ID       `json:"id"`
	NodeType     *NodeType      `json:"node_type"`
	Subtype      string         `json:"subtype"`
	Content      *string        `json:"content"`
	Tier         *Tier          `json:"tier"`
	Confidence   *float64       `json:"confidence"`
	AccessCount  uint64         `json:"access_count"`
	CreatedAt    time.Time      `json:"created_at"`
	LastAccessed time.Time      `json:"last_accessed"`
	Metadata     map[string]any `json:"metadata"`
}

// UnmarshalJSON decodes a node from its canonical structured-text form.
// Missing required fields and out-of-domain values fail with a validation
// error rather than silently defaulting.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return WrapValidationError("malformed node payload", err)
	}

	if raw.ID.IsZero() {
		return NewValidationError("node payload missing id")
	}
	if raw.NodeType == nil {
		return NewValidationError("node payload missing node_type")
	}
	if raw.Content == nil {
		return NewValidationError("node payload missing content")
	}
	if raw.Tier == nil {
		return NewValidationError("node payload missing tier")
	}
	if raw.Confidence == nil {
		return NewValidationError("node payload missing confidence")
	}
	if raw.CreatedAt.IsZero() {
		return NewValidationError("node payload missing created_at")
	}

	decoded := Node{
		ID:           raw.ID,
		NodeType:     *raw.NodeType,
		Subtype:      raw.Subtype,
		Content:      *raw.Content,
		Tier:         *raw.Tier,
		Confidence:   *raw.Confidence,
		AccessCount:  raw.AccessCount,
		CreatedAt:    raw.CreatedAt,
		LastAccessed: raw.LastAccessed,
		Metadata:     raw.Metadata,
	}
	if decoded.LastAccessed.IsZero() {
		decoded.LastAccessed = decoded.CreatedAt
	}

	if err := decoded.Validate(); err != nil {
		return err
	}

	*n = decoded
	return nil
}

func clamp01(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
