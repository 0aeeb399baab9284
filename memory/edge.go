package memory

import (
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/rand/loop/types"
)

// HyperEdge is a typed, weighted, optionally labeled n-ary relation over
// node identifiers. Membership is ordered; for binary edges the subject
// comes first.
type HyperEdge struct {
	ID        types.ID   `json:"id"`
	EdgeType  string     `json:"edge_type"`
	Label     string     `json:"label,omitempty"`
	Weight    float64    `json:"weight"`
	NodeIDs   []types.ID `json:"node_ids"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewHyperEdge creates a generic hyperedge of the given relation category
// with empty membership. Returns a validation error on invalid UTF-8 input.
func NewHyperEdge(edgeType string) (*HyperEdge, error) {
	if edgeType == "" {
		return nil, NewValidationError("edge type cannot be empty")
	}
	if !utf8.ValidString(edgeType) {
		return nil, NewValidationError("edge type must be valid UTF-8")
	}
	return &HyperEdge{
		ID:        types.NewID(),
		EdgeType:  edgeType,
		Weight:    1.0,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// BinaryEdge creates the common two-member edge with the subject first.
// Weight defaults to 1.0.
func BinaryEdge(edgeType string, subject, object types.ID, label string) (*HyperEdge, error) {
	edge, err := NewHyperEdge(edgeType)
	if err != nil {
		return nil, err
	}
	if !utf8.ValidString(label) {
		return nil, NewValidationError("edge label must be valid UTF-8")
	}
	edge.Label = label
	edge.NodeIDs = []types.ID{subject, object}
	return edge, nil
}

// AddMember appends a node id to the ordered membership.
func (e *HyperEdge) AddMember(nodeID types.ID) {
	e.NodeIDs = append(e.NodeIDs, nodeID)
}

// Contains reports whether the given node id is a member of the edge.
func (e *HyperEdge) Contains(nodeID types.ID) bool {
	for _, id := range e.NodeIDs {
		if id == nodeID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the edge.
func (e *HyperEdge) Clone() *HyperEdge {
	cp := *e
	if e.NodeIDs != nil {
		cp.NodeIDs = make([]types.ID, len(e.NodeIDs))
		copy(cp.NodeIDs, e.NodeIDs)
	}
	return &cp
}

// Validate checks the edge's invariants: valid id, non-empty UTF-8 type,
// at least one member, non-negative weight. Members are not required to
// reference existing nodes (soft invariant, per the batch-construction
// contract).
func (e *HyperEdge) Validate() error {
	if err := e.ID.Validate(); err != nil {
		return WrapValidationError("invalid edge id", err)
	}
	if e.EdgeType == "" {
		return NewValidationError("edge type cannot be empty")
	}
	if !utf8.ValidString(e.EdgeType) || !utf8.ValidString(e.Label) {
		return NewValidationError("edge type and label must be valid UTF-8")
	}
	if len(e.NodeIDs) < 1 {
		return NewValidationError("edge must reference at least one node")
	}
	if e.Weight < 0 {
		return NewValidationError("edge weight cannot be negative")
	}
	for _, id := range e.NodeIDs {
		if err := id.Validate(); err != nil {
			return WrapValidationError("invalid member node id", err)
		}
	}
	return nil
}

// edgeJSON mirrors HyperEdge with pointer fields for required-field checks.
type edgeJSON struct {
	ID        types.ID   `json:"id"`
	EdgeType  *string    `json:"edge_type"`
	Label     string     `json:"label"`
	Weight    *float64   `json:"weight"`
	NodeIDs   []types.ID `json:"node_ids"`
	CreatedAt time.Time  `json:"created_at"`
}

// UnmarshalJSON decodes an edge from its canonical structured-text form,
// failing with a validation error on missing required fields.
func (e *HyperEdge) UnmarshalJSON(data []byte) error {
	var raw edgeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return WrapValidationError("malformed edge payload", err)
	}

	if raw.ID.IsZero() {
		return NewValidationError("edge payload missing id")
	}
	if raw.EdgeType == nil {
		return NewValidationError("edge payload missing edge_type")
	}
	if raw.CreatedAt.IsZero() {
		return NewValidationError("edge payload missing created_at")
	}

	weight := 1.0
	if raw.Weight != nil {
		weight = *raw.Weight
	}

	decoded := HyperEdge{
		ID:        raw.ID,
		EdgeType:  *raw.EdgeType,
		Label:     raw.Label,
		Weight:    weight,
		NodeIDs:   raw.NodeIDs,
		CreatedAt: raw.CreatedAt,
	}

	if err := decoded.Validate(); err != nil {
		return err
	}

	*e = decoded
	return nil
}
