package memory

import (
	"context"
	"io"
	"time"

	"github.com/rand/loop/types"
)

// MemoryStore is the single point of mutation and query over the hypergraph.
// Implementations serialize writers against each other and against readers;
// concurrent reads proceed without blocking when no mutation is in flight.
// Every getter returns an independent copy of store-internal state.
//
// Mutating operations take a context because they write through to the
// persistence backend before updating the in-memory index. Reads are served
// from the index and never touch I/O.
type MemoryStore interface {
	// AddNode inserts a node. Fails with MEMORY_DUPLICATE_ID if the id
	// already exists and MEMORY_VALIDATION_FAILED on invariant violations.
	AddNode(ctx context.Context, node *Node) error

	// GetNode returns a copy of the node or MEMORY_NODE_NOT_FOUND.
	// Lookups do not record an access; use RecordAccess for that.
	GetNode(id types.ID) (*Node, error)

	// UpdateNode replaces a node by id, preserving the stored id and
	// created_at. Fails with MEMORY_NODE_NOT_FOUND if absent.
	UpdateNode(ctx context.Context, node *Node) error

	// RecordAccess increments the node's access counter and refreshes its
	// last-accessed timestamp.
	RecordAccess(ctx context.Context, id types.ID) error

	// DeleteNode removes a node. Edges referencing it are NOT cascade
	// deleted; orphaned edges persist and remain retrievable by their own
	// id. Returns true if the node existed.
	DeleteNode(ctx context.Context, id types.ID) (bool, error)

	// AddEdge inserts a hyperedge. Members may reference nodes that do not
	// (yet) exist in the store.
	AddEdge(ctx context.Context, edge *HyperEdge) error

	// GetEdge returns a copy of the edge or MEMORY_EDGE_NOT_FOUND.
	GetEdge(id types.ID) (*HyperEdge, error)

	// DeleteEdge removes an edge. Returns true if the edge existed.
	DeleteEdge(ctx context.Context, id types.ID) (bool, error)

	// GetEdgesForNode returns every edge whose membership includes the
	// node. Fails with MEMORY_NODE_NOT_FOUND if the node itself is absent.
	GetEdgesForNode(id types.ID) ([]*HyperEdge, error)

	// QueryByType returns up to limit nodes of the given type in stable
	// insertion order. limit <= 0 means unbounded.
	QueryByType(nodeType NodeType, limit int) []*Node

	// QueryByTier returns up to limit nodes at the given tier in stable
	// insertion order. limit <= 0 means unbounded.
	QueryByTier(tier Tier, limit int) []*Node

	// SearchContent returns up to limit nodes whose content contains the
	// query, case-insensitively, in insertion order. No relevance ranking.
	SearchContent(query string, limit int) []*Node

	// Promote advances each referenced node one tier step, recording the
	// reason in the evolution log and refreshing the node's last-accessed
	// timestamp. Nodes already at Archive succeed as no-ops. Unknown ids
	// are reported in the result, not as an error.
	Promote(ctx context.Context, ids []types.ID, reason string) (*PromotionResult, error)

	// Decay multiplies every node's confidence by factor (0 < factor <= 1),
	// clamping at zero, and reports nodes whose new confidence fell below
	// minConfidence as casualties. Casualties are not deleted or demoted;
	// follow-up action is the caller's.
	Decay(ctx context.Context, factor, minConfidence float64) (*DecayResult, error)

	// Consolidate promotes every node currently at the from tier one step
	// toward the to tier, logging the consolidation reason.
	Consolidate(ctx context.Context, from, to Tier) (*ConsolidationResult, error)

	// EvolutionHistory returns the tier-change audit entries for a node,
	// newest first.
	EvolutionHistory(id types.ID) ([]EvolutionEntry, error)

	// Stats returns aggregate counts and mean confidence. Never mutates.
	Stats() MemoryStats

	// Export writes a canonical JSON snapshot of all nodes and edges.
	Export(w io.Writer) error

	// Import loads a snapshot produced by Export. Every record is validated
	// before any is inserted.
	Import(ctx context.Context, r io.Reader) error

	// Close releases the persistence backend. Idempotent.
	Close() error
}

// PromotionResult reports per-id outcomes of a batch promotion.
// A batch with at least one success is not an error; callers inspect
// NotFound for the ids that could not be resolved.
type PromotionResult struct {
	Promoted []types.ID `json:"promoted"`
	NotFound []types.ID `json:"not_found"`
	Reason   string     `json:"reason"`
}

// DecayCasualty identifies a node whose post-decay confidence fell below
// the requested floor, along with its new confidence.
type DecayCasualty struct {
	NodeID     types.ID `json:"node_id"`
	Confidence float64  `json:"confidence"`
}

// DecayResult reports the outcome of a decay sweep.
type DecayResult struct {
	Casualties []DecayCasualty `json:"casualties"`
	Decayed    int             `json:"decayed"`
}

// ConsolidationResult reports the outcome of a tier consolidation.
type ConsolidationResult struct {
	SourceNodes []types.ID `json:"source_nodes"`
	Promoted    []types.ID `json:"promoted"`
	Summary     string     `json:"summary"`
}

// EvolutionEntry is one tier-change audit record for a node.
type EvolutionEntry struct {
	NodeID    types.ID  `json:"node_id"`
	Operation string    `json:"operation"`
	FromTier  Tier      `json:"from_tier"`
	ToTier    Tier      `json:"to_tier"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// MemoryStats is an aggregate, read-only view of store contents.
type MemoryStats struct {
	TotalNodes     int              `json:"total_nodes"`
	TotalEdges     int              `json:"total_edges"`
	NodesByTier    map[Tier]int     `json:"nodes_by_tier"`
	NodesByType    map[NodeType]int `json:"nodes_by_type"`
	MeanConfidence float64          `json:"mean_confidence"`
}
