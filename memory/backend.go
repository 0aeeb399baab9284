package memory

import (
	"context"

	"github.com/rand/loop/types"
)

// Snapshot is the full durable state a backend reloads on open: nodes and
// edges in insertion order, plus the tier-change audit log.
type Snapshot struct {
	Nodes     []*Node
	Edges     []*HyperEdge
	Evolution []EvolutionEntry
}

// Backend is the pluggable persistence substrate behind a MemoryStore.
// The store's in-memory indexes are a cache over the backend's durable
// state; a successfully-returning mutating call must be durable before it
// returns. The in-memory backend implements every method as a no-op.
type Backend interface {
	// LoadAll reconstructs the full node/edge/evolution set.
	LoadAll(ctx context.Context) (*Snapshot, error)

	// PersistNode durably writes one node (insert or full replace).
	PersistNode(ctx context.Context, node *Node) error

	// PersistEdge durably writes one edge with its membership.
	PersistEdge(ctx context.Context, edge *HyperEdge) error

	// DeleteNode durably removes a node.
	DeleteNode(ctx context.Context, id types.ID) error

	// DeleteEdge durably removes an edge and its membership.
	DeleteEdge(ctx context.Context, id types.ID) error

	// AppendEvolution durably appends one audit entry.
	AppendEvolution(ctx context.Context, entry EvolutionEntry) error

	// Close releases backend resources.
	Close() error
}

// transientBackend is the in-memory backend: no durability, nothing beyond
// the store's own index. Destroyed with the store.
type transientBackend struct{}

// NewTransientBackend returns the no-op in-memory backend.
func NewTransientBackend() Backend {
	return transientBackend{}
}

func (transientBackend) LoadAll(context.Context) (*Snapshot, error) {
	return &Snapshot{}, nil
}

func (transientBackend) PersistNode(context.Context, *Node) error { return nil }

func (transientBackend) PersistEdge(context.Context, *HyperEdge) error { return nil }

func (transientBackend) DeleteNode(context.Context, types.ID) error { return nil }

func (transientBackend) DeleteEdge(context.Context, types.ID) error { return nil }

func (transientBackend) AppendEvolution(context.Context, EvolutionEntry) error { return nil }

func (transientBackend) Close() error { return nil }
