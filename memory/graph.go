package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rand/loop/observability"
	"github.com/rand/loop/types"
)

// DefaultMemoryStore is the standard MemoryStore: an in-memory hypergraph
// index over a pluggable persistence backend. A single RWMutex serializes
// writers; reads take the shared lock and return copies, never aliases.
//
// Mutations follow a validate, persist, commit order: nothing touches the
// in-memory index until the backend write has succeeded, so the index never
// gets ahead of durable state.
type DefaultMemoryStore struct {
	mu      sync.RWMutex
	backend Backend
	logger  *observability.TracedLogger

	nodes     map[types.ID]*Node
	edges     map[types.ID]*HyperEdge
	nodeOrder []types.ID
	edgeOrder []types.ID
	evolution map[types.ID][]EvolutionEntry

	closed bool
}

// compile-time interface check
var _ MemoryStore = (*DefaultMemoryStore)(nil)

// NewMemoryStore creates a transient store. Contents live only as long as
// the process; Close releases nothing.
func NewMemoryStore() *DefaultMemoryStore {
	store, _ := NewMemoryStoreWithBackend(context.Background(), NewTransientBackend())
	return store
}

// OpenMemoryStore opens a durable store at the given SQLite path, creating
// the file and schema on first use and rebuilding the in-memory index from
// persisted state on reopen.
func OpenMemoryStore(path string) (*DefaultMemoryStore, error) {
	backend, err := NewSQLiteBackend(path)
	if err != nil {
		return nil, err
	}

	store, err := NewMemoryStoreWithBackend(context.Background(), backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

// NewMemoryStoreWithBackend builds a store over an explicit backend,
// loading whatever state the backend already holds.
func NewMemoryStoreWithBackend(ctx context.Context, backend Backend) (*DefaultMemoryStore, error) {
	snapshot, err := backend.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	store := &DefaultMemoryStore{
		backend:   backend,
		logger:    observability.NopLogger(),
		nodes:     make(map[types.ID]*Node, len(snapshot.Nodes)),
		edges:     make(map[types.ID]*HyperEdge, len(snapshot.Edges)),
		evolution: make(map[types.ID][]EvolutionEntry),
	}

	for _, node := range snapshot.Nodes {
		store.nodes[node.ID] = node
		store.nodeOrder = append(store.nodeOrder, node.ID)
	}
	for _, edge := range snapshot.Edges {
		store.edges[edge.ID] = edge
		store.edgeOrder = append(store.edgeOrder, edge.ID)
	}
	for _, entry := range snapshot.Evolution {
		store.evolution[entry.NodeID] = append(store.evolution[entry.NodeID], entry)
	}

	return store, nil
}

// WithLogger attaches a logger and returns the store for chaining.
// A nil logger leaves the discarding default in place.
func (s *DefaultMemoryStore) WithLogger(logger *observability.TracedLogger) *DefaultMemoryStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// AddNode inserts a node after validating it. The store keeps its own copy;
// later caller-side mutation of the argument has no effect.
func (s *DefaultMemoryStore) AddNode(ctx context.Context, node *Node) error {
	if node == nil {
		return NewValidationError("node cannot be nil")
	}
	if err := node.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStoreClosedError()
	}
	if _, exists := s.nodes[node.ID]; exists {
		return NewDuplicateIDError(node.ID.String())
	}

	stored := node.Clone()
	if err := s.backend.PersistNode(ctx, stored); err != nil {
		s.logger.Error(ctx, "failed to persist node", err, "node_id", stored.ID.String())
		return err
	}

	s.nodes[stored.ID] = stored
	s.nodeOrder = append(s.nodeOrder, stored.ID)
	s.logger.Debug(ctx, "node added",
		"node_id", stored.ID.String(),
		"node_type", stored.NodeType.String(),
		"tier", stored.Tier.String())
	return nil
}

// GetNode returns a copy of the node. Plain lookups never count as access;
// use RecordAccess when retrieval should be tracked.
func (s *DefaultMemoryStore) GetNode(id types.ID) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStoreClosedError()
	}
	node, ok := s.nodes[id]
	if !ok {
		return nil, NewNodeNotFoundError(id.String())
	}
	return node.Clone(), nil
}

// UpdateNode replaces the stored node with the given one, keeping the
// original creation timestamp.
func (s *DefaultMemoryStore) UpdateNode(ctx context.Context, node *Node) error {
	if node == nil {
		return NewValidationError("node cannot be nil")
	}
	if err := node.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStoreClosedError()
	}
	existing, ok := s.nodes[node.ID]
	if !ok {
		return NewNodeNotFoundError(node.ID.String())
	}

	stored := node.Clone()
	stored.CreatedAt = existing.CreatedAt

	if err := s.backend.PersistNode(ctx, stored); err != nil {
		return err
	}

	s.nodes[stored.ID] = stored
	return nil
}

// RecordAccess bumps the node's access counter and last-accessed time.
func (s *DefaultMemoryStore) RecordAccess(ctx context.Context, id types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStoreClosedError()
	}
	existing, ok := s.nodes[id]
	if !ok {
		return NewNodeNotFoundError(id.String())
	}

	updated := existing.Clone()
	updated.RecordAccess()

	if err := s.backend.PersistNode(ctx, updated); err != nil {
		return err
	}

	s.nodes[id] = updated
	return nil
}

// DeleteNode removes a node if present. Edges referencing it are left in
// place; an orphaned edge stays retrievable by its own id.
func (s *DefaultMemoryStore) DeleteNode(ctx context.Context, id types.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, NewStoreClosedError()
	}
	if _, ok := s.nodes[id]; !ok {
		return false, nil
	}

	if err := s.backend.DeleteNode(ctx, id); err != nil {
		return false, err
	}

	delete(s.nodes, id)
	s.nodeOrder = removeID(s.nodeOrder, id)
	return true, nil
}

// AddEdge inserts a hyperedge after validating it. Membership may reference
// node ids not (yet) present in the store.
func (s *DefaultMemoryStore) AddEdge(ctx context.Context, edge *HyperEdge) error {
	if edge == nil {
		return NewValidationError("edge cannot be nil")
	}
	if err := edge.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStoreClosedError()
	}
	if _, exists := s.edges[edge.ID]; exists {
		return NewDuplicateIDError(edge.ID.String())
	}

	stored := edge.Clone()
	if err := s.backend.PersistEdge(ctx, stored); err != nil {
		return err
	}

	s.edges[stored.ID] = stored
	s.edgeOrder = append(s.edgeOrder, stored.ID)
	return nil
}

// GetEdge returns a copy of the edge.
func (s *DefaultMemoryStore) GetEdge(id types.ID) (*HyperEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStoreClosedError()
	}
	edge, ok := s.edges[id]
	if !ok {
		return nil, NewEdgeNotFoundError(id.String())
	}
	return edge.Clone(), nil
}

// DeleteEdge removes an edge if present.
func (s *DefaultMemoryStore) DeleteEdge(ctx context.Context, id types.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, NewStoreClosedError()
	}
	if _, ok := s.edges[id]; !ok {
		return false, nil
	}

	if err := s.backend.DeleteEdge(ctx, id); err != nil {
		return false, err
	}

	delete(s.edges, id)
	s.edgeOrder = removeID(s.edgeOrder, id)
	return true, nil
}

// GetEdgesForNode returns every edge whose membership includes the node, in
// edge insertion order. The node itself must exist.
func (s *DefaultMemoryStore) GetEdgesForNode(id types.ID) ([]*HyperEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStoreClosedError()
	}
	if _, ok := s.nodes[id]; !ok {
		return nil, NewNodeNotFoundError(id.String())
	}

	var result []*HyperEdge
	for _, edgeID := range s.edgeOrder {
		if edge := s.edges[edgeID]; edge.Contains(id) {
			result = append(result, edge.Clone())
		}
	}
	return result, nil
}

// QueryByType returns up to limit nodes of the given type in insertion
// order. limit <= 0 means unbounded.
func (s *DefaultMemoryStore) QueryByType(nodeType NodeType, limit int) []*Node {
	return s.queryNodes(limit, func(n *Node) bool {
		return n.NodeType == nodeType
	})
}

// QueryByTier returns up to limit nodes at the given tier in insertion
// order. limit <= 0 means unbounded.
func (s *DefaultMemoryStore) QueryByTier(tier Tier, limit int) []*Node {
	return s.queryNodes(limit, func(n *Node) bool {
		return n.Tier == tier
	})
}

// SearchContent returns up to limit nodes whose content contains the query
// as a case-insensitive substring, in insertion order. The empty query
// matches every node.
func (s *DefaultMemoryStore) SearchContent(query string, limit int) []*Node {
	needle := strings.ToLower(query)
	return s.queryNodes(limit, func(n *Node) bool {
		return strings.Contains(strings.ToLower(n.Content), needle)
	})
}

func (s *DefaultMemoryStore) queryNodes(limit int, match func(*Node) bool) []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}

	var result []*Node
	for _, id := range s.nodeOrder {
		if limit > 0 && len(result) >= limit {
			break
		}
		if node := s.nodes[id]; match(node) {
			result = append(result, node.Clone())
		}
	}
	return result
}

// Promote advances each referenced node exactly one tier step and records
// the change in the evolution log. Nodes already at Archive succeed as
// no-ops and are still counted as promoted. Unknown ids land in the
// result's NotFound list; the batch itself only errors when the backend
// fails, in which case the returned result covers the work committed so far.
func (s *DefaultMemoryStore) Promote(ctx context.Context, ids []types.ID, reason string) (*PromotionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, NewStoreClosedError()
	}

	result := &PromotionResult{Reason: reason}
	for _, id := range ids {
		existing, ok := s.nodes[id]
		if !ok {
			result.NotFound = append(result.NotFound, id)
			continue
		}

		next, advanced := existing.Tier.Next()
		if !advanced {
			// Archive ceiling: nothing to move, nothing to log.
			result.Promoted = append(result.Promoted, id)
			continue
		}

		now := time.Now().UTC()
		updated := existing.Clone()
		updated.Tier = next
		updated.LastAccessed = now

		if err := s.backend.PersistNode(ctx, updated); err != nil {
			return result, err
		}

		entry := EvolutionEntry{
			NodeID:    id,
			Operation: "promote",
			FromTier:  existing.Tier,
			ToTier:    next,
			Reason:    reason,
			Timestamp: now,
		}
		if err := s.backend.AppendEvolution(ctx, entry); err != nil {
			return result, err
		}

		s.nodes[id] = updated
		s.evolution[id] = append(s.evolution[id], entry)
		result.Promoted = append(result.Promoted, id)
	}

	s.logger.Info(ctx, "nodes promoted",
		"promoted", len(result.Promoted),
		"not_found", len(result.NotFound),
		"reason", reason)
	return result, nil
}

// Decay multiplies every node's confidence by factor and reports the nodes
// whose new confidence fell below minConfidence. Casualties are reported
// only; nothing is deleted or demoted.
func (s *DefaultMemoryStore) Decay(ctx context.Context, factor, minConfidence float64) (*DecayResult, error) {
	if factor <= 0 || factor > 1 {
		return nil, NewValidationError("decay factor must be within (0,1]")
	}
	if minConfidence < 0 || minConfidence > 1 {
		return nil, NewValidationError("minimum confidence must be within [0,1]")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, NewStoreClosedError()
	}

	result := &DecayResult{}
	for _, id := range s.nodeOrder {
		existing := s.nodes[id]

		updated := existing.Clone()
		updated.Confidence = clamp01(existing.Confidence * factor)

		if err := s.backend.PersistNode(ctx, updated); err != nil {
			return result, err
		}

		s.nodes[id] = updated
		result.Decayed++
		if updated.IsDecayed(minConfidence) {
			result.Casualties = append(result.Casualties, DecayCasualty{
				NodeID:     id,
				Confidence: updated.Confidence,
			})
		}
	}

	s.logger.Info(ctx, "decay sweep finished",
		"factor", factor,
		"decayed", result.Decayed,
		"casualties", len(result.Casualties))
	return result, nil
}

// Consolidate promotes every node currently at the from tier one step
// toward the to tier, logging each move.
func (s *DefaultMemoryStore) Consolidate(ctx context.Context, from, to Tier) (*ConsolidationResult, error) {
	if !from.IsValid() || !to.IsValid() {
		return nil, NewValidationError("unknown tier")
	}
	if to <= from {
		return nil, NewValidationError("consolidation target must be a higher tier than the source")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, NewStoreClosedError()
	}

	summary := fmt.Sprintf("consolidate %s -> %s", from, to)
	result := &ConsolidationResult{Summary: summary}

	for _, id := range s.nodeOrder {
		existing := s.nodes[id]
		if existing.Tier != from {
			continue
		}
		result.SourceNodes = append(result.SourceNodes, id)

		next, advanced := existing.Tier.Next()
		if !advanced {
			continue
		}

		updated := existing.Clone()
		updated.Tier = next

		if err := s.backend.PersistNode(ctx, updated); err != nil {
			return result, err
		}

		entry := EvolutionEntry{
			NodeID:    id,
			Operation: "consolidate",
			FromTier:  existing.Tier,
			ToTier:    next,
			Reason:    summary,
			Timestamp: time.Now().UTC(),
		}
		if err := s.backend.AppendEvolution(ctx, entry); err != nil {
			return result, err
		}

		s.nodes[id] = updated
		s.evolution[id] = append(s.evolution[id], entry)
		result.Promoted = append(result.Promoted, id)
	}

	s.logger.Info(ctx, "tier consolidated",
		"from", from.String(),
		"to", to.String(),
		"promoted", len(result.Promoted))
	return result, nil
}

// EvolutionHistory returns the node's tier-change audit entries, newest
// first. History survives node deletion.
func (s *DefaultMemoryStore) EvolutionHistory(id types.ID) ([]EvolutionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStoreClosedError()
	}

	entries, hasHistory := s.evolution[id]
	if _, ok := s.nodes[id]; !ok && !hasHistory {
		return nil, NewNodeNotFoundError(id.String())
	}

	result := make([]EvolutionEntry, len(entries))
	for i, entry := range entries {
		result[len(entries)-1-i] = entry
	}
	return result, nil
}

// Stats returns aggregate counts and mean confidence. Every defined tier
// and node type appears in the maps, zero-valued when unpopulated.
func (s *DefaultMemoryStore) Stats() MemoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := MemoryStats{
		TotalNodes:  len(s.nodes),
		TotalEdges:  len(s.edges),
		NodesByTier: make(map[Tier]int),
		NodesByType: make(map[NodeType]int),
	}
	for tier := TierTask; tier <= TierArchive; tier++ {
		stats.NodesByTier[tier] = 0
	}
	for nt := NodeEntity; nt <= NodeSnippet; nt++ {
		stats.NodesByType[nt] = 0
	}

	var totalConfidence float64
	for _, node := range s.nodes {
		stats.NodesByTier[node.Tier]++
		stats.NodesByType[node.NodeType]++
		totalConfidence += node.Confidence
	}
	if len(s.nodes) > 0 {
		stats.MeanConfidence = totalConfidence / float64(len(s.nodes))
	}

	return stats
}

// snapshotVersion tags exported payloads so future format changes can be
// detected on import.
const snapshotVersion = 1

type exportEnvelope struct {
	Version    int          `json:"version"`
	ExportedAt time.Time    `json:"exported_at"`
	Nodes      []*Node      `json:"nodes"`
	Edges      []*HyperEdge `json:"edges"`
}

// Export writes a JSON snapshot of all nodes and edges in insertion order.
func (s *DefaultMemoryStore) Export(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return NewStoreClosedError()
	}

	envelope := exportEnvelope{
		Version:    snapshotVersion,
		ExportedAt: time.Now().UTC(),
		Nodes:      make([]*Node, 0, len(s.nodeOrder)),
		Edges:      make([]*HyperEdge, 0, len(s.edgeOrder)),
	}
	for _, id := range s.nodeOrder {
		envelope.Nodes = append(envelope.Nodes, s.nodes[id])
	}
	for _, id := range s.edgeOrder {
		envelope.Edges = append(envelope.Edges, s.edges[id])
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(envelope); err != nil {
		return NewCodecError("failed to encode snapshot", err)
	}
	return nil
}

// Import loads a snapshot produced by Export. The whole payload is decoded
// and checked for id collisions before any record is inserted; a malformed
// snapshot leaves the store untouched.
func (s *DefaultMemoryStore) Import(ctx context.Context, r io.Reader) error {
	var envelope exportEnvelope
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&envelope); err != nil {
		return NewCodecError("failed to decode snapshot", err)
	}
	if envelope.Version != snapshotVersion {
		return NewCodecError(
			fmt.Sprintf("unsupported snapshot version %d", envelope.Version), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStoreClosedError()
	}

	seen := make(map[types.ID]struct{}, len(envelope.Nodes)+len(envelope.Edges))
	for _, node := range envelope.Nodes {
		if _, exists := s.nodes[node.ID]; exists {
			return NewDuplicateIDError(node.ID.String())
		}
		if _, dup := seen[node.ID]; dup {
			return NewDuplicateIDError(node.ID.String())
		}
		seen[node.ID] = struct{}{}
	}
	for _, edge := range envelope.Edges {
		if _, exists := s.edges[edge.ID]; exists {
			return NewDuplicateIDError(edge.ID.String())
		}
		if _, dup := seen[edge.ID]; dup {
			return NewDuplicateIDError(edge.ID.String())
		}
		seen[edge.ID] = struct{}{}
	}

	for _, node := range envelope.Nodes {
		if err := s.backend.PersistNode(ctx, node); err != nil {
			return err
		}
		s.nodes[node.ID] = node
		s.nodeOrder = append(s.nodeOrder, node.ID)
	}
	for _, edge := range envelope.Edges {
		if err := s.backend.PersistEdge(ctx, edge); err != nil {
			return err
		}
		s.edges[edge.ID] = edge
		s.edgeOrder = append(s.edgeOrder, edge.ID)
	}

	return nil
}

// Close releases the persistence backend. Subsequent operations fail with
// MEMORY_STORE_CLOSED; repeated Close calls are no-ops.
func (s *DefaultMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.backend.Close()
}

func removeID(ids []types.ID, id types.ID) []types.ID {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
