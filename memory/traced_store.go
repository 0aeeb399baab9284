package memory

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rand/loop/types"
)

// TracedStore decorates a MemoryStore with OpenTelemetry spans. Mutating
// and backend-touching operations get a span named loop.memory.{operation};
// pure index reads are not traced to keep hot query paths free of span
// overhead.
type TracedStore struct {
	inner  MemoryStore
	tracer trace.Tracer
}

var _ MemoryStore = (*TracedStore)(nil)

// NewTracedStore wraps a store with the given tracer. A nil tracer falls
// back to the global provider.
func NewTracedStore(inner MemoryStore, tracer trace.Tracer) *TracedStore {
	if tracer == nil {
		tracer = otel.Tracer("loop.memory")
	}
	return &TracedStore{inner: inner, tracer: tracer}
}

func (t *TracedStore) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "loop.memory."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := types.ErrorCodeOf(err); code != "" {
			span.SetAttributes(attribute.String("loop.error_code", string(code)))
		}
	}
	span.End()
}

func (t *TracedStore) AddNode(ctx context.Context, node *Node) error {
	attrs := []attribute.KeyValue{}
	if node != nil {
		attrs = append(attrs,
			attribute.String("memory.node_id", node.ID.String()),
			attribute.String("memory.node_type", node.NodeType.String()),
			attribute.String("memory.tier", node.Tier.String()),
		)
	}
	ctx, span := t.startSpan(ctx, "add_node", attrs...)
	err := t.inner.AddNode(ctx, node)
	endSpan(span, err)
	return err
}

func (t *TracedStore) GetNode(id types.ID) (*Node, error) {
	return t.inner.GetNode(id)
}

func (t *TracedStore) UpdateNode(ctx context.Context, node *Node) error {
	attrs := []attribute.KeyValue{}
	if node != nil {
		attrs = append(attrs, attribute.String("memory.node_id", node.ID.String()))
	}
	ctx, span := t.startSpan(ctx, "update_node", attrs...)
	err := t.inner.UpdateNode(ctx, node)
	endSpan(span, err)
	return err
}

func (t *TracedStore) RecordAccess(ctx context.Context, id types.ID) error {
	ctx, span := t.startSpan(ctx, "record_access",
		attribute.String("memory.node_id", id.String()))
	err := t.inner.RecordAccess(ctx, id)
	endSpan(span, err)
	return err
}

func (t *TracedStore) DeleteNode(ctx context.Context, id types.ID) (bool, error) {
	ctx, span := t.startSpan(ctx, "delete_node",
		attribute.String("memory.node_id", id.String()))
	deleted, err := t.inner.DeleteNode(ctx, id)
	span.SetAttributes(attribute.Bool("memory.deleted", deleted))
	endSpan(span, err)
	return deleted, err
}

func (t *TracedStore) AddEdge(ctx context.Context, edge *HyperEdge) error {
	attrs := []attribute.KeyValue{}
	if edge != nil {
		attrs = append(attrs,
			attribute.String("memory.edge_id", edge.ID.String()),
			attribute.String("memory.edge_type", edge.EdgeType),
			attribute.Int("memory.member_count", len(edge.NodeIDs)),
		)
	}
	ctx, span := t.startSpan(ctx, "add_edge", attrs...)
	err := t.inner.AddEdge(ctx, edge)
	endSpan(span, err)
	return err
}

func (t *TracedStore) GetEdge(id types.ID) (*HyperEdge, error) {
	return t.inner.GetEdge(id)
}

func (t *TracedStore) DeleteEdge(ctx context.Context, id types.ID) (bool, error) {
	ctx, span := t.startSpan(ctx, "delete_edge",
		attribute.String("memory.edge_id", id.String()))
	deleted, err := t.inner.DeleteEdge(ctx, id)
	span.SetAttributes(attribute.Bool("memory.deleted", deleted))
	endSpan(span, err)
	return deleted, err
}

func (t *TracedStore) GetEdgesForNode(id types.ID) ([]*HyperEdge, error) {
	return t.inner.GetEdgesForNode(id)
}

func (t *TracedStore) QueryByType(nodeType NodeType, limit int) []*Node {
	return t.inner.QueryByType(nodeType, limit)
}

func (t *TracedStore) QueryByTier(tier Tier, limit int) []*Node {
	return t.inner.QueryByTier(tier, limit)
}

func (t *TracedStore) SearchContent(query string, limit int) []*Node {
	return t.inner.SearchContent(query, limit)
}

func (t *TracedStore) Promote(ctx context.Context, ids []types.ID, reason string) (*PromotionResult, error) {
	ctx, span := t.startSpan(ctx, "promote",
		attribute.Int("memory.batch_size", len(ids)),
		attribute.String("memory.reason", reason))
	result, err := t.inner.Promote(ctx, ids, reason)
	if result != nil {
		span.SetAttributes(
			attribute.Int("memory.promoted", len(result.Promoted)),
			attribute.Int("memory.not_found", len(result.NotFound)),
		)
	}
	endSpan(span, err)
	return result, err
}

func (t *TracedStore) Decay(ctx context.Context, factor, minConfidence float64) (*DecayResult, error) {
	ctx, span := t.startSpan(ctx, "decay",
		attribute.Float64("memory.decay_factor", factor),
		attribute.Float64("memory.min_confidence", minConfidence))
	result, err := t.inner.Decay(ctx, factor, minConfidence)
	if result != nil {
		span.SetAttributes(
			attribute.Int("memory.decayed", result.Decayed),
			attribute.Int("memory.casualties", len(result.Casualties)),
		)
	}
	endSpan(span, err)
	return result, err
}

func (t *TracedStore) Consolidate(ctx context.Context, from, to Tier) (*ConsolidationResult, error) {
	ctx, span := t.startSpan(ctx, "consolidate",
		attribute.String("memory.from_tier", from.String()),
		attribute.String("memory.to_tier", to.String()))
	result, err := t.inner.Consolidate(ctx, from, to)
	if result != nil {
		span.SetAttributes(attribute.Int("memory.promoted", len(result.Promoted)))
	}
	endSpan(span, err)
	return result, err
}

func (t *TracedStore) EvolutionHistory(id types.ID) ([]EvolutionEntry, error) {
	return t.inner.EvolutionHistory(id)
}

func (t *TracedStore) Stats() MemoryStats {
	return t.inner.Stats()
}

func (t *TracedStore) Export(w io.Writer) error {
	_, span := t.startSpan(context.Background(), "export")
	err := t.inner.Export(w)
	endSpan(span, err)
	return err
}

func (t *TracedStore) Import(ctx context.Context, r io.Reader) error {
	ctx, span := t.startSpan(ctx, "import")
	err := t.inner.Import(ctx, r)
	endSpan(span, err)
	return err
}

func (t *TracedStore) Close() error {
	return t.inner.Close()
}
