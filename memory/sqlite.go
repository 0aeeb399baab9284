package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rand/loop/database"
	"github.com/rand/loop/types"
)

// sqliteBackend is the durable file-backed persistence substrate.
// Every mutating call commits synchronously before returning; a node or
// edge is always written atomically (one row, or row + membership in a
// single transaction), so a crash between calls never leaves state that
// fails to reload.
type sqliteBackend struct {
	db *database.DB
}

// NewSQLiteBackend opens (or creates) a durable backend at the given path
// and initializes the hypergraph schema.
func NewSQLiteBackend(path string) (Backend, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, types.WrapError(types.DB_OPEN_FAILED, "failed to open memory database", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, types.WrapError(types.DB_MIGRATION_FAILED, "failed to initialize memory schema", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) LoadAll(ctx context.Context) (*Snapshot, error) {
	snapshot := &Snapshot{}

	nodes, err := b.loadNodes(ctx)
	if err != nil {
		return nil, err
	}
	snapshot.Nodes = nodes

	edges, err := b.loadEdges(ctx)
	if err != nil {
		return nil, err
	}
	snapshot.Edges = edges

	evolution, err := b.loadEvolution(ctx)
	if err != nil {
		return nil, err
	}
	snapshot.Evolution = evolution

	return snapshot, nil
}

func (b *sqliteBackend) loadNodes(ctx context.Context) ([]*Node, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, node_type, subtype, content, tier, confidence,
		       access_count, created_at, last_accessed, metadata
		FROM nodes ORDER BY seq ASC`)
	if err != nil {
		return nil, NewStorageError("failed to load nodes", err)
	}
	defer rows.Close()

	var nodes []*Node
	for rows.Next() {
		var (
			node         Node
			nodeType     string
			subtype      sql.NullString
			tier         int
			createdAt    string
			lastAccessed string
			metadata     sql.NullString
		)
		if err := rows.Scan(&node.ID, &nodeType, &subtype, &node.Content, &tier,
			&node.Confidence, &node.AccessCount, &createdAt, &lastAccessed, &metadata); err != nil {
			return nil, NewStorageError("failed to scan node row", err)
		}

		nt, err := ParseNodeType(nodeType)
		if err != nil {
			return nil, WrapValidationError("persisted node has unknown type", err)
		}
		node.NodeType = nt
		node.Tier = Tier(tier)
		if !node.Tier.IsValid() {
			return nil, NewValidationError("persisted node has unknown tier")
		}
		node.Subtype = subtype.String
		node.CreatedAt = parseStoredTime(createdAt)
		node.LastAccessed = parseStoredTime(lastAccessed)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &node.Metadata); err != nil {
				return nil, WrapValidationError("persisted node has malformed metadata", err)
			}
		}

		nodes = append(nodes, &node)
	}

	if err := rows.Err(); err != nil {
		return nil, NewStorageError("error iterating node rows", err)
	}
	return nodes, nil
}

func (b *sqliteBackend) loadEdges(ctx context.Context) ([]*HyperEdge, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, edge_type, label, weight, created_at
		FROM hyperedges ORDER BY seq ASC`)
	if err != nil {
		return nil, NewStorageError("failed to load edges", err)
	}
	defer rows.Close()

	var edges []*HyperEdge
	for rows.Next() {
		var (
			edge      HyperEdge
			label     sql.NullString
			createdAt string
		)
		if err := rows.Scan(&edge.ID, &edge.EdgeType, &label, &edge.Weight, &createdAt); err != nil {
			return nil, NewStorageError("failed to scan edge row", err)
		}
		edge.Label = label.String
		edge.CreatedAt = parseStoredTime(createdAt)
		edges = append(edges, &edge)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("error iterating edge rows", err)
	}

	for _, edge := range edges {
		members, err := b.loadMembership(ctx, edge.ID)
		if err != nil {
			return nil, err
		}
		edge.NodeIDs = members
	}

	return edges, nil
}

func (b *sqliteBackend) loadMembership(ctx context.Context, edgeID types.ID) ([]types.ID, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT node_id FROM membership
		WHERE hyperedge_id = ? ORDER BY position ASC`, edgeID.String())
	if err != nil {
		return nil, NewStorageError("failed to load edge membership", err)
	}
	defer rows.Close()

	var members []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, NewStorageError("failed to scan membership row", err)
		}
		members = append(members, id)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("error iterating membership rows", err)
	}
	return members, nil
}

func (b *sqliteBackend) loadEvolution(ctx context.Context) ([]EvolutionEntry, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT node_id, operation, from_tier, to_tier, reason, created_at
		FROM evolution_log ORDER BY id ASC`)
	if err != nil {
		return nil, NewStorageError("failed to load evolution log", err)
	}
	defer rows.Close()

	var entries []EvolutionEntry
	for rows.Next() {
		var (
			entry     EvolutionEntry
			fromTier  int
			toTier    int
			reason    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&entry.NodeID, &entry.Operation, &fromTier, &toTier, &reason, &createdAt); err != nil {
			return nil, NewStorageError("failed to scan evolution row", err)
		}
		entry.FromTier = Tier(fromTier)
		entry.ToTier = Tier(toTier)
		entry.Reason = reason.String
		entry.Timestamp = parseStoredTime(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("error iterating evolution rows", err)
	}
	return entries, nil
}

func (b *sqliteBackend) PersistNode(ctx context.Context, node *Node) error {
	var metadataJSON sql.NullString
	if node.Metadata != nil {
		data, err := json.Marshal(node.Metadata)
		if err != nil {
			return WrapValidationError("failed to marshal node metadata", err)
		}
		metadataJSON = sql.NullString{String: string(data), Valid: true}
	}

	// Inserts take the next sequence number; replacements keep the
	// original so reload order matches insertion order.
	query := `
		INSERT INTO nodes (id, node_type, subtype, content, tier, confidence,
		                   access_count, created_at, last_accessed, metadata, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		        (SELECT COALESCE(MAX(seq), 0) + 1 FROM nodes))
		ON CONFLICT(id) DO UPDATE SET
			node_type = excluded.node_type,
			subtype = excluded.subtype,
			content = excluded.content,
			tier = excluded.tier,
			confidence = excluded.confidence,
			access_count = excluded.access_count,
			last_accessed = excluded.last_accessed,
			metadata = excluded.metadata
	`

	_, err := b.db.ExecContext(ctx, query,
		node.ID.String(),
		node.NodeType.String(),
		nullable(node.Subtype),
		node.Content,
		int(node.Tier),
		node.Confidence,
		node.AccessCount,
		formatStoredTime(node.CreatedAt),
		formatStoredTime(node.LastAccessed),
		metadataJSON,
	)
	if err != nil {
		return NewStorageError("failed to persist node", err)
	}
	return nil
}

func (b *sqliteBackend) PersistEdge(ctx context.Context, edge *HyperEdge) error {
	err := b.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO hyperedges (id, edge_type, label, weight, created_at, seq)
			VALUES (?, ?, ?, ?, ?,
			        (SELECT COALESCE(MAX(seq), 0) + 1 FROM hyperedges))
			ON CONFLICT(id) DO UPDATE SET
				edge_type = excluded.edge_type,
				label = excluded.label,
				weight = excluded.weight`,
			edge.ID.String(),
			edge.EdgeType,
			nullable(edge.Label),
			edge.Weight,
			formatStoredTime(edge.CreatedAt),
		)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM membership WHERE hyperedge_id = ?`, edge.ID.String()); err != nil {
			return err
		}

		for position, nodeID := range edge.NodeIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO membership (hyperedge_id, node_id, position)
				VALUES (?, ?, ?)`,
				edge.ID.String(), nodeID.String(), position); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return NewStorageError("failed to persist edge", err)
	}
	return nil
}

func (b *sqliteBackend) DeleteNode(ctx context.Context, id types.ID) error {
	if _, err := b.db.ExecContext(ctx,
		`DELETE FROM nodes WHERE id = ?`, id.String()); err != nil {
		return NewStorageError("failed to delete node", err)
	}
	return nil
}

func (b *sqliteBackend) DeleteEdge(ctx context.Context, id types.ID) error {
	err := b.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM membership WHERE hyperedge_id = ?`, id.String()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`DELETE FROM hyperedges WHERE id = ?`, id.String())
		return err
	})
	if err != nil {
		return NewStorageError("failed to delete edge", err)
	}
	return nil
}

func (b *sqliteBackend) AppendEvolution(ctx context.Context, entry EvolutionEntry) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO evolution_log (node_id, operation, from_tier, to_tier, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.NodeID.String(),
		entry.Operation,
		int(entry.FromTier),
		int(entry.ToTier),
		entry.Reason,
		formatStoredTime(entry.Timestamp),
	)
	if err != nil {
		return NewStorageError("failed to append evolution entry", err)
	}
	return nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatStoredTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseStoredTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
