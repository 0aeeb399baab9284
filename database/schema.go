package database

import (
	"context"
	"fmt"
)

// SchemaVersion is the current hypergraph schema version.
const SchemaVersion = 1

// InitSchema initializes the hypergraph schema, applying any missing versions.
// It is idempotent: opening an already-initialized database is a no-op.
func (db *DB) InitSchema(ctx context.Context) error {
	// Schema version bookkeeping table
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if version < 1 {
		if err := db.applyV1Schema(ctx); err != nil {
			return err
		}
	}

	return nil
}

// SchemaVersion returns the highest applied schema version, 0 if none.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// IsInitialized reports whether the hypergraph tables exist.
func (db *DB) IsInitialized(ctx context.Context) bool {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='nodes'").Scan(&count)
	return err == nil && count > 0
}

// applyV1Schema creates the node/hyperedge/membership/evolution tables
// and the secondary indexes the store's queries depend on.
func (db *DB) applyV1Schema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			node_type TEXT NOT NULL,
			subtype TEXT,
			content TEXT NOT NULL,
			tier INTEGER NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 1.0,
			access_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			last_accessed TEXT NOT NULL DEFAULT (datetime('now')),
			metadata TEXT,
			seq INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS hyperedges (
			id TEXT PRIMARY KEY,
			edge_type TEXT NOT NULL,
			label TEXT,
			weight REAL NOT NULL DEFAULT 1.0,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			seq INTEGER NOT NULL DEFAULT 0
		)`,
		// Membership rows are deleted with their edge. Node deletion does
		// not cascade here: orphaned edges stay retrievable. Position is
		// part of the key so an edge may list the same node more than once.
		`CREATE TABLE IF NOT EXISTS membership (
			hyperedge_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (hyperedge_id, node_id, position),
			FOREIGN KEY (hyperedge_id) REFERENCES hyperedges(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS evolution_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			node_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			from_tier INTEGER,
			to_tier INTEGER,
			reason TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(node_type)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_tier ON nodes(tier)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_confidence ON nodes(confidence)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_last_accessed ON nodes(last_accessed)`,
		`CREATE INDEX IF NOT EXISTS idx_membership_node ON membership(node_id)`,
		`CREATE INDEX IF NOT EXISTS idx_evolution_node ON evolution_log(node_id)`,
		`INSERT INTO schema_version (version) VALUES (1)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply v1 schema: %w", err)
		}
	}

	return nil
}
