package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen(t *testing.T) {
	db := openTestDB(t)
	assert.NotNil(t, db.Conn())
	assert.NoError(t, db.Health(context.Background()))
}

func TestOpenEnablesPragmas(t *testing.T) {
	db := openTestDB(t)

	var journalMode string
	require.NoError(t, db.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, db.Conn().QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestInitSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	assert.False(t, db.IsInitialized(ctx))
	require.NoError(t, db.InitSchema(ctx))
	assert.True(t, db.IsInitialized(ctx))

	version, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)

	// second run is a no-op
	require.NoError(t, db.InitSchema(ctx))
	version, err = db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestInitSchemaCreatesTables(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.InitSchema(ctx))

	for _, table := range []string{"nodes", "hyperedges", "membership", "evolution_log", "schema_version"} {
		var count int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s must exist", table)
	}
}

func TestWithTxCommit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.InitSchema(ctx))

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO nodes (id, node_type, content, created_at, last_accessed)
			VALUES ('a', 'fact', 'committed', datetime('now'), datetime('now'))`)
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTxRollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.InitSchema(ctx))

	sentinel := errors.New("abort")
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO nodes (id, node_type, content, created_at, last_accessed)
			VALUES ('b', 'fact', 'rolled back', datetime('now'), datetime('now'))`); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&count))
	assert.Equal(t, 0, count, "failed transaction leaves no rows")
}

func TestMembershipCascade(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.InitSchema(ctx))

	_, err := db.ExecContext(ctx, `
		INSERT INTO hyperedges (id, edge_type, created_at) VALUES ('e1', 'links', datetime('now'))`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		INSERT INTO membership (hyperedge_id, node_id, position) VALUES ('e1', 'n1', 0)`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `DELETE FROM hyperedges WHERE id='e1'`)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM membership").Scan(&count))
	assert.Equal(t, 0, count, "membership rows go with their edge")
}

func TestCloseIsSafe(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "close.db"))
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}

func TestVacuumAndCheckpoint(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.InitSchema(ctx))

	assert.NoError(t, db.Vacuum(ctx))
	assert.NoError(t, db.Checkpoint(ctx))
}
