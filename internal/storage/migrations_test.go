package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func migrationDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("duckdb", filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return db
}

func TestMigrateUp(t *testing.T) {
	db := migrationDB(t)
	ctx := context.Background()

	manager := NewMigrationManager(db)
	require.NoError(t, manager.MigrateUp(ctx))

	// Tables exist afterwards.
	for _, table := range []string{"forms", "fields", "submissions"} {
		var count int
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := migrationDB(t)
	ctx := context.Background()

	manager := NewMigrationManager(db)
	require.NoError(t, manager.MigrateUp(ctx))
	require.NoError(t, manager.MigrateUp(ctx))

	applied, err := manager.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(manager.GetMigrations()), len(applied))
}

func TestMigrationStatus(t *testing.T) {
	db := migrationDB(t)
	ctx := context.Background()

	manager := NewMigrationManager(db)
	require.NoError(t, manager.InitializeMigrationTable(ctx))

	status, err := manager.GetMigrationStatus(ctx)
	require.NoError(t, err)

	for _, s := range status {
		assert.False(t, s.Applied)
	}

	require.NoError(t, manager.MigrateUp(ctx))

	status, err = manager.GetMigrationStatus(ctx)
	require.NoError(t, err)

	for _, s := range status {
		assert.True(t, s.Applied)
		assert.False(t, s.AppliedAt.IsZero())
	}
}

func TestMigrateDown(t *testing.T) {
	db := migrationDB(t)
	ctx := context.Background()

	manager := NewMigrationManager(db)
	require.NoError(t, manager.MigrateUp(ctx))
	require.NoError(t, manager.MigrateDown(ctx, 0))

	applied, err := manager.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}
