package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Ordered(t *testing.T) {
	require.Len(t, migrations, ExpectedSchemaVersion)
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "migrations must be contiguous")
		assert.NotEmpty(t, m.Description)
		assert.NotNil(t, m.Up)
	}
}

func TestMigrate_TracksVersionPerTable(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "shared.db")

	first, err := NewSQLiteStorage(dbPath, "PlaidAccessKeys")
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })
	require.NoError(t, first.Migrate(ctx))

	second, err := NewSQLiteStorage(dbPath, "StagingAccessKeys")
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	version, err := second.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, second.Migrate(ctx))

	require.NoError(t, first.Insert(ctx, newRecord("tok-1", "Chase")))
	require.NoError(t, second.Insert(ctx, newRecord("tok-2", "Ally")))

	firstRows, err := first.ScanAll(ctx)
	require.NoError(t, err)
	secondRows, err := second.ScanAll(ctx)
	require.NoError(t, err)

	require.Len(t, firstRows, 1)
	require.Len(t, secondRows, 1)
	assert.Equal(t, "Chase", firstRows[0].FinancialInstitution)
	assert.Equal(t, "Ally", secondRows[0].FinancialInstitution)
}

func TestMigrate_CreatesInstitutionIndex(t *testing.T) {
	store := createTestStorage(t)

	var name string
	err := store.db.QueryRowContext(context.Background(),
		`SELECT name FROM sqlite_master WHERE type = 'index' AND name = ?`,
		"idx_"+testTable+"_institution",
	).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "idx_"+testTable+"_institution", name)
}

func TestMigrate_NilContext(t *testing.T) {
	store := createTestStorage(t)

	//nolint:staticcheck // nil context is the case under test
	err := store.Migrate(nil)
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestSchemaVersion_BeforeMigrate(t *testing.T) {
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "fresh.db"), testTable)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.SchemaVersion(context.Background())
	assert.Error(t, err)
}
