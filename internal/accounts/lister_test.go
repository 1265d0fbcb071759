package accounts

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/davidjwriter/money-tracker/internal/common"
	"github.com/davidjwriter/money-tracker/internal/model"
	"github.com/davidjwriter/money-tracker/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScanner struct {
	err   error
	rows  []model.RawCredential
	calls int
}

func (f *fakeScanner) ScanAll(_ context.Context) ([]model.RawCredential, error) {
	f.calls++
	return f.rows, f.err
}

func validRows(n int) []model.RawCredential {
	rows := make([]model.RawCredential, n)
	for i := range rows {
		rows[i] = model.RawCredential{
			ID:                   fmt.Sprintf("id-%d", i),
			AccessToken:          fmt.Sprintf("tok-%d", i),
			FinancialInstitution: fmt.Sprintf("Bank %d", i),
		}
	}
	return rows
}

func TestLister_ListAccounts_AllValid(t *testing.T) {
	rows := validRows(5)
	lister := NewLister(&fakeScanner{rows: rows})

	accounts, err := lister.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, len(rows))

	for i, row := range rows {
		assert.Equal(t, row.AccessToken, accounts[i].AccessToken)
		assert.Equal(t, row.FinancialInstitution, accounts[i].FinancialInstitution)
	}
}

func TestLister_ListAccounts_Empty(t *testing.T) {
	lister := NewLister(&fakeScanner{})

	accounts, err := lister.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestLister_ListAccounts_InvalidRowFailsClosed(t *testing.T) {
	tests := []struct {
		mutate func(*model.RawCredential)
		name   string
		field  string
		index  int
	}{
		{
			name:   "missing access token in the middle",
			index:  2,
			mutate: func(r *model.RawCredential) { r.AccessToken = "" },
			field:  "access_token",
		},
		{
			name:   "missing institution in the last row",
			index:  4,
			mutate: func(r *model.RawCredential) { r.FinancialInstitution = "" },
			field:  "financial_institution",
		},
		{
			name:   "missing uuid",
			index:  1,
			mutate: func(r *model.RawCredential) { r.ID = "" },
			field:  "uuid",
		},
		{
			name:   "missing both in the first row",
			index:  0,
			mutate: func(r *model.RawCredential) { *r = model.RawCredential{ID: r.ID} },
			field:  "access_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := validRows(5)
			tt.mutate(&rows[tt.index])
			lister := NewLister(&fakeScanner{rows: rows})

			accounts, err := lister.ListAccounts(context.Background())
			require.Error(t, err)
			assert.Nil(t, accounts)
			assert.ErrorIs(t, err, common.ErrInvalidRecord)
			assert.Contains(t, err.Error(), tt.field)
			assert.Contains(t, err.Error(), rows[tt.index].ID)
		})
	}
}

func TestLister_ListAccounts_PropagatesReadError(t *testing.T) {
	readErr := fmt.Errorf("%w: disk on fire", common.ErrStoreRead)
	lister := NewLister(&fakeScanner{err: readErr})

	accounts, err := lister.ListAccounts(context.Background())
	require.Error(t, err)
	assert.Nil(t, accounts)
	assert.True(t, errors.Is(err, common.ErrStoreRead))
	assert.Equal(t, readErr, err)
}

func TestLister_ListAccounts_NotCached(t *testing.T) {
	scanner := &fakeScanner{rows: validRows(1)}
	lister := NewLister(scanner)

	_, err := lister.ListAccounts(context.Background())
	require.NoError(t, err)

	scanner.rows = validRows(3)
	accounts, err := lister.ListAccounts(context.Background())
	require.NoError(t, err)

	assert.Len(t, accounts, 3)
	assert.Equal(t, 2, scanner.calls)
}

func TestLister_ListAccounts_SQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "accounts.db"), "PlaidAccessKeys")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	for _, inst := range []string{"Chase", "Wells Fargo", "Chase"} {
		require.NoError(t, store.Insert(ctx, model.CredentialRecord{
			ID:                   uuid.NewString(),
			AccessToken:          "tok-" + inst,
			FinancialInstitution: inst,
		}))
	}

	accounts, err := NewLister(store).ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 3)
	assert.ElementsMatch(t, []string{"Chase", "Chase", "Wells Fargo"}, accounts.Institutions())
}
