// Package accounts rebuilds the set of linked accounts from the credential store.
package accounts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/davidjwriter/money-tracker/internal/common"
	"github.com/davidjwriter/money-tracker/internal/model"
	"github.com/davidjwriter/money-tracker/internal/service"
)

// Lister implements service.AccountLister.
type Lister struct {
	store  service.CredentialScanner
	logger *slog.Logger
}

// NewLister creates a Lister over store.
func NewLister(store service.CredentialScanner) *Lister {
	return &Lister{
		store:  store,
		logger: slog.Default().With("component", "accounts"),
	}
}

// ListAccounts scans every stored credential and returns the complete collection.
// One invalid row fails the whole call and no partial collection is returned.
// The collection is rebuilt on every call.
func (l *Lister) ListAccounts(ctx context.Context) (model.AccountCollection, error) {
	rows, err := l.store.ScanAll(ctx)
	if err != nil {
		l.logger.Error("Credential scan failed", "stage", common.Stage(err), "error", err)
		return nil, err
	}

	accounts, err := Reconstruct(rows)
	if err != nil {
		l.logger.Error("Credential table contains an invalid record",
			"stage", common.StageEnumerate,
			"rows", len(rows),
			"error", err)
		return nil, err
	}

	l.logger.Debug("Listed accounts", "count", len(accounts))
	return accounts, nil
}

// Reconstruct validates rows in order and converts them into accounts.
func Reconstruct(rows []model.RawCredential) (model.AccountCollection, error) {
	accounts := make(model.AccountCollection, 0, len(rows))
	for i, row := range rows {
		if row.ID == "" {
			return nil, fmt.Errorf("%w: row %d missing uuid", common.ErrInvalidRecord, i)
		}
		if row.AccessToken == "" {
			return nil, fmt.Errorf("%w: row %d (id %q) missing access_token", common.ErrInvalidRecord, i, row.ID)
		}
		if row.FinancialInstitution == "" {
			return nil, fmt.Errorf("%w: row %d (id %q) missing financial_institution", common.ErrInvalidRecord, i, row.ID)
		}
		accounts = append(accounts, model.Account{
			AccessToken:          row.AccessToken,
			FinancialInstitution: row.FinancialInstitution,
		})
	}
	return accounts, nil
}

var _ service.AccountLister = (*Lister)(nil)
