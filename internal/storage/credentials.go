package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/davidjwriter/money-tracker/internal/common"
	"github.com/davidjwriter/money-tracker/internal/model"
)

// Insert writes one credential record keyed by its id.
// Re-putting an identical record is a no-op, so a retried write cannot duplicate it.
// An id already holding a different token or institution is a write failure.
func (s *Storage) Insert(ctx context.Context, record model.CredentialRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := s.requireTable(); err != nil {
		return err
	}
	if err := validateRecord(record); err != nil {
		return err
	}

	return s.insertTx(ctx, s.db, record)
}

func (s *Storage) insertTx(ctx context.Context, q queryable, record model.CredentialRecord) error {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := s.rebind(fmt.Sprintf(`
		INSERT INTO %s (uuid, access_token, financial_institution, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (uuid) DO NOTHING
	`, quoteIdent(s.table)))

	result, err := q.ExecContext(ctx, query,
		record.ID,
		record.AccessToken,
		record.FinancialInstitution,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStoreWrite, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStoreWrite, err)
	}
	if affected > 0 {
		return nil
	}

	return s.confirmExisting(ctx, q, record)
}

// confirmExisting accepts a skipped insert only when the stored row is the same record.
func (s *Storage) confirmExisting(ctx context.Context, q queryable, record model.CredentialRecord) error {
	query := s.rebind(fmt.Sprintf(`
		SELECT access_token, financial_institution
		FROM %s
		WHERE uuid = ?
	`, quoteIdent(s.table)))

	var accessToken, institution sql.NullString
	if err := q.QueryRowContext(ctx, query, record.ID).Scan(&accessToken, &institution); err != nil {
		return fmt.Errorf("%w: failed to read back id %q: %w", common.ErrStoreWrite, record.ID, err)
	}

	if accessToken.String != record.AccessToken || institution.String != record.FinancialInstitution {
		return fmt.Errorf("%w: id %q already holds a different credential", common.ErrStoreWrite, record.ID)
	}
	return nil
}

// ScanAll reads every credential row in store-defined order.
func (s *Storage) ScanAll(ctx context.Context) ([]model.RawCredential, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := s.requireTable(); err != nil {
		return nil, err
	}

	return s.scanAllTx(ctx, s.db)
}

func (s *Storage) scanAllTx(ctx context.Context, q queryable) ([]model.RawCredential, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT uuid, access_token, financial_institution
		FROM %s
	`, quoteIdent(s.table)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStoreRead, err)
	}
	defer func() { _ = rows.Close() }()

	var credentials []model.RawCredential
	for rows.Next() {
		var (
			id          sql.NullString
			accessToken sql.NullString
			institution sql.NullString
		)
		if err := rows.Scan(&id, &accessToken, &institution); err != nil {
			return nil, fmt.Errorf("%w: failed to scan row: %w", common.ErrStoreRead, err)
		}
		credentials = append(credentials, model.RawCredential{
			ID:                   id.String,
			AccessToken:          accessToken.String,
			FinancialInstitution: institution.String,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStoreRead, err)
	}

	return credentials, nil
}

// Count returns the number of stored credential rows.
func (s *Storage) Count(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := s.requireTable(); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(s.table))).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count credentials: %w", common.ErrStoreRead, err)
	}
	return count, nil
}
