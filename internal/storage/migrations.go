package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a schema migration applied to one credential table.
type Migration struct {
	Up          func(ctx context.Context, tx *sql.Tx, table string) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Create credential table",
		Up: func(ctx context.Context, tx *sql.Tx, table string) error {
			_, err := tx.ExecContext(ctx, fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					uuid TEXT NOT NULL PRIMARY KEY,
					access_token TEXT,
					financial_institution TEXT,
					created_at TIMESTAMP
				)
			`, quoteIdent(table)))
			return err
		},
	},
	{
		Version:     2,
		Description: "Index credentials by institution",
		Up: func(ctx context.Context, tx *sql.Tx, table string) error {
			_, err := tx.ExecContext(ctx, fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS %s ON %s (financial_institution)`,
				quoteIdent("idx_"+table+"_institution"),
				quoteIdent(table),
			))
			return err
		},
	},
}

// Migrate applies all pending migrations to the configured credential table.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := s.requireTable(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			table_name TEXT NOT NULL,
			version INTEGER NOT NULL,
			description TEXT,
			applied_at TIMESTAMP,
			PRIMARY KEY (table_name, version)
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(ctx, tx, s.table); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO schema_migrations (table_name, version, description, applied_at)
			VALUES (?, ?, ?, ?)
		`), s.table, migration.Version, migration.Description, time.Now().UTC()); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"table", s.table,
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the highest applied migration for the credential table,
// or zero when none has been applied.
func (s *Storage) SchemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT MAX(version) FROM schema_migrations WHERE table_name = ?`,
	), s.table).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return int(version.Int64), nil
}
