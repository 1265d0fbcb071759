// Package storage provides the credential persistence layer.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/davidjwriter/money-tracker/internal/service"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Dialect selects the SQL flavor spoken by the underlying driver.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Storage implements service.CredentialStore on top of database/sql.
type Storage struct {
	db      *sql.DB
	dialect Dialect
	table   string
}

// queryable is satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLiteStorage opens (creating if needed) a SQLite database at dbPath.
// An empty table leaves the store unusable until configured; every call then
// fails with a configuration error.
func NewSQLiteStorage(dbPath, table string) (*Storage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newStorage(db, DialectSQLite, table)
}

// NewPostgresStorage connects to PostgreSQL using a lib/pq connection string.
func NewPostgresStorage(ctx context.Context, dsn, table string) (*Storage, error) {
	if err := validateString(dsn, "dsn"); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newStorage(db, DialectPostgres, table)
}

// Open picks the driver by name.
func Open(ctx context.Context, driver, location, table string) (*Storage, error) {
	switch Dialect(driver) {
	case DialectSQLite:
		return NewSQLiteStorage(location, table)
	case DialectPostgres:
		return NewPostgresStorage(ctx, location, table)
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", driver)
	}
}

func newStorage(db *sql.DB, dialect Dialect, table string) (*Storage, error) {
	table = strings.TrimSpace(table)
	if table != "" {
		if err := validateTableName(table); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Storage{db: db, dialect: dialect, table: table}, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Table returns the configured credential table name.
func (s *Storage) Table() string {
	return s.table
}

// Dialect returns the SQL dialect in use.
func (s *Storage) Dialect() Dialect {
	return s.dialect
}

// rebind rewrites ? placeholders into the dialect's form.
func (s *Storage) rebind(query string) string {
	return rebind(s.dialect, query)
}

func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// quoteIdent double-quotes an identifier that has already passed validateTableName.
func quoteIdent(name string) string {
	return `"` + name + `"`
}

var _ service.CredentialStore = (*Storage)(nil)
