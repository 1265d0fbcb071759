// Package service defines the interfaces shared between application components.
package service

import (
	"context"
	"time"

	"github.com/davidjwriter/money-tracker/internal/model"
)

// SecretProvider supplies the values needed to authenticate to the aggregator
// and to address the credential table. Each getter reports false when unset.
type SecretProvider interface {
	ClientID() (string, bool)
	APISecret() (string, bool)
	TableName() (string, bool)
}

// CredentialWriter persists one credential record per linking event.
type CredentialWriter interface {
	Insert(ctx context.Context, record model.CredentialRecord) error
}

// CredentialScanner reads every stored credential row.
type CredentialScanner interface {
	ScanAll(ctx context.Context) ([]model.RawCredential, error)
}

// CredentialStore defines the contract for our persistence layer.
type CredentialStore interface {
	CredentialWriter
	CredentialScanner
	Count(ctx context.Context) (int, error)
	Migrate(ctx context.Context) error
	Close() error
}

// AccountLister exposes the validated account collection to the reporting job.
type AccountLister interface {
	ListAccounts(ctx context.Context) (model.AccountCollection, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
