package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/davidjwriter/money-tracker/internal/common"
	"github.com/davidjwriter/money-tracker/internal/config"
	"github.com/davidjwriter/money-tracker/internal/plaid"
	"github.com/davidjwriter/money-tracker/internal/storage"
	"github.com/spf13/viper"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("Invalid configuration. Check your config file and environment.", err)
	}
	return cfg, nil
}

// initStorage opens the configured credential store and applies migrations.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.Storage, error) {
	location := cfg.Store.Path
	if cfg.Store.Driver == string(storage.DialectPostgres) {
		location = cfg.Store.DSN
	}

	store, err := storage.Open(ctx, cfg.Store.Driver, location, cfg.Store.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func closeStorage(store *storage.Storage) {
	if err := store.Close(); err != nil {
		slog.Error("failed to close storage", "error", err)
	}
}

func newPlaidClient(cfg *config.Config) (*plaid.Client, error) {
	client, err := plaid.NewClient(plaid.Config{
		Environment: cfg.Plaid.Environment,
		BaseURL:     cfg.Plaid.BaseURL,
		Timeout:     cfg.Plaid.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Plaid client: %w", err)
	}
	return client, nil
}
