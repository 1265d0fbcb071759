package main

import (
	"fmt"
	"log/slog"

	"github.com/davidjwriter/money-tracker/internal/cli"
	"github.com/davidjwriter/money-tracker/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run credential store migrations",
		Long: `Create or update the credential table and its indexes.

This command is safe to run repeatedly; already applied migrations are skipped.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	status, _ := cmd.Flags().GetBool("status")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	location := cfg.Store.Path
	if cfg.Store.Driver == string(storage.DialectPostgres) {
		location = cfg.Store.DSN
	}

	slog.Info("Starting credential store migration",
		"driver", cfg.Store.Driver,
		"table", cfg.Store.Table,
		"status_only", status)

	store, err := storage.Open(ctx, cfg.Store.Driver, location, cfg.Store.Table)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	defer closeStorage(store)

	out := cmd.OutOrStdout()

	if status {
		current, err := store.SchemaVersion(ctx)
		if err != nil {
			slog.Debug("Schema version unavailable", "error", err)
			current = 0
		}
		fmt.Fprintln(out, cli.FormatTitle("Credential Store Migration Status"))
		fmt.Fprintf(out, "Store:           %s\n", store.Dialect())
		fmt.Fprintf(out, "Table:           %s\n", store.Table())
		fmt.Fprintf(out, "Current version: %d\n", current)
		fmt.Fprintf(out, "Latest version:  %d\n", storage.ExpectedSchemaVersion)
		if current < storage.ExpectedSchemaVersion {
			fmt.Fprintln(out, cli.FormatWarning("Pending migrations. Run 'tracker migrate' to apply them."))
		}
		return nil
	}

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Credential table %s is at version %d", store.Table(), storage.ExpectedSchemaVersion)))
	return nil
}
