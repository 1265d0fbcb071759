package main

import (
	"fmt"
	"log/slog"

	"github.com/davidjwriter/money-tracker/internal/accounts"
	"github.com/davidjwriter/money-tracker/internal/link"
	"github.com/davidjwriter/money-tracker/internal/report"
	"github.com/davidjwriter/money-tracker/internal/server"
	"github.com/davidjwriter/money-tracker/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the link endpoints",
		Long: `Start the HTTP server that receives public tokens from Plaid Link,
exchanges them for access tokens, and records them in the credential store.

When report.enabled is set, the weekly report runs on report.schedule
in the same process.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().Bool("report", false, "enable the scheduled weekly report (overrides report.enabled)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("report.enabled", cmd.Flags().Lookup("report"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	secrets := cfg.Secrets()
	slog.Info("Loaded configuration",
		"secrets", secrets,
		"environment", cfg.Plaid.Environment,
		"store", cfg.Store.Driver)

	client, err := newPlaidClient(cfg)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	exchanger := link.NewExchanger(secrets, client, store,
		link.WithPersistRetry(service.RetryOptions{MaxAttempts: cfg.Store.WriteAttempts}))

	var sched *report.Scheduler
	if cfg.Report.Enabled {
		runner := report.NewRunner(accounts.NewLister(store), report.NewLogSink())
		sched, err = report.NewScheduler(cfg.Report.Schedule, runner, 0)
		if err != nil {
			return fmt.Errorf("failed to create report scheduler: %w", err)
		}
		sched.Start()
		defer sched.Shutdown(cfg.Server.ShutdownTimeout)
	} else {
		slog.Info("Report scheduler is disabled")
	}

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, server.NewHandler(exchanger, secrets, client))

	return srv.Run(ctx)
}
