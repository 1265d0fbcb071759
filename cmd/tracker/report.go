package main

import (
	"context"
	"fmt"
	"time"

	"github.com/davidjwriter/money-tracker/internal/accounts"
	"github.com/davidjwriter/money-tracker/internal/cli"
	"github.com/davidjwriter/money-tracker/internal/report"
	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Weekly budget report",
	}

	cmd.AddCommand(reportRunCmd())

	return cmd
}

func reportRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the weekly report once",
		Long: `Enumerate every linked account and run the report now, outside the
schedule. The run fails without delivering anything if any stored record
is incomplete.`,
		RunE: runReport,
	}

	cmd.Flags().Bool("no-progress", false, "Disable the progress bar")

	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	ctx = cli.NewInterruptHandler(cmd.ErrOrStderr(), "Report interrupted!").HandleInterrupts(ctx)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	var opts []report.RunnerOption
	if !noProgress {
		bar := cli.NewProgressBar(cmd.ErrOrStderr(), 1, "Running report...")
		opts = append(opts, report.WithProgress(cli.ProgressFunc(bar)))
	}

	summary, err := report.NewRunner(accounts.NewLister(store), report.NewLogSink(), opts...).Run(ctx)
	if err != nil {
		return fmt.Errorf("report failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
		"Report covered %d accounts in %s", summary.Accounts, summary.Duration().Round(time.Millisecond))))
	return nil
}
