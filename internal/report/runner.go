// Package report runs the weekly budget report over every linked account.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/davidjwriter/money-tracker/internal/model"
	"github.com/davidjwriter/money-tracker/internal/service"
)

// Sink receives each account of a report run.
type Sink interface {
	Deliver(ctx context.Context, account model.Account) error
}

// LogSink writes one log line per account with the token masked.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs through the default logger.
func NewLogSink() *LogSink {
	return &LogSink{logger: slog.Default().With("component", "report")}
}

// Deliver implements Sink.
func (s *LogSink) Deliver(_ context.Context, account model.Account) error {
	s.logger.Info("Report account",
		"institution", account.FinancialInstitution,
		"token", account.MaskedToken())
	return nil
}

// Summary describes a finished run.
type Summary struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	Institutions []string
	Accounts     int
}

// Duration returns how long the run took.
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Runner enumerates accounts and hands them to a Sink.
type Runner struct {
	lister   service.AccountLister
	sink     Sink
	logger   *slog.Logger
	progress func(done, total int)
	now      func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithProgress registers a callback invoked after each delivered account.
func WithProgress(fn func(done, total int)) RunnerOption {
	return func(r *Runner) {
		r.progress = fn
	}
}

// NewRunner creates a Runner. A nil sink logs each account.
func NewRunner(lister service.AccountLister, sink Sink, opts ...RunnerOption) *Runner {
	if sink == nil {
		sink = NewLogSink()
	}
	r := &Runner{
		lister: lister,
		sink:   sink,
		logger: slog.Default().With("component", "report"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one report. If enumeration fails nothing is delivered.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{StartedAt: r.now()}

	accounts, err := r.lister.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate accounts: %w", err)
	}

	r.logger.Info("Report run started", "accounts", len(accounts))

	for i, account := range accounts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("report canceled after %d of %d accounts: %w", i, len(accounts), err)
		}
		if err := r.sink.Deliver(ctx, account); err != nil {
			return nil, fmt.Errorf("failed to deliver account %d (%s): %w", i, account.FinancialInstitution, err)
		}
		if r.progress != nil {
			r.progress(i+1, len(accounts))
		}
	}

	summary.Accounts = len(accounts)
	summary.Institutions = accounts.Institutions()
	summary.FinishedAt = r.now()

	r.logger.Info("Report run finished",
		"accounts", summary.Accounts,
		"duration", summary.Duration())

	return summary, nil
}
