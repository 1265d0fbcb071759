package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the report every Monday at 09:00 local time.
const DefaultSchedule = "0 9 * * MON"

// Job is the unit the scheduler triggers.
type Job interface {
	Run(ctx context.Context) (*Summary, error)
}

// Scheduler triggers a Job on a cron schedule. A trigger that fires while the
// previous run is still going is skipped.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	job      cron.Job
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
	spec     string
	timeout  time.Duration
}

// NewScheduler parses spec as a standard five-field cron expression
// (descriptors such as @weekly are accepted too).
func NewScheduler(spec string, job Job, timeout time.Duration) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid report schedule %q: %w", spec, err)
	}

	logger := slog.Default().With("component", "scheduler")
	cronLog := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLog)),
		schedule: schedule,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		spec:     spec,
		timeout:  timeout,
	}

	s.job = cron.NewChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	).Then(cron.FuncJob(func() { s.trigger(job) }))

	s.cron.Schedule(schedule, s.job)
	return s, nil
}

// Spec returns the schedule expression.
func (s *Scheduler) Spec() string {
	return s.spec
}

// Next returns the first trigger time after from.
func (s *Scheduler) Next(from time.Time) time.Time {
	return s.schedule.Next(from)
}

// Start begins triggering in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Report scheduler started", "schedule", s.spec, "next", s.Next(time.Now()))
}

// Shutdown cancels any running report and waits up to timeout for it to return.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	s.logger.Info("Report scheduler shutting down")
	stopped := s.cron.Stop()
	s.cancel()

	select {
	case <-stopped.Done():
		s.logger.Info("Report scheduler stopped")
	case <-time.After(timeout):
		s.logger.Warn("Report scheduler shutdown timed out", "timeout", timeout)
	}
}

func (s *Scheduler) trigger(job Job) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	summary, err := job.Run(ctx)
	if err != nil {
		s.logger.Error("Scheduled report failed", "error", err)
		return
	}
	s.logger.Info("Scheduled report completed", "accounts", summary.Accounts)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
