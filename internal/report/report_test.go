package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davidjwriter/money-tracker/internal/common"
	"github.com/davidjwriter/money-tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	err      error
	accounts model.AccountCollection
}

func (f *fakeLister) ListAccounts(_ context.Context) (model.AccountCollection, error) {
	return f.accounts, f.err
}

type recordingSink struct {
	err       error
	delivered []model.Account
	failAt    int
}

func (s *recordingSink) Deliver(_ context.Context, account model.Account) error {
	if s.err != nil && len(s.delivered) == s.failAt {
		return s.err
	}
	s.delivered = append(s.delivered, account)
	return nil
}

func testAccounts() model.AccountCollection {
	return model.AccountCollection{
		{AccessToken: "access-sandbox-1111", FinancialInstitution: "Chase"},
		{AccessToken: "access-sandbox-2222", FinancialInstitution: "Wells Fargo"},
		{AccessToken: "access-sandbox-3333", FinancialInstitution: "Chase"},
	}
}

func TestRunner_Run(t *testing.T) {
	sink := &recordingSink{}
	var progress [][2]int

	runner := NewRunner(&fakeLister{accounts: testAccounts()}, sink, WithProgress(func(done, total int) {
		progress = append(progress, [2]int{done, total})
	}))

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Accounts)
	assert.Equal(t, []string{"Chase", "Wells Fargo", "Chase"}, summary.Institutions)
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))
	assert.Equal(t, []model.Account(testAccounts()), sink.delivered)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
}

func TestRunner_Run_EnumerationFailureDeliversNothing(t *testing.T) {
	sink := &recordingSink{}
	listErr := fmt.Errorf("%w: row 1 missing access_token", common.ErrInvalidRecord)
	runner := NewRunner(&fakeLister{err: listErr}, sink)

	summary, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, common.ErrInvalidRecord)
	assert.Empty(t, sink.delivered)
}

func TestRunner_Run_SinkFailure(t *testing.T) {
	sinkErr := errors.New("smtp unavailable")
	sink := &recordingSink{err: sinkErr, failAt: 1}
	runner := NewRunner(&fakeLister{accounts: testAccounts()}, sink)

	_, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, sinkErr)
	assert.Contains(t, err.Error(), "Wells Fargo")
	assert.Len(t, sink.delivered, 1)
}

func TestRunner_Run_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{}
	_, err := NewRunner(&fakeLister{accounts: testAccounts()}, sink).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.delivered)
}

func TestRunner_DefaultSink(t *testing.T) {
	summary, err := NewRunner(&fakeLister{accounts: testAccounts()}, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Accounts)
}

func TestNewScheduler(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{name: "default", spec: ""},
		{name: "weekday names", spec: "30 8 * * MON-FRI"},
		{name: "descriptor", spec: "@weekly"},
		{name: "too few fields", spec: "0 9 *", wantErr: true},
		{name: "garbage", spec: "every monday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScheduler(tt.spec, NewRunner(&fakeLister{}, nil), time.Minute)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid report schedule")
				return
			}
			require.NoError(t, err)
			if tt.spec == "" {
				assert.Equal(t, DefaultSchedule, s.Spec())
			}
		})
	}
}

func TestScheduler_Next(t *testing.T) {
	s, err := NewScheduler(DefaultSchedule, NewRunner(&fakeLister{}, nil), 0)
	require.NoError(t, err)

	// Sunday 2024-06-02 12:00 local.
	from := time.Date(2024, time.June, 2, 12, 0, 0, 0, time.Local)
	next := s.Next(from)

	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 3, next.Day())
}

type blockingJob struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (j *blockingJob) Run(ctx context.Context) (*Summary, error) {
	j.calls.Add(1)
	close(j.started)
	select {
	case <-j.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Summary{}, nil
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	job := &blockingJob{started: make(chan struct{}), release: make(chan struct{})}
	s, err := NewScheduler(DefaultSchedule, job, 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.job.Run()
	}()

	select {
	case <-job.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never started")
	}

	// Returns immediately because the first run still holds the slot.
	s.job.Run()
	assert.Equal(t, int32(1), job.calls.Load())

	close(job.release)
	wg.Wait()
}

func TestScheduler_ShutdownCancelsRunningJob(t *testing.T) {
	job := &blockingJob{started: make(chan struct{}), release: make(chan struct{})}
	s, err := NewScheduler(DefaultSchedule, job, 0)
	require.NoError(t, err)
	s.Start()

	done := make(chan struct{})
	go func() {
		s.job.Run()
		close(done)
	}()
	<-job.started

	s.Shutdown(time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("running job was not canceled")
	}
}
