package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"discovery-sync/feature/orchestrator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	release chan struct{}
	err     error

	mu    sync.Mutex
	calls []orchestrator.RunOptions
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{release: make(chan struct{})}
}

func (r *fakeRunner) Run(ctx context.Context, opts orchestrator.RunOptions) (*orchestrator.Report, error) {
	r.mu.Lock()
	r.calls = append(r.calls, opts)
	r.mu.Unlock()

	select {
	case <-r.release:
	case <-ctx.Done():
		return &orchestrator.Report{RunID: opts.RunID, Status: orchestrator.StatusFailed}, ctx.Err()
	}
	status := orchestrator.StatusSucceeded
	if r.err != nil {
		status = orchestrator.StatusFailed
	}
	return &orchestrator.Report{RunID: opts.RunID, Status: status}, r.err
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type fakeArchive struct {
	reports map[string]*orchestrator.Report
}

func (a *fakeArchive) Load(_ context.Context, runID string) (*orchestrator.Report, error) {
	if r, ok := a.reports[runID]; ok {
		return r, nil
	}
	return nil, errors.New("object not found")
}

func TestStartRunsInBackground(t *testing.T) {
	runner := newFakeRunner()
	svc := NewService(runner, nil, zap.NewNop())
	defer svc.Close()

	job, err := svc.Start([]string{"Host"}, TriggerAPI)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, job.Status)
	assert.Equal(t, job.ID, svc.Active())

	_, err = svc.Start(nil, TriggerAPI)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(runner.release)
	svc.Wait()

	done, err := svc.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, done.Status)
	require.NotNil(t, done.FinishedAt)
	require.NotNil(t, done.Report)
	assert.Equal(t, job.ID, done.Report.RunID)
	assert.Empty(t, svc.Active())

	runner.mu.Lock()
	assert.Equal(t, []string{"Host"}, runner.calls[0].Kinds)
	assert.Equal(t, job.ID, runner.calls[0].RunID)
	runner.mu.Unlock()
}

func TestFailedRunRecordsError(t *testing.T) {
	runner := newFakeRunner()
	runner.err = orchestrator.ErrPrimaryKindEmpty
	close(runner.release)
	svc := NewService(runner, nil, zap.NewNop())
	defer svc.Close()

	job, err := svc.Start(nil, TriggerAPI)
	require.NoError(t, err)
	svc.Wait()

	done, err := svc.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, done.Status)
	assert.Contains(t, done.Error, "primary kind")
}

func TestListNewestFirst(t *testing.T) {
	runner := newFakeRunner()
	close(runner.release)
	svc := NewService(runner, nil, zap.NewNop())
	defer svc.Close()

	first, err := svc.Start(nil, TriggerAPI)
	require.NoError(t, err)
	svc.Wait()
	second, err := svc.Start(nil, TriggerSchedule)
	require.NoError(t, err)
	svc.Wait()

	list := svc.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Nil(t, list[0].Report)
}

func TestReportFallsBackToArchive(t *testing.T) {
	archive := &fakeArchive{reports: map[string]*orchestrator.Report{"old": {RunID: "old", Edges: 3}}}
	svc := NewService(newFakeRunner(), archive, zap.NewNop())
	defer svc.Close()

	report, err := svc.Report(context.Background(), "old")
	require.NoError(t, err)
	assert.EqualValues(t, 3, report.Edges)

	_, err = svc.Report(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCloseCancelsActiveRun(t *testing.T) {
	runner := newFakeRunner()
	svc := NewService(runner, nil, zap.NewNop())

	job, err := svc.Start(nil, TriggerAPI)
	require.NoError(t, err)
	svc.Close()

	done, err := svc.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, done.Status)

	_, err = svc.Start(nil, TriggerAPI)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestScheduleStartsRuns(t *testing.T) {
	runner := newFakeRunner()
	close(runner.release)
	svc := NewService(runner, nil, zap.NewNop())
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Schedule(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return runner.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	svc.Wait()

	for _, job := range svc.List() {
		assert.Equal(t, TriggerSchedule, job.Trigger)
	}
}

func TestScheduleDisabled(t *testing.T) {
	svc := NewService(newFakeRunner(), nil, zap.NewNop())
	defer svc.Close()

	svc.Schedule(context.Background(), 0)
	assert.Empty(t, svc.List())
}
