package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"discovery-sync/feature/orchestrator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job states.
const (
	StatusRunning   = "running"
	StatusSucceeded = orchestrator.StatusSucceeded
	StatusFailed    = orchestrator.StatusFailed
)

// Triggers.
const (
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
)

// historyLimit bounds the finished runs kept in memory.
const historyLimit = 100

var (
	// ErrRunInProgress is returned when a run is requested while another is active.
	ErrRunInProgress = errors.New("jobs: a sync run is already in progress")
	// ErrNotFound is returned for unknown run ids.
	ErrNotFound = errors.New("jobs: run not found")
	// ErrClosed is returned once the service has been closed.
	ErrClosed = errors.New("jobs: service closed")
)

// Runner performs sync runs.
type Runner interface {
	Run(ctx context.Context, opts orchestrator.RunOptions) (*orchestrator.Report, error)
}

// ReportLoader loads archived run reports.
type ReportLoader interface {
	Load(ctx context.Context, runID string) (*orchestrator.Report, error)
}

// Job is the state of one sync run.
type Job struct {
	ID         string               `json:"id"`
	Status     string               `json:"status"`
	Trigger    string               `json:"trigger"`
	Kinds      []string             `json:"kinds,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
	Error      string               `json:"error,omitempty"`
	Report     *orchestrator.Report `json:"report,omitempty"`
}

// Service runs at most one sync at a time in the background and remembers
// recent runs.
type Service struct {
	runner  Runner
	archive ReportLoader
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	jobs   map[string]*Job
	order  []string
	active string
	closed bool
}

// NewService creates a job service. archive may be nil.
func NewService(runner Runner, archive ReportLoader, logger *zap.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		runner:  runner,
		archive: archive,
		logger:  logger.With(zap.String("component", "jobs")),
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]*Job),
	}
}

// Start launches a run in the background. kinds restricts the run; nil runs the
// configured kinds.
func (s *Service) Start(kinds []string, trigger string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Job{}, ErrClosed
	}
	if s.active != "" {
		return Job{}, ErrRunInProgress
	}

	job := &Job{
		ID:        uuid.New().String(),
		Status:    StatusRunning,
		Trigger:   trigger,
		Kinds:     kinds,
		StartedAt: time.Now().UTC(),
	}
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	s.active = job.ID
	s.trim()

	s.wg.Add(1)
	go s.execute(job.ID, kinds)

	s.logger.Info("Sync run queued", zap.String("run_id", job.ID), zap.String("trigger", trigger), zap.Strings("kinds", kinds))
	return *job, nil
}

func (s *Service) execute(id string, kinds []string) {
	defer s.wg.Done()

	report, err := s.runner.Run(s.ctx, orchestrator.RunOptions{RunID: id, Kinds: kinds})

	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	finished := time.Now().UTC()
	job.FinishedAt = &finished
	job.Report = report
	job.Status = StatusSucceeded
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
	}
	s.active = ""
}

// trim drops the oldest finished runs beyond the history limit. Callers hold mu.
func (s *Service) trim() {
	for len(s.order) > historyLimit {
		oldest := s.order[0]
		if oldest == s.active {
			return
		}
		delete(s.jobs, oldest)
		s.order = s.order[1:]
	}
}

// Get returns a copy of the run id.
func (s *Service) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *job, nil
}

// List returns the remembered runs, newest first, without their reports.
func (s *Service) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		job := *s.jobs[s.order[i]]
		job.Report = nil
		out = append(out, job)
	}
	return out
}

// Active returns the id of the running job, or "".
func (s *Service) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Report returns the report of run id, from memory or else from the archive.
func (s *Service) Report(ctx context.Context, id string) (*orchestrator.Report, error) {
	job, err := s.Get(id)
	if err == nil && job.Report != nil {
		return job.Report, nil
	}
	if s.archive == nil {
		return nil, ErrNotFound
	}
	report, loadErr := s.archive.Load(ctx, id)
	if loadErr != nil {
		s.logger.Debug("Archived report unavailable", zap.String("run_id", id), zap.Error(loadErr))
		return nil, ErrNotFound
	}
	return report, nil
}

// Schedule starts a run every interval until ctx is done. A tick that finds a
// run in progress is skipped.
func (s *Service) Schedule(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.logger.Info("Scheduled runs enabled", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Start(nil, TriggerSchedule); err != nil {
				s.logger.Warn("Scheduled run skipped", zap.Error(err))
			}
		}
	}
}

// Wait blocks until no run is executing.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close cancels the active run and waits for it to stop.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
