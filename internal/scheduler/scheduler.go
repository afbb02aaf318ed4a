// Package scheduler runs recurring and one-off automation jobs on a
// bounded worker pool. Job failures are isolated: a panicking or erroring
// handler is logged and forwarded to the alert manager, and never takes
// down the scheduler or blocks other jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"

	"github.com/opswatch/opswatch/internal/alert"
	"github.com/opswatch/opswatch/internal/metrics"
)

var (
	// ErrInvalidTrigger is returned when a job spec does not carry exactly
	// one of interval or cron expression, or the expression fails to parse.
	ErrInvalidTrigger = errors.New("invalid trigger spec")

	// ErrJobNotFound is returned for operations on an unknown job ID.
	ErrJobNotFound = errors.New("job not found")
)

const (
	defaultIOWorkers  = 20
	defaultCPUWorkers = 4
	stopGracePeriod   = 30 * time.Second
)

// Handler is a job body. It receives the scheduler's base context, which
// is canceled only when the scheduler gives up during shutdown.
type Handler func(ctx context.Context) error

// JobSpec describes a job to register. Exactly one of Interval or
// CronExpr must be set.
type JobSpec struct {
	// ID is the unique job identifier. Empty means generate one.
	// Re-adding an existing ID replaces the prior job.
	ID string

	// Interval triggers the job every fixed duration.
	Interval time.Duration

	// CronExpr triggers the job on a standard 5-field cron expression
	// (descriptors like @hourly also work).
	CronExpr string

	// CPUBound routes the job to the smaller CPU pool instead of the
	// I/O pool.
	CPUBound bool

	Handler Handler
}

// JobInfo is a read-only snapshot of one registered job.
type JobInfo struct {
	ID      string    `json:"id"`
	Trigger string    `json:"trigger"`
	Paused  bool      `json:"paused"`
	NextRun time.Time `json:"next_run"`
}

type job struct {
	spec    JobSpec
	entryID cron.EntryID
	paused  bool
}

// Scheduler owns the cron timer, the job table, and the worker pools.
type Scheduler struct {
	mu   sync.Mutex
	cron *cron.Cron
	jobs map[string]*job

	ioSem  *semaphore.Weighted
	cpuSem *semaphore.Weighted

	alerts  *alert.Manager
	logger  *slog.Logger
	metrics *metrics.Metrics

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// Config holds Scheduler construction parameters.
type Config struct {
	Alerts     *alert.Manager
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	IOWorkers  int // bounded pool for I/O-bound handlers (default 20)
	CPUWorkers int // smaller pool for CPU-heavy handlers (default 4)
}

// New builds a stopped scheduler; call Start to begin firing triggers.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	io := cfg.IOWorkers
	if io <= 0 {
		io = defaultIOWorkers
	}
	cpu := cfg.CPUWorkers
	if cpu <= 0 {
		cpu = defaultCPUWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(),
		jobs:    make(map[string]*job),
		ioSem:   semaphore.NewWeighted(int64(io)),
		cpuSem:  semaphore.NewWeighted(int64(cpu)),
		alerts:  cfg.Alerts,
		logger:  logger,
		metrics: cfg.Metrics,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// AddJob registers a job and returns its ID. A colliding ID replaces the
// prior job: its trigger is dropped and the new spec takes over. This is
// deliberate so config reloads and convenience factories are idempotent.
func (s *Scheduler) AddJob(spec JobSpec) (string, error) {
	if spec.Handler == nil {
		return "", fmt.Errorf("%w: handler is required", ErrInvalidTrigger)
	}
	hasInterval := spec.Interval > 0
	hasCron := spec.CronExpr != ""
	if hasInterval == hasCron {
		return "", fmt.Errorf("%w: exactly one of interval or cron expression required", ErrInvalidTrigger)
	}
	if spec.ID == "" {
		spec.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.jobs[spec.ID]; ok {
		s.cron.Remove(prior.entryID)
		s.logger.Info("replacing job", "job", spec.ID)
	}

	j := &job{spec: spec}
	if hasCron {
		entryID, err := s.cron.AddFunc(spec.CronExpr, func() { s.fire(j) })
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidTrigger, err)
		}
		j.entryID = entryID
	} else {
		j.entryID = s.cron.Schedule(cron.Every(spec.Interval), cron.FuncJob(func() { s.fire(j) }))
	}
	s.jobs[spec.ID] = j

	s.logger.Info("job registered",
		"job", spec.ID,
		"trigger", triggerString(spec),
		"cpu_bound", spec.CPUBound)
	return spec.ID, nil
}

// RemoveJob deletes a job. In-flight executions are not interrupted;
// future triggers stop.
func (s *Scheduler) RemoveJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	s.cron.Remove(j.entryID)
	delete(s.jobs, id)
	s.logger.Info("job removed", "job", id)
	return nil
}

// PauseJob stops future triggers for a job without touching in-flight
// executions or the trigger spec.
func (s *Scheduler) PauseJob(id string) error {
	return s.setPaused(id, true)
}

// ResumeJob re-enables a paused job's trigger.
func (s *Scheduler) ResumeJob(id string) error {
	return s.setPaused(id, false)
}

func (s *Scheduler) setPaused(id string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	j.paused = paused
	s.logger.Info("job pause state changed", "job", id, "paused", paused)
	return nil
}

// RunJobNow executes a job immediately. The recurring trigger and the
// paused flag are left untouched: a manual run of a paused job does not
// resume it.
func (s *Scheduler) RunJobNow(id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	s.dispatch(j)
	return nil
}

// Jobs returns a snapshot of all registered jobs.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for id, j := range s.jobs {
		out = append(out, JobInfo{
			ID:      id,
			Trigger: triggerString(j.spec),
			Paused:  j.paused,
			NextRun: s.cron.Entry(j.entryID).Next,
		})
	}
	return out
}

// Start begins firing triggers. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts triggers and waits for in-flight jobs, canceling stragglers
// after a grace period. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopGracePeriod):
		s.logger.Warn("jobs still running after grace period, canceling", "grace", stopGracePeriod)
		s.cancel()
		<-done
	}
	s.cancel()
	s.logger.Info("scheduler stopped")
}

// WaitForShutdown blocks until ctx is canceled, then stops the scheduler.
// This is the daemon's run loop; there is no OS signal handling in here.
func (s *Scheduler) WaitForShutdown(ctx context.Context) {
	<-ctx.Done()
	s.Stop()
}

// fire is the cron trigger path. Paused jobs are skipped here so the
// trigger spec survives pause/resume untouched.
func (s *Scheduler) fire(j *job) {
	s.mu.Lock()
	paused := j.paused
	s.mu.Unlock()

	if paused {
		s.logger.Debug("skipping paused job", "job", j.spec.ID)
		return
	}
	s.dispatch(j)
}

// dispatch hands the job to its worker pool without blocking the cron
// timer goroutine.
func (s *Scheduler) dispatch(j *job) {
	sem := s.ioSem
	if j.spec.CPUBound {
		sem = s.cpuSem
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := sem.Acquire(s.baseCtx, 1); err != nil {
			s.logger.Warn("job dropped during shutdown", "job", j.spec.ID)
			return
		}
		defer sem.Release(1)

		s.run(j)
	}()
}

// run executes the handler with panic isolation. Failures are logged and
// forwarded to the alert manager keyed scheduler:<job_id>; they never
// propagate.
func (s *Scheduler) run(j *job) {
	defer func() {
		if r := recover(); r != nil {
			s.reportFailure(j.spec.ID, fmt.Errorf("panic: %v", r))
		}
	}()

	start := time.Now()
	if err := j.spec.Handler(s.baseCtx); err != nil {
		s.reportFailure(j.spec.ID, err)
		return
	}

	s.metrics.CountJobRun(j.spec.ID, "ok")
	s.logger.Debug("job completed", "job", j.spec.ID, "duration", time.Since(start))
}

func (s *Scheduler) reportFailure(id string, err error) {
	s.metrics.CountJobRun(id, "failed")
	s.logger.Error("job failed", "job", id, "error", err)

	if s.alerts != nil {
		s.alerts.Send(s.baseCtx, "scheduler:"+id, alert.SeverityCritical,
			fmt.Sprintf("Job %s failed: %v", id, err),
			map[string]any{"job_id": id})
	}
}

func triggerString(spec JobSpec) string {
	if spec.CronExpr != "" {
		return "cron " + spec.CronExpr
	}
	return "every " + spec.Interval.String()
}
