package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opswatch/opswatch/internal/alert"
)

// captureChannel records alerts delivered during scheduler tests.
type captureChannel struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (c *captureChannel) Name() string { return "capture" }

func (c *captureChannel) Deliver(_ context.Context, a alert.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
	return nil
}

func (c *captureChannel) delivered() []alert.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]alert.Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

func newTestScheduler(t *testing.T) (*Scheduler, *captureChannel) {
	t.Helper()

	ch := &captureChannel{}
	alerts := alert.NewManager(alert.Config{
		Rules:    alert.Rules{alert.SeverityCritical: {}}, // no cooldown in tests
		Channels: []alert.Channel{ch},
		Logger:   slog.New(slog.DiscardHandler),
	})

	s := New(Config{
		Alerts: alerts,
		Logger: slog.New(slog.DiscardHandler),
	})
	t.Cleanup(s.Stop)
	return s, ch
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job execution")
	}
}

func noopHandler(context.Context) error { return nil }

func TestAddJob_TriggerValidation(t *testing.T) {
	s, _ := newTestScheduler(t)

	tests := []struct {
		name string
		spec JobSpec
	}{
		{"neither trigger", JobSpec{ID: "j", Handler: noopHandler}},
		{"both triggers", JobSpec{ID: "j", Interval: time.Minute, CronExpr: "* * * * *", Handler: noopHandler}},
		{"bad cron expression", JobSpec{ID: "j", CronExpr: "not a cron", Handler: noopHandler}},
		{"missing handler", JobSpec{ID: "j", Interval: time.Minute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddJob(tt.spec)
			assert.ErrorIs(t, err, ErrInvalidTrigger)
		})
	}
}

func TestAddJob_GeneratesID(t *testing.T) {
	s, _ := newTestScheduler(t)

	id, err := s.AddJob(JobSpec{Interval: time.Hour, Handler: noopHandler})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestAddJob_ReplacesExistingID(t *testing.T) {
	s, _ := newTestScheduler(t)
	s.Start()

	ran := make(chan string, 2)
	_, err := s.AddJob(JobSpec{ID: "dup", Interval: time.Hour, Handler: func(context.Context) error {
		ran <- "first"
		return nil
	}})
	require.NoError(t, err)

	_, err = s.AddJob(JobSpec{ID: "dup", Interval: time.Hour, Handler: func(context.Context) error {
		ran <- "second"
		return nil
	}})
	require.NoError(t, err)

	assert.Len(t, s.Jobs(), 1, "exactly one job under the colliding ID")

	require.NoError(t, s.RunJobNow("dup"))
	select {
	case got := <-ran:
		assert.Equal(t, "second", got, "replacement handler must win")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}

func TestJobOperations_NotFound(t *testing.T) {
	s, _ := newTestScheduler(t)

	assert.ErrorIs(t, s.RemoveJob("ghost"), ErrJobNotFound)
	assert.ErrorIs(t, s.PauseJob("ghost"), ErrJobNotFound)
	assert.ErrorIs(t, s.ResumeJob("ghost"), ErrJobNotFound)
	assert.ErrorIs(t, s.RunJobNow("ghost"), ErrJobNotFound)
}

func TestRunJobNow_WhilePaused(t *testing.T) {
	s, _ := newTestScheduler(t)
	s.Start()

	done := make(chan struct{}, 1)
	_, err := s.AddJob(JobSpec{ID: "hc", Interval: 5 * time.Minute, Handler: func(context.Context) error {
		done <- struct{}{}
		return nil
	}})
	require.NoError(t, err)
	require.NoError(t, s.PauseJob("hc"))

	// Manual run succeeds even while paused.
	require.NoError(t, s.RunJobNow("hc"))
	waitSignal(t, done)

	// The paused state persists independent of the manual run.
	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].Paused, "manual run must not resume the job")
}

func TestRemoveJob_StopsFutureRuns(t *testing.T) {
	s, _ := newTestScheduler(t)
	s.Start()

	_, err := s.AddJob(JobSpec{ID: "gone", Interval: time.Hour, Handler: noopHandler})
	require.NoError(t, err)
	require.NoError(t, s.RemoveJob("gone"))

	assert.Empty(t, s.Jobs())
	assert.ErrorIs(t, s.RunJobNow("gone"), ErrJobNotFound)
}

func TestJobFailure_ForwardedToAlerts(t *testing.T) {
	s, ch := newTestScheduler(t)
	s.Start()

	done := make(chan struct{}, 1)
	_, err := s.AddJob(JobSpec{ID: "flaky", Interval: time.Hour, Handler: func(context.Context) error {
		defer func() { done <- struct{}{} }()
		return errors.New("handler blew up")
	}})
	require.NoError(t, err)
	require.NoError(t, s.RunJobNow("flaky"))
	waitSignal(t, done)

	// Alert emission happens after the handler returns; poll briefly.
	require.Eventually(t, func() bool {
		return len(ch.delivered()) > 0
	}, 5*time.Second, 10*time.Millisecond)

	got := ch.delivered()[0]
	assert.Equal(t, "scheduler:flaky", got.Service)
	assert.Equal(t, alert.SeverityCritical, got.Severity)
	assert.Contains(t, got.Message, "handler blew up")
}

func TestJobPanic_IsolatedAndReported(t *testing.T) {
	s, ch := newTestScheduler(t)
	s.Start()

	_, err := s.AddJob(JobSpec{ID: "bomb", Interval: time.Hour, Handler: func(context.Context) error {
		panic("kaboom")
	}})
	require.NoError(t, err)
	require.NoError(t, s.RunJobNow("bomb"))

	require.Eventually(t, func() bool {
		return len(ch.delivered()) > 0
	}, 5*time.Second, 10*time.Millisecond)

	got := ch.delivered()[0]
	assert.Equal(t, "scheduler:bomb", got.Service)
	assert.Contains(t, got.Message, "kaboom")

	// The scheduler survives: other jobs still run.
	done := make(chan struct{}, 1)
	_, err = s.AddJob(JobSpec{ID: "ok", Interval: time.Hour, Handler: func(context.Context) error {
		done <- struct{}{}
		return nil
	}})
	require.NoError(t, err)
	require.NoError(t, s.RunJobNow("ok"))
	waitSignal(t, done)
}

func TestOneSlowJobDoesNotBlockOthers(t *testing.T) {
	s, _ := newTestScheduler(t)
	s.Start()

	release := make(chan struct{})
	_, err := s.AddJob(JobSpec{ID: "slow", Interval: time.Hour, Handler: func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}})
	require.NoError(t, err)

	done := make(chan struct{}, 1)
	_, err = s.AddJob(JobSpec{ID: "fast", Interval: time.Hour, Handler: func(context.Context) error {
		done <- struct{}{}
		return nil
	}})
	require.NoError(t, err)

	require.NoError(t, s.RunJobNow("slow"))
	require.NoError(t, s.RunJobNow("fast"))
	waitSignal(t, done)
	close(release)
}

func TestIntervalTrigger_Fires(t *testing.T) {
	s, _ := newTestScheduler(t)
	s.Start()

	done := make(chan struct{}, 3)
	_, err := s.AddJob(JobSpec{ID: "tick", Interval: time.Second, Handler: func(context.Context) error {
		done <- struct{}{}
		return nil
	}})
	require.NoError(t, err)

	waitSignal(t, done)
}

func TestPausedJobSkipsTrigger(t *testing.T) {
	s, _ := newTestScheduler(t)
	s.Start()

	var runs int
	var mu sync.Mutex
	_, err := s.AddJob(JobSpec{ID: "paused", Interval: time.Second, Handler: func(context.Context) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	}})
	require.NoError(t, err)
	require.NoError(t, s.PauseJob("paused"))

	time.Sleep(2500 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, runs, "paused job must not fire on its trigger")
}

func TestJobs_Snapshot(t *testing.T) {
	s, _ := newTestScheduler(t)

	_, err := s.AddJob(JobSpec{ID: "cron-job", CronExpr: "0 3 * * *", Handler: noopHandler})
	require.NoError(t, err)
	_, err = s.AddJob(JobSpec{ID: "interval-job", Interval: 10 * time.Minute, Handler: noopHandler})
	require.NoError(t, err)

	jobs := s.Jobs()
	require.Len(t, jobs, 2)

	byID := map[string]JobInfo{}
	for _, j := range jobs {
		byID[j.ID] = j
	}
	assert.Equal(t, "cron 0 3 * * *", byID["cron-job"].Trigger)
	assert.Equal(t, "every 10m0s", byID["interval-job"].Trigger)
}
