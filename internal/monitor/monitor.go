// Package monitor runs fleet-wide health checks and keeps the latest
// results for summary queries. It never lets one service's failure crash
// or cancel the rest of a sweep.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/opswatch/opswatch/internal/connector"
	"github.com/opswatch/opswatch/internal/metrics"
)

// defaultParallelism bounds concurrent checks during a parallel sweep.
const defaultParallelism = 20

// Monitor checks the health of registered services.
type Monitor struct {
	registry *connector.Registry
	retry    *connector.RetryExecutor
	logger   *slog.Logger
	metrics  *metrics.Metrics

	sem *semaphore.Weighted

	// latest holds the most recent result per service. Summary and
	// UnhealthyServices derive from it without new network calls.
	mu     sync.RWMutex
	latest map[string]connector.Result
	authed map[string]bool
}

// Config holds Monitor construction parameters.
type Config struct {
	Registry    *connector.Registry
	Retry       *connector.RetryExecutor
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Parallelism int
}

// New builds a Monitor over the given registry.
func New(cfg Config) (*Monitor, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retry := cfg.Retry
	if retry == nil {
		retry = connector.NewRetryExecutor(connector.DefaultRetryConfig(), logger)
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	return &Monitor{
		registry: cfg.Registry,
		retry:    retry,
		logger:   logger,
		metrics:  cfg.Metrics,
		sem:      semaphore.NewWeighted(int64(parallelism)),
		latest:   make(map[string]connector.Result),
		authed:   make(map[string]bool),
	}, nil
}

// CheckService checks one service by name. An unknown name is a caller
// error; a failing connector is a normal unhealthy result.
func (m *Monitor) CheckService(ctx context.Context, name string) (connector.Result, error) {
	c, err := m.registry.Get(name)
	if err != nil {
		return connector.Result{}, err
	}
	return m.check(ctx, c), nil
}

func (m *Monitor) check(ctx context.Context, c connector.Connector) connector.Result {
	if err := m.registry.Wait(ctx, c.Name()); err != nil {
		m.logger.Warn("rate limiter wait aborted", "service", c.Name(), "error", err)
	}

	if err := m.ensureAuthenticated(ctx, c); err != nil {
		res := unreachableResult(c.Name(), err)
		m.mu.Lock()
		m.latest[res.Service] = res
		m.mu.Unlock()
		return res
	}

	res := connector.CheckHealth(ctx, c)
	m.metrics.ObserveCheck(res.Service, res.Healthy, res.ResponseTimeMS/1000.0)

	m.mu.Lock()
	m.latest[res.Service] = res
	m.mu.Unlock()

	if !res.Healthy {
		m.logger.Warn("service unhealthy",
			"service", res.Service,
			"message", res.Message,
			"response_time_ms", res.ResponseTimeMS)
	} else {
		m.logger.Debug("service healthy",
			"service", res.Service,
			"response_time_ms", res.ResponseTimeMS)
	}
	return res
}

// CheckAll checks every registered service. With parallel=true the sweep
// fans out one goroutine per service under a bounded semaphore and waits
// for all of them; one service's failure never cancels another. With
// parallel=false checks run sequentially in sorted name order, which
// callers use for deterministic display.
func (m *Monitor) CheckAll(ctx context.Context, parallel bool) map[string]connector.Result {
	return m.CheckServices(ctx, m.registry.Names(), parallel)
}

// CheckServices checks the named subset of the fleet. Unknown names get
// an unhealthy synthetic result rather than aborting the sweep.
func (m *Monitor) CheckServices(ctx context.Context, names []string, parallel bool) map[string]connector.Result {
	results := make(map[string]connector.Result, len(names))

	if !parallel {
		for _, name := range names {
			results[name] = m.checkByName(ctx, name)
		}
		return results
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := m.sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				results[name] = unreachableResult(name, err)
				mu.Unlock()
				return
			}
			defer m.sem.Release(1)

			res := m.checkByName(ctx, name)
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// ensureAuthenticated authenticates a connector once, with retries, before
// its first health check. Re-attempted on the next sweep if it fails.
func (m *Monitor) ensureAuthenticated(ctx context.Context, c connector.Connector) error {
	name := c.Name()

	m.mu.RLock()
	done := m.authed[name]
	m.mu.RUnlock()
	if done {
		return nil
	}

	err := m.retry.Do(ctx, "authenticate "+name, func(ctx context.Context) error {
		ok, err := c.Authenticate(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("credentials rejected")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	m.mu.Lock()
	m.authed[name] = true
	m.mu.Unlock()
	return nil
}

func (m *Monitor) checkByName(ctx context.Context, name string) connector.Result {
	res, err := m.CheckService(ctx, name)
	if err != nil {
		return unreachableResult(name, err)
	}
	return res
}

func unreachableResult(name string, err error) connector.Result {
	return connector.Result{
		Service:   name,
		Healthy:   false,
		Message:   fmt.Sprintf("Health check failed: %v", err),
		CheckedAt: time.Now().UTC(),
	}
}
