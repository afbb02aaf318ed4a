package scheduler

import (
	"context"
	"time"

	"github.com/opswatch/opswatch/internal/alert"
	"github.com/opswatch/opswatch/internal/connector"
	"github.com/opswatch/opswatch/internal/monitor"
)

// HealthCheckJobID is the fixed ID of the built-in periodic health sweep.
// Re-registering replaces the previous sweep rather than stacking a second
// one.
const HealthCheckJobID = "health-check"

// AddHealthCheckJob registers the built-in periodic health sweep: check
// the given services (all registered ones when empty) in parallel, then
// forward every unhealthy result to the alert manager at error severity.
func (s *Scheduler) AddHealthCheckJob(mon *monitor.Monitor, services []string, interval time.Duration) (string, error) {
	handler := func(ctx context.Context) error {
		var results map[string]connector.Result
		if len(services) == 0 {
			results = mon.CheckAll(ctx, true)
		} else {
			results = mon.CheckServices(ctx, services, true)
		}

		unhealthy := 0
		for name, res := range results {
			if res.Healthy {
				continue
			}
			unhealthy++
			if s.alerts != nil {
				details := map[string]any{
					"response_time_ms": res.ResponseTimeMS,
					"checked_at":       res.CheckedAt,
				}
				for k, v := range res.Details {
					details[k] = v
				}
				s.alerts.Send(ctx, name, alert.SeverityError, res.Message, details)
			}
		}

		s.logger.Info("health sweep complete",
			"checked", len(results),
			"unhealthy", unhealthy)
		return nil
	}

	return s.AddJob(JobSpec{
		ID:       HealthCheckJobID,
		Interval: interval,
		Handler:  handler,
	})
}
