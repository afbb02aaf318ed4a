package connector

import (
	"context"
	"fmt"
	"time"
)

// CheckHealth runs the connector's raw HealthCheck under the standard
// operation timeout, times it, and normalizes every failure mode into an
// unhealthy Result. A connector failure (error or panic) must never crash
// the caller: the monitoring loop's availability matters more than any
// single check.
func CheckHealth(ctx context.Context, c Connector) Result {
	opCtx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	start := time.Now()
	status, err := safeHealthCheck(opCtx, c)
	elapsed := time.Since(start)

	res := Result{
		Service:        c.Name(),
		ResponseTimeMS: float64(elapsed.Microseconds()) / 1000.0,
		CheckedAt:      time.Now().UTC(),
	}

	if err != nil {
		res.Healthy = false
		res.Message = fmt.Sprintf("Health check failed: %v", err)
		return res
	}

	res.Healthy = status.Healthy
	res.Message = status.Message
	res.Details = status.Details
	return res
}

// safeHealthCheck shields the caller from panicking connectors.
func safeHealthCheck(ctx context.Context, c Connector) (status *HealthStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			status = nil
			err = fmt.Errorf("panic in health check: %v", r)
		}
	}()

	status, err = c.HealthCheck(ctx)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, fmt.Errorf("connector returned no status")
	}
	return status, nil
}
