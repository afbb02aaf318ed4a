package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RetryConfig holds retry configuration for connector operations.
type RetryConfig struct {
	MaxAttempts       int           // Total attempts including the first (default: 3)
	InitialBackoff    time.Duration // Wait before the second attempt (default: 2s)
	MaxBackoff        time.Duration // Cap on the wait between attempts (default: 10s)
	BackoffMultiplier float64       // Growth factor per attempt (default: 2.0)
}

// DefaultRetryConfig returns the standard retry policy: three attempts with
// exponential backoff starting at 2s and capped at 10s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryExecutor wraps connector operations with bounded retry and
// exponential backoff. It is used for authenticate and any operation
// invoked outside the already-safe CheckHealth wrapper; after the final
// attempt the original error propagates so the caller can translate it
// into a failure result.
type RetryExecutor struct {
	cfg    RetryConfig
	logger *slog.Logger

	// sleep is swapped out in tests to avoid real waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryExecutor builds an executor with the given config, filling
// zero fields from DefaultRetryConfig.
func NewRetryExecutor(cfg RetryConfig, logger *slog.Logger) *RetryExecutor {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryExecutor{
		cfg:    cfg,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Do executes fn up to MaxAttempts times, backing off between attempts.
// The operation name is only used for logging. Context cancellation stops
// retrying immediately; otherwise every error is treated as retriable and
// the last error is returned wrapped once attempts are exhausted.
func (r *RetryExecutor) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := r.cfg.InitialBackoff

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("operation succeeded after retry",
					"operation", operation, "attempt", attempt)
			}
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", operation, ctx.Err())
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		r.logger.Warn("operation failed, retrying",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", r.cfg.MaxAttempts,
			"backoff", backoff,
			"error", err)

		if err := r.sleep(ctx, backoff); err != nil {
			return fmt.Errorf("%s: %w", operation, err)
		}
		backoff = time.Duration(float64(backoff) * r.cfg.BackoffMultiplier)
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, r.cfg.MaxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsTransient reports whether an error looks like a transient I/O failure
// worth retrying at a higher level. Vendor SDKs rarely expose typed errors
// for this, so the classification leans on status codes and well-known
// connection error strings.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := err.Error()

	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return true
	}
	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout") {
		return true
	}
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporary failure") {
		return true
	}
	return false
}
