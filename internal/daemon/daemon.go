// Package daemon is the composition root: it builds the connector
// registry, monitor, alert manager, and scheduler from config and owns
// their lifecycle. There are no package-level singletons anywhere in the
// daemon; everything is constructed here and passed down.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/opswatch/opswatch/internal/alert"
	"github.com/opswatch/opswatch/internal/config"
	"github.com/opswatch/opswatch/internal/connector"
	"github.com/opswatch/opswatch/internal/metrics"
	"github.com/opswatch/opswatch/internal/monitor"
	"github.com/opswatch/opswatch/internal/scheduler"
)

// registryOpsPerSecond is the per-service rate cap on connector calls.
const registryOpsPerSecond = 2.0

// Daemon wires the core components together.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	Registry  *connector.Registry
	Monitor   *monitor.Monitor
	Alerts    *alert.Manager
	Scheduler *scheduler.Scheduler
	Metrics   *metrics.Metrics

	metricsSrv *http.Server
}

// New builds the full component graph from config. Disabled services are
// skipped; an unknown connector type is a startup error.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m := metrics.New()

	registry := connector.NewRegistry(registryOpsPerSecond, 2)
	for name, svc := range cfg.Services {
		if !svc.IsEnabled() {
			logger.Info("service disabled, skipping", "service", name)
			continue
		}
		c, err := connector.New(name, svc.Type, connector.Settings{
			Token:   svc.ResolveToken(),
			BaseURL: svc.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring service %s: %w", name, err)
		}
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("registering service %s: %w", name, err)
		}
	}

	mon, err := monitor.New(monitor.Config{
		Registry: registry,
		Retry:    connector.NewRetryExecutor(connector.DefaultRetryConfig(), logger),
		Logger:   logger,
		Metrics:  m,
	})
	if err != nil {
		return nil, fmt.Errorf("building monitor: %w", err)
	}

	channels := []alert.Channel{alert.NewLogChannel(logger)}
	if cfg.Alerts.SlackWebhookURL != "" {
		channels = append(channels, alert.NewSlackChannel(cfg.Alerts.SlackWebhookURL))
	}
	alerts := alert.NewManager(alert.Config{
		Rules:    cfg.AlertRules(),
		Channels: channels,
		Logger:   logger,
		Metrics:  m,
	})

	sched := scheduler.New(scheduler.Config{
		Alerts:     alerts,
		Logger:     logger,
		Metrics:    m,
		IOWorkers:  cfg.Scheduler.IOWorkers,
		CPUWorkers: cfg.Scheduler.CPUWorkers,
	})

	return &Daemon{
		cfg:       cfg,
		logger:    logger,
		Registry:  registry,
		Monitor:   mon,
		Alerts:    alerts,
		Scheduler: sched,
		Metrics:   m,
	}, nil
}

// Run starts the periodic health sweep and blocks until ctx is canceled,
// then shuts the scheduler down gracefully. Running two instances
// duplicates alerts and jobs; there is no cross-process coordination.
func (d *Daemon) Run(ctx context.Context) error {
	if _, err := d.Scheduler.AddHealthCheckJob(d.Monitor, nil, d.cfg.CheckInterval()); err != nil {
		return fmt.Errorf("registering health sweep: %w", err)
	}

	if d.cfg.MetricsAddr != "" {
		d.startMetricsServer()
	}

	d.Scheduler.Start()
	d.logger.Info("daemon running",
		"services", d.Registry.Len(),
		"check_interval", d.cfg.CheckInterval())

	// Kick off an immediate sweep so status is populated before the
	// first interval elapses.
	if err := d.Scheduler.RunJobNow(scheduler.HealthCheckJobID); err != nil {
		d.logger.Warn("initial health sweep failed to start", "error", err)
	}

	d.Scheduler.WaitForShutdown(ctx)

	if d.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsSrv.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("metrics server shutdown", "error", err)
		}
	}

	d.logger.Info("daemon stopped")
	return nil
}

func (d *Daemon) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.Metrics.Handler())

	d.metricsSrv = &http.Server{Addr: d.cfg.MetricsAddr, Handler: mux}
	go func() {
		d.logger.Info("metrics listener started", "addr", d.cfg.MetricsAddr)
		if err := d.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("metrics listener failed", "error", err)
		}
	}()
}
