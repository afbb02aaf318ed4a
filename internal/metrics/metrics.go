// Package metrics exposes the daemon's operational counters via
// Prometheus. All hooks are nil-safe so components can run without a
// metrics sink in tests and one-shot CLI invocations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's instruments. Construct one per process with
// New and share it across components.
type Metrics struct {
	registry *prometheus.Registry

	checksTotal  *prometheus.CounterVec
	checkSeconds *prometheus.HistogramVec

	alertsTotal *prometheus.CounterVec

	jobRunsTotal *prometheus.CounterVec
}

// New registers the daemon's instruments on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opswatch_health_checks_total",
			Help: "Health checks run, by service and outcome.",
		}, []string{"service", "outcome"}),
		checkSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opswatch_health_check_duration_seconds",
			Help:    "Health check latency by service.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opswatch_alerts_total",
			Help: "Alerts by severity and disposition (delivered, suppressed, escalated).",
		}, []string{"severity", "disposition"}),
		jobRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opswatch_job_runs_total",
			Help: "Scheduled job executions by job and outcome.",
		}, []string{"job", "outcome"}),
	}

	registry.MustRegister(m.checksTotal, m.checkSeconds, m.alertsTotal, m.jobRunsTotal)
	registry.MustRegister(collectors.NewGoCollector())
	return m
}

// Handler returns the scrape endpoint for this metrics set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCheck records one completed health check.
func (m *Metrics) ObserveCheck(service string, healthy bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := "healthy"
	if !healthy {
		outcome = "unhealthy"
	}
	m.checksTotal.WithLabelValues(service, outcome).Inc()
	m.checkSeconds.WithLabelValues(service).Observe(seconds)
}

// CountAlert records an alert disposition.
func (m *Metrics) CountAlert(severity, disposition string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(severity, disposition).Inc()
}

// CountJobRun records a job execution outcome.
func (m *Metrics) CountJobRun(job, outcome string) {
	if m == nil {
		return
	}
	m.jobRunsTotal.WithLabelValues(job, outcome).Inc()
}
