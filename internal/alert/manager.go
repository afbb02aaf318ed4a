package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opswatch/opswatch/internal/metrics"
)

const (
	// maxHistoryPerKey bounds the recorded timestamps kept per key.
	maxHistoryPerKey = 100

	// escalationWindow is the trailing window over which recorded alerts
	// count toward escalation.
	escalationWindow = time.Hour
)

// Key indexes cooldown and escalation state.
type Key struct {
	Service  string
	Severity Severity
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Service, k.Severity)
}

// Manager routes alert events through cooldown suppression, best-effort
// channel fan-out, and severity escalation.
//
// The history map is the only shared mutable state; a single mutex guards
// all read-modify-write sequences so concurrent emitters (health sweeps,
// job failures) cannot lose updates on the same key.
type Manager struct {
	mu      sync.Mutex
	history map[Key][]time.Time

	rules    Rules
	channels map[string]Channel
	fallback Channel

	logger  *slog.Logger
	metrics *metrics.Metrics

	// now is swapped out in tests.
	now func() time.Time
}

// Config holds Manager construction parameters.
type Config struct {
	Rules    Rules
	Channels []Channel // first entry becomes the default target
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// NewManager builds a Manager. With no channels configured, alerts land
// on a LogChannel so nothing is silently dropped.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}

	channels := make(map[string]Channel, len(cfg.Channels))
	var fallback Channel
	for _, ch := range cfg.Channels {
		channels[ch.Name()] = ch
		if fallback == nil {
			fallback = ch
		}
	}
	if fallback == nil {
		fallback = NewLogChannel(logger)
		channels[fallback.Name()] = fallback
	}

	return &Manager{
		history:  make(map[Key][]time.Time),
		rules:    rules,
		channels: channels,
		fallback: fallback,
		logger:   logger,
		metrics:  cfg.Metrics,
		now:      time.Now,
	}
}

// Send routes one alert event. It returns true when the cooldown did not
// suppress the event and delivery was attempted; individual channel
// failures do not change the return value.
func (m *Manager) Send(ctx context.Context, service string, sev Severity, message string, details map[string]any) bool {
	key := Key{Service: service, Severity: sev}
	rule := m.rules.rule(sev)
	now := m.now()

	// Cooldown check and history record are one critical section: two
	// concurrent senders for the same key must not both pass.
	m.mu.Lock()
	hist := m.history[key]
	if n := len(hist); n > 0 && rule.Cooldown > 0 {
		if elapsed := now.Sub(hist[n-1]); elapsed < rule.Cooldown {
			m.mu.Unlock()
			m.logger.Debug("alert suppressed by cooldown",
				"key", key.String(),
				"since_last", elapsed,
				"cooldown", rule.Cooldown)
			m.metrics.CountAlert(sev.String(), "suppressed")
			return false
		}
	}

	// Recording happens before delivery and is never rolled back, so a
	// flapping service cannot bypass the cooldown via delivery failures.
	hist = append(hist, now)
	if len(hist) > maxHistoryPerKey {
		hist = hist[len(hist)-maxHistoryPerKey:]
	}
	m.history[key] = hist

	recentCount := 0
	cutoff := now.Add(-escalationWindow)
	for _, ts := range hist {
		if ts.After(cutoff) || ts.Equal(cutoff) {
			recentCount++
		}
	}
	m.mu.Unlock()

	m.deliver(ctx, Alert{
		Service:  service,
		Severity: sev,
		Message:  message,
		Details:  details,
		At:       now,
	}, rule)
	m.metrics.CountAlert(sev.String(), "delivered")

	m.maybeEscalate(ctx, key, rule, recentCount, message)
	return true
}

// deliver fans out to every configured channel for the rule. Failures are
// logged and do not stop delivery to the remaining channels.
func (m *Manager) deliver(ctx context.Context, a Alert, rule Rule) {
	targets := rule.Channels
	if len(targets) == 0 {
		m.deliverOne(ctx, m.fallback, a)
		return
	}

	for _, name := range targets {
		ch, ok := m.channels[name]
		if !ok {
			m.logger.Warn("alert rule names unknown channel",
				"channel", name, "severity", a.Severity.String())
			continue
		}
		m.deliverOne(ctx, ch, a)
	}
}

func (m *Manager) deliverOne(ctx context.Context, ch Channel, a Alert) {
	if err := ch.Deliver(ctx, a); err != nil {
		m.logger.Error("alert delivery failed",
			"channel", ch.Name(),
			"service", a.Service,
			"severity", a.Severity.String(),
			"error", err)
	}
}

// maybeEscalate re-sends at the next severity when this key has recorded
// too many alerts within the trailing hour. The recursive Send goes
// through the full cooldown/record/deliver path for the escalated key;
// termination is guaranteed because severities strictly increase and
// critical has no successor.
func (m *Manager) maybeEscalate(ctx context.Context, key Key, rule Rule, recentCount int, lastMessage string) {
	if rule.EscalateAfter <= 0 || recentCount < rule.EscalateAfter {
		return
	}

	next, ok := key.Severity.Next()
	if !ok {
		return
	}

	m.logger.Warn("escalating repeated alerts",
		"key", key.String(),
		"recent_count", recentCount,
		"escalate_after", rule.EscalateAfter,
		"next_severity", next.String())
	m.metrics.CountAlert(key.Severity.String(), "escalated")

	msg := fmt.Sprintf("%s: %d %s alerts within the last hour (latest: %s)",
		key.Service, recentCount, key.Severity, lastMessage)
	m.Send(ctx, key.Service, next, msg, map[string]any{
		"escalated_from": key.Severity.String(),
		"recent_count":   recentCount,
	})
}

// HistoryLen returns the number of recorded alerts for a key. Exposed for
// status displays and tests.
func (m *Manager) HistoryLen(service string, sev Severity) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history[Key{Service: service, Severity: sev}])
}

// RecentAlerts returns recorded timestamps for a key within the window,
// newest last.
func (m *Manager) RecentAlerts(service string, sev Severity, window time.Duration) []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-window)
	var out []time.Time
	for _, ts := range m.history[Key{Service: service, Severity: sev}] {
		if ts.After(cutoff) {
			out = append(out, ts)
		}
	}
	return out
}
