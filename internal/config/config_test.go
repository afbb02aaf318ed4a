package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opswatch/opswatch/internal/alert"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opswatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Full(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
log_format: json
metrics_addr: ":9090"
check_interval_minutes: 10
scheduler:
  io_workers: 30
  cpu_workers: 2
services:
  github:
    type: github
    token: ghp_test
  billing:
    type: stripe
    token_env: STRIPE_KEY
  old-render:
    type: render
    enabled: false
alerts:
  slack_webhook_url: https://hooks.slack.com/services/T/B/X
  rules:
    error:
      channels: [slack, log]
      cooldown_minutes: 15
      escalate_after: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, 10*time.Minute, cfg.CheckInterval())
	assert.Equal(t, 30, cfg.Scheduler.IOWorkers)

	assert.True(t, cfg.Services["github"].IsEnabled())
	assert.False(t, cfg.Services["old-render"].IsEnabled())

	rules := cfg.AlertRules()
	assert.Equal(t, []string{"slack", "log"}, rules[alert.SeverityError].Channels)
	assert.Equal(t, 15*time.Minute, rules[alert.SeverityError].Cooldown)
	assert.Equal(t, 3, rules[alert.SeverityError].EscalateAfter)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
services:
  github:
    type: github
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 5*time.Minute, cfg.CheckInterval())

	// Unconfigured severities keep the default rules.
	rules := cfg.AlertRules()
	assert.Equal(t, 3, rules[alert.SeverityError].EscalateAfter)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "services: [not: a: map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ServiceWithoutType(t *testing.T) {
	path := writeConfig(t, `
services:
  broken: {}
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "type is required")
}

func TestLoad_UnknownSeverity(t *testing.T) {
	path := writeConfig(t, `
alerts:
  rules:
    catastrophic:
      cooldown_minutes: 1
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown severity")
}

func TestLoad_BadLogFormat(t *testing.T) {
	path := writeConfig(t, "log_format: xml")
	_, err := Load(path)
	assert.ErrorContains(t, err, "log_format")
}

func TestServiceConfig_ResolveToken(t *testing.T) {
	t.Setenv("OPSWATCH_TEST_TOKEN", "from-env")

	svc := ServiceConfig{Token: "inline", TokenEnv: "OPSWATCH_TEST_TOKEN"}
	assert.Equal(t, "from-env", svc.ResolveToken(), "env var wins when set")

	svc = ServiceConfig{Token: "inline", TokenEnv: "OPSWATCH_UNSET_VAR"}
	assert.Equal(t, "inline", svc.ResolveToken(), "falls back to inline token")
}
