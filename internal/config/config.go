// Package config loads the daemon's YAML configuration: the services
// table, the alert routing rules, and the scheduler settings. The loaded
// Config is immutable; nothing in the daemon writes it back.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opswatch/opswatch/internal/alert"
)

// Config is the root of the opswatch.yaml file.
type Config struct {
	// LogLevel is debug/info/warn/error. Default info.
	LogLevel string `yaml:"log_level"`

	// LogFormat is text or json. Default text.
	LogFormat string `yaml:"log_format"`

	// MetricsAddr exposes /metrics when set (e.g. ":9090").
	MetricsAddr string `yaml:"metrics_addr"`

	// CheckIntervalMinutes drives the built-in health sweep. Default 5.
	CheckIntervalMinutes int `yaml:"check_interval_minutes"`

	Scheduler SchedulerConfig          `yaml:"scheduler"`
	Services  map[string]ServiceConfig `yaml:"services"`
	Alerts    AlertConfig              `yaml:"alerts"`
}

// SchedulerConfig sizes the worker pools.
type SchedulerConfig struct {
	IOWorkers  int `yaml:"io_workers"`
	CPUWorkers int `yaml:"cpu_workers"`
}

// ServiceConfig describes one fleet service.
type ServiceConfig struct {
	Type     string `yaml:"type"`
	Enabled  *bool  `yaml:"enabled"` // nil means enabled
	Token    string `yaml:"token"`
	TokenEnv string `yaml:"token_env"` // read the token from this env var instead
	BaseURL  string `yaml:"base_url"`
}

// IsEnabled reports whether the service should be registered.
func (s ServiceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// ResolveToken returns the credential, preferring the environment
// variable when configured so tokens can stay out of the file.
func (s ServiceConfig) ResolveToken() string {
	if s.TokenEnv != "" {
		if v := os.Getenv(s.TokenEnv); v != "" {
			return v
		}
	}
	return s.Token
}

// AlertConfig holds the routing rule table and channel endpoints.
type AlertConfig struct {
	SlackWebhookURL string                `yaml:"slack_webhook_url"`
	Rules           map[string]RuleConfig `yaml:"rules"` // keyed by severity name
}

// RuleConfig is one severity's routing rule in the file.
type RuleConfig struct {
	Channels        []string `yaml:"channels"`
	CooldownMinutes int      `yaml:"cooldown_minutes"`
	EscalateAfter   int      `yaml:"escalate_after"`
}

// Load reads and validates the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.CheckIntervalMinutes <= 0 {
		c.CheckIntervalMinutes = 5
	}
}

func (c *Config) validate() error {
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log_format %q", c.LogFormat)
	}
	for name, svc := range c.Services {
		if svc.Type == "" {
			return fmt.Errorf("service %s: type is required", name)
		}
	}
	for sev := range c.Alerts.Rules {
		if _, err := alert.ParseSeverity(sev); err != nil {
			return fmt.Errorf("alert rules: %w", err)
		}
	}
	return nil
}

// CheckInterval returns the health sweep interval as a duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMinutes) * time.Minute
}

// AlertRules converts the file's rule table into the alert package's
// form, starting from the defaults so unlisted severities keep sane
// behavior.
func (c *Config) AlertRules() alert.Rules {
	rules := alert.DefaultRules()
	for name, rc := range c.Alerts.Rules {
		sev, err := alert.ParseSeverity(name)
		if err != nil {
			continue // validate already rejected these
		}
		rules[sev] = alert.Rule{
			Channels:      rc.Channels,
			Cooldown:      time.Duration(rc.CooldownMinutes) * time.Minute,
			EscalateAfter: rc.EscalateAfter,
		}
	}
	return rules
}
