package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// Alert is one outbound notification as handed to a channel.
type Alert struct {
	Service  string
	Severity Severity
	Message  string
	Details  map[string]any
	At       time.Time
}

// Title renders the conventional "[SEVERITY] service" header used by all
// channels.
func (a Alert) Title() string {
	return fmt.Sprintf("[%s] %s", a.Severity, a.Service)
}

// Channel delivers alerts somewhere. Delivery failures are non-fatal by
// contract: the Manager logs them and moves on.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, a Alert) error
}

// LogChannel writes alerts to the structured log. It is the default
// channel and the delivery path of last resort.
type LogChannel struct {
	logger *slog.Logger
}

func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Deliver(_ context.Context, a Alert) error {
	attrs := []any{
		"service", a.Service,
		"severity", a.Severity.String(),
		"message", a.Message,
	}
	keys := make([]string, 0, len(a.Details))
	for k := range a.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, "detail."+k, a.Details[k])
	}

	switch a.Severity {
	case SeverityCritical, SeverityError:
		c.logger.Error("alert", attrs...)
	case SeverityWarning:
		c.logger.Warn("alert", attrs...)
	default:
		c.logger.Info("alert", attrs...)
	}
	return nil
}

// SlackChannel posts alerts to a Slack incoming webhook.
type SlackChannel struct {
	webhookURL string
	client     *http.Client
}

func NewSlackChannel(webhookURL string) *SlackChannel {
	return &SlackChannel{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Deliver(ctx context.Context, a Alert) error {
	text := fmt.Sprintf("%s %s\n%s", severityEmoji(a.Severity), a.Title(), a.Message)
	for k, v := range a.Details {
		text += fmt.Sprintf("\n• %s: %v", k, v)
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("encoding slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func severityEmoji(s Severity) string {
	switch s {
	case SeverityCritical:
		return "🔴"
	case SeverityError:
		return "🟠"
	case SeverityWarning:
		return "🟡"
	default:
		return "🔵"
	}
}
