// Package connector defines the uniform capability contract that every
// external service integration satisfies, plus the registry and retry
// machinery shared by all of them.
//
// A Connector wraps one third-party service (GitHub, Slack, Render, ...)
// behind a fixed set of operations. Not every service supports every
// operation: each connector declares its capabilities up front, and
// callers check Supports before invoking optional operations. Unsupported
// operations return a *CapabilityError rather than panicking.
package connector

import (
	"context"
	"time"
)

// Capability identifies an optional connector operation.
type Capability string

const (
	CapDeploy     Capability = "deploy"
	CapLogs       Capability = "logs"
	CapStreamLogs Capability = "stream_logs"
)

// Capabilities declares which optional operations a connector implements
// and which resource kinds its ListResources accepts. Declared once at
// construction; never mutated afterward.
type Capabilities struct {
	Deploy     bool
	Logs       bool
	StreamLogs bool

	// ResourceKinds are the values ListResources accepts.
	ResourceKinds []string
}

// Supports reports whether the optional capability is implemented.
func (c Capabilities) Supports(cap Capability) bool {
	switch cap {
	case CapDeploy:
		return c.Deploy
	case CapLogs:
		return c.Logs
	case CapStreamLogs:
		return c.StreamLogs
	default:
		return false
	}
}

// SupportsResource reports whether ListResources accepts the given kind.
func (c Capabilities) SupportsResource(kind string) bool {
	for _, k := range c.ResourceKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// HealthStatus is the raw result of a vendor-specific health probe.
// CheckHealth promotes it into a Result with timing attached.
type HealthStatus struct {
	Healthy bool
	Message string
	Details map[string]any
}

// Result is a completed health check for one service. Created fresh on
// every check and never mutated afterward.
type Result struct {
	Service        string         `json:"service"`
	Healthy        bool           `json:"healthy"`
	ResponseTimeMS float64        `json:"response_time_ms"`
	Message        string         `json:"message"`
	Details        map[string]any `json:"details,omitempty"`
	CheckedAt      time.Time      `json:"checked_at"`
}

// DeployResult is the normalized outcome of a Deploy call.
type DeployResult struct {
	Success      bool   `json:"success"`
	DeploymentID string `json:"deployment_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Resource is one entry returned by ListResources. Connectors fill ID and
// Name from whatever the vendor calls them; Raw keeps vendor fields the
// caller may want to display.
type Resource struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Raw  map[string]any `json:"raw,omitempty"`
}

// Connector is the uniform abstraction over a third-party service.
//
// HealthCheck is the vendor-specific probe and may return an error; use
// CheckHealth for the safe wrapper that never propagates failures.
// Deploy, GetLogs, and StreamLogs return a *CapabilityError when the
// connector does not declare the matching capability.
type Connector interface {
	// Name returns the configured service name (registry key).
	Name() string

	// Capabilities returns the connector's declared capability set.
	Capabilities() Capabilities

	// Authenticate performs a cheap credential-validation call. Expected
	// auth failures return (false, nil); only transport-level problems
	// surface as errors.
	Authenticate(ctx context.Context) (bool, error)

	// HealthCheck performs a lightweight vendor probe.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// ListResources lists resources of the given kind.
	ListResources(ctx context.Context, kind string) ([]Resource, error)

	// Deploy triggers a deployment of app from branch.
	Deploy(ctx context.Context, app, branch string) (*DeployResult, error)

	// GetLogs fetches up to lines recent log lines for app.
	GetLogs(ctx context.Context, app string, lines int) ([]string, error)

	// StreamLogs returns a lazy, unbounded stream of log lines for app.
	// The channel closes when ctx is canceled or the upstream ends; the
	// stream is not restartable.
	StreamLogs(ctx context.Context, app string) (<-chan string, error)
}

// OpTimeout is the per-operation budget every connector call runs under.
// Connectors apply it themselves so that a hung vendor API cannot stall
// a health sweep or a scheduled job.
const OpTimeout = 10 * time.Second
