package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Render wraps the Render deployment platform. It is the fullest
// connector in the fleet: health, service listing, deploys, recent logs,
// and live log streaming over websocket.
type Render struct {
	name   string
	base   string
	wsBase string
	token  string
	rest   *restClient

	authenticated atomic.Bool
}

func NewRender(name string, s Settings) *Render {
	base := s.BaseURL
	if base == "" {
		base = "https://api.render.com"
	}
	var wsBase string
	switch {
	case strings.HasPrefix(base, "http://"):
		wsBase = "ws://" + strings.TrimPrefix(base, "http://")
	default:
		wsBase = "wss://" + strings.TrimPrefix(base, "https://")
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.Token)
	header.Set("Accept", "application/json")

	return &Render{
		name:   name,
		base:   base,
		wsBase: wsBase,
		token:  s.Token,
		rest:   newRESTClient(header),
	}
}

func (r *Render) Name() string { return r.name }

func (r *Render) Capabilities() Capabilities {
	return Capabilities{
		Deploy:        true,
		Logs:          true,
		StreamLogs:    true,
		ResourceKinds: []string{"services"},
	}
}

func (r *Render) Authenticate(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	if err := r.rest.doJSON(ctx, http.MethodGet, r.base+"/v1/services?limit=1", nil, nil); err != nil {
		if IsTransient(err) {
			return false, err
		}
		return false, nil
	}
	r.authenticated.Store(true)
	return true, nil
}

func (r *Render) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	var services []struct {
		Service struct {
			ID string `json:"id"`
		} `json:"service"`
	}
	if err := r.rest.doJSON(ctx, http.MethodGet, r.base+"/v1/services?limit=1", nil, &services); err != nil {
		return nil, err
	}
	return &HealthStatus{
		Healthy: true,
		Message: "Render API reachable",
		Details: map[string]any{"probe": "services"},
	}, nil
}

func (r *Render) ListResources(ctx context.Context, kind string) ([]Resource, error) {
	if kind != "services" {
		return nil, &UnsupportedResourceError{Service: r.name, Kind: kind}
	}

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	var services []struct {
		Service struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"service"`
	}
	if err := r.rest.doJSON(ctx, http.MethodGet, r.base+"/v1/services?limit=100", nil, &services); err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}

	out := make([]Resource, 0, len(services))
	for _, s := range services {
		out = append(out, Resource{
			ID:   s.Service.ID,
			Name: s.Service.Name,
			Raw:  map[string]any{"type": s.Service.Type},
		})
	}
	return out, nil
}

func (r *Render) Deploy(ctx context.Context, app, branch string) (*DeployResult, error) {
	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	body := map[string]any{}
	if branch != "" {
		body["branch"] = branch
	}

	var deploy struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	path := fmt.Sprintf("%s/v1/services/%s/deploys", r.base, url.PathEscape(app))
	if err := r.rest.doJSON(ctx, http.MethodPost, path, body, &deploy); err != nil {
		// A failed deploy trigger is a normal structured outcome for the
		// caller, not an exceptional condition.
		return &DeployResult{Success: false, Error: err.Error()}, nil
	}
	return &DeployResult{Success: true, DeploymentID: deploy.ID}, nil
}

func (r *Render) GetLogs(ctx context.Context, app string, lines int) ([]string, error) {
	if lines <= 0 {
		lines = 100
	}

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	var resp struct {
		Logs []struct {
			Message string `json:"message"`
		} `json:"logs"`
	}
	path := fmt.Sprintf("%s/v1/logs?resource=%s&limit=%d", r.base, url.QueryEscape(app), lines)
	if err := r.rest.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching logs: %w", err)
	}

	out := make([]string, 0, len(resp.Logs))
	for _, l := range resp.Logs {
		out = append(out, l.Message)
	}
	return out, nil
}

// StreamLogs subscribes to the live log socket for app. Lines arrive on
// the returned channel until ctx is canceled or the upstream closes; the
// stream cannot be restarted, callers reconnect by calling again.
func (r *Render) StreamLogs(ctx context.Context, app string) (<-chan string, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+r.token)

	endpoint := fmt.Sprintf("%s/v1/logs/subscribe?resource=%s", r.wsBase, url.QueryEscape(app))
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("opening log stream: %w", err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer conn.Close()

		// Unblock ReadMessage when the caller gives up.
		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case out <- string(msg):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
