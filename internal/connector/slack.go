package connector

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
)

// Slack wraps the Slack Web API. The health probe is auth.test, which is
// the cheapest call Slack offers and also validates the token.
type Slack struct {
	unimplemented

	name string
	base string
	rest *restClient

	authenticated atomic.Bool
}

func NewSlack(name string, s Settings) *Slack {
	base := s.BaseURL
	if base == "" {
		base = "https://slack.com/api"
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.Token)

	return &Slack{
		unimplemented: unimplemented{name: name},
		name:          name,
		base:          base,
		rest:          newRESTClient(header),
	}
}

func (s *Slack) Name() string { return s.name }

func (s *Slack) Capabilities() Capabilities {
	return Capabilities{ResourceKinds: []string{"channels"}}
}

// authTest calls auth.test and returns the workspace team name. Slack
// reports auth failures inside a 200 body, so the ok flag matters more
// than the HTTP status.
func (s *Slack) authTest(ctx context.Context) (team string, ok bool, err error) {
	var resp struct {
		OK    bool   `json:"ok"`
		Team  string `json:"team"`
		Error string `json:"error"`
	}
	if err := s.rest.doJSON(ctx, http.MethodPost, s.base+"/auth.test", nil, &resp); err != nil {
		return "", false, err
	}
	if !resp.OK {
		return "", false, fmt.Errorf("slack auth.test: %s", resp.Error)
	}
	return resp.Team, true, nil
}

func (s *Slack) Authenticate(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	_, ok, err := s.authTest(ctx)
	if err != nil && IsTransient(err) {
		return false, err
	}
	s.authenticated.Store(ok)
	return ok, nil
}

func (s *Slack) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	team, _, err := s.authTest(ctx)
	if err != nil {
		return nil, err
	}
	return &HealthStatus{
		Healthy: true,
		Message: "Slack API reachable",
		Details: map[string]any{"team": team},
	}, nil
}

func (s *Slack) ListResources(ctx context.Context, kind string) ([]Resource, error) {
	if kind != "channels" {
		return nil, &UnsupportedResourceError{Service: s.name, Kind: kind}
	}

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	var resp struct {
		OK       bool   `json:"ok"`
		Error    string `json:"error"`
		Channels []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"channels"`
	}
	url := s.base + "/conversations.list?limit=200"
	if err := s.rest.doJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("listing channels: %s", resp.Error)
	}

	out := make([]Resource, 0, len(resp.Channels))
	for _, c := range resp.Channels {
		out = append(out, Resource{ID: c.ID, Name: c.Name})
	}
	return out, nil
}
