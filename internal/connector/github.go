package connector

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
)

// GitHub is a thin wrapper over the GitHub REST v3 API. It exposes a
// health probe and repository listing; GitHub has no deploy or log
// surface in this system.
type GitHub struct {
	unimplemented

	name string
	base string
	rest *restClient

	authenticated atomic.Bool
}

func NewGitHub(name string, s Settings) *GitHub {
	base := s.BaseURL
	if base == "" {
		base = "https://api.github.com"
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.Token)
	header.Set("Accept", "application/vnd.github+json")

	return &GitHub{
		unimplemented: unimplemented{name: name},
		name:          name,
		base:          base,
		rest:          newRESTClient(header),
	}
}

func (g *GitHub) Name() string { return g.name }

func (g *GitHub) Capabilities() Capabilities {
	return Capabilities{ResourceKinds: []string{"repos"}}
}

func (g *GitHub) Authenticate(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	var user struct {
		Login string `json:"login"`
	}
	if err := g.rest.doJSON(ctx, http.MethodGet, g.base+"/user", nil, &user); err != nil {
		if IsTransient(err) {
			return false, err
		}
		return false, nil
	}
	g.authenticated.Store(true)
	return true, nil
}

func (g *GitHub) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	var rl struct {
		Resources struct {
			Core struct {
				Remaining int `json:"remaining"`
				Limit     int `json:"limit"`
			} `json:"core"`
		} `json:"resources"`
	}
	if err := g.rest.doJSON(ctx, http.MethodGet, g.base+"/rate_limit", nil, &rl); err != nil {
		return nil, err
	}
	return &HealthStatus{
		Healthy: true,
		Message: "GitHub API reachable",
		Details: map[string]any{
			"rate_remaining": rl.Resources.Core.Remaining,
			"rate_limit":     rl.Resources.Core.Limit,
		},
	}, nil
}

func (g *GitHub) ListResources(ctx context.Context, kind string) ([]Resource, error) {
	if kind != "repos" {
		return nil, &UnsupportedResourceError{Service: g.name, Kind: kind}
	}

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	var repos []struct {
		FullName string `json:"full_name"`
		Private  bool   `json:"private"`
	}
	url := g.base + "/user/repos?per_page=100"
	if err := g.rest.doJSON(ctx, http.MethodGet, url, nil, &repos); err != nil {
		return nil, fmt.Errorf("listing repos: %w", err)
	}

	out := make([]Resource, 0, len(repos))
	for _, r := range repos {
		out = append(out, Resource{
			ID:   r.FullName,
			Name: r.FullName,
			Raw:  map[string]any{"private": r.Private},
		})
	}
	return out, nil
}
