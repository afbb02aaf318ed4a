package connector

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
)

// Stripe wraps the Stripe REST API. The balance endpoint doubles as a
// credential check and a health probe; it is free and side-effect free.
type Stripe struct {
	unimplemented

	name string
	base string
	rest *restClient

	authenticated atomic.Bool
}

func NewStripe(name string, s Settings) *Stripe {
	base := s.BaseURL
	if base == "" {
		base = "https://api.stripe.com"
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.Token)

	return &Stripe{
		unimplemented: unimplemented{name: name},
		name:          name,
		base:          base,
		rest:          newRESTClient(header),
	}
}

func (s *Stripe) Name() string { return s.name }

func (s *Stripe) Capabilities() Capabilities {
	return Capabilities{ResourceKinds: []string{"charges", "customers"}}
}

func (s *Stripe) Authenticate(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	if err := s.rest.doJSON(ctx, http.MethodGet, s.base+"/v1/balance", nil, nil); err != nil {
		if IsTransient(err) {
			return false, err
		}
		return false, nil
	}
	s.authenticated.Store(true)
	return true, nil
}

func (s *Stripe) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	var balance struct {
		Livemode  bool `json:"livemode"`
		Available []struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		} `json:"available"`
	}
	if err := s.rest.doJSON(ctx, http.MethodGet, s.base+"/v1/balance", nil, &balance); err != nil {
		return nil, err
	}
	return &HealthStatus{
		Healthy: true,
		Message: "Stripe API reachable",
		Details: map[string]any{"livemode": balance.Livemode},
	}, nil
}

func (s *Stripe) ListResources(ctx context.Context, kind string) ([]Resource, error) {
	var path string
	switch kind {
	case "charges":
		path = "/v1/charges?limit=25"
	case "customers":
		path = "/v1/customers?limit=25"
	default:
		return nil, &UnsupportedResourceError{Service: s.name, Kind: kind}
	}

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	var resp struct {
		Data []struct {
			ID          string `json:"id"`
			Description string `json:"description"`
			Email       string `json:"email"`
		} `json:"data"`
	}
	if err := s.rest.doJSON(ctx, http.MethodGet, s.base+path, nil, &resp); err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}

	out := make([]Resource, 0, len(resp.Data))
	for _, d := range resp.Data {
		name := d.Description
		if name == "" {
			name = d.Email
		}
		out = append(out, Resource{ID: d.ID, Name: name})
	}
	return out, nil
}
