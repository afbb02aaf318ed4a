package connector

import (
	"context"
	"sync/atomic"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic wraps the Anthropic API. The models endpoint validates the
// key without consuming any tokens, so it backs both the credential check
// and the health probe.
type Anthropic struct {
	unimplemented

	name   string
	client *anthropic.Client

	authenticated atomic.Bool
}

func NewAnthropic(name string, s Settings) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(s.Token)}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return &Anthropic{
		unimplemented: unimplemented{name: name},
		name:          name,
		client:        &client,
	}
}

func (a *Anthropic) Name() string { return a.name }

func (a *Anthropic) Capabilities() Capabilities {
	return Capabilities{ResourceKinds: []string{"models"}}
}

func (a *Anthropic) listModels(ctx context.Context) ([]Resource, error) {
	page, err := a.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, err
	}

	out := make([]Resource, 0, len(page.Data))
	for _, m := range page.Data {
		out = append(out, Resource{ID: string(m.ID), Name: m.DisplayName})
	}
	return out, nil
}

func (a *Anthropic) Authenticate(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	if _, err := a.listModels(ctx); err != nil {
		if IsTransient(err) {
			return false, err
		}
		return false, nil
	}
	a.authenticated.Store(true)
	return true, nil
}

func (a *Anthropic) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	models, err := a.listModels(ctx)
	if err != nil {
		return nil, err
	}
	return &HealthStatus{
		Healthy: true,
		Message: "Anthropic API reachable",
		Details: map[string]any{"model_count": len(models)},
	}, nil
}

func (a *Anthropic) ListResources(ctx context.Context, kind string) ([]Resource, error) {
	if kind != "models" {
		return nil, &UnsupportedResourceError{Service: a.name, Kind: kind}
	}

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	return a.listModels(ctx)
}
