package connector

import (
	"context"
	"sync/atomic"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI wraps the OpenAI API through the go-openai SDK. Listing models
// is the cheapest authenticated call and serves as both the credential
// check and the health probe.
type OpenAI struct {
	unimplemented

	name   string
	client *openai.Client

	authenticated atomic.Bool
}

func NewOpenAI(name string, s Settings) *OpenAI {
	cfg := openai.DefaultConfig(s.Token)
	if s.BaseURL != "" {
		cfg.BaseURL = s.BaseURL
	}
	return &OpenAI{
		unimplemented: unimplemented{name: name},
		name:          name,
		client:        openai.NewClientWithConfig(cfg),
	}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Capabilities() Capabilities {
	return Capabilities{ResourceKinds: []string{"models"}}
}

func (o *OpenAI) Authenticate(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	if _, err := o.client.ListModels(ctx); err != nil {
		if IsTransient(err) {
			return false, err
		}
		return false, nil
	}
	o.authenticated.Store(true)
	return true, nil
}

func (o *OpenAI) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	models, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	return &HealthStatus{
		Healthy: true,
		Message: "OpenAI API reachable",
		Details: map[string]any{"model_count": len(models.Models)},
	}, nil
}

func (o *OpenAI) ListResources(ctx context.Context, kind string) ([]Resource, error) {
	if kind != "models" {
		return nil, &UnsupportedResourceError{Service: o.name, Kind: kind}
	}

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	models, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Resource, 0, len(models.Models))
	for _, m := range models.Models {
		out = append(out, Resource{ID: m.ID, Name: m.ID, Raw: map[string]any{"owned_by": m.OwnedBy}})
	}
	return out, nil
}
