// Package modelapi implements a provider backed by an HTTP model API through
// the normalized model.Model interface. The factories registered here cover
// the Anthropic and OpenAI backends; any model.Model can be wrapped directly
// via New for custom or mock backends.
package modelapi

import (
	"context"
	"fmt"
	"os"

	"github.com/hupe1980/goatherd/core"
	"github.com/hupe1980/goatherd/model"
	"github.com/hupe1980/goatherd/model/anthropic"
	"github.com/hupe1980/goatherd/model/openai"
	"github.com/hupe1980/goatherd/provider"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
)

func init() {
	provider.RegisterKind("anthropic", func(cfg provider.Config) (core.Provider, error) {
		m := anthropic.New(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			if cfg.APIKeyEnv != "" {
				o.APIKey = os.Getenv(cfg.APIKeyEnv)
			}
		})
		return New(cfg.ID, m, withConfigCapabilities(cfg)), nil
	})

	provider.RegisterKind("openai", func(cfg provider.Config) (core.Provider, error) {
		m := openai.New(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.APIKeyEnv != "" {
				o.APIKey = os.Getenv(cfg.APIKeyEnv)
			}
		})
		return New(cfg.ID, m, withConfigCapabilities(cfg)), nil
	})
}

// Provider adapts a model.Model to the core.Provider contract.
type Provider struct {
	id    string
	model model.Model
	caps  core.Capabilities
}

// New wraps a model as a provider. Model capability is always set since the
// backend accepts a model selector by construction.
func New(id string, m model.Model, optFns ...func(p *Provider)) *Provider {
	p := &Provider{id: id, model: m, caps: core.Capabilities{Model: true, Auth: true}}
	for _, fn := range optFns {
		fn(p)
	}
	p.caps.Model = true
	return p
}

func withConfigCapabilities(cfg provider.Config) func(p *Provider) {
	return func(p *Provider) {
		caps := cfg.Capabilities
		caps.Model = true
		p.caps = caps
	}
}

// ID implements core.Provider.
func (p *Provider) ID() string { return p.id }

// Capabilities implements core.Provider.
func (p *Provider) Capabilities() core.Capabilities { return p.caps }

// Invoke implements core.Provider. Transport errors are reported as a failed
// result (code 1, stderr populated) so a single API failure stays a
// recoverable per-step condition for the orchestrator.
func (p *Provider) Invoke(ctx context.Context, opts core.InvokeOptions) (*core.ExecutionResult, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	resp, err := p.model.Generate(ctx, model.Request{
		System:   opts.SystemPrompt,
		Messages: []model.Message{{Role: "user", Text: opts.Message}},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &core.ExecutionResult{
			Code:   1,
			Stderr: fmt.Sprintf("model api error: %v", err),
		}, nil
	}

	return &core.ExecutionResult{
		Code:              0,
		Stdout:            resp.Text,
		ProviderSessionID: opts.ProviderSessionID,
	}, nil
}
