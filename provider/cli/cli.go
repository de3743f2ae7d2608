// Package cli implements a provider backed by a local command-line tool. The
// message and options are mapped onto argv flags (or stdin), the subprocess
// is run under the caller's context, and the provider session id is recovered
// from the tool's output with a best-effort hint extractor.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/hupe1980/goatherd/core"
	"github.com/hupe1980/goatherd/provider"
	"github.com/hupe1980/goatherd/session"
)

func init() {
	provider.RegisterKind("cli", func(cfg provider.Config) (core.Provider, error) {
		return New(cfg)
	})
}

// Provider runs a local command-line tool per invocation.
type Provider struct {
	cfg     provider.Config
	extract session.HintExtractor
}

// New builds a CLI provider from its config.
func New(cfg provider.Config, optFns ...func(p *Provider)) (*Provider, error) {
	if cfg.Binary == "" {
		return nil, fmt.Errorf("cli provider %s: missing binary", cfg.ID)
	}
	p := &Provider{cfg: cfg, extract: session.ExtractSessionHint}
	for _, fn := range optFns {
		fn(p)
	}
	return p, nil
}

// WithHintExtractor overrides the session hint extractor, e.g. for tools with
// a known structured output format.
func WithHintExtractor(extract session.HintExtractor) func(p *Provider) {
	return func(p *Provider) { p.extract = extract }
}

// ID implements core.Provider.
func (p *Provider) ID() string { return p.cfg.ID }

// Capabilities implements core.Provider.
func (p *Provider) Capabilities() core.Capabilities { return p.cfg.Capabilities }

// Invoke implements core.Provider. A non-zero exit is reported in the result
// code, not as an error; errors are reserved for failures to run the tool at
// all.
func (p *Provider) Invoke(ctx context.Context, opts core.InvokeOptions) (*core.ExecutionResult, error) {
	args := p.buildArgs(opts)

	cmd := exec.CommandContext(ctx, p.cfg.Binary, args...)
	cmd.Env = p.buildEnv(opts.Env)
	if p.cfg.MessageStdin {
		cmd.Stdin = bytes.NewBufferString(opts.Message)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &core.ExecutionResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Code = exitErr.ExitCode()
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		} else {
			return nil, fmt.Errorf("cli provider %s: run %s: %w", p.cfg.ID, p.cfg.Binary, err)
		}
	}

	if id, ok := p.extract(result.Stdout); ok {
		result.ProviderSessionID = id
	} else {
		result.ProviderSessionID = opts.ProviderSessionID
	}
	return result, nil
}

// CreateAgent implements core.AgentLifecycle by running the configured create
// subcommand. Only legal when the AgentCreate capability is set.
func (p *Provider) CreateAgent(ctx context.Context, opts core.InvokeOptions) (*core.ExecutionResult, error) {
	if !p.cfg.Capabilities.AgentCreate {
		return nil, fmt.Errorf("cli provider %s: agent creation not supported", p.cfg.ID)
	}
	return p.runLifecycle(ctx, p.cfg.CreateArgs, opts)
}

// DeleteAgent implements core.AgentLifecycle by running the configured delete
// subcommand. Only legal when the AgentDelete capability is set.
func (p *Provider) DeleteAgent(ctx context.Context, opts core.InvokeOptions) (*core.ExecutionResult, error) {
	if !p.cfg.Capabilities.AgentDelete {
		return nil, fmt.Errorf("cli provider %s: agent deletion not supported", p.cfg.ID)
	}
	return p.runLifecycle(ctx, p.cfg.DeleteArgs, opts)
}

// runLifecycle executes one lifecycle subcommand with the agent flag applied.
func (p *Provider) runLifecycle(ctx context.Context, baseArgs []string, opts core.InvokeOptions) (*core.ExecutionResult, error) {
	args := append([]string{}, baseArgs...)
	if p.cfg.AgentFlag != "" && opts.Agent != "" {
		args = append(args, p.cfg.AgentFlag, opts.Agent)
	}

	cmd := exec.CommandContext(ctx, p.cfg.Binary, args...)
	cmd.Env = p.buildEnv(opts.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &core.ExecutionResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Code = exitErr.ExitCode()
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		} else {
			return nil, fmt.Errorf("cli provider %s: run %s: %w", p.cfg.ID, p.cfg.Binary, err)
		}
	}
	return result, nil
}

// buildArgs maps invoke options onto the tool's argv.
func (p *Provider) buildArgs(opts core.InvokeOptions) []string {
	args := append([]string{}, p.cfg.Args...)
	if p.cfg.AgentFlag != "" && opts.Agent != "" && p.cfg.Capabilities.Agent {
		args = append(args, p.cfg.AgentFlag, opts.Agent)
	}
	if p.cfg.ModelFlag != "" && opts.Model != "" && p.cfg.Capabilities.Model {
		args = append(args, p.cfg.ModelFlag, opts.Model)
	}
	if p.cfg.SessionFlag != "" && opts.ProviderSessionID != "" {
		args = append(args, p.cfg.SessionFlag, opts.ProviderSessionID)
	}
	if p.cfg.SystemPromptFlag != "" && opts.SystemPrompt != "" {
		args = append(args, p.cfg.SystemPromptFlag, opts.SystemPrompt)
	}
	if p.cfg.Capabilities.Passthrough {
		args = append(args, opts.PassthroughArgs...)
	}
	if !p.cfg.MessageStdin {
		args = append(args, opts.Message)
	}
	return args
}

// buildEnv merges the process environment, the configured env, and the
// per-invocation env, later entries winning.
func (p *Provider) buildEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range p.cfg.Env {
		env = append(env, k+"="+v)
	}
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}
