package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/goatherd/core"
	"github.com/hupe1980/goatherd/planner"
)

// ScriptedPlanner replays a fixed sequence of decisions. The step after the
// script runs out returns an error, so a test that loops too far fails loudly.
type ScriptedPlanner struct {
	mu        sync.Mutex
	decisions []*planner.Decision
	errs      []error
	calls     int
}

// NewScriptedPlanner creates an empty scripted planner.
func NewScriptedPlanner() *ScriptedPlanner { return &ScriptedPlanner{} }

// Then appends an action to the script (chainable).
func (p *ScriptedPlanner) Then(action core.Action) *ScriptedPlanner {
	return p.ThenDecision(&planner.Decision{Rationale: "scripted", Action: action})
}

// ThenDecision appends a full decision to the script (chainable).
func (p *ScriptedPlanner) ThenDecision(d *planner.Decision) *ScriptedPlanner {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions = append(p.decisions, d)
	p.errs = append(p.errs, nil)
	return p
}

// ThenError appends a planning failure to the script (chainable).
func (p *ScriptedPlanner) ThenError(err error) *ScriptedPlanner {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions = append(p.decisions, nil)
	p.errs = append(p.errs, err)
	return p
}

// Decide implements planner.Planner.
func (p *ScriptedPlanner) Decide(ctx context.Context, state *planner.RunState) (*planner.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls >= len(p.decisions) {
		return nil, fmt.Errorf("scripted planner exhausted after %d decisions", p.calls)
	}
	d, err := p.decisions[p.calls], p.errs[p.calls]
	p.calls++
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Calls returns how many decisions were consumed.
func (p *ScriptedPlanner) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// ScriptedProvider replays fixed execution results and records the invoke
// options it received.
type ScriptedProvider struct {
	mu      sync.Mutex
	id      string
	caps    core.Capabilities
	results []*core.ExecutionResult
	errs    []error
	calls   int
	invokes []core.InvokeOptions
}

// NewScriptedProvider creates a provider double with the given id.
func NewScriptedProvider(id string) *ScriptedProvider {
	return &ScriptedProvider{id: id, caps: core.Capabilities{Agent: true}}
}

// Respond appends a successful result with the given stdout (chainable).
func (p *ScriptedProvider) Respond(stdout string) *ScriptedProvider {
	return p.Result(&core.ExecutionResult{Stdout: stdout})
}

// Fail appends a non-zero exit result (chainable).
func (p *ScriptedProvider) Fail(code int, stderr string) *ScriptedProvider {
	return p.Result(&core.ExecutionResult{Code: code, Stderr: stderr})
}

// Result appends a raw result (chainable).
func (p *ScriptedProvider) Result(r *core.ExecutionResult) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, r)
	p.errs = append(p.errs, nil)
	return p
}

// Error appends a transport-level invocation error (chainable).
func (p *ScriptedProvider) Error(err error) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, nil)
	p.errs = append(p.errs, err)
	return p
}

// ID implements core.Provider.
func (p *ScriptedProvider) ID() string { return p.id }

// Capabilities implements core.Provider.
func (p *ScriptedProvider) Capabilities() core.Capabilities { return p.caps }

// Invoke implements core.Provider. The script loops when exhausted so long
// runs keep getting the last scripted outcome.
func (p *ScriptedProvider) Invoke(ctx context.Context, opts core.InvokeOptions) (*core.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invokes = append(p.invokes, opts)
	if len(p.results) == 0 {
		p.calls++
		return &core.ExecutionResult{Stdout: "ok"}, nil
	}
	i := p.calls
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	p.calls++
	if err := p.errs[i]; err != nil {
		return nil, err
	}
	cp := *p.results[i]
	return &cp, nil
}

// Invokes returns a copy of the recorded invoke options.
func (p *ScriptedProvider) Invokes() []core.InvokeOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.InvokeOptions, len(p.invokes))
	copy(out, p.invokes)
	return out
}
