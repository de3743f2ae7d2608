// Package goatherd provides a high-level façade over the orchestration core
// and its services (routing, planning, sessions, ledgers & logging) enabling
// rapid construction of hierarchical agent systems. Most applications
// interact with this package by:
//  1. Creating a Herd via New() (optionally overriding default in-memory services)
//  2. Supplying a roster of agent descriptors bound to registered providers
//  3. Handling user messages (Handle), which routes to an entry agent and
//     drives the planner-directed delegation loop to completion
//
// The façade delegates the step loop to orchestration.Orchestrator while
// keeping setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply durable
// file-backed stores and a structured logger.
package goatherd

import (
	"context"
	"fmt"

	"github.com/hupe1980/goatherd/config"
	"github.com/hupe1980/goatherd/core"
	"github.com/hupe1980/goatherd/logging"
	"github.com/hupe1980/goatherd/orchestration"
	"github.com/hupe1980/goatherd/planner"
	"github.com/hupe1980/goatherd/provider"
	"github.com/hupe1980/goatherd/routing"
	"github.com/hupe1980/goatherd/session"
	"github.com/hupe1980/goatherd/skill"
	"github.com/hupe1980/goatherd/workspace"
)

// Options configures the Herd instance.
type Options struct {
	// DefaultAgentID is the fallback entry agent. Defaults to "goat".
	DefaultAgentID string

	// MaxSteps caps the orchestration step budget per run.
	MaxSteps int

	// Roster is the set of agents available to routing and planning.
	Roster *core.Roster

	// Providers resolves provider ids referenced by the roster.
	Providers core.ProviderRegistry

	// Planner defaults to the deterministic heuristic planner.
	Planner planner.Planner

	// Router defaults to a routing service with standard weights.
	Router *routing.Service

	// Stores (default to in-memory implementations if not provided).
	Sessions  *session.Service
	Workspace workspace.Store
	Skills    skill.Installer
	Ledgers   orchestration.LedgerStore

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Herd is the high-level façade aggregating the router and the orchestrator.
type Herd struct {
	opts         Options
	router       *routing.Service
	orchestrator *orchestration.Orchestrator
}

// New creates a new Herd instance with optional overrides. Any unset service
// is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Herd {
	opts := Options{
		DefaultAgentID: "goat",
		MaxSteps:       orchestration.DefaultMaxSteps,
		Roster:         core.MustRoster(),
		Providers:      core.ProviderMap{},
		Planner:        planner.NewHeuristic(),
		Workspace:      workspace.NewInMemoryStore(),
		Skills:         skill.NoopInstaller{},
		Ledgers:        orchestration.NewInMemoryLedgerStore(),
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Router == nil {
		opts.Router = routing.NewService(func(o *routing.Options) { o.Logger = opts.Logger })
	}
	if opts.Sessions == nil {
		roster := opts.Roster
		opts.Sessions = session.NewService(func(o *session.Options) {
			o.Logger = opts.Logger
			o.Enabled = roster.Contains
		})
	}

	orc := orchestration.New(func(o *orchestration.Options) {
		o.Planner = opts.Planner
		o.Providers = opts.Providers
		o.Sessions = opts.Sessions
		o.Workspace = opts.Workspace
		o.Skills = opts.Skills
		o.Ledgers = opts.Ledgers
		o.MaxSteps = opts.MaxSteps
		o.Logger = opts.Logger
	})

	return &Herd{opts: opts, router: opts.Router, orchestrator: orc}
}

// FromConfig builds a Herd from a loaded configuration, constructing
// providers through the static registry and file-backed stores for any
// configured directories.
func FromConfig(cfg *config.Config, optFns ...func(o *Options)) (*Herd, error) {
	roster, err := cfg.Roster()
	if err != nil {
		return nil, fmt.Errorf("goatherd: %w", err)
	}
	providers, err := provider.BuildAll(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("goatherd: %w", err)
	}

	return New(append([]func(o *Options){func(o *Options) {
		o.DefaultAgentID = cfg.DefaultAgentID
		o.MaxSteps = cfg.MaxSteps
		o.Roster = roster
		o.Providers = providers
		if cfg.SessionDir != "" {
			o.Sessions = session.NewService(func(so *session.Options) {
				so.Store = session.NewFileStore(cfg.SessionDir)
				so.Enabled = roster.Contains
			})
		}
		if cfg.LedgerDir != "" {
			o.Ledgers = orchestration.NewFileLedgerStore(cfg.LedgerDir)
		}
		if cfg.WorkspaceDir != "" {
			o.Workspace = workspace.NewDirStore(cfg.WorkspaceDir)
		}
		if cfg.SkillDir != "" {
			o.Skills = skill.NewDirInstaller(cfg.SkillDir)
		}
	}}, optFns...)...), nil
}

// Route scores the roster for a message without starting a run.
func (h *Herd) Route(message string) core.RoutingDecision {
	return h.router.Route(message, h.opts.Roster, h.opts.DefaultAgentID)
}

// Handle routes the message to an entry agent and drives one orchestration
// run to completion. The routing decision is returned alongside the run
// result for observability.
func (h *Herd) Handle(ctx context.Context, message string) (*orchestration.RunResult, core.RoutingDecision, error) {
	return h.HandleFrom(ctx, "", message)
}

// HandleFrom is Handle with an explicitly requested entry agent. An unknown
// requested agent degrades to the default entry agent.
func (h *Herd) HandleFrom(ctx context.Context, requestedAgentID, message string) (*orchestration.RunResult, core.RoutingDecision, error) {
	decision := h.router.RouteFrom(requestedAgentID, message, h.opts.Roster, h.opts.DefaultAgentID)

	result, err := h.orchestrator.Execute(ctx, orchestration.RunRequest{
		EntryAgentID: decision.EntryAgentID,
		UserMessage:  decision.RewrittenMessage,
		Roster:       h.opts.Roster,
	})
	return result, decision, err
}

// Sessions exposes the session service for lifecycle operations (compaction,
// reset, listing).
func (h *Herd) Sessions() *session.Service { return h.opts.Sessions }

// Ledgers exposes the ledger store for replay and audit.
func (h *Herd) Ledgers() orchestration.LedgerStore { return h.opts.Ledgers }
