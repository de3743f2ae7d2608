package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/goatherd/core"
	"github.com/hupe1980/goatherd/logging"
	"github.com/hupe1980/goatherd/planner"
	"github.com/hupe1980/goatherd/session"
	"github.com/hupe1980/goatherd/skill"
	"github.com/hupe1980/goatherd/workspace"
)

// DefaultMaxSteps is the default step budget per run.
const DefaultMaxSteps = 12

// Options configures an Orchestrator.
type Options struct {
	// Planner proposes the next action each step. Defaults to the
	// deterministic heuristic planner.
	Planner planner.Planner

	// Providers resolves provider ids referenced by agent descriptors.
	Providers core.ProviderRegistry

	// Sessions resolves durable session identity per delegation. Defaults
	// to an in-memory backed service.
	Sessions *session.Service

	// Workspace serves read_workspace_file / write_workspace_file actions.
	// Defaults to an in-memory store.
	Workspace workspace.Store

	// Skills serves install_skill actions. Defaults to a no-op installer.
	Skills skill.Installer

	// Ledgers persists run ledgers. Defaults to an in-memory store.
	Ledgers LedgerStore

	// MaxSteps caps the number of steps per run. Defaults to DefaultMaxSteps.
	MaxSteps int

	// Logger defaults to NoOp.
	Logger logging.Logger
}

// RunRequest is the extended input for one orchestration run.
type RunRequest struct {
	EntryAgentID string
	UserMessage  string
	Roster       *core.Roster

	// SessionRef keys the conversation; defaults to the run id, giving every
	// run a fresh conversation unless the caller correlates turns.
	SessionRef string

	// ProjectPath optionally binds delegated sessions to a project context.
	ProjectPath string

	// Mode is the collaboration mode hint forwarded to the planner.
	Mode core.DelegationMode
}

// RunResult is what callers receive for a terminated run.
type RunResult struct {
	EntryAgentID string
	FinalMessage string
	Status       core.RunStatus
	Ledger       *core.RunLedger
}

// Orchestrator drives the bounded step loop of a run. It is safe for
// concurrent use; each run keeps its own ledger and the only shared state is
// the injected stores.
type Orchestrator struct {
	opts Options
}

// New creates an Orchestrator with optional overrides.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Planner:   planner.NewHeuristic(),
		Providers: core.ProviderMap{},
		Sessions:  session.NewService(),
		Workspace: workspace.NewInMemoryStore(),
		Skills:    skill.NoopInstaller{},
		Ledgers:   NewInMemoryLedgerStore(),
		MaxSteps:  DefaultMaxSteps,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	return &Orchestrator{opts: opts}
}

// Run executes one orchestration run with default request settings.
func (o *Orchestrator) Run(ctx context.Context, entryAgentID, userMessage string, roster *core.Roster) (*RunResult, error) {
	return o.Execute(ctx, RunRequest{EntryAgentID: entryAgentID, UserMessage: userMessage, Roster: roster})
}

// Execute runs the step loop until a terminal action, the step budget, a
// fatal error, or cancellation. On normal termination and on budget
// exhaustion a result with a final message is returned; planning and storage
// errors return an error after the ledger has been persisted with the
// failure recorded.
func (o *Orchestrator) Execute(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.Roster == nil || !req.Roster.Contains(req.EntryAgentID) {
		return nil, fmt.Errorf("orchestration: entry agent %q: %w", req.EntryAgentID, core.ErrUnknownAgent)
	}

	ledger := core.NewRunLedger(req.EntryAgentID, req.UserMessage)
	if req.SessionRef == "" {
		req.SessionRef = ledger.RunID
	}
	if entry, ok := req.Roster.Get(req.EntryAgentID); ok {
		ledger.TouchNode(core.GraphNode{AgentID: entry.AgentID, ProviderID: entry.ProviderID})
	}

	logger := logging.With(o.opts.Logger, "run_id", ledger.RunID, "entry_agent_id", req.EntryAgentID)
	logger.Info("run started", "user_message_len", len(req.UserMessage))

	for ledger.NextStep() <= o.opts.MaxSteps {
		if err := ctx.Err(); err != nil {
			return o.cancelRun(logger, ledger, err)
		}

		decision, err := o.opts.Planner.Decide(ctx, o.runState(req, ledger))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return o.cancelRun(logger, ledger, err)
			}
			return o.failRun(logger, ledger, &core.PlanningError{
				RunID: ledger.RunID, Step: ledger.NextStep(), Reason: "planner failed", Err: err,
			})
		}

		if err := validateAction(decision.Action, req.Roster); err != nil {
			return o.failRun(logger, ledger, &core.PlanningError{
				RunID: ledger.RunID, Step: ledger.NextStep(), Reason: "invalid action", Err: err,
			})
		}

		step := core.StepLog{
			Step:       ledger.NextStep(),
			Timestamp:  time.Now().UTC(),
			RawPlanner: decision.Raw,
			Rationale:  decision.Rationale,
			Action:     core.RecordAction(decision.Action),
		}

		terminal, finalMessage, execErr := o.executeAction(ctx, req, ledger, &step, decision.Action)
		if execErr != nil {
			if errors.Is(execErr, context.Canceled) || errors.Is(execErr, context.DeadlineExceeded) {
				ledger.AppendStep(step)
				return o.cancelRun(logger, ledger, execErr)
			}
			// Non-recoverable: session or storage failure.
			ledger.AppendStep(step)
			return o.failRun(logger, ledger, execErr)
		}

		ledger.AppendStep(step)
		o.persist(logger, ledger)

		logger.Debug("step completed", "step", step.Step, "kind", step.Action.Kind)

		if terminal {
			ledger.Complete(core.StatusCompleted, finalMessage)
			if err := o.opts.Ledgers.Save(ledger); err != nil {
				return nil, fmt.Errorf("orchestration: persist ledger: %w", err)
			}
			logger.Info("run completed", "steps", len(ledger.Steps))
			return &RunResult{
				EntryAgentID: req.EntryAgentID,
				FinalMessage: finalMessage,
				Status:       core.StatusCompleted,
				Ledger:       ledger,
			}, nil
		}
	}

	// Step budget exhausted: synthesize a finish so callers still get a
	// response. Degraded, not an error.
	final := o.forcedFinish(ledger)
	ledger.Complete(core.StatusDegraded, final)
	if err := o.opts.Ledgers.Save(ledger); err != nil {
		return nil, fmt.Errorf("orchestration: persist ledger: %w", err)
	}
	logger.Warn("run degraded: step budget exhausted", "steps", len(ledger.Steps))
	return &RunResult{
		EntryAgentID: req.EntryAgentID,
		FinalMessage: final,
		Status:       core.StatusDegraded,
		Ledger:       ledger,
	}, nil
}

// runState snapshots the ledger into the planner's read-only view.
func (o *Orchestrator) runState(req RunRequest, ledger *core.RunLedger) *planner.RunState {
	steps := make([]core.StepLog, len(ledger.Steps))
	copy(steps, ledger.Steps)
	threads := make([]core.TaskThread, len(ledger.TaskThreads))
	copy(threads, ledger.TaskThreads)
	return &planner.RunState{
		UserMessage:  req.UserMessage,
		EntryAgentID: req.EntryAgentID,
		Roster:       req.Roster,
		Steps:        steps,
		Threads:      threads,
		MaxSteps:     o.opts.MaxSteps,
		Mode:         req.Mode,
	}
}

// executeAction performs the side effect of one validated action. The switch
// is exhaustive over the sealed action set. It returns terminal=true with the
// final message for respond/finish. Provider failures are absorbed into the
// step; returned errors are non-recoverable (session/storage) or
// cancellation.
func (o *Orchestrator) executeAction(
	ctx context.Context,
	req RunRequest,
	ledger *core.RunLedger,
	step *core.StepLog,
	action core.Action,
) (terminal bool, finalMessage string, err error) {
	switch act := action.(type) {
	case core.DelegateAction:
		return false, "", o.executeDelegate(ctx, req, ledger, step, act)

	case core.ReadFileAction:
		step.ArtifactIO = &core.ArtifactIO{Op: "read", Path: act.Path}
		data, rerr := o.opts.Workspace.Read(ctx, act.Path)
		if rerr != nil {
			if errors.Is(rerr, context.Canceled) || errors.Is(rerr, context.DeadlineExceeded) {
				return false, "", rerr
			}
			step.Note = fmt.Sprintf("read failed: %v", rerr)
			return false, "", nil
		}
		step.Note = fmt.Sprintf("read %d bytes", len(data))
		return false, "", nil

	case core.WriteFileAction:
		step.ArtifactIO = &core.ArtifactIO{Op: "write", Path: act.Path}
		if werr := o.opts.Workspace.Write(ctx, act.Path, []byte(act.Content)); werr != nil {
			if errors.Is(werr, context.Canceled) || errors.Is(werr, context.DeadlineExceeded) {
				return false, "", werr
			}
			step.Note = fmt.Sprintf("write failed: %v", werr)
			return false, "", nil
		}
		step.Note = fmt.Sprintf("wrote %d bytes", len(act.Content))
		return false, "", nil

	case core.InstallSkillAction:
		note, ierr := o.opts.Skills.Install(ctx, act.SkillName, act.Source)
		if ierr != nil {
			if errors.Is(ierr, context.Canceled) || errors.Is(ierr, context.DeadlineExceeded) {
				return false, "", ierr
			}
			step.Note = fmt.Sprintf("install failed: %v", ierr)
			return false, "", nil
		}
		step.Note = note
		return false, "", nil

	case core.RespondAction:
		return true, act.Message, nil

	case core.FinishAction:
		return true, act.Message, nil

	default:
		return false, "", &core.PlanningError{RunID: ledger.RunID, Step: step.Step, Reason: fmt.Sprintf("unhandled action type %T", action)}
	}
}

// executeDelegate resolves the session, invokes the target's provider and
// records the call. Provider failures are recorded in the step and do not
// abort the run; session resolution failures do.
func (o *Orchestrator) executeDelegate(
	ctx context.Context,
	req RunRequest,
	ledger *core.RunLedger,
	step *core.StepLog,
	act core.DelegateAction,
) error {
	target, _ := req.Roster.Get(act.TargetAgentID)

	call := &core.AgentCall{
		TargetAgentID: act.TargetAgentID,
		ProviderID:    target.ProviderID,
		Request:       act.Message,
	}
	step.AgentCall = call

	// A task thread pins the sub-conversation to its established session.
	sessionRef := req.SessionRef
	var priorProviderSession string
	if act.TaskKey != "" {
		sessionRef = req.SessionRef + ":" + act.TaskKey
		if t, ok := ledger.Thread(act.TaskKey); ok {
			sessionRef = t.SessionKey
			priorProviderSession = t.ProviderSessionID
		}
	}

	resolution, err := o.opts.Sessions.PrepareRunSession(ctx, act.TargetAgentID, session.PrepareRequest{
		SessionRef:  sessionRef,
		ProjectPath: req.ProjectPath,
		Policy:      act.SessionPolicy,
		UserMessage: act.Message,
	})
	if err != nil {
		return fmt.Errorf("orchestration: resolve session for %s: %w", act.TargetAgentID, err)
	}
	if resolution.Enabled {
		call.SessionKey = resolution.Info.SessionKey
		call.SessionID = resolution.Info.SessionID
	}

	prov, ok := o.opts.Providers.Provider(target.ProviderID)
	if !ok {
		return fmt.Errorf("orchestration: agent %s: provider %q: %w", act.TargetAgentID, target.ProviderID, core.ErrUnknownProvider)
	}

	result, err := prov.Invoke(ctx, core.InvokeOptions{
		Message:           act.Message,
		Agent:             target.Name,
		ProviderSessionID: priorProviderSession,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		// Recoverable: record and let the planner decide what to do next.
		call.Code = -1
		call.Error = err.Error()
	} else {
		call.Code = result.Code
		call.Response = result.Stdout
		call.ProviderSessionID = result.ProviderSessionID
		if result.Code != 0 {
			call.Error = result.Stderr
		}
	}

	ledger.TouchNode(core.GraphNode{
		AgentID:    act.TargetAgentID,
		ProviderID: target.ProviderID,
		SessionKey: call.SessionKey,
		SessionID:  call.SessionID,
	})
	ledger.TouchEdge(core.GraphEdge{
		From:   req.EntryAgentID,
		To:     act.TargetAgentID,
		Reason: step.Rationale,
	})

	if act.TaskKey != "" {
		thread := core.TaskThread{
			TaskKey:           act.TaskKey,
			AgentID:           act.TargetAgentID,
			SessionKey:        call.SessionKey,
			SessionID:         call.SessionID,
			ProviderSessionID: call.ProviderSessionID,
			CreatedStep:       step.Step,
			UpdatedStep:       step.Step,
			LastResponse:      call.Response,
		}
		ledger.BindThread(thread)
	}
	return nil
}

// forcedFinish summarizes the last known state for the synthesized finish.
func (o *Orchestrator) forcedFinish(ledger *core.RunLedger) string {
	for i := len(ledger.Steps) - 1; i >= 0; i-- {
		if call := ledger.Steps[i].AgentCall; call != nil && call.Code == 0 && call.Response != "" {
			return fmt.Sprintf("Step budget reached after %d steps. Last agent response from %s: %s",
				len(ledger.Steps), call.TargetAgentID, call.Response)
		}
	}
	return fmt.Sprintf("Step budget reached after %d steps without a conclusive result.", len(ledger.Steps))
}

// cancelRun tags the ledger cancelled, persists what completed so far, and
// propagates the cancellation cause.
func (o *Orchestrator) cancelRun(logger logging.Logger, ledger *core.RunLedger, cause error) (*RunResult, error) {
	ledger.Complete(core.StatusCancelled, "")
	o.persist(logger, ledger)
	logger.Info("run cancelled", "steps", len(ledger.Steps))
	return &RunResult{
		EntryAgentID: ledger.EntryAgentID,
		Status:       core.StatusCancelled,
		Ledger:       ledger,
	}, cause
}

// failRun tags the ledger failed, persists it, and returns the fatal error.
func (o *Orchestrator) failRun(logger logging.Logger, ledger *core.RunLedger, cause error) (*RunResult, error) {
	ledger.Complete(core.StatusFailed, "")
	o.persist(logger, ledger)
	logger.Error("run failed", "steps", len(ledger.Steps), "error", cause)
	return nil, cause
}

// persist saves the ledger, logging instead of failing: mid-run persistence
// is best-effort, the terminal save is the authoritative one.
func (o *Orchestrator) persist(logger logging.Logger, ledger *core.RunLedger) {
	if err := o.opts.Ledgers.Save(ledger); err != nil {
		logger.Warn("ledger save failed", "error", err)
	}
}

// validateAction rejects actions that reference agents outside the roster or
// beyond their declared capabilities, and structurally malformed actions.
// The switch is exhaustive over the sealed action set.
func validateAction(action core.Action, roster *core.Roster) error {
	switch act := action.(type) {
	case core.DelegateAction:
		target, ok := roster.Get(act.TargetAgentID)
		if !ok {
			return fmt.Errorf("delegate to %q: %w", act.TargetAgentID, core.ErrUnknownAgent)
		}
		if !target.CanReceive {
			return fmt.Errorf("delegate to %q: %w", act.TargetAgentID, core.ErrAgentCannotReceive)
		}
		if act.Message == "" {
			return fmt.Errorf("delegate to %q: empty message", act.TargetAgentID)
		}
		return nil
	case core.ReadFileAction:
		if act.Path == "" {
			return fmt.Errorf("read_workspace_file: empty path")
		}
		return nil
	case core.WriteFileAction:
		if act.Path == "" {
			return fmt.Errorf("write_workspace_file: empty path")
		}
		return nil
	case core.InstallSkillAction:
		if act.SkillName == "" {
			return fmt.Errorf("install_skill: empty skill name")
		}
		return nil
	case core.RespondAction, core.FinishAction:
		return nil
	default:
		return fmt.Errorf("unknown action type %T", action)
	}
}
