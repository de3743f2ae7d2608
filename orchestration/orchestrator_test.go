package orchestration

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/goatherd/core"
	"github.com/hupe1980/goatherd/internal/testutil"
	"github.com/hupe1980/goatherd/planner"
	"github.com/hupe1980/goatherd/workspace"
)

// loopPlanner proposes the same action forever, for budget exhaustion tests.
type loopPlanner struct {
	action core.Action
}

func (p *loopPlanner) Decide(ctx context.Context, state *planner.RunState) (*planner.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &planner.Decision{Rationale: "looping", Action: p.action}, nil
}

func blogRoster(t *testing.T) *core.Roster {
	t.Helper()
	return testutil.NewRosterBuilder().
		Manager("goat").
		Worker("writer", "writing", "blog", "posts").
		Build()
}

func TestExecute_BlogPostScenario(t *testing.T) {
	prov := testutil.NewScriptedProvider("test").
		Respond("Here is your blog post about goats.")
	ledgers := NewInMemoryLedgerStore()

	orc := New(func(o *Options) {
		o.Providers = core.ProviderMap{"test": prov}
		o.Ledgers = ledgers
	})

	result, err := orc.Run(context.Background(), "goat", "write a blog post about goats", blogRoster(t))
	require.NoError(t, err)

	assert.Equal(t, core.StatusCompleted, result.Status)
	assert.Equal(t, "Here is your blog post about goats.", result.FinalMessage)

	// One delegation plus the finish.
	require.Len(t, result.Ledger.Steps, 2)
	assert.Equal(t, core.ActionDelegate, result.Ledger.Steps[0].Action.Kind)
	assert.Equal(t, core.ActionFinish, result.Ledger.Steps[1].Action.Kind)

	// Session graph: entry and delegate nodes, exactly one edge goat -> writer.
	require.Len(t, result.Ledger.SessionGraph.Edges, 1)
	edge := result.Ledger.SessionGraph.Edges[0]
	assert.Equal(t, "goat", edge.From)
	assert.Equal(t, "writer", edge.To)
	require.Len(t, result.Ledger.SessionGraph.Nodes, 2)

	// The delegation carried a resolved session.
	call := result.Ledger.Steps[0].AgentCall
	require.NotNil(t, call)
	assert.Equal(t, "writer", call.TargetAgentID)
	assert.NotEmpty(t, call.SessionID)
	assert.NotEmpty(t, call.SessionKey)
}

func TestExecute_StepNumbersContiguous(t *testing.T) {
	prov := testutil.NewScriptedProvider("test").Respond("done")
	orc := New(func(o *Options) {
		o.Providers = core.ProviderMap{"test": prov}
	})

	result, err := orc.Run(context.Background(), "goat", "write a blog post about goats", blogRoster(t))
	require.NoError(t, err)

	for i, s := range result.Ledger.Steps {
		assert.Equal(t, i+1, s.Step)
	}
}

func TestExecute_BudgetExhaustionDegrades(t *testing.T) {
	orc := New(func(o *Options) {
		o.Planner = &loopPlanner{action: core.ReadFileAction{Path: "missing.md"}}
		o.MaxSteps = 3
	})

	result, err := orc.Run(context.Background(), "goat", "spin forever", blogRoster(t))
	require.NoError(t, err, "budget exhaustion is not an error")

	assert.Equal(t, core.StatusDegraded, result.Status)
	assert.NotEmpty(t, result.FinalMessage)
	assert.Len(t, result.Ledger.Steps, 3)
	assert.Equal(t, core.StatusDegraded, result.Ledger.Status)
}

func TestExecute_ForcedFinishMentionsLastResponse(t *testing.T) {
	prov := testutil.NewScriptedProvider("test").Respond("partial draft")
	orc := New(func(o *Options) {
		o.Planner = &loopPlanner{action: core.DelegateAction{
			TargetAgentID: "writer",
			Message:       "keep going",
			SessionPolicy: core.SessionAuto,
		}}
		o.Providers = core.ProviderMap{"test": prov}
		o.MaxSteps = 2
	})

	result, err := orc.Run(context.Background(), "goat", "never finishes", blogRoster(t))
	require.NoError(t, err)

	assert.Equal(t, core.StatusDegraded, result.Status)
	assert.Contains(t, result.FinalMessage, "partial draft")
}

func TestExecute_PlannerErrorIsFatal(t *testing.T) {
	ledgers := NewInMemoryLedgerStore()
	orc := New(func(o *Options) {
		o.Planner = testutil.NewScriptedPlanner().ThenError(fmt.Errorf("model returned garbage"))
		o.Ledgers = ledgers
	})

	result, err := orc.Run(context.Background(), "goat", "hello", blogRoster(t))
	require.Error(t, err)
	assert.Nil(t, result)

	var perr *core.PlanningError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, perr.Step)

	// The failure is persisted for post-mortem inspection.
	ids, err := ledgers.List()
	require.NoError(t, err)
	require.Len(t, ids, 1)
	ledger, err := ledgers.Load(ids[0])
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, ledger.Status)
}

func TestExecute_UnauthorizedActionIsFatal(t *testing.T) {
	orc := New(func(o *Options) {
		o.Planner = testutil.NewScriptedPlanner().Then(core.DelegateAction{
			TargetAgentID: "ghost",
			Message:       "hi",
		})
	})

	_, err := orc.Run(context.Background(), "goat", "hello", blogRoster(t))
	require.Error(t, err)

	var perr *core.PlanningError
	require.True(t, errors.As(err, &perr))
	assert.True(t, errors.Is(err, core.ErrUnknownAgent))
}

func TestExecute_ProviderFailureIsRecoverable(t *testing.T) {
	prov := testutil.NewScriptedProvider("test").Fail(1, "tool crashed")
	orc := New(func(o *Options) {
		o.Providers = core.ProviderMap{"test": prov}
	})

	// The heuristic delegates to writer, sees the failure, and responds with a
	// degraded summary instead of erroring.
	result, err := orc.Run(context.Background(), "goat", "write a blog post about goats", blogRoster(t))
	require.NoError(t, err)

	assert.Equal(t, core.StatusCompleted, result.Status)
	require.Len(t, result.Ledger.Steps, 2)

	call := result.Ledger.Steps[0].AgentCall
	require.NotNil(t, call)
	assert.Equal(t, 1, call.Code)
	assert.Equal(t, "tool crashed", call.Error)
	assert.Equal(t, core.ActionRespond, result.Ledger.Steps[1].Action.Kind)
}

func TestExecute_ProviderTransportErrorIsRecoverable(t *testing.T) {
	prov := testutil.NewScriptedProvider("test").Error(fmt.Errorf("connection refused"))
	orc := New(func(o *Options) {
		o.Providers = core.ProviderMap{"test": prov}
	})

	result, err := orc.Run(context.Background(), "goat", "write a blog post about goats", blogRoster(t))
	require.NoError(t, err)

	call := result.Ledger.Steps[0].AgentCall
	require.NotNil(t, call)
	assert.Equal(t, -1, call.Code)
	assert.Contains(t, call.Error, "connection refused")
}

func TestExecute_UnknownProviderIsFatal(t *testing.T) {
	orc := New() // empty provider registry

	_, err := orc.Run(context.Background(), "goat", "write a blog post about goats", blogRoster(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownProvider))
}

func TestExecute_UnknownEntryAgent(t *testing.T) {
	orc := New()

	_, err := orc.Run(context.Background(), "ghost", "hello", blogRoster(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownAgent))
}

func TestExecute_CancellationTagsLedger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ledgers := NewInMemoryLedgerStore()
	orc := New(func(o *Options) {
		o.Ledgers = ledgers
	})

	result, err := orc.Run(ctx, "goat", "hello", blogRoster(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, result)
	assert.Equal(t, core.StatusCancelled, result.Status)

	ids, lerr := ledgers.List()
	require.NoError(t, lerr)
	require.Len(t, ids, 1)
	ledger, lerr := ledgers.Load(ids[0])
	require.NoError(t, lerr)
	assert.Equal(t, core.StatusCancelled, ledger.Status)
}

func TestExecute_WorkspaceActions(t *testing.T) {
	ws := workspace.NewInMemoryStore()
	orc := New(func(o *Options) {
		o.Workspace = ws
		o.Planner = testutil.NewScriptedPlanner().
			Then(core.WriteFileAction{Path: "draft.md", Content: "# Draft"}).
			Then(core.ReadFileAction{Path: "draft.md"}).
			Then(core.FinishAction{Message: "done"})
	})

	result, err := orc.Run(context.Background(), "goat", "work with files", blogRoster(t))
	require.NoError(t, err)

	require.Len(t, result.Ledger.Steps, 3)
	write := result.Ledger.Steps[0]
	require.NotNil(t, write.ArtifactIO)
	assert.Equal(t, "write", write.ArtifactIO.Op)
	assert.Equal(t, "draft.md", write.ArtifactIO.Path)

	read := result.Ledger.Steps[1]
	require.NotNil(t, read.ArtifactIO)
	assert.Equal(t, "read", read.ArtifactIO.Op)

	data, err := ws.Read(context.Background(), "draft.md")
	require.NoError(t, err)
	assert.Equal(t, "# Draft", string(data))
}

func TestExecute_WorkspaceReadFailureContinues(t *testing.T) {
	orc := New(func(o *Options) {
		o.Planner = testutil.NewScriptedPlanner().
			Then(core.ReadFileAction{Path: "absent.md"}).
			Then(core.FinishAction{Message: "done"})
	})

	result, err := orc.Run(context.Background(), "goat", "read something", blogRoster(t))
	require.NoError(t, err)

	assert.Equal(t, core.StatusCompleted, result.Status)
	assert.Contains(t, result.Ledger.Steps[0].Note, "read failed")
}

func TestExecute_InstallSkillAction(t *testing.T) {
	orc := New(func(o *Options) {
		o.Planner = testutil.NewScriptedPlanner().
			Then(core.InstallSkillAction{SkillName: "search", Source: "registry://search"}).
			Then(core.FinishAction{Message: "done"})
	})

	result, err := orc.Run(context.Background(), "goat", "install a skill", blogRoster(t))
	require.NoError(t, err)

	assert.Equal(t, core.ActionInstallSkill, result.Ledger.Steps[0].Action.Kind)
	assert.NotEmpty(t, result.Ledger.Steps[0].Note)
}

func TestExecute_TaskThreadPinsSession(t *testing.T) {
	prov := testutil.NewScriptedProvider("test").
		Result(&core.ExecutionResult{Stdout: "first", ProviderSessionID: "ps-1"}).
		Result(&core.ExecutionResult{Stdout: "second", ProviderSessionID: "ps-1"})

	orc := New(func(o *Options) {
		o.Providers = core.ProviderMap{"test": prov}
		o.Planner = testutil.NewScriptedPlanner().
			Then(core.DelegateAction{TargetAgentID: "writer", Message: "start", TaskKey: "draft", SessionPolicy: core.SessionAuto}).
			Then(core.DelegateAction{TargetAgentID: "writer", Message: "continue", TaskKey: "draft", SessionPolicy: core.SessionAuto}).
			Then(core.FinishAction{Message: "done"})
	})

	result, err := orc.Run(context.Background(), "goat", "threaded work", blogRoster(t))
	require.NoError(t, err)

	thread, ok := result.Ledger.Thread("draft")
	require.True(t, ok)
	assert.Equal(t, "writer", thread.AgentID)
	assert.Equal(t, 1, thread.CreatedStep)
	assert.Equal(t, 2, thread.UpdatedStep)
	assert.Equal(t, "second", thread.LastResponse)

	// Both delegations resolved to the same session, and the second invoke
	// carried the provider session from the first.
	first := result.Ledger.Steps[0].AgentCall
	second := result.Ledger.Steps[1].AgentCall
	assert.Equal(t, first.SessionID, second.SessionID)

	invokes := prov.Invokes()
	require.Len(t, invokes, 2)
	assert.Empty(t, invokes[0].ProviderSessionID)
	assert.Equal(t, "ps-1", invokes[1].ProviderSessionID)
}

func TestExecute_LedgerPersistenceIdempotent(t *testing.T) {
	prov := testutil.NewScriptedProvider("test").Respond("done")
	ledgers := NewInMemoryLedgerStore()
	orc := New(func(o *Options) {
		o.Providers = core.ProviderMap{"test": prov}
		o.Ledgers = ledgers
	})

	result, err := orc.Run(context.Background(), "goat", "write a blog post about goats", blogRoster(t))
	require.NoError(t, err)

	// Saving the same terminal ledger again must not duplicate steps.
	require.NoError(t, ledgers.Save(result.Ledger))

	reloaded, err := ledgers.Load(result.Ledger.RunID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Steps, len(result.Ledger.Steps))
	for i, s := range reloaded.Steps {
		assert.Equal(t, i+1, s.Step)
	}
	assert.Equal(t, core.StatusCompleted, reloaded.Status)
}

func TestExecute_SessionRefDefaultsToRunID(t *testing.T) {
	prov := testutil.NewScriptedProvider("test").Respond("done")
	orc := New(func(o *Options) {
		o.Providers = core.ProviderMap{"test": prov}
	})

	result, err := orc.Execute(context.Background(), RunRequest{
		EntryAgentID: "goat",
		UserMessage:  "write a blog post about goats",
		Roster:       blogRoster(t),
	})
	require.NoError(t, err)

	call := result.Ledger.Steps[0].AgentCall
	require.NotNil(t, call)
	assert.Equal(t, result.Ledger.RunID, call.SessionKey)
}
