package planner

import (
	"context"

	"github.com/hupe1980/goatherd/core"
)

// RunState is the read-only view of a run handed to the planner before each
// step.
type RunState struct {
	// UserMessage is the original message that started the run.
	UserMessage string

	// EntryAgentID is the agent the run entered at; it is the delegating
	// side of every first-hop delegation.
	EntryAgentID string

	// Roster is the agent roster supplied for the run. The planner must not
	// reference an agent id absent from it.
	Roster *core.Roster

	// Steps is the step log so far, oldest first.
	Steps []core.StepLog

	// Threads are the active task threads bound during this run.
	Threads []core.TaskThread

	// MaxSteps is the run's step budget. The budget is enforced by the
	// orchestrator; it is exposed so planners can wind down early.
	MaxSteps int

	// Mode is the collaboration mode requested for the run.
	Mode core.DelegationMode
}

// Decision is the planner's output for one step.
type Decision struct {
	// Rationale is a short human-readable justification for the action.
	Rationale string

	// Action is the single chosen action.
	Action core.Action

	// Raw preserves the unparsed planner output for the ledger, when the
	// implementation has one (model-backed planners).
	Raw string
}

// Planner proposes the next action for a run. Returning an error signals a
// planning failure, which is fatal to the run; transient conditions must be
// resolved inside the implementation or expressed as an action.
type Planner interface {
	Decide(ctx context.Context, state *RunState) (*Decision, error)
}
