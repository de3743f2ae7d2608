package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/goatherd/core"
)

// Heuristic is a deterministic rule-based planner. Its policy:
//
//  1. Delegate the user message to the most suitable receiving agent that has
//     not failed yet, preferring individual contributors over managers when
//     lexical evidence ties.
//  2. Once a delegation succeeded, finish with the delegate's response.
//  3. When every candidate failed or none exists, respond to the user with a
//     degraded summary instead of erroring.
//
// The same input state always yields the same decision, which makes it the
// default planner for tests and a dependable fallback when no model planner
// is configured.
type Heuristic struct{}

// NewHeuristic creates a deterministic rule-based planner.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// Decide implements Planner.
func (h *Heuristic) Decide(ctx context.Context, state *RunState) (*Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Terminal: the previous delegation succeeded.
	if last := lastStep(state); last != nil && last.Action.Kind == core.ActionDelegate {
		if last.AgentCall != nil && last.AgentCall.Code == 0 && last.AgentCall.Error == "" {
			return &Decision{
				Rationale: fmt.Sprintf("agent %s answered; task complete", last.AgentCall.TargetAgentID),
				Action:    core.FinishAction{Message: last.AgentCall.Response},
			}, nil
		}
	}

	failed := failedTargets(state)
	target, ok := h.pickTarget(state, failed)
	if !ok {
		return &Decision{
			Rationale: "no capable receiving agent remains",
			Action:    core.RespondAction{Message: degradedSummary(state)},
		}, nil
	}

	return &Decision{
		Rationale: fmt.Sprintf("delegating to %s as the best match for the request", target.AgentID),
		Action: core.DelegateAction{
			TargetAgentID: target.AgentID,
			Message:       state.UserMessage,
			SessionPolicy: core.SessionAuto,
			Mode:          mode(state),
		},
	}, nil
}

// pickTarget selects the receiving agent with the highest token overlap with
// the user message, skipping the entry agent and previously failed targets.
// Ties prefer non-delegating agents, then the smaller agent id.
func (h *Heuristic) pickTarget(state *RunState, failed map[string]bool) (core.AgentDescriptor, bool) {
	tokens := messageTokens(state.UserMessage)

	type scored struct {
		agent core.AgentDescriptor
		score int
	}
	var candidates []scored
	for _, a := range state.Roster.Agents() {
		if !a.CanReceive || a.AgentID == state.EntryAgentID || failed[a.AgentID] {
			continue
		}
		candidates = append(candidates, scored{agent: a, score: overlap(tokens, a)})
	}
	if len(candidates) == 0 {
		return core.AgentDescriptor{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].agent.CanDelegate != candidates[j].agent.CanDelegate {
			return !candidates[i].agent.CanDelegate
		}
		return candidates[i].agent.AgentID < candidates[j].agent.AgentID
	})
	return candidates[0].agent, true
}

func mode(state *RunState) core.DelegationMode {
	if state.Mode == "" {
		return core.ModeDirect
	}
	return state.Mode
}

func lastStep(state *RunState) *core.StepLog {
	if len(state.Steps) == 0 {
		return nil
	}
	return &state.Steps[len(state.Steps)-1]
}

// failedTargets collects agents whose delegation attempts all failed.
func failedTargets(state *RunState) map[string]bool {
	failed := make(map[string]bool)
	for _, s := range state.Steps {
		if s.Action.Kind != core.ActionDelegate || s.AgentCall == nil {
			continue
		}
		if s.AgentCall.Code != 0 || s.AgentCall.Error != "" {
			failed[s.AgentCall.TargetAgentID] = true
		} else {
			delete(failed, s.AgentCall.TargetAgentID)
		}
	}
	return failed
}

func degradedSummary(state *RunState) string {
	attempts := 0
	for _, s := range state.Steps {
		if s.Action.Kind == core.ActionDelegate {
			attempts++
		}
	}
	if attempts == 0 {
		return "No agent is available to handle this request right now."
	}
	return fmt.Sprintf("Unable to complete the request: %d delegation attempt(s) failed.", attempts)
}

func messageTokens(text string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(f) >= 3 {
			out[f] = true
		}
	}
	return out
}

func overlap(tokens map[string]bool, a core.AgentDescriptor) int {
	count := 0
	seen := make(map[string]bool)
	vocab := strings.ToLower(a.Name + " " + a.Description + " " + strings.Join(a.Skills, " "))
	for _, f := range strings.FieldsFunc(vocab, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if tokens[f] && !seen[f] {
			seen[f] = true
			count++
		}
	}
	return count
}
