package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/goatherd/core"
	"github.com/hupe1980/goatherd/logging"
	"github.com/hupe1980/goatherd/model"
)

// ModelPlannerOptions configures a ModelPlanner.
type ModelPlannerOptions struct {
	// Logger defaults to NoOp.
	Logger logging.Logger

	// MaxHistorySteps bounds how many trailing steps are summarized into the
	// prompt. Zero means all.
	MaxHistorySteps int
}

// ModelPlanner asks a text model for the next action. The model is prompted
// to return a single JSON object; anything that does not parse into a valid
// action of the closed vocabulary is an error, which the orchestrator treats
// as fatal to the run.
type ModelPlanner struct {
	model model.Model
	opts  ModelPlannerOptions
}

// NewModelPlanner creates a planner backed by the given model.
func NewModelPlanner(m model.Model, optFns ...func(o *ModelPlannerOptions)) *ModelPlanner {
	opts := ModelPlannerOptions{Logger: logging.NoOpLogger{}, MaxHistorySteps: 10}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelPlanner{model: m, opts: opts}
}

// plannerOutput is the JSON shape the model is instructed to produce.
type plannerOutput struct {
	Rationale string            `json:"rationale"`
	Action    core.ActionRecord `json:"action"`
}

// Decide implements Planner.
func (p *ModelPlanner) Decide(ctx context.Context, state *RunState) (*Decision, error) {
	resp, err := p.model.Generate(ctx, model.Request{
		System:   p.systemPrompt(state),
		Messages: []model.Message{{Role: "user", Text: p.userPrompt(state)}},
	})
	if err != nil {
		return nil, fmt.Errorf("model planner: generate: %w", err)
	}

	out, err := parsePlannerOutput(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("model planner: %w", err)
	}

	action, err := core.ActionFromRecord(out.Action)
	if err != nil {
		return nil, fmt.Errorf("model planner: %w", err)
	}

	p.opts.Logger.Debug("planner decided", "kind", action.Kind(), "rationale", out.Rationale)

	return &Decision{Rationale: out.Rationale, Action: action, Raw: resp.Text}, nil
}

// parsePlannerOutput strips optional markdown code fences and decodes the
// JSON decision.
func parsePlannerOutput(content string) (*plannerOutput, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var out plannerOutput
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("invalid decision JSON: %w", err)
	}
	if out.Action.Kind == "" {
		return nil, fmt.Errorf("decision missing action kind")
	}
	return &out, nil
}

func (p *ModelPlanner) systemPrompt(state *RunState) string {
	var sb strings.Builder
	sb.WriteString("You are the orchestration planner for a hierarchy of agents.\n")
	sb.WriteString("Each turn, choose EXACTLY ONE next action and return ONLY JSON:\n")
	sb.WriteString(`{"rationale":"...","action":{"kind":"...", ...}}` + "\n\n")
	sb.WriteString("Action kinds and their fields:\n")
	sb.WriteString(`- delegate_to_agent: target_agent_id, message, optional task_key, session_policy (auto|new|reuse), mode (direct|artifacts|hybrid)` + "\n")
	sb.WriteString(`- read_workspace_file: path` + "\n")
	sb.WriteString(`- write_workspace_file: path, content` + "\n")
	sb.WriteString(`- install_skill: skill_name, source` + "\n")
	sb.WriteString(`- respond_user: message` + "\n")
	sb.WriteString(`- finish: message` + "\n\n")
	sb.WriteString("Rules: delegate while the task is incomplete and a capable agent exists; ")
	sb.WriteString("respond_user or finish once the need is satisfied or cannot be resolved further; ")
	sb.WriteString("use workspace files when the mode is artifacts or hybrid. ")
	sb.WriteString("Never reference an agent id that is not in the roster.\n\n")
	sb.WriteString("Roster:\n")
	for _, a := range state.Roster.Agents() {
		sb.WriteString(fmt.Sprintf("- %s (%s): %s [can_receive=%t can_delegate=%t", a.AgentID, a.Name, a.Description, a.CanReceive, a.CanDelegate))
		if len(a.Skills) > 0 {
			sb.WriteString(" skills=" + strings.Join(a.Skills, ","))
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}

func (p *ModelPlanner) userPrompt(state *RunState) string {
	var sb strings.Builder
	sb.WriteString("User message:\n")
	sb.WriteString(state.UserMessage)
	sb.WriteString("\n\n")

	steps := state.Steps
	if p.opts.MaxHistorySteps > 0 && len(steps) > p.opts.MaxHistorySteps {
		steps = steps[len(steps)-p.opts.MaxHistorySteps:]
	}
	if len(steps) == 0 {
		sb.WriteString("No steps taken yet.\n")
	} else {
		sb.WriteString("Steps so far:\n")
		for _, s := range steps {
			sb.WriteString(fmt.Sprintf("%d. %s", s.Step, s.Action.Kind))
			if s.AgentCall != nil {
				outcome := "ok"
				if s.AgentCall.Code != 0 || s.AgentCall.Error != "" {
					outcome = "failed"
				}
				sb.WriteString(fmt.Sprintf(" -> %s (%s): %s", s.AgentCall.TargetAgentID, outcome, truncate(s.AgentCall.Response, 400)))
			}
			if s.ArtifactIO != nil {
				sb.WriteString(fmt.Sprintf(" %s %s", s.ArtifactIO.Op, s.ArtifactIO.Path))
			}
			sb.WriteString("\n")
		}
	}

	if len(state.Threads) > 0 {
		sb.WriteString("\nActive task threads:\n")
		for _, t := range state.Threads {
			sb.WriteString(fmt.Sprintf("- %s bound to %s (last: %s)\n", t.TaskKey, t.AgentID, truncate(t.LastResponse, 200)))
		}
	}

	remaining := state.MaxSteps - len(state.Steps)
	sb.WriteString(fmt.Sprintf("\nSteps remaining in budget: %d\n", remaining))
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
