package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/goatherd/core"
	"github.com/hupe1980/goatherd/model"
)

// fixedModel returns the same completion regardless of the prompt.
type fixedModel struct {
	text string
	err  error
}

func (m *fixedModel) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &model.Response{Text: m.text}, nil
}

func (m *fixedModel) Info() model.Info { return model.Info{Name: "fixed", Provider: "mock"} }

func TestModelPlanner_ParsesDecision(t *testing.T) {
	p := NewModelPlanner(&fixedModel{text: `{"rationale":"writer fits","action":{"kind":"delegate_to_agent","target_agent_id":"writer","message":"draft it"}}`})

	d, err := p.Decide(context.Background(), &RunState{
		UserMessage:  "write a blog post",
		EntryAgentID: "goat",
		Roster:       blogRoster(t),
		MaxSteps:     12,
	})
	require.NoError(t, err)

	delegate, ok := d.Action.(core.DelegateAction)
	require.True(t, ok)
	assert.Equal(t, "writer", delegate.TargetAgentID)
	assert.Equal(t, "writer fits", d.Rationale)
	assert.NotEmpty(t, d.Raw)
}

func TestModelPlanner_StripsCodeFences(t *testing.T) {
	out, err := parsePlannerOutput("```json\n{\"rationale\":\"done\",\"action\":{\"kind\":\"finish\",\"message\":\"bye\"}}\n```")
	require.NoError(t, err)
	assert.Equal(t, core.ActionFinish, out.Action.Kind)

	out, err = parsePlannerOutput("```\n{\"rationale\":\"done\",\"action\":{\"kind\":\"finish\"}}\n```")
	require.NoError(t, err)
	assert.Equal(t, core.ActionFinish, out.Action.Kind)
}

func TestModelPlanner_MalformedOutputIsError(t *testing.T) {
	cases := []string{
		"not json at all",
		`{"rationale":"missing action"}`,
		`{"rationale":"bad kind","action":{"kind":"launch_rocket"}}`,
	}
	for _, text := range cases {
		p := NewModelPlanner(&fixedModel{text: text})
		_, err := p.Decide(context.Background(), &RunState{
			UserMessage:  "hello",
			EntryAgentID: "goat",
			Roster:       blogRoster(t),
			MaxSteps:     12,
		})
		assert.Error(t, err, "output %q", text)
	}
}

func TestModelPlanner_PromptsCarryRosterAndBudget(t *testing.T) {
	p := NewModelPlanner(&fixedModel{text: `{"rationale":"r","action":{"kind":"finish"}}`})
	state := &RunState{
		UserMessage:  "write a blog post",
		EntryAgentID: "goat",
		Roster:       blogRoster(t),
		MaxSteps:     12,
		Steps: []core.StepLog{{
			Step:      1,
			Action:    core.ActionRecord{Kind: core.ActionDelegate, TargetAgentID: "writer"},
			AgentCall: &core.AgentCall{TargetAgentID: "writer", Response: "draft done"},
		}},
	}

	system := p.systemPrompt(state)
	assert.Contains(t, system, "delegate_to_agent")
	assert.Contains(t, system, "writer")
	assert.Contains(t, system, "can_delegate=true")

	user := p.userPrompt(state)
	assert.Contains(t, user, "write a blog post")
	assert.Contains(t, user, "draft done")
	assert.Contains(t, user, "Steps remaining in budget: 11")
}
