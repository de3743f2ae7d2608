package routing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/goatherd/core"
)

func testRoster(t *testing.T) *core.Roster {
	t.Helper()
	return core.MustRoster(
		core.AgentDescriptor{
			AgentID: "goat", Name: "goat", Description: "team manager",
			Skills: []string{"coordination"}, CanReceive: true, CanDelegate: true,
		},
		core.AgentDescriptor{
			AgentID: "writer", Name: "writer", Description: "writes prose",
			Skills: []string{"writing", "blog", "posts"}, CanReceive: true,
		},
		core.AgentDescriptor{
			AgentID: "backend", Name: "backend", Description: "internal batch worker",
			CanReceive: false,
		},
	)
}

func TestRoute_ConfidenceWithinUnitInterval(t *testing.T) {
	svc := NewService()
	roster := testRoster(t)

	messages := []string{
		"write a blog post about goats",
		"plan the project and coordinate the team across writing writing writing blog blog posts",
		"",
		"zzzz",
	}
	for _, msg := range messages {
		d := svc.Route(msg, roster, "goat")
		assert.GreaterOrEqual(t, d.Confidence, 0.0, "message %q", msg)
		assert.LessOrEqual(t, d.Confidence, 1.0, "message %q", msg)
		for _, c := range d.Candidates {
			assert.GreaterOrEqual(t, c.Score, 0.0)
			assert.LessOrEqual(t, c.Score, 1.0)
		}
	}
}

func TestRoute_SkillMatchPicksSpecialist(t *testing.T) {
	svc := NewService()
	d := svc.Route("write a blog post about goats", testRoster(t), "goat")

	assert.Equal(t, "writer", d.TargetAgentID)
	assert.Equal(t, "goat", d.EntryAgentID)
	assert.NotEqual(t, ReasonFallback, d.Reason)
}

func TestRoute_OriginalMessagePreservedVerbatim(t *testing.T) {
	svc := NewService()
	msg := "write a blog post about goats"
	d := svc.Route(msg, testRoster(t), "goat")

	assert.Contains(t, d.RewrittenMessage, msg)
}

func TestRoute_FallbackWhenNoSignal(t *testing.T) {
	// A manager-only roster gives a scoped ask no lexical or org-fit signal
	// strong enough to clear the threshold.
	roster := core.MustRoster(
		core.AgentDescriptor{AgentID: "goat", Name: "goat", CanReceive: true, CanDelegate: true},
	)
	svc := NewService()
	d := svc.Route("hello", roster, "goat")

	assert.Equal(t, "goat", d.TargetAgentID)
	assert.Equal(t, ReasonFallback, d.Reason)
	assert.InDelta(t, 0.25, d.Confidence, 1e-9)
	assert.Equal(t, "hello", d.RewrittenMessage, "fallback must not annotate the message")
}

func TestRouteFrom_UnknownRequestedAgentDegradesToDefault(t *testing.T) {
	svc := NewService()
	roster := testRoster(t)

	d := svc.RouteFrom("ghost", "write a blog post", roster, "goat")
	assert.Equal(t, "goat", d.EntryAgentID)

	// A known but non-receiving agent degrades the same way.
	d = svc.RouteFrom("backend", "write a blog post", roster, "goat")
	assert.Equal(t, "goat", d.EntryAgentID)

	d = svc.RouteFrom("writer", "write a blog post", roster, "goat")
	assert.Equal(t, "writer", d.EntryAgentID)
}

func TestRoute_NonReceivingAgentsNeverCandidates(t *testing.T) {
	svc := NewService()
	d := svc.Route("internal batch worker", testRoster(t), "goat")

	for _, c := range d.Candidates {
		assert.NotEqual(t, "backend", c.AgentID)
	}
	assert.NotEqual(t, "backend", d.TargetAgentID)
}

func TestRoute_DeterministicTieBreak(t *testing.T) {
	roster := core.MustRoster(
		core.AgentDescriptor{AgentID: "beta", Name: "beta", Skills: []string{"data"}, CanReceive: true},
		core.AgentDescriptor{AgentID: "alpha", Name: "alpha", Skills: []string{"data"}, CanReceive: true},
	)
	svc := NewService()

	for i := 0; i < 10; i++ {
		d := svc.Route("analyze data", roster, "alpha")
		// alpha carries the continuity bonus as default entry; strip that by
		// entering at a third id is impossible here, so assert on candidate
		// ordering below the top instead.
		require.Len(t, d.Candidates, 2)
	}

	// With no continuity in play the lexicographically smaller id wins.
	d := svc.RouteFrom("", "analyze data", core.MustRoster(
		core.AgentDescriptor{AgentID: "beta", Name: "beta", Skills: []string{"data"}, CanReceive: true},
		core.AgentDescriptor{AgentID: "alpha", Name: "alpha", Skills: []string{"data"}, CanReceive: true},
		core.AgentDescriptor{AgentID: "entry", Name: "entry", CanReceive: true, CanDelegate: true},
	), "entry")
	assert.Equal(t, "alpha", d.TargetAgentID)
}

func TestRoute_ManagerPreferredForMultiStepAsk(t *testing.T) {
	svc := NewService()
	d := svc.Route("plan the project and coordinate the team", testRoster(t), "goat")

	assert.Equal(t, "goat", d.TargetAgentID)
	assert.True(t, strings.Contains(d.Reason, "manager"), "reason %q", d.Reason)
}
