package testutil

import (
	"github.com/hupe1980/goatherd/core"
)

// RosterBuilder provides a fluent helper for constructing rosters in tests.
// Example:
//
//	roster := NewRosterBuilder().Manager("goat").Worker("writer", "writing", "blog").Build()
//
// Chain only the agents you need; every agent can receive by default.
type RosterBuilder struct {
	agents []core.AgentDescriptor
}

// NewRosterBuilder creates an empty builder.
func NewRosterBuilder() *RosterBuilder { return &RosterBuilder{} }

// Manager adds a delegating agent with the given id (chainable).
func (b *RosterBuilder) Manager(id string, skills ...string) *RosterBuilder {
	b.agents = append(b.agents, core.AgentDescriptor{
		AgentID:     id,
		Name:        id,
		ProviderID:  "test",
		Skills:      skills,
		CanReceive:  true,
		CanDelegate: true,
	})
	return b
}

// Worker adds a non-delegating agent with the given id and skills (chainable).
func (b *RosterBuilder) Worker(id string, skills ...string) *RosterBuilder {
	b.agents = append(b.agents, core.AgentDescriptor{
		AgentID:    id,
		Name:       id,
		ProviderID: "test",
		Skills:     skills,
		CanReceive: true,
	})
	return b
}

// Agent adds a fully specified descriptor (chainable).
func (b *RosterBuilder) Agent(a core.AgentDescriptor) *RosterBuilder {
	b.agents = append(b.agents, a)
	return b
}

// Build returns the roster, panicking on invalid descriptors.
func (b *RosterBuilder) Build() *core.Roster {
	return core.MustRoster(b.agents...)
}
