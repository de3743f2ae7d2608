package core

import "fmt"

// AgentDescriptor is an immutable snapshot of one agent used for a single
// routing / planning pass. It is owned by the caller and read-only to the
// core; the orchestrator never mutates descriptors.
type AgentDescriptor struct {
	AgentID     string   `json:"agent_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ProviderID  string   `json:"provider_id"`
	Skills      []string `json:"skills,omitempty"`
	CanReceive  bool     `json:"can_receive"`
	CanDelegate bool     `json:"can_delegate"`
}

// Roster is the set of agent descriptors supplied for one run. Lookup is by
// AgentID; order is preserved for deterministic iteration.
type Roster struct {
	agents []AgentDescriptor
	byID   map[string]int
}

// NewRoster builds a roster from descriptors. Duplicate agent ids are
// rejected so every id referenced by a step, edge or node resolves to exactly
// one descriptor.
func NewRoster(agents ...AgentDescriptor) (*Roster, error) {
	r := &Roster{agents: make([]AgentDescriptor, 0, len(agents)), byID: make(map[string]int, len(agents))}
	for _, a := range agents {
		if a.AgentID == "" {
			return nil, fmt.Errorf("roster: agent with empty id")
		}
		if _, exists := r.byID[a.AgentID]; exists {
			return nil, fmt.Errorf("roster: duplicate agent id %q", a.AgentID)
		}
		r.byID[a.AgentID] = len(r.agents)
		r.agents = append(r.agents, a)
	}
	return r, nil
}

// MustRoster is a NewRoster variant that panics on error. Intended for tests
// and static wiring where the roster is known valid.
func MustRoster(agents ...AgentDescriptor) *Roster {
	r, err := NewRoster(agents...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the descriptor for the given agent id.
func (r *Roster) Get(agentID string) (AgentDescriptor, bool) {
	i, ok := r.byID[agentID]
	if !ok {
		return AgentDescriptor{}, false
	}
	return r.agents[i], true
}

// Contains reports whether the roster has a descriptor for the agent id.
func (r *Roster) Contains(agentID string) bool {
	_, ok := r.byID[agentID]
	return ok
}

// Agents returns a defensive copy of the descriptors in insertion order.
func (r *Roster) Agents() []AgentDescriptor {
	out := make([]AgentDescriptor, len(r.agents))
	copy(out, r.agents)
	return out
}

// Len returns the number of agents in the roster.
func (r *Roster) Len() int { return len(r.agents) }
