package core

// RoutingCandidate is one scored agent considered during routing. Produced
// fresh per routing call; not persisted.
type RoutingCandidate struct {
	AgentID   string  `json:"agent_id"`
	AgentName string  `json:"agent_name"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

// RoutingDecision is the immutable outcome of one routing pass.
//
// Contract:
//   - Confidence is always within [0,1]
//   - RewrittenMessage contains the original user message verbatim as a substring
//   - Reason is "fallback" when no candidate cleared the minimum threshold
type RoutingDecision struct {
	EntryAgentID     string             `json:"entry_agent_id"`
	TargetAgentID    string             `json:"target_agent_id"`
	Confidence       float64            `json:"confidence"`
	Reason           string             `json:"reason"`
	RewrittenMessage string             `json:"rewritten_message"`
	Candidates       []RoutingCandidate `json:"candidates"`
}
