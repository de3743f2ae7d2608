package core

import (
	"time"

	"github.com/google/uuid"
)

// LedgerSchemaVersion is the persisted schema version of RunLedger.
const LedgerSchemaVersion = 2

// RunStatus classifies how a run ended.
type RunStatus string

const (
	// StatusRunning marks a ledger whose run has not terminated yet.
	StatusRunning RunStatus = "running"
	// StatusCompleted marks normal termination via respond/finish.
	StatusCompleted RunStatus = "completed"
	// StatusDegraded marks step-budget exhaustion with a synthesized finish.
	StatusDegraded RunStatus = "degraded"
	// StatusFailed marks a fatal planning or storage error.
	StatusFailed RunStatus = "failed"
	// StatusCancelled marks cooperative cancellation mid-run.
	StatusCancelled RunStatus = "cancelled"
)

// AgentCall records one provider invocation performed while executing a
// delegation step.
type AgentCall struct {
	TargetAgentID     string `json:"target_agent_id"`
	ProviderID        string `json:"provider_id"`
	Request           string `json:"request"`
	Response          string `json:"response,omitempty"`
	Code              int    `json:"code"`
	Error             string `json:"error,omitempty"`
	SessionKey        string `json:"session_key,omitempty"`
	SessionID         string `json:"session_id,omitempty"`
	ProviderSessionID string `json:"provider_session_id,omitempty"`
}

// ArtifactIO records a workspace file read or write performed by a step.
type ArtifactIO struct {
	Op   string `json:"op"` // "read" or "write"
	Path string `json:"path"`
}

// StepLog is the append-only record of one orchestration step. Never mutated
// after being written to the ledger.
type StepLog struct {
	Step       int          `json:"step"` // 1-based, contiguous
	Timestamp  time.Time    `json:"timestamp"`
	RawPlanner string       `json:"raw_planner,omitempty"`
	Rationale  string       `json:"rationale"`
	Action     ActionRecord `json:"action"`
	AgentCall  *AgentCall   `json:"agent_call,omitempty"`
	ArtifactIO *ArtifactIO  `json:"artifact_io,omitempty"`
	Note       string       `json:"note,omitempty"`
}

// GraphNode is one agent touched during a run, with its provider and session
// bindings at the time it entered the graph.
type GraphNode struct {
	AgentID    string `json:"agent_id"`
	ProviderID string `json:"provider_id,omitempty"`
	SessionKey string `json:"session_key,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
}

// GraphEdge is one delegation from one agent to another.
type GraphEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// SessionGraph captures the agents touched by a run and the delegations
// between them. Nodes always contain the entry agent, even when no
// delegation occurs.
type SessionGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// TaskThread binds a caller-chosen task key to a specific agent + session
// across multiple steps of the same run, so the planner can continue a
// delegated conversation instead of starting fresh each time.
type TaskThread struct {
	TaskKey           string `json:"task_key"`
	AgentID           string `json:"agent_id"`
	SessionKey        string `json:"session_key,omitempty"`
	SessionID         string `json:"session_id,omitempty"`
	ProviderSessionID string `json:"provider_session_id,omitempty"`
	CreatedStep       int    `json:"created_step"`
	UpdatedStep       int    `json:"updated_step"`
	LastResponse      string `json:"last_response,omitempty"`
}

// RunLedger is the durable record of one orchestration run. It is owned and
// written exclusively by the orchestrator; steps are append-only and step
// numbers form the contiguous sequence 1..N.
type RunLedger struct {
	SchemaVersion int          `json:"schema_version"`
	RunID         string       `json:"run_id"`
	StartedAt     time.Time    `json:"started_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	EntryAgentID  string       `json:"entry_agent_id"`
	UserMessage   string       `json:"user_message"`
	FinalMessage  string       `json:"final_message,omitempty"`
	Status        RunStatus    `json:"status"`
	Steps         []StepLog    `json:"steps"`
	SessionGraph  SessionGraph `json:"session_graph"`
	TaskThreads   []TaskThread `json:"task_threads,omitempty"`
}

// NewRunLedger initializes a ledger for a run entering at the given agent.
// The session graph is seeded with the entry agent node.
func NewRunLedger(entryAgentID, userMessage string) *RunLedger {
	return &RunLedger{
		SchemaVersion: LedgerSchemaVersion,
		RunID:         uuid.NewString(),
		StartedAt:     time.Now().UTC(),
		EntryAgentID:  entryAgentID,
		UserMessage:   userMessage,
		Status:        StatusRunning,
		Steps:         []StepLog{},
		SessionGraph: SessionGraph{
			Nodes: []GraphNode{{AgentID: entryAgentID}},
			Edges: []GraphEdge{},
		},
	}
}

// NextStep returns the step number the next appended step must carry.
func (l *RunLedger) NextStep() int { return len(l.Steps) + 1 }

// AppendStep appends a step, keeping the 1..N contiguity invariant.
// Appending a step whose number is already present is a no-op, which makes
// crash-retry persistence idempotent; a gap beyond NextStep is rejected.
func (l *RunLedger) AppendStep(step StepLog) bool {
	if step.Step <= len(l.Steps) {
		return false // already recorded
	}
	if step.Step != l.NextStep() {
		return false
	}
	l.Steps = append(l.Steps, step)
	return true
}

// TouchNode adds the node for agentID if absent, or refreshes its provider /
// session bindings when already present.
func (l *RunLedger) TouchNode(node GraphNode) {
	for i := range l.SessionGraph.Nodes {
		if l.SessionGraph.Nodes[i].AgentID == node.AgentID {
			if node.ProviderID != "" {
				l.SessionGraph.Nodes[i].ProviderID = node.ProviderID
			}
			if node.SessionKey != "" {
				l.SessionGraph.Nodes[i].SessionKey = node.SessionKey
			}
			if node.SessionID != "" {
				l.SessionGraph.Nodes[i].SessionID = node.SessionID
			}
			return
		}
	}
	l.SessionGraph.Nodes = append(l.SessionGraph.Nodes, node)
}

// TouchEdge adds a delegation edge if the (from, to) pair is new, otherwise
// refreshes its reason.
func (l *RunLedger) TouchEdge(edge GraphEdge) {
	for i := range l.SessionGraph.Edges {
		if l.SessionGraph.Edges[i].From == edge.From && l.SessionGraph.Edges[i].To == edge.To {
			if edge.Reason != "" {
				l.SessionGraph.Edges[i].Reason = edge.Reason
			}
			return
		}
	}
	l.SessionGraph.Edges = append(l.SessionGraph.Edges, edge)
}

// Thread returns the task thread bound to the key, if any.
func (l *RunLedger) Thread(taskKey string) (*TaskThread, bool) {
	for i := range l.TaskThreads {
		if l.TaskThreads[i].TaskKey == taskKey {
			return &l.TaskThreads[i], true
		}
	}
	return nil, false
}

// BindThread creates or updates the task thread for the key.
func (l *RunLedger) BindThread(t TaskThread) {
	for i := range l.TaskThreads {
		if l.TaskThreads[i].TaskKey == t.TaskKey {
			t.CreatedStep = l.TaskThreads[i].CreatedStep
			l.TaskThreads[i] = t
			return
		}
	}
	l.TaskThreads = append(l.TaskThreads, t)
}

// Complete marks the run terminated with the given status and final message.
func (l *RunLedger) Complete(status RunStatus, finalMessage string) {
	now := time.Now().UTC()
	l.CompletedAt = &now
	l.Status = status
	if finalMessage != "" {
		l.FinalMessage = finalMessage
	}
}
