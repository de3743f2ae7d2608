package core

import (
	"testing"
)

func TestRunLedger_NewSeedsEntryNode(t *testing.T) {
	l := NewRunLedger("goat", "hello")
	if l.RunID == "" || l.SchemaVersion != LedgerSchemaVersion {
		t.Fatalf("ledger not initialized: %+v", l)
	}
	if l.Status != StatusRunning {
		t.Fatalf("expected running status, got %s", l.Status)
	}
	if len(l.SessionGraph.Nodes) != 1 || l.SessionGraph.Nodes[0].AgentID != "goat" {
		t.Fatalf("entry node missing: %+v", l.SessionGraph.Nodes)
	}
	if l.NextStep() != 1 {
		t.Fatalf("expected first step number 1, got %d", l.NextStep())
	}
}

func TestRunLedger_StepContiguity(t *testing.T) {
	l := NewRunLedger("goat", "hello")

	for i := 1; i <= 3; i++ {
		if !l.AppendStep(StepLog{Step: i, Action: ActionRecord{Kind: ActionRespond}}) {
			t.Fatalf("append of step %d rejected", i)
		}
	}
	for i, s := range l.Steps {
		if s.Step != i+1 {
			t.Fatalf("step numbers not contiguous: %+v", l.Steps)
		}
	}

	// A gap beyond NextStep must be rejected.
	if l.AppendStep(StepLog{Step: 5}) {
		t.Fatal("gap step accepted")
	}
	if len(l.Steps) != 3 {
		t.Fatalf("ledger mutated by rejected append: %d steps", len(l.Steps))
	}
}

func TestRunLedger_AppendStepIdempotent(t *testing.T) {
	l := NewRunLedger("goat", "hello")
	step := StepLog{Step: 1, Rationale: "first", Action: ActionRecord{Kind: ActionFinish}}

	if !l.AppendStep(step) {
		t.Fatal("first append rejected")
	}
	// Retrying the same step number after a crash-replay is a no-op.
	if l.AppendStep(step) {
		t.Fatal("duplicate append accepted")
	}
	if len(l.Steps) != 1 {
		t.Fatalf("expected 1 step after duplicate append, got %d", len(l.Steps))
	}
}

func TestRunLedger_TouchNodeAndEdgeUpsert(t *testing.T) {
	l := NewRunLedger("goat", "hello")

	l.TouchNode(GraphNode{AgentID: "writer", ProviderID: "cli"})
	l.TouchNode(GraphNode{AgentID: "writer", SessionID: "s-1"})
	if len(l.SessionGraph.Nodes) != 2 {
		t.Fatalf("expected entry + writer nodes, got %+v", l.SessionGraph.Nodes)
	}
	w := l.SessionGraph.Nodes[1]
	if w.ProviderID != "cli" || w.SessionID != "s-1" {
		t.Fatalf("node bindings not merged: %+v", w)
	}

	l.TouchEdge(GraphEdge{From: "goat", To: "writer", Reason: "draft"})
	l.TouchEdge(GraphEdge{From: "goat", To: "writer", Reason: "revise"})
	if len(l.SessionGraph.Edges) != 1 {
		t.Fatalf("edge duplicated: %+v", l.SessionGraph.Edges)
	}
	if l.SessionGraph.Edges[0].Reason != "revise" {
		t.Fatalf("edge reason not refreshed: %+v", l.SessionGraph.Edges[0])
	}
}

func TestRunLedger_BindThreadKeepsCreatedStep(t *testing.T) {
	l := NewRunLedger("goat", "hello")

	l.BindThread(TaskThread{TaskKey: "t1", AgentID: "writer", CreatedStep: 1, UpdatedStep: 1})
	l.BindThread(TaskThread{TaskKey: "t1", AgentID: "writer", CreatedStep: 3, UpdatedStep: 3, LastResponse: "ok"})

	thread, ok := l.Thread("t1")
	if !ok {
		t.Fatal("thread not found")
	}
	if thread.CreatedStep != 1 || thread.UpdatedStep != 3 || thread.LastResponse != "ok" {
		t.Fatalf("thread not updated correctly: %+v", thread)
	}
	if _, ok := l.Thread("absent"); ok {
		t.Fatal("unexpected thread for unknown key")
	}
}

func TestRunLedger_Complete(t *testing.T) {
	l := NewRunLedger("goat", "hello")
	l.Complete(StatusCompleted, "final answer")

	if l.Status != StatusCompleted || l.FinalMessage != "final answer" {
		t.Fatalf("completion not recorded: %+v", l)
	}
	if l.CompletedAt == nil || l.CompletedAt.Before(l.StartedAt) {
		t.Fatalf("completion timestamp invalid: %+v", l.CompletedAt)
	}
}
