package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAgent is returned when a referenced agent id is absent from
	// the roster supplied for the run.
	ErrUnknownAgent = errors.New("agent not in roster")

	// ErrUnknownProvider is returned when an agent's provider id does not
	// resolve against the registry.
	ErrUnknownProvider = errors.New("provider not registered")

	// ErrAgentCannotReceive is returned when a delegation targets an agent
	// whose descriptor has CanReceive=false.
	ErrAgentCannotReceive = errors.New("agent cannot receive messages")
)

// PlanningError marks the fatal orchestration failure class: the planner
// produced a malformed action or referenced an agent outside the roster or
// its capabilities. Planning errors abort the run; the ledger is
// still persisted with the failure noted.
type PlanningError struct {
	RunID  string
	Step   int
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *PlanningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("planning error at step %d of run %s: %s: %v", e.Step, e.RunID, e.Reason, e.Err)
	}
	return fmt.Sprintf("planning error at step %d of run %s: %s", e.Step, e.RunID, e.Reason)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *PlanningError) Unwrap() error { return e.Err }
