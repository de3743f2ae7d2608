// Package orchestration drives the planner-directed step loop that turns one
// user message into a bounded sequence of actions: delegate to an agent, read
// or write a shared workspace file, install a skill, respond, finish. Every
// step is appended to a run ledger that records the planner decision, any
// provider call with its session bindings, and the evolving session graph.
//
// Failure semantics: a single failed provider call is recorded in its step
// and the loop continues; a malformed or unauthorized planner action is fatal
// to the run, with the ledger persisted carrying the failure. Step-budget
// exhaustion is not an error: the orchestrator synthesizes a finish action
// and marks the run degraded so callers always receive a response.
package orchestration
