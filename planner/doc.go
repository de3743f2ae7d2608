// Package planner produces the per-step decision of an orchestration run:
// given the run so far, propose exactly one action from the closed vocabulary
// (delegate, read/write a workspace file, install a skill, respond, finish)
// plus a rationale.
//
// Two implementations are provided. Heuristic is deterministic and
// rule-based, suitable for tests and as a dependable default. ModelPlanner
// prompts a text model for a JSON decision and validates it strictly; a
// malformed decision is returned as an error, which the orchestrator treats
// as fatal to the run.
package planner
