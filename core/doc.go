// Package core provides the foundational domain types and interfaces used by
// goatherd. It defines the core abstractions for:
//
//   - Agent descriptors (the roster of named participants and their capabilities)
//   - Orchestration actions (the closed vocabulary of per-step decisions)
//   - Run ledgers (the durable, append-only record of one orchestration run)
//   - Providers (execution backends that turn a message into a response)
//   - Routing decisions (which agent first receives a message)
//
// The package intentionally keeps implementation concerns (persistence, the
// step loop, concrete providers) out of scope, exposing small interfaces to
// enable custom backends and extensions.
package core
