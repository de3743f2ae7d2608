// Package session owns durable conversational identity per (agent, session
// key) pair. The Service decides reuse versus rotation for each orchestration
// run, serializing decisions per key so concurrent runs cannot race to rotate
// the same session inconsistently. Persistence is pluggable through the Store
// interface; file-backed and in-memory implementations are provided.
package session
