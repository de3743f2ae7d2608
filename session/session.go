package session

import "time"

// Info is the persisted session record for one (agent, session key) pair.
// Created on first use, mutated on reuse/rotation, never deleted except by
// explicit reset/remove operations.
type Info struct {
	SessionKey      string `json:"sessionKey"`
	SessionID       string `json:"sessionId"`
	ProjectPath     string `json:"projectPath,omitempty"`
	UpdatedAt       int64  `json:"updatedAt"` // epoch milliseconds
	CompactionCount int    `json:"compactionCount"`
}

// Touch sets UpdatedAt to the given time.
func (i *Info) Touch(now time.Time) { i.UpdatedAt = now.UnixMilli() }
