// internal/models/presence.go
package models

const PresenceCollection = "presence"

// PresenceEvent is one motion map captured by a presence installation.
type PresenceEvent struct {
	PresenceMap [][]int `json:"presenceMap"`
	Timestamp   int64   `json:"timestamp"`
}

func (e PresenceEvent) EventTime() int64 { return e.Timestamp }

// Presence is the record kept for one presence tenant.
type Presence struct {
	ID             int             `json:"id"`
	Config         map[string]any  `json:"config"`
	PresenceEvents []PresenceEvent `json:"presenceEvents"`
}
