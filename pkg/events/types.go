// Package events defines broadcast events and publishers for resource subjects.
package events

import "encoding/json"

// Change event types emitted by the default actions.
const (
	TypeUpdated = "updated"
	TypePatched = "patched"
	TypeDeleted = "deleted"
)

// ChangeEvent is broadcast on the bare resource subject when an instance changes.
type ChangeEvent struct {
	Type      string          `json:"type"`
	Resource  string          `json:"resource"`
	ID        string          `json:"id"`
	Body      json.RawMessage `json:"body,omitempty"`
	Timestamp string          `json:"timestamp"`
}
