package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one row in the append-only audit log. Entries are written by
// every mutating operation and never updated or deleted.
type AuditEntry struct {
	ID         uuid.UUID      `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Action     string         `json:"action"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
