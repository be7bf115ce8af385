package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Signal types emitted by the core and its collaborators.
const (
	SignalNewNote            = "new_note"
	SignalBeliefProposed     = "belief_proposed"
	SignalBeliefChallenged   = "belief_challenged"
	SignalBeliefConfirmed    = "belief_confirmed"
	SignalBeliefRefuted      = "belief_refuted"
	SignalNoteDistilled      = "note_distilled"
	SignalSourceTrustUpdated = "source_trust_updated"
)

// Signal is a durable queued event. A signal is marked processed only after
// every registered handler for its type has succeeded; signals that exhaust
// their retry budget are dead-lettered instead of retrying forever.
type Signal struct {
	ID             uuid.UUID      `json:"id"`
	Type           string         `json:"type"`
	Payload        map[string]any `json:"payload"`
	Attempts       int            `json:"attempts"`
	CreatedAt      time.Time      `json:"created_at"`
	ProcessedAt    *time.Time     `json:"processed_at,omitempty"`
	DeadLetteredAt *time.Time     `json:"dead_lettered_at,omitempty"`
}

// PayloadID extracts a UUID payload field. Payloads cross a JSON boundary, so
// IDs always travel as strings.
func (s *Signal) PayloadID(key string) (uuid.UUID, error) {
	raw, ok := s.Payload[key]
	if !ok {
		return uuid.Nil, fmt.Errorf("payload missing %q", key)
	}
	str, ok := raw.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("payload field %q is not a string", key)
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, fmt.Errorf("payload field %q: %w", key, err)
	}
	return id, nil
}

// PayloadString extracts a string payload field, empty if absent.
func (s *Signal) PayloadString(key string) string {
	if v, ok := s.Payload[key].(string); ok {
		return v
	}
	return ""
}
