package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the bus representation of an event. The outbox relay publishes
// it and the gateway consumes it.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Seq       int64           `json:"seq"`
	Actor     string          `json:"actor,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope wraps e for publishing.
func NewEnvelope(e Event, metadata json.RawMessage) Envelope {
	return Envelope{
		EventID:   e.ID.String(),
		EventType: string(e.Type),
		SessionID: e.SessionID.String(),
		Seq:       e.Seq,
		Actor:     e.Actor,
		Timestamp: e.OccurredAt,
		Metadata:  metadata,
		Payload:   e.Payload,
	}
}

// Event converts the envelope back into an event.
func (env Envelope) Event() (Event, error) {
	id, err := uuid.Parse(env.EventID)
	if err != nil {
		return Event{}, fmt.Errorf("parse event ID: %w", err)
	}
	sessionID, err := uuid.Parse(env.SessionID)
	if err != nil {
		return Event{}, fmt.Errorf("parse session ID: %w", err)
	}
	if env.Seq <= 0 {
		return Event{}, fmt.Errorf("event %s has no sequence number", env.EventID)
	}
	return Event{
		ID:         id,
		SessionID:  sessionID,
		Seq:        env.Seq,
		Type:       Type(env.EventType),
		Actor:      env.Actor,
		OccurredAt: env.Timestamp,
		Payload:    env.Payload,
	}, nil
}

// Subject returns the bus subject for e under prefix, e.g.
// auction.events.<session>.BidAccepted.
func Subject(prefix string, e Event) string {
	return fmt.Sprintf("%s.%s.%s", prefix, e.SessionID, e.Type)
}
