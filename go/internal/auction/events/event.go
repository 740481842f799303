package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies a state delta emitted by an auction session.
type Type string

const (
	TypeSessionStarted   Type = "SessionStarted"
	TypeLotActivated     Type = "LotActivated"
	TypeBidAccepted      Type = "BidAccepted"
	TypeBidRejected      Type = "BidRejected"
	TypeLotSold          Type = "LotSold"
	TypeLotUnsold        Type = "LotUnsold"
	TypeLotReopened      Type = "LotReopened"
	TypeSessionPaused    Type = "SessionPaused"
	TypeSessionResumed   Type = "SessionResumed"
	TypeSessionArchived  Type = "SessionArchived"
	TypeSessionCancelled Type = "SessionCancelled"
	TypeFaultRaised      Type = "FaultRaised"
	TypeClockCheckpoint  Type = "ClockCheckpoint"
)

// JournalOnly reports whether the event is kept for recovery and audit but not
// fanned out to viewers.
func (t Type) JournalOnly() bool {
	return t == TypeClockCheckpoint || t == TypeBidRejected
}

// ClosesSession reports whether no further events follow this one in a session.
func (t Type) ClosesSession() bool {
	switch t {
	case TypeSessionArchived, TypeSessionCancelled, TypeFaultRaised:
		return true
	default:
		return false
	}
}

// Event is a journaled, broadcastable state delta. Seq is strictly increasing
// within a session.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	SessionID  uuid.UUID       `json:"session_id"`
	Seq        int64           `json:"seq"`
	Type       Type            `json:"type"`
	Actor      string          `json:"actor,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// New builds an event, marshalling payload to JSON.
func New(sessionID uuid.UUID, seq int64, typ Type, actor string, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return Event{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Seq:        seq,
		Type:       typ,
		Actor:      actor,
		OccurredAt: at,
		Payload:    data,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", e.Type, err)
	}
	return nil
}

// ParsePayload parses event data into the appropriate payload struct
func ParsePayload(e Event) (any, error) {
	var target any
	switch e.Type {
	case TypeSessionStarted:
		target = &SessionStartedPayload{}
	case TypeLotActivated:
		target = &LotActivatedPayload{}
	case TypeBidAccepted:
		target = &BidAcceptedPayload{}
	case TypeBidRejected:
		target = &BidRejectedPayload{}
	case TypeLotSold:
		target = &LotSoldPayload{}
	case TypeLotUnsold:
		target = &LotUnsoldPayload{}
	case TypeLotReopened:
		target = &LotReopenedPayload{}
	case TypeSessionPaused:
		target = &SessionPausedPayload{}
	case TypeSessionResumed:
		target = &SessionResumedPayload{}
	case TypeSessionArchived:
		target = &SessionArchivedPayload{}
	case TypeSessionCancelled:
		target = &SessionCancelledPayload{}
	case TypeFaultRaised:
		target = &FaultRaisedPayload{}
	case TypeClockCheckpoint:
		target = &ClockCheckpointPayload{}
	default:
		return nil, fmt.Errorf("unknown event type: %s", e.Type)
	}
	if err := e.Decode(target); err != nil {
		return nil, err
	}
	return target, nil
}
