package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/cricauction/go/internal/auction"
	"github.com/mcdev12/cricauction/go/internal/auction/events"
)

// FrameTypeSnapshot is the type of the first frame on every connection.
const FrameTypeSnapshot = "Snapshot"

// Frame is what viewers receive over the WebSocket. Type is either
// FrameTypeSnapshot or an event type such as BidAccepted.
type Frame struct {
	ID        string          `json:"id,omitempty"`
	SessionID string          `json:"session_id"`
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func eventFrame(e events.Event) ([]byte, error) {
	data, err := json.Marshal(Frame{
		ID:        e.ID.String(),
		SessionID: e.SessionID.String(),
		Seq:       e.Seq,
		Type:      string(e.Type),
		Timestamp: e.OccurredAt,
		Data:      e.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s frame: %w", e.Type, err)
	}
	return data, nil
}

func snapshotFrame(snap auction.Snapshot) ([]byte, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	data, err := json.Marshal(Frame{
		SessionID: snap.SessionID.String(),
		Seq:       snap.Seq,
		Type:      FrameTypeSnapshot,
		Timestamp: snap.TakenAt,
		Data:      payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot frame: %w", err)
	}
	return data, nil
}
