package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/cricauction/go/internal/auction/events"
)

// Record is a journal row waiting to be relayed.
type Record struct {
	Event     events.Event
	Metadata  json.RawMessage
	CreatedAt time.Time
}

// Publisher puts a record on the message bus.
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}

// EventStore is what the listener needs from the journal table.
type EventStore interface {
	FetchUnsent(ctx context.Context, limit int32) ([]Record, error)
	FetchByID(ctx context.Context, id uuid.UUID) (*Record, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}
