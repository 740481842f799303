package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/cricauction/go/internal/auction"
	"github.com/mcdev12/cricauction/go/internal/auction/events"
	"github.com/mcdev12/cricauction/go/internal/journal/db"
)

const uniqueViolation = "23505"

// ErrSeqTaken is returned when another writer already journaled the sequence
// number. The session that sees it must not apply the event.
var ErrSeqTaken = auction.ErrSeqTaken

// Querier defines what the store needs from the database layer
type Querier interface {
	AppendEvent(ctx context.Context, arg db.AppendEventParams) (int64, error)
	ListSessionEvents(ctx context.Context, sessionID uuid.UUID) ([]db.ListSessionEventsRow, error)
	ListSessionHeads(ctx context.Context) ([]db.ListSessionHeadsRow, error)
}

// Store is the Postgres journal. Rows are also the outbox read by the relay.
type Store struct {
	queries  Querier
	metadata []byte
}

// NewStore creates a journal store. Instance is recorded with every row so the
// relay can tell which engine wrote it.
func NewStore(querier Querier, instance string) *Store {
	var metadata []byte
	if instance != "" {
		metadata, _ = json.Marshal(map[string]string{"instance": instance})
	}
	return &Store{queries: querier, metadata: metadata}
}

var _ auction.Journal = (*Store)(nil)

// Append writes e. Re-appending an event with the same ID is a no-op.
func (s *Store) Append(ctx context.Context, e events.Event) error {
	_, err := s.queries.AppendEvent(ctx, db.AppendEventParams{
		ID:         e.ID,
		SessionID:  e.SessionID,
		Seq:        e.Seq,
		EventType:  string(e.Type),
		Actor:      e.Actor,
		Payload:    e.Payload,
		Metadata:   s.metadata,
		OccurredAt: e.OccurredAt,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: session %s seq %d", ErrSeqTaken, e.SessionID, e.Seq)
		}
		return fmt.Errorf("failed to append %s event: %w", e.Type, err)
	}
	return nil
}

// Load returns a session's events in sequence order.
func (s *Store) Load(ctx context.Context, sessionID uuid.UUID) ([]events.Event, error) {
	rows, err := s.queries.ListSessionEvents(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", auction.ErrSessionNotFound, sessionID)
	}

	out := make([]events.Event, len(rows))
	for i, row := range rows {
		out[i] = events.Event{
			ID:         row.ID,
			SessionID:  row.SessionID,
			Seq:        row.Seq,
			Type:       events.Type(row.EventType),
			Actor:      row.Actor,
			OccurredAt: row.OccurredAt,
			Payload:    row.Payload,
		}
	}
	return out, nil
}

// OpenSessions lists sessions whose last event does not close them, least
// recently written first.
func (s *Store) OpenSessions(ctx context.Context) ([]uuid.UUID, error) {
	heads, err := s.queries.ListSessionHeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sort.SliceStable(heads, func(i, j int) bool {
		return heads[i].CreatedAt.Before(heads[j].CreatedAt)
	})

	var open []uuid.UUID
	for _, h := range heads {
		if events.Type(h.EventType).ClosesSession() {
			continue
		}
		open = append(open, h.SessionID)
	}
	log.Debug().Int("sessions", len(heads)).Int("open", len(open)).Msg("journal scanned for open sessions")
	return open, nil
}
