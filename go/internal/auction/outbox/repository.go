package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/cricauction/go/internal/auction/events"
	"github.com/mcdev12/cricauction/go/internal/auction/outbox/db"
)

// ErrAlreadySent is returned by FetchByID for rows another relay already sent.
var ErrAlreadySent = errors.New("journal event not found or already sent")

// Querier defines what the repository needs from the database layer
type Querier interface {
	FetchUnsentJournal(ctx context.Context, limit int32) ([]db.AuctionJournal, error)
	FetchJournalByID(ctx context.Context, id uuid.UUID) (db.AuctionJournal, error)
	MarkJournalSent(ctx context.Context, id uuid.UUID) error
	CountUnsentJournal(ctx context.Context) (int64, error)
}

type Repository struct {
	queries Querier
}

func NewRepository(queries Querier) *Repository {
	return &Repository{
		queries: queries,
	}
}

var _ EventStore = (*Repository)(nil)

func (r *Repository) FetchUnsent(ctx context.Context, limit int32) ([]Record, error) {
	rows, err := r.queries.FetchUnsentJournal(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent journal events: %w", err)
	}

	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = rowToRecord(row)
	}
	return records, nil
}

func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	row, err := r.queries.FetchJournalByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadySent, id)
		}
		return nil, fmt.Errorf("failed to fetch journal event by ID: %w", err)
	}
	rec := rowToRecord(row)
	return &rec, nil
}

func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	if err := r.queries.MarkJournalSent(ctx, id); err != nil {
		return fmt.Errorf("failed to mark journal event as sent: %w", err)
	}
	return nil
}

// CountUnsent returns how many journal rows still wait for the relay.
func (r *Repository) CountUnsent(ctx context.Context) (int64, error) {
	n, err := r.queries.CountUnsentJournal(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count unsent journal events: %w", err)
	}
	return n, nil
}

func rowToRecord(row db.AuctionJournal) Record {
	rec := Record{
		Event: events.Event{
			ID:         row.ID,
			SessionID:  row.SessionID,
			Seq:        row.Seq,
			Type:       events.Type(row.EventType),
			Actor:      row.Actor,
			OccurredAt: row.OccurredAt,
			Payload:    row.Payload,
		},
		CreatedAt: row.CreatedAt,
	}
	if row.Metadata.Valid {
		rec.Metadata = row.Metadata.RawMessage
	}
	return rec
}
