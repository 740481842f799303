package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/cricauction/go/internal/auction/events"
	"github.com/mcdev12/cricauction/go/internal/auction/outbox/db"
)

type fakeQueries struct {
	rows   []db.AuctionJournal
	marked []uuid.UUID
}

func (f *fakeQueries) FetchUnsentJournal(ctx context.Context, limit int32) ([]db.AuctionJournal, error) {
	if int(limit) < len(f.rows) {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func (f *fakeQueries) FetchJournalByID(ctx context.Context, id uuid.UUID) (db.AuctionJournal, error) {
	for _, r := range f.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return db.AuctionJournal{}, sql.ErrNoRows
}

func (f *fakeQueries) MarkJournalSent(ctx context.Context, id uuid.UUID) error {
	f.marked = append(f.marked, id)
	return nil
}

func (f *fakeQueries) CountUnsentJournal(ctx context.Context) (int64, error) {
	return int64(len(f.rows) - len(f.marked)), nil
}

func journalRow(seq int64, typ events.Type, metadata string) db.AuctionJournal {
	at := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	row := db.AuctionJournal{
		ID:         uuid.New(),
		SessionID:  uuid.New(),
		Seq:        seq,
		EventType:  string(typ),
		Actor:      "organizer-1",
		Payload:    json.RawMessage(`{"lot_id":"x"}`),
		OccurredAt: at,
		CreatedAt:  at.Add(time.Millisecond),
	}
	if metadata != "" {
		row.Metadata = pqtype.NullRawMessage{RawMessage: json.RawMessage(metadata), Valid: true}
	}
	return row
}

func TestRepository_FetchUnsentMapsRows(t *testing.T) {
	withMeta := journalRow(4, events.TypeLotSold, `{"instance":"engine-1"}`)
	without := journalRow(5, events.TypeLotActivated, "")
	repo := NewRepository(&fakeQueries{rows: []db.AuctionJournal{withMeta, without}})

	recs, err := repo.FetchUnsent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, withMeta.ID, recs[0].Event.ID)
	assert.Equal(t, int64(4), recs[0].Event.Seq)
	assert.Equal(t, events.TypeLotSold, recs[0].Event.Type)
	assert.Equal(t, "organizer-1", recs[0].Event.Actor)
	assert.JSONEq(t, `{"instance":"engine-1"}`, string(recs[0].Metadata))
	assert.Nil(t, recs[1].Metadata)
}

func TestRepository_FetchByIDMissingIsAlreadySent(t *testing.T) {
	repo := NewRepository(&fakeQueries{})
	_, err := repo.FetchByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAlreadySent)
}

func TestRepository_MarkSent(t *testing.T) {
	q := &fakeQueries{}
	repo := NewRepository(q)
	id := uuid.New()
	require.NoError(t, repo.MarkSent(context.Background(), id))
	assert.Equal(t, []uuid.UUID{id}, q.marked)
}
