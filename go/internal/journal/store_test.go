package journal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/cricauction/go/internal/auction"
	"github.com/mcdev12/cricauction/go/internal/auction/events"
	"github.com/mcdev12/cricauction/go/internal/journal/db"
)

type fakeQuerier struct {
	rows      []db.AppendEventParams
	appendErr error
	listErr   error
}

func (f *fakeQuerier) AppendEvent(ctx context.Context, arg db.AppendEventParams) (int64, error) {
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	for _, r := range f.rows {
		if r.ID == arg.ID {
			return 0, nil
		}
		if r.SessionID == arg.SessionID && r.Seq == arg.Seq {
			return 0, &pgconn.PgError{Code: uniqueViolation}
		}
	}
	f.rows = append(f.rows, arg)
	return 1, nil
}

func (f *fakeQuerier) ListSessionEvents(ctx context.Context, sessionID uuid.UUID) ([]db.ListSessionEventsRow, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []db.ListSessionEventsRow
	for _, r := range f.rows {
		if r.SessionID != sessionID {
			continue
		}
		out = append(out, db.ListSessionEventsRow{
			ID:         r.ID,
			SessionID:  r.SessionID,
			Seq:        r.Seq,
			EventType:  r.EventType,
			Actor:      r.Actor,
			Payload:    r.Payload,
			OccurredAt: r.OccurredAt,
		})
	}
	return out, nil
}

func (f *fakeQuerier) ListSessionHeads(ctx context.Context) ([]db.ListSessionHeadsRow, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	heads := map[uuid.UUID]int{}
	var out []db.ListSessionHeadsRow
	for i, r := range f.rows {
		row := db.ListSessionHeadsRow{SessionID: r.SessionID, EventType: r.EventType, CreatedAt: r.OccurredAt.Add(time.Duration(i))}
		if idx, ok := heads[r.SessionID]; ok {
			out[idx] = row
			continue
		}
		heads[r.SessionID] = len(out)
		out = append(out, row)
	}
	return out, nil
}

var epoch = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func event(t *testing.T, sessionID uuid.UUID, seq int64, typ events.Type) events.Event {
	t.Helper()
	e, err := events.New(sessionID, seq, typ, "organizer-1", epoch.Add(time.Duration(seq)*time.Second), map[string]int64{"seq": seq})
	require.NoError(t, err)
	return e
}

func TestStore_AppendAndLoad(t *testing.T) {
	q := &fakeQuerier{}
	store := NewStore(q, "engine-1")
	ctx := context.Background()
	sessionID := uuid.New()

	first := event(t, sessionID, 1, events.TypeSessionStarted)
	second := event(t, sessionID, 2, events.TypeLotActivated)
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))

	var meta map[string]string
	require.NoError(t, json.Unmarshal(q.rows[0].Metadata, &meta))
	assert.Equal(t, "engine-1", meta["instance"])

	loaded, err := store.Load(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, first.ID, loaded[0].ID)
	assert.Equal(t, events.TypeLotActivated, loaded[1].Type)
	assert.Equal(t, "organizer-1", loaded[1].Actor)
	assert.JSONEq(t, string(second.Payload), string(loaded[1].Payload))
}

func TestStore_AppendIsIdempotentPerEventID(t *testing.T) {
	q := &fakeQuerier{}
	store := NewStore(q, "")
	e := event(t, uuid.New(), 1, events.TypeSessionStarted)

	require.NoError(t, store.Append(context.Background(), e))
	require.NoError(t, store.Append(context.Background(), e))
	assert.Len(t, q.rows, 1)
	assert.Nil(t, q.rows[0].Metadata)
}

func TestStore_AppendSeqTaken(t *testing.T) {
	q := &fakeQuerier{}
	store := NewStore(q, "")
	sessionID := uuid.New()

	require.NoError(t, store.Append(context.Background(), event(t, sessionID, 1, events.TypeSessionStarted)))
	err := store.Append(context.Background(), event(t, sessionID, 1, events.TypeSessionStarted))
	assert.ErrorIs(t, err, ErrSeqTaken)
}

func TestStore_AppendWrapsDatabaseErrors(t *testing.T) {
	boom := errors.New("connection reset")
	store := NewStore(&fakeQuerier{appendErr: boom}, "")

	err := store.Append(context.Background(), event(t, uuid.New(), 1, events.TypeSessionStarted))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrSeqTaken)
}

func TestStore_LoadUnknownSession(t *testing.T) {
	store := NewStore(&fakeQuerier{}, "")
	_, err := store.Load(context.Background(), uuid.New())
	assert.ErrorIs(t, err, auction.ErrSessionNotFound)
}

func TestStore_OpenSessions(t *testing.T) {
	q := &fakeQuerier{}
	store := NewStore(q, "")
	ctx := context.Background()

	live, archived, halted, paused := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	for _, e := range []events.Event{
		event(t, live, 1, events.TypeSessionStarted),
		event(t, archived, 1, events.TypeSessionStarted),
		event(t, halted, 1, events.TypeSessionStarted),
		event(t, paused, 1, events.TypeSessionStarted),
		event(t, live, 2, events.TypeLotActivated),
		event(t, archived, 2, events.TypeSessionArchived),
		event(t, halted, 2, events.TypeFaultRaised),
		event(t, paused, 2, events.TypeSessionPaused),
	} {
		require.NoError(t, store.Append(ctx, e))
	}

	open, err := store.OpenSessions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{live, paused}, open)
}
