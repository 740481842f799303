package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/cricauction/go/internal/auction/events"
)

type memStore struct {
	mu      sync.Mutex
	records []Record
	sent    map[uuid.UUID]bool
	markErr error
}

func newMemStore(records ...Record) *memStore {
	return &memStore{records: records, sent: make(map[uuid.UUID]bool)}
}

func (m *memStore) FetchUnsent(ctx context.Context, limit int32) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.records {
		if m.sent[r.Event.ID] {
			continue
		}
		if int32(len(out)) == limit {
			break
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) FetchByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Event.ID == id && !m.sent[id] {
			rec := r
			return &rec, nil
		}
	}
	return nil, ErrAlreadySent
}

func (m *memStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	m.sent[id] = true
	return nil
}

func (m *memStore) isSent(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[id]
}

type stubPublisher struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	published []Record
}

func (p *stubPublisher) Publish(ctx context.Context, rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failFirst {
		return errors.New("bus unavailable")
	}
	p.published = append(p.published, rec)
	return nil
}

func (p *stubPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.published))
	for i, r := range p.published {
		out[i] = r.Event.Type
	}
	return out
}

func record(t *testing.T, sessionID uuid.UUID, seq int64, typ events.Type) Record {
	t.Helper()
	e, err := events.New(sessionID, seq, typ, "system", time.Date(2026, 3, 1, 18, 0, int(seq), 0, time.UTC), struct{}{})
	require.NoError(t, err)
	return Record{Event: e, CreatedAt: e.OccurredAt}
}

func testListener(store EventStore, pub Publisher) *Listener {
	cfg := DefaultListenerConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.MaxRetries = 2
	cfg.FallbackInterval = 10 * time.Millisecond
	cfg.PingInterval = time.Hour
	return &Listener{store: store, publisher: pub, cfg: cfg}
}

func TestListener_HandleNotificationPublishesAndMarksSent(t *testing.T) {
	rec := record(t, uuid.New(), 1, events.TypeSessionStarted)
	store := newMemStore(rec)
	pub := &stubPublisher{}
	l := testListener(store, pub)

	require.NoError(t, l.handleNotification(context.Background(), rec.Event.ID.String()))
	assert.Equal(t, []events.Type{events.TypeSessionStarted}, pub.types())
	assert.True(t, store.isSent(rec.Event.ID))

	// a second notification for the same row is a no-op
	require.NoError(t, l.handleNotification(context.Background(), rec.Event.ID.String()))
	assert.Len(t, pub.types(), 1)
}

func TestListener_HandleNotificationRejectsBadPayload(t *testing.T) {
	l := testListener(newMemStore(), &stubPublisher{})
	assert.Error(t, l.handleNotification(context.Background(), "not-a-uuid"))
}

func TestListener_JournalOnlyEventsAreNotPublished(t *testing.T) {
	sessionID := uuid.New()
	checkpoint := record(t, sessionID, 1, events.TypeClockCheckpoint)
	rejected := record(t, sessionID, 2, events.TypeBidRejected)
	accepted := record(t, sessionID, 3, events.TypeBidAccepted)
	store := newMemStore(checkpoint, rejected, accepted)
	pub := &stubPublisher{}
	l := testListener(store, pub)

	require.NoError(t, l.processUnsent(context.Background()))
	assert.Equal(t, []events.Type{events.TypeBidAccepted}, pub.types())
	for _, r := range []Record{checkpoint, rejected, accepted} {
		assert.True(t, store.isSent(r.Event.ID), r.Event.Type)
	}
}

func TestListener_PublishRetriesThenSucceeds(t *testing.T) {
	rec := record(t, uuid.New(), 1, events.TypeLotSold)
	store := newMemStore(rec)
	pub := &stubPublisher{failFirst: 2}
	l := testListener(store, pub)

	require.NoError(t, l.relay(context.Background(), rec))
	assert.Equal(t, 3, pub.calls)
	assert.True(t, store.isSent(rec.Event.ID))
}

func TestListener_PublishGivesUpAndLeavesRowUnsent(t *testing.T) {
	rec := record(t, uuid.New(), 1, events.TypeLotSold)
	store := newMemStore(rec)
	pub := &stubPublisher{failFirst: 10}
	l := testListener(store, pub)

	err := l.relay(context.Background(), rec)
	require.Error(t, err)
	assert.Equal(t, l.cfg.MaxRetries+1, pub.calls)
	assert.False(t, store.isSent(rec.Event.ID))

	// the fallback sweep picks it up once the bus recovers
	pub.failFirst = 0
	require.NoError(t, l.processUnsent(context.Background()))
	assert.True(t, store.isSent(rec.Event.ID))
}

func TestListener_PublishRetryHonorsContext(t *testing.T) {
	rec := record(t, uuid.New(), 1, events.TypeLotSold)
	l := testListener(newMemStore(rec), &stubPublisher{failFirst: 10})
	l.cfg.RetryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.publishWithRetry(ctx, rec)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListener_MarkSentFailureIsReported(t *testing.T) {
	rec := record(t, uuid.New(), 1, events.TypeLotUnsold)
	store := newMemStore(rec)
	store.markErr = errors.New("db down")
	l := testListener(store, &stubPublisher{})

	assert.Error(t, l.relay(context.Background(), rec))
}

func TestListener_StartDrainsBacklogAndStopsOnCancel(t *testing.T) {
	sessionID := uuid.New()
	first := record(t, sessionID, 1, events.TypeSessionStarted)
	second := record(t, sessionID, 2, events.TypeLotActivated)
	store := newMemStore(first, second)
	pub := &stubPublisher{}
	l := testListener(store, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	require.Eventually(t, func() bool {
		return store.isSent(first.Event.ID) && store.isSent(second.Event.ID)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []events.Type{events.TypeSessionStarted, events.TypeLotActivated}, pub.types())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListener_StartRelaysNotifications(t *testing.T) {
	rec := record(t, uuid.New(), 1, events.TypeBidAccepted)
	store := &memStore{sent: make(map[uuid.UUID]bool)}
	pub := &stubPublisher{}
	l := testListener(store, pub)
	l.cfg.FallbackInterval = time.Hour
	notify := make(chan *pq.Notification)
	l.notify = notify

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Start(ctx) }()

	store.mu.Lock()
	store.records = append(store.records, rec)
	store.mu.Unlock()
	notify <- &pq.Notification{Channel: l.cfg.NotifyChannel, Extra: rec.Event.ID.String()}

	require.Eventually(t, func() bool { return store.isSent(rec.Event.ID) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []events.Type{events.TypeBidAccepted}, pub.types())
}
