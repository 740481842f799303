package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/cricauction/go/internal/auction/events"
)

type fakeRelay struct {
	relayed uint64
	last    time.Time
	running bool
}

func (f fakeRelay) Stats() (uint64, time.Time) { return f.relayed, f.last }
func (f fakeRelay) Running() bool              { return f.running }

type fakePinger struct{ err error }

func (f fakePinger) PingContext(ctx context.Context) error { return f.err }

type fakeCounter struct {
	n   int64
	err error
}

func (f fakeCounter) CountUnsent(ctx context.Context) (int64, error) { return f.n, f.err }

type fakeBus bool

func (f fakeBus) Connected() bool { return bool(f) }

func TestHealthChecker_Check(t *testing.T) {
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		relay       fakeRelay
		db          fakePinger
		pending     fakeCounter
		bus         fakeBus
		wantHealthy bool
		wantErrors  int
	}{
		{
			name:        "idle relay",
			relay:       fakeRelay{running: true},
			bus:         true,
			wantHealthy: true,
		},
		{
			name:        "keeping up",
			relay:       fakeRelay{relayed: 12, last: now.Add(-time.Second), running: true},
			pending:     fakeCounter{n: 3},
			bus:         true,
			wantHealthy: true,
		},
		{
			name:        "stalled with backlog",
			relay:       fakeRelay{relayed: 12, last: now.Add(-5 * time.Minute), running: true},
			pending:     fakeCounter{n: 3},
			bus:         true,
			wantHealthy: false,
			wantErrors:  1,
		},
		{
			name:        "database down",
			relay:       fakeRelay{running: true},
			db:          fakePinger{err: errors.New("connection refused")},
			bus:         true,
			wantHealthy: false,
			wantErrors:  1,
		},
		{
			name:        "bus down and listener stopped",
			relay:       fakeRelay{},
			bus:         false,
			wantHealthy: false,
			wantErrors:  2,
		},
		{
			name:        "large backlog is reported",
			relay:       fakeRelay{relayed: 1, last: now, running: true},
			pending:     fakeCounter{n: 5000},
			bus:         true,
			wantHealthy: true,
			wantErrors:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker(tt.relay, tt.db, tt.pending, tt.bus, time.Minute)
			h.now = func() time.Time { return now }

			status := h.Check(context.Background())
			assert.Equal(t, tt.wantHealthy, status.Healthy, status.Errors)
			assert.Len(t, status.Errors, tt.wantErrors)
		})
	}
}

func TestHealthChecker_ServeHTTP(t *testing.T) {
	h := NewHealthChecker(fakeRelay{running: true}, fakePinger{}, fakeCounter{n: 2}, fakeBus(true), time.Minute)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Healthy)
	assert.Equal(t, int64(2), status.PendingEvents)

	h = NewHealthChecker(fakeRelay{}, fakePinger{}, fakeCounter{}, fakeBus(true), time.Minute)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListener_StatsCountRelayedEvents(t *testing.T) {
	rec := record(t, uuid.New(), 1, events.TypeLotActivated)
	l := testListener(newMemStore(rec), &stubPublisher{})

	n, last := l.Stats()
	assert.Zero(t, n)
	assert.True(t, last.IsZero())

	require.NoError(t, l.relay(context.Background(), rec))
	n, last = l.Stats()
	assert.Equal(t, uint64(1), n)
	assert.False(t, last.IsZero())
}
