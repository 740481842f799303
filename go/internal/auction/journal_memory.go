package auction

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/mcdev12/cricauction/go/internal/auction/events"
)

// MemoryJournal keeps events in process memory. It is used in tests and when
// the engine runs without a database.
type MemoryJournal struct {
	mu       sync.RWMutex
	order    []uuid.UUID
	sessions map[uuid.UUID][]events.Event
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{sessions: make(map[uuid.UUID][]events.Event)}
}

func (j *MemoryJournal) Append(ctx context.Context, e events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	log, exists := j.sessions[e.SessionID]
	want := int64(len(log)) + 1
	if e.Seq < want {
		return fmt.Errorf("%w: session %s seq %d", ErrSeqTaken, e.SessionID, e.Seq)
	}
	if e.Seq != want {
		return fmt.Errorf("session %s: expected seq %d, got %d", e.SessionID, want, e.Seq)
	}
	if !exists {
		j.order = append(j.order, e.SessionID)
	}
	j.sessions[e.SessionID] = append(log, e)
	return nil
}

func (j *MemoryJournal) Load(ctx context.Context, sessionID uuid.UUID) ([]events.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.mu.RLock()
	defer j.mu.RUnlock()

	log, ok := j.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return slices.Clone(log), nil
}

func (j *MemoryJournal) OpenSessions(ctx context.Context) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.mu.RLock()
	defer j.mu.RUnlock()

	var open []uuid.UUID
	for _, id := range j.order {
		log := j.sessions[id]
		if len(log) > 0 && !log[len(log)-1].Type.ClosesSession() {
			open = append(open, id)
		}
	}
	return open, nil
}
