package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/cricauction/go/internal/auction"
)

// SnapshotProvider returns the current state of a session.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, sessionID uuid.UUID) (*auction.Snapshot, error)
}

// ManagerSnapshots serves snapshots from the sessions running in this process.
type ManagerSnapshots struct {
	manager *auction.Manager
}

func NewManagerSnapshots(m *auction.Manager) *ManagerSnapshots {
	return &ManagerSnapshots{manager: m}
}

func (p *ManagerSnapshots) Snapshot(ctx context.Context, sessionID uuid.UUID) (*auction.Snapshot, error) {
	s, err := p.manager.Get(sessionID)
	if err != nil {
		return nil, err
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// JournalSnapshots rebuilds snapshots from the journal. It serves gateways
// that run apart from the engine.
type JournalSnapshots struct {
	journal auction.Journal
	clock   clockwork.Clock
}

func NewJournalSnapshots(journal auction.Journal, clock clockwork.Clock) *JournalSnapshots {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &JournalSnapshots{journal: journal, clock: clock}
}

func (p *JournalSnapshots) Snapshot(ctx context.Context, sessionID uuid.UUID) (*auction.Snapshot, error) {
	records, err := p.journal.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snap, err := auction.SnapshotFromJournal(records, p.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("rebuild session %s: %w", sessionID, err)
	}
	return &snap, nil
}
