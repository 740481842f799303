package auction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/cricauction/go/internal/auction/events"
	"github.com/mcdev12/cricauction/go/internal/models"
)

var testEpoch = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

var organizer = Principal{UserID: "organizer-1", Roles: []Role{RoleOrganizer}}

func bidderFor(teamIDs ...uuid.UUID) Principal {
	return Principal{UserID: "owner-" + teamIDs[0].String()[:8], Roles: []Role{RoleTeamOwner}, TeamIDs: teamIDs}
}

// recordingBroadcaster keeps every delta it is handed.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBroadcaster) Broadcast(e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBroadcaster) Types() []events.Type {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.Type, len(b.events))
	for i, e := range b.events {
		out[i] = e.Type
	}
	return out
}

// flakyJournal fails appends of the configured types while failing is set.
type flakyJournal struct {
	*MemoryJournal
	mu      sync.Mutex
	failing map[events.Type]bool
}

func newFlakyJournal() *flakyJournal {
	return &flakyJournal{MemoryJournal: NewMemoryJournal(), failing: make(map[events.Type]bool)}
}

func (j *flakyJournal) fail(types ...events.Type) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, t := range types {
		j.failing[t] = true
	}
}

func (j *flakyJournal) heal() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failing = make(map[events.Type]bool)
}

func (j *flakyJournal) Append(ctx context.Context, e events.Event) error {
	j.mu.Lock()
	failing := j.failing[e.Type]
	j.mu.Unlock()
	if failing {
		return errors.New("disk full")
	}
	return j.MemoryJournal.Append(ctx, e)
}

type harness struct {
	clock       *clockwork.FakeClock
	journal     Journal
	broadcaster *recordingBroadcaster
	manager     *Manager
	teamA       models.Team
	teamB       models.Team
	teamC       models.Team
}

func newHarness(t *testing.T, journal Journal) *harness {
	t.Helper()
	if journal == nil {
		journal = NewMemoryJournal()
	}
	h := &harness{
		clock:       clockwork.NewFakeClockAt(testEpoch),
		journal:     journal,
		broadcaster: &recordingBroadcaster{},
		teamA:       models.Team{ID: uuid.New(), Name: "Chennai Chargers", TotalBudget: 100_000},
		teamB:       models.Team{ID: uuid.New(), Name: "Bengaluru Blasters", TotalBudget: 100_000},
		teamC:       models.Team{ID: uuid.New(), Name: "Kochi Kings", TotalBudget: 5_000},
	}
	h.manager = NewManager(ManagerConfig{
		Clock:       h.clock,
		Journal:     h.journal,
		Broadcaster: h.broadcaster,
	})
	t.Cleanup(h.manager.Close)
	return h
}

func scenarioSettings() models.AuctionSettings {
	return models.AuctionSettings{
		LotDuration:     15 * time.Second,
		AntiSnipeWindow: 10 * time.Second,
		MinIncrement:    500,
		PlayersPerTeam:  3,
	}
}

func players(basePrices ...int64) []models.Player {
	out := make([]models.Player, len(basePrices))
	for i, price := range basePrices {
		out[i] = models.Player{
			ID:        uuid.New(),
			Name:      "Player " + string(rune('A'+i)),
			Category:  models.PlayerCategoryB,
			BasePrice: price,
		}
	}
	return out
}

func (h *harness) open(t *testing.T, settings models.AuctionSettings, ps []models.Player) *Session {
	t.Helper()
	s, err := h.manager.Open(context.Background(), organizer, OpenRequest{
		TournamentID: uuid.New(),
		Settings:     settings,
		Players:      ps,
		Teams:        []models.Team{h.teamA, h.teamB, h.teamC},
	})
	require.NoError(t, err)
	return s
}

func (h *harness) bid(t *testing.T, s *Session, team models.Team, lotID uuid.UUID, amount int64) (*BidReceipt, error) {
	t.Helper()
	return s.Submit(context.Background(), bidderFor(team.ID), BidRequest{
		LotID:       lotID,
		TeamID:      team.ID,
		Amount:      amount,
		SubmittedAt: h.clock.Now(),
	})
}

func snapshot(t *testing.T, s *Session) Snapshot {
	t.Helper()
	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

func lotByID(snap Snapshot, id uuid.UUID) models.Lot {
	for _, l := range snap.Lots {
		if l.ID == id {
			return l
		}
	}
	return models.Lot{}
}

func teamByID(snap Snapshot, id uuid.UUID) models.Team {
	for _, t := range snap.Teams {
		if t.ID == id {
			return t
		}
	}
	return models.Team{}
}

// waitForLotStatus polls snapshots until the lot reaches want.
func waitForLotStatus(t *testing.T, s *Session, lotID uuid.UUID, want models.LotStatus) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = snapshot(t, s)
		return lotByID(snap, lotID).Status == want
	}, 2*time.Second, 5*time.Millisecond, "lot %s never reached %s", lotID, want)
	return snap
}

func waitForSessionStatus(t *testing.T, s *Session, want models.SessionStatus) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = snapshot(t, s)
		return snap.Status == want
	}, 2*time.Second, 5*time.Millisecond, "session never reached %s", want)
	return snap
}

func journalTypes(t *testing.T, j Journal, sessionID uuid.UUID) []events.Type {
	t.Helper()
	records, err := j.Load(context.Background(), sessionID)
	require.NoError(t, err)
	out := make([]events.Type, len(records))
	for i, e := range records {
		out[i] = e.Type
	}
	return out
}
