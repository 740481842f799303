package auction

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/cricauction/go/internal/auction/events"
	"github.com/mcdev12/cricauction/go/internal/models"
)

type stubRoster struct {
	roster *Roster
	err    error
}

func (s stubRoster) LoadRoster(_ context.Context, tournamentID uuid.UUID) (*Roster, error) {
	if s.err != nil {
		return nil, s.err
	}
	r := *s.roster
	r.TournamentID = tournamentID
	return &r, nil
}

func TestManager_OpenValidates(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	teams := []models.Team{h.teamA, h.teamB}

	tests := []struct {
		name    string
		actor   Principal
		req     OpenRequest
		wantErr func(t *testing.T, err error)
	}{
		{
			name:  "bidder cannot open",
			actor: bidderFor(h.teamA.ID),
			req:   OpenRequest{TournamentID: uuid.New(), Settings: scenarioSettings(), Players: players(1_000), Teams: teams},
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrForbidden)
			},
		},
		{
			name:  "missing increment",
			actor: organizer,
			req:   OpenRequest{TournamentID: uuid.New(), Settings: models.AuctionSettings{PlayersPerTeam: 2}, Players: players(1_000), Teams: teams},
			wantErr: func(t *testing.T, err error) {
				assert.Equal(t, KindValidation, KindOf(err))
			},
		},
		{
			name:  "no players",
			actor: organizer,
			req:   OpenRequest{TournamentID: uuid.New(), Settings: scenarioSettings(), Teams: teams},
			wantErr: func(t *testing.T, err error) {
				assert.Equal(t, KindValidation, KindOf(err))
			},
		},
		{
			name:  "team without budget",
			actor: organizer,
			req: OpenRequest{TournamentID: uuid.New(), Settings: scenarioSettings(), Players: players(1_000), Teams: []models.Team{
				{ID: uuid.New(), Name: "Broke"},
			}},
			wantErr: func(t *testing.T, err error) {
				assert.Equal(t, KindValidation, KindOf(err))
			},
		},
		{
			name:  "window longer than lot",
			actor: organizer,
			req: OpenRequest{TournamentID: uuid.New(), Settings: func() models.AuctionSettings {
				s := scenarioSettings()
				s.AntiSnipeWindow = 2 * s.LotDuration
				return s
			}(), Players: players(1_000), Teams: teams},
			wantErr: func(t *testing.T, err error) {
				assert.Equal(t, KindValidation, KindOf(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.manager.Open(ctx, tt.actor, tt.req)
			require.Error(t, err)
			tt.wantErr(t, err)
		})
	}
}

func TestManager_OneSessionPerTournament(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	req := OpenRequest{TournamentID: uuid.New(), Settings: scenarioSettings(), Players: players(1_000), Teams: []models.Team{h.teamA}}

	s, err := h.manager.Open(ctx, organizer, req)
	require.NoError(t, err)

	_, err = h.manager.Open(ctx, organizer, req)
	assert.ErrorIs(t, err, ErrSessionExists)

	got, err := h.manager.ForTournament(req.TournamentID)
	require.NoError(t, err)
	assert.Equal(t, s.ID(), got.ID())

	_, err = h.manager.Get(uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_OpenAppliesDefaults(t *testing.T) {
	h := newHarness(t, nil)
	s := h.open(t, scenarioSettings(), players(1_000))

	snap := snapshot(t, s)
	assert.Equal(t, models.OrderingOrganizer, snap.Settings.Ordering)
	assert.Equal(t, DefaultCategoryOrder, snap.Settings.CategoryOrder)
	assert.Equal(t, models.SessionStatusLive, snap.Status)
	require.Len(t, snap.Lots, 1)
	assert.Equal(t, models.LotStatusPending, snap.Lots[0].Status)
}

func TestManager_OpenTournamentFromRoster(t *testing.T) {
	marquee := models.Player{ID: uuid.New(), Name: "Marquee", Category: models.PlayerCategoryAPlus}
	squad := models.Player{ID: uuid.New(), Name: "Squad", Category: models.PlayerCategoryC, BasePrice: 2_000}
	roster := &Roster{
		Name:           "Monsoon Premier League",
		Status:         models.SessionStatusScheduled,
		BasePrice:      5_000,
		TeamBudget:     200_000,
		PlayersPerTeam: 11,
		Players:        []models.Player{squad, marquee},
		Teams:          []models.Team{{ID: uuid.New(), Name: "Thrissur Titans"}},
	}
	defaults := scenarioSettings()
	defaults.Ordering = models.OrderingCategory

	m := NewManager(ManagerConfig{Roster: stubRoster{roster: roster}, Defaults: defaults})
	t.Cleanup(m.Close)

	s, err := m.OpenTournament(context.Background(), organizer, uuid.New())
	require.NoError(t, err)

	snap := snapshot(t, s)
	assert.Equal(t, 11, snap.Settings.PlayersPerTeam)
	require.Len(t, snap.Lots, 2)
	assert.Equal(t, "Marquee", snap.Lots[0].Player.Name)
	assert.Equal(t, int64(5_000), snap.Lots[0].Player.BasePrice)
	assert.Equal(t, int64(2_000), snap.Lots[1].Player.BasePrice)
	assert.Equal(t, int64(200_000), snap.Teams[0].TotalBudget)
}

func TestManager_OpenTournamentErrors(t *testing.T) {
	t.Run("roster failure", func(t *testing.T) {
		m := NewManager(ManagerConfig{Roster: stubRoster{err: errors.New("connection refused")}, Defaults: scenarioSettings()})
		t.Cleanup(m.Close)
		_, err := m.OpenTournament(context.Background(), organizer, uuid.New())
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("auction already complete", func(t *testing.T) {
		roster := &Roster{Status: models.SessionStatusArchived, Players: players(1_000), Teams: []models.Team{{ID: uuid.New(), TotalBudget: 1}}}
		m := NewManager(ManagerConfig{Roster: stubRoster{roster: roster}, Defaults: scenarioSettings()})
		t.Cleanup(m.Close)
		_, err := m.OpenTournament(context.Background(), organizer, uuid.New())
		assert.Equal(t, KindConflict, KindOf(err))
	})
}

// gatedJournal holds SessionStarted appends until the gate opens or the
// caller gives up.
type gatedJournal struct {
	*MemoryJournal
	gated   atomic.Bool
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedJournal() *gatedJournal {
	return &gatedJournal{
		MemoryJournal: NewMemoryJournal(),
		entered:       make(chan struct{}, 1),
		release:       make(chan struct{}),
	}
}

func (j *gatedJournal) open() { j.once.Do(func() { close(j.release) }) }

func (j *gatedJournal) Append(ctx context.Context, e events.Event) error {
	if e.Type == events.TypeSessionStarted && j.gated.Load() {
		select {
		case j.entered <- struct{}{}:
		default:
		}
		select {
		case <-j.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.MemoryJournal.Append(ctx, e)
}

func TestManager_SlowOpenDoesNotBlockRunningSessions(t *testing.T) {
	journal := newGatedJournal()
	h := newHarness(t, journal)
	t.Cleanup(journal.open)
	running := h.open(t, scenarioSettings(), players(1_000))

	journal.gated.Store(true)
	req := OpenRequest{TournamentID: uuid.New(), Settings: scenarioSettings(), Players: players(1_000), Teams: []models.Team{h.teamA}}
	opened := make(chan error, 1)
	go func() {
		_, err := h.manager.Open(context.Background(), organizer, req)
		opened <- err
	}()

	select {
	case <-journal.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("session start was never journaled")
	}

	got := make(chan *Session, 1)
	go func() {
		s, _ := h.manager.Get(running.ID())
		got <- s
	}()
	select {
	case s := <-got:
		require.NotNil(t, s)
		assert.Equal(t, running.ID(), s.ID())
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Get blocked while another session was opening")
	}
	assert.Equal(t, models.SessionStatusLive, snapshot(t, running).Status)

	_, err := h.manager.Open(context.Background(), organizer, req)
	assert.ErrorIs(t, err, ErrSessionExists)

	journal.open()
	require.NoError(t, <-opened)
	_, err = h.manager.ForTournament(req.TournamentID)
	require.NoError(t, err)
}

func TestManager_OpenHonorsContextWhileJournaling(t *testing.T) {
	journal := newGatedJournal()
	h := newHarness(t, journal)
	t.Cleanup(journal.open)
	journal.gated.Store(true)

	req := OpenRequest{TournamentID: uuid.New(), Settings: scenarioSettings(), Players: players(1_000), Teams: []models.Team{h.teamA}}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := h.manager.Open(ctx, organizer, req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = h.manager.ForTournament(req.TournamentID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	journal.gated.Store(false)
	_, err = h.manager.Open(context.Background(), organizer, req)
	require.NoError(t, err)
}
