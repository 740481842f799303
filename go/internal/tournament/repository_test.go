package tournament

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/cricauction/go/internal/auction"
	"github.com/mcdev12/cricauction/go/internal/models"
	"github.com/mcdev12/cricauction/go/internal/tournament/db"
)

type fakeQuerier struct {
	tournaments map[uuid.UUID]db.GetTournamentRow
	players     map[uuid.UUID][]db.ListApprovedPlayersRow
	teams       map[uuid.UUID][]db.ListTournamentTeamsRow
	playersErr  error
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		tournaments: make(map[uuid.UUID]db.GetTournamentRow),
		players:     make(map[uuid.UUID][]db.ListApprovedPlayersRow),
		teams:       make(map[uuid.UUID][]db.ListTournamentTeamsRow),
	}
}

func (f *fakeQuerier) GetTournament(ctx context.Context, id uuid.UUID) (db.GetTournamentRow, error) {
	t, ok := f.tournaments[id]
	if !ok {
		return db.GetTournamentRow{}, pgx.ErrNoRows
	}
	return t, nil
}

func (f *fakeQuerier) ListApprovedPlayers(ctx context.Context, tournamentID uuid.UUID) ([]db.ListApprovedPlayersRow, error) {
	if f.playersErr != nil {
		return nil, f.playersErr
	}
	return f.players[tournamentID], nil
}

func (f *fakeQuerier) ListTournamentTeams(ctx context.Context, tournamentID uuid.UUID) ([]db.ListTournamentTeamsRow, error) {
	return f.teams[tournamentID], nil
}

func seedTournament(f *fakeQuerier, status db.TournamentStatus) (uuid.UUID, []uuid.UUID, []uuid.UUID) {
	id := uuid.New()
	f.tournaments[id] = db.GetTournamentRow{
		ID:             id,
		Name:           "Sunday League",
		Status:         status,
		BasePrice:      500,
		TeamBudget:     50_000,
		PlayersPerTeam: 2,
	}
	playerIDs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	f.players[id] = []db.ListApprovedPlayersRow{
		{
			PlayerID:       playerIDs[0],
			FullName:       pgtype.Text{String: "R. Sharma", Valid: true},
			PlayerCategory: db.NullPlayerCategory{PlayerCategory: db.PlayerCategoryB, Valid: true},
		},
		{
			PlayerID:       playerIDs[1],
			FullName:       pgtype.Text{String: "J. Bumrah", Valid: true},
			PlayerCategory: db.NullPlayerCategory{PlayerCategory: db.PlayerCategoryAPlus, Valid: true},
		},
		{PlayerID: playerIDs[2]},
	}
	teamIDs := []uuid.UUID{uuid.New(), uuid.New()}
	f.teams[id] = []db.ListTournamentTeamsRow{
		{ID: teamIDs[0], Name: "Strikers", BudgetRemaining: 50_000},
		{ID: teamIDs[1], Name: "Titans", BudgetRemaining: 45_000},
	}
	return id, playerIDs, teamIDs
}

func TestRepository_LoadRoster(t *testing.T) {
	q := newFakeQuerier()
	id, playerIDs, teamIDs := seedTournament(q, db.TournamentStatusAuctionScheduled)
	repo := NewRepository(q)

	roster, err := repo.LoadRoster(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, roster.TournamentID)
	assert.Equal(t, "Sunday League", roster.Name)
	assert.Equal(t, models.SessionStatusScheduled, roster.Status)
	assert.Equal(t, int64(500), roster.BasePrice)
	assert.Equal(t, int64(50_000), roster.TeamBudget)
	assert.Equal(t, 2, roster.PlayersPerTeam)

	require.Len(t, roster.Players, 3)
	assert.Equal(t, models.Player{ID: playerIDs[0], Name: "R. Sharma", Category: models.PlayerCategoryB}, roster.Players[0])
	assert.Equal(t, models.PlayerCategoryAPlus, roster.Players[1].Category)
	assert.Equal(t, models.Player{ID: playerIDs[2]}, roster.Players[2])

	require.Len(t, roster.Teams, 2)
	assert.Equal(t, teamIDs[0], roster.Teams[0].ID)
	assert.Equal(t, int64(45_000), roster.Teams[1].TotalBudget)
	assert.NotNil(t, roster.Teams[1].Roster)
}

func TestRepository_LoadRosterStatus(t *testing.T) {
	tests := []struct {
		status  db.TournamentStatus
		want    models.SessionStatus
		wantErr bool
	}{
		{status: db.TournamentStatusRegistrationClosed, want: models.SessionStatusScheduled},
		{status: db.TournamentStatusAuctionScheduled, want: models.SessionStatusScheduled},
		{status: db.TournamentStatusAuctionLive, want: models.SessionStatusLive},
		{status: db.TournamentStatusAuctionComplete, want: models.SessionStatusArchived},
		{status: db.TournamentStatusCompleted, want: models.SessionStatusArchived},
		{status: db.TournamentStatusCancelled, want: models.SessionStatusCancelled},
		{status: db.TournamentStatusDraft, wantErr: true},
		{status: db.TournamentStatusRegistrationOpen, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			q := newFakeQuerier()
			id, _, _ := seedTournament(q, tt.status)

			roster, err := NewRepository(q).LoadRoster(context.Background(), id)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, auction.KindConflict, auction.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, roster.Status)
		})
	}
}

func TestRepository_LoadRosterErrors(t *testing.T) {
	q := newFakeQuerier()
	repo := NewRepository(q)

	_, err := repo.LoadRoster(context.Background(), uuid.New())
	assert.ErrorIs(t, err, auction.ErrTournamentNotFound)

	id, _, _ := seedTournament(q, db.TournamentStatusAuctionScheduled)
	boom := errors.New("connection reset")
	q.playersErr = boom
	_, err = repo.LoadRoster(context.Background(), id)
	assert.ErrorIs(t, err, boom)
}

func TestRepository_OpensSessionThroughManager(t *testing.T) {
	q := newFakeQuerier()
	id, _, teamIDs := seedTournament(q, db.TournamentStatusAuctionScheduled)

	defaults := auction.DefaultSettings()
	defaults.MinIncrement = 100
	defaults.PlayersPerTeam = 5
	defaults.Ordering = models.OrderingCategory

	manager := auction.NewManager(auction.ManagerConfig{
		Clock:    clockwork.NewFakeClock(),
		Roster:   NewRepository(q),
		Defaults: defaults,
	})
	t.Cleanup(manager.Close)

	organizer := auction.Principal{UserID: "org", Roles: []auction.Role{auction.RoleOrganizer}}
	session, err := manager.OpenTournament(context.Background(), organizer, id)
	require.NoError(t, err)

	snap, err := session.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Settings.PlayersPerTeam)
	require.Len(t, snap.Lots, 3)
	assert.Equal(t, models.PlayerCategoryAPlus, snap.Lots[0].Player.Category)
	for _, lot := range snap.Lots {
		assert.Equal(t, int64(500), lot.Player.BasePrice)
	}
	require.Len(t, snap.Teams, 2)
	assert.Equal(t, teamIDs[1], snap.Teams[1].ID)
	assert.Equal(t, int64(45_000), snap.Teams[1].TotalBudget)
}
