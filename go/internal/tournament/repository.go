package tournament

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mcdev12/cricauction/go/internal/auction"
	"github.com/mcdev12/cricauction/go/internal/models"
	"github.com/mcdev12/cricauction/go/internal/tournament/db"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	GetTournament(ctx context.Context, id uuid.UUID) (db.GetTournamentRow, error)
	ListApprovedPlayers(ctx context.Context, tournamentID uuid.UUID) ([]db.ListApprovedPlayersRow, error)
	ListTournamentTeams(ctx context.Context, tournamentID uuid.UUID) ([]db.ListTournamentTeamsRow, error)
}

// Repository reads a tournament's auction roster
type Repository struct {
	queries Querier
}

// NewRepository creates a new tournament repository
func NewRepository(querier Querier) *Repository {
	return &Repository{
		queries: querier,
	}
}

var _ auction.RosterSource = (*Repository)(nil)

// LoadRoster returns the approved players, the teams and the money rules of a
// tournament whose registration has closed.
func (r *Repository) LoadRoster(ctx context.Context, tournamentID uuid.UUID) (*auction.Roster, error) {
	t, err := r.queries.GetTournament(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", auction.ErrTournamentNotFound, tournamentID)
		}
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}

	status, err := sessionStatus(t.Status)
	if err != nil {
		return nil, err
	}

	dbPlayers, err := r.queries.ListApprovedPlayers(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved players: %w", err)
	}
	dbTeams, err := r.queries.ListTournamentTeams(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournament teams: %w", err)
	}

	players := make([]models.Player, len(dbPlayers))
	for i, p := range dbPlayers {
		players[i] = r.dbPlayerToModel(p)
	}
	teams := make([]models.Team, len(dbTeams))
	for i, team := range dbTeams {
		teams[i] = models.Team{
			ID:          team.ID,
			Name:        team.Name,
			TotalBudget: team.BudgetRemaining,
			Roster:      []models.RosterEntry{},
		}
	}

	return &auction.Roster{
		TournamentID:   t.ID,
		Name:           t.Name,
		Status:         status,
		BasePrice:      t.BasePrice,
		TeamBudget:     t.TeamBudget,
		PlayersPerTeam: int(t.PlayersPerTeam),
		Players:        players,
		Teams:          teams,
	}, nil
}

func (r *Repository) dbPlayerToModel(p db.ListApprovedPlayersRow) models.Player {
	player := models.Player{ID: p.PlayerID}
	if p.FullName.Valid {
		player.Name = p.FullName.String
	}
	if p.PlayerCategory.Valid {
		player.Category = playerCategory(p.PlayerCategory.PlayerCategory)
	}
	return player
}

// sessionStatus maps the tournament lifecycle onto the auction session status.
// Tournaments still taking registrations have no auction yet.
func sessionStatus(s db.TournamentStatus) (models.SessionStatus, error) {
	switch s {
	case db.TournamentStatusRegistrationClosed, db.TournamentStatusAuctionScheduled:
		return models.SessionStatusScheduled, nil
	case db.TournamentStatusAuctionLive:
		return models.SessionStatusLive, nil
	case db.TournamentStatusAuctionComplete, db.TournamentStatusInProgress, db.TournamentStatusCompleted:
		return models.SessionStatusArchived, nil
	case db.TournamentStatusCancelled:
		return models.SessionStatusCancelled, nil
	default:
		return "", &auction.Error{
			Kind: auction.KindConflict,
			Op:   "load roster",
			Msg:  fmt.Sprintf("tournament is in %s, registration must close before the auction", s),
		}
	}
}

func playerCategory(c db.PlayerCategory) models.PlayerCategory {
	switch c {
	case db.PlayerCategoryAPlus:
		return models.PlayerCategoryAPlus
	case db.PlayerCategoryA:
		return models.PlayerCategoryA
	case db.PlayerCategoryB:
		return models.PlayerCategoryB
	case db.PlayerCategoryC:
		return models.PlayerCategoryC
	default:
		return ""
	}
}
