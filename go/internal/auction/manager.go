package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/cricauction/go/internal/auction/events"
	"github.com/mcdev12/cricauction/go/internal/models"
)

// Roster is what a tournament contributes to an auction: the approved
// players, the teams and the tournament-level money rules.
type Roster struct {
	TournamentID   uuid.UUID
	Name           string
	Status         models.SessionStatus
	BasePrice      int64
	TeamBudget     int64
	PlayersPerTeam int
	Players        []models.Player
	Teams          []models.Team
}

// RosterSource loads a tournament's roster once at session start.
type RosterSource interface {
	LoadRoster(ctx context.Context, tournamentID uuid.UUID) (*Roster, error)
}

// ManagerConfig wires a Manager to its collaborators.
type ManagerConfig struct {
	Clock       Clock
	Journal     Journal
	Broadcaster Broadcaster
	Roster      RosterSource
	Defaults    models.AuctionSettings
}

// OpenRequest describes a new session. Players are given in organizer order.
type OpenRequest struct {
	SessionID    uuid.UUID
	TournamentID uuid.UUID
	Settings     models.AuctionSettings
	Players      []models.Player
	Teams        []models.Team
}

// Manager is the registry of running sessions.
type Manager struct {
	clock       Clock
	journal     Journal
	broadcaster Broadcaster
	roster      RosterSource
	defaults    models.AuctionSettings

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	sessions     map[uuid.UUID]*Session
	byTournament map[uuid.UUID]uuid.UUID
	// opening holds ids reserved by Open while their start is journaled.
	opening map[uuid.UUID]struct{}
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Journal == nil {
		cfg.Journal = NewMemoryJournal()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		clock:        cfg.Clock,
		journal:      cfg.Journal,
		broadcaster:  cfg.Broadcaster,
		roster:       cfg.Roster,
		defaults:     cfg.Defaults,
		ctx:          ctx,
		cancel:       cancel,
		sessions:     make(map[uuid.UUID]*Session),
		byTournament: make(map[uuid.UUID]uuid.UUID),
		opening:      make(map[uuid.UUID]struct{}),
	}
}

// Defaults returns the settings applied to sessions opened from a roster.
func (m *Manager) Defaults() models.AuctionSettings { return m.defaults }

// Open validates req, journals the session start and starts its goroutine.
// The registry stays unlocked while the start is journaled.
func (m *Manager) Open(ctx context.Context, p Principal, req OpenRequest) (*Session, error) {
	if !p.CanAdminister() {
		return nil, fmt.Errorf("%w: %s may not open an auction", ErrForbidden, p.UserID)
	}
	settings := normalizeSettings(req.Settings)
	if err := validateSettings(settings); err != nil {
		return nil, &Error{Kind: KindValidation, Op: "open", Msg: err.Error()}
	}
	if err := validateRoster(req.Players, req.Teams); err != nil {
		return nil, &Error{Kind: KindValidation, Op: "open", Msg: err.Error()}
	}

	sessionID := req.SessionID
	if sessionID == uuid.Nil {
		sessionID = uuid.New()
	}

	if err := m.reserve(sessionID, req.TournamentID); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	lots := make([]models.Lot, len(req.Players))
	for i, player := range req.Players {
		lots[i] = models.Lot{
			ID:       uuid.New(),
			Player:   player,
			Position: i + 1,
			Status:   models.LotStatusPending,
		}
	}
	lots = sequenceLots(lots, settings)

	teams := make([]models.Team, len(req.Teams))
	for i, t := range req.Teams {
		teams[i] = models.Team{ID: t.ID, Name: t.Name, TotalBudget: t.TotalBudget, Roster: []models.RosterEntry{}}
	}

	state := models.Session{
		ID:           sessionID,
		TournamentID: req.TournamentID,
		Status:       models.SessionStatusLive,
		Settings:     settings,
		Lots:         lots,
		Teams:        teams,
		CreatedAt:    now,
		StartedAt:    &now,
	}

	s := newSession(m.ctx, state, 0, m.clock, m.journal, m.broadcaster)
	e, err := s.appendEvent(ctx, events.TypeSessionStarted, p.UserID, events.SessionStartedPayload{
		TournamentID: req.TournamentID,
		Settings:     settings,
		Lots:         lots,
		Teams:        teams,
		CreatedAt:    now,
		StartedAt:    now,
	})
	if err != nil {
		s.cancel()
		m.release(sessionID, req.TournamentID)
		if errors.Is(err, ErrSeqTaken) {
			return nil, fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
		}
		return nil, err
	}
	s.scheduleAutoAdvance()
	s.publish(e)
	s.start()

	m.mu.Lock()
	delete(m.opening, sessionID)
	m.sessions[sessionID] = s
	m.mu.Unlock()

	log.Info().
		Str("session_id", sessionID.String()).
		Str("tournament_id", req.TournamentID.String()).
		Str("actor", p.UserID).
		Int("lots", len(lots)).
		Int("teams", len(teams)).
		Msg("auction session opened")
	return s, nil
}

func (m *Manager) reserve(sessionID, tournamentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, running := m.sessions[sessionID]
	_, opening := m.opening[sessionID]
	if running || opening {
		return fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}
	if existing, exists := m.byTournament[tournamentID]; exists {
		return fmt.Errorf("%w: tournament %s has session %s", ErrSessionExists, tournamentID, existing)
	}
	m.opening[sessionID] = struct{}{}
	m.byTournament[tournamentID] = sessionID
	return nil
}

func (m *Manager) release(sessionID, tournamentID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.opening, sessionID)
	if m.byTournament[tournamentID] == sessionID {
		delete(m.byTournament, tournamentID)
	}
}

// OpenTournament loads the tournament's roster and opens a session with the
// manager's default rules.
func (m *Manager) OpenTournament(ctx context.Context, p Principal, tournamentID uuid.UUID) (*Session, error) {
	if !p.CanAdminister() {
		return nil, fmt.Errorf("%w: %s may not open an auction", ErrForbidden, p.UserID)
	}
	if m.roster == nil {
		return nil, fmt.Errorf("no roster source configured")
	}
	roster, err := m.roster.LoadRoster(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster for tournament %s: %w", tournamentID, err)
	}
	if roster.Status != "" && roster.Status != models.SessionStatusScheduled {
		return nil, conflict("open", nil, "tournament %s auction is %s", tournamentID, roster.Status)
	}

	settings := m.defaults
	if roster.PlayersPerTeam > 0 {
		settings.PlayersPerTeam = roster.PlayersPerTeam
	}

	players := make([]models.Player, len(roster.Players))
	for i, pl := range roster.Players {
		if pl.BasePrice == 0 {
			pl.BasePrice = roster.BasePrice
		}
		players[i] = pl
	}
	teams := make([]models.Team, len(roster.Teams))
	for i, t := range roster.Teams {
		if t.TotalBudget == 0 {
			t.TotalBudget = roster.TeamBudget
		}
		teams[i] = t
	}

	return m.Open(ctx, p, OpenRequest{
		TournamentID: tournamentID,
		Settings:     settings,
		Players:      players,
		Teams:        teams,
	})
}

// Get returns a running session.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// ForTournament returns the session opened for tournamentID.
func (m *Manager) ForTournament(tournamentID uuid.UUID) (*Session, error) {
	m.mu.RLock()
	id, ok := m.byTournament[tournamentID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tournament %s", ErrSessionNotFound, tournamentID)
	}
	return m.Get(id)
}

// Recover restores every session the journal still considers open. Sessions
// that fail to restore are reported and skipped.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	ids, err := m.journal.OpenSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list open sessions: %w", err)
	}

	var errs []error
	restored := 0
	for _, id := range ids {
		records, err := m.journal.Load(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
			continue
		}
		s, err := restoreSession(m.ctx, records, m.clock, m.journal, m.broadcaster)
		if err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
			continue
		}

		m.mu.Lock()
		_, opening := m.opening[id]
		if _, exists := m.sessions[id]; exists || opening {
			m.mu.Unlock()
			s.cancel()
			continue
		}
		m.sessions[id] = s
		m.byTournament[s.state.TournamentID] = id
		m.mu.Unlock()

		s.start()
		restored++
	}

	log.Info().Int("restored", restored).Int("failed", len(errs)).Msg("auction sessions recovered")
	return restored, errors.Join(errs...)
}

// Close stops all sessions and waits for their goroutines to exit.
func (m *Manager) Close() {
	m.cancel()
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()
	for _, s := range sessions {
		<-s.Done()
	}
}

func validateRoster(players []models.Player, teams []models.Team) error {
	if len(players) == 0 {
		return fmt.Errorf("at least one player is required")
	}
	if len(teams) == 0 {
		return fmt.Errorf("at least one team is required")
	}
	seenPlayers := make(map[uuid.UUID]struct{}, len(players))
	for _, p := range players {
		if p.ID == uuid.Nil {
			return fmt.Errorf("player %q has no id", p.Name)
		}
		if _, dup := seenPlayers[p.ID]; dup {
			return fmt.Errorf("player %s listed twice", p.ID)
		}
		seenPlayers[p.ID] = struct{}{}
		if p.BasePrice < 0 {
			return fmt.Errorf("player %s has a negative base price", p.ID)
		}
	}
	seenTeams := make(map[uuid.UUID]struct{}, len(teams))
	for _, t := range teams {
		if t.ID == uuid.Nil {
			return fmt.Errorf("team %q has no id", t.Name)
		}
		if _, dup := seenTeams[t.ID]; dup {
			return fmt.Errorf("team %s listed twice", t.ID)
		}
		seenTeams[t.ID] = struct{}{}
		if t.TotalBudget <= 0 {
			return fmt.Errorf("team %s must have a positive budget", t.ID)
		}
	}
	return nil
}
