package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the status of a tournament auction session.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "SCHEDULED"
	SessionStatusLive      SessionStatus = "LIVE"
	SessionStatusPaused    SessionStatus = "PAUSED"
	SessionStatusArchived  SessionStatus = "ARCHIVED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
	SessionStatusHalted    SessionStatus = "HALTED"
)

// IsTerminal reports whether no further mutation is accepted in this status.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusArchived, SessionStatusCancelled, SessionStatusHalted:
		return true
	default:
		return false
	}
}

// LotStatus defines the lifecycle status of a single lot.
type LotStatus string

const (
	LotStatusPending LotStatus = "PENDING"
	LotStatusActive  LotStatus = "ACTIVE"
	LotStatusSold    LotStatus = "SOLD"
	LotStatusUnsold  LotStatus = "UNSOLD"
)

// IsTerminal reports whether the lot has been resolved.
func (s LotStatus) IsTerminal() bool {
	return s == LotStatusSold || s == LotStatusUnsold
}

// PlayerCategory is the organizer-assigned grade of a player.
type PlayerCategory string

const (
	PlayerCategoryAPlus PlayerCategory = "A_PLUS"
	PlayerCategoryA     PlayerCategory = "A"
	PlayerCategoryB     PlayerCategory = "B"
	PlayerCategoryC     PlayerCategory = "C"
)

// OrderingMode defines how lots are sequenced.
type OrderingMode string

const (
	OrderingOrganizer OrderingMode = "ORGANIZER"
	OrderingCategory  OrderingMode = "CATEGORY"
)

// IncrementTier raises the minimum increment once the current price reaches From.
type IncrementTier struct {
	From      int64 `json:"from" yaml:"from"`
	Increment int64 `json:"increment" yaml:"increment"`
}

// AuctionSettings holds the rules of one auction session.
type AuctionSettings struct {
	LotDuration        time.Duration    `json:"lot_duration"`
	AntiSnipeWindow    time.Duration    `json:"anti_snipe_window"`
	MinIncrement       int64            `json:"min_increment"`
	IncrementTiers     []IncrementTier  `json:"increment_tiers,omitempty"`
	PlayersPerTeam     int              `json:"players_per_team"`
	AllowSelfRaise     bool             `json:"allow_self_raise"`
	OpenAtBasePrice    bool             `json:"open_at_base_price"`
	Ordering           OrderingMode     `json:"ordering"`
	CategoryOrder      []PlayerCategory `json:"category_order,omitempty"`
	CheckpointInterval time.Duration    `json:"checkpoint_interval"`
	AutoAdvance        bool             `json:"auto_advance"`
	AdvanceDelay       time.Duration    `json:"advance_delay"`
}

// Player is the identity of the player being auctioned.
type Player struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Category  PlayerCategory `json:"category"`
	BasePrice int64          `json:"base_price"`
}

// Bid is an attempted claim on the active lot.
type Bid struct {
	ID          uuid.UUID `json:"id"`
	LotID       uuid.UUID `json:"lot_id"`
	TeamID      uuid.UUID `json:"team_id"`
	Amount      int64     `json:"amount"`
	SubmittedAt time.Time `json:"submitted_at"`
	ReceivedAt  time.Time `json:"received_at"`
}

// BidRecord is the audit entry for every bid attempt, accepted or not.
type BidRecord struct {
	Bid      Bid    `json:"bid"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Lot represents one player up for auction.
type Lot struct {
	ID          uuid.UUID     `json:"id"`
	Player      Player        `json:"player"`
	Position    int           `json:"position"`
	Status      LotStatus     `json:"status"`
	LeadingBid  *Bid          `json:"leading_bid,omitempty"`
	Remaining   time.Duration `json:"remaining"`
	Round       int           `json:"round"`
	WinnerID    *uuid.UUID    `json:"winner_id,omitempty"`
	SoldPrice   int64         `json:"sold_price,omitempty"`
	ActivatedAt *time.Time    `json:"activated_at,omitempty"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
}

// RosterEntry is a player bought by a team.
type RosterEntry struct {
	PlayerID   uuid.UUID `json:"player_id"`
	PlayerName string    `json:"player_name"`
	LotID      uuid.UUID `json:"lot_id"`
	Price      int64     `json:"price"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Team is a participant with a budget ledger and a roster.
type Team struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	TotalBudget int64         `json:"total_budget"`
	Spent       int64         `json:"spent"`
	Roster      []RosterEntry `json:"roster"`
}

// Remaining returns the budget still available to the team.
func (t Team) Remaining() int64 {
	return t.TotalBudget - t.Spent
}

// Session is a tournament's auction phase.
type Session struct {
	ID           uuid.UUID       `json:"id"`
	TournamentID uuid.UUID       `json:"tournament_id"`
	Status       SessionStatus   `json:"status"`
	Settings     AuctionSettings `json:"settings"`
	Lots         []Lot           `json:"lots"`
	Teams        []Team          `json:"teams"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}
