package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/cricauction/go/internal/models"
)

// Event payload types shared between the engine, the journal and the gateway.

// SessionStartedPayload carries the full initial state of a session. Recovery
// starts from it, so it must contain everything read from the roster source.
type SessionStartedPayload struct {
	TournamentID uuid.UUID              `json:"tournament_id"`
	Settings     models.AuctionSettings `json:"settings"`
	Lots         []models.Lot           `json:"lots"`
	Teams        []models.Team          `json:"teams"`
	CreatedAt    time.Time              `json:"created_at"`
	StartedAt    time.Time              `json:"started_at"`
}

// LotActivatedPayload is the payload for a LotActivated event
type LotActivatedPayload struct {
	LotID       uuid.UUID             `json:"lot_id"`
	PlayerID    uuid.UUID             `json:"player_id"`
	PlayerName  string                `json:"player_name"`
	Category    models.PlayerCategory `json:"category"`
	BasePrice   int64                 `json:"base_price"`
	Round       int                   `json:"round"`
	Remaining   time.Duration         `json:"remaining"`
	ActivatedAt time.Time             `json:"activated_at"`
	TimeoutAt   time.Time             `json:"timeout_at"`
}

// BidAcceptedPayload is the payload for a BidAccepted event
type BidAcceptedPayload struct {
	Bid       models.Bid    `json:"bid"`
	Remaining time.Duration `json:"remaining"`
	TimeoutAt time.Time     `json:"timeout_at"`
	Extended  bool          `json:"extended"`
}

// BidRejectedPayload is journaled for audit only.
type BidRejectedPayload struct {
	Bid    models.Bid `json:"bid"`
	Reason string     `json:"reason"`
}

// LotSoldPayload is the payload for a LotSold event
type LotSoldPayload struct {
	LotID    uuid.UUID `json:"lot_id"`
	PlayerID uuid.UUID `json:"player_id"`
	TeamID   uuid.UUID `json:"team_id"`
	Price    int64     `json:"price"`
	Forced   bool      `json:"forced,omitempty"`
	SoldAt   time.Time `json:"sold_at"`
}

// LotUnsoldPayload is the payload for a LotUnsold event
type LotUnsoldPayload struct {
	LotID      uuid.UUID `json:"lot_id"`
	PlayerID   uuid.UUID `json:"player_id"`
	Forced     bool      `json:"forced,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// LotReopenedPayload is the payload for a LotReopened event
type LotReopenedPayload struct {
	LotID      uuid.UUID `json:"lot_id"`
	Round      int       `json:"round"`
	ReopenedAt time.Time `json:"reopened_at"`
}

// SessionPausedPayload is the payload for a SessionPaused event
type SessionPausedPayload struct {
	LotID     *uuid.UUID    `json:"lot_id,omitempty"`
	Remaining time.Duration `json:"remaining"`
	Reason    string        `json:"reason"`
	PausedAt  time.Time     `json:"paused_at"`
}

// SessionResumedPayload is the payload for a SessionResumed event
type SessionResumedPayload struct {
	LotID     *uuid.UUID    `json:"lot_id,omitempty"`
	Remaining time.Duration `json:"remaining"`
	ResumedAt time.Time     `json:"resumed_at"`
	TimeoutAt *time.Time    `json:"timeout_at,omitempty"`
}

// SessionArchivedPayload is the payload for a SessionArchived event
type SessionArchivedPayload struct {
	CompletedAt time.Time `json:"completed_at"`
	Duration    string    `json:"duration"`
	LotsSold    int       `json:"lots_sold"`
	LotsUnsold  int       `json:"lots_unsold"`
}

// SessionCancelledPayload is the payload for a SessionCancelled event
type SessionCancelledPayload struct {
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// FaultRaisedPayload reports a consistency fault to organizer tooling.
type FaultRaisedPayload struct {
	Kind     string     `json:"kind"`
	Op       string     `json:"op"`
	Message  string     `json:"message"`
	LotID    *uuid.UUID `json:"lot_id,omitempty"`
	TeamID   *uuid.UUID `json:"team_id,omitempty"`
	Halted   bool       `json:"halted"`
	RaisedAt time.Time  `json:"raised_at"`
}

// ClockCheckpointPayload persists the remaining time of the active lot.
type ClockCheckpointPayload struct {
	LotID     uuid.UUID     `json:"lot_id"`
	Remaining time.Duration `json:"remaining"`
}
