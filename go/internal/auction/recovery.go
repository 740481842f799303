package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/cricauction/go/internal/auction/events"
	"github.com/mcdev12/cricauction/go/internal/models"
)

// rebuilt is session state reduced from journal records.
type rebuilt struct {
	state   models.Session
	ledger  *Ledger
	history map[uuid.UUID][]models.BidRecord
	seq     int64
	// clockAt is when the active lot's Remaining was last journaled.
	clockAt time.Time
}

// Rebuild reduces a session's journal into its state. Records must start with
// SessionStarted and carry contiguous sequence numbers.
func Rebuild(records []events.Event) (models.Session, int64, error) {
	r, err := reduce(records)
	if err != nil {
		return models.Session{}, 0, err
	}
	r.state.Teams = r.ledger.Teams()
	return r.state, r.seq, nil
}

func reduce(records []events.Event) (*rebuilt, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("empty journal")
	}
	if records[0].Type != events.TypeSessionStarted {
		return nil, fmt.Errorf("journal starts with %s, want %s", records[0].Type, events.TypeSessionStarted)
	}

	r := &rebuilt{history: make(map[uuid.UUID][]models.BidRecord)}
	for _, e := range records {
		if e.Seq != r.seq+1 {
			return nil, fmt.Errorf("journal gap: seq %d follows %d", e.Seq, r.seq)
		}
		if err := r.apply(e); err != nil {
			return nil, fmt.Errorf("failed to apply %s (seq %d): %w", e.Type, e.Seq, err)
		}
		r.seq = e.Seq
	}
	return r, nil
}

func (r *rebuilt) lot(id uuid.UUID) (*models.Lot, error) {
	i := lotIndex(r.state.Lots, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrLotNotFound, id)
	}
	return &r.state.Lots[i], nil
}

func (r *rebuilt) apply(e events.Event) error {
	payload, err := events.ParsePayload(e)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case *events.SessionStartedPayload:
		startedAt := p.StartedAt
		r.state = models.Session{
			ID:           e.SessionID,
			TournamentID: p.TournamentID,
			Status:       models.SessionStatusLive,
			Settings:     p.Settings,
			Lots:         p.Lots,
			Teams:        p.Teams,
			CreatedAt:    p.CreatedAt,
			StartedAt:    &startedAt,
		}
		r.ledger = NewLedger(p.Teams, p.Settings.PlayersPerTeam)

	case *events.LotActivatedPayload:
		lot, err := r.lot(p.LotID)
		if err != nil {
			return err
		}
		if lot.Status == models.LotStatusPending {
			if err := activateLot(lot, p.ActivatedAt, p.Remaining); err != nil {
				return err
			}
		}
		at := p.ActivatedAt
		lot.ActivatedAt = &at
		lot.Remaining = p.Remaining
		r.clockAt = e.OccurredAt

	case *events.BidAcceptedPayload:
		lot, err := r.lot(p.Bid.LotID)
		if err != nil {
			return err
		}
		applyBid(lot, p.Bid)
		lot.Remaining = p.Remaining
		r.clockAt = e.OccurredAt
		r.history[lot.ID] = append(r.history[lot.ID], models.BidRecord{Bid: p.Bid, Accepted: true})

	case *events.BidRejectedPayload:
		r.history[p.Bid.LotID] = append(r.history[p.Bid.LotID], models.BidRecord{Bid: p.Bid, Reason: p.Reason})

	case *events.ClockCheckpointPayload:
		lot, err := r.lot(p.LotID)
		if err != nil {
			return err
		}
		lot.Remaining = p.Remaining
		r.clockAt = e.OccurredAt

	case *events.LotSoldPayload:
		lot, err := r.lot(p.LotID)
		if err != nil {
			return err
		}
		if lot.LeadingBid == nil || lot.LeadingBid.TeamID != p.TeamID || lot.LeadingBid.Amount != p.Price {
			return fmt.Errorf("lot %s sold to %s at %d does not match its leading bid", lot.ID, p.TeamID, p.Price)
		}
		if _, err := resolveLot(lot, p.SoldAt); err != nil {
			return err
		}
		if err := r.ledger.Settle(p.TeamID, lot.ID, lot.Player, p.Price, p.SoldAt); err != nil {
			return err
		}

	case *events.LotUnsoldPayload:
		lot, err := r.lot(p.LotID)
		if err != nil {
			return err
		}
		if _, err := resolveLot(lot, p.ResolvedAt); err != nil {
			return err
		}

	case *events.LotReopenedPayload:
		lot, err := r.lot(p.LotID)
		if err != nil {
			return err
		}
		if err := reopenLot(lot, p.ReopenedAt, r.state.Settings.LotDuration); err != nil {
			return err
		}
		lot.Round = p.Round
		r.clockAt = e.OccurredAt

	case *events.SessionPausedPayload:
		r.state.Status = models.SessionStatusPaused
		if p.LotID != nil {
			lot, err := r.lot(*p.LotID)
			if err != nil {
				return err
			}
			lot.Remaining = p.Remaining
		}

	case *events.SessionResumedPayload:
		r.state.Status = models.SessionStatusLive
		if p.LotID != nil {
			lot, err := r.lot(*p.LotID)
			if err != nil {
				return err
			}
			lot.Remaining = p.Remaining
			r.clockAt = e.OccurredAt
		}

	case *events.SessionArchivedPayload:
		at := p.CompletedAt
		r.state.Status = models.SessionStatusArchived
		r.state.CompletedAt = &at

	case *events.SessionCancelledPayload:
		at := p.CancelledAt
		r.state.Status = models.SessionStatusCancelled
		r.state.CompletedAt = &at

	case *events.FaultRaisedPayload:
		if p.Halted {
			r.state.Status = models.SessionStatusHalted
		}
	}
	return nil
}

// SnapshotFromJournal builds a viewer snapshot without a running session. A
// live lot's remaining time is projected from its last journaled value to now.
func SnapshotFromJournal(records []events.Event, now time.Time) (Snapshot, error) {
	r, err := reduce(records)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		SessionID:    r.state.ID,
		TournamentID: r.state.TournamentID,
		Status:       r.state.Status,
		Seq:          r.seq,
		Settings:     r.state.Settings,
		Lots:         cloneLots(r.state.Lots),
		Teams:        r.ledger.Teams(),
		StartedAt:    r.state.StartedAt,
		CompletedAt:  r.state.CompletedAt,
		TakenAt:      now,
	}
	if i := activeLotIndex(snap.Lots); i >= 0 {
		lot := &snap.Lots[i]
		if snap.Status == models.SessionStatusLive {
			deadline := r.clockAt.Add(lot.Remaining)
			lot.Remaining = max(deadline.Sub(now), 0)
			snap.TimeoutAt = &deadline
		}
		active := *lot
		snap.ActiveLot = &active
		snap.MinNextBid = MinValidAmount(snap.Settings, active)
	}
	return snap, nil
}

// restoreSession rebuilds a session from its journal and re-arms its timers.
// An active lot resumes from its last checkpoint rounded down to whole seconds.
func restoreSession(parent context.Context, records []events.Event, clock Clock, journal Journal, broadcaster Broadcaster) (*Session, error) {
	r, err := reduce(records)
	if err != nil {
		return nil, err
	}
	r.state.Teams = r.ledger.Teams()

	s := newSession(parent, r.state, r.seq, clock, journal, broadcaster)
	s.history = r.history
	if lot := s.activeLot(); lot != nil {
		lot.Remaining = lot.Remaining.Truncate(time.Second)
	}
	s.rearm()

	s.logger.Info().
		Int64("seq", s.seq).
		Str("status", string(s.state.Status)).
		Msg("session restored from journal")
	return s, nil
}

// resync replaces the session's state with the journal's. A live lot keeps
// the deadline projected from its last journaled clock.
func (s *Session) resync() error {
	records, err := s.journal.Load(s.ctx, s.id)
	if err != nil {
		return err
	}
	r, err := reduce(records)
	if err != nil {
		return err
	}
	s.stopTimers()
	r.state.Teams = r.ledger.Teams()
	s.state = r.state
	s.ledger = r.ledger
	s.history = r.history
	s.seq = r.seq
	if lot := s.activeLot(); lot != nil && s.state.Status == models.SessionStatusLive {
		lot.Remaining = max(r.clockAt.Add(lot.Remaining).Sub(s.clock.Now()), 0)
	}
	s.rearm()
	return nil
}

// rearm starts the timers the current state calls for.
func (s *Session) rearm() {
	lot := s.activeLot()
	switch {
	case lot != nil && s.state.Status == models.SessionStatusLive:
		s.countdown.Start(lot.Remaining)
		s.scheduleCheckpoint()
	case lot != nil && s.state.Status == models.SessionStatusPaused:
		s.countdown.Hold(lot.Remaining)
	case lot == nil && s.state.Status == models.SessionStatusLive:
		s.scheduleAutoAdvance()
	}
}
