package auction

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/cricauction/go/internal/auction/events"
	"github.com/mcdev12/cricauction/go/internal/models"
)

const (
	inboxSize        = 64
	resolveRetryWait = time.Second
)

// Broadcaster fans state deltas out to live viewers. Implementations must not
// block the caller.
type Broadcaster interface {
	Broadcast(e events.Event)
}

// Journal is the write-ahead log of session events.
type Journal interface {
	Append(ctx context.Context, e events.Event) error
	Load(ctx context.Context, sessionID uuid.UUID) ([]events.Event, error)
	OpenSessions(ctx context.Context) ([]uuid.UUID, error)
}

// BidRequest is a bid as submitted by a team.
type BidRequest struct {
	LotID       uuid.UUID `json:"lot_id"`
	TeamID      uuid.UUID `json:"team_id"`
	Amount      int64     `json:"amount"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// BidReceipt describes an accepted bid.
type BidReceipt struct {
	Bid       models.Bid    `json:"bid"`
	Remaining time.Duration `json:"remaining"`
	TimeoutAt time.Time     `json:"timeout_at"`
	Extended  bool          `json:"extended"`
	Seq       int64         `json:"seq"`
}

// Snapshot is the full state a reconnecting viewer needs.
type Snapshot struct {
	SessionID    uuid.UUID              `json:"session_id"`
	TournamentID uuid.UUID              `json:"tournament_id"`
	Status       models.SessionStatus   `json:"status"`
	Seq          int64                  `json:"seq"`
	Settings     models.AuctionSettings `json:"settings"`
	ActiveLot    *models.Lot            `json:"active_lot,omitempty"`
	MinNextBid   int64                  `json:"min_next_bid,omitempty"`
	TimeoutAt    *time.Time             `json:"timeout_at,omitempty"`
	Lots         []models.Lot           `json:"lots"`
	Teams        []models.Team          `json:"teams"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	TakenAt      time.Time              `json:"taken_at"`
}

type msg interface{ isSessionMsg() }

type result[T any] struct {
	val T
	err error
}

type submitMsg struct {
	actor Principal
	req   BidRequest
	reply chan result[*BidReceipt]
}

type advanceMsg struct {
	actor Principal
	reply chan result[*models.Lot]
}

type pauseMsg struct {
	actor  Principal
	reason string
	reply  chan result[struct{}]
}

type resumeMsg struct {
	actor Principal
	reply chan result[struct{}]
}

type cancelMsg struct {
	actor  Principal
	reason string
	reply  chan result[struct{}]
}

type forceResolveMsg struct {
	actor Principal
	reply chan result[*models.Lot]
}

type reauctionMsg struct {
	actor Principal
	lotID uuid.UUID
	reply chan result[*models.Lot]
}

type snapshotMsg struct {
	reply chan result[Snapshot]
}

type historyMsg struct {
	lotID uuid.UUID
	reply chan result[[]models.BidRecord]
}

// expireMsg is sent by the countdown when its timer fires.
type expireMsg struct{ gen uint64 }

type checkpointMsg struct{ gen uint64 }

type autoAdvanceMsg struct{ gen uint64 }

func (submitMsg) isSessionMsg()       {}
func (advanceMsg) isSessionMsg()      {}
func (pauseMsg) isSessionMsg()        {}
func (resumeMsg) isSessionMsg()       {}
func (cancelMsg) isSessionMsg()       {}
func (forceResolveMsg) isSessionMsg() {}
func (reauctionMsg) isSessionMsg()    {}
func (snapshotMsg) isSessionMsg()     {}
func (historyMsg) isSessionMsg()      {}
func (expireMsg) isSessionMsg()       {}
func (checkpointMsg) isSessionMsg()   {}
func (autoAdvanceMsg) isSessionMsg()  {}

var allowedSessionTransitions = map[models.SessionStatus][]models.SessionStatus{
	models.SessionStatusScheduled: {models.SessionStatusLive, models.SessionStatusCancelled},
	models.SessionStatusLive:      {models.SessionStatusPaused, models.SessionStatusArchived, models.SessionStatusCancelled, models.SessionStatusHalted},
	models.SessionStatusPaused:    {models.SessionStatusLive, models.SessionStatusCancelled, models.SessionStatusHalted},
	models.SessionStatusArchived:  {},
	models.SessionStatusCancelled: {},
	models.SessionStatusHalted:    {},
}

func validateSessionTransition(from, to models.SessionStatus) error {
	allowedNext, exists := allowedSessionTransitions[from]
	if !exists {
		return fmt.Errorf("unknown session status: %s", from)
	}
	if slices.Contains(allowedNext, to) {
		return nil
	}
	return fmt.Errorf("session transition from %s to %s is not allowed", from, to)
}

// Session is the single writer for one tournament's auction. Every mutation
// is a message processed in order by the session goroutine.
type Session struct {
	id          uuid.UUID
	clock       Clock
	journal     Journal
	broadcaster Broadcaster
	logger      zerolog.Logger

	inbox  chan msg
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Owned by the session goroutine.
	state          models.Session
	ledger         *Ledger
	countdown      *Countdown
	seq            int64
	history        map[uuid.UUID][]models.BidRecord
	checkpointGen  uint64
	stopCheckpoint func()
	advanceGen     uint64
	stopAdvance    func()
}

func newSession(parent context.Context, state models.Session, seq int64, clock Clock, journal Journal, broadcaster Broadcaster) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:          state.ID,
		clock:       clock,
		journal:     journal,
		broadcaster: broadcaster,
		logger:      log.With().Str("session_id", state.ID.String()).Logger(),
		inbox:       make(chan msg, inboxSize),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		state:       state,
		ledger:      NewLedger(state.Teams, state.Settings.PlayersPerTeam),
		seq:         seq,
		history:     make(map[uuid.UUID][]models.BidRecord),
	}
	s.countdown = NewCountdown(clock, state.Settings.AntiSnipeWindow, func(gen uint64) {
		s.deliver(expireMsg{gen: gen})
	})
	return s
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// Done is closed once the session goroutine has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops the session goroutine. Journaled state is untouched.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

// Submit places a bid for req.TeamID on the active lot.
func (s *Session) Submit(ctx context.Context, p Principal, req BidRequest) (*BidReceipt, error) {
	if !p.CanBid(req.TeamID) {
		return nil, fmt.Errorf("%w: %s may not bid for team %s", ErrForbidden, p.UserID, req.TeamID)
	}
	reply := make(chan result[*BidReceipt], 1)
	return call(ctx, s, submitMsg{actor: p, req: req, reply: reply}, reply)
}

// Advance activates the next pending lot. It returns ErrSessionComplete and
// archives the session when no lots are left.
func (s *Session) Advance(ctx context.Context, p Principal) (*models.Lot, error) {
	if !p.CanAdminister() {
		return nil, fmt.Errorf("%w: %s may not advance the auction", ErrForbidden, p.UserID)
	}
	reply := make(chan result[*models.Lot], 1)
	return call(ctx, s, advanceMsg{actor: p, reply: reply}, reply)
}

// Pause freezes the active lot's countdown.
func (s *Session) Pause(ctx context.Context, p Principal, reason string) error {
	if !p.CanAdminister() {
		return fmt.Errorf("%w: %s may not pause the auction", ErrForbidden, p.UserID)
	}
	reply := make(chan result[struct{}], 1)
	_, err := call(ctx, s, pauseMsg{actor: p, reason: reason, reply: reply}, reply)
	return err
}

// Resume restarts the countdown with the time left at pause.
func (s *Session) Resume(ctx context.Context, p Principal) error {
	if !p.CanAdminister() {
		return fmt.Errorf("%w: %s may not resume the auction", ErrForbidden, p.UserID)
	}
	reply := make(chan result[struct{}], 1)
	_, err := call(ctx, s, resumeMsg{actor: p, reply: reply}, reply)
	return err
}

// Cancel ends the session without resolving the active lot.
func (s *Session) Cancel(ctx context.Context, p Principal, reason string) error {
	if !p.CanAdminister() {
		return fmt.Errorf("%w: %s may not cancel the auction", ErrForbidden, p.UserID)
	}
	reply := make(chan result[struct{}], 1)
	_, err := call(ctx, s, cancelMsg{actor: p, reason: reason, reply: reply}, reply)
	return err
}

// ForceResolve closes the active lot now, as if its countdown had expired.
func (s *Session) ForceResolve(ctx context.Context, p Principal) (*models.Lot, error) {
	if !p.CanAdminister() {
		return nil, fmt.Errorf("%w: %s may not resolve lots", ErrForbidden, p.UserID)
	}
	reply := make(chan result[*models.Lot], 1)
	return call(ctx, s, forceResolveMsg{actor: p, reply: reply}, reply)
}

// Reauction puts an unsold lot back under the hammer.
func (s *Session) Reauction(ctx context.Context, p Principal, lotID uuid.UUID) (*models.Lot, error) {
	if !p.CanAdminister() {
		return nil, fmt.Errorf("%w: %s may not re-auction lots", ErrForbidden, p.UserID)
	}
	reply := make(chan result[*models.Lot], 1)
	return call(ctx, s, reauctionMsg{actor: p, lotID: lotID, reply: reply}, reply)
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan result[Snapshot], 1)
	return call(ctx, s, snapshotMsg{reply: reply}, reply)
}

// BidHistory returns every bid attempt on lotID in arrival order.
func (s *Session) BidHistory(ctx context.Context, lotID uuid.UUID) ([]models.BidRecord, error) {
	reply := make(chan result[[]models.BidRecord], 1)
	return call(ctx, s, historyMsg{lotID: lotID, reply: reply}, reply)
}

func call[T any](ctx context.Context, s *Session, m msg, reply <-chan result[T]) (T, error) {
	var zero T
	select {
	case s.inbox <- m:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.done:
		return zero, ErrSessionClosed
	}
	select {
	case r := <-reply:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.done:
		return zero, ErrSessionClosed
	}
}

// deliver hands a timer message to the session goroutine.
func (s *Session) deliver(m msg) {
	select {
	case s.inbox <- m:
	case <-s.done:
	}
}

// after delivers m once d has elapsed on the session clock.
func (s *Session) after(d time.Duration, m msg) func() {
	timer := s.clock.NewTimer(d)
	quit := make(chan struct{})
	go func() {
		select {
		case <-timer.Chan():
			s.deliver(m)
		case <-quit:
		case <-s.done:
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			stopAndDrainTimer(timer)
			close(quit)
		})
	}
}

func (s *Session) start() {
	go s.loop()
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.countdown.Stop()
			s.cancelCheckpoint()
			s.cancelAutoAdvance()
			return
		case m := <-s.inbox:
			s.handle(m)
		}
	}
}

func (s *Session) handle(m msg) {
	switch m := m.(type) {
	case submitMsg:
		r, err := s.submit(m.actor, m.req)
		m.reply <- result[*BidReceipt]{val: r, err: err}
	case advanceMsg:
		lot, err := s.advance(m.actor)
		m.reply <- result[*models.Lot]{val: lot, err: err}
	case pauseMsg:
		m.reply <- result[struct{}]{err: s.pause(m.actor, m.reason)}
	case resumeMsg:
		m.reply <- result[struct{}]{err: s.resume(m.actor)}
	case cancelMsg:
		m.reply <- result[struct{}]{err: s.cancelSession(m.actor, m.reason)}
	case forceResolveMsg:
		lot, err := s.forceResolve(m.actor)
		m.reply <- result[*models.Lot]{val: lot, err: err}
	case reauctionMsg:
		lot, err := s.reauction(m.actor, m.lotID)
		m.reply <- result[*models.Lot]{val: lot, err: err}
	case snapshotMsg:
		m.reply <- result[Snapshot]{val: s.snapshot()}
	case historyMsg:
		m.reply <- result[[]models.BidRecord]{val: s.bidHistory(m.lotID)}
	case expireMsg:
		s.expire(m.gen)
	case checkpointMsg:
		s.checkpoint(m.gen)
	case autoAdvanceMsg:
		s.autoAdvance(m.gen)
	}
}

// record appends an event to the journal ahead of applying it. When another
// append already holds the sequence number the session reloads from the
// journal and the event is not applied.
func (s *Session) record(typ events.Type, actor string, payload any) (events.Event, error) {
	e, err := s.appendEvent(s.ctx, typ, actor, payload)
	if err == nil || !errors.Is(err, ErrSeqTaken) {
		return e, err
	}
	if rerr := s.resync(); rerr != nil {
		s.logger.Error().Err(rerr).Msg("failed to reload session from journal")
		return events.Event{}, err
	}
	s.logger.Warn().Int64("seq", s.seq).Str("event_type", string(typ)).Msg("session reloaded from journal")
	return events.Event{}, conflict("journal", err, "%s not applied, session reloaded at seq %d", typ, s.seq)
}

func (s *Session) appendEvent(ctx context.Context, typ events.Type, actor string, payload any) (events.Event, error) {
	e, err := events.New(s.id, s.seq+1, typ, actor, s.clock.Now(), payload)
	if err != nil {
		return events.Event{}, err
	}
	if err := s.journal.Append(ctx, e); err != nil {
		return events.Event{}, fmt.Errorf("failed to journal %s: %w", typ, err)
	}
	s.seq = e.Seq
	return e, nil
}

func (s *Session) publish(e events.Event) {
	if e.Type.JournalOnly() || s.broadcaster == nil {
		return
	}
	s.broadcaster.Broadcast(e)
}

func (s *Session) setStatus(to models.SessionStatus) error {
	if err := validateSessionTransition(s.state.Status, to); err != nil {
		return conflict("status", err, "session %s", s.id)
	}
	s.state.Status = to
	return nil
}

func (s *Session) activeLot() *models.Lot {
	if i := activeLotIndex(s.state.Lots); i >= 0 {
		return &s.state.Lots[i]
	}
	return nil
}

func (s *Session) submit(p Principal, req BidRequest) (*BidReceipt, error) {
	now := s.clock.Now()
	bid := models.Bid{
		ID:          uuid.New(),
		LotID:       req.LotID,
		TeamID:      req.TeamID,
		Amount:      req.Amount,
		SubmittedAt: req.SubmittedAt,
		ReceivedAt:  now,
	}

	lot := s.activeLot()
	err := Validate(BidContext{
		Status:   s.state.Status,
		Settings: s.state.Settings,
		Lot:      lot,
		Expired:  lot != nil && s.countdown.Expired(),
		Ledger:   s.ledger,
	}, bid)
	if err != nil {
		s.recordRejection(p, bid, err)
		return nil, err
	}

	remaining := s.countdown.Remaining()
	extended := s.state.Settings.AntiSnipeWindow > 0 && remaining < s.state.Settings.AntiSnipeWindow
	if extended {
		remaining = s.state.Settings.AntiSnipeWindow
	}
	timeoutAt := now.Add(remaining)

	e, err := s.record(events.TypeBidAccepted, p.UserID, events.BidAcceptedPayload{
		Bid:       bid,
		Remaining: remaining,
		TimeoutAt: timeoutAt,
		Extended:  extended,
	})
	if err != nil {
		return nil, err
	}

	applyBid(lot, bid)
	s.countdown.OnBid()
	lot.Remaining = remaining
	s.history[lot.ID] = append(s.history[lot.ID], models.BidRecord{Bid: bid, Accepted: true})
	s.publish(e)

	s.logger.Debug().
		Str("lot_id", lot.ID.String()).
		Str("team_id", bid.TeamID.String()).
		Int64("amount", bid.Amount).
		Bool("extended", extended).
		Msg("bid accepted")

	return &BidReceipt{
		Bid:       bid,
		Remaining: remaining,
		TimeoutAt: timeoutAt,
		Extended:  extended,
		Seq:       e.Seq,
	}, nil
}

func (s *Session) recordRejection(p Principal, bid models.Bid, cause error) {
	reason := string(ReasonOf(cause))
	s.history[bid.LotID] = append(s.history[bid.LotID], models.BidRecord{Bid: bid, Reason: reason})
	if _, err := s.record(events.TypeBidRejected, p.UserID, events.BidRejectedPayload{Bid: bid, Reason: reason}); err != nil {
		s.logger.Warn().Err(err).Str("lot_id", bid.LotID.String()).Msg("failed to journal rejected bid")
	}
}

func (s *Session) advance(p Principal) (*models.Lot, error) {
	if s.state.Status != models.SessionStatusLive {
		return nil, conflict("advance", nil, "session is %s", s.state.Status)
	}
	if lot := s.activeLot(); lot != nil {
		return nil, conflict("advance", ErrLotStillActive, "lot %s", lot.ID)
	}
	s.cancelAutoAdvance()

	i := nextPendingLot(s.state.Lots)
	if i < 0 {
		if err := s.archive(p); err != nil {
			return nil, err
		}
		return nil, ErrSessionComplete
	}

	lot := &s.state.Lots[i]
	now := s.clock.Now()
	d := s.state.Settings.LotDuration
	e, err := s.record(events.TypeLotActivated, p.UserID, events.LotActivatedPayload{
		LotID:       lot.ID,
		PlayerID:    lot.Player.ID,
		PlayerName:  lot.Player.Name,
		Category:    lot.Player.Category,
		BasePrice:   lot.Player.BasePrice,
		Round:       max(lot.Round, 1),
		Remaining:   d,
		ActivatedAt: now,
		TimeoutAt:   now.Add(d),
	})
	if err != nil {
		return nil, err
	}
	if err := activateLot(lot, now, d); err != nil {
		return nil, err
	}
	s.countdown.Start(d)
	s.scheduleCheckpoint()
	s.publish(e)

	s.logger.Info().Str("lot_id", lot.ID.String()).Str("player", lot.Player.Name).Msg("lot activated")
	out := *lot
	return &out, nil
}

func (s *Session) archive(p Principal) error {
	now := s.clock.Now()
	var sold, unsold int
	for _, l := range s.state.Lots {
		switch l.Status {
		case models.LotStatusSold:
			sold++
		case models.LotStatusUnsold:
			unsold++
		}
	}
	var duration time.Duration
	if s.state.StartedAt != nil {
		duration = now.Sub(*s.state.StartedAt)
	}
	if err := validateSessionTransition(s.state.Status, models.SessionStatusArchived); err != nil {
		return conflict("archive", err, "session %s", s.id)
	}
	e, err := s.record(events.TypeSessionArchived, p.UserID, events.SessionArchivedPayload{
		CompletedAt: now,
		Duration:    duration.String(),
		LotsSold:    sold,
		LotsUnsold:  unsold,
	})
	if err != nil {
		return err
	}
	_ = s.setStatus(models.SessionStatusArchived)
	s.state.CompletedAt = &now
	s.cancelCheckpoint()
	s.publish(e)

	s.logger.Info().Int("lots_sold", sold).Int("lots_unsold", unsold).Msg("auction complete")
	return nil
}

func (s *Session) pause(p Principal, reason string) error {
	if s.state.Status != models.SessionStatusLive {
		return conflict("pause", nil, "session is %s", s.state.Status)
	}
	now := s.clock.Now()
	payload := events.SessionPausedPayload{Reason: reason, PausedAt: now}
	lot := s.activeLot()
	if lot != nil {
		payload.LotID = &lot.ID
		payload.Remaining = s.countdown.Remaining()
	}
	e, err := s.record(events.TypeSessionPaused, p.UserID, payload)
	if err != nil {
		return err
	}
	_ = s.setStatus(models.SessionStatusPaused)
	if lot != nil {
		lot.Remaining = s.countdown.Pause()
	}
	s.cancelCheckpoint()
	s.cancelAutoAdvance()
	s.publish(e)

	s.logger.Warn().Str("actor", p.UserID).Str("reason", reason).Dur("remaining", payload.Remaining).Msg("auction paused")
	return nil
}

func (s *Session) resume(p Principal) error {
	if s.state.Status != models.SessionStatusPaused {
		return conflict("resume", nil, "session is %s", s.state.Status)
	}
	now := s.clock.Now()
	payload := events.SessionResumedPayload{ResumedAt: now}
	lot := s.activeLot()
	if lot != nil {
		remaining := s.countdown.Remaining()
		timeoutAt := now.Add(remaining)
		payload.LotID = &lot.ID
		payload.Remaining = remaining
		payload.TimeoutAt = &timeoutAt
	}
	e, err := s.record(events.TypeSessionResumed, p.UserID, payload)
	if err != nil {
		return err
	}
	_ = s.setStatus(models.SessionStatusLive)
	if lot != nil {
		lot.Remaining = s.countdown.Resume()
		s.scheduleCheckpoint()
	} else {
		s.scheduleAutoAdvance()
	}
	s.publish(e)

	s.logger.Warn().Str("actor", p.UserID).Dur("remaining", payload.Remaining).Msg("auction resumed")
	return nil
}

func (s *Session) cancelSession(p Principal, reason string) error {
	if s.state.Status.IsTerminal() {
		return conflict("cancel", nil, "session is %s", s.state.Status)
	}
	now := s.clock.Now()
	e, err := s.record(events.TypeSessionCancelled, p.UserID, events.SessionCancelledPayload{
		Reason:      reason,
		CancelledAt: now,
	})
	if err != nil {
		return err
	}
	_ = s.setStatus(models.SessionStatusCancelled)
	s.state.CompletedAt = &now
	s.stopTimers()
	s.publish(e)

	s.logger.Warn().Str("actor", p.UserID).Str("reason", reason).Msg("auction cancelled")
	return nil
}

func (s *Session) forceResolve(p Principal) (*models.Lot, error) {
	switch s.state.Status {
	case models.SessionStatusLive, models.SessionStatusPaused:
	default:
		return nil, conflict("force-resolve", nil, "session is %s", s.state.Status)
	}
	lot := s.activeLot()
	if lot == nil {
		return nil, conflict("force-resolve", ErrLotNotFound, "no active lot")
	}
	s.logger.Warn().Str("actor", p.UserID).Str("lot_id", lot.ID.String()).Msg("force resolving lot")
	if err := s.resolve(p, lot, true); err != nil {
		return nil, err
	}
	out := *lot
	return &out, nil
}

func (s *Session) reauction(p Principal, lotID uuid.UUID) (*models.Lot, error) {
	if s.state.Status != models.SessionStatusLive {
		return nil, conflict("reauction", nil, "session is %s", s.state.Status)
	}
	if lot := s.activeLot(); lot != nil {
		return nil, conflict("reauction", ErrLotStillActive, "lot %s", lot.ID)
	}
	i := lotIndex(s.state.Lots, lotID)
	if i < 0 {
		return nil, conflict("reauction", ErrLotNotFound, "lot %s", lotID)
	}
	lot := &s.state.Lots[i]
	if lot.Status != models.LotStatusUnsold {
		return nil, conflict("reauction", nil, "lot %s is %s", lot.ID, lot.Status)
	}
	s.cancelAutoAdvance()

	now := s.clock.Now()
	d := s.state.Settings.LotDuration
	reopened, err := s.record(events.TypeLotReopened, p.UserID, events.LotReopenedPayload{
		LotID:      lot.ID,
		Round:      lot.Round + 1,
		ReopenedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if err := reopenLot(lot, now, d); err != nil {
		return nil, err
	}
	s.countdown.Start(d)
	s.scheduleCheckpoint()
	s.publish(reopened)

	activated, err := s.record(events.TypeLotActivated, p.UserID, events.LotActivatedPayload{
		LotID:       lot.ID,
		PlayerID:    lot.Player.ID,
		PlayerName:  lot.Player.Name,
		Category:    lot.Player.Category,
		BasePrice:   lot.Player.BasePrice,
		Round:       lot.Round,
		Remaining:   d,
		ActivatedAt: now,
		TimeoutAt:   now.Add(d),
	})
	if err != nil {
		return nil, err
	}
	s.publish(activated)

	s.logger.Warn().Str("actor", p.UserID).Str("lot_id", lot.ID.String()).Int("round", lot.Round).Msg("lot re-auctioned")
	out := *lot
	return &out, nil
}

func (s *Session) expire(gen uint64) {
	if s.state.Status != models.SessionStatusLive || !s.countdown.Due(gen) {
		return
	}
	lot := s.activeLot()
	if lot == nil {
		s.countdown.Stop()
		return
	}
	err := s.resolve(System, lot, false)
	if err != nil && !errors.Is(err, ErrSeqTaken) && s.state.Status == models.SessionStatusLive {
		s.logger.Error().Err(err).Str("lot_id", lot.ID.String()).Msg("failed to resolve lot, retrying")
		s.countdown.Retry(resolveRetryWait)
	}
}

// resolve closes the active lot, settling the ledger when it sold. Ledger
// faults halt the session.
func (s *Session) resolve(p Principal, lot *models.Lot, forced bool) error {
	now := s.clock.Now()

	if lot.LeadingBid == nil {
		e, err := s.record(events.TypeLotUnsold, p.UserID, events.LotUnsoldPayload{
			LotID:      lot.ID,
			PlayerID:   lot.Player.ID,
			Forced:     forced,
			ResolvedAt: now,
		})
		if err != nil {
			return err
		}
		if _, err := resolveLot(lot, now); err != nil {
			return s.halt(p, err, lot, nil)
		}
		s.afterResolve()
		s.publish(e)
		s.logger.Info().Str("lot_id", lot.ID.String()).Msg("lot unsold")
		return nil
	}

	lead := *lot.LeadingBid
	if _, err := s.ledger.CheckSettle(lead.TeamID, lot.ID, lead.Amount); err != nil {
		return s.halt(p, err, lot, &lead.TeamID)
	}
	e, err := s.record(events.TypeLotSold, p.UserID, events.LotSoldPayload{
		LotID:    lot.ID,
		PlayerID: lot.Player.ID,
		TeamID:   lead.TeamID,
		Price:    lead.Amount,
		Forced:   forced,
		SoldAt:   now,
	})
	if err != nil {
		return err
	}
	if _, err := resolveLot(lot, now); err != nil {
		return s.halt(p, err, lot, &lead.TeamID)
	}
	if err := s.ledger.Settle(lead.TeamID, lot.ID, lot.Player, lead.Amount, now); err != nil {
		return s.halt(p, err, lot, &lead.TeamID)
	}
	s.state.Teams = s.ledger.Teams()
	s.afterResolve()
	s.publish(e)

	s.logger.Info().
		Str("lot_id", lot.ID.String()).
		Str("team_id", lead.TeamID.String()).
		Int64("price", lead.Amount).
		Msg("lot sold")
	return nil
}

func (s *Session) afterResolve() {
	s.countdown.Stop()
	s.cancelCheckpoint()
	if s.state.Status == models.SessionStatusLive {
		s.scheduleAutoAdvance()
	}
}

// halt stops the session after a ledger fault. The fault is journaled and
// broadcast; state is left as it was.
func (s *Session) halt(p Principal, cause error, lot *models.Lot, teamID *uuid.UUID) error {
	kind := KindOf(cause)
	if kind == 0 {
		kind = KindFatal
	}
	op := "resolve"
	var ae *Error
	if errors.As(cause, &ae) && ae.Op != "" {
		op = ae.Op
	}
	payload := events.FaultRaisedPayload{
		Kind:     kind.String(),
		Op:       op,
		Message:  cause.Error(),
		TeamID:   teamID,
		Halted:   true,
		RaisedAt: s.clock.Now(),
	}
	if lot != nil {
		payload.LotID = &lot.ID
	}

	e, err := s.record(events.TypeFaultRaised, p.UserID, payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to journal fault")
	}
	s.state.Status = models.SessionStatusHalted
	s.stopTimers()
	if err == nil {
		s.publish(e)
	}

	s.logger.Error().Err(cause).Str("kind", kind.String()).Msg("auction halted")
	return cause
}

func (s *Session) stopTimers() {
	if s.countdown.Running() {
		if lot := s.activeLot(); lot != nil {
			lot.Remaining = s.countdown.Remaining()
		}
	}
	s.countdown.Stop()
	s.cancelCheckpoint()
	s.cancelAutoAdvance()
}

func (s *Session) scheduleCheckpoint() {
	s.cancelCheckpoint()
	if s.state.Settings.CheckpointInterval <= 0 {
		return
	}
	s.checkpointGen++
	s.stopCheckpoint = s.after(s.state.Settings.CheckpointInterval, checkpointMsg{gen: s.checkpointGen})
}

func (s *Session) cancelCheckpoint() {
	if s.stopCheckpoint != nil {
		s.stopCheckpoint()
		s.stopCheckpoint = nil
	}
	s.checkpointGen++
}

func (s *Session) checkpoint(gen uint64) {
	if gen != s.checkpointGen || s.state.Status != models.SessionStatusLive {
		return
	}
	lot := s.activeLot()
	if lot == nil || !s.countdown.Running() {
		return
	}
	remaining := s.countdown.Checkpoint()
	if _, err := s.record(events.TypeClockCheckpoint, System.UserID, events.ClockCheckpointPayload{
		LotID:     lot.ID,
		Remaining: remaining,
	}); err != nil {
		s.logger.Warn().Err(err).Str("lot_id", lot.ID.String()).Msg("failed to journal clock checkpoint")
	} else {
		lot.Remaining = remaining
	}
	s.scheduleCheckpoint()
}

func (s *Session) scheduleAutoAdvance() {
	s.cancelAutoAdvance()
	if !s.state.Settings.AutoAdvance {
		return
	}
	s.advanceGen++
	s.stopAdvance = s.after(s.state.Settings.AdvanceDelay, autoAdvanceMsg{gen: s.advanceGen})
}

func (s *Session) cancelAutoAdvance() {
	if s.stopAdvance != nil {
		s.stopAdvance()
		s.stopAdvance = nil
	}
	s.advanceGen++
}

func (s *Session) autoAdvance(gen uint64) {
	if gen != s.advanceGen {
		return
	}
	s.stopAdvance = nil
	if _, err := s.advance(System); err != nil && !errors.Is(err, ErrSessionComplete) {
		s.logger.Warn().Err(err).Msg("auto advance skipped")
	}
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		SessionID:    s.id,
		TournamentID: s.state.TournamentID,
		Status:       s.state.Status,
		Seq:          s.seq,
		Settings:     s.state.Settings,
		Lots:         cloneLots(s.state.Lots),
		Teams:        s.ledger.Teams(),
		StartedAt:    s.state.StartedAt,
		CompletedAt:  s.state.CompletedAt,
		TakenAt:      s.clock.Now(),
	}
	if i := activeLotIndex(snap.Lots); i >= 0 {
		lot := &snap.Lots[i]
		if s.countdown.Running() || s.countdown.Paused() {
			lot.Remaining = s.countdown.Remaining()
		}
		active := *lot
		snap.ActiveLot = &active
		snap.MinNextBid = MinValidAmount(s.state.Settings, active)
		if s.countdown.Running() {
			deadline := s.countdown.Deadline()
			snap.TimeoutAt = &deadline
		}
	}
	return snap
}

func (s *Session) bidHistory(lotID uuid.UUID) []models.BidRecord {
	return slices.Clone(s.history[lotID])
}

func cloneLots(lots []models.Lot) []models.Lot {
	out := make([]models.Lot, len(lots))
	for i, l := range lots {
		out[i] = l
		if l.LeadingBid != nil {
			b := *l.LeadingBid
			out[i].LeadingBid = &b
		}
	}
	return out
}
