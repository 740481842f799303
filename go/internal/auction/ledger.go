package auction

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/cricauction/go/internal/models"
)

type settlement struct {
	teamID uuid.UUID
	amount int64
}

// Ledger tracks every team's budget and roster. It is owned by the session
// goroutine.
type Ledger struct {
	capacity int
	order    []uuid.UUID
	teams    map[uuid.UUID]*models.Team
	settled  map[uuid.UUID]settlement
}

// NewLedger builds a ledger from team snapshots. Existing roster entries are
// treated as settled lots.
func NewLedger(teams []models.Team, playersPerTeam int) *Ledger {
	l := &Ledger{
		capacity: playersPerTeam,
		teams:    make(map[uuid.UUID]*models.Team, len(teams)),
		settled:  make(map[uuid.UUID]settlement),
	}
	for _, t := range teams {
		team := t
		team.Roster = slices.Clone(t.Roster)
		l.order = append(l.order, team.ID)
		l.teams[team.ID] = &team
		for _, entry := range team.Roster {
			l.settled[entry.LotID] = settlement{teamID: team.ID, amount: entry.Price}
		}
	}
	return l
}

// Team returns a copy of the team's ledger entry.
func (l *Ledger) Team(id uuid.UUID) (models.Team, bool) {
	t, ok := l.teams[id]
	if !ok {
		return models.Team{}, false
	}
	team := *t
	team.Roster = slices.Clone(t.Roster)
	return team, true
}

// Teams returns copies of all teams in their original order.
func (l *Ledger) Teams() []models.Team {
	out := make([]models.Team, 0, len(l.order))
	for _, id := range l.order {
		t, _ := l.Team(id)
		out = append(out, t)
	}
	return out
}

// Reserve checks that teamID could pay amount and take one more player.
// It does not mutate the ledger.
func (l *Ledger) Reserve(teamID uuid.UUID, amount int64) error {
	t, ok := l.teams[teamID]
	if !ok {
		return rejected(ReasonUnknownTeam, "team %s is not part of this auction", teamID)
	}
	if l.capacity > 0 && len(t.Roster) >= l.capacity {
		return rejected(ReasonRosterFull, "team %s already has %d players", t.Name, len(t.Roster))
	}
	if amount > t.Remaining() {
		return rejected(ReasonInsufficientFunds, "team %s has %d remaining, bid is %d", t.Name, t.Remaining(), amount)
	}
	return nil
}

// Settle charges teamID for a sold lot and adds the player to its roster.
// Settling the same lot again with the same team and amount is a no-op.
func (l *Ledger) Settle(teamID, lotID uuid.UUID, player models.Player, amount int64, at time.Time) error {
	done, err := l.CheckSettle(teamID, lotID, amount)
	if err != nil || done {
		return err
	}

	t := l.teams[teamID]
	t.Spent += amount
	t.Roster = append(t.Roster, models.RosterEntry{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		LotID:      lotID,
		Price:      amount,
		AcquiredAt: at,
	})
	l.settled[lotID] = settlement{teamID: teamID, amount: amount}
	return nil
}

// CheckSettle reports whether settling lotID would succeed without applying it.
// done is true when the identical settlement was already applied.
func (l *Ledger) CheckSettle(teamID, lotID uuid.UUID, amount int64) (done bool, err error) {
	if prior, ok := l.settled[lotID]; ok {
		if prior.teamID == teamID && prior.amount == amount {
			return true, nil
		}
		return false, conflict("settle", nil, "lot %s already settled to team %s at %d", lotID, prior.teamID, prior.amount)
	}
	t, ok := l.teams[teamID]
	if !ok {
		return false, conflict("settle", nil, "team %s is not part of this auction", teamID)
	}
	if l.capacity > 0 && len(t.Roster) >= l.capacity {
		return false, conflict("settle", nil, "team %s roster is full (%d)", t.Name, l.capacity)
	}
	if t.Remaining()-amount < 0 {
		return false, fatal("settle", "team %s would go negative: remaining %d, price %d", t.Name, t.Remaining(), amount)
	}
	return false, nil
}

// Settled reports whether lotID has been charged to a team.
func (l *Ledger) Settled(lotID uuid.UUID) bool {
	_, ok := l.settled[lotID]
	return ok
}
