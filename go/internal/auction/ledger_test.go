package auction

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/cricauction/go/internal/models"
)

func newTestLedger(capacity int, budgets ...int64) (*Ledger, []uuid.UUID) {
	teams := make([]models.Team, len(budgets))
	ids := make([]uuid.UUID, len(budgets))
	for i, b := range budgets {
		ids[i] = uuid.New()
		teams[i] = models.Team{ID: ids[i], Name: "team", TotalBudget: b}
	}
	return NewLedger(teams, capacity), ids
}

func TestLedger_ReserveIsDryRun(t *testing.T) {
	l, ids := newTestLedger(2, 10_000)

	require.NoError(t, l.Reserve(ids[0], 10_000))
	require.NoError(t, l.Reserve(ids[0], 10_000))

	err := l.Reserve(ids[0], 10_001)
	assert.Equal(t, ReasonInsufficientFunds, ReasonOf(err))

	team, _ := l.Team(ids[0])
	assert.Equal(t, int64(0), team.Spent)
	assert.Equal(t, int64(10_000), team.Remaining())
}

func TestLedger_ReserveUnknownTeam(t *testing.T) {
	l, _ := newTestLedger(2, 10_000)
	assert.Equal(t, ReasonUnknownTeam, ReasonOf(l.Reserve(uuid.New(), 1)))
}

func TestLedger_SettleChargesAndAppends(t *testing.T) {
	l, ids := newTestLedger(2, 50_000)
	player := models.Player{ID: uuid.New(), Name: "Opener"}
	lotID := uuid.New()

	require.NoError(t, l.Settle(ids[0], lotID, player, 11_000, testEpoch))

	team, _ := l.Team(ids[0])
	assert.Equal(t, int64(11_000), team.Spent)
	assert.Equal(t, int64(39_000), team.Remaining())
	require.Len(t, team.Roster, 1)
	assert.Equal(t, models.RosterEntry{
		PlayerID:   player.ID,
		PlayerName: "Opener",
		LotID:      lotID,
		Price:      11_000,
		AcquiredAt: testEpoch,
	}, team.Roster[0])
	assert.True(t, l.Settled(lotID))
}

func TestLedger_SettleIsIdempotent(t *testing.T) {
	l, ids := newTestLedger(3, 50_000)
	player := models.Player{ID: uuid.New()}
	lotID := uuid.New()

	require.NoError(t, l.Settle(ids[0], lotID, player, 11_000, testEpoch))
	once := l.Teams()

	require.NoError(t, l.Settle(ids[0], lotID, player, 11_000, testEpoch))
	assert.Equal(t, once, l.Teams())
}

func TestLedger_SettleConflicts(t *testing.T) {
	t.Run("same lot different team", func(t *testing.T) {
		l, ids := newTestLedger(3, 50_000, 50_000)
		lotID := uuid.New()
		require.NoError(t, l.Settle(ids[0], lotID, models.Player{}, 1_000, testEpoch))

		err := l.Settle(ids[1], lotID, models.Player{}, 1_000, testEpoch)
		assert.Equal(t, KindConflict, KindOf(err))
	})

	t.Run("same lot different amount", func(t *testing.T) {
		l, ids := newTestLedger(3, 50_000)
		lotID := uuid.New()
		require.NoError(t, l.Settle(ids[0], lotID, models.Player{}, 1_000, testEpoch))

		err := l.Settle(ids[0], lotID, models.Player{}, 2_000, testEpoch)
		assert.Equal(t, KindConflict, KindOf(err))
	})

	t.Run("roster cap", func(t *testing.T) {
		l, ids := newTestLedger(1, 50_000)
		require.NoError(t, l.Settle(ids[0], uuid.New(), models.Player{}, 1_000, testEpoch))

		err := l.Settle(ids[0], uuid.New(), models.Player{}, 1_000, testEpoch)
		assert.Equal(t, KindConflict, KindOf(err))
		team, _ := l.Team(ids[0])
		assert.Len(t, team.Roster, 1)
	})

	t.Run("negative budget is fatal", func(t *testing.T) {
		l, ids := newTestLedger(3, 5_000)
		err := l.Settle(ids[0], uuid.New(), models.Player{}, 6_000, testEpoch)
		assert.Equal(t, KindFatal, KindOf(err))
		team, _ := l.Team(ids[0])
		assert.Equal(t, int64(0), team.Spent)
	})
}

func TestLedger_RebuildsSettlementsFromRosters(t *testing.T) {
	lotID := uuid.New()
	team := models.Team{ID: uuid.New(), TotalBudget: 10_000, Spent: 4_000, Roster: []models.RosterEntry{
		{LotID: lotID, Price: 4_000},
	}}
	l := NewLedger([]models.Team{team}, 3)

	require.NoError(t, l.Settle(team.ID, lotID, models.Player{}, 4_000, testEpoch))
	got, _ := l.Team(team.ID)
	assert.Equal(t, int64(4_000), got.Spent)
}

func TestLedger_TeamsAreCopies(t *testing.T) {
	l, ids := newTestLedger(3, 10_000)
	require.NoError(t, l.Settle(ids[0], uuid.New(), models.Player{}, 1_000, testEpoch))

	teams := l.Teams()
	teams[0].Spent = 0
	teams[0].Roster[0].Price = 0

	got, _ := l.Team(ids[0])
	assert.Equal(t, int64(1_000), got.Spent)
	assert.Equal(t, int64(1_000), got.Roster[0].Price)
}
