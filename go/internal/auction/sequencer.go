package auction

import (
	"slices"

	"github.com/google/uuid"

	"github.com/mcdev12/cricauction/go/internal/models"
)

// sequenceLots returns lots in the order they will be put under the hammer.
// ORGANIZER keeps the supplied positions; CATEGORY groups lots by the
// configured category order and keeps positions within a group. Categories
// missing from the order go last.
func sequenceLots(lots []models.Lot, s models.AuctionSettings) []models.Lot {
	out := slices.Clone(lots)
	byPosition := func(a, b models.Lot) int { return a.Position - b.Position }

	if s.Ordering != models.OrderingCategory {
		slices.SortStableFunc(out, byPosition)
		return out
	}

	rank := make(map[models.PlayerCategory]int, len(s.CategoryOrder))
	for i, c := range s.CategoryOrder {
		if _, seen := rank[c]; !seen {
			rank[c] = i
		}
	}
	rankOf := func(c models.PlayerCategory) int {
		if r, ok := rank[c]; ok {
			return r
		}
		return len(s.CategoryOrder)
	}
	slices.SortStableFunc(out, func(a, b models.Lot) int {
		if d := rankOf(a.Player.Category) - rankOf(b.Player.Category); d != 0 {
			return d
		}
		return byPosition(a, b)
	})
	return out
}

// nextPendingLot returns the index of the next lot to activate, or -1.
func nextPendingLot(lots []models.Lot) int {
	return slices.IndexFunc(lots, func(l models.Lot) bool { return l.Status == models.LotStatusPending })
}

// activeLotIndex returns the index of the active lot, or -1.
func activeLotIndex(lots []models.Lot) int {
	return slices.IndexFunc(lots, func(l models.Lot) bool { return l.Status == models.LotStatusActive })
}

func lotIndex(lots []models.Lot, id uuid.UUID) int {
	return slices.IndexFunc(lots, func(l models.Lot) bool { return l.ID == id })
}
