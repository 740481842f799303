package auction

import (
	"fmt"
	"slices"
	"time"

	"github.com/mcdev12/cricauction/go/internal/models"
)

var allowedLotTransitions = map[models.LotStatus][]models.LotStatus{
	models.LotStatusPending: {models.LotStatusActive},
	models.LotStatusActive:  {models.LotStatusSold, models.LotStatusUnsold},
	models.LotStatusUnsold:  {models.LotStatusActive}, // re-auction only
	models.LotStatusSold:    {},
}

func validateLotTransition(from, to models.LotStatus) error {
	allowedNext, exists := allowedLotTransitions[from]
	if !exists {
		return fmt.Errorf("unknown lot status: %s", from)
	}
	if slices.Contains(allowedNext, to) {
		return nil
	}
	return fmt.Errorf("lot transition from %s to %s is not allowed", from, to)
}

func transitionLot(lot *models.Lot, to models.LotStatus) error {
	if err := validateLotTransition(lot.Status, to); err != nil {
		return conflict("lot", err, "lot %s", lot.ID)
	}
	lot.Status = to
	return nil
}

// activateLot opens a pending lot for bidding.
func activateLot(lot *models.Lot, at time.Time, d time.Duration) error {
	if lot.Status != models.LotStatusPending {
		return conflict("activate", nil, "lot %s is %s, not %s", lot.ID, lot.Status, models.LotStatusPending)
	}
	if err := transitionLot(lot, models.LotStatusActive); err != nil {
		return err
	}
	lot.Round = max(lot.Round, 1)
	lot.Remaining = d
	lot.ActivatedAt = &at
	return nil
}

// reopenLot puts an unsold lot back under the hammer for another round.
func reopenLot(lot *models.Lot, at time.Time, d time.Duration) error {
	if lot.Status != models.LotStatusUnsold {
		return conflict("reauction", nil, "only unsold lots can be re-auctioned, lot %s is %s", lot.ID, lot.Status)
	}
	if err := transitionLot(lot, models.LotStatusActive); err != nil {
		return err
	}
	lot.Round++
	lot.LeadingBid = nil
	lot.Remaining = d
	lot.ActivatedAt = &at
	lot.ResolvedAt = nil
	return nil
}

// applyBid records an accepted bid as the lot's leader.
func applyBid(lot *models.Lot, bid models.Bid) {
	b := bid
	lot.LeadingBid = &b
}

// resolveLot closes an active lot. With a leading bid the lot is sold to its
// team at its amount; otherwise it goes unsold.
func resolveLot(lot *models.Lot, at time.Time) (bool, error) {
	to := models.LotStatusUnsold
	if lot.LeadingBid != nil {
		to = models.LotStatusSold
	}
	if err := transitionLot(lot, to); err != nil {
		return false, err
	}
	lot.Remaining = 0
	lot.ResolvedAt = &at
	if to == models.LotStatusSold {
		winner := lot.LeadingBid.TeamID
		lot.WinnerID = &winner
		lot.SoldPrice = lot.LeadingBid.Amount
		return true, nil
	}
	return false, nil
}
