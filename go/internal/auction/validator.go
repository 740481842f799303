package auction

import (
	"github.com/mcdev12/cricauction/go/internal/models"
)

// IncrementFor returns the minimum raise applicable at the given price.
// Tiers must be sorted by From.
func IncrementFor(s models.AuctionSettings, price int64) int64 {
	inc := s.MinIncrement
	for _, tier := range s.IncrementTiers {
		if price < tier.From {
			break
		}
		inc = tier.Increment
	}
	return inc
}

// MinValidAmount returns the smallest amount the next bid on lot may carry.
func MinValidAmount(s models.AuctionSettings, lot models.Lot) int64 {
	if lot.LeadingBid != nil {
		return lot.LeadingBid.Amount + IncrementFor(s, lot.LeadingBid.Amount)
	}
	base := lot.Player.BasePrice
	if s.OpenAtBasePrice {
		return base
	}
	return base + IncrementFor(s, base)
}

// BidContext is the state a bid is checked against.
type BidContext struct {
	Status   models.SessionStatus
	Settings models.AuctionSettings
	Lot      *models.Lot // the active lot, nil if none
	Expired  bool        // the lot's countdown has run out but it is not resolved yet
	Ledger   *Ledger
}

// Validate decides whether bid may become the leading bid. It never mutates
// state. Checks run in a fixed order so a bid always reports the first rule it
// breaks.
func Validate(bc BidContext, bid models.Bid) error {
	if bc.Status != models.SessionStatusLive {
		return rejected(ReasonSessionNotLive, "session is %s", bc.Status)
	}
	lot := bc.Lot
	if lot == nil || lot.Status != models.LotStatusActive || lot.ID != bid.LotID || bc.Expired {
		return rejected(ReasonLotNotActive, "lot %s is not accepting bids", bid.LotID)
	}
	team, ok := bc.Ledger.Team(bid.TeamID)
	if !ok {
		return rejected(ReasonUnknownTeam, "team %s is not part of this auction", bid.TeamID)
	}
	if !bc.Settings.AllowSelfRaise && lot.LeadingBid != nil && lot.LeadingBid.TeamID == bid.TeamID {
		return rejected(ReasonAlreadyLeading, "team %s already holds the leading bid", team.Name)
	}
	if minAmount := MinValidAmount(bc.Settings, *lot); bid.Amount < minAmount {
		return rejected(ReasonBelowMinIncrement, "bid %d is below the minimum %d", bid.Amount, minAmount)
	}
	return bc.Ledger.Reserve(bid.TeamID, bid.Amount)
}
