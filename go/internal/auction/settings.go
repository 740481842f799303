package auction

import (
	"fmt"
	"slices"
	"time"

	"github.com/mcdev12/cricauction/go/internal/models"
)

const (
	DefaultLotDuration        = 15 * time.Second
	DefaultAntiSnipeWindow    = 10 * time.Second
	DefaultCheckpointInterval = 5 * time.Second
	DefaultAdvanceDelay       = 3 * time.Second
	DefaultMinIncrement       = 100
	DefaultPlayersPerTeam     = 11
)

// DefaultCategoryOrder puts marquee players first.
var DefaultCategoryOrder = []models.PlayerCategory{
	models.PlayerCategoryAPlus,
	models.PlayerCategoryA,
	models.PlayerCategoryB,
	models.PlayerCategoryC,
}

// DefaultSettings returns the rules used when a tournament does not override them.
func DefaultSettings() models.AuctionSettings {
	return models.AuctionSettings{
		LotDuration:        DefaultLotDuration,
		AntiSnipeWindow:    DefaultAntiSnipeWindow,
		MinIncrement:       DefaultMinIncrement,
		PlayersPerTeam:     DefaultPlayersPerTeam,
		Ordering:           models.OrderingOrganizer,
		CategoryOrder:      slices.Clone(DefaultCategoryOrder),
		CheckpointInterval: DefaultCheckpointInterval,
		AdvanceDelay:       DefaultAdvanceDelay,
	}
}

// normalizeSettings fills zero values with defaults and sorts increment tiers.
func normalizeSettings(s models.AuctionSettings) models.AuctionSettings {
	if s.LotDuration <= 0 {
		s.LotDuration = DefaultLotDuration
	}
	if s.AntiSnipeWindow < 0 {
		s.AntiSnipeWindow = 0
	}
	if s.Ordering == "" {
		s.Ordering = models.OrderingOrganizer
	}
	if len(s.CategoryOrder) == 0 {
		s.CategoryOrder = slices.Clone(DefaultCategoryOrder)
	}
	if s.CheckpointInterval < 0 {
		s.CheckpointInterval = 0
	}
	if s.AutoAdvance && s.AdvanceDelay <= 0 {
		s.AdvanceDelay = DefaultAdvanceDelay
	}
	s.IncrementTiers = slices.Clone(s.IncrementTiers)
	slices.SortStableFunc(s.IncrementTiers, func(a, b models.IncrementTier) int {
		switch {
		case a.From < b.From:
			return -1
		case a.From > b.From:
			return 1
		}
		return 0
	})
	return s
}

// validateSettings checks the rules a session is opened with.
func validateSettings(s models.AuctionSettings) error {
	if s.MinIncrement <= 0 {
		return fmt.Errorf("min_increment must be greater than 0")
	}
	if s.PlayersPerTeam <= 0 {
		return fmt.Errorf("players_per_team must be greater than 0")
	}
	if s.AntiSnipeWindow > s.LotDuration {
		return fmt.Errorf("anti_snipe_window %s exceeds lot_duration %s", s.AntiSnipeWindow, s.LotDuration)
	}
	for _, tier := range s.IncrementTiers {
		if tier.From < 0 || tier.Increment <= 0 {
			return fmt.Errorf("invalid increment tier from=%d increment=%d", tier.From, tier.Increment)
		}
	}
	switch s.Ordering {
	case models.OrderingOrganizer, models.OrderingCategory:
	default:
		return fmt.Errorf("unknown ordering mode: %s", s.Ordering)
	}
	return nil
}
