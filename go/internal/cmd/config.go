package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/cricauction/go/internal/auction"
	"github.com/mcdev12/cricauction/go/internal/models"
)

type Config struct {
	Auction RulesConfig `yaml:"auction"`
}

// RulesConfig holds the default rules for sessions opened from a tournament.
// Zero values keep the engine defaults.
type RulesConfig struct {
	LotDuration        time.Duration          `yaml:"lot_duration"`
	AntiSnipeWindow    time.Duration          `yaml:"anti_snipe_window"`
	MinIncrement       int64                  `yaml:"min_increment"`
	IncrementTiers     []models.IncrementTier `yaml:"increment_tiers"`
	PlayersPerTeam     int                    `yaml:"players_per_team"`
	AllowSelfRaise     bool                   `yaml:"allow_self_raise"`
	OpenAtBasePrice    bool                   `yaml:"open_at_base_price"`
	Ordering           string                 `yaml:"ordering"`
	CategoryOrder      []string               `yaml:"category_order"`
	CheckpointInterval time.Duration          `yaml:"checkpoint_interval"`
	AutoAdvance        bool                   `yaml:"auto_advance"`
	AdvanceDelay       time.Duration          `yaml:"advance_delay"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads the rules file. A missing file yields the defaults.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("auction config not found, using defaults")
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// Settings overlays the configured rules on the engine defaults.
func (c RulesConfig) Settings() models.AuctionSettings {
	s := auction.DefaultSettings()
	if c.LotDuration > 0 {
		s.LotDuration = c.LotDuration
	}
	if c.AntiSnipeWindow > 0 {
		s.AntiSnipeWindow = c.AntiSnipeWindow
	}
	if c.CheckpointInterval > 0 {
		s.CheckpointInterval = c.CheckpointInterval
	}
	if c.AdvanceDelay > 0 {
		s.AdvanceDelay = c.AdvanceDelay
	}
	if c.Ordering != "" {
		s.Ordering = models.OrderingMode(c.Ordering)
	}
	if len(c.CategoryOrder) > 0 {
		s.CategoryOrder = make([]models.PlayerCategory, len(c.CategoryOrder))
		for i, cat := range c.CategoryOrder {
			s.CategoryOrder[i] = models.PlayerCategory(cat)
		}
	}
	if c.MinIncrement > 0 {
		s.MinIncrement = c.MinIncrement
	}
	if len(c.IncrementTiers) > 0 {
		s.IncrementTiers = c.IncrementTiers
	}
	if c.PlayersPerTeam > 0 {
		s.PlayersPerTeam = c.PlayersPerTeam
	}
	s.AllowSelfRaise = c.AllowSelfRaise
	s.OpenAtBasePrice = c.OpenAtBasePrice
	s.AutoAdvance = c.AutoAdvance
	return s
}
