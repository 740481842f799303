package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/cricauction/go/internal/auction"
	"github.com/mcdev12/cricauction/go/internal/dbconfig"
	"github.com/mcdev12/cricauction/go/internal/httpapi"
)

// Demo mirrors the JSON snapshot of a tournament ready for auction
type Demo struct {
	Tournament struct {
		ID             uuid.UUID `json:"id"`
		Name           string    `json:"name"`
		OrganizerID    uuid.UUID `json:"organizer_id"`
		Status         string    `json:"status"`
		BasePrice      int64     `json:"base_price"`
		TeamBudget     int64     `json:"team_budget"`
		PlayersPerTeam int       `json:"players_per_team"`
		NumberOfTeams  int       `json:"number_of_teams"`
	} `json:"tournament"`
	Teams []struct {
		ID      uuid.UUID `json:"id"`
		Name    string    `json:"name"`
		OwnerID uuid.UUID `json:"owner_id"`
	} `json:"teams"`
	Players []struct {
		UserID   uuid.UUID `json:"user_id"`
		FullName string    `json:"full_name"`
		Category string    `json:"category"`
	} `json:"players"`
}

func main() {
	ctx := context.Background()

	// 1) Load the JSON snapshot
	data, err := os.ReadFile("go/internal/assets/demo_tournament.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var demo Demo
	if err := json.Unmarshal(data, &demo); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Insert everything in one transaction
	var inserted, skipped int
	count := func(tag int64) {
		if tag == 1 {
			inserted++
		} else {
			skipped++
		}
	}
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		t := demo.Tournament
		tag, err := tx.Exec(ctx, `
            INSERT INTO tournaments (
              id, name, organizer_id, status, base_price,
              team_budget, players_per_team, number_of_teams
            ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
            ON CONFLICT (id) DO NOTHING
        `, t.ID, t.Name, t.OrganizerID, t.Status, t.BasePrice,
			t.TeamBudget, t.PlayersPerTeam, t.NumberOfTeams)
		if err != nil {
			return fmt.Errorf("insert tournament: %w", err)
		}
		count(tag.RowsAffected())

		for _, team := range demo.Teams {
			tag, err := tx.Exec(ctx, `
                INSERT INTO teams (id, tournament_id, name, owner_id, budget_remaining)
                VALUES ($1,$2,$3,$4,$5)
                ON CONFLICT (id) DO NOTHING
            `, team.ID, t.ID, team.Name, team.OwnerID, t.TeamBudget)
			if err != nil {
				return fmt.Errorf("insert team %s: %w", team.Name, err)
			}
			count(tag.RowsAffected())
		}

		for _, p := range demo.Players {
			tag, err := tx.Exec(ctx, `
                INSERT INTO profiles (user_id, full_name, player_category)
                VALUES ($1,$2,$3)
                ON CONFLICT (user_id) DO NOTHING
            `, p.UserID, p.FullName, p.Category)
			if err != nil {
				return fmt.Errorf("insert profile %s: %w", p.FullName, err)
			}
			count(tag.RowsAffected())

			tag, err = tx.Exec(ctx, `
                INSERT INTO tournament_applications (tournament_id, player_id, status, reviewed_at)
                VALUES ($1,$2,'approved',NOW())
                ON CONFLICT (tournament_id, player_id) DO NOTHING
            `, t.ID, p.UserID)
			if err != nil {
				return fmt.Errorf("insert application %s: %w", p.FullName, err)
			}
			count(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	// 4) Print summary
	fmt.Printf(
		"Tournament seed complete: %d players, %d teams, %d inserted, %d skipped\n",
		len(demo.Players), len(demo.Teams), inserted, skipped,
	)

	// 5) Print demo tokens when a signing secret is configured
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return
	}
	now := time.Now()
	organizer := auction.Principal{
		UserID: demo.Tournament.OrganizerID.String(),
		Roles:  []auction.Role{auction.RoleOrganizer},
	}
	printToken(secret, "organizer", organizer, now)
	for _, team := range demo.Teams {
		owner := auction.Principal{
			UserID:  team.OwnerID.String(),
			Roles:   []auction.Role{auction.RoleTeamOwner},
			TeamIDs: []uuid.UUID{team.ID},
		}
		printToken(secret, team.Name, owner, now)
	}
}

func printToken(secret, label string, p auction.Principal, now time.Time) {
	token, err := httpapi.SignToken([]byte(secret), p, now, 12*time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token for %s: %v\n", label, err)
		return
	}
	fmt.Printf("%s: %s\n", label, token)
}
