package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/cricauction/go/internal/auction"
	"github.com/mcdev12/cricauction/go/internal/auction/gateway"
	"github.com/mcdev12/cricauction/go/internal/httpapi"
	"github.com/mcdev12/cricauction/go/internal/journal"
	journaldb "github.com/mcdev12/cricauction/go/internal/journal/db"
	"github.com/mcdev12/cricauction/go/internal/tournament"
	tournamentdb "github.com/mcdev12/cricauction/go/internal/tournament/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal().Msg("JWT_SECRET environment variable is required")
	}

	config, err := loadConfig(getEnv("AUCTION_CONFIG", "auction.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load auction config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := setupDatabase(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup database")
	}
	defer pool.Close()

	instance := getEnv("ENGINE_INSTANCE", "engine-1")
	clock := clockwork.NewRealClock()
	viewers := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	// Database layer → Journal / Roster → Manager → HTTP + WebSocket
	manager := auction.NewManager(auction.ManagerConfig{
		Clock:       clock,
		Journal:     journal.NewStore(journaldb.New(pool), instance),
		Broadcaster: viewers,
		Roster:      tournament.NewRepository(tournamentdb.New(pool)),
		Defaults:    config.Auction.Settings(),
	})
	defer manager.Close()

	restored, err := manager.Recover(ctx)
	if err != nil {
		log.Error().Err(err).Msg("some auction sessions could not be restored")
	}
	log.Info().Int("sessions", restored).Str("instance", instance).Msg("auction engine ready")

	gatewayService := gateway.NewService(viewers, gateway.NewManagerSnapshots(manager))
	api := httpapi.NewHandler(manager)
	auth := httpapi.NewAuthenticator([]byte(secret), clock.Now)
	server := setupServer(api, auth, gatewayService)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gatewayService.Start(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("auction engine stopped with error")
	}
	log.Info().Msg("auction engine shutdown complete")
}
