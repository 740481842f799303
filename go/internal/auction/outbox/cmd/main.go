package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/cricauction/go/internal/auction/outbox"
	"github.com/mcdev12/cricauction/go/internal/auction/outbox/db"
	"github.com/mcdev12/cricauction/go/internal/dbconfig"
)

func main() {
	// load .env
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// configure zerolog console output and level
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// DB config
	cfg := dbconfig.NewConfigFromEnv()
	dsn := cfg.DSN()
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer conn.Close()
	if err := conn.Ping(); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}
	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")

	publisher := newPublisher()
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}()

	// Listener config
	ltCfg := outbox.DefaultListenerConfig()
	ltCfg.DatabaseURL = dsn
	if iv := os.Getenv("FALLBACK_INTERVAL"); iv != "" {
		if d, err := time.ParseDuration(iv); err == nil {
			ltCfg.FallbackInterval = d
		}
	}

	repo := outbox.NewRepository(db.New(conn))
	listener, err := outbox.NewListener(repo, publisher, ltCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create outbox listener")
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	health := outbox.NewHealthChecker(listener, conn, repo, publisher, 2*ltCfg.FallbackInterval)
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/health", health)
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", getEnv("HEALTH_PORT", "8082")),
		Handler: r,
	}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = healthServer.Shutdown(shutdownCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msg("starting journal relay")
		errCh <- listener.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		if err := <-errCh; err != nil {
			log.Error().Err(err).Msg("listener stopped with error")
		}
		log.Info().Msg("graceful shutdown complete")

	case err := <-errCh:
		log.Error().Err(err).Msg("listener exited unexpectedly")
	}
}

type busPublisher interface {
	outbox.Publisher
	outbox.BusConnection
	io.Closer
}

// newPublisher picks the bus from OUTBOX_PUBLISHER: jetstream (default) or
// rabbitmq.
func newPublisher() busPublisher {
	switch os.Getenv("OUTBOX_PUBLISHER") {
	case "rabbitmq":
		rmqCfg := outbox.DefaultRabbitMQConfig()
		if url := os.Getenv("RABBITMQ_URL"); url != "" {
			rmqCfg.URL = url
		}
		p, err := outbox.NewRabbitMQPublisher(rmqCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("create RabbitMQ publisher")
		}
		log.Info().Str("exchange", rmqCfg.Exchange).Msg("relaying to RabbitMQ")
		return p
	default:
		jsCfg := outbox.DefaultJetStreamConfig()
		if url := os.Getenv("NATS_URL"); url != "" {
			jsCfg.URL = url
		}
		p, err := outbox.NewJetStreamPublisher(jsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("create JetStream publisher")
		}
		log.Info().Str("stream", jsCfg.StreamName).Msg("relaying to JetStream")
		return p
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
