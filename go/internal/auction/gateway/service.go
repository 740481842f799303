package gateway

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Service bundles the viewer side of an auction: the connection pools, the
// WebSocket and state routes and, when running apart from the engine, the
// JetStream consumer that feeds them.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	eventConsumer     *EventConsumer
}

type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

// NewService creates a gateway around cm. In the engine process cm is also the
// auction manager's Broadcaster.
func NewService(cm *ConnectionManager, snapshots SnapshotProvider) *Service {
	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm, snapshots),
		stateHandler:      NewStateHandler(snapshots),
	}
}

// NewStandaloneService creates a gateway fed by JetStream.
func NewStandaloneService(config Config, snapshots SnapshotProvider) (*Service, error) {
	s := NewService(NewConnectionManager(config.ConnectionConfig), snapshots)
	consumer, err := NewEventConsumer(s.connectionManager, config.JetStreamConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}
	s.eventConsumer = consumer
	return s, nil
}

// ConnectionManager is the Broadcaster to hand to the auction manager.
func (s *Service) ConnectionManager() *ConnectionManager { return s.connectionManager }

// Start runs the gateway until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Bool("jetstream", s.eventConsumer != nil).Msg("starting auction gateway service")

	go s.connectionManager.Start(ctx)

	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("auction gateway service shutting down")
	return s.Stop()
}

func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}
	log.Info().Msg("auction gateway service stopped")
	return nil
}

func (s *Service) RegisterRoutes(r chi.Router) {
	s.wsHandler.RegisterRoutes(r)
	s.stateHandler.RegisterStateRoutes(r)
	log.Info().Msg("auction gateway routes registered")
}

func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
