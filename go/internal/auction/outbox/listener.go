package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to poll for missed events
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int32 // Max events to fetch per batch
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		DatabaseURL:      "",
		NotifyChannel:    "auction_journal_events",
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// Listener relays journal rows to the bus as soon as Postgres notifies about
// them, and sweeps for anything it missed on a fallback ticker.
type Listener struct {
	store     EventStore
	listener  *pq.Listener
	notify    <-chan *pq.Notification
	publisher Publisher
	cfg       ListenerConfig

	running     atomic.Bool
	relayed     atomic.Uint64
	lastRelayed atomic.Int64 // unix nanos
}

func NewListener(store EventStore, publisher Publisher, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")

	return &Listener{
		store:     store,
		listener:  l,
		notify:    l.Notify,
		publisher: publisher,
		cfg:       cfg,
	}, nil
}

func (l *Listener) Start(ctx context.Context) error {
	l.running.Store(true)
	defer l.running.Store(false)

	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("listener started")

	// Anything journaled while the relay was down goes out first.
	if err := l.processUnsent(ctx); err != nil {
		log.Error().Err(err).Msg("failed to process unsent events")
	}

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	fallbackTicker := time.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.Stop()
		case note := <-l.notify:
			if note == nil {
				// the connection was re-established; notifications may have been lost
				if err := l.processUnsent(ctx); err != nil {
					log.Error().Err(err).Msg("failed to process unsent events")
				}
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.C:
			if err := l.processUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unsent events")
			}
		case <-pingTicker.C:
			if l.listener == nil {
				continue
			}
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// Stats returns how many events were relayed and when the last one was.
func (l *Listener) Stats() (uint64, time.Time) {
	var last time.Time
	if ns := l.lastRelayed.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return l.relayed.Load(), last
}

// Running reports whether Start is looping.
func (l *Listener) Running() bool { return l.running.Load() }

func (l *Listener) Stop() error {
	if l.listener == nil {
		return nil
	}
	return l.listener.Close()
}

// handleNotification relays the journal row whose ID is the notification
// payload.
func (l *Listener) handleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification: %w", err)
	}

	rec, err := l.store.FetchByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAlreadySent) {
			log.Debug().Str("event_id", id.String()).Msg("event already relayed")
			return nil
		}
		return fmt.Errorf("failed to fetch journal event: %w", err)
	}

	return l.relay(ctx, *rec)
}

// processUnsent relays a batch of rows that were never marked sent.
func (l *Listener) processUnsent(ctx context.Context) error {
	unsent, err := l.store.FetchUnsent(ctx, l.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch unsent journal events: %w", err)
	}

	failed := 0
	for _, rec := range unsent {
		if err := l.relay(ctx, rec); err != nil {
			log.Error().Err(err).Str("event_id", rec.Event.ID.String()).Msg("failed to relay event")
			failed++
		}
	}
	if len(unsent) > 0 {
		log.Info().
			Int("relayed", len(unsent)-failed).
			Int("failed", failed).
			Msg("processed unsent journal batch")
	}
	return nil
}

// relay publishes rec and marks it sent. Journal-only events are marked sent
// without being published.
func (l *Listener) relay(ctx context.Context, rec Record) error {
	if !rec.Event.Type.JournalOnly() {
		if err := l.publishWithRetry(ctx, rec); err != nil {
			return fmt.Errorf("failed to publish event: %w", err)
		}
	}

	if err := l.store.MarkSent(ctx, rec.Event.ID); err != nil {
		return err
	}
	l.relayed.Add(1)
	l.lastRelayed.Store(time.Now().UnixNano())

	log.Debug().
		Str("event_id", rec.Event.ID.String()).
		Str("session_id", rec.Event.SessionID.String()).
		Int64("seq", rec.Event.Seq).
		Str("event_type", string(rec.Event.Type)).
		Msg("relayed and marked event as sent")
	return nil
}

// publishWithRetry publishes rec, backing off linearly between attempts.
func (l *Listener) publishWithRetry(ctx context.Context, rec Record) error {
	var lastErr error

	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := l.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := l.publisher.Publish(ctx, rec); err != nil {
			lastErr = err
			log.Error().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", rec.Event.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", rec.Event.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", l.cfg.MaxRetries+1, lastErr)
}
