package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type HealthStatus struct {
	Healthy           bool      `json:"healthy"`
	LastEventTime     time.Time `json:"last_event_time"`
	EventsRelayed     uint64    `json:"events_relayed"`
	PendingEvents     int64     `json:"pending_events"`
	DatabaseConnected bool      `json:"database_connected"`
	BusConnected      bool      `json:"bus_connected"`
	ListenerActive    bool      `json:"listener_active"`
	Errors            []string  `json:"errors"`
}

// RelayStats is implemented by Listener.
type RelayStats interface {
	Stats() (uint64, time.Time)
	Running() bool
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type PendingCounter interface {
	CountUnsent(ctx context.Context) (int64, error)
}

// BusConnection is implemented by the publishers.
type BusConnection interface {
	Connected() bool
}

// HealthChecker reports whether the relay is keeping up with the journal.
type HealthChecker struct {
	relay        RelayStats
	db           Pinger
	pending      PendingCounter
	bus          BusConnection
	threshold    time.Duration // how long pending rows may wait before unhealthy
	pendingAlert int64
	now          func() time.Time
}

func NewHealthChecker(relay RelayStats, db Pinger, pending PendingCounter, bus BusConnection, threshold time.Duration) *HealthChecker {
	return &HealthChecker{
		relay:        relay,
		db:           db,
		pending:      pending,
		bus:          bus,
		threshold:    threshold,
		pendingAlert: 1000,
		now:          time.Now,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	status.EventsRelayed, status.LastEventTime = h.relay.Stats()

	if err := h.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.bus != nil {
		status.BusConnected = h.bus.Connected()
		if !status.BusConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "message bus disconnected")
		}
	}

	status.ListenerActive = h.relay.Running()
	if !status.ListenerActive {
		status.Healthy = false
		status.Errors = append(status.Errors, "listener not active")
	}

	if status.DatabaseConnected {
		pending, err := h.pending.CountUnsent(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending events: %v", err))
		} else {
			status.PendingEvents = pending
			if pending > h.pendingAlert {
				status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", pending))
			}
		}
	}

	if status.PendingEvents > 0 && !status.LastEventTime.IsZero() {
		since := h.now().Sub(status.LastEventTime)
		if since > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no events relayed for %s", since))
		}
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to encode health response")
	}
}
