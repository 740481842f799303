package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/cricauction/go/internal/auction"
)

// StateHandler serves session snapshots over HTTP for viewers that reconnect
// or poll.
type StateHandler struct {
	snapshots SnapshotProvider
}

func NewStateHandler(provider SnapshotProvider) *StateHandler {
	return &StateHandler{
		snapshots: provider,
	}
}

// HandleGetSessionState handles GET /api/sessions/{sessionID}/state
func (h *StateHandler) HandleGetSessionState(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "invalid session ID format", http.StatusBadRequest)
		return
	}

	snap, err := h.snapshots.Snapshot(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, auction.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to get session state")
		http.Error(w, "failed to get session state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		log.Error().Err(err).Msg("failed to encode session state response")
	}
}

func (h *StateHandler) RegisterStateRoutes(r chi.Router) {
	r.Get("/api/sessions/{sessionID}/state", h.HandleGetSessionState)
}
