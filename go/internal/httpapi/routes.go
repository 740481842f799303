package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the session API. Every route except /health requires
// a bearer token.
func (h *Handler) RegisterRoutes(r chi.Router, auth *Authenticator) {
	r.Get("/health", Healthz)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Post("/api/tournaments/{tournamentID}/sessions", h.HandleOpenSession)
		r.Post("/api/sessions/{sessionID}/advance", h.HandleAdvance)
		r.Post("/api/sessions/{sessionID}/bids", h.HandleSubmitBid)
		r.Post("/api/sessions/{sessionID}/pause", h.HandlePause)
		r.Post("/api/sessions/{sessionID}/resume", h.HandleResume)
		r.Post("/api/sessions/{sessionID}/cancel", h.HandleCancel)
		r.Post("/api/sessions/{sessionID}/force-resolve", h.HandleForceResolve)
		r.Post("/api/sessions/{sessionID}/lots/{lotID}/reauction", h.HandleReauction)
		r.Get("/api/sessions/{sessionID}/lots/{lotID}/bids", h.HandleBidHistory)
	})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
