package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mcdev12/cricauction/go/internal/auction"
	"github.com/mcdev12/cricauction/go/internal/models"
)

// Sessions is the part of the auction manager the API drives.
type Sessions interface {
	OpenTournament(ctx context.Context, p auction.Principal, tournamentID uuid.UUID) (*auction.Session, error)
	Get(id uuid.UUID) (*auction.Session, error)
}

// Handler exposes session operations as JSON over HTTP.
type Handler struct {
	sessions Sessions
}

func NewHandler(sessions Sessions) *Handler {
	return &Handler{sessions: sessions}
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type advanceResponse struct {
	Lot      *models.Lot `json:"lot,omitempty"`
	Complete bool        `json:"complete"`
}

// HandleOpenSession handles POST /api/tournaments/{tournamentID}/sessions
func (h *Handler) HandleOpenSession(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := urlUUID(w, r, "tournamentID")
	if !ok {
		return
	}
	p := principal(r)

	session, err := h.sessions.OpenTournament(r.Context(), p, tournamentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := session.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// HandleAdvance handles POST /api/sessions/{sessionID}/advance
func (h *Handler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	lot, err := session.Advance(r.Context(), principal(r))
	if errors.Is(err, auction.ErrSessionComplete) {
		writeJSON(w, http.StatusOK, advanceResponse{Complete: true})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, advanceResponse{Lot: lot})
}

// HandleSubmitBid handles POST /api/sessions/{sessionID}/bids
func (h *Handler) HandleSubmitBid(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req auction.BidRequest
	if !decode(w, r, &req) {
		return
	}
	receipt, err := session.Submit(r.Context(), principal(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// HandlePause handles POST /api/sessions/{sessionID}/pause
func (h *Handler) HandlePause(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	if err := session.Pause(r.Context(), principal(r), req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResume handles POST /api/sessions/{sessionID}/resume
func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := session.Resume(r.Context(), principal(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCancel handles POST /api/sessions/{sessionID}/cancel
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	if err := session.Cancel(r.Context(), principal(r), req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleForceResolve handles POST /api/sessions/{sessionID}/force-resolve
func (h *Handler) HandleForceResolve(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	lot, err := session.ForceResolve(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

// HandleReauction handles POST /api/sessions/{sessionID}/lots/{lotID}/reauction
func (h *Handler) HandleReauction(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	lotID, ok := urlUUID(w, r, "lotID")
	if !ok {
		return
	}
	lot, err := session.Reauction(r.Context(), principal(r), lotID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

// HandleBidHistory handles GET /api/sessions/{sessionID}/lots/{lotID}/bids
func (h *Handler) HandleBidHistory(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if !p.CanAdminister() {
		writeError(w, r, auction.ErrForbidden)
		return
	}
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	lotID, ok := urlUUID(w, r, "lotID")
	if !ok {
		return
	}
	history, err := session.BidHistory(r.Context(), lotID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if history == nil {
		history = []models.BidRecord{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*auction.Session, bool) {
	sessionID, ok := urlUUID(w, r, "sessionID")
	if !ok {
		return nil, false
	}
	session, err := h.sessions.Get(sessionID)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return session, true
}

func principal(r *http.Request) auction.Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}

func urlUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid "+param+" format")
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return decode(w, r, v)
}
