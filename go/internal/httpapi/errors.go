package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/cricauction/go/internal/auction"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error  string         `json:"error"`
	Kind   string         `json:"kind,omitempty"`
	Reason auction.Reason `json:"reason,omitempty"`
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auction.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auction.ErrSessionNotFound),
		errors.Is(err, auction.ErrTournamentNotFound),
		errors.Is(err, auction.ErrLotNotFound):
		return http.StatusNotFound
	case errors.Is(err, auction.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, auction.ErrSessionClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	switch auction.KindOf(err) {
	case auction.KindValidation:
		return http.StatusUnprocessableEntity
	case auction.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Reason: auction.ReasonOf(err)}
	if kind := auction.KindOf(err); kind != 0 {
		resp.Kind = kind.String()
	}

	event := log.Debug()
	if status >= http.StatusInternalServerError {
		event = log.Error()
		resp.Error = http.StatusText(status)
	}
	event.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Msg("request failed")

	writeJSON(w, status, resp)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
