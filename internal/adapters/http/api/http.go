// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/liveboard/internal/domain/ledger"
	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	EventDependencies
	LeaderboardDependencies
	PrizeDependencies
}

// TokenResolver maps an access token to a user id.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (int64, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	eventsHandler      *EventsHandler
	leaderboardHandler *LeaderboardHandler
	prizesHandler      *PrizesHandler
	auth               *Authenticator
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, tokens TokenResolver, statsProvider StatsProvider, maxLimit int, l logger.Logger) *Server {
	if l == nil {
		l = logger.Nop()
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		eventsHandler:      NewEventsHandler(deps, l),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit, l),
		prizesHandler:      NewPrizesHandler(deps, l),
		auth:               NewAuthenticator(tokens),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/event/current", MetricsMiddleware(s.eventsHandler.HandleCurrent, "event_current"))
	mux.HandleFunc("/api/event/leaderboard", MetricsMiddleware(s.auth.Require(s.leaderboardHandler.HandleGetLeaderboard), "event_leaderboard"))
	mux.HandleFunc("/api/event/result", MetricsMiddleware(s.auth.Require(s.eventsHandler.HandleSubmitResult), "event_result"))
	mux.HandleFunc("/api/prizes/unclaimed", MetricsMiddleware(s.auth.Require(s.prizesHandler.HandleUnclaimed), "prizes_unclaimed"))
	mux.HandleFunc("/api/prizes/claim", MetricsMiddleware(s.auth.Require(s.prizesHandler.HandleClaim), "prizes_claim"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates core failures into HTTP responses. Internal
// errors are logged and never echoed to the client.
func writeDomainError(ctx context.Context, w http.ResponseWriter, l logger.Logger, err error) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, ledger.ErrInvalidResult):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
	case errors.Is(err, model.ErrEventNotFound),
		errors.Is(err, model.ErrRewardNotFound),
		errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, model.ErrEventClosed):
		writeError(w, http.StatusConflict, "event_closed", err)
	default:
		l.Error(ctx, "request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
