// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/liveboard/internal/domain/types"
	"github.com/okian/liveboard/pkg/logger"
)

const maxBodyBytes = 1 << 10

// EventDependencies defines the interface for event operations.
type EventDependencies interface {
	ListVisibleEvents(ctx context.Context) ([]types.EventView, error)
	SubmitResult(ctx context.Context, eventID, userID int64, delta float64) (types.Submission, error)
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps   EventDependencies
	logger logger.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies, l logger.Logger) *EventsHandler {
	return &EventsHandler{deps: deps, logger: l}
}

// HandleCurrent handles GET /api/event/current.
func (h *EventsHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	const op = "api.current_events"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	events, err := h.deps.ListVisibleEvents(r.Context())
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	if events == nil {
		events = []types.EventView{}
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleSubmitResult handles POST /api/event/result?event_id=N with a JSON
// number body.
func (h *EventsHandler) HandleSubmitResult(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_result"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	uid, _ := UserID(r.Context())
	eventID, err := queryID(r, "event_id")
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, WrapKind(op, ErrBadRequest, err))
		return
	}
	var delta float64
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&delta); err != nil {
		writeDomainError(r.Context(), w, h.logger, WrapKind(op, ErrBadRequest, errors.New("body must be a JSON number")))
		return
	}

	res, err := h.deps.SubmitResult(r.Context(), eventID, uid, delta)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// queryID parses a required integer query parameter.
func queryID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, errors.New("missing " + name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}
