// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/liveboard/internal/domain/types"
	"github.com/okian/liveboard/pkg/logger"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	GetLeaderboard(ctx context.Context, eventID, userID int64, limit int) (types.Board, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
	logger   logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int, l logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, maxLimit: maxLimit, logger: l}
}

// HandleGetLeaderboard handles GET /api/event/leaderboard?event_id=N&limit=M.
// A missing limit selects the server default.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	uid, _ := UserID(r.Context())
	eventID, err := queryID(r, "event_id")
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, WrapKind(op, ErrBadRequest, err))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeDomainError(r.Context(), w, h.logger, WrapKind(op, ErrBadRequest, errors.New("limit must be a positive integer")))
			return
		}
		if h.maxLimit > 0 && n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	board, err := h.deps.GetLeaderboard(r.Context(), eventID, uid, limit)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	if board.Top == nil {
		board.Top = []types.Entry{}
	}
	writeJSON(w, http.StatusOK, board)
}
