// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/pkg/logger"
)

// PrizeDependencies defines the interface for reward operations.
type PrizeDependencies interface {
	ListUnclaimed(ctx context.Context, userID int64) ([]model.UnclaimedReward, error)
	Claim(ctx context.Context, userID, rewardID int64) (model.UnclaimedReward, error)
}

// PrizesHandler handles reward requests.
type PrizesHandler struct {
	deps   PrizeDependencies
	logger logger.Logger
}

// NewPrizesHandler creates a new prizes handler.
func NewPrizesHandler(deps PrizeDependencies, l logger.Logger) *PrizesHandler {
	return &PrizesHandler{deps: deps, logger: l}
}

// HandleUnclaimed handles GET /api/prizes/unclaimed.
func (h *PrizesHandler) HandleUnclaimed(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_unclaimed"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	uid, _ := UserID(r.Context())
	rewards, err := h.deps.ListUnclaimed(r.Context(), uid)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	if rewards == nil {
		rewards = []model.UnclaimedReward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

type claimRequest struct {
	PrizeID *int64 `json:"prize_id"`
}

// HandleClaim handles POST /api/prizes/claim. The body is the reward id as
// a JSON number or {"prize_id": N}.
func (h *PrizesHandler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	const op = "api.claim"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	uid, _ := UserID(r.Context())
	rewardID, err := decodeRewardID(r.Body)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, WrapKind(op, ErrBadRequest, err))
		return
	}

	reward, err := h.deps.Claim(r.Context(), uid, rewardID)
	if err != nil {
		writeDomainError(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func decodeRewardID(body io.Reader) (int64, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return 0, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var req claimRequest
		if err := json.Unmarshal(raw, &req); err != nil || req.PrizeID == nil {
			return 0, errors.New("body must be a reward id or {\"prize_id\": id}")
		}
		return *req.PrizeID, nil
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, errors.New("body must be a reward id or {\"prize_id\": id}")
	}
	return id, nil
}
