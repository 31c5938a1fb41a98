// Package prizes maps places to reward bundles and manages granted rewards
// until they are claimed.
package prizes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/pkg/logger"
	"github.com/okian/liveboard/pkg/metrics"
)

// ErrRewardNotFound is returned when a reward does not exist, was already
// claimed, or belongs to another user.
var ErrRewardNotFound = model.ErrRewardNotFound

// RewardsFor returns the bundle configured for place. When a table holds
// several lines for the same place the first one wins; tables are expected
// ordered by place, then id. Nil means no prize.
func RewardsFor(table []model.Prize, place int) model.Rewards {
	for _, p := range table {
		if p.Place == place {
			if p.Rewards.Empty() {
				return nil
			}
			return p.Rewards.Clone()
		}
	}
	return nil
}

// Granter persists reward grants, replacing any earlier grant for the same
// (user, event) pair.
type Granter interface {
	GrantRewards(ctx context.Context, rewards []model.UnclaimedReward) error
}

// GrantAll materializes a claimable reward for every result with a
// non-empty bundle and returns how many were granted.
func GrantAll(ctx context.Context, g Granter, eventID int64, results []model.HistoryResult, at time.Time) (int, error) {
	grants := make([]model.UnclaimedReward, 0, len(results))
	for _, r := range results {
		if r.Rewards.Empty() {
			continue
		}
		grants = append(grants, model.UnclaimedReward{
			UserID:    r.UserID,
			EventID:   eventID,
			Place:     r.Place,
			Rewards:   r.Rewards.Clone(),
			CreatedAt: at,
		})
	}
	if len(grants) == 0 {
		return 0, nil
	}
	if err := g.GrantRewards(ctx, grants); err != nil {
		return 0, fmt.Errorf("grant rewards for event %d: %w", eventID, err)
	}
	return len(grants), nil
}

// Store is the persistence the distributor reads and consumes.
type Store interface {
	ListUnclaimed(ctx context.Context, userID int64) ([]model.UnclaimedReward, error)
	ClaimReward(ctx context.Context, userID, rewardID int64) (model.UnclaimedReward, error)
}

// Distributor serves a user's granted rewards.
type Distributor struct {
	store  Store
	logger logger.Logger
}

// Option configures a Distributor.
type Option func(*Distributor)

// WithLogger sets the distributor's logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Distributor) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDistributor constructs a Distributor over store.
func NewDistributor(store Store, opts ...Option) *Distributor {
	d := &Distributor{store: store, logger: logger.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ListUnclaimed returns the rewards userID can still claim.
func (d *Distributor) ListUnclaimed(ctx context.Context, userID int64) ([]model.UnclaimedReward, error) {
	rewards, err := d.store.ListUnclaimed(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list unclaimed for user %d: %w", userID, err)
	}
	return rewards, nil
}

// Claim consumes a reward and returns its content. A second claim of the
// same id yields ErrRewardNotFound.
func (d *Distributor) Claim(ctx context.Context, userID, rewardID int64) (model.UnclaimedReward, error) {
	r, err := d.store.ClaimReward(ctx, userID, rewardID)
	if err != nil {
		if errors.Is(err, ErrRewardNotFound) {
			metrics.RecordClaimMiss()
			return model.UnclaimedReward{}, ErrRewardNotFound
		}
		return model.UnclaimedReward{}, fmt.Errorf("claim reward %d: %w", rewardID, err)
	}
	metrics.RecordRewardClaimed()
	d.logger.Info(ctx, "reward claimed",
		logger.Int64("user_id", userID),
		logger.Int64("reward_id", rewardID),
		logger.Int64("event_id", r.EventID),
		logger.Int("place", r.Place),
	)
	return r, nil
}
