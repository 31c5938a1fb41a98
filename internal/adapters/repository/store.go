// Package repository persists events, live ratings, archives and granted
// rewards. MemoryStore keeps everything in process; GormStore targets
// postgres through gorm.
package repository

import (
	"context"
	"time"

	"github.com/okian/liveboard/internal/domain/archive"
	"github.com/okian/liveboard/internal/domain/model"
)

// ArchiveTx is the transactional view handed to an archival callback.
type ArchiveTx = archive.Tx

// Store provides read/write access to the leaderboard state.
type Store interface {
	// GetEvent returns ErrEventNotFound when the id is unknown.
	GetEvent(ctx context.Context, id int64) (model.Event, error)

	// ListEventsBetween returns events overlapping [from, to], ordered by id.
	ListEventsBetween(ctx context.Context, from, to time.Time) ([]model.Event, error)

	// ListPrizes returns the prize lines of one table ordered by place, then id.
	ListPrizes(ctx context.Context, eventID int64) ([]model.Prize, error)

	// AddResult atomically adds delta to the user's live result, creating
	// the row on first submission. It re-checks that the event exists and is
	// open within the same transaction.
	AddResult(ctx context.Context, eventID, userID int64, delta float64, now time.Time) (model.Rating, error)

	// ListRatings returns the live ratings of an event in storage order.
	ListRatings(ctx context.Context, eventID int64) ([]model.Rating, error)

	// ListExpired returns ids of events that ended before now and still hold
	// live ratings.
	ListExpired(ctx context.Context, now time.Time) ([]int64, error)

	// Archive runs fn in one transaction holding the event's exclusive lock.
	// Nothing fn wrote is visible unless it returns nil.
	Archive(ctx context.Context, eventID int64, fn func(ArchiveTx) error) error

	// LatestHistory returns the newest snapshot, or ErrNotFound.
	LatestHistory(ctx context.Context, eventID int64) (model.EventHistory, error)

	// ListUnclaimed returns a user's granted rewards ordered by id.
	ListUnclaimed(ctx context.Context, userID int64) ([]model.UnclaimedReward, error)

	// ClaimReward removes the reward when it exists and belongs to userID.
	// Exactly one of several concurrent claims succeeds; the rest get
	// ErrRewardNotFound.
	ClaimReward(ctx context.Context, userID, rewardID int64) (model.UnclaimedReward, error)

	// Close releases resources.
	Close() error
}

// Seeder writes catalog data. Events and prize tables are authored outside
// the service; seeding exists for tooling and tests.
type Seeder interface {
	SaveEvent(ctx context.Context, ev *model.Event) error
	SavePrizes(ctx context.Context, prizes []model.Prize) error
}
