package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/pkg/logger"
)

// GormStore implements Store on a relational database through gorm.
// On postgres, per-event advisory locks order archival against submissions:
// AddResult takes the shared lock, Archive the exclusive one.
type GormStore struct {
	db          *gorm.DB
	autoMigrate bool
	advisory    bool
	logger      logger.Logger
}

// NewGormStore wraps db and migrates the schema unless disabled.
func NewGormStore(ctx context.Context, db *gorm.DB, opts ...Option) (*GormStore, error) {
	s := &GormStore{
		db:          db,
		autoMigrate: true,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.advisory = db.Dialector.Name() == "postgres"

	if s.autoMigrate {
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Migrate creates or updates the tables owned by the store.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allRecords()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	s.logger.Info(ctx, "schema migrated")
	return nil
}

// DB exposes the underlying handle for collaborators sharing the database.
func (s *GormStore) DB() *gorm.DB { return s.db }

type lockMode int

const (
	lockShared lockMode = iota
	lockExclusive
)

// advisoryClass is the first key of every event lock, keeping them apart from
// other advisory lock users of the same database.
const advisoryClass int32 = 0x4c42

// advisoryKeys maps an event id onto the two-key advisory lock space. Ids
// that fold onto the same second key only serialize against each other.
func advisoryKeys(eventID int64) (int32, int32) {
	return advisoryClass, int32(eventID) ^ int32(eventID>>32) //nolint:gosec // folding is intended
}

func lockStatement(eventID int64, mode lockMode) (string, []any) {
	fn := "pg_advisory_xact_lock_shared"
	if mode == lockExclusive {
		fn = "pg_advisory_xact_lock"
	}
	class, key := advisoryKeys(eventID)
	return "SELECT " + fn + "(?, ?)", []any{class, key}
}

// lockEvent takes a transaction-scoped advisory lock for the event.
func (s *GormStore) lockEvent(tx *gorm.DB, eventID int64, mode lockMode) error {
	if !s.advisory {
		return nil
	}
	sql, args := lockStatement(eventID, mode)
	if err := tx.Exec(sql, args...).Error; err != nil {
		return fmt.Errorf("lock event %d: %w", eventID, err)
	}
	return nil
}

// SaveEvent inserts or updates an event.
func (s *GormStore) SaveEvent(ctx context.Context, ev *model.Event) error {
	rec, err := newEventRecord(ev)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	ev.ID = rec.ID
	return nil
}

// SavePrizes inserts prize lines and writes the assigned ids back.
func (s *GormStore) SavePrizes(ctx context.Context, prizes []model.Prize) error {
	if len(prizes) == 0 {
		return nil
	}
	recs := make([]prizeRecord, len(prizes))
	for i, p := range prizes {
		raw, err := encodeJSON(p.Rewards)
		if err != nil {
			return err
		}
		recs[i] = prizeRecord{EventID: p.EventID, Place: p.Place, Rewards: raw}
	}
	if err := s.db.WithContext(ctx).Create(&recs).Error; err != nil {
		return fmt.Errorf("save prizes: %w", err)
	}
	for i := range recs {
		prizes[i].ID = recs[i].ID
	}
	return nil
}

// GetEvent implements Store.
func (s *GormStore) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	defer observe("get_event", time.Now())
	return takeEvent(s.db.WithContext(ctx), id)
}

func takeEvent(db *gorm.DB, id int64) (model.Event, error) {
	var rec eventRecord
	if err := db.Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Event{}, ErrEventNotFound
		}
		return model.Event{}, fmt.Errorf("get event %d: %w", id, err)
	}
	return rec.toModel()
}

// ListEventsBetween implements Store.
func (s *GormStore) ListEventsBetween(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	defer observe("list_events", time.Now())
	var recs []eventRecord
	if err := s.db.WithContext(ctx).
		Where("start_date <= ? AND end_date >= ?", to.UTC(), from.UTC()).
		Order("id asc").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]model.Event, 0, len(recs))
	for _, r := range recs {
		ev, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// ListPrizes implements Store.
func (s *GormStore) ListPrizes(ctx context.Context, eventID int64) ([]model.Prize, error) {
	var recs []prizeRecord
	if err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("place asc, id asc").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list prizes: %w", err)
	}
	out := make([]model.Prize, 0, len(recs))
	for _, r := range recs {
		p, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// AddResult implements Store with a single upsert on (event_id, user_id).
func (s *GormStore) AddResult(ctx context.Context, eventID, userID int64, delta float64, now time.Time) (model.Rating, error) {
	defer observe("add_result", time.Now())
	now = now.UTC()

	var out ratingRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockEvent(tx, eventID, lockShared); err != nil {
			return err
		}
		ev, err := takeEvent(tx, eventID)
		if err != nil {
			return err
		}
		if ev.Closed(now) {
			return ErrEventClosed
		}

		row := ratingRecord{EventID: eventID, UserID: userID, Result: delta, CreatedAt: now, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"result":     gorm.Expr("event_ratings.result + excluded.result"),
				"updated_at": now,
			}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("upsert rating: %w", err)
		}
		return tx.Where("event_id = ? AND user_id = ?", eventID, userID).Take(&out).Error
	})
	if err != nil {
		return model.Rating{}, err
	}
	return out.toModel(), nil
}

// ListRatings implements Store.
func (s *GormStore) ListRatings(ctx context.Context, eventID int64) ([]model.Rating, error) {
	defer observe("list_ratings", time.Now())
	return listRatings(s.db.WithContext(ctx), eventID)
}

func listRatings(db *gorm.DB, eventID int64) ([]model.Rating, error) {
	var recs []ratingRecord
	if err := db.Where("event_id = ?", eventID).Order("id asc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	out := make([]model.Rating, len(recs))
	for i, r := range recs {
		out[i] = r.toModel()
	}
	return out, nil
}

// ListExpired implements Store.
func (s *GormStore) ListExpired(ctx context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).
		Model(&ratingRecord{}).
		Joins("JOIN events ON events.id = event_ratings.event_id").
		Where("events.end_date < ?", now.UTC()).
		Distinct().
		Pluck("event_ratings.event_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

// Archive implements Store.
func (s *GormStore) Archive(ctx context.Context, eventID int64, fn func(ArchiveTx) error) error {
	defer observe("archive", time.Now())
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockEvent(tx, eventID, lockExclusive); err != nil {
			return err
		}
		return fn(&gormArchiveTx{tx: tx, eventID: eventID})
	})
}

// LatestHistory implements Store.
func (s *GormStore) LatestHistory(ctx context.Context, eventID int64) (model.EventHistory, error) {
	var rec historyRecord
	if err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("ended_at desc, id desc").
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.EventHistory{}, ErrNotFound
		}
		return model.EventHistory{}, fmt.Errorf("latest history: %w", err)
	}
	return rec.toModel()
}

// ListUnclaimed implements Store.
func (s *GormStore) ListUnclaimed(ctx context.Context, userID int64) ([]model.UnclaimedReward, error) {
	var recs []rewardRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id asc").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list unclaimed: %w", err)
	}
	out := make([]model.UnclaimedReward, 0, len(recs))
	for _, r := range recs {
		u, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// ClaimReward implements Store. The conditional delete decides the winner
// among concurrent claims.
func (s *GormStore) ClaimReward(ctx context.Context, userID, rewardID int64) (model.UnclaimedReward, error) {
	defer observe("claim_reward", time.Now())
	var rec rewardRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", rewardID, userID).Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRewardNotFound
			}
			return fmt.Errorf("load reward: %w", err)
		}
		res := tx.Where("id = ? AND user_id = ?", rewardID, userID).Delete(&rewardRecord{})
		if res.Error != nil {
			return fmt.Errorf("delete reward: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrRewardNotFound
		}
		return nil
	})
	if err != nil {
		return model.UnclaimedReward{}, err
	}
	return rec.toModel()
}

// Close implements Store.
func (s *GormStore) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}

type gormArchiveTx struct {
	tx      *gorm.DB
	eventID int64
}

func (a *gormArchiveTx) Ratings(ctx context.Context) ([]model.Rating, error) {
	return listRatings(a.tx.WithContext(ctx), a.eventID)
}

func (a *gormArchiveTx) InsertHistory(ctx context.Context, h *model.EventHistory) error {
	raw, err := encodeJSON(h.Results)
	if err != nil {
		return err
	}
	rec := historyRecord{
		ArchiveID: h.ArchiveID,
		EventID:   a.eventID,
		EndedAt:   h.EndedAt.UTC(),
		Results:   raw,
	}
	if err := a.tx.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	h.ID = rec.ID
	h.EventID = a.eventID
	return nil
}

func (a *gormArchiveTx) GrantRewards(ctx context.Context, rewards []model.UnclaimedReward) error {
	if len(rewards) == 0 {
		return nil
	}
	recs := make([]rewardRecord, len(rewards))
	for i, r := range rewards {
		raw, err := encodeJSON(r.Rewards)
		if err != nil {
			return err
		}
		recs[i] = rewardRecord{
			UserID:    r.UserID,
			EventID:   r.EventID,
			Place:     r.Place,
			Rewards:   raw,
			CreatedAt: r.CreatedAt.UTC(),
		}
	}
	if err := a.tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"place", "rewards", "created_at"}),
	}).Create(&recs).Error; err != nil {
		return fmt.Errorf("grant rewards: %w", err)
	}
	return nil
}

func (a *gormArchiveTx) DeleteRatings(ctx context.Context) error {
	if err := a.tx.WithContext(ctx).Where("event_id = ?", a.eventID).Delete(&ratingRecord{}).Error; err != nil {
		return fmt.Errorf("delete ratings: %w", err)
	}
	return nil
}

func (a *gormArchiveTx) MarkArchived(ctx context.Context, at time.Time) error {
	if err := a.tx.WithContext(ctx).
		Model(&eventRecord{}).
		Where("id = ?", a.eventID).
		Update("archived_at", at.UTC()).Error; err != nil {
		return fmt.Errorf("mark archived: %w", err)
	}
	return nil
}
