package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/okian/liveboard/internal/domain/model"
)

type eventRecord struct {
	ID          int64          `gorm:"primaryKey"`
	Name        string         `gorm:"not null;default:''"`
	EventType   string         `gorm:"column:event_type;not null;default:'score'"`
	Logo        string         `gorm:"not null;default:''"`
	Description string         `gorm:"not null;default:''"`
	StartDate   time.Time      `gorm:"not null;index"`
	EndDate     time.Time      `gorm:"not null;index"`
	LevelIDs    datatypes.JSON `gorm:"column:level_ids"`
	ArchivedAt  *time.Time
}

func (eventRecord) TableName() string { return "events" }

type prizeRecord struct {
	ID      int64          `gorm:"primaryKey"`
	EventID int64          `gorm:"not null;index"`
	Place   int            `gorm:"not null"`
	Rewards datatypes.JSON `gorm:"not null"`
}

func (prizeRecord) TableName() string { return "event_prizes" }

type ratingRecord struct {
	ID        int64   `gorm:"primaryKey"`
	EventID   int64   `gorm:"not null;uniqueIndex:ux_event_ratings_event_user"`
	UserID    int64   `gorm:"not null;uniqueIndex:ux_event_ratings_event_user"`
	Result    float64 `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ratingRecord) TableName() string { return "event_ratings" }

type historyRecord struct {
	ID        int64          `gorm:"primaryKey"`
	ArchiveID string         `gorm:"size:36;not null;uniqueIndex"`
	EventID   int64          `gorm:"not null;index"`
	EndedAt   time.Time      `gorm:"not null"`
	Results   datatypes.JSON `gorm:"not null"`
}

func (historyRecord) TableName() string { return "event_history" }

type rewardRecord struct {
	ID        int64          `gorm:"primaryKey"`
	UserID    int64          `gorm:"not null;uniqueIndex:ux_unclaimed_rewards_user_event"`
	EventID   int64          `gorm:"not null;uniqueIndex:ux_unclaimed_rewards_user_event"`
	Place     int            `gorm:"not null"`
	Rewards   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
}

func (rewardRecord) TableName() string { return "unclaimed_rewards" }

// allRecords lists the tables owned by the store, in migration order.
func allRecords() []any {
	return []any{
		&eventRecord{},
		&prizeRecord{},
		&ratingRecord{},
		&historyRecord{},
		&rewardRecord{},
	}
}

func encodeJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return datatypes.JSON(b), nil
}

func decodeRewards(raw datatypes.JSON) (model.Rewards, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var r model.Rewards
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode rewards: %w", err)
	}
	return r, nil
}

func newEventRecord(ev *model.Event) (eventRecord, error) {
	levels, err := encodeJSON(ev.LevelIDs)
	if err != nil {
		return eventRecord{}, err
	}
	return eventRecord{
		ID:          ev.ID,
		Name:        ev.Name,
		EventType:   ev.ScoringType,
		Logo:        ev.Logo,
		Description: ev.Description,
		StartDate:   ev.StartDate.UTC(),
		EndDate:     ev.EndDate.UTC(),
		LevelIDs:    levels,
		ArchivedAt:  ev.ArchivedAt,
	}, nil
}

func (r eventRecord) toModel() (model.Event, error) {
	var levels []any
	if len(r.LevelIDs) > 0 {
		if err := json.Unmarshal(r.LevelIDs, &levels); err != nil {
			return model.Event{}, fmt.Errorf("decode level_ids of event %d: %w", r.ID, err)
		}
	}
	return model.Event{
		ID:          r.ID,
		Name:        r.Name,
		ScoringType: r.EventType,
		Logo:        r.Logo,
		Description: r.Description,
		StartDate:   r.StartDate.UTC(),
		EndDate:     r.EndDate.UTC(),
		LevelIDs:    levels,
		ArchivedAt:  r.ArchivedAt,
	}, nil
}

func (r prizeRecord) toModel() (model.Prize, error) {
	rewards, err := decodeRewards(r.Rewards)
	if err != nil {
		return model.Prize{}, err
	}
	return model.Prize{ID: r.ID, EventID: r.EventID, Place: r.Place, Rewards: rewards}, nil
}

func (r ratingRecord) toModel() model.Rating {
	return model.Rating{
		ID:        r.ID,
		EventID:   r.EventID,
		UserID:    r.UserID,
		Result:    r.Result,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r historyRecord) toModel() (model.EventHistory, error) {
	var results []model.HistoryResult
	if err := json.Unmarshal(r.Results, &results); err != nil {
		return model.EventHistory{}, fmt.Errorf("decode results of history %d: %w", r.ID, err)
	}
	return model.EventHistory{
		ID:        r.ID,
		ArchiveID: r.ArchiveID,
		EventID:   r.EventID,
		EndedAt:   r.EndedAt.UTC(),
		Results:   results,
	}, nil
}

func (r rewardRecord) toModel() (model.UnclaimedReward, error) {
	rewards, err := decodeRewards(r.Rewards)
	if err != nil {
		return model.UnclaimedReward{}, err
	}
	return model.UnclaimedReward{
		ID:        r.ID,
		UserID:    r.UserID,
		EventID:   r.EventID,
		Place:     r.Place,
		Rewards:   rewards,
		CreatedAt: r.CreatedAt.UTC(),
	}, nil
}
