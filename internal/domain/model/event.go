// Package model contains domain models passed between layers.
package model

import "time"

// Event is a time-boxed competition. Its metadata is authored elsewhere and
// read-only to this service, except ArchivedAt.
type Event struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	ScoringType string     `json:"event_type"`
	Logo        string     `json:"logo"`
	Description string     `json:"description"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	LevelIDs    []any      `json:"level_ids"`
	ArchivedAt  *time.Time `json:"-"`
}

// Closed reports whether submissions are no longer accepted at now.
func (e Event) Closed(now time.Time) bool {
	return !now.Before(e.EndDate)
}

// Rewards is an opaque reward bundle, e.g. {"gold": 100, "skin": "dragon"}.
type Rewards map[string]any

// Empty reports whether the bundle grants nothing.
func (r Rewards) Empty() bool { return len(r) == 0 }

// Clone returns a shallow copy so callers can't mutate shared tables.
func (r Rewards) Clone() Rewards {
	if r == nil {
		return nil
	}
	out := make(Rewards, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Prize is one line of an event's prize table.
type Prize struct {
	ID      int64   `json:"-"`
	EventID int64   `json:"-"`
	Place   int     `json:"place"`
	Rewards Rewards `json:"rewards"`
}

// Rating is a user's cumulative live result in an event. ID reflects
// insertion order and breaks ranking ties.
type Rating struct {
	ID        int64
	EventID   int64
	UserID    int64
	Result    float64
	CreatedAt time.Time
	UpdatedAt time.Time
}
