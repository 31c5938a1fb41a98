package model

import "time"

// HistoryResult is one frozen standings row.
type HistoryResult struct {
	UserID  int64   `json:"user_id"`
	Result  float64 `json:"result"`
	Place   int     `json:"place"`
	Rewards Rewards `json:"rewards"`
}

// EventHistory is an immutable snapshot written when an event is archived.
type EventHistory struct {
	ID        int64           `json:"id"`
	ArchiveID string          `json:"archive_id"`
	EventID   int64           `json:"event_id"`
	EndedAt   time.Time       `json:"ended_at"`
	Results   []HistoryResult `json:"results"`
}

// WinnersByPlace maps each place to the first user recorded for it.
func (h EventHistory) WinnersByPlace() map[int]int64 {
	out := make(map[int]int64, len(h.Results))
	for _, r := range h.Results {
		if _, ok := out[r.Place]; !ok {
			out[r.Place] = r.UserID
		}
	}
	return out
}

// UnclaimedReward is a granted prize awaiting collection.
type UnclaimedReward struct {
	ID        int64     `json:"reward_id"`
	UserID    int64     `json:"-"`
	EventID   int64     `json:"event_id"`
	Place     int       `json:"place"`
	Rewards   Rewards   `json:"rewards"`
	CreatedAt time.Time `json:"created"`
}
