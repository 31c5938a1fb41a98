// Package types contains the read shapes returned by leaderboard queries.
package types

import "github.com/okian/liveboard/internal/domain/model"

// Entry represents a leaderboard row.
type Entry struct {
	UserID   int64         `json:"user_id"`
	Result   float64       `json:"result"`
	Place    int           `json:"place"`
	Rewards  model.Rewards `json:"rewards"`
	UserName *string       `json:"user_name"`
}

// Board is a leaderboard view: the top of the table plus the caller's row.
type Board struct {
	Top         []Entry `json:"top"`
	CurrentUser *Entry  `json:"current_user"`
}

// Submission is the outcome of adding a result.
type Submission struct {
	Result float64 `json:"result"`
	Place  int     `json:"place"`
}

// EventView is an event enriched with its effective prize table.
type EventView struct {
	model.Event
	Prizes []PrizeView `json:"prizes"`
}

// PrizeView is a prize line, carrying the masked phone of the winner for
// closed events.
type PrizeView struct {
	Place   int           `json:"place"`
	Rewards model.Rewards `json:"rewards"`
	Phone   *string       `json:"phone,omitempty"`
}
