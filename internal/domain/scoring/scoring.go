// Package scoring defines how live results are ordered into standings.
package scoring

import (
	"cmp"
	"slices"
	"strings"

	"github.com/okian/liveboard/internal/domain/model"
)

// Known scoring types as authored on events.
const (
	TypeScore = "score"
	TypeTime  = "time"
)

// Direction says which end of the result axis wins.
type Direction int

const (
	// HigherIsBetter ranks larger results first. It is also the default.
	HigherIsBetter Direction = iota
	// LowerIsBetter ranks smaller results first, e.g. fastest time.
	LowerIsBetter
)

// DefaultDirection applies to unrecognized scoring types.
const DefaultDirection = HigherIsBetter

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == LowerIsBetter {
		return "lower"
	}
	return "higher"
}

// ParseDirection maps a scoring type to a direction. ok is false when the
// type is unknown and DefaultDirection was returned.
func ParseDirection(scoringType string) (d Direction, ok bool) {
	switch strings.ToLower(strings.TrimSpace(scoringType)) {
	case TypeTime:
		return LowerIsBetter, true
	case TypeScore:
		return HigherIsBetter, true
	default:
		return DefaultDirection, false
	}
}

// Compare orders two results: negative when a ranks before b.
func (d Direction) Compare(a, b float64) int {
	if d == LowerIsBetter {
		return cmp.Compare(a, b)
	}
	return cmp.Compare(b, a)
}

// Standing is a ranked row. Place is 1-based.
type Standing struct {
	UserID int64
	Result float64
	Place  int
}

// Rank orders ratings by direction. Equal results keep storage order, so the
// row stored first (lower ID) places higher. The input is not modified.
func Rank(ratings []model.Rating, dir Direction) []Standing {
	rows := slices.Clone(ratings)
	slices.SortFunc(rows, func(a, b model.Rating) int {
		if c := dir.Compare(a.Result, b.Result); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	out := make([]Standing, len(rows))
	for i, r := range rows {
		out[i] = Standing{UserID: r.UserID, Result: r.Result, Place: i + 1}
	}
	return out
}

// Find returns the standing of userID, if ranked.
func Find(standings []Standing, userID int64) (Standing, bool) {
	for _, s := range standings {
		if s.UserID == userID {
			return s, true
		}
	}
	return Standing{}, false
}
