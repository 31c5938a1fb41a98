// Package leaderboard composes the catalog, the ledger and the user
// directory into the public leaderboard view.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/internal/domain/prizes"
	"github.com/okian/liveboard/internal/domain/scoring"
	"github.com/okian/liveboard/internal/domain/types"
	"github.com/okian/liveboard/pkg/logger"
	"github.com/okian/liveboard/pkg/metrics"
)

// Limits applied when the caller gives none or asks for too many rows.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

const (
	maskToken    = "***"
	maskKeep     = 4
	minMaskDigit = 2 * maskKeep
)

// ErrEventNotFound is returned for unknown events.
var ErrEventNotFound = model.ErrEventNotFound

// Catalog resolves events and prize tables.
type Catalog interface {
	Get(ctx context.Context, id int64) (model.Event, error)
	PrizeTable(ctx context.Context, eventID int64) ([]model.Prize, error)
}

// Ledger ranks the live population of an event.
type Ledger interface {
	Standings(ctx context.Context, ev model.Event) ([]scoring.Standing, error)
}

// Directory looks up phone numbers. Users without a phone are absent from
// the returned map.
type Directory interface {
	Phones(ctx context.Context, userIDs []int64) (map[int64]string, error)
}

// Query builds leaderboard views. It has no state of its own.
type Query struct {
	catalog      Catalog
	ledger       Ledger
	directory    Directory
	defaultLimit int
	maxLimit     int
	logger       logger.Logger
}

// Option configures a Query.
type Option func(*Query)

// WithLimits sets the default and maximum number of top rows.
func WithLimits(def, maxRows int) Option {
	return func(q *Query) {
		if def > 0 {
			q.defaultLimit = def
		}
		if maxRows > 0 {
			q.maxLimit = maxRows
		}
	}
}

// WithLogger sets the query's logger.
func WithLogger(l logger.Logger) Option {
	return func(q *Query) {
		if l != nil {
			q.logger = l
		}
	}
}

// New constructs a Query.
func New(catalog Catalog, ledger Ledger, directory Directory, opts ...Option) *Query {
	q := &Query{
		catalog:      catalog,
		ledger:       ledger,
		directory:    directory,
		defaultLimit: DefaultLimit,
		maxLimit:     MaxLimit,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Limit clamps a requested row count into [1, max]; non-positive values
// select the default.
func (q *Query) Limit(n int) int {
	switch {
	case n <= 0:
		return q.defaultLimit
	case n > q.maxLimit:
		return q.maxLimit
	default:
		return n
	}
}

// Leaderboard returns the first limit rows of eventID and the row of userID,
// which is nil when the user has not submitted.
func (q *Query) Leaderboard(ctx context.Context, eventID, userID int64, limit int) (types.Board, error) {
	board, err := q.leaderboard(ctx, eventID, userID, q.Limit(limit))
	if err != nil {
		metrics.RecordLeaderboardError()
		return types.Board{}, err
	}
	metrics.RecordLeaderboardRead()
	return board, nil
}

func (q *Query) leaderboard(ctx context.Context, eventID, userID int64, limit int) (types.Board, error) {
	ev, err := q.catalog.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return types.Board{}, ErrEventNotFound
		}
		return types.Board{}, fmt.Errorf("leaderboard of event %d: %w", eventID, err)
	}
	table, err := q.catalog.PrizeTable(ctx, eventID)
	if err != nil {
		return types.Board{}, err
	}
	standings, err := q.ledger.Standings(ctx, ev)
	if err != nil {
		return types.Board{}, err
	}

	top := standings[:min(limit, len(standings))]
	mine, hasMine := scoring.Find(standings, userID)

	ids := make([]int64, 0, len(top)+1)
	for _, s := range top {
		ids = append(ids, s.UserID)
	}
	if hasMine {
		ids = append(ids, mine.UserID)
	}
	phones := q.phones(ctx, ids)

	board := types.Board{Top: make([]types.Entry, len(top))}
	for i, s := range top {
		board.Top[i] = entry(s, table, phones)
	}
	if hasMine {
		e := entry(mine, table, phones)
		board.CurrentUser = &e
	}
	return board, nil
}

// phones resolves phone numbers, degrading to none when the directory fails.
func (q *Query) phones(ctx context.Context, ids []int64) map[int64]string {
	if q.directory == nil || len(ids) == 0 {
		return nil
	}
	phones, err := q.directory.Phones(ctx, ids)
	if err != nil {
		q.logger.Warn(ctx, "directory lookup failed", logger.Int("users", len(ids)), logger.Error(err))
		return nil
	}
	return phones
}

// MaskedPhones resolves and masks the phones of ids.
func (q *Query) MaskedPhones(ctx context.Context, ids []int64) map[int64]string {
	phones := q.phones(ctx, ids)
	out := make(map[int64]string, len(phones))
	for id, p := range phones {
		out[id] = MaskPhone(p)
	}
	return out
}

func entry(s scoring.Standing, table []model.Prize, phones map[int64]string) types.Entry {
	e := types.Entry{
		UserID:  s.UserID,
		Result:  s.Result,
		Place:   s.Place,
		Rewards: prizes.RewardsFor(table, s.Place),
	}
	if p, ok := phones[s.UserID]; ok {
		masked := MaskPhone(p)
		e.UserName = &masked
	}
	return e
}

// MaskPhone hides all but the first and last four digits of a phone number,
// keeping a leading plus. Numbers with fewer than eight digits are returned
// unchanged.
func MaskPhone(phone string) string {
	digits := make([]byte, 0, len(phone))
	for i := 0; i < len(phone); i++ {
		if c := phone[i]; c >= '0' && c <= '9' {
			digits = append(digits, c)
		}
	}
	if len(digits) < minMaskDigit {
		return phone
	}

	var b strings.Builder
	if strings.HasPrefix(strings.TrimSpace(phone), "+") {
		b.WriteByte('+')
	}
	b.Write(digits[:maskKeep])
	b.WriteString(maskToken)
	b.Write(digits[len(digits)-maskKeep:])
	return b.String()
}
