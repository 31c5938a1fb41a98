// Package ledger accumulates live results per (event, user) and ranks them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/internal/domain/scoring"
	"github.com/okian/liveboard/internal/domain/types"
	"github.com/okian/liveboard/pkg/logger"
	"github.com/okian/liveboard/pkg/metrics"
)

var (
	// ErrInvalidResult is returned for NaN or infinite deltas.
	ErrInvalidResult = errors.New("invalid result")
	// ErrEventNotFound is returned for unknown events.
	ErrEventNotFound = model.ErrEventNotFound
	// ErrEventClosed is returned for submissions at or after the end date.
	ErrEventClosed = model.ErrEventClosed
)

// Store is the persistence behind the ledger.
type Store interface {
	AddResult(ctx context.Context, eventID, userID int64, delta float64, now time.Time) (model.Rating, error)
	ListRatings(ctx context.Context, eventID int64) ([]model.Rating, error)
}

// Catalog resolves events and their ranking direction.
type Catalog interface {
	Get(ctx context.Context, id int64) (model.Event, error)
	Direction(ctx context.Context, ev model.Event) scoring.Direction
}

// Ledger records submissions and derives standings.
type Ledger struct {
	store   Store
	catalog Catalog
	logger  logger.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the ledger's logger.
func WithLogger(l logger.Logger) Option {
	return func(lg *Ledger) {
		if l != nil {
			lg.logger = l
		}
	}
}

// New constructs a Ledger.
func New(store Store, catalog Catalog, opts ...Option) *Ledger {
	l := &Ledger{store: store, catalog: catalog, logger: logger.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit adds delta to the user's running total and returns the new total
// with the user's place over the whole live population. The place is read
// after the write commits, so concurrent submissions may shift it.
func (l *Ledger) Submit(ctx context.Context, eventID, userID int64, delta float64, now time.Time) (types.Submission, error) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		metrics.RecordResultRejected("invalid")
		return types.Submission{}, ErrInvalidResult
	}

	ev, err := l.catalog.Get(ctx, eventID)
	if err != nil {
		return types.Submission{}, l.reject(err)
	}
	if ev.Closed(now) {
		return types.Submission{}, l.reject(ErrEventClosed)
	}

	row, err := l.store.AddResult(ctx, eventID, userID, delta, now)
	if err != nil {
		return types.Submission{}, l.reject(err)
	}
	metrics.RecordResultSubmitted()

	standings, err := l.Standings(ctx, ev)
	if err != nil {
		return types.Submission{}, err
	}
	out := types.Submission{Result: row.Result}
	if s, ok := scoring.Find(standings, userID); ok {
		out.Place = s.Place
	}

	l.logger.Debug(ctx, "result submitted",
		logger.Int64("event_id", eventID),
		logger.Int64("user_id", userID),
		logger.Float64("delta", delta),
		logger.Float64("total", out.Result),
		logger.Int("place", out.Place),
	)
	return out, nil
}

func (l *Ledger) reject(err error) error {
	switch {
	case errors.Is(err, ErrEventNotFound):
		metrics.RecordResultRejected("not_found")
		return ErrEventNotFound
	case errors.Is(err, ErrEventClosed):
		metrics.RecordResultRejected("closed")
		return ErrEventClosed
	default:
		metrics.RecordResultRejected("store")
		return fmt.Errorf("submit result: %w", err)
	}
}

// Standings ranks every live rating of ev.
func (l *Ledger) Standings(ctx context.Context, ev model.Event) ([]scoring.Standing, error) {
	rows, err := l.store.ListRatings(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("list ratings of event %d: %w", ev.ID, err)
	}
	return scoring.Rank(rows, l.catalog.Direction(ctx, ev)), nil
}
