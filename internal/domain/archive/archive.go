// Package archive retires ended events: it freezes the final standings into
// history, grants prizes and clears live ratings in one transaction.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/internal/domain/prizes"
	"github.com/okian/liveboard/internal/domain/scoring"
	"github.com/okian/liveboard/pkg/logger"
	"github.com/okian/liveboard/pkg/metrics"
)

// ErrEventOpen is returned when archiving an event that has not ended.
var ErrEventOpen = errors.New("event still open")

// Tx is the transactional view of one event handed to an archival run.
// Implementations hold the event's exclusive lock for the lifetime of Tx.
type Tx interface {
	Ratings(ctx context.Context) ([]model.Rating, error)
	InsertHistory(ctx context.Context, h *model.EventHistory) error
	prizes.Granter
	DeleteRatings(ctx context.Context) error
	MarkArchived(ctx context.Context, at time.Time) error
}

// Store is the persistence the engine archives through.
type Store interface {
	ListExpired(ctx context.Context, now time.Time) ([]int64, error)
	Archive(ctx context.Context, eventID int64, fn func(Tx) error) error
	LatestHistory(ctx context.Context, eventID int64) (model.EventHistory, error)
}

// Catalog resolves event metadata and prize tables.
type Catalog interface {
	Get(ctx context.Context, id int64) (model.Event, error)
	PrizeTable(ctx context.Context, eventID int64) ([]model.Prize, error)
	Direction(ctx context.Context, ev model.Event) scoring.Direction
}

// Exporter receives committed snapshots. Export must not block.
type Exporter interface {
	Export(ctx context.Context, h model.EventHistory) error
}

// Engine archives events whose end time has passed.
type Engine struct {
	store    Store
	catalog  Catalog
	exporter Exporter
	logger   logger.Logger
	newID    func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithExporter hands every committed snapshot to x.
func WithExporter(x Exporter) Option {
	return func(e *Engine) { e.exporter = x }
}

// WithIDGenerator overrides archive id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEngine constructs an Engine.
func NewEngine(store Store, catalog Catalog, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		catalog: catalog,
		logger:  logger.Nop(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sweep archives every event that ended before now and still has live
// ratings. It returns the number of events archived; failures of single
// events are joined and do not stop the sweep.
func (e *Engine) Sweep(ctx context.Context, now time.Time) (int, error) {
	metrics.RecordSweep()

	ids, err := e.store.ListExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired events: %w", err)
	}

	var (
		archived int
		errs     []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, ok, err := e.Archive(ctx, id, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			archived++
		}
	}
	return archived, errors.Join(errs...)
}

// Archive freezes the standings of eventID. ok is false when there was
// nothing left to archive, which makes repeated runs no-ops.
func (e *Engine) Archive(ctx context.Context, eventID int64, now time.Time) (model.EventHistory, bool, error) {
	start := time.Now()

	ev, err := e.catalog.Get(ctx, eventID)
	if err != nil {
		return model.EventHistory{}, false, e.fail(ctx, eventID, err)
	}
	if !ev.Closed(now) {
		return model.EventHistory{}, false, fmt.Errorf("archive event %d: %w", eventID, ErrEventOpen)
	}
	table, err := e.catalog.PrizeTable(ctx, eventID)
	if err != nil {
		return model.EventHistory{}, false, e.fail(ctx, eventID, err)
	}
	dir := e.catalog.Direction(ctx, ev)

	var (
		hist    model.EventHistory
		granted int
		done    bool
	)
	err = e.store.Archive(ctx, eventID, func(tx Tx) error {
		rows, err := tx.Ratings(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		hist = model.EventHistory{
			ArchiveID: e.newID(),
			EventID:   eventID,
			EndedAt:   now,
			Results:   Snapshot(rows, dir, table),
		}
		if err := tx.InsertHistory(ctx, &hist); err != nil {
			return err
		}
		if granted, err = prizes.GrantAll(ctx, tx, eventID, hist.Results, now); err != nil {
			return err
		}
		if err := tx.DeleteRatings(ctx); err != nil {
			return err
		}
		if err := tx.MarkArchived(ctx, now); err != nil {
			return err
		}
		done = true
		return nil
	})
	if err != nil {
		return model.EventHistory{}, false, e.fail(ctx, eventID, err)
	}
	if !done {
		return model.EventHistory{}, false, nil
	}

	metrics.RecordEventArchived(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordRewardsGranted(granted)
	e.logger.Info(ctx, "event archived",
		logger.Int64("event_id", eventID),
		logger.String("archive_id", hist.ArchiveID),
		logger.Int("results", len(hist.Results)),
		logger.Int("granted", granted),
	)

	if e.exporter != nil {
		if err := e.exporter.Export(ctx, hist); err != nil {
			e.logger.Warn(ctx, "export not scheduled",
				logger.String("archive_id", hist.ArchiveID),
				logger.Error(err),
			)
		}
	}
	return hist, true, nil
}

func (e *Engine) fail(ctx context.Context, eventID int64, err error) error {
	metrics.RecordArchiveFailure()
	e.logger.Error(ctx, "archive failed", logger.Int64("event_id", eventID), logger.Error(err))
	return fmt.Errorf("archive event %d: %w", eventID, err)
}

// Snapshot ranks rows and attaches the prize of each place.
func Snapshot(rows []model.Rating, dir scoring.Direction, table []model.Prize) []model.HistoryResult {
	standings := scoring.Rank(rows, dir)
	out := make([]model.HistoryResult, len(standings))
	for i, s := range standings {
		out[i] = model.HistoryResult{
			UserID:  s.UserID,
			Result:  s.Result,
			Place:   s.Place,
			Rewards: prizes.RewardsFor(table, s.Place),
		}
	}
	return out
}

// WinnerIDs returns the user who took each place in the latest archival of
// eventID. An event never archived yields an empty map.
func (e *Engine) WinnerIDs(ctx context.Context, eventID int64) (map[int]int64, error) {
	h, err := e.store.LatestHistory(ctx, eventID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return map[int]int64{}, nil
		}
		return nil, fmt.Errorf("latest history of event %d: %w", eventID, err)
	}
	return h.WinnersByPlace(), nil
}
