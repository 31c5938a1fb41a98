// Package catalog is the read-only view of events and their prize tables.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/internal/domain/scoring"
	"github.com/okian/liveboard/pkg/logger"
	"github.com/okian/liveboard/pkg/metrics"
)

// ErrEventNotFound is returned for unknown event ids.
var ErrEventNotFound = model.ErrEventNotFound

// DefaultPadding widens the visibility window on both sides.
const DefaultPadding = 24 * time.Hour

// DefaultPrizeEventID owns the fallback prize table.
const DefaultPrizeEventID int64 = -1

const cacheName = "event_info"

// Store is the persistence the catalog reads.
type Store interface {
	GetEvent(ctx context.Context, id int64) (model.Event, error)
	ListEventsBetween(ctx context.Context, from, to time.Time) ([]model.Event, error)
	ListPrizes(ctx context.Context, eventID int64) ([]model.Prize, error)
}

// Cache holds encoded events until they end.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Catalog resolves events, their visibility and prize tables.
type Catalog struct {
	store          Store
	cache          Cache
	padding        time.Duration
	defaultPrizeID int64
	logger         logger.Logger
	now            func() time.Time
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithCache caches events by id until their end date.
func WithCache(c Cache) Option {
	return func(cat *Catalog) { cat.cache = c }
}

// WithPadding sets the visibility padding.
func WithPadding(d time.Duration) Option {
	return func(cat *Catalog) {
		if d >= 0 {
			cat.padding = d
		}
	}
}

// WithDefaultPrizeEventID sets the event id of the fallback prize table.
func WithDefaultPrizeEventID(id int64) Option {
	return func(cat *Catalog) { cat.defaultPrizeID = id }
}

// WithLogger sets the catalog's logger.
func WithLogger(l logger.Logger) Option {
	return func(cat *Catalog) {
		if l != nil {
			cat.logger = l
		}
	}
}

// WithClock overrides the clock used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(cat *Catalog) {
		if now != nil {
			cat.now = now
		}
	}
}

// New constructs a Catalog over store.
func New(store Store, opts ...Option) *Catalog {
	c := &Catalog{
		store:          store,
		padding:        DefaultPadding,
		defaultPrizeID: DefaultPrizeEventID,
		logger:         logger.Nop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cacheKey(id int64) string {
	return cacheName + ":" + strconv.FormatInt(id, 10)
}

// Get returns the event with id or ErrEventNotFound.
func (c *Catalog) Get(ctx context.Context, id int64) (model.Event, error) {
	if ev, ok := c.cached(ctx, id); ok {
		return ev, nil
	}

	ev, err := c.store.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return model.Event{}, ErrEventNotFound
		}
		return model.Event{}, fmt.Errorf("get event %d: %w", id, err)
	}

	c.remember(ctx, ev)
	return ev, nil
}

func (c *Catalog) cached(ctx context.Context, id int64) (model.Event, bool) {
	if c.cache == nil {
		return model.Event{}, false
	}
	raw, ok, err := c.cache.Get(ctx, cacheKey(id))
	if err != nil {
		c.logger.Warn(ctx, "event cache read failed", logger.Int64("event_id", id), logger.Error(err))
		return model.Event{}, false
	}
	if !ok {
		metrics.RecordCacheMiss(cacheName)
		return model.Event{}, false
	}
	var ev cachedEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.logger.Warn(ctx, "event cache entry corrupt", logger.Int64("event_id", id), logger.Error(err))
		return model.Event{}, false
	}
	metrics.RecordCacheHit(cacheName)
	return ev.toModel(), true
}

// remember caches ev until it ends. Ended events are never cached.
func (c *Catalog) remember(ctx context.Context, ev model.Event) {
	if c.cache == nil {
		return
	}
	ttl := ev.EndDate.Sub(c.now())
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(newCachedEvent(ev))
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey(ev.ID), raw, ttl); err != nil {
		c.logger.Warn(ctx, "event cache write failed", logger.Int64("event_id", ev.ID), logger.Error(err))
	}
}

// ListVisible returns the events whose padded window covers now: started by
// now+padding and not ended before now-padding. Both bounds are inclusive.
func (c *Catalog) ListVisible(ctx context.Context, now time.Time) ([]model.Event, error) {
	events, err := c.store.ListEventsBetween(ctx, now.Add(-c.padding), now.Add(c.padding))
	if err != nil {
		return nil, fmt.Errorf("list visible events: %w", err)
	}
	return events, nil
}

// PrizeTable returns the prize lines of eventID ordered by place, falling
// back to the default table when the event defines none.
func (c *Catalog) PrizeTable(ctx context.Context, eventID int64) ([]model.Prize, error) {
	table, err := c.store.ListPrizes(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("prize table of event %d: %w", eventID, err)
	}
	if len(table) > 0 || eventID == c.defaultPrizeID {
		return table, nil
	}
	table, err = c.store.ListPrizes(ctx, c.defaultPrizeID)
	if err != nil {
		return nil, fmt.Errorf("default prize table: %w", err)
	}
	return table, nil
}

// Direction returns the ranking direction of ev. Unknown scoring types rank
// higher-is-better and are logged at debug level.
func (c *Catalog) Direction(ctx context.Context, ev model.Event) scoring.Direction {
	d, ok := scoring.ParseDirection(ev.ScoringType)
	if !ok {
		c.logger.Debug(ctx, "unknown scoring type, using default direction",
			logger.Int64("event_id", ev.ID),
			logger.String("event_type", ev.ScoringType),
			logger.String("direction", d.String()),
		)
	}
	return d
}

// cachedEvent is the cache encoding of an event. It keeps fields the public
// JSON form hides.
type cachedEvent struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	ScoringType string     `json:"event_type"`
	Logo        string     `json:"logo"`
	Description string     `json:"description"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	LevelIDs    []any      `json:"level_ids"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
}

func newCachedEvent(ev model.Event) cachedEvent {
	return cachedEvent{
		ID:          ev.ID,
		Name:        ev.Name,
		ScoringType: ev.ScoringType,
		Logo:        ev.Logo,
		Description: ev.Description,
		StartDate:   ev.StartDate,
		EndDate:     ev.EndDate,
		LevelIDs:    ev.LevelIDs,
		ArchivedAt:  ev.ArchivedAt,
	}
}

func (e cachedEvent) toModel() model.Event {
	return model.Event{
		ID:          e.ID,
		Name:        e.Name,
		ScoringType: e.ScoringType,
		Logo:        e.Logo,
		Description: e.Description,
		StartDate:   e.StartDate,
		EndDate:     e.EndDate,
		LevelIDs:    e.LevelIDs,
		ArchivedAt:  e.ArchivedAt,
	}
}
