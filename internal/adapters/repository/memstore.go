package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/liveboard/internal/domain/model"
)

// MemoryStore is an in-process Store. A single mutex serializes writers, so
// archival never interleaves with submissions.
type MemoryStore struct {
	mu      sync.RWMutex
	events  map[int64]model.Event
	prizes  []model.Prize
	ratings map[int64][]model.Rating // per event, storage order
	history []model.EventHistory
	rewards []model.UnclaimedReward // ordered by id

	nextEventID   int64
	nextPrizeID   int64
	nextRatingID  int64
	nextHistoryID int64
	nextRewardID  int64
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:  make(map[int64]model.Event),
		ratings: make(map[int64][]model.Rating),
	}
}

// SaveEvent inserts or replaces an event. A zero ID is assigned the next id.
func (s *MemoryStore) SaveEvent(_ context.Context, ev *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == 0 {
		s.nextEventID++
		ev.ID = s.nextEventID
	}
	if ev.ID > s.nextEventID {
		s.nextEventID = ev.ID
	}
	s.events[ev.ID] = *ev
	return nil
}

// SavePrizes appends prize lines, assigning ids in order.
func (s *MemoryStore) SavePrizes(_ context.Context, prizes []model.Prize) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range prizes {
		s.nextPrizeID++
		prizes[i].ID = s.nextPrizeID
		p := prizes[i]
		p.Rewards = p.Rewards.Clone()
		s.prizes = append(s.prizes, p)
	}
	return nil
}

// GetEvent implements Store.
func (s *MemoryStore) GetEvent(_ context.Context, id int64) (model.Event, error) {
	defer observe("get_event", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return model.Event{}, ErrEventNotFound
	}
	return ev, nil
}

// ListEventsBetween implements Store.
func (s *MemoryStore) ListEventsBetween(_ context.Context, from, to time.Time) ([]model.Event, error) {
	defer observe("list_events", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Event, 0)
	for _, ev := range s.events {
		if !ev.StartDate.After(to) && !ev.EndDate.Before(from) {
			out = append(out, ev)
		}
	}
	slices.SortFunc(out, func(a, b model.Event) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// ListPrizes implements Store.
func (s *MemoryStore) ListPrizes(_ context.Context, eventID int64) ([]model.Prize, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Prize, 0)
	for _, p := range s.prizes {
		if p.EventID == eventID {
			p.Rewards = p.Rewards.Clone()
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Prize) int {
		if c := cmp.Compare(a.Place, b.Place); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// AddResult implements Store.
func (s *MemoryStore) AddResult(_ context.Context, eventID, userID int64, delta float64, now time.Time) (model.Rating, error) {
	defer observe("add_result", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[eventID]
	if !ok {
		return model.Rating{}, ErrEventNotFound
	}
	if ev.Closed(now) {
		return model.Rating{}, ErrEventClosed
	}

	rows := s.ratings[eventID]
	for i := range rows {
		if rows[i].UserID == userID {
			rows[i].Result += delta
			rows[i].UpdatedAt = now
			return rows[i], nil
		}
	}

	s.nextRatingID++
	r := model.Rating{
		ID:        s.nextRatingID,
		EventID:   eventID,
		UserID:    userID,
		Result:    delta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.ratings[eventID] = append(rows, r)
	return r, nil
}

// ListRatings implements Store.
func (s *MemoryStore) ListRatings(_ context.Context, eventID int64) ([]model.Rating, error) {
	defer observe("list_ratings", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.ratings[eventID]), nil
}

// ListExpired implements Store.
func (s *MemoryStore) ListExpired(_ context.Context, now time.Time) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, rows := range s.ratings {
		if len(rows) == 0 {
			continue
		}
		if ev, ok := s.events[id]; ok && ev.EndDate.Before(now) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Archive implements Store. Writes are staged and applied only when fn
// succeeds.
func (s *MemoryStore) Archive(ctx context.Context, eventID int64, fn func(ArchiveTx) error) error {
	defer observe("archive", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memArchiveTx{store: s, eventID: eventID}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// LatestHistory implements Store.
func (s *MemoryStore) LatestHistory(_ context.Context, eventID int64) (model.EventHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		latest model.EventHistory
		found  bool
	)
	for _, h := range s.history {
		if h.EventID != eventID {
			continue
		}
		if !found || h.EndedAt.After(latest.EndedAt) || (h.EndedAt.Equal(latest.EndedAt) && h.ID > latest.ID) {
			latest, found = h, true
		}
	}
	if !found {
		return model.EventHistory{}, ErrNotFound
	}
	return latest, nil
}

// ListUnclaimed implements Store.
func (s *MemoryStore) ListUnclaimed(_ context.Context, userID int64) ([]model.UnclaimedReward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.UnclaimedReward, 0)
	for _, r := range s.rewards {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ClaimReward implements Store.
func (s *MemoryStore) ClaimReward(_ context.Context, userID, rewardID int64) (model.UnclaimedReward, error) {
	defer observe("claim_reward", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rewards {
		if r.ID == rewardID && r.UserID == userID {
			s.rewards = slices.Delete(s.rewards, i, i+1)
			return r, nil
		}
	}
	return model.UnclaimedReward{}, ErrRewardNotFound
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// memArchiveTx stages archival writes. The store lock is held by Archive for
// the whole lifetime of the transaction.
type memArchiveTx struct {
	store   *MemoryStore
	eventID int64

	history    []model.EventHistory
	grants     []model.UnclaimedReward
	dropRows   bool
	archivedAt *time.Time
}

func (tx *memArchiveTx) Ratings(_ context.Context) ([]model.Rating, error) {
	return slices.Clone(tx.store.ratings[tx.eventID]), nil
}

func (tx *memArchiveTx) InsertHistory(_ context.Context, h *model.EventHistory) error {
	tx.store.nextHistoryID++
	h.ID = tx.store.nextHistoryID
	h.EventID = tx.eventID
	cp := *h
	cp.Results = slices.Clone(h.Results)
	tx.history = append(tx.history, cp)
	return nil
}

func (tx *memArchiveTx) GrantRewards(_ context.Context, rewards []model.UnclaimedReward) error {
	tx.grants = append(tx.grants, rewards...)
	return nil
}

func (tx *memArchiveTx) DeleteRatings(_ context.Context) error {
	tx.dropRows = true
	return nil
}

func (tx *memArchiveTx) MarkArchived(_ context.Context, at time.Time) error {
	tx.archivedAt = &at
	return nil
}

func (tx *memArchiveTx) commit() {
	s := tx.store
	s.history = append(s.history, tx.history...)

	for _, g := range tx.grants {
		s.upsertReward(g)
	}

	if tx.dropRows {
		delete(s.ratings, tx.eventID)
	}
	if tx.archivedAt != nil {
		if ev, ok := s.events[tx.eventID]; ok {
			at := *tx.archivedAt
			ev.ArchivedAt = &at
			s.events[tx.eventID] = ev
		}
	}
}

// upsertReward keeps one reward per (user, event); a repeat grant replaces
// place, rewards and creation time but keeps the id.
func (s *MemoryStore) upsertReward(g model.UnclaimedReward) {
	for i := range s.rewards {
		if s.rewards[i].UserID == g.UserID && s.rewards[i].EventID == g.EventID {
			s.rewards[i].Place = g.Place
			s.rewards[i].Rewards = g.Rewards.Clone()
			s.rewards[i].CreatedAt = g.CreatedAt
			return
		}
	}
	s.nextRewardID++
	g.ID = s.nextRewardID
	g.Rewards = g.Rewards.Clone()
	s.rewards = append(s.rewards, g)
}
