package archive_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/liveboard/internal/adapters/repository"
	"github.com/okian/liveboard/internal/domain/archive"
	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/internal/domain/scoring"
)

type stubCatalog struct {
	store *repository.MemoryStore
	table []model.Prize
}

func (c stubCatalog) Get(ctx context.Context, id int64) (model.Event, error) {
	return c.store.GetEvent(ctx, id)
}

func (c stubCatalog) PrizeTable(context.Context, int64) ([]model.Prize, error) {
	return c.table, nil
}

func (c stubCatalog) Direction(_ context.Context, ev model.Event) scoring.Direction {
	d, _ := scoring.ParseDirection(ev.ScoringType)
	return d
}

type captureExporter struct {
	mu  sync.Mutex
	got []model.EventHistory
}

func (x *captureExporter) Export(_ context.Context, h model.EventHistory) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.got = append(x.got, h)
	return nil
}

type failingStore struct {
	*repository.MemoryStore
}

func (f failingStore) Archive(ctx context.Context, eventID int64, fn func(archive.Tx) error) error {
	return f.MemoryStore.Archive(ctx, eventID, func(tx archive.Tx) error {
		if err := fn(failingTx{tx}); err != nil {
			return err
		}
		return nil
	})
}

type failingTx struct{ archive.Tx }

func (failingTx) GrantRewards(context.Context, []model.UnclaimedReward) error {
	return errors.New("grant failed")
}

func TestEngine(t *testing.T) {
	end := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	table := []model.Prize{
		{Place: 1, Rewards: model.Rewards{"coins": 100}},
		{Place: 2, Rewards: model.Rewards{"coins": 50}},
	}

	Convey("Given an event with two live ratings", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		ev := model.Event{Name: "cup", ScoringType: "score", StartDate: end.Add(-time.Hour), EndDate: end}
		So(store.SaveEvent(ctx, &ev), ShouldBeNil)
		_, err := store.AddResult(ctx, ev.ID, 1, 10, end.Add(-time.Minute))
		So(err, ShouldBeNil)
		_, err = store.AddResult(ctx, ev.ID, 2, 30, end.Add(-time.Minute))
		So(err, ShouldBeNil)

		exporter := &captureExporter{}
		seq := 0
		engine := archive.NewEngine(store, stubCatalog{store: store, table: table},
			archive.WithExporter(exporter),
			archive.WithIDGenerator(func() string { seq++; return fmt.Sprintf("arch-%d", seq) }),
		)
		after := end.Add(time.Minute)

		Convey("When archiving before the end", func() {
			_, ok, err := engine.Archive(ctx, ev.ID, end.Add(-time.Second))

			Convey("Then the event is still open", func() {
				So(ok, ShouldBeFalse)
				So(errors.Is(err, archive.ErrEventOpen), ShouldBeTrue)
			})
		})

		Convey("When a sweep runs after the end", func() {
			n, err := engine.Sweep(ctx, after)
			So(err, ShouldBeNil)

			Convey("Then the snapshot ranks and rewards both users", func() {
				So(n, ShouldEqual, 1)
				h, err := store.LatestHistory(ctx, ev.ID)
				So(err, ShouldBeNil)
				So(h.ArchiveID, ShouldEqual, "arch-1")
				So(h.EndedAt, ShouldEqual, after)
				So(h.Results, ShouldResemble, []model.HistoryResult{
					{UserID: 2, Result: 30, Place: 1, Rewards: model.Rewards{"coins": 100}},
					{UserID: 1, Result: 10, Place: 2, Rewards: model.Rewards{"coins": 50}},
				})
			})

			Convey("Then each user holds one reward and live rows are gone", func() {
				for _, uid := range []int64{1, 2} {
					rewards, _ := store.ListUnclaimed(ctx, uid)
					So(len(rewards), ShouldEqual, 1)
				}
				rows, _ := store.ListRatings(ctx, ev.ID)
				So(len(rows), ShouldEqual, 0)
			})

			Convey("Then the snapshot was exported", func() {
				So(len(exporter.got), ShouldEqual, 1)
				So(exporter.got[0].ArchiveID, ShouldEqual, "arch-1")
			})

			Convey("Then winners resolve by place", func() {
				winners, err := engine.WinnerIDs(ctx, ev.ID)
				So(err, ShouldBeNil)
				So(winners, ShouldResemble, map[int]int64{1: 2, 2: 1})
			})

			Convey("Then a second sweep is a no-op", func() {
				n, err := engine.Sweep(ctx, after.Add(time.Minute))
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
				_, ok, err := engine.Archive(ctx, ev.ID, after.Add(time.Minute))
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				So(len(exporter.got), ShouldEqual, 1)
			})
		})

		Convey("When concurrent sweeps race", func() {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = engine.Sweep(ctx, after)
				}()
			}
			wg.Wait()

			Convey("Then exactly one history row exists", func() {
				So(len(exporter.got), ShouldEqual, 1)
			})
		})

		Convey("When granting fails mid-archive", func() {
			broken := archive.NewEngine(failingStore{store}, stubCatalog{store: store, table: table})
			n, err := broken.Sweep(ctx, after)

			Convey("Then nothing is committed and a later sweep succeeds", func() {
				So(err, ShouldNotBeNil)
				So(n, ShouldEqual, 0)
				rows, _ := store.ListRatings(ctx, ev.ID)
				So(len(rows), ShouldEqual, 2)
				_, err := store.LatestHistory(ctx, ev.ID)
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

				n, err = engine.Sweep(ctx, after)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})
	})

	Convey("Given an event that was never archived", t, func() {
		store := repository.NewMemoryStore()
		engine := archive.NewEngine(store, stubCatalog{store: store})

		Convey("Then it has no winners", func() {
			winners, err := engine.WinnerIDs(context.Background(), 77)
			So(err, ShouldBeNil)
			So(winners, ShouldBeEmpty)
		})
	})
}

func TestSnapshot(t *testing.T) {
	Convey("Given time-scored ratings with a tie", t, func() {
		rows := []model.Rating{
			{ID: 1, UserID: 10, Result: 42.5},
			{ID: 2, UserID: 11, Result: 40},
			{ID: 3, UserID: 12, Result: 40},
		}
		table := []model.Prize{{Place: 1, Rewards: model.Rewards{"skin": "dragon"}}}

		got := archive.Snapshot(rows, scoring.LowerIsBetter, table)

		Convey("Then lower wins and the earlier row takes the tie", func() {
			So(got[0].UserID, ShouldEqual, 11)
			So(got[0].Rewards, ShouldResemble, model.Rewards{"skin": "dragon"})
			So(got[1].UserID, ShouldEqual, 12)
			So(got[1].Rewards, ShouldBeNil)
			So(got[2].UserID, ShouldEqual, 10)
			So(got[2].Place, ShouldEqual, 3)
		})
	})
}
