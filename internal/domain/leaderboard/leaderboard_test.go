package leaderboard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/liveboard/internal/adapters/repository"
	"github.com/okian/liveboard/internal/domain/catalog"
	"github.com/okian/liveboard/internal/domain/leaderboard"
	"github.com/okian/liveboard/internal/domain/ledger"
	"github.com/okian/liveboard/internal/domain/model"
)

type mapDirectory struct {
	phones map[int64]string
	calls  int
	err    error
}

func (d *mapDirectory) Phones(_ context.Context, ids []int64) (map[int64]string, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	out := map[int64]string{}
	for _, id := range ids {
		if p, ok := d.phones[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func TestMaskPhone(t *testing.T) {
	Convey("Given phone numbers of various shapes", t, func() {
		So(leaderboard.MaskPhone("+79991234567"), ShouldEqual, "+7999***4567")
		So(leaderboard.MaskPhone("+7 (012) 345-6704"), ShouldEqual, "+7012***6704")
		So(leaderboard.MaskPhone("12345678"), ShouldEqual, "1234***5678")
		So(leaderboard.MaskPhone("1234567"), ShouldEqual, "1234567")
		So(leaderboard.MaskPhone("+123"), ShouldEqual, "+123")
		So(leaderboard.MaskPhone(""), ShouldEqual, "")
	})
}

func TestQuery_Leaderboard(t *testing.T) {
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	Convey("Given an event with five ranked users", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		cat := catalog.New(store)
		l := ledger.New(store, cat)
		dir := &mapDirectory{phones: map[int64]string{
			1: "+79991234567",
			5: "555",
		}}
		q := leaderboard.New(cat, l, dir, leaderboard.WithLimits(2, 3))

		ev := model.Event{Name: "cup", ScoringType: "score", StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)}
		So(store.SaveEvent(ctx, &ev), ShouldBeNil)
		So(store.SavePrizes(ctx, []model.Prize{{EventID: ev.ID, Place: 1, Rewards: model.Rewards{"coins": 100}}}), ShouldBeNil)
		for uid, score := range map[int64]float64{1: 50, 2: 40, 3: 30, 4: 20, 5: 10} {
			_, err := l.Submit(ctx, ev.ID, uid, score, now)
			So(err, ShouldBeNil)
		}

		Convey("When the last user asks with the default limit", func() {
			board, err := q.Leaderboard(ctx, ev.ID, 5, 0)

			Convey("Then the top is sliced and the caller is located", func() {
				So(err, ShouldBeNil)
				So(len(board.Top), ShouldEqual, 2)
				So(board.Top[0].UserID, ShouldEqual, 1)
				So(board.Top[0].Rewards, ShouldResemble, model.Rewards{"coins": 100})
				So(board.Top[1].Rewards, ShouldBeNil)
				So(board.CurrentUser, ShouldNotBeNil)
				So(board.CurrentUser.Place, ShouldEqual, 5)
			})

			Convey("Then phones are masked or kept when too short", func() {
				So(*board.Top[0].UserName, ShouldEqual, "+7999***4567")
				So(board.Top[1].UserName, ShouldBeNil)
				So(*board.CurrentUser.UserName, ShouldEqual, "555")
				So(dir.calls, ShouldEqual, 1)
			})
		})

		Convey("When the limit exceeds the maximum", func() {
			board, err := q.Leaderboard(ctx, ev.ID, 1, 1000)

			Convey("Then it is clamped", func() {
				So(err, ShouldBeNil)
				So(len(board.Top), ShouldEqual, 3)
			})
		})

		Convey("When a user without a rating asks", func() {
			board, err := q.Leaderboard(ctx, ev.ID, 42, 10)

			Convey("Then current_user is nil", func() {
				So(err, ShouldBeNil)
				So(board.CurrentUser, ShouldBeNil)
			})
		})

		Convey("When the directory is down", func() {
			dir.err = errors.New("down")
			board, err := q.Leaderboard(ctx, ev.ID, 1, 2)

			Convey("Then the board is served without names", func() {
				So(err, ShouldBeNil)
				So(board.Top[0].UserName, ShouldBeNil)
			})
		})

		Convey("When the event does not exist", func() {
			_, err := q.Leaderboard(ctx, 404, 1, 2)

			Convey("Then ErrEventNotFound is returned", func() {
				So(errors.Is(err, leaderboard.ErrEventNotFound), ShouldBeTrue)
			})
		})
	})
}
