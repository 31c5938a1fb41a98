package service_test

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/liveboard/internal/adapters/export"
	service "github.com/okian/liveboard/internal/app"
	"github.com/okian/liveboard/internal/domain/ledger"
	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/internal/domain/prizes"
	"github.com/okian/liveboard/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

const seedYAML = `
events:
  - id: 1
    name: Spring Cup
    event_type: score
    start_date: "2026-05-10T11:00:00Z"
    end_date: "2026-05-10T13:00:00Z"
    prizes:
      - place: 1
        rewards: {coins: 100}
      - place: 2
        rewards: {coins: 50}
  - id: 2
    name: Time Trial
    event_type: time
    start_date: "2026-05-10T11:00:00Z"
    end_date: "2026-05-10T14:00:00Z"
  - id: 3
    name: Next Week
    event_type: score
    start_date: "2026-05-17T00:00:00Z"
    end_date: "2026-05-18T00:00:00Z"
default_prizes:
  - place: 1
    rewards: {gems: 5}
users:
  - id: 1
    phone: "+79991234567"
  - id: 2
    phone: "555"
`

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func eventByID(views []types.EventView, id int64) (types.EventView, bool) {
	for _, v := range views {
		if v.ID == id {
			return v, true
		}
	}
	return types.EventView{}, false
}

func TestLoadSeed(t *testing.T) {
	Convey("Given a seed file", t, func() {
		path := filepath.Join(t.TempDir(), "seed.yaml")
		So(os.WriteFile(path, []byte(seedYAML), 0o600), ShouldBeNil)

		seed, err := service.LoadSeed(path)

		Convey("Then events, prizes and users should be decoded", func() {
			So(err, ShouldBeNil)
			So(len(seed.Events), ShouldEqual, 3)
			So(seed.Events[0].ScoringType, ShouldEqual, "score")
			So(seed.Events[0].EndDate.Equal(time.Date(2026, 5, 10, 13, 0, 0, 0, time.UTC)), ShouldBeTrue)
			So(len(seed.Events[0].Prizes), ShouldEqual, 2)
			So(len(seed.DefaultPrizes), ShouldEqual, 1)
			So(seed.Users[1].Phone, ShouldEqual, "555")
		})
	})

	Convey("Given a missing seed file", t, func() {
		_, err := service.LoadSeed(filepath.Join(t.TempDir(), "absent.yaml"))

		Convey("Then loading should fail", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a seeded service with export enabled", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		dir := t.TempDir()
		seedPath := filepath.Join(dir, "seed.yaml")
		So(os.WriteFile(seedPath, []byte(seedYAML), 0o600), ShouldBeNil)
		exportDir := filepath.Join(dir, "exports")

		cfg := testConfig()
		cfg.SeedFile = seedPath
		cfg.ExportDir = exportDir
		cfg.ExportWorkerCount = 1

		t0 := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
		clock := &testClock{now: t0}
		svc := service.New(cfg, service.WithClock(clock.Now))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		_, err := svc.SubmitResult(ctx, 1, 1, 10)
		So(err, ShouldBeNil)
		_, err = svc.SubmitResult(ctx, 1, 2, 20)
		So(err, ShouldBeNil)
		total, err := svc.SubmitResult(ctx, 1, 1, 15)
		So(err, ShouldBeNil)

		Convey("When results accumulate", func() {
			Convey("Then totals and places should follow the score direction", func() {
				So(total.Result, ShouldEqual, 25)
				So(total.Place, ShouldEqual, 1)
			})

			Convey("And the leaderboard should carry rewards and masked names", func() {
				board, err := svc.GetLeaderboard(ctx, 1, 2, 0)
				So(err, ShouldBeNil)
				So(len(board.Top), ShouldEqual, 2)
				So(board.Top[0].UserID, ShouldEqual, 1)
				So(*board.Top[0].UserName, ShouldEqual, "+7999***4567")
				So(board.Top[0].Rewards, ShouldResemble, model.Rewards{"coins": 100})
				So(board.CurrentUser, ShouldNotBeNil)
				So(board.CurrentUser.Place, ShouldEqual, 2)
				So(*board.CurrentUser.UserName, ShouldEqual, "555")
			})
		})

		Convey("When listing events before the end", func() {
			views, err := svc.ListVisibleEvents(ctx)

			Convey("Then only events within the padded window should be listed", func() {
				So(err, ShouldBeNil)
				So(len(views), ShouldEqual, 2)
				_, found := eventByID(views, 3)
				So(found, ShouldBeFalse)
			})

			Convey("And events without a table should use the default prizes", func() {
				v, _ := eventByID(views, 2)
				So(len(v.Prizes), ShouldEqual, 1)
				So(v.Prizes[0].Rewards, ShouldResemble, model.Rewards{"gems": 5})
			})

			Convey("And open events should not name winners", func() {
				v, _ := eventByID(views, 1)
				So(v.Prizes[0].Phone, ShouldBeNil)
			})
		})

		Convey("When the first event ends", func() {
			clock.Set(t0.Add(90 * time.Minute))

			_, lateErr := svc.SubmitResult(ctx, 1, 1, 1)
			views, err := svc.ListVisibleEvents(ctx)
			So(err, ShouldBeNil)

			Convey("Then late submissions should be rejected", func() {
				So(errors.Is(lateErr, ledger.ErrEventClosed), ShouldBeTrue)
			})

			Convey("And the closed event should show masked winners", func() {
				v, found := eventByID(views, 1)
				So(found, ShouldBeTrue)
				So(*v.Prizes[0].Phone, ShouldEqual, "+7999***4567")
				So(*v.Prizes[1].Phone, ShouldEqual, "555")
			})

			Convey("And the live table should be emptied", func() {
				board, err := svc.GetLeaderboard(ctx, 1, 1, 10)
				So(err, ShouldBeNil)
				So(board.Top, ShouldBeEmpty)
				So(board.CurrentUser, ShouldBeNil)
			})

			Convey("And the open event should be untouched", func() {
				_, err := svc.SubmitResult(ctx, 2, 1, 3)
				So(err, ShouldBeNil)
			})

			Convey("And prizes should be claimable exactly once", func() {
				rewards, err := svc.ListUnclaimed(ctx, 1)
				So(err, ShouldBeNil)
				So(len(rewards), ShouldEqual, 1)
				So(rewards[0].EventID, ShouldEqual, 1)
				So(rewards[0].Place, ShouldEqual, 1)

				claimed, err := svc.Claim(ctx, 1, rewards[0].ID)
				So(err, ShouldBeNil)
				So(claimed.Rewards, ShouldResemble, model.Rewards{"coins": 100})

				_, err = svc.Claim(ctx, 1, rewards[0].ID)
				So(errors.Is(err, prizes.ErrRewardNotFound), ShouldBeTrue)
			})

			Convey("And another user should not claim someone else's reward", func() {
				rewards, err := svc.ListUnclaimed(ctx, 1)
				So(err, ShouldBeNil)
				_, err = svc.Claim(ctx, 2, rewards[0].ID)
				So(errors.Is(err, prizes.ErrRewardNotFound), ShouldBeTrue)
			})

			Convey("And a repeated sweep should archive nothing", func() {
				n, err := svc.Sweep(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
				rewards, _ := svc.ListUnclaimed(ctx, 2)
				So(len(rewards), ShouldEqual, 1)
			})

			Convey("And the snapshot should be exported once the service drains", func() {
				svc.Stop(ctx)

				zr, err := zip.OpenReader(filepath.Join(exportDir, export.FileName(1)))
				So(err, ShouldBeNil)
				defer zr.Close()
				So(len(zr.File), ShouldEqual, 1)
				So(zr.File[0].Name, ShouldEqual, export.EntryName)

				rc, err := zr.File[0].Open()
				So(err, ShouldBeNil)
				defer rc.Close()
				raw, err := io.ReadAll(rc)
				So(err, ShouldBeNil)

				var results []model.HistoryResult
				So(json.Unmarshal(raw, &results), ShouldBeNil)
				So(len(results), ShouldEqual, 2)
				So(results[0].UserID, ShouldEqual, 1)
				So(results[0].Result, ShouldEqual, 25)
				So(results[1].Place, ShouldEqual, 2)
			})
		})
	})
}
