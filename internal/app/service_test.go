package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/liveboard/internal/adapters/identity"
	"github.com/okian/liveboard/internal/adapters/repository"
	service "github.com/okian/liveboard/internal/app"
	"github.com/okian/liveboard/internal/config"
	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const testSecret = "test-secret"

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.JWTSecret = testSecret
	cfg.SweepSchedule = ""
	return cfg
}

func TestService_New(t *testing.T) {
	Convey("Given a new service without a config", t, func() {
		svc := service.New(nil)

		Convey("Then it should exist but not be started", func() {
			So(svc, ShouldNotBeNil)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("And operations should report it is not started", func() {
			_, err := svc.ListVisibleEvents(context.Background())
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.SubmitResult(context.Background(), 1, 1, 1)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Resolve(context.Background(), "token")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service on the memory store", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		cfg := testConfig()
		cfg.SweepSchedule = "@every 1h"
		svc := service.New(cfg)
		defer svc.Stop(ctx)

		Convey("When starting the service twice", func() {
			err1 := svc.Start(ctx)
			err2 := svc.Start(ctx)

			Convey("Then both calls should succeed", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["storeDriver"], ShouldEqual, config.StoreMemory)
				So(stats, ShouldNotContainKey, "exportWorkers")
			})

			Convey("And stopping twice should be harmless", func() {
				svc.Stop(ctx)
				svc.Stop(ctx)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given an invalid sweep schedule", t, func() {
		ctx := context.Background()
		cfg := testConfig()
		cfg.SweepSchedule = "every now and then"
		svc := service.New(cfg)

		Convey("When starting the service", func() {
			err := svc.Start(ctx)

			Convey("Then start should fail and leave it stopped", func() {
				So(err, ShouldNotBeNil)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given export enabled", t, func() {
		ctx := context.Background()
		cfg := testConfig()
		cfg.ExportDir = t.TempDir()
		cfg.ExportWorkerCount = 2
		svc := service.New(cfg)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("Then stats should describe the export pool", func() {
			stats := svc.GetStats()
			So(stats["exportWorkers"], ShouldEqual, 2)
			So(stats["exportQueueLength"], ShouldEqual, 0)
		})
	})
}

func TestService_Resolve(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New(testConfig())
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When a token signed with the shared secret is resolved", func() {
			token, _, err := identity.NewJWT(testSecret, time.Hour).Sign(7)
			So(err, ShouldBeNil)
			uid, err := svc.Resolve(ctx, token)

			Convey("Then the user id should be returned", func() {
				So(err, ShouldBeNil)
				So(uid, ShouldEqual, 7)
			})
		})

		Convey("When a token signed with another secret is resolved", func() {
			token, _, err := identity.NewJWT("other", time.Hour).Sign(7)
			So(err, ShouldBeNil)
			_, err = svc.Resolve(ctx, token)

			Convey("Then it should be unauthorized", func() {
				So(errors.Is(err, identity.ErrUnauthorized), ShouldBeTrue)
			})
		})
	})
}

func TestService_InjectedStore(t *testing.T) {
	Convey("Given a service over an injected store", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
		store := repository.NewMemoryStore()
		ev := model.Event{Name: "cup", ScoringType: "score", StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)}
		So(store.SaveEvent(ctx, &ev), ShouldBeNil)

		svc := service.New(testConfig(),
			service.WithStore(store),
			service.WithClock(func() time.Time { return now }),
		)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When a result is submitted", func() {
			res, err := svc.SubmitResult(ctx, ev.ID, 3, 4.5)

			Convey("Then it should land in the injected store", func() {
				So(err, ShouldBeNil)
				So(res.Result, ShouldEqual, 4.5)
				So(res.Place, ShouldEqual, 1)
				rows, err := store.ListRatings(ctx, ev.ID)
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 1)
			})
		})

		Convey("When the service stops", func() {
			svc.Stop(ctx)

			Convey("Then the injected store should remain usable", func() {
				_, err := store.GetEvent(ctx, ev.ID)
				So(err, ShouldBeNil)
			})
		})

		Reset(func() { svc.Stop(ctx) })
	})
}
