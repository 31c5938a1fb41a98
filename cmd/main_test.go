package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/okian/liveboard/internal/adapters/http/api"
	"github.com/okian/liveboard/internal/adapters/identity"
	app "github.com/okian/liveboard/internal/app"
	"github.com/okian/liveboard/internal/config"
	"github.com/okian/liveboard/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

const testSeed = `
events:
  - id: 1
    name: Always On
    event_type: score
    start_date: "2000-01-01T00:00:00Z"
    end_date: "2999-01-01T00:00:00Z"
    prizes:
      - place: 1
        rewards: {coins: 10}
users:
  - id: 4
    phone: "+79991234567"
`

func TestConfigFromEnv(t *testing.T) {
	convey.Convey("Given LIVEBOARD_* environment variables", t, func() {
		t.Setenv("LIVEBOARD_ADDR", ":8080")
		t.Setenv("LIVEBOARD_JWT_SECRET", "env-secret")
		t.Setenv("LIVEBOARD_MAX_LEADERBOARD_LIMIT", "50")

		convey.Convey("Then configuration should be loadable", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.JWTSecret, convey.ShouldEqual, "env-secret")
			convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 50)
		})
	})
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given a running service behind the HTTP mux", t, func() {
		ctx := context.Background()
		seedPath := t.TempDir() + "/seed.yaml"
		convey.So(os.WriteFile(seedPath, []byte(testSeed), 0o600), convey.ShouldBeNil)

		cfg := config.New()
		cfg.JWTSecret = "mux-secret"
		cfg.SweepSchedule = ""
		cfg.SeedFile = seedPath
		svc := app.New(cfg, app.WithLogger(logger.Nop()))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop(ctx)

		srv := httptest.NewServer(newMux(ctx, cfg, svc, logger.Nop()))
		defer srv.Close()

		token, _, err := identity.NewJWT(cfg.JWTSecret, time.Hour).Sign(4)
		convey.So(err, convey.ShouldBeNil)

		do := func(method, path, body string) *http.Response {
			req, err := http.NewRequestWithContext(ctx, method, srv.URL+path, strings.NewReader(body))
			convey.So(err, convey.ShouldBeNil)
			req.Header.Set(api.TokenHeader, token)
			resp, err := srv.Client().Do(req)
			convey.So(err, convey.ShouldBeNil)
			return resp
		}

		convey.Convey("When a result is submitted and the leaderboard read", func() {
			resp := do(http.MethodPost, "/api/event/result?event_id=1", "7")
			resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)

			resp = do(http.MethodGet, "/api/event/leaderboard?event_id=1", "")
			defer resp.Body.Close()

			convey.Convey("Then the caller should lead with a masked name", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				var board struct {
					Top []struct {
						UserID   int64   `json:"user_id"`
						Result   float64 `json:"result"`
						UserName *string `json:"user_name"`
					} `json:"top"`
				}
				convey.So(json.NewDecoder(resp.Body).Decode(&board), convey.ShouldBeNil)
				convey.So(len(board.Top), convey.ShouldEqual, 1)
				convey.So(board.Top[0].UserID, convey.ShouldEqual, 4)
				convey.So(board.Top[0].Result, convey.ShouldEqual, 7)
				convey.So(*board.Top[0].UserName, convey.ShouldEqual, "+7999***4567")
			})
		})

		convey.Convey("When the public pages are requested", func() {
			for _, path := range []string{"/", "/api-docs", "/openapi.yaml", "/healthz", "/stats", "/api/event/current"} {
				resp := do(http.MethodGet, path, "")
				resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			}
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the metrics updaters", t, func() {
		convey.Convey("Then a single update should not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			svc := app.New(nil)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("Then the loops should exit when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{}, 2)
			go func() { startSystemMetricsUpdater(ctx); done <- struct{}{} }()
			go func() { startServiceMetricsUpdater(ctx, app.New(nil)); done <- struct{}{} }()
			cancel()

			for i := 0; i < 2; i++ {
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Fatal("metrics updater did not stop")
				}
			}
		})
	})
}
