package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "liveboard")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("test_"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.resultsSubmitted.Inc()

			Convey("Then metric names should carry namespace, subsystem and prefix", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				found := false
				for _, f := range families {
					if f.GetName() == "test_namespace_test_subsystem_test_results_submitted_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording ledger metrics", func() {
			before := testutil.ToFloat64(globalManager.resultsSubmitted)
			RecordResultSubmitted()
			RecordResultSubmitted()
			RecordResultRejected("event_closed")

			Convey("Then counters should advance", func() {
				So(testutil.ToFloat64(globalManager.resultsSubmitted), ShouldEqual, before+2)
				So(testutil.ToFloat64(globalManager.submitRejections.WithLabelValues("event_closed")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording archival and prize metrics", func() {
			archived := testutil.ToFloat64(globalManager.eventsArchived)
			granted := testutil.ToFloat64(globalManager.rewardsGranted)
			RecordEventArchived(12.5)
			RecordRewardsGranted(3)

			Convey("Then counters should advance", func() {
				So(testutil.ToFloat64(globalManager.eventsArchived), ShouldEqual, archived+1)
				So(testutil.ToFloat64(globalManager.rewardsGranted), ShouldEqual, granted+3)
			})
		})

		Convey("When recording everything else", func() {
			Convey("Then nothing should panic", func() {
				So(func() {
					RecordLeaderboardRead()
					RecordLeaderboardError()
					RecordSweep()
					RecordArchiveFailure()
					RecordRewardClaimed()
					RecordClaimMiss()
					RecordCacheHit("event_info")
					RecordCacheMiss("event_info")
					RecordStoreLatency("add_result", 1.5)
					UpdateQueueSize(3)
					UpdateQueueCapacity(10)
					UpdateQueueUtilization(0.3)
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					UpdateWorkerCount(2)
					RecordWorkerProcessingLatency(4)
					RecordWorkerError()
					RecordExportWritten()
					RecordExportDuplicate()
					RecordHTTPRequest("/api/event/current", "GET", "200")
					RecordHTTPRequestDuration("/api/event/current", "GET", "200", 5.0)
					RecordErrorByComponent("archive", "rollback")
					RecordErrorByType("not_found", "medium")
					RecordErrorByEndpoint("/api/prizes/claim", "POST", "not_found")
					RecordErrorLatency("http", "not_found", 2.0)
					UpdateSystemMemoryUsage(1 << 20)
					UpdateSystemGoroutineCount(10)
					RecordSystemGCPauseTime(0.5)
				}, ShouldNotPanic)
			})
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		RecordCacheHit("event_info")
		families, err := GetRegistry().Gather()

		Convey("Then it should expose liveboard metrics only", func() {
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
			for _, f := range families {
				So(strings.HasPrefix(f.GetName(), "liveboard_"), ShouldBeTrue)
			}
		})
	})
}
