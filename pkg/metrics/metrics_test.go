package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When a manager is created with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"node": "game"}),
				WithPrometheusRegistry(registry),
			)
			m.busReconnects.Inc()
			m.framesProcessed.WithLabelValues("0").Inc()

			Convey("Then its collectors live on that registry under the namespace", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_bus_reconnects_total"], ShouldBeTrue)
				So(names["test_vision_frames_processed_total"], ShouldBeTrue)
				So(testutil.ToFloat64(m.busReconnects), ShouldEqual, 1)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recorders are called", func() {
			before := testutil.ToFloat64(globalManager.sessionsStarted)
			RecordSessionStarted()
			RecordSubmission("success")
			RecordTransition("playing", "awaiting_submit")
			UpdateBusConnected(true)
			UpdateCameraDetecting("2", true)
			RecordDetections("2", "red", 0)
			RecordDetections("2", "red", 3)
			UpdateQueueSize(7)

			Convey("Then the collectors reflect the calls", func() {
				So(testutil.ToFloat64(globalManager.sessionsStarted), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.busConnected), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.cameraDetecting.WithLabelValues("2")), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.detections.WithLabelValues("2", "red")), ShouldBeGreaterThanOrEqualTo, 3)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
			})
		})

		Convey("Then GetRegistry exposes the process registry", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}

func TestRegisterRuntimeCollectors(t *testing.T) {
	Convey("Given the process registry", t, func() {
		Convey("When the runtime collectors are registered twice", func() {
			first := RegisterRuntimeCollectors()
			second := RegisterRuntimeCollectors()

			Convey("Then both calls succeed and go metrics are gathered", func() {
				So(first, ShouldBeNil)
				So(second, ShouldBeNil)
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "go_goroutines" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}
