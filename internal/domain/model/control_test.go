package model_test

import (
	"errors"
	"testing"

	model "github.com/okian/falcongrasp/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParseControlKind(t *testing.T) {
	convey.Convey("Given the control topic segments", t, func() {
		convey.Convey("When every known kind is round-tripped through its segment", func() {
			convey.Convey("Then it parses back to itself", func() {
				for _, k := range model.ControlKinds() {
					parsed, err := model.ParseControlKind(k.String())
					convey.So(err, convey.ShouldBeNil)
					convey.So(parsed, convey.ShouldEqual, k)
				}
			})
		})

		convey.Convey("When the segment differs in case", func() {
			_, err := model.ParseControlKind("deactivate")

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(err, model.ErrUnknownControl), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the segment is unknown", func() {
			k, err := model.ParseControlKind("pause")

			convey.Convey("Then the unknown kind and an error are returned", func() {
				convey.So(k, convey.ShouldEqual, model.ControlUnknown)
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestControlMessage(t *testing.T) {
	convey.Convey("Given control messages", t, func() {
		convey.Convey("Then a timer payload parses to seconds", func() {
			s, err := model.ControlMessage{Kind: model.ControlTimer, Payload: " 45 "}.Seconds()
			convey.So(err, convey.ShouldBeNil)
			convey.So(s, convey.ShouldEqual, 45)
		})

		convey.Convey("Then non-numeric and non-positive timers fail", func() {
			_, err := model.ControlMessage{Kind: model.ControlTimer, Payload: "soon"}.Seconds()
			convey.So(err, convey.ShouldNotBeNil)
			_, err = model.ControlMessage{Kind: model.ControlTimerFinal, Payload: "0"}.Seconds()
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("Then only stop with payload 1 is immediate", func() {
			convey.So(model.ControlMessage{Kind: model.ControlStop, Payload: "1"}.Immediate(), convey.ShouldBeTrue)
			convey.So(model.ControlMessage{Kind: model.ControlStop, Payload: "0"}.Immediate(), convey.ShouldBeFalse)
			convey.So(model.ControlMessage{Kind: model.ControlStart, Payload: "1"}.Immediate(), convey.ShouldBeFalse)
		})
	})
}

func TestTelemetryMessageInt(t *testing.T) {
	convey.Convey("Given a telemetry message", t, func() {
		convey.Convey("Then a decimal payload parses", func() {
			v, err := model.TelemetryMessage{Topic: "FalconGrasp/camera/1", Payload: "3"}.Int()
			convey.So(err, convey.ShouldBeNil)
			convey.So(v, convey.ShouldEqual, 3)
		})

		convey.Convey("Then a malformed payload fails", func() {
			_, err := model.TelemetryMessage{Payload: "three"}.Int()
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
