package aggregator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/falcongrasp/internal/adapters/bus"
	"github.com/okian/falcongrasp/internal/app/aggregator"
	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/internal/domain/session"
	"github.com/okian/falcongrasp/pkg/logger"
)

func playingStore() *session.Store {
	s := session.NewStore()
	s.Fire(session.TriggerAuthenticated)
	g, _ := session.NewGameSession(model.GameRecord{ID: "gr-1", Name: "Hawks"}, 4, "falcon_player")
	if err := s.Begin(g); err != nil {
		panic(err)
	}
	s.Fire(session.TriggerReady)
	s.Fire(session.TriggerPlaying)
	return s
}

func msg(topic, payload string) model.TelemetryMessage {
	return model.TelemetryMessage{Topic: topic, Payload: payload}
}

func TestHandle(t *testing.T) {
	_ = logger.Init()
	topics := bus.NewTopics("FalconGrasp")
	ctx := context.Background()

	Convey("Given an aggregator over a playing session", t, func() {
		store := playingStore()
		a := aggregator.New(store, topics)

		Convey("Camera counts are assigned to the matching player", func() {
			So(a.Handle(ctx, msg("FalconGrasp/camera/2", "3")), ShouldBeNil)
			So(a.Handle(ctx, msg("FalconGrasp/camera/2", "3")), ShouldBeNil)
			g, _ := store.Session()
			So(g.PlayerScores, ShouldResemble, []int{0, 0, 3, 0})
		})

		Convey("Team name and total score are recorded", func() {
			So(a.Handle(ctx, msg("FalconGrasp/TeamName/Pub", " Eagles ")), ShouldBeNil)
			So(a.Handle(ctx, msg("FalconGrasp/score/Pub", "12")), ShouldBeNil)
			g, _ := store.Session()
			So(g.TeamName, ShouldEqual, "Eagles")
			So(g.TotalScore, ShouldEqual, 12)
		})

		Convey("A camera beyond the player list is rejected", func() {
			err := a.Handle(ctx, msg("FalconGrasp/camera/7", "1"))
			So(errors.Is(err, session.ErrPlayerIndex), ShouldBeTrue)
		})

		Convey("Malformed payloads are rejected", func() {
			So(errors.Is(a.Handle(ctx, msg("FalconGrasp/camera/0", "many")), aggregator.ErrMalformed), ShouldBeTrue)
			So(errors.Is(a.Handle(ctx, msg("FalconGrasp/score/Pub", "-1")), aggregator.ErrMalformed), ShouldBeTrue)
			So(errors.Is(a.Handle(ctx, msg("FalconGrasp/TeamName/Pub", "  ")), aggregator.ErrMalformed), ShouldBeTrue)
		})

		Convey("Control and foreign topics are not telemetry", func() {
			So(a.Handle(ctx, msg("FalconGrasp/game/start", "")), ShouldNotBeNil)
			So(a.Handle(ctx, msg("Other/camera/0", "1")), ShouldNotBeNil)
		})

		Convey("Late telemetry after cancellation is dropped without error", func() {
			store.Fire(session.TriggerCancel)
			So(a.Handle(ctx, msg("FalconGrasp/camera/0", "2")), ShouldBeNil)
			g, _ := store.Session()
			So(g.PlayerScores[0], ShouldEqual, 0)
		})
	})

	Convey("Given no session at all", t, func() {
		a := aggregator.New(session.NewStore(), topics)

		Convey("Telemetry is ignored", func() {
			So(a.Handle(ctx, msg("FalconGrasp/camera/0", "1")), ShouldBeNil)
		})
	})
}

func TestQueuedDelivery(t *testing.T) {
	_ = logger.Init()

	Convey("Given a running aggregator", t, func() {
		store := playingStore()
		a := aggregator.New(store, bus.NewTopics("FalconGrasp"), aggregator.WithQueueSize(16))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		a.Start(ctx)

		Convey("Enqueued messages are applied in arrival order", func() {
			a.Enqueue(ctx, msg("FalconGrasp/camera/1", "1"))
			a.Enqueue(ctx, msg("FalconGrasp/camera/1", "2"))
			a.Enqueue(ctx, msg("FalconGrasp/camera/3", "1"))

			deadline := time.Now().Add(2 * time.Second)
			var g session.GameSession
			for time.Now().Before(deadline) {
				g, _ = store.Session()
				if g.PlayerScores[1] == 2 && g.PlayerScores[3] == 1 {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			So(g.PlayerScores, ShouldResemble, []int{0, 2, 0, 1})
			So(a.Shutdown(context.Background()), ShouldBeNil)
		})
	})
}
