package presenter

import (
	"context"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/pkg/logger"
)

func TestHeadless(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()

	convey.Convey("Given an auto-ready presenter", t, func() {
		p := NewHeadless(true)

		convey.Convey("It starts idle and ready", func() {
			convey.So(p.Ready(), convey.ShouldBeTrue)
			convey.So(p.Snapshot().View, convey.ShouldEqual, ViewIdle)
		})

		convey.Convey("A round withdraws readiness until the leaderboard", func() {
			p.ShowRound(ctx, Round{GameResultID: "gr-1", TeamName: "Hawks", Duration: 15 * time.Second})
			convey.So(p.Ready(), convey.ShouldBeFalse)
			convey.So(p.Snapshot().Round.TeamName, convey.ShouldEqual, "Hawks")

			p.ShowLeaderboard(ctx, []model.LeaderboardEntry{{Name: "Hawks", TotalScore: 9}})
			snap := p.Snapshot()
			convey.So(snap.View, convey.ShouldEqual, ViewLeaderboard)
			convey.So(snap.Round, convey.ShouldBeNil)
			convey.So(snap.Leaderboard, convey.ShouldHaveLength, 1)
			convey.So(p.Ready(), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a presenter waiting for an external screen", t, func() {
		p := NewHeadless(false)

		convey.Convey("Only SetReady makes it ready", func() {
			convey.So(p.Ready(), convey.ShouldBeFalse)
			p.ShowIdle(ctx)
			convey.So(p.Ready(), convey.ShouldBeFalse)
			p.SetReady(true)
			convey.So(p.Ready(), convey.ShouldBeTrue)
			p.ShowRound(ctx, Round{})
			convey.So(p.Ready(), convey.ShouldBeFalse)
		})
	})
}
