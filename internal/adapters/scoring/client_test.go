package scoring_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/falcongrasp/internal/adapters/scoring"
	"github.com/okian/falcongrasp/internal/adapters/scoring/scoringtest"
	"github.com/okian/falcongrasp/internal/config"
	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func apiConfig(base string) config.APIConfig {
	cfg := config.New().API
	cfg.BaseURL = base
	cfg.Email = "node@example.test"
	cfg.Password = "secret"
	cfg.GameID = "falcon"
	cfg.GameName = "Falcon's Grasp"
	cfg.RetryInterval = 5 * time.Millisecond
	return cfg
}

func TestClientAgainstFakeService(t *testing.T) {
	Convey("Given the in-memory scoring service", t, func() {
		_ = logger.Init()
		svc := scoringtest.NewServer("node@example.test", "secret")
		srv := svc.Start()
		defer srv.Close()
		ctx := context.Background()
		c := scoring.New(apiConfig(srv.URL))

		Convey("Calls before authentication are refused locally", func() {
			_, err := c.FindInitiated(ctx)
			So(errors.Is(err, scoring.ErrNotAuthenticated), ShouldBeTrue)
		})

		Convey("Wrong credentials are unauthorized", func() {
			cfg := apiConfig(srv.URL)
			cfg.Password = "nope"
			err := scoring.New(cfg).Authenticate(ctx)
			So(errors.Is(err, scoring.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("After authenticating", func() {
			So(c.Authenticate(ctx), ShouldBeNil)
			So(c.Authenticated(), ShouldBeTrue)

			Convey("No initiated game is not an error", func() {
				g, err := c.FindInitiated(ctx)
				So(err, ShouldBeNil)
				So(g, ShouldBeNil)
			})

			Convey("An initiated game is found with its players and status", func() {
				id := svc.Initiate("falcon", "Hawks", model.Player{UserID: "u1", Name: "Ana"})
				svc.Initiate("other-game", "Owls")

				g, err := c.FindInitiated(ctx)
				So(err, ShouldBeNil)
				So(g.ID, ShouldEqual, id)
				So(g.Name, ShouldEqual, "Hawks")
				So(g.Players, ShouldResemble, []model.Player{{UserID: "u1", Name: "Ana"}})

				st, err := c.Status(ctx, id)
				So(err, ShouldBeNil)
				So(st, ShouldEqual, model.StatusInitiated)

				svc.SetStatus(id, model.StatusPlaying)
				st, _ = c.Status(ctx, id)
				So(st, ShouldEqual, model.StatusPlaying)

				Convey("A submission completes the game and reaches the leaderboard", func() {
					err := c.Submit(ctx, model.ScoreSubmission{
						GameResultID: id,
						IndividualScore: []model.IndividualScore{
							{UserID: "u1", NodeID: 1, Score: 3},
							{UserID: "falcon_player_2", NodeID: 2, Score: 2},
						},
					})
					So(err, ShouldBeNil)
					So(svc.Status(id), ShouldEqual, model.StatusCompleted)

					board, err := c.Leaderboard(ctx, 10)
					So(err, ShouldBeNil)
					So(board, ShouldResemble, []model.LeaderboardEntry{{Name: "Hawks", TotalScore: 5}})
				})
			})

			Convey("A revoked token surfaces as unauthorized and is forgotten", func() {
				svc.Revoke()
				_, err := c.Status(ctx, "x")
				So(errors.Is(err, scoring.ErrUnauthorized), ShouldBeTrue)
				So(c.Authenticated(), ShouldBeFalse)
			})

			Convey("Gateway errors are retried", func() {
				svc.FailNext("initiated", http.StatusBadGateway, http.StatusServiceUnavailable)
				_, err := c.FindInitiated(ctx)
				So(err, ShouldBeNil)
				So(svc.Calls("initiated"), ShouldEqual, 3)
			})

			Convey("Other error statuses are final", func() {
				svc.FailNext("status", http.StatusInternalServerError)
				_, err := c.Status(ctx, "x")
				So(errors.Is(err, scoring.ErrStatus), ShouldBeTrue)
				So(svc.Calls("status"), ShouldEqual, 1)
			})
		})
	})
}

func TestClientResponseShapes(t *testing.T) {
	Convey("Given a service with a top-level token and odd payloads", t, func() {
		_ = logger.Init()
		mux := http.NewServeMux()
		mux.HandleFunc("POST /login2", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"token":"top-level"}`))
		})
		mux.HandleFunc("GET /game-result/{id}", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer top-level" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"data":null}`))
		})
		mux.HandleFunc("GET /game-result", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()
		ctx := context.Background()
		c := scoring.New(apiConfig(srv.URL))

		Convey("The top-level token is accepted", func() {
			So(c.Authenticate(ctx), ShouldBeNil)

			Convey("A null data field is malformed", func() {
				_, err := c.Status(ctx, "g1")
				So(errors.Is(err, scoring.ErrMalformed), ShouldBeTrue)
			})

			Convey("A body that is not JSON is malformed", func() {
				_, err := c.FindInitiated(ctx)
				So(errors.Is(err, scoring.ErrMalformed), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unreachable service", t, func() {
		_ = logger.Init()
		srv := httptest.NewServer(http.NotFoundHandler())
		base := srv.URL
		srv.Close()

		Convey("Authentication fails as a transport error after the retries", func() {
			err := scoring.New(apiConfig(base)).Authenticate(context.Background())
			So(errors.Is(err, scoring.ErrTransport), ShouldBeTrue)
		})
	})
}
