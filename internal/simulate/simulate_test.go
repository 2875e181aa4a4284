package simulate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/arena/internal/adapters/http/api"
	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newArena() (*httptest.Server, *service.Service) {
	svc := service.New(service.WithBcryptCost(bcrypt.MinCost))
	So(svc.Start(context.Background()), ShouldBeNil)
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	return httptest.NewServer(mux), svc
}

func TestRun(t *testing.T) {
	Convey("Given a running arena server", t, func() {
		srv, svc := newArena()
		defer svc.Stop()
		defer srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		Convey("When simulating a tournament with entry churn", func() {
			out := filepath.Join(t.TempDir(), "out", "comparisons.json")
			stats, err := Run(ctx, &Config{
				BaseURL:     srv.URL,
				Teams:       5,
				Submissions: 2,
				Votes:       60,
				Workers:     4,
				Churn:       0.3,
				MaxScore:    3,
				Timeout:     5 * time.Second,
				OutputFile:  out,
			})

			Convey("Then the leaderboard should match the accepted votes", func() {
				So(err, ShouldBeNil)
				So(stats.TeamsRegistered, ShouldEqual, 5)
				So(stats.SubmissionsCreated, ShouldEqual, 10)
				So(stats.VotesAttempted, ShouldEqual, 60)
				So(stats.VotesAccepted, ShouldBeGreaterThan, 0)
				So(stats.Failures, ShouldEqual, 0)
				So(stats.LeaderboardEntries, ShouldEqual, 5)
				So(svc.GetStats()["totalComparisons"], ShouldEqual, stats.VotesAccepted)
			})

			Convey("Then the accepted comparisons should be saved", func() {
				So(err, ShouldBeNil)
				data, rerr := os.ReadFile(out)
				So(rerr, ShouldBeNil)
				var saved []Comparison
				So(json.Unmarshal(data, &saved), ShouldBeNil)
				So(len(saved), ShouldEqual, stats.VotesAccepted)
			})
		})

		Convey("When the configuration is unusable", func() {
			_, err := Run(ctx, &Config{BaseURL: srv.URL, Teams: 2, Submissions: 1})

			Convey("Then it should be rejected before any call", func() {
				So(err, ShouldNotBeNil)
				So(svc.GetStats()["totalTeams"], ShouldEqual, 0)
			})
		})
	})

	Convey("Given no server", t, func() {
		_, err := Run(context.Background(), &Config{
			BaseURL: "http://127.0.0.1:1", Teams: 3, Submissions: 1, Timeout: time.Second,
		})

		Convey("Then the health check should fail", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check")
		})
	})
}

func TestVerifyOrdering(t *testing.T) {
	Convey("Given leaderboards", t, func() {
		Convey("Then a well ordered board should pass", func() {
			So(verifyOrdering([]Standing{
				{Rank: 1, Score: 5, Losses: 0},
				{Rank: 2, Score: 5, Losses: 1},
				{Rank: 3, Score: 5, Losses: 1},
				{Rank: 4, Score: 0, Losses: 4},
			}), ShouldBeNil)
			So(verifyOrdering(nil), ShouldBeNil)
		})

		Convey("Then out of order rows should fail", func() {
			So(verifyOrdering([]Standing{{Rank: 1, Score: 1}, {Rank: 2, Score: 3}}), ShouldNotBeNil)
			So(verifyOrdering([]Standing{{Rank: 1, Score: 1, Losses: 2}, {Rank: 2, Score: 1, Losses: 0}}), ShouldNotBeNil)
			So(verifyOrdering([]Standing{{Rank: 2}}), ShouldNotBeNil)
			So(verifyOrdering([]Standing{{Rank: 1, Score: 2}, {Rank: 3, Score: 1}}), ShouldNotBeNil)
			So(verifyOrdering([]Standing{{Rank: 1, Score: 2}, {Rank: 1, Score: 2}}), ShouldNotBeNil)
		})
	})

	Convey("Given accepted votes", t, func() {
		want := expectedStandings([]Comparison{
			{WinnerTeamID: "a", LoserTeamID: "b", ScoreDifference: 2},
			{WinnerTeamID: "b", LoserTeamID: "a", ScoreDifference: 0},
		})

		Convey("Then scores should add one plus the margin per win", func() {
			So(want["a"].Score, ShouldEqual, 3)
			So(want["a"].Wins, ShouldEqual, 1)
			So(want["a"].Losses, ShouldEqual, 1)
			So(want["b"].Score, ShouldEqual, 1)
		})
	})
}
