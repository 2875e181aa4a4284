package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/arena/internal/adapters/http/api"
	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/auth"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type client struct {
	mux *http.ServeMux
}

func (c client) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.mux.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

func newClient(opts ...api.ServerOption) (client, *service.Service) {
	svc := service.New(service.WithBcryptCost(bcrypt.MinCost))
	So(svc.Start(context.Background()), ShouldBeNil)
	mux := http.NewServeMux()
	api.NewServer(svc, svc, opts...).Register(context.Background(), mux)
	return client{mux: mux}, svc
}

type login struct {
	teamID string
	token  string
}

// signup registers name, logs in and uploads one verified submission.
func signup(c client, name string) (login, model.Submission) {
	w := c.do("POST", "/teams/register", "", map[string]string{
		"team_name": name, "team_full_name": strings.ToUpper(name), "password": "password123!",
	})
	So(w.Code, ShouldEqual, http.StatusCreated)

	w = c.do("POST", "/teams/login", "", map[string]string{"team_name": name, "password": "password123!"})
	So(w.Code, ShouldEqual, http.StatusOK)
	tok := decode[auth.Token](w)

	w = c.do("POST", "/submissions", tok.AccessToken, map[string]string{"prompt": "p", "response": "r " + name})
	So(w.Code, ShouldEqual, http.StatusCreated)
	sub := decode[model.Submission](w)

	w = c.do("POST", "/submissions/"+sub.ID+"/verify", tok.AccessToken, nil)
	So(w.Code, ShouldEqual, http.StatusOK)
	return login{teamID: tok.TeamID, token: tok.AccessToken}, decode[model.Submission](w)
}

type errBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type matchBody struct {
	ComparisonID string           `json:"comparison_id"`
	Submission1  model.Submission `json:"submission1"`
	Submission2  model.Submission `json:"submission2"`
	Team1Name    string           `json:"team1_name"`
	Team2Name    string           `json:"team2_name"`
}

func TestServer_Public(t *testing.T) {
	Convey("Given a running API", t, func() {
		c, svc := newClient()
		defer svc.Stop()

		Convey("Then health, stats and metrics should be served", func() {
			w := c.do("GET", "/healthz", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ok"`)

			w = c.do("GET", "/stats", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[map[string]any](w)["started"], ShouldEqual, true)

			w = c.do("GET", "/metrics", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "arena_tournament")
		})

		Convey("When registering a team", func() {
			w := c.do("POST", "/teams/register", "", map[string]string{
				"team_name": "alpha", "team_full_name": "Alpha", "password": "password123!",
			})

			Convey("Then it should be created without leaking the hash", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Body.String(), ShouldNotContainSubstring, "password")
				team := decode[model.Team](w)
				So(team.ID, ShouldStartWith, "t_")
				So(team.Name, ShouldEqual, "alpha")
			})

			Convey("And registering the same name again should conflict", func() {
				w := c.do("POST", "/teams/register", "", map[string]string{
					"team_name": "ALPHA", "team_full_name": "Alpha", "password": "password123!",
				})
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decode[errBody](w).Code, ShouldEqual, "conflict")
			})

			Convey("And a wrong password should be unauthorized", func() {
				w := c.do("POST", "/teams/login", "", map[string]string{"team_name": "alpha", "password": "nope-nope"})
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
			})

			Convey("And the team should be listed", func() {
				w := c.do("GET", "/teams", "", nil)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(len(decode[[]model.Team](w)), ShouldEqual, 1)
			})
		})

		Convey("When registering with bad input", func() {
			w1 := c.do("POST", "/teams/register", "", map[string]string{"team_name": "a", "team_full_name": "A", "password": "password123!"})
			req := httptest.NewRequest("POST", "/teams/register", strings.NewReader("{not json"))
			w2 := httptest.NewRecorder()
			c.mux.ServeHTTP(w2, req)

			Convey("Then it should be a bad request", func() {
				So(w1.Code, ShouldEqual, http.StatusBadRequest)
				So(w2.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errBody](w2).Code, ShouldEqual, "bad_request")
			})
		})

		Convey("Then the empty leaderboard should be an empty list", func() {
			w := c.do("GET", "/leaderboard", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
		})
	})
}

func TestServer_Auth(t *testing.T) {
	Convey("Given protected routes", t, func() {
		c, svc := newClient()
		defer svc.Stop()

		for _, route := range []string{"GET /submissions/mine", "GET /matches/next", "POST /submissions/x/verify"} {
			method, path, _ := strings.Cut(route, " ")

			Convey("Then "+route+" should require a bearer token", func() {
				So(c.do(method, path, "", nil).Code, ShouldEqual, http.StatusUnauthorized)
				w := c.do(method, path, "garbage", nil)
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				So(decode[errBody](w).Code, ShouldEqual, "unauthorized")
			})
		}
	})
}

func TestServer_Tournament(t *testing.T) {
	Convey("Given three teams with verified submissions", t, func() {
		c, svc := newClient()
		defer svc.Stop()
		judge, _ := signup(c, "judges")
		_, subB := signup(c, "bravo")
		_, subC := signup(c, "charlie")

		Convey("When the judge asks for a match", func() {
			w := c.do("GET", "/matches/next", judge.token, nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			m := decode[matchBody](w)

			Convey("Then it should pair the other two teams", func() {
				ids := []string{m.Submission1.ID, m.Submission2.ID}
				So(ids, ShouldContain, subB.ID)
				So(ids, ShouldContain, subC.ID)
				So(m.Team1Name, ShouldNotEqual, m.Team2Name)
				So(m.ComparisonID, ShouldNotBeBlank)
			})

			Convey("And asking again before voting should return the same match", func() {
				w := c.do("GET", "/matches/next", judge.token, nil)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[matchBody](w).ComparisonID, ShouldEqual, m.ComparisonID)
			})

			Convey("And a vote should be recorded and ranked", func() {
				w := c.do("POST", "/comparisons/"+m.ComparisonID, judge.token, map[string]any{
					"winner_submission_id": m.Submission2.ID,
					"loser_submission_id":  m.Submission1.ID,
					"score_difference":     2,
				})
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(decode[model.Comparison](w).ID, ShouldEqual, m.ComparisonID)

				w = c.do("GET", "/leaderboard", "", nil)
				board := decode[[]model.Standing](w)
				So(len(board), ShouldEqual, 3)
				So(board[0].TeamName, ShouldEqual, m.Team2Name)
				So(board[0].Score, ShouldEqual, 3)
				So(board[0].Rank, ShouldEqual, 1)

				w = c.do("POST", "/comparisons/"+m.ComparisonID, judge.token, map[string]any{
					"winner_submission_id": m.Submission2.ID,
					"loser_submission_id":  m.Submission1.ID,
					"score_difference":     2,
				})
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errBody](w).Code, ShouldEqual, "already_recorded")
			})

			Convey("And a vote missing its score should be rejected", func() {
				w := c.do("POST", "/comparisons/"+m.ComparisonID, judge.token, map[string]any{
					"winner_submission_id": m.Submission2.ID,
					"loser_submission_id":  m.Submission1.ID,
				})
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("And a negative score should be invalid", func() {
				w := c.do("POST", "/comparisons/"+m.ComparisonID, judge.token, map[string]any{
					"winner_submission_id": m.Submission2.ID,
					"loser_submission_id":  m.Submission1.ID,
					"score_difference":     -1,
				})
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errBody](w).Code, ShouldEqual, "invalid_score")
			})

			Convey("And a pairing outside the match should be invalid", func() {
				w := c.do("POST", "/comparisons/"+m.ComparisonID, judge.token, map[string]any{
					"winner_submission_id": m.Submission1.ID,
					"loser_submission_id":  m.Submission1.ID,
					"score_difference":     0,
				})
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errBody](w).Code, ShouldEqual, "invalid_pairing")
			})

			Convey("And voting on an unknown match should be not found", func() {
				w := c.do("POST", "/comparisons/nope", judge.token, map[string]any{
					"winner_submission_id": m.Submission2.ID,
					"loser_submission_id":  m.Submission1.ID,
					"score_difference":     0,
				})
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a side is unverified before the vote", func() {
			w := c.do("GET", "/matches/next", judge.token, nil)
			m := decode[matchBody](w)
			owner := ownerToken(c, m.Submission1.TeamID)
			w = c.do("POST", "/submissions/"+m.Submission1.ID+"/unverify", owner, nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[model.Submission](w).Status, ShouldEqual, model.StatusPending)

			Convey("Then the vote should be stale", func() {
				w := c.do("POST", "/comparisons/"+m.ComparisonID, judge.token, map[string]any{
					"winner_submission_id": m.Submission1.ID,
					"loser_submission_id":  m.Submission2.ID,
					"score_difference":     1,
				})
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errBody](w).Code, ShouldEqual, "stale_match")
			})

			Convey("Then the next match request should be empty", func() {
				w := c.do("GET", "/matches/next", judge.token, nil)
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(w.Body.Len(), ShouldEqual, 0)
			})

			Convey("And unverifying again should be an invalid state", func() {
				w := c.do("POST", "/submissions/"+m.Submission1.ID+"/unverify", owner, nil)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errBody](w).Code, ShouldEqual, "invalid_state")

				w = c.do("GET", "/submissions/latest-verified", owner, nil)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "null")
			})
		})

		Convey("When verifying another team's submission", func() {
			w := c.do("POST", "/submissions/"+subB.ID+"/verify", judge.token, nil)

			Convey("Then it should be not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decode[errBody](w).Code, ShouldEqual, "not_found")
			})
		})

		Convey("When the judge lists their own submissions", func() {
			w := c.do("POST", "/submissions", judge.token, map[string]string{"prompt": "p2", "response": "r2"})
			So(w.Code, ShouldEqual, http.StatusCreated)
			newest := decode[model.Submission](w)

			Convey("Then the newest should come first", func() {
				w := c.do("GET", "/submissions/mine", judge.token, nil)
				So(w.Code, ShouldEqual, http.StatusOK)
				subs := decode[[]model.Submission](w)
				So(len(subs), ShouldEqual, 2)
				So(subs[0].ID, ShouldEqual, newest.ID)
				So(subs[0].Status, ShouldEqual, model.StatusPending)
				So(subs[1].Status, ShouldEqual, model.StatusVerified)
			})
		})
	})
}

// ownerToken logs in as whichever of the two seeded teams owns teamID.
func ownerToken(c client, teamID string) string {
	for _, name := range []string{"bravo", "charlie"} {
		w := c.do("POST", "/teams/login", "", map[string]string{"team_name": name, "password": "password123!"})
		tok := decode[auth.Token](w)
		if tok.TeamID == teamID {
			return tok.AccessToken
		}
	}
	return ""
}

func TestServer_RateLimit(t *testing.T) {
	Convey("Given an API limited to a burst of two", t, func() {
		c, svc := newClient(api.WithRateLimiter(api.NewRateLimiter(0.001, 2, time.Minute)))
		defer svc.Stop()

		Convey("Then the third call from one client should be throttled", func() {
			So(c.do("GET", "/leaderboard", "", nil).Code, ShouldEqual, http.StatusOK)
			So(c.do("GET", "/teams", "", nil).Code, ShouldEqual, http.StatusOK)
			w := c.do("GET", "/leaderboard", "", nil)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decode[errBody](w).Code, ShouldEqual, "rate_limited")
		})

		Convey("Then health should not be throttled", func() {
			for i := 0; i < 5; i++ {
				So(c.do("GET", "/healthz", "", nil).Code, ShouldEqual, http.StatusOK)
			}
		})
	})

	Convey("Given a rate limiter", t, func() {
		l := api.NewRateLimiter(1, 1, time.Minute)

		Convey("Then clients should have separate budgets", func() {
			So(l.Allow("10.0.0.1"), ShouldBeTrue)
			So(l.Allow("10.0.0.1"), ShouldBeFalse)
			So(l.Allow("10.0.0.2"), ShouldBeTrue)
		})
	})
}

type failingDeps struct {
	api.Dependencies
	err error
}

func (f failingDeps) Leaderboard(context.Context) ([]model.Standing, error) { return nil, f.err }

func TestServer_ErrorMapping(t *testing.T) {
	Convey("Given dependencies that fail", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
			{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
		}
		for _, tc := range cases {
			mux := http.NewServeMux()
			api.NewServer(failingDeps{err: tc.err}, nil).Register(context.Background(), mux)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("GET", "/leaderboard", http.NoBody))

			So(w.Code, ShouldEqual, tc.status)
			body := decode[errBody](w)
			So(body.Code, ShouldEqual, tc.code)
			So(body.Message, ShouldNotContainSubstring, "boom")
		}
	})

	Convey("Given the error helpers", t, func() {
		err := api.WrapKind("api.op", api.ErrBadRequest, errors.New("detail"))

		Convey("Then kinds and causes should stay matchable", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: detail")
			So(errors.Is(api.NewKind("api.op", api.ErrRateLimited), api.ErrRateLimited), ShouldBeTrue)
		})
	})

	Convey("Given a nil mux", t, func() {
		Convey("Then registering should panic", func() {
			So(func() { api.NewServer(failingDeps{}, nil).Register(context.Background(), nil) }, ShouldPanic)
		})
	})
}
