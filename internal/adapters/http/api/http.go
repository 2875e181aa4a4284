// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/arena/internal/auth"
)

// maxBodyBytes bounds request bodies; submissions carry the largest payloads.
const maxBodyBytes = 256 << 10

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	TeamDependencies
	SubmissionDependencies
	MatchDependencies
	LeaderboardDependencies
}

// Server wires HTTP routes for the tournament API.
type Server struct {
	deps    Dependencies
	limiter *RateLimiter

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	teamHandler        *TeamHandler
	submissionHandler  *SubmissionHandler
	matchHandler       *MatchHandler
	leaderboardHandler *LeaderboardHandler
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRateLimiter throttles every route per client address.
func WithRateLimiter(l *RateLimiter) ServerOption {
	return func(s *Server) {
		s.limiter = l
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		deps:               deps,
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		teamHandler:        NewTeamHandler(deps),
		submissionHandler:  NewSubmissionHandler(deps),
		matchHandler:       NewMatchHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	public := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.wrap(endpoint, h))
	}
	private := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.wrap(endpoint, RequireAuth(s.deps, h)))
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	public("POST /teams/register", "teams_register", s.teamHandler.HandleRegister)
	public("POST /teams/login", "teams_login", s.teamHandler.HandleLogin)
	public("GET /teams", "teams", s.teamHandler.HandleList)
	public("GET /leaderboard", "leaderboard", s.leaderboardHandler.HandleGetLeaderboard)

	private("POST /submissions", "submissions_create", s.submissionHandler.HandleCreate)
	private("GET /submissions/mine", "submissions_mine", s.submissionHandler.HandleMine)
	private("GET /submissions/latest-verified", "submissions_latest_verified", s.submissionHandler.HandleLatestVerified)
	private("POST /submissions/{id}/verify", "submissions_verify", s.submissionHandler.HandleVerify)
	private("POST /submissions/{id}/unverify", "submissions_unverify", s.submissionHandler.HandleUnverify)
	private("GET /matches/next", "matches_next", s.matchHandler.HandleNext)
	private("POST /comparisons/{id}", "comparisons", s.matchHandler.HandleSubmitComparison)
}

// wrap applies the rate limit then metrics, so throttled calls are counted.
func (s *Server) wrap(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	if s.limiter != nil {
		h = s.limiter.Middleware(h, endpoint)
	}
	return MetricsMiddleware(h, endpoint)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// identity returns the team RequireAuth attached to the request.
func identity(r *http.Request) auth.Identity {
	id, _ := IdentityFrom(r.Context())
	return id
}
