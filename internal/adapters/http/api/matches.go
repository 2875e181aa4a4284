package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/arena/internal/domain/matching"
	"github.com/okian/arena/internal/domain/model"
)

// MatchDependencies defines the interface for judging operations.
type MatchDependencies interface {
	NextMatch(ctx context.Context, judgeID string) (model.Match, error)
	RecordComparison(ctx context.Context, judgeID, matchID, winnerID, loserID string, scoreDifference int) (model.Comparison, error)
}

// MatchHandler hands out matches and records votes on them.
type MatchHandler struct {
	deps MatchDependencies
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(deps MatchDependencies) *MatchHandler {
	return &MatchHandler{deps: deps}
}

// matchResponse is the wire shape of an issued match. Its comparison_id is
// the id votes are posted to.
type matchResponse struct {
	ComparisonID string           `json:"comparison_id"`
	Submission1  model.Submission `json:"submission1"`
	Submission2  model.Submission `json:"submission2"`
	Team1Name    string           `json:"team1_name"`
	Team2Name    string           `json:"team2_name"`
}

// comparisonRequest carries a vote. Team ids sent by older clients are
// accepted and ignored; ownership is resolved server side.
type comparisonRequest struct {
	WinnerSubmissionID string `json:"winner_submission_id"`
	LoserSubmissionID  string `json:"loser_submission_id"`
	WinnerTeamID       string `json:"winner_team_id,omitempty"`
	LoserTeamID        string `json:"loser_team_id,omitempty"`
	ScoreDifference    *int   `json:"score_difference"`
}

func (c comparisonRequest) validate() error {
	switch {
	case strings.TrimSpace(c.WinnerSubmissionID) == "":
		return errors.New("missing winner_submission_id")
	case strings.TrimSpace(c.LoserSubmissionID) == "":
		return errors.New("missing loser_submission_id")
	case c.ScoreDifference == nil:
		return errors.New("missing score_difference")
	}
	return nil
}

// HandleNext handles GET /matches/next requests. It answers 204 when no
// pair is eligible.
func (h *MatchHandler) HandleNext(w http.ResponseWriter, r *http.Request) {
	const op = "api.next_match"
	m, err := h.deps.NextMatch(r.Context(), identity(r).TeamID)
	if errors.Is(err, matching.ErrNoMatch) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		fail(w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{
		ComparisonID: m.ID,
		Submission1:  m.First.Submission,
		Submission2:  m.Second.Submission,
		Team1Name:    m.First.TeamName,
		Team2Name:    m.Second.TeamName,
	})
}

// HandleSubmitComparison handles POST /comparisons/{id} requests.
func (h *MatchHandler) HandleSubmitComparison(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_comparison"
	var req comparisonRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	c, err := h.deps.RecordComparison(r.Context(), identity(r).TeamID, r.PathValue("id"),
		req.WinnerSubmissionID, req.LoserSubmissionID, *req.ScoreDifference)
	if err != nil {
		fail(w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
