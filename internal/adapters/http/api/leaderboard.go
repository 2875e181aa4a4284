// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/arena/internal/domain/model"
)

// LeaderboardDependencies defines the interface for leaderboard operations
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context) ([]model.Standing, error)
}

// LeaderboardHandler handles leaderboard requests
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /leaderboard requests
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	standings, err := h.deps.Leaderboard(r.Context())
	if err != nil {
		fail(w, op, Wrap(op, err))
		return
	}
	if standings == nil {
		standings = []model.Standing{}
	}
	writeJSON(w, http.StatusOK, standings)
}
