package api

import (
	"context"
	"net/http"

	"github.com/okian/arena/internal/auth"
	"github.com/okian/arena/internal/domain/model"
)

// TeamDependencies defines the interface for team account operations.
type TeamDependencies interface {
	Authenticator
	RegisterTeam(ctx context.Context, reg auth.Registration) (model.Team, error)
	Login(ctx context.Context, teamName, password string) (auth.Token, error)
	Teams(ctx context.Context) ([]model.Team, error)
}

// TeamHandler handles registration, login and the public team list.
type TeamHandler struct {
	deps TeamDependencies
}

// NewTeamHandler creates a new team handler.
func NewTeamHandler(deps TeamDependencies) *TeamHandler {
	return &TeamHandler{deps: deps}
}

type loginRequest struct {
	TeamName string `json:"team_name"`
	Password string `json:"password"`
}

// HandleRegister handles POST /teams/register requests.
func (h *TeamHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	const op = "api.register_team"
	var req auth.Registration
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	team, err := h.deps.RegisterTeam(r.Context(), req)
	if err != nil {
		fail(w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// HandleLogin handles POST /teams/login requests.
func (h *TeamHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.login"
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	tok, err := h.deps.Login(r.Context(), req.TeamName, req.Password)
	if err != nil {
		fail(w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

// HandleList handles GET /teams requests.
func (h *TeamHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_teams"
	teams, err := h.deps.Teams(r.Context())
	if err != nil {
		fail(w, op, Wrap(op, err))
		return
	}
	if teams == nil {
		teams = []model.Team{}
	}
	writeJSON(w, http.StatusOK, teams)
}
