package api

import (
	"context"
	"net/http"

	"github.com/okian/arena/internal/domain/model"
)

// SubmissionDependencies defines the interface for submission operations.
// Every call is scoped to the authenticated team.
type SubmissionDependencies interface {
	CreateSubmission(ctx context.Context, teamID, prompt, response string) (model.Submission, error)
	MySubmissions(ctx context.Context, teamID string) ([]model.Submission, error)
	LatestVerified(ctx context.Context, teamID string) (*model.Submission, error)
	Verify(ctx context.Context, teamID, submissionID string) (model.Submission, error)
	Unverify(ctx context.Context, teamID, submissionID string) (model.Submission, error)
}

// SubmissionHandler handles a team's own submissions.
type SubmissionHandler struct {
	deps SubmissionDependencies
}

// NewSubmissionHandler creates a new submission handler.
func NewSubmissionHandler(deps SubmissionDependencies) *SubmissionHandler {
	return &SubmissionHandler{deps: deps}
}

type submissionRequest struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// HandleCreate handles POST /submissions requests.
func (h *SubmissionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_submission"
	var req submissionRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	sub, err := h.deps.CreateSubmission(r.Context(), identity(r).TeamID, req.Prompt, req.Response)
	if err != nil {
		fail(w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// HandleMine handles GET /submissions/mine requests.
func (h *SubmissionHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	const op = "api.my_submissions"
	subs, err := h.deps.MySubmissions(r.Context(), identity(r).TeamID)
	if err != nil {
		fail(w, op, Wrap(op, err))
		return
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// HandleLatestVerified handles GET /submissions/latest-verified requests.
// The body is null when the team has no verified submission.
func (h *SubmissionHandler) HandleLatestVerified(w http.ResponseWriter, r *http.Request) {
	const op = "api.latest_verified"
	sub, err := h.deps.LatestVerified(r.Context(), identity(r).TeamID)
	if err != nil {
		fail(w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// HandleVerify handles POST /submissions/{id}/verify requests.
func (h *SubmissionHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "api.verify", h.deps.Verify)
}

// HandleUnverify handles POST /submissions/{id}/unverify requests.
func (h *SubmissionHandler) HandleUnverify(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "api.unverify", h.deps.Unverify)
}

func (h *SubmissionHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	apply func(ctx context.Context, teamID, submissionID string) (model.Submission, error),
) {
	id := r.PathValue("id")
	if id == "" {
		fail(w, op, NewKind(op, ErrBadRequest))
		return
	}
	sub, err := apply(r.Context(), identity(r).TeamID, id)
	if err != nil {
		fail(w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
