// Package repository holds the tournament state: teams, their submissions and
// the append-only comparison log.
package repository

import (
	"context"

	"github.com/okian/arena/internal/domain/model"
)

// Snapshot is a consistent read-only view of the tournament state. Slices are
// shared with the store and must not be modified.
type Snapshot struct {
	// Teams in registration order.
	Teams []model.Team
	// Verified maps a team id to its verified submissions. Teams without one
	// are absent.
	Verified map[string][]model.Submission
	// Comparisons in append order.
	Comparisons []model.Comparison
}

// Counts summarizes the store contents.
type Counts struct {
	Teams         int
	Submissions   int
	VerifiedTeams int
	Comparisons   int
}

// Tx stages changes for the teams locked by Store.Update. Nothing staged is
// visible to other readers until the update function returns nil and the
// journal accepts the changes.
type Tx interface {
	// Submission returns the submission as seen by this transaction.
	Submission(id string) (model.Submission, bool)
	// ListByTeam returns the team's submissions in creation order.
	ListByTeam(teamID string) []model.Submission
	// SetStatus changes a submission's status. Entering verified bumps the
	// epoch. The owning team must be locked.
	SetStatus(id string, status model.Status) (model.Submission, error)
	// HasComparison reports whether a comparison with id exists or is staged.
	HasComparison(id string) bool
	// AppendComparison stages an immutable comparison. Both teams must be
	// locked.
	AppendComparison(c model.Comparison) (model.Comparison, error)
}

// Store provides access to the tournament state.
type Store interface {
	// CreateTeam registers a team. Returns ErrTeamExists when the name is taken.
	CreateTeam(ctx context.Context, team model.Team) (model.Team, error)
	TeamByID(ctx context.Context, id string) (model.Team, error)
	// TeamByName looks a team up by its case-insensitive name.
	TeamByName(ctx context.Context, name string) (model.Team, error)
	// Teams returns every team in registration order.
	Teams(ctx context.Context) []model.Team

	// CreateSubmission stores a new pending submission.
	CreateSubmission(ctx context.Context, sub model.Submission) (model.Submission, error)
	Submission(ctx context.Context, id string) (model.Submission, error)
	// ListByTeam returns a team's submissions in creation order.
	ListByTeam(ctx context.Context, teamID string) []model.Submission
	// LatestVerified returns the team's verified submission, if any.
	LatestVerified(ctx context.Context, teamID string) (model.Submission, bool)

	Comparison(ctx context.Context, id string) (model.Comparison, error)
	// Snapshot returns a consistent view for read-side computations.
	Snapshot(ctx context.Context) Snapshot
	Counts(ctx context.Context) Counts

	// Update runs fn while holding the exclusive section of every team in
	// teamIDs. Changes staged through the Tx are committed only when fn
	// returns nil.
	Update(ctx context.Context, teamIDs []string, fn func(tx Tx) error) error
}
