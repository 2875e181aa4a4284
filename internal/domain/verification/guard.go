// Package verification moves submissions between pending and verified while
// keeping at most one verified submission per team.
package verification

import (
	"context"
	"fmt"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// Guard is the only writer of submission status.
type Guard struct {
	store  repository.Store
	logger logger.Logger
}

// Option applies a configuration option to the Guard.
type Option func(*Guard)

// WithLogger sets a custom logger for the guard.
func WithLogger(l logger.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGuard constructs a Guard over store.
func NewGuard(store repository.Store, opts ...Option) *Guard {
	g := &Guard{store: store}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logger.Get().Named("guard")
	}
	return g
}

// owned returns the submission if it belongs to teamID. Foreign submissions
// are reported as missing.
func (g *Guard) owned(ctx context.Context, teamID, submissionID string) (model.Submission, error) {
	sub, err := g.store.Submission(ctx, submissionID)
	if err != nil {
		return model.Submission{}, err
	}
	if sub.TeamID != teamID {
		return model.Submission{}, repository.ErrSubmissionNotFound
	}
	return sub, nil
}

// Verify makes submissionID the team's only verified submission, demoting any
// other in the same transition. Verifying an already verified submission
// changes nothing.
func (g *Guard) Verify(ctx context.Context, teamID, submissionID string) (model.Submission, error) {
	sub, err := g.owned(ctx, teamID, submissionID)
	if err != nil {
		return model.Submission{}, err
	}

	var (
		result  model.Submission
		demoted []string
		changed bool
	)
	err = g.store.Update(ctx, []string{sub.TeamID}, func(tx repository.Tx) error {
		cur, ok := tx.Submission(submissionID)
		if !ok {
			return repository.ErrSubmissionNotFound
		}
		if cur.Verified() {
			result = cur
			return nil
		}
		changed = true
		for _, other := range tx.ListByTeam(sub.TeamID) {
			if other.ID == submissionID || !other.Verified() {
				continue
			}
			if _, err := tx.SetStatus(other.ID, model.StatusPending); err != nil {
				return err
			}
			demoted = append(demoted, other.ID)
		}
		var serr error
		result, serr = tx.SetStatus(submissionID, model.StatusVerified)
		return serr
	})
	if err != nil {
		return model.Submission{}, fmt.Errorf("verify %s: %w", submissionID, err)
	}

	if changed {
		metrics.RecordVerification()
		g.logger.Info(ctx, "submission verified",
			logger.String("team_id", teamID),
			logger.String("submission_id", submissionID),
			logger.Int64("epoch", result.Epoch),
			logger.Any("demoted", demoted),
		)
	}
	return result, nil
}

// Unverify returns a verified submission to pending. Recorded comparisons
// that involve it are left untouched.
func (g *Guard) Unverify(ctx context.Context, teamID, submissionID string) (model.Submission, error) {
	sub, err := g.owned(ctx, teamID, submissionID)
	if err != nil {
		return model.Submission{}, err
	}

	var result model.Submission
	err = g.store.Update(ctx, []string{sub.TeamID}, func(tx repository.Tx) error {
		cur, ok := tx.Submission(submissionID)
		if !ok {
			return repository.ErrSubmissionNotFound
		}
		if !cur.Verified() {
			return ErrInvalidState
		}
		var serr error
		result, serr = tx.SetStatus(submissionID, model.StatusPending)
		return serr
	})
	if err != nil {
		return model.Submission{}, fmt.Errorf("unverify %s: %w", submissionID, err)
	}

	metrics.RecordUnverification()
	g.logger.Info(ctx, "submission unverified",
		logger.String("team_id", teamID),
		logger.String("submission_id", submissionID),
	)
	return result, nil
}
