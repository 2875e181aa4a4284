// Package recording turns a judge's vote on an issued match into an
// immutable comparison.
package recording

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/matching"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// Recorder validates votes against the match book and the live
// verification state.
type Recorder struct {
	store    repository.Store
	book     matching.Book
	maxScore int
	now      func() time.Time
	logger   logger.Logger
}

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithMaxScoreDifference caps the score difference. 0 means no cap.
func WithMaxScoreDifference(limit int) Option {
	return func(r *Recorder) {
		if limit >= 0 {
			r.maxScore = limit
		}
	}
}

// WithClock overrides the time comparisons are recorded at.
func WithClock(fn func() time.Time) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithLogger sets a custom logger for the recorder.
func WithLogger(l logger.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRecorder constructs a Recorder for matches issued into book.
func NewRecorder(store repository.Store, book matching.Book, opts ...Option) *Recorder {
	r := &Recorder{
		store: store,
		book:  book,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("recorder")
	}
	return r
}

// Record stores judgeID's vote that winnerID beat loserID in match matchID.
// The staleness check and the append happen under both teams' locks.
func (r *Recorder) Record(ctx context.Context, judgeID, matchID, winnerID, loserID string, scoreDifference int) (model.Comparison, error) {
	if _, err := r.store.Comparison(ctx, matchID); err == nil {
		return model.Comparison{}, ErrAlreadyRecorded
	}

	m, ok := r.book.Get(ctx, matchID)
	if !ok || m.JudgeID != judgeID {
		return model.Comparison{}, ErrMatchNotFound
	}

	winner, wok := m.Side(winnerID)
	loser, lok := m.Side(loserID)
	if !wok || !lok || winnerID == loserID || winner.Submission.TeamID == loser.Submission.TeamID {
		return model.Comparison{}, ErrInvalidPairing
	}
	if scoreDifference < 0 || (r.maxScore > 0 && scoreDifference > r.maxScore) {
		return model.Comparison{}, fmt.Errorf("%w: %d", ErrInvalidScore, scoreDifference)
	}

	c := model.Comparison{
		ID:                 m.ID,
		JudgeID:            judgeID,
		WinnerSubmissionID: winnerID,
		LoserSubmissionID:  loserID,
		WinnerTeamID:       winner.Submission.TeamID,
		LoserTeamID:        loser.Submission.TeamID,
		ScoreDifference:    scoreDifference,
		RecordedAt:         r.now().UTC(),
	}

	teams := []string{c.WinnerTeamID, c.LoserTeamID}
	err := r.store.Update(ctx, teams, func(tx repository.Tx) error {
		if tx.HasComparison(c.ID) {
			return ErrAlreadyRecorded
		}
		for _, side := range []model.MatchSide{winner, loser} {
			cur, ok := tx.Submission(side.Submission.ID)
			if !ok || !cur.Verified() || cur.Epoch != side.Submission.Epoch {
				return ErrStaleMatch
			}
		}
		var aerr error
		c, aerr = tx.AppendComparison(c)
		return aerr
	})
	switch {
	case errors.Is(err, ErrStaleMatch):
		r.book.Remove(ctx, matchID)
		metrics.RecordStaleMatch()
		r.logger.Warn(ctx, "stale match rejected",
			logger.String("match_id", matchID),
			logger.String("judge_id", judgeID),
		)
		return model.Comparison{}, err
	case errors.Is(err, repository.ErrDuplicateComparison):
		return model.Comparison{}, ErrAlreadyRecorded
	case err != nil:
		return model.Comparison{}, fmt.Errorf("record %s: %w", matchID, err)
	}

	r.book.Remove(ctx, matchID)
	metrics.RecordComparison()
	r.logger.Info(ctx, "comparison recorded",
		logger.String("comparison_id", c.ID),
		logger.String("judge_id", judgeID),
		logger.String("winner_team_id", c.WinnerTeamID),
		logger.String("loser_team_id", c.LoserTeamID),
		logger.Int("score_difference", scoreDifference),
	)
	return c, nil
}
