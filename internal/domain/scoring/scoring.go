// Package scoring derives the leaderboard from the comparison log.
package scoring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// Source provides the teams and comparisons a leaderboard is computed from.
type Source interface {
	Snapshot(ctx context.Context) repository.Snapshot
}

// Scorer computes the current standings.
type Scorer interface {
	// Leaderboard recomputes every team's standing, honoring ctx for cancellation.
	Leaderboard(ctx context.Context) ([]model.Standing, error)
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine implements Scorer with a full recompute per call.
type Engine struct {
	src    Source
	logger logger.Logger
}

// NewEngine creates a scoring engine reading from src.
func NewEngine(src Source, opts ...Option) *Engine {
	e := &Engine{src: src}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("scoring")
	}
	return e
}

// Leaderboard returns standings for every registered team.
func (e *Engine) Leaderboard(ctx context.Context) ([]model.Standing, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	start := time.Now()
	snap := e.src.Snapshot(ctx)
	rows := Compute(snap.Teams, snap.Comparisons)
	metrics.RecordLeaderboardLatency(float64(time.Since(start).Microseconds()) / 1000)

	e.logger.Debug(ctx, "leaderboard computed",
		logger.Int("teams", len(rows)),
		logger.Int("comparisons", len(snap.Comparisons)),
	)
	return rows, nil
}

// Compute ranks teams from comparisons. A win is worth 1 + ScoreDifference,
// a loss nothing. Rows are ordered by score desc, losses asc, then
// registration order; Rank is the 1-based position in that order.
func Compute(teams []model.Team, comparisons []model.Comparison) []model.Standing {
	type row struct {
		model.Standing
		seq int64
	}
	rows := make([]row, 0, len(teams))
	index := make(map[string]int, len(teams))
	for _, t := range teams {
		index[t.ID] = len(rows)
		rows = append(rows, row{
			Standing: model.Standing{TeamID: t.ID, TeamName: t.Name},
			seq:      t.Seq,
		})
	}

	for _, c := range comparisons {
		if i, ok := index[c.WinnerTeamID]; ok {
			rows[i].Wins++
			rows[i].Score += 1 + c.ScoreDifference
		}
		if i, ok := index[c.LoserTeamID]; ok {
			rows[i].Losses++
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Losses != b.Losses {
			return a.Losses < b.Losses
		}
		return a.seq < b.seq
	})

	out := make([]model.Standing, len(rows))
	for i, r := range rows {
		r.Rank = i + 1
		out[i] = r.Standing
	}
	return out
}
