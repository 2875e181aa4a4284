package simulate

import (
	"context"
	"fmt"

	"github.com/okian/arena/pkg/logger"
)

// verifyResults checks the leaderboard against the votes the server accepted.
// It assumes the simulated teams are the only ones voting.
func verifyResults(ctx context.Context, teams []*team, accepted []Comparison, board []Standing) error {
	logger.Get().Info(ctx, "verifying results",
		logger.Int("accepted", len(accepted)),
		logger.Int("leaderboardEntries", len(board)))

	if err := verifyOrdering(board); err != nil {
		return err
	}

	ours := make(map[string]bool, len(teams))
	for _, t := range teams {
		ours[t.ID] = true
	}

	want := expectedStandings(accepted)
	seen := 0
	for _, row := range board {
		if !ours[row.TeamID] {
			continue
		}
		seen++
		exp := want[row.TeamID]
		if row.Score != exp.Score || row.Wins != exp.Wins || row.Losses != exp.Losses {
			return fmt.Errorf("team %s: leaderboard has score=%d wins=%d losses=%d, votes imply score=%d wins=%d losses=%d",
				row.TeamName, row.Score, row.Wins, row.Losses, exp.Score, exp.Wins, exp.Losses)
		}
	}
	if seen != len(teams) {
		return fmt.Errorf("leaderboard lists %d of %d simulated teams", seen, len(teams))
	}

	displayTopTeams(ctx, board)
	logger.Get().Info(ctx, "result verification completed")
	return nil
}

// verifyOrdering checks score desc, losses asc and positional ranks.
func verifyOrdering(board []Standing) error {
	for i, row := range board {
		if i == 0 {
			if row.Rank != 1 {
				return fmt.Errorf("first leaderboard entry has rank %d", row.Rank)
			}
			continue
		}
		prev := board[i-1]
		switch {
		case row.Score > prev.Score:
			return fmt.Errorf("leaderboard not sorted: entry %d outscores entry %d", i, i-1)
		case row.Score == prev.Score && row.Losses < prev.Losses:
			return fmt.Errorf("leaderboard not sorted: entry %d has fewer losses than entry %d at equal score", i, i-1)
		case row.Rank != i+1:
			return fmt.Errorf("entry %d has rank %d, want %d", i, row.Rank, i+1)
		}
	}
	return nil
}

// expectedStandings derives per-team score, wins and losses from votes.
func expectedStandings(accepted []Comparison) map[string]Standing {
	out := make(map[string]Standing)
	for _, c := range accepted {
		w := out[c.WinnerTeamID]
		w.Score += 1 + c.ScoreDifference
		w.Wins++
		out[c.WinnerTeamID] = w

		l := out[c.LoserTeamID]
		l.Losses++
		out[c.LoserTeamID] = l
	}
	return out
}

func displayTopTeams(ctx context.Context, board []Standing) {
	topN := min(10, len(board))
	for _, row := range board[:topN] {
		logger.Get().Info(ctx, "standing",
			logger.Int("rank", row.Rank),
			logger.String("team", row.TeamName),
			logger.Int("score", row.Score),
			logger.Int("wins", row.Wins),
			logger.Int("losses", row.Losses))
	}
}
