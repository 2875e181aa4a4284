package simulate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/arena/pkg/logger"
)

// setupTeams registers cfg.Teams teams concurrently. Each uploads its
// submissions and verifies one of them.
func setupTeams(ctx context.Context, cfg *Config, client *HTTPClient, stats *Stats) ([]*team, error) {
	logger.Get().Info(ctx, "registering teams",
		logger.Int("teams", cfg.Teams),
		logger.Int("submissionsPerTeam", cfg.Submissions))

	teams := make([]*team, cfg.Teams)
	errs := make([]error, cfg.Teams)
	var created atomic.Int64

	jobs := make(chan int, cfg.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				t, n, err := setupTeam(ctx, cfg, client, i)
				teams[i], errs[i] = t, err
				created.Add(int64(n))
			}
		}()
	}
feed:
	for i := 0; i < cfg.Teams; i++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("team %d: %w", i, err)
		}
	}
	stats.TeamsRegistered = len(teams)
	stats.SubmissionsCreated = int(created.Load())
	return teams, nil
}

func setupTeam(ctx context.Context, cfg *Config, client *HTTPClient, i int) (*team, int, error) {
	name := fmt.Sprintf("%s_%03d", cfg.Prefix, i)
	if _, err := client.do(ctx, http.MethodPost, "/teams/register", "", registration{
		TeamName:     name,
		TeamFullName: "Simulated team " + name,
		Password:     simulationPassword,
	}, nil); err != nil {
		return nil, 0, fmt.Errorf("register %s: %w", name, err)
	}

	var tok tokenResponse
	if _, err := client.do(ctx, http.MethodPost, "/teams/login", "", map[string]string{
		"team_name": name,
		"password":  simulationPassword,
	}, &tok); err != nil {
		return nil, 0, fmt.Errorf("login %s: %w", name, err)
	}

	t := &team{ID: tok.TeamID, Name: name, Token: tok.AccessToken}
	for s := 0; s < cfg.Submissions; s++ {
		var sub submission
		if _, err := client.do(ctx, http.MethodPost, "/submissions", t.Token, map[string]string{
			"prompt":   fmt.Sprintf("Prompt %d of %s", s, name),
			"response": fmt.Sprintf("Response %d of %s", s, name),
		}, &sub); err != nil {
			return nil, s, fmt.Errorf("submit for %s: %w", name, err)
		}
		t.Submissions = append(t.Submissions, sub.ID)
	}

	if len(t.Submissions) > 0 {
		if err := verifyEntry(ctx, client, t); err != nil {
			return nil, len(t.Submissions), err
		}
	}
	return t, len(t.Submissions), nil
}

// verifyEntry makes a random submission the team's entry.
func verifyEntry(ctx context.Context, client *HTTPClient, t *team) error {
	id := t.Submissions[rand.IntN(len(t.Submissions))]
	if _, err := client.do(ctx, http.MethodPost, "/submissions/"+id+"/verify", t.Token, nil, nil); err != nil {
		return fmt.Errorf("verify %s for %s: %w", id, t.Name, err)
	}
	return nil
}

// judge runs cfg.Votes match/vote rounds over cfg.Workers concurrent judges
// and returns the comparisons the server accepted.
func judge(ctx context.Context, cfg *Config, client *HTTPClient, teams []*team, stats *Stats) []Comparison {
	logger.Get().Info(ctx, "judging",
		logger.Int("votes", cfg.Votes),
		logger.Int("workers", cfg.Workers),
		logger.Float64("churn", cfg.Churn))

	var (
		mu       sync.Mutex
		accepted []Comparison

		attempted, stale, empty, swaps, failed atomic.Int64
		lastReport                             atomic.Int64
	)

	jobs := make(chan int, cfg.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if cfg.Churn > 0 && rand.Float64() < cfg.Churn {
					t := teams[rand.IntN(len(teams))]
					if len(t.Submissions) > 1 {
						if err := verifyEntry(ctx, client, t); err != nil {
							failed.Add(1)
						} else {
							swaps.Add(1)
						}
					}
				}

				j := teams[i%len(teams)]
				c, res := castVote(ctx, cfg, client, j)
				attempted.Add(1)
				switch res {
				case outcomeAccepted:
					mu.Lock()
					accepted = append(accepted, c)
					mu.Unlock()
				case outcomeStale:
					stale.Add(1)
				case outcomeEmpty:
					empty.Add(1)
				default:
					failed.Add(1)
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if now-last >= int64(progressInterval) && lastReport.CompareAndSwap(last, now) && cfg.Verbose {
					logger.Get().Info(ctx, "judging progress",
						logger.Int64("attempted", attempted.Load()),
						logger.Int64("stale", stale.Load()),
						logger.Int64("empty", empty.Load()),
						logger.Int64("failed", failed.Load()))
				}
			}
		}()
	}

feed:
	for i := 0; i < cfg.Votes; i++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	stats.VotesAttempted = int(attempted.Load())
	stats.VotesAccepted = len(accepted)
	stats.VotesStale = int(stale.Load())
	stats.MatchesEmpty = int(empty.Load())
	stats.EntrySwaps = int(swaps.Load())
	stats.Failures = int(failed.Load())
	return accepted
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeAccepted
	outcomeStale
	outcomeEmpty
)

// castVote asks for j's next match and votes on it with a random winner.
func castVote(ctx context.Context, cfg *Config, client *HTTPClient, j *team) (Comparison, outcome) {
	var m match
	status, err := client.do(ctx, http.MethodGet, "/matches/next", j.Token, nil, &m)
	if err != nil {
		return Comparison{}, outcomeFailed
	}
	if status == http.StatusNoContent {
		return Comparison{}, outcomeEmpty
	}

	winner, loser := m.Submission1.ID, m.Submission2.ID
	if rand.IntN(2) == 1 {
		winner, loser = loser, winner
	}
	diff := 0
	if cfg.MaxScore > 0 {
		diff = rand.IntN(cfg.MaxScore + 1)
	}

	var c Comparison
	_, err = client.do(ctx, http.MethodPost, "/comparisons/"+m.ComparisonID, j.Token, vote{
		WinnerSubmissionID: winner,
		LoserSubmissionID:  loser,
		ScoreDifference:    diff,
	}, &c)
	switch {
	case err == nil:
		return c, outcomeAccepted
	case codeOf(err) == "stale_match":
		return Comparison{}, outcomeStale
	default:
		return Comparison{}, outcomeFailed
	}
}

// getLeaderboard fetches the current standings.
func getLeaderboard(ctx context.Context, client *HTTPClient, stats *Stats) ([]Standing, error) {
	var board []Standing
	if _, err := client.do(ctx, http.MethodGet, "/leaderboard", "", nil, &board); err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}
	stats.LeaderboardEntries = len(board)
	return board, nil
}
