// Package simulate drives a full tournament against a running arena server
// and checks the leaderboard it ends with.
package simulate

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/arena/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes the complete simulation.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting arena simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("prefix", cfg.Prefix),
		logger.Int("teams", cfg.Teams),
		logger.Int("votes", cfg.Votes),
		logger.Int("workers", cfg.Workers),
		logger.String("timeout", cfg.Timeout.String()))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Register teams with verified entries
	teams, err := setupTeams(ctx, cfg, client, stats)
	if err != nil {
		return stats, fmt.Errorf("team setup failed: %w", err)
	}

	// Step 3: Judge concurrently
	accepted := judge(ctx, cfg, client, teams, stats)

	// Step 4: Get leaderboard
	board, err := getLeaderboard(ctx, client, stats)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	// Step 5: Verify results
	if err := verifyResults(ctx, teams, accepted, board); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	// Step 6: Save comparisons to file
	if cfg.OutputFile != "" {
		if err := saveComparisons(ctx, cfg.OutputFile, accepted); err != nil {
			logger.Get().Warn(ctx, "failed to save comparisons to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return stats, nil
}

func (c *Config) normalize() error {
	switch {
	case c.BaseURL == "":
		return errors.New("base url is required")
	case c.Teams < 3:
		return errors.New("at least three teams are needed for judges to see a match")
	case c.Submissions < 1:
		return errors.New("each team needs at least one submission")
	case c.Votes < 0:
		return errors.New("votes must not be negative")
	case c.Churn < 0 || c.Churn > 1:
		return errors.New("churn must be between 0 and 1")
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Prefix == "" {
		var b [3]byte
		_, _ = rand.Read(b[:])
		c.Prefix = "sim" + hex.EncodeToString(b[:])
	}
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	logger.Get().Info(ctx, "checking service health")

	status, err := client.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", status)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveComparisons writes the accepted votes to filename as a JSON array.
func saveComparisons(ctx context.Context, filename string, accepted []Comparison) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(accepted, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal comparisons: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "comparisons saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, votesPerSecond float64

	if stats.VotesAttempted > 0 {
		acceptRate = float64(stats.VotesAccepted) / float64(stats.VotesAttempted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		votesPerSecond = float64(stats.VotesAttempted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("teamsRegistered", stats.TeamsRegistered),
		logger.Int("submissionsCreated", stats.SubmissionsCreated),
		logger.Int("votesAttempted", stats.VotesAttempted),
		logger.Int("votesAccepted", stats.VotesAccepted),
		logger.Int("votesStale", stats.VotesStale),
		logger.Int("matchesEmpty", stats.MatchesEmpty),
		logger.Int("entrySwaps", stats.EntrySwaps),
		logger.Int("failures", stats.Failures),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("votesPerSecond", votesPerSecond))
}
