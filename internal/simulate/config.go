package simulate

import (
	"time"
)

// Config holds configuration for a tournament simulation.
type Config struct {
	BaseURL     string        // Base URL of the service
	Teams       int           // Number of teams to register
	Submissions int           // Submissions uploaded per team
	Votes       int           // Votes to attempt across all judges
	Workers     int           // Number of concurrent judges
	Churn       float64       // Chance per vote that a team swaps its entry
	MaxScore    int           // Largest score difference a judge hands out
	Timeout     time.Duration // HTTP request timeout
	OutputFile  string        // Output file for recorded comparisons
	LogFile     string        // Log file for simulation output
	Verbose     bool          // Enable verbose logging
	Prefix      string        // Team name prefix, keeps runs against one server apart
}

// team is a registered participant as seen by the simulator.
type team struct {
	ID          string
	Name        string
	Token       string
	Submissions []string
}

type registration struct {
	TeamName     string `json:"team_name"`
	TeamFullName string `json:"team_full_name"`
	Password     string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TeamID      string `json:"team_id"`
	TeamName    string `json:"team_name"`
}

type submission struct {
	ID     string `json:"submission_id"`
	TeamID string `json:"team_id"`
	Status string `json:"status"`
}

type match struct {
	ComparisonID string     `json:"comparison_id"`
	Submission1  submission `json:"submission1"`
	Submission2  submission `json:"submission2"`
	Team1Name    string     `json:"team1_name"`
	Team2Name    string     `json:"team2_name"`
}

type vote struct {
	WinnerSubmissionID string `json:"winner_submission_id"`
	LoserSubmissionID  string `json:"loser_submission_id"`
	ScoreDifference    int    `json:"score_difference"`
}

// Comparison is a vote the server accepted.
type Comparison struct {
	ID              string `json:"comparison_id"`
	JudgeID         string `json:"judge_id"`
	WinnerTeamID    string `json:"winner_team_id"`
	LoserTeamID     string `json:"loser_team_id"`
	ScoreDifference int    `json:"score_difference"`
}

// Standing is a leaderboard row.
type Standing struct {
	Rank     int    `json:"rank"`
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
	Score    int    `json:"score"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stats holds simulation statistics.
type Stats struct {
	TeamsRegistered    int
	SubmissionsCreated int
	VotesAttempted     int
	VotesAccepted      int
	VotesStale         int
	MatchesEmpty       int
	EntrySwaps         int
	Failures           int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
