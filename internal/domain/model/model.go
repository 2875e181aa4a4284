// Package model contains domain models passed between layers.
package model

import "time"

// Status is the verification state of a submission.
type Status string

// Submission states. Both are re-enterable; pending is the initial state.
const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusVerified
}

// Team is a tournament participant. Seq is the registration order.
type Team struct {
	ID           string    `json:"team_id"`
	Name         string    `json:"team_name"`
	FullName     string    `json:"team_full_name,omitempty"`
	PasswordHash string    `json:"-"`
	Seq          int64     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Submission is a team's prompt/response entry.
type Submission struct {
	ID          string    `json:"submission_id"`
	TeamID      string    `json:"team_id"`
	Prompt      string    `json:"prompt"`
	Response    string    `json:"response"`
	Status      Status    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
	// Epoch counts how many times the submission entered verified.
	Epoch int64 `json:"-"`
}

// Verified reports whether the submission is the team's current entry.
func (s Submission) Verified() bool { return s.Status == StatusVerified }

// MatchSide is one half of a match as seen at issue time.
type MatchSide struct {
	Submission Submission
	TeamName   string
}

// Match is an ephemeral pairing of two verified submissions from distinct
// teams. Its ID becomes the comparison ID once a vote is cast.
type Match struct {
	ID       string
	JudgeID  string
	First    MatchSide
	Second   MatchSide
	IssuedAt time.Time
}

// Contains reports whether submissionID is one of the two sides.
func (m Match) Contains(submissionID string) bool {
	return m.First.Submission.ID == submissionID || m.Second.Submission.ID == submissionID
}

// Pair returns the match's pair key.
func (m Match) Pair() [2]string {
	return PairKey(m.First.Submission.ID, m.Second.Submission.ID)
}

// Side returns the side holding submissionID.
func (m Match) Side(submissionID string) (MatchSide, bool) {
	switch submissionID {
	case m.First.Submission.ID:
		return m.First, true
	case m.Second.Submission.ID:
		return m.Second, true
	}
	return MatchSide{}, false
}

// Comparison is the immutable record of a judge's vote.
type Comparison struct {
	ID                 string    `json:"comparison_id"`
	JudgeID            string    `json:"judge_id"`
	WinnerSubmissionID string    `json:"winner_submission_id"`
	LoserSubmissionID  string    `json:"loser_submission_id"`
	WinnerTeamID       string    `json:"winner_team_id"`
	LoserTeamID        string    `json:"loser_team_id"`
	ScoreDifference    int       `json:"score_difference"`
	Seq                int64     `json:"-"`
	RecordedAt         time.Time `json:"recorded_at"`
}

// PairKey orders two submission ids so a pairing has one identity
// regardless of which side won.
func PairKey(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

// Pair returns the comparison's pair key.
func (c Comparison) Pair() [2]string {
	return PairKey(c.WinnerSubmissionID, c.LoserSubmissionID)
}

// Standing is a derived leaderboard row.
type Standing struct {
	Rank     int    `json:"rank"`
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
	Score    int    `json:"score"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}
