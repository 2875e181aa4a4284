// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/auth"
	"github.com/okian/arena/internal/domain/matching"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/recording"
	"github.com/okian/arena/internal/domain/scoring"
	"github.com/okian/arena/internal/domain/verification"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

const maxSubmissionText = 50_000

// Sentinel kinds for service errors.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrInvalidSubmission = errors.New("invalid submission")
)

// Service implements the API dependencies for the tournament.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	journal  repository.Journal
	guard    *verification.Guard
	selector *matching.Selector
	recorder *recording.Recorder
	scorer   scoring.Scorer
	auth     *auth.Service

	// Configuration
	matchBookSize      int
	allowSelfJudging   bool
	maxScoreDifference int
	jwtSecret          string
	tokenIssuer        string
	tokenTTL           time.Duration
	bcryptCost         int

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithJournal sets where state changes are persisted. Defaults to memory only.
// The service never closes the journal, so a stopped service can be started
// again on it.
func WithJournal(j repository.Journal) Option {
	return func(s *Service) {
		if j != nil {
			s.journal = j
		}
	}
}

// WithMatchBookSize bounds how many issued matches await a vote.
func WithMatchBookSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.matchBookSize = size
		}
	}
}

// WithAllowSelfJudging lets judges receive matches involving their own team.
func WithAllowSelfJudging(allow bool) Option {
	return func(s *Service) {
		s.allowSelfJudging = allow
	}
}

// WithMaxScoreDifference caps the score difference of a vote. 0 means no cap.
func WithMaxScoreDifference(limit int) Option {
	return func(s *Service) {
		if limit >= 0 {
			s.maxScoreDifference = limit
		}
	}
}

// WithJWTSecret sets the HS256 signing secret for access tokens.
func WithJWTSecret(secret string) Option {
	return func(s *Service) {
		if secret != "" {
			s.jwtSecret = secret
		}
	}
}

// WithTokenIssuer sets the issuer name stamped into and required from tokens.
func WithTokenIssuer(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.tokenIssuer = name
		}
	}
}

// WithTokenTTL sets how long access tokens stay valid.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		journal:       repository.NopJournal{},
		matchBookSize: 10_000,
		jwtSecret:     "change-me",
		tokenIssuer:   "arena",
		tokenTTL:      30 * time.Minute,
		stopCh:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start replays the journal and builds the tournament components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting tournament service...")

	store, err := repository.NewMemoryStore(ctx,
		repository.WithJournal(s.journal),
		repository.WithLogger(s.logger.Named("store")),
	)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.store = store

	book := matching.NewInMemoryBook(matching.WithMaxSize(s.matchBookSize))
	s.guard = verification.NewGuard(store, verification.WithLogger(s.logger.Named("guard")))
	s.selector = matching.NewSelector(store,
		matching.WithBook(book),
		matching.WithAllowSelfJudging(s.allowSelfJudging),
		matching.WithLogger(s.logger.Named("selector")),
	)
	s.recorder = recording.NewRecorder(store, book,
		recording.WithMaxScoreDifference(s.maxScoreDifference),
		recording.WithLogger(s.logger.Named("recorder")),
	)
	s.scorer = scoring.NewEngine(store, scoring.WithLogger(s.logger.Named("scoring")))
	s.auth = auth.NewService(store,
		auth.NewIssuer(s.jwtSecret, auth.WithTTL(s.tokenTTL), auth.WithIssuerName(s.tokenIssuer)),
		auth.WithBcryptCost(s.bcryptCost),
		auth.WithLogger(s.logger.Named("auth")),
	)

	select {
	case <-s.stopCh:
		s.stopCh = make(chan struct{})
	default:
	}

	s.started = true
	counts := store.Counts(ctx)
	s.logger.Info(ctx, "tournament service started",
		logger.Int("teams", counts.Teams),
		logger.Int("submissions", counts.Submissions),
		logger.Int("comparisons", counts.Comparisons),
		logger.Int("matchBookSize", s.matchBookSize),
		logger.Bool("allowSelfJudging", s.allowSelfJudging),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping tournament service...")

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(context.Background(), "tournament service stopped")
}

// Done is closed when the service stops.
func (s *Service) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopCh
}

// ready returns ErrNotStarted until Start succeeded.
func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// RegisterTeam creates a team account.
func (s *Service) RegisterTeam(ctx context.Context, reg auth.Registration) (model.Team, error) {
	if err := s.ready(); err != nil {
		return model.Team{}, err
	}
	return s.auth.Register(ctx, reg)
}

// Login issues an access token for valid team credentials.
func (s *Service) Login(ctx context.Context, teamName, password string) (auth.Token, error) {
	if err := s.ready(); err != nil {
		return auth.Token{}, err
	}
	return s.auth.Login(ctx, teamName, password)
}

// Authenticate resolves a bearer token to a team.
func (s *Service) Authenticate(ctx context.Context, token string) (auth.Identity, error) {
	if err := s.ready(); err != nil {
		return auth.Identity{}, err
	}
	return s.auth.Authenticate(ctx, token)
}

// Teams lists every team in registration order.
func (s *Service) Teams(ctx context.Context) ([]model.Team, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Teams(ctx), nil
}

// CreateSubmission uploads a new pending submission for teamID.
func (s *Service) CreateSubmission(ctx context.Context, teamID, prompt, response string) (model.Submission, error) {
	if err := s.ready(); err != nil {
		return model.Submission{}, err
	}
	switch {
	case strings.TrimSpace(prompt) == "":
		return model.Submission{}, fmt.Errorf("%w: missing prompt", ErrInvalidSubmission)
	case strings.TrimSpace(response) == "":
		return model.Submission{}, fmt.Errorf("%w: missing response", ErrInvalidSubmission)
	case len(prompt) > maxSubmissionText || len(response) > maxSubmissionText:
		return model.Submission{}, fmt.Errorf("%w: prompt and response are limited to %d bytes", ErrInvalidSubmission, maxSubmissionText)
	}

	sub, err := s.store.CreateSubmission(ctx, model.Submission{
		ID:          uuid.NewString(),
		TeamID:      teamID,
		Prompt:      prompt,
		Response:    response,
		SubmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return model.Submission{}, err
	}
	metrics.RecordSubmissionCreated()
	s.logger.Debug(ctx, "submission created",
		logger.String("team_id", teamID),
		logger.String("submission_id", sub.ID),
	)
	return sub, nil
}

// MySubmissions lists teamID's submissions, newest first.
func (s *Service) MySubmissions(ctx context.Context, teamID string) ([]model.Submission, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	subs := s.store.ListByTeam(ctx, teamID)
	slices.Reverse(subs)
	return subs, nil
}

// LatestVerified returns teamID's verified submission or nil.
func (s *Service) LatestVerified(ctx context.Context, teamID string) (*model.Submission, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	sub, ok := s.store.LatestVerified(ctx, teamID)
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

// Verify makes submissionID teamID's tournament entry.
func (s *Service) Verify(ctx context.Context, teamID, submissionID string) (model.Submission, error) {
	if err := s.ready(); err != nil {
		return model.Submission{}, err
	}
	return s.guard.Verify(ctx, teamID, submissionID)
}

// Unverify withdraws submissionID from future matches.
func (s *Service) Unverify(ctx context.Context, teamID, submissionID string) (model.Submission, error) {
	if err := s.ready(); err != nil {
		return model.Submission{}, err
	}
	return s.guard.Unverify(ctx, teamID, submissionID)
}

// NextMatch issues the next pair for judgeID. Returns matching.ErrNoMatch
// when no pair is eligible.
func (s *Service) NextMatch(ctx context.Context, judgeID string) (model.Match, error) {
	if err := s.ready(); err != nil {
		return model.Match{}, err
	}
	return s.selector.NextMatch(ctx, judgeID)
}

// RecordComparison stores judgeID's vote on an issued match.
func (s *Service) RecordComparison(ctx context.Context, judgeID, matchID, winnerID, loserID string, scoreDifference int) (model.Comparison, error) {
	if err := s.ready(); err != nil {
		return model.Comparison{}, err
	}
	return s.recorder.Record(ctx, judgeID, matchID, winnerID, loserID, scoreDifference)
}

// Leaderboard returns the current standings.
func (s *Service) Leaderboard(ctx context.Context) ([]model.Standing, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.scorer.Leaderboard(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":            s.started,
		"matchBookSize":      s.matchBookSize,
		"allowSelfJudging":   s.allowSelfJudging,
		"maxScoreDifference": s.maxScoreDifference,
	}

	if s.started {
		counts := s.store.Counts(ctx)
		issued := s.selector.Book().Size()

		stats["totalTeams"] = counts.Teams
		stats["totalSubmissions"] = counts.Submissions
		stats["verifiedTeams"] = counts.VerifiedTeams
		stats["totalComparisons"] = counts.Comparisons
		stats["issuedMatches"] = issued

		metrics.UpdateTotals(counts.Teams, counts.Submissions, counts.VerifiedTeams, counts.Comparisons)
		metrics.UpdateIssuedMatches(int(issued))
	}

	return stats
}
