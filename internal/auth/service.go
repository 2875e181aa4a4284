// Package auth registers teams and issues the bearer tokens that identify
// them on every tournament call.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

var teamNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores anything longer
	maxFullNameLen = 100
)

// TeamStore is the part of the store auth needs.
type TeamStore interface {
	CreateTeam(ctx context.Context, team model.Team) (model.Team, error)
	TeamByID(ctx context.Context, id string) (model.Team, error)
	TeamByName(ctx context.Context, name string) (model.Team, error)
}

// Registration is the input for a new team.
type Registration struct {
	Name     string `json:"team_name"`
	FullName string `json:"team_full_name"`
	Password string `json:"password"`
}

// Token is the login response.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	TeamID      string    `json:"team_id"`
	TeamName    string    `json:"team_name"`
}

// Service handles team registration and login.
type Service struct {
	store      TeamStore
	issuer     *Issuer
	bcryptCost int
	now        func() time.Time
	logger     logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithBcryptCost overrides the password hashing cost, mostly for tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService constructs an auth Service.
func NewService(store TeamStore, issuer *Issuer, opts ...Option) *Service {
	s := &Service{
		store:  store,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("auth")
	}
	return s
}

// Validate checks a registration the way the login form expects.
func (r Registration) Validate() error {
	switch {
	case !teamNamePattern.MatchString(r.Name):
		return fmt.Errorf("%w: team_name must be 3-20 letters, digits, '_' or '-'", ErrInvalidInput)
	case strings.TrimSpace(r.FullName) == "" || utf8.RuneCountInString(r.FullName) > maxFullNameLen:
		return fmt.Errorf("%w: team_full_name must be 1-%d characters", ErrInvalidInput, maxFullNameLen)
	case len(r.Password) < minPasswordLen || len(r.Password) > maxPasswordLen:
		return fmt.Errorf("%w: password must be %d-%d bytes", ErrInvalidInput, minPasswordLen, maxPasswordLen)
	}
	return nil
}

// Register creates a team with a hashed password.
func (s *Service) Register(ctx context.Context, reg Registration) (model.Team, error) {
	if err := reg.Validate(); err != nil {
		return model.Team{}, err
	}
	hash, err := HashPassword(reg.Password, s.bcryptCost)
	if err != nil {
		return model.Team{}, err
	}

	team, err := s.store.CreateTeam(ctx, model.Team{
		ID:           NewTeamID(),
		Name:         reg.Name,
		FullName:     strings.TrimSpace(reg.FullName),
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	})
	if errors.Is(err, repository.ErrTeamExists) {
		return model.Team{}, ErrTeamExists
	}
	if err != nil {
		return model.Team{}, fmt.Errorf("register team: %w", err)
	}

	metrics.RecordTeamRegistered()
	s.logger.Info(ctx, "team registered",
		logger.String("team_id", team.ID),
		logger.String("team_name", team.Name),
	)
	return team, nil
}

// Login checks credentials and issues an access token.
func (s *Service) Login(ctx context.Context, name, password string) (Token, error) {
	team, err := s.store.TeamByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return Token{}, ErrInvalidCredentials
	}
	if err != nil {
		return Token{}, fmt.Errorf("login: %w", err)
	}
	if err := CheckPassword(team.PasswordHash, password); err != nil {
		s.logger.Debug(ctx, "login rejected", logger.String("team_name", name))
		return Token{}, ErrInvalidCredentials
	}

	signed, exp, err := s.issuer.Issue(team)
	if err != nil {
		return Token{}, err
	}
	return Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresAt:   exp.UTC(),
		TeamID:      team.ID,
		TeamName:    team.Name,
	}, nil
}

// Authenticate resolves a bearer token to the team it was issued to. The
// team must still exist: a memory store forgets teams on restart while
// their tokens stay signed.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	id, err := s.issuer.Verify(token)
	if err != nil {
		return Identity{}, err
	}
	team, err := s.store.TeamByID(ctx, id.TeamID)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Debug(ctx, "token for unknown team", logger.String("team_id", id.TeamID))
		return Identity{}, ErrUnauthorized
	}
	if err != nil {
		return Identity{}, fmt.Errorf("authenticate: %w", err)
	}
	return Identity{TeamID: team.ID, TeamName: team.Name}, nil
}

// NewTeamID returns "t_" followed by eight random hex characters.
func NewTeamID() string {
	return "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
