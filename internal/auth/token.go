package auth

import (
	"fmt"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"

	"github.com/okian/arena/internal/domain/model"
)

const defaultTokenTTL = 30 * time.Minute

// Identity is the team a bearer token was issued to.
type Identity struct {
	TeamID   string
	TeamName string
}

// Claims are the JWT claims carried by an access token.
type Claims struct {
	TeamName string `json:"team_name"`
	jwt.StandardClaims
}

// Issuer signs and verifies HS256 access tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// IssuerOption applies a configuration option to the Issuer.
type IssuerOption func(*Issuer)

// WithTTL sets how long issued tokens stay valid.
func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithIssuerName sets the iss claim tokens carry and Verify requires.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) {
		if name != "" {
			i.issuer = name
		}
	}
}

// WithIssuerClock overrides the time tokens are stamped with.
func WithIssuerClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer creates an issuer signing with secret.
func NewIssuer(secret string, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		secret: []byte(secret),
		ttl:    defaultTokenTTL,
		issuer: "arena",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue returns a signed token for team and its expiry.
func (i *Issuer) Issue(team model.Team) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		TeamName: team.Name,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Subject:   team.ID,
			Issuer:    i.issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: exp.Unix(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks the signature and expiry of token.
func (i *Issuer) Verify(token string) (Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrUnauthorized
	}
	if claims.Subject == "" || claims.Issuer != i.issuer {
		return Identity{}, ErrUnauthorized
	}
	return Identity{TeamID: claims.Subject, TeamName: claims.TeamName}, nil
}
