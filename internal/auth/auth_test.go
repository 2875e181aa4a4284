package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/auth"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

func TestPasswords(t *testing.T) {
	Convey("Given a hashed password", t, func() {
		hash, err := auth.HashPassword("password123!", bcrypt.MinCost)
		So(err, ShouldBeNil)
		So(hash, ShouldNotEqual, "password123!")

		Convey("Then the right password should match", func() {
			So(auth.CheckPassword(hash, "password123!"), ShouldBeNil)
		})

		Convey("Then a wrong password should be rejected", func() {
			So(errors.Is(auth.CheckPassword(hash, "nope"), auth.ErrInvalidCredentials), ShouldBeTrue)
		})

		Convey("Then a garbage hash should be rejected", func() {
			So(errors.Is(auth.CheckPassword("garbage", "nope"), auth.ErrInvalidCredentials), ShouldBeTrue)
		})
	})
}

func TestIssuer(t *testing.T) {
	Convey("Given a token issuer", t, func() {
		issuer := auth.NewIssuer("secret", auth.WithTTL(time.Hour))
		team := model.Team{ID: "t_abcdef12", Name: "team_alpha"}

		Convey("When issuing a token", func() {
			token, exp, err := issuer.Issue(team)
			So(err, ShouldBeNil)
			So(exp.After(time.Now()), ShouldBeTrue)

			Convey("Then it should verify back to the team", func() {
				id, err := issuer.Verify(token)
				So(err, ShouldBeNil)
				So(id.TeamID, ShouldEqual, "t_abcdef12")
				So(id.TeamName, ShouldEqual, "team_alpha")
			})

			Convey("Then another secret should reject it", func() {
				_, err := auth.NewIssuer("other").Verify(token)
				So(errors.Is(err, auth.ErrUnauthorized), ShouldBeTrue)
			})

			Convey("Then an issuer with another name should reject it", func() {
				_, err := auth.NewIssuer("secret", auth.WithIssuerName("elsewhere")).Verify(token)
				So(errors.Is(err, auth.ErrUnauthorized), ShouldBeTrue)

				named := auth.NewIssuer("secret", auth.WithIssuerName("elsewhere"))
				other, _, err := named.Issue(team)
				So(err, ShouldBeNil)
				id, err := named.Verify(other)
				So(err, ShouldBeNil)
				So(id.TeamID, ShouldEqual, team.ID)
			})

			Convey("Then a tampered token should be rejected", func() {
				_, err := issuer.Verify(token[:len(token)-2] + "xx")
				So(errors.Is(err, auth.ErrUnauthorized), ShouldBeTrue)
			})
		})

		Convey("When a token has expired", func() {
			past := auth.NewIssuer("secret",
				auth.WithTTL(time.Minute),
				auth.WithIssuerClock(func() time.Time { return time.Now().Add(-time.Hour) }),
			)
			token, _, err := past.Issue(team)
			So(err, ShouldBeNil)

			_, err = issuer.Verify(token)
			So(errors.Is(err, auth.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("When a token is signed with another algorithm", func() {
			claims := auth.Claims{StandardClaims: jwt.StandardClaims{Subject: team.ID, Issuer: "arena"}}
			token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
			So(err, ShouldBeNil)

			_, err = issuer.Verify(token)
			So(errors.Is(err, auth.ErrUnauthorized), ShouldBeTrue)
		})
	})
}

func TestService(t *testing.T) {
	Convey("Given an auth service over a memory store", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		store, err := repository.NewMemoryStore(ctx)
		So(err, ShouldBeNil)
		svc := auth.NewService(store, auth.NewIssuer("secret"), auth.WithBcryptCost(bcrypt.MinCost))
		reg := auth.Registration{Name: "team_alpha", FullName: "Team Alpha", Password: "password123!"}

		Convey("When registering a team", func() {
			team, err := svc.Register(ctx, reg)

			Convey("Then it should get an id and a hashed password", func() {
				So(err, ShouldBeNil)
				So(strings.HasPrefix(team.ID, "t_"), ShouldBeTrue)
				So(len(team.ID), ShouldEqual, 10)
				So(team.PasswordHash, ShouldNotEqual, reg.Password)
				So(team.Seq, ShouldEqual, int64(1))
			})

			Convey("And registering the same name again should conflict", func() {
				_, err := svc.Register(ctx, reg)
				So(errors.Is(err, auth.ErrTeamExists), ShouldBeTrue)
			})

			Convey("And logging in should issue a usable token", func() {
				tok, err := svc.Login(ctx, "team_alpha", "password123!")
				So(err, ShouldBeNil)
				So(tok.TokenType, ShouldEqual, "bearer")
				So(tok.TeamID, ShouldEqual, team.ID)

				id, err := svc.Authenticate(ctx, tok.AccessToken)
				So(err, ShouldBeNil)
				So(id.TeamID, ShouldEqual, team.ID)
			})

			Convey("And a wrong password should be rejected", func() {
				_, err := svc.Login(ctx, "team_alpha", "wrong-password")
				So(errors.Is(err, auth.ErrInvalidCredentials), ShouldBeTrue)
			})
		})

		Convey("When a validly signed token names a team the store does not know", func() {
			token, _, err := auth.NewIssuer("secret").Issue(model.Team{ID: "t_gone0000", Name: "gone"})
			So(err, ShouldBeNil)

			_, err = svc.Authenticate(ctx, token)
			So(errors.Is(err, auth.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("When logging in as an unknown team", func() {
			_, err := svc.Login(ctx, "ghost", "password123!")
			So(errors.Is(err, auth.ErrInvalidCredentials), ShouldBeTrue)
		})

		Convey("When the registration is invalid", func() {
			cases := []auth.Registration{
				{Name: "ab", FullName: "x", Password: "password123!"},
				{Name: "bad name", FullName: "x", Password: "password123!"},
				{Name: "team_beta", FullName: "  ", Password: "password123!"},
				{Name: "team_beta", FullName: "Beta", Password: "short"},
			}
			for _, c := range cases {
				_, err := svc.Register(ctx, c)
				So(errors.Is(err, auth.ErrInvalidInput), ShouldBeTrue)
			}
		})
	})
}
