package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

func TestOpenJournal(t *testing.T) {
	Convey("Given storage drivers", t, func() {
		ctx := context.Background()

		Convey("The memory driver should need no dsn", func() {
			j, err := OpenJournal(ctx, "memory", "")
			So(err, ShouldBeNil)
			So(j, ShouldHaveSameTypeAs, NopJournal{})
		})

		Convey("An unknown driver should be rejected", func() {
			_, err := OpenJournal(ctx, "mongo", "x")
			So(errors.Is(err, ErrUnknownDriver), ShouldBeTrue)
		})

		Convey("A SQL driver without a dsn should be rejected", func() {
			_, err := OpenJournal(ctx, "sqlite", "")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestGormJournalReplay(t *testing.T) {
	Convey("Given a sqlite-backed store", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		dsn := filepath.Join(t.TempDir(), "arena.db")

		j, err := OpenJournal(ctx, DriverSQLite, dsn)
		So(err, ShouldBeNil)
		s, err := NewMemoryStore(ctx, WithJournal(j))
		So(err, ShouldBeNil)

		now := time.Now().UTC()
		_, err = s.CreateTeam(ctx, model.Team{ID: "t_a", Name: "Alpha", PasswordHash: "h", CreatedAt: now})
		So(err, ShouldBeNil)
		_, err = s.CreateTeam(ctx, model.Team{ID: "t_b", Name: "Beta", PasswordHash: "h", CreatedAt: now})
		So(err, ShouldBeNil)
		_, err = s.CreateSubmission(ctx, model.Submission{ID: "sa", TeamID: "t_a", Prompt: "p", Response: "r", SubmittedAt: now})
		So(err, ShouldBeNil)
		_, err = s.CreateSubmission(ctx, model.Submission{ID: "sb", TeamID: "t_b", Prompt: "p", Response: "r", SubmittedAt: now.Add(time.Millisecond)})
		So(err, ShouldBeNil)

		err = s.Update(ctx, []string{"t_a", "t_b"}, func(tx Tx) error {
			if _, err := tx.SetStatus("sa", model.StatusVerified); err != nil {
				return err
			}
			if _, err := tx.SetStatus("sb", model.StatusVerified); err != nil {
				return err
			}
			_, err := tx.AppendComparison(model.Comparison{
				ID:                 "c1",
				JudgeID:            "t_b",
				WinnerSubmissionID: "sa",
				LoserSubmissionID:  "sb",
				WinnerTeamID:       "t_a",
				LoserTeamID:        "t_b",
				ScoreDifference:    2,
				RecordedAt:         now,
			})
			return err
		})
		So(err, ShouldBeNil)
		So(j.Close(), ShouldBeNil)

		Convey("When the store is reopened", func() {
			j2, err := OpenJournal(ctx, DriverSQLite, dsn)
			So(err, ShouldBeNil)
			s2, err := NewMemoryStore(ctx, WithJournal(j2))
			So(err, ShouldBeNil)
			defer func() { _ = j2.Close() }()

			Convey("Then the whole state should be replayed", func() {
				teams := s2.Teams(ctx)
				So(len(teams), ShouldEqual, 2)
				So(teams[0].ID, ShouldEqual, "t_a")
				So(teams[1].Seq, ShouldEqual, int64(2))

				sub, ok := s2.LatestVerified(ctx, "t_a")
				So(ok, ShouldBeTrue)
				So(sub.Epoch, ShouldEqual, int64(1))

				c, err := s2.Comparison(ctx, "c1")
				So(err, ShouldBeNil)
				So(c.ScoreDifference, ShouldEqual, 2)
				So(c.Seq, ShouldEqual, int64(1))
			})

			Convey("Then sequences should continue where they stopped", func() {
				team, err := s2.CreateTeam(ctx, model.Team{ID: "t_c", Name: "Gamma", PasswordHash: "h"})
				So(err, ShouldBeNil)
				So(team.Seq, ShouldEqual, int64(3))

				_, err = s2.CreateTeam(ctx, model.Team{ID: "t_d", Name: "alpha", PasswordHash: "h"})
				So(errors.Is(err, ErrTeamExists), ShouldBeTrue)
			})
		})
	})
}
