package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/metrics"
)

const pingTimeout = 5 * time.Second

type teamRow struct {
	ID           string `gorm:"primaryKey;size:16"`
	Name         string `gorm:"size:128;not null"`
	NameKey      string `gorm:"size:128;not null;uniqueIndex"`
	FullName     string `gorm:"size:255"`
	PasswordHash string `gorm:"size:255;not null"`
	Seq          int64  `gorm:"not null;uniqueIndex"`
	CreatedAt    time.Time
}

func (teamRow) TableName() string { return "teams" }

type submissionRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	TeamID      string `gorm:"size:16;not null;index"`
	Prompt      string `gorm:"type:text"`
	Response    string `gorm:"type:text"`
	Status      string `gorm:"size:16;not null"`
	Epoch       int64  `gorm:"not null;default:0"`
	SubmittedAt time.Time
}

func (submissionRow) TableName() string { return "submissions" }

type comparisonRow struct {
	ID                 string `gorm:"primaryKey;size:36"`
	JudgeID            string `gorm:"size:16;not null;index"`
	WinnerSubmissionID string `gorm:"size:36;not null"`
	LoserSubmissionID  string `gorm:"size:36;not null"`
	WinnerTeamID       string `gorm:"size:16;not null;index"`
	LoserTeamID        string `gorm:"size:16;not null;index"`
	ScoreDifference    int    `gorm:"not null;default:0"`
	Seq                int64  `gorm:"not null;uniqueIndex"`
	RecordedAt         time.Time
}

func (comparisonRow) TableName() string { return "comparisons" }

// GormJournal persists store writes to a SQL database through gorm.
type GormJournal struct {
	db *gorm.DB
}

// OpenJournal returns the journal for driver. The memory driver needs no dsn
// and persists nothing.
func OpenJournal(ctx context.Context, driver, dsn string) (Journal, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverMemory:
		return NopJournal{}, nil
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn is required", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm %s: %w", driver, err)
	}
	return NewGormJournal(ctx, db)
}

// NewGormJournal migrates the schema on db and returns a journal over it.
func NewGormJournal(ctx context.Context, db *gorm.DB) (*GormJournal, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve sql db handle: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&teamRow{}, &submissionRow{}, &comparisonRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &GormJournal{db: db}, nil
}

// Load reads every persisted row in replay order.
func (j *GormJournal) Load(ctx context.Context) (State, error) {
	defer observe("load", time.Now())

	var (
		teams []teamRow
		subs  []submissionRow
		comps []comparisonRow
	)
	db := j.db.WithContext(ctx)
	if err := db.Order("seq").Find(&teams).Error; err != nil {
		return State{}, journalErr("load teams", err)
	}
	if err := db.Order("submitted_at, id").Find(&subs).Error; err != nil {
		return State{}, journalErr("load submissions", err)
	}
	if err := db.Order("seq").Find(&comps).Error; err != nil {
		return State{}, journalErr("load comparisons", err)
	}

	st := State{
		Teams:       make([]model.Team, 0, len(teams)),
		Submissions: make([]model.Submission, 0, len(subs)),
		Comparisons: make([]model.Comparison, 0, len(comps)),
	}
	for _, r := range teams {
		st.Teams = append(st.Teams, model.Team{
			ID:           r.ID,
			Name:         r.Name,
			FullName:     r.FullName,
			PasswordHash: r.PasswordHash,
			Seq:          r.Seq,
			CreatedAt:    r.CreatedAt,
		})
	}
	for _, r := range subs {
		st.Submissions = append(st.Submissions, model.Submission{
			ID:          r.ID,
			TeamID:      r.TeamID,
			Prompt:      r.Prompt,
			Response:    r.Response,
			Status:      model.Status(r.Status),
			SubmittedAt: r.SubmittedAt,
			Epoch:       r.Epoch,
		})
	}
	for _, r := range comps {
		st.Comparisons = append(st.Comparisons, model.Comparison{
			ID:                 r.ID,
			JudgeID:            r.JudgeID,
			WinnerSubmissionID: r.WinnerSubmissionID,
			LoserSubmissionID:  r.LoserSubmissionID,
			WinnerTeamID:       r.WinnerTeamID,
			LoserTeamID:        r.LoserTeamID,
			ScoreDifference:    r.ScoreDifference,
			Seq:                r.Seq,
			RecordedAt:         r.RecordedAt,
		})
	}
	return st, nil
}

func (j *GormJournal) SaveTeam(ctx context.Context, t model.Team) error {
	defer observe("save_team", time.Now())
	row := teamRow{
		ID:           t.ID,
		Name:         t.Name,
		NameKey:      nameKey(t.Name),
		FullName:     t.FullName,
		PasswordHash: t.PasswordHash,
		Seq:          t.Seq,
		CreatedAt:    t.CreatedAt,
	}
	if err := j.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrTeamExists
		}
		return journalErr("save team", err)
	}
	return nil
}

func (j *GormJournal) SaveSubmission(ctx context.Context, s model.Submission) error {
	defer observe("save_submission", time.Now())
	row := submissionRow{
		ID:          s.ID,
		TeamID:      s.TeamID,
		Prompt:      s.Prompt,
		Response:    s.Response,
		Status:      string(s.Status),
		Epoch:       s.Epoch,
		SubmittedAt: s.SubmittedAt,
	}
	if err := j.db.WithContext(ctx).Create(&row).Error; err != nil {
		return journalErr("save submission", err)
	}
	return nil
}

// Commit writes status changes and new comparisons in one transaction.
func (j *GormJournal) Commit(ctx context.Context, change Change) error {
	if change.Empty() {
		return nil
	}
	defer observe("commit", time.Now())

	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, s := range change.Submissions {
			res := tx.Model(&submissionRow{}).Where("id = ?", s.ID).Updates(map[string]any{
				"status": string(s.Status),
				"epoch":  s.Epoch,
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("submission %s: %w", s.ID, gorm.ErrRecordNotFound)
			}
		}
		if len(change.Comparisons) == 0 {
			return nil
		}
		rows := make([]comparisonRow, 0, len(change.Comparisons))
		for _, c := range change.Comparisons {
			rows = append(rows, comparisonRow{
				ID:                 c.ID,
				JudgeID:            c.JudgeID,
				WinnerSubmissionID: c.WinnerSubmissionID,
				LoserSubmissionID:  c.LoserSubmissionID,
				WinnerTeamID:       c.WinnerTeamID,
				LoserTeamID:        c.LoserTeamID,
				ScoreDifference:    c.ScoreDifference,
				Seq:                c.Seq,
				RecordedAt:         c.RecordedAt,
			})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return journalErr("commit", err)
	}
	return nil
}

func (j *GormJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func observe(op string, start time.Time) {
	metrics.RecordJournalLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func journalErr(op string, err error) error {
	metrics.RecordJournalError()
	return fmt.Errorf("%w: %s: %w", ErrJournal, op, err)
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
