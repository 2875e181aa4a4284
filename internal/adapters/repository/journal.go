package repository

import (
	"context"

	"github.com/okian/arena/internal/domain/model"
)

// Storage drivers understood by OpenJournal.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// State is everything a journal has persisted, in replay order.
type State struct {
	Teams       []model.Team
	Submissions []model.Submission
	Comparisons []model.Comparison
}

// Change is the set of writes produced by one Store.Update.
type Change struct {
	Submissions []model.Submission
	Comparisons []model.Comparison
}

// Empty reports whether the change carries no writes.
func (c Change) Empty() bool {
	return len(c.Submissions) == 0 && len(c.Comparisons) == 0
}

// Journal persists store writes. The in-memory store is authoritative while
// running; the journal is replayed into it on start.
type Journal interface {
	Load(ctx context.Context) (State, error)
	SaveTeam(ctx context.Context, team model.Team) error
	SaveSubmission(ctx context.Context, sub model.Submission) error
	// Commit persists a change atomically.
	Commit(ctx context.Context, change Change) error
	// Close releases the backing database. Stores never call it; whoever
	// opened the journal closes it.
	Close() error
}

// NopJournal keeps nothing. It backs the memory driver.
type NopJournal struct{}

func (NopJournal) Load(context.Context) (State, error)                    { return State{}, nil }
func (NopJournal) SaveTeam(context.Context, model.Team) error             { return nil }
func (NopJournal) SaveSubmission(context.Context, model.Submission) error { return nil }
func (NopJournal) Commit(context.Context, Change) error                   { return nil }
func (NopJournal) Close() error                                           { return nil }
