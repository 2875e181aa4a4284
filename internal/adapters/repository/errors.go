package repository

import (
	"errors"
	"fmt"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrTeamNotFound       = fmt.Errorf("team %w", ErrNotFound)
	ErrSubmissionNotFound = fmt.Errorf("submission %w", ErrNotFound)
	ErrComparisonNotFound = fmt.Errorf("comparison %w", ErrNotFound)

	ErrTeamExists          = errors.New("team name already taken")
	ErrDuplicateComparison = errors.New("comparison already recorded")
	ErrTeamNotLocked       = errors.New("team is not part of the transaction")
	ErrInvalidStatus       = errors.New("invalid submission status")
	ErrJournal             = errors.New("journal write failed")
	ErrUnknownDriver       = errors.New("unknown storage driver")
)
