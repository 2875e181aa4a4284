package recording

import (
	"errors"
	"fmt"

	"github.com/okian/arena/internal/adapters/repository"
)

// Sentinel kinds for vote recording errors.
var (
	ErrMatchNotFound   = fmt.Errorf("match %w", repository.ErrNotFound)
	ErrAlreadyRecorded = errors.New("comparison already recorded")
	ErrInvalidPairing  = errors.New("winner and loser must be the two sides of the match")
	ErrInvalidScore    = errors.New("invalid score difference")
	ErrStaleMatch      = errors.New("match is stale: a side is no longer verified")
)
