package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/arena/internal/adapters/repository"
	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/auth"
	"github.com/okian/arena/internal/domain/recording"
	"github.com/okian/arena/internal/domain/verification"
	"github.com/okian/arena/pkg/metrics"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrRateLimited = errors.New("too many requests")
)

// NewKind tags kind with the operation that produced it.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind tags err with op and kind so both stay matchable with errors.Is.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// Wrap tags err with the operation that produced it.
func Wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// classify maps an error to its HTTP status and wire code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidSubmission):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, auth.ErrTeamExists):
		return http.StatusConflict, "conflict"
	case errors.Is(err, recording.ErrStaleMatch):
		return http.StatusBadRequest, "stale_match"
	case errors.Is(err, recording.ErrAlreadyRecorded):
		return http.StatusBadRequest, "already_recorded"
	case errors.Is(err, recording.ErrInvalidPairing):
		return http.StatusBadRequest, "invalid_pairing"
	case errors.Is(err, recording.ErrInvalidScore):
		return http.StatusBadRequest, "invalid_score"
	case errors.Is(err, verification.ErrInvalidState):
		return http.StatusBadRequest, "invalid_state"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fail writes err with the status its kind maps to. Internal errors are not
// echoed to the client.
func fail(w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	metrics.RecordDomainError(op, code)
	if status == http.StatusInternalServerError {
		err = nil
	}
	writeError(w, status, code, err)
}
