package verification

import "errors"

// ErrInvalidState is returned when unverifying a submission that is not verified.
var ErrInvalidState = errors.New("submission is not verified")
