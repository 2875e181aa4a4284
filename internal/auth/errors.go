package auth

import "errors"

// Sentinel kinds for authentication errors.
var (
	ErrUnauthorized       = errors.New("missing or invalid credentials")
	ErrInvalidCredentials = errors.New("incorrect team name or password")
	ErrTeamExists         = errors.New("team name already registered")
	ErrInvalidInput       = errors.New("invalid registration")
)
