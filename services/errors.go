package services

import "errors"

// Sentinel errors shared across services and the HTTP mapping. They fall
// into five families: not-found, invalid-state, validation, conflict and
// forbidden; anything else bubbling out of a repository is a dependency
// failure.
var (
	// Not found
	ErrNotFound           = errors.New("requested resource not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrEntryNotFound      = errors.New("entry not found")
	ErrPhaseNotFound      = errors.New("phase not found")
	ErrUserNotFound       = errors.New("user not found")

	// Invalid state
	ErrDrawLocked              = errors.New("draw cannot be regenerated: a match is in progress or has a played result")
	ErrMatchNotInProgress      = errors.New("match is not in progress")
	ErrMatchAlreadyFinished    = errors.New("match is already finished")
	ErrMatchNotFinished        = errors.New("match is not finished")
	ErrMatchWinnerUndetermined = errors.New("match winner cannot be determined yet")
	ErrInvalidStatusTransition = errors.New("invalid match status transition")
	ErrTournamentNotActive     = errors.New("tournament is not active")

	// Validation
	ErrValidationFailed    = errors.New("validation failed")
	ErrNotEnoughEntries    = errors.New("not enough entries to generate a draw (minimum 2 required)")
	ErrInvalidPointType    = errors.New("unrecognized point type")
	ErrInvalidClientUUID   = errors.New("client uuid is not a valid uuid")
	ErrInvalidUmpirePolicy = errors.New("unknown umpire assignment policy")

	// Conflict
	ErrVersionConflict = errors.New("match version conflict: refetch current state and retry")
	ErrNoActivePoints  = errors.New("no active points to undo")

	// Authentication / authorization
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthEmailTaken         = errors.New("email is already taken")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")
)
