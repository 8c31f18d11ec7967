package services

import "errors"

// Sentinel errors shared across services. Repository sentinels are translated
// here so callers only ever match against this set.
var (
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrTournamentNotActive = errors.New("tournament is not accepting predictions or results")

	ErrMatchNotFound       = errors.New("match not found")
	ErrMatchAlreadyStarted = errors.New("match has already started")

	ErrAlreadyPredicted = errors.New("match is already predicted")

	ErrMatchSlotInvalid = errors.New("each side needs exactly one of team or winner-of reference")
	ErrWinnerOfUnknown  = errors.New("winner-of references an unknown match in this tournament")

	ErrParticipantNotFound = errors.New("participant not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrTeamNotFound        = errors.New("team not found")

	ErrBenchmarkNameRequired  = errors.New("benchmark name is required")
	ErrBenchmarkInvalidParams = errors.New("benchmark parameters do not match its algorithm")

	ErrMergeSportMismatch = errors.New("teams from different sports cannot be merged")
	ErrMergeNothingToDo   = errors.New("no secondary records to merge")
)
