package settleService

import "errors"

// Sentinel errors for the settlement pipeline. Call sites wrap them with
// context via fmt.Errorf and callers detect them with errors.Is.
var (
	// ErrNoPlayerData marks a tournament the results feed knows nothing
	// about, distinct from a round that has not started.
	ErrNoPlayerData = errors.New("results feed returned no players for event")

	// ErrMissingMatchup marks a pending leg whose matchup row is gone.
	ErrMissingMatchup = errors.New("parlay pick references a missing matchup")

	// ErrMissingParlay marks a pending leg whose parent parlay row is gone.
	ErrMissingParlay = errors.New("parlay pick references a missing parlay")

	// ErrInvalidRound marks a leg whose parlay round number falls outside
	// the rounds a tournament can have.
	ErrInvalidRound = errors.New("parlay round number outside tournament rounds")
)
