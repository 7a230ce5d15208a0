package settleService

import (
	"fmt"
	"math"

	"github.com/greg-czaplicki/parlay-picker-sub005/models"
)

// DefaultCompletionThreshold is the share of the field that must be done with
// a round before it is graded. The tolerance keeps withdrawals and no-shows
// from blocking settlement forever.
const DefaultCompletionThreshold = 0.8

// CompletionPolicy decides when a round is done enough to grade.
type CompletionPolicy struct {
	Threshold float64
}

func DefaultCompletionPolicy() CompletionPolicy {
	return CompletionPolicy{Threshold: DefaultCompletionThreshold}
}

// RoundCompletion reports how far a round has progressed.
type RoundCompletion struct {
	Complete         bool `json:"complete"`
	CompletedPlayers int  `json:"completed_players"`
	TotalPlayers     int  `json:"total_players"`
}

// IsRoundComplete counts players who are done with roundNum and applies the
// completion threshold, with a floor of one required completion. An empty
// state list errors with ErrNoPlayerData so callers can tell "feed has
// nothing" apart from "round not started".
func (p CompletionPolicy) IsRoundComplete(states []models.PlayerRoundState, roundNum int) (RoundCompletion, error) {
	if len(states) == 0 {
		return RoundCompletion{}, fmt.Errorf("checking round %d: %w", roundNum, ErrNoPlayerData)
	}

	completed := 0
	for _, state := range states {
		if playerDoneWithRound(state, roundNum) {
			completed++
		}
	}

	required := int(math.Ceil(float64(len(states)) * p.Threshold))
	if required < 1 {
		required = 1
	}

	return RoundCompletion{
		Complete:         completed >= required,
		CompletedPlayers: completed,
		TotalPlayers:     len(states),
	}, nil
}

// playerDoneWithRound reports whether a single player has no strokes left to
// play in the given round.
func playerDoneWithRound(state models.PlayerRoundState, roundNum int) bool {
	if state.Terminal() {
		return true
	}
	if state.CurrentRound > roundNum {
		return true
	}
	return state.CurrentRound == roundNum && state.Thru >= 18
}
