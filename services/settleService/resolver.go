package settleService

import (
	"fmt"

	"github.com/greg-czaplicki/parlay-picker-sub005/models"
	"github.com/greg-czaplicki/parlay-picker-sub005/services/common"
)

// StateIndex looks up feed states by player id, with a normalized-name
// fallback for matchup rows that predate the player-id backfill.
type StateIndex struct {
	byID   map[int]models.PlayerRoundState
	byName map[string]models.PlayerRoundState
}

func NewStateIndex(states []models.PlayerRoundState) StateIndex {
	idx := StateIndex{
		byID:   make(map[int]models.PlayerRoundState, len(states)),
		byName: make(map[string]models.PlayerRoundState, len(states)),
	}
	for _, state := range states {
		if state.DgID != 0 {
			idx.byID[state.DgID] = state
		}
		if name := common.NormalizePlayerName(state.PlayerName); name != "" {
			idx.byName[name] = state
		}
	}
	return idx
}

func (idx StateIndex) Lookup(dgID int, name string) (models.PlayerRoundState, bool) {
	if state, ok := idx.byID[dgID]; ok && dgID != 0 {
		return state, true
	}
	state, ok := idx.byName[common.NormalizePlayerName(name)]
	return state, ok
}

// LegResolution is the graded outcome of one parlay pick plus the comparison
// that produced it.
type LegResolution struct {
	Outcome      models.PickOutcome
	Decisive     bool // true when round scores were actually compared
	PickedScore  *int
	BestOpponent *int
	Reason       string // set on non-decisive grades
}

func (r LegResolution) String() string {
	if r.Decisive && r.PickedScore != nil && r.BestOpponent != nil {
		return fmt.Sprintf("%s (%d vs %d)", r.Outcome, *r.PickedScore, *r.BestOpponent)
	}
	if r.Reason != "" {
		return fmt.Sprintf("%s: %s", r.Outcome, r.Reason)
	}
	return string(r.Outcome)
}

func voidResolution(reason string) LegResolution {
	return LegResolution{Outcome: models.PickOutcomeVoid, Reason: reason}
}

// ResolveLeg grades one pick of a round already judged complete. Lowest round
// score wins; ties push. Withdrawn players leave the comparison set, and a
// pick whose required score data is missing grades void rather than guessing.
// Pure: the same inputs always yield the same grade.
func ResolveLeg(pick models.ParlayPick, matchup models.Matchup, roundNum int, idx StateIndex) LegResolution {
	players := matchup.Players()

	pickedSlot := -1
	pickedName := common.NormalizePlayerName(pick.PickedName)
	for i, player := range players {
		if pick.PickedDgID != 0 && player.DgID == pick.PickedDgID {
			pickedSlot = i
			break
		}
		if pickedName != "" && common.NormalizePlayerName(player.Name) == pickedName {
			pickedSlot = i
			break
		}
	}
	if pickedSlot == -1 {
		return voidResolution("picked player not in matchup")
	}

	pickedState, pickedFound := idx.Lookup(players[pickedSlot].DgID, players[pickedSlot].Name)

	// Opponents who withdrew leave the comparison set but still occupy a slot.
	allOpponentsWithdrew := true
	var standing []models.PlayerRoundState
	for i, player := range players {
		if i == pickedSlot {
			continue
		}
		state, found := idx.Lookup(player.DgID, player.Name)
		if !found || !state.Withdrawn() {
			allOpponentsWithdrew = false
		}
		if found && !state.Withdrawn() {
			standing = append(standing, state)
		}
	}

	if allOpponentsWithdrew {
		if pickedFound && pickedState.Withdrawn() {
			return voidResolution("every player in the matchup withdrew")
		}
		// Default-win: the pick outlasted the field regardless of score.
		return LegResolution{Outcome: models.PickOutcomeWin, Reason: "all opponents withdrew"}
	}

	if pickedFound && pickedState.Withdrawn() {
		return LegResolution{Outcome: models.PickOutcomeLoss, Reason: "picked player withdrew"}
	}

	if !pickedFound {
		return voidResolution("picked player missing from feed")
	}
	pickedScore, ok := pickedState.ScoreForRound(roundNum)
	if !ok {
		return voidResolution("picked player has no score for the round")
	}

	bestOpponent := 0
	haveOpponentScore := false
	for _, state := range standing {
		score, ok := state.ScoreForRound(roundNum)
		if !ok {
			continue
		}
		if !haveOpponentScore || score < bestOpponent {
			bestOpponent = score
			haveOpponentScore = true
		}
	}
	if !haveOpponentScore {
		return voidResolution("no opponent has a score for the round")
	}

	resolution := LegResolution{
		Decisive:     true,
		PickedScore:  &pickedScore,
		BestOpponent: &bestOpponent,
	}
	switch {
	case pickedScore < bestOpponent:
		resolution.Outcome = models.PickOutcomeWin
	case pickedScore > bestOpponent:
		resolution.Outcome = models.PickOutcomeLoss
	default:
		resolution.Outcome = models.PickOutcomePush
	}
	return resolution
}
