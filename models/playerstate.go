package models

// PlayerStatus is the terminal marker a results feed can attach to a player
// for the rest of an event.
type PlayerStatus string

const (
	PlayerStatusActive    PlayerStatus = ""
	PlayerStatusWithdrawn PlayerStatus = "wd"
	PlayerStatusCut       PlayerStatus = "cut"
	PlayerStatusFinished  PlayerStatus = "finished"
)

// PlayerRoundState is one player's live standing in a tournament as reported
// by the results feed. It is never persisted; the settlement core holds it
// only for the duration of one run.
type PlayerRoundState struct {
	DgID         int
	PlayerName   string
	CurrentRound int
	Thru         int // holes completed in the current round, 0-18
	Status       PlayerStatus

	// RoundScores holds stroke totals per completed round, keyed by round
	// number. A missing key means the feed reported no usable score.
	RoundScores map[int]int
}

// ScoreForRound returns the player's stroke total for the given round.
func (p PlayerRoundState) ScoreForRound(round int) (int, bool) {
	score, ok := p.RoundScores[round]
	return score, ok
}

func (p PlayerRoundState) Withdrawn() bool {
	return p.Status == PlayerStatusWithdrawn
}

// Terminal reports whether the player has any terminal marker for the event.
func (p PlayerRoundState) Terminal() bool {
	switch p.Status {
	case PlayerStatusWithdrawn, PlayerStatusCut, PlayerStatusFinished:
		return true
	}
	return false
}
