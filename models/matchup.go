package models

import "gorm.io/gorm"

// Matchup is a bookmaker grouping of 2 or 3 players competing head-to-head
// within one round of one tournament. Rows are created by odds ingestion and
// are read-only to the settlement core.
type Matchup struct {
	gorm.Model
	ID       uint   `gorm:"primaryKey"`
	EventID  int    `gorm:"index:matchup_event_round_idx"`
	RoundNum int    `gorm:"index:matchup_event_round_idx"`
	Type     string `gorm:"size:16"` // "2ball" or "3ball"

	Player1DgID int
	Player1Name string `gorm:"size:128"`
	Player1Odds *int
	Player2DgID int
	Player2Name string `gorm:"size:128"`
	Player2Odds *int
	Player3DgID *int
	Player3Name *string `gorm:"size:128"`
	Player3Odds *int

	// Always "lowest score wins this round; ties push" in the current product.
	SettlementCriteria string `gorm:"size:64;default:'lowest_round_score_wins'"`
}

// MatchupPlayer is one slot of a matchup.
type MatchupPlayer struct {
	Slot int
	DgID int
	Name string
	Odds *int
}

// Players returns the occupied slots in order. A 2-ball yields two entries.
// The third slot counts as occupied when either its player id or its name is
// set; rows older than the player-id backfill only carry names.
func (m Matchup) Players() []MatchupPlayer {
	players := []MatchupPlayer{
		{Slot: 1, DgID: m.Player1DgID, Name: m.Player1Name, Odds: m.Player1Odds},
		{Slot: 2, DgID: m.Player2DgID, Name: m.Player2Name, Odds: m.Player2Odds},
	}
	if m.Player3DgID != nil || m.Player3Name != nil {
		dgID := 0
		if m.Player3DgID != nil {
			dgID = *m.Player3DgID
		}
		name := ""
		if m.Player3Name != nil {
			name = *m.Player3Name
		}
		players = append(players, MatchupPlayer{Slot: 3, DgID: dgID, Name: name, Odds: m.Player3Odds})
	}
	return players
}
