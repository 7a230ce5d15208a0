package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SettlementStatus string

const (
	SettlementStatusPending SettlementStatus = "pending"
	SettlementStatusSettled SettlementStatus = "settled"
)

type PickOutcome string

const (
	PickOutcomeWin  PickOutcome = "win"
	PickOutcomeLoss PickOutcome = "loss"
	PickOutcomePush PickOutcome = "push"
	PickOutcomeVoid PickOutcome = "void"
)

type ParlayOutcome string

const (
	ParlayOutcomePending ParlayOutcome = "pending"
	ParlayOutcomeWon     ParlayOutcome = "won"
	ParlayOutcomeLost    ParlayOutcome = "lost"
	ParlayOutcomePush    ParlayOutcome = "push"
	ParlayOutcomeVoid    ParlayOutcome = "void"
)

// Terminal reports whether the outcome is final. A terminal parlay is never
// regraded.
func (o ParlayOutcome) Terminal() bool {
	switch o {
	case ParlayOutcomeWon, ParlayOutcomeLost, ParlayOutcomePush, ParlayOutcomeVoid:
		return true
	}
	return false
}

type Parlay struct {
	gorm.Model
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;index"`
	RoundNum int

	Stake           decimal.Decimal  `gorm:"type:decimal(12,2)"`
	TotalOdds       decimal.Decimal  `gorm:"type:decimal(10,4)"` // combined decimal multiplier at booking time
	PotentialPayout decimal.Decimal  `gorm:"type:decimal(12,2)"`
	ActualPayout    *decimal.Decimal `gorm:"type:decimal(12,2)"`

	// Outcome and IsSettled are derived from the legs; only the settlement
	// orchestrator writes them.
	Outcome   ParlayOutcome `gorm:"size:16;default:'pending'"`
	IsSettled bool          `gorm:"default:false;index"`
	SettledAt *time.Time

	Picks []ParlayPick `gorm:"foreignKey:ParlayID"`
}

func (p *Parlay) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ParlayPick is one leg of a parlay: a single matchup selection. It is the
// unit of settlement; once SettlementStatus is settled, PickOutcome is set and
// never changes again.
type ParlayPick struct {
	gorm.Model
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ParlayID  uuid.UUID `gorm:"type:uuid;index"`
	Parlay    Parlay    `gorm:"foreignKey:ParlayID"`
	MatchupID uint
	Matchup   Matchup `gorm:"foreignKey:MatchupID"`

	PickedDgID int
	PickedName string `gorm:"size:128"`
	PickedOdds *int // american odds at the time the pick was made

	SettlementStatus SettlementStatus `gorm:"size:16;default:'pending';index"`
	PickOutcome      *PickOutcome     `gorm:"size:8"`
	SettledAt        *time.Time
}

func (p *ParlayPick) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
