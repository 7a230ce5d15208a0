package models

import (
	"time"

	"gorm.io/gorm"
)

// SettlementRun is the durable record of one settlement sweep, written by the
// trigger layer after the orchestrator returns its report.
type SettlementRun struct {
	gorm.Model
	ID      uint   `gorm:"primaryKey"`
	Trigger string `gorm:"size:16"` // "cron" or "manual"
	Scope   string `gorm:"size:64"` // "all" or "event:<id>"

	TournamentsChecked int
	RoundsProcessed    int
	RoundsSkipped      int
	LegsSettled        int
	LegsAlreadySettled int
	LegsPending        int
	LegsErrored        int
	ParlaysSettled     int
	ErrorCount         int

	StartedAt  time.Time
	FinishedAt time.Time
	DurationMs int64
}
