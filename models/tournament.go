package models

import (
	"time"

	"gorm.io/gorm"
)

type Tournament struct {
	gorm.Model
	ID        uint   `gorm:"primaryKey"`
	EventID   int    `gorm:"uniqueIndex"`
	Name      string `gorm:"size:255"`
	Tour      string `gorm:"size:32"`
	StartDate *time.Time
	EndDate   *time.Time
}
