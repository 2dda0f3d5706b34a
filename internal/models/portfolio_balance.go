package models

import (
	"time"

	"gorm.io/gorm"
)

// PortfolioBalance is a point-in-time snapshot of a single wallet balance.
type PortfolioBalance struct {
	gorm.Model
	Asset      string    `json:"asset" gorm:"index"`
	Free       float64   `json:"free"`
	Locked     float64   `json:"locked"`
	SnapshotAt time.Time `json:"snapshot_at" gorm:"index"`
}
