package models

import (
	"time"

	"gorm.io/gorm"
)

// Trade represents a completed trade record in the database.
// Rows are append-only; the engine never updates or deletes a trade
// within the retention window.
type Trade struct {
	gorm.Model
	OrderID         int64     `json:"order_id" gorm:"index"`
	ClientOrderID   string    `json:"client_order_id"`
	Symbol          string    `json:"symbol" gorm:"index"`
	Side            string    `json:"side"` // "BUY" or "SELL"
	Price           float64   `json:"price"`
	Quantity        float64   `json:"quantity"`
	QuoteQuantity   float64   `json:"quote_quantity"`
	Commission      float64   `json:"commission"`
	CommissionAsset string    `json:"commission_asset"`
	IsBuyer         bool      `json:"is_buyer"`
	IsSimulation    bool      `json:"is_simulation"`
	ExecutedAt      time.Time `json:"executed_at" gorm:"index"`
}
