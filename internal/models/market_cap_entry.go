package models

import (
	"time"

	"gorm.io/gorm"
)

// MarketCapEntry is one ranked listing from the market-data API, recorded
// together with whether the asset is spot-tradable on the exchange.
type MarketCapEntry struct {
	gorm.Model
	Rank               int       `json:"market_cap_rank"`
	Name               string    `json:"name"`
	Symbol             string    `json:"symbol" gorm:"index"`
	Price              float64   `json:"price"`
	PriceHigh24h       float64   `json:"price_high_24h"`
	PriceLow24h        float64   `json:"price_low_24h"`
	MarketCap          float64   `json:"market_cap"`
	AvailableOnBinance bool      `json:"is_available_on_binance"`
	Timestamp          time.Time `json:"timestamp" gorm:"index"`
}
