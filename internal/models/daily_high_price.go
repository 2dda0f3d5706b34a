package models

import (
	"time"

	"gorm.io/gorm"
)

// DayFormat is the layout used for the Day column. Days are UTC calendar days.
const DayFormat = "2006-01-02"

// DailyHighPrice tracks the highest price observed for an asset within one
// UTC calendar day. The high is monotonically non-decreasing within a day;
// a new day gets a new row.
type DailyHighPrice struct {
	gorm.Model
	Asset      string    `json:"asset" gorm:"uniqueIndex:idx_asset_day"`
	Day        string    `json:"day" gorm:"uniqueIndex:idx_asset_day"`
	HighPrice  float64   `json:"high_price"`
	ObservedAt time.Time `json:"observed_at"`
}

// DayKey returns the Day column value for a given point in time.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayFormat)
}
