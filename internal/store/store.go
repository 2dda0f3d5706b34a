package store

import (
	"errors"
	"fmt"
	"time"

	"dca-trade-bot-go/internal/models"
	"gorm.io/gorm"
)

// ErrDataUnavailable is returned when the store cannot be reached or a query
// fails. Callers must not assume anything was read or written.
var ErrDataUnavailable = errors.New("persistence store unavailable")

// Store wraps the database with the operations the rest of the system needs.
type Store struct {
	db *gorm.DB
}

// New creates a Store over an already migrated database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ReadDailyHigh returns the daily-high row for an asset on the given day, or
// nil if no price has been observed yet that day.
func (s *Store) ReadDailyHigh(asset string, day time.Time) (*models.DailyHighPrice, error) {
	var high models.DailyHighPrice
	err := s.db.Where("asset = ? AND day = ?", asset, models.DayKey(day)).First(&high).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read daily high for %s: %w", asset, ErrDataUnavailable)
	}
	return &high, nil
}

// SaveDailyHigh creates or updates a daily-high row.
func (s *Store) SaveDailyHigh(high *models.DailyHighPrice) error {
	if err := s.db.Save(high).Error; err != nil {
		return fmt.Errorf("failed to save daily high for %s: %w", high.Asset, ErrDataUnavailable)
	}
	return nil
}

// AppendTrade writes a new trade record. Trade history is append-only.
func (s *Store) AppendTrade(trade *models.Trade) error {
	if err := s.db.Create(trade).Error; err != nil {
		return fmt.Errorf("failed to append trade for %s: %w", trade.Symbol, ErrDataUnavailable)
	}
	return nil
}

// Trades returns the full trade history, oldest first.
func (s *Store) Trades() ([]models.Trade, error) {
	var trades []models.Trade
	if err := s.db.Order("executed_at asc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", ErrDataUnavailable)
	}
	return trades, nil
}

// TradesBySymbol returns the trade history for one pair, oldest first.
func (s *Store) TradesBySymbol(symbol string) ([]models.Trade, error) {
	var trades []models.Trade
	if err := s.db.Where("symbol = ?", symbol).Order("executed_at asc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to load trades for %s: %w", symbol, ErrDataUnavailable)
	}
	return trades, nil
}

// PruneTradesBefore deletes trade records executed before the cutoff and
// returns how many rows were removed.
func (s *Store) PruneTradesBefore(cutoff time.Time) (int64, error) {
	result := s.db.Unscoped().Where("executed_at < ?", cutoff).Delete(&models.Trade{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune trades: %w", ErrDataUnavailable)
	}
	return result.RowsAffected, nil
}

// InsertBalances writes a batch of balance snapshot rows.
func (s *Store) InsertBalances(balances []models.PortfolioBalance) error {
	if len(balances) == 0 {
		return nil
	}
	if err := s.db.Create(&balances).Error; err != nil {
		return fmt.Errorf("failed to insert balances: %w", ErrDataUnavailable)
	}
	return nil
}

// InsertMarketEntries writes a batch of market-cap listing rows.
func (s *Store) InsertMarketEntries(entries []models.MarketCapEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.db.Create(&entries).Error; err != nil {
		return fmt.Errorf("failed to insert market entries: %w", ErrDataUnavailable)
	}
	return nil
}
