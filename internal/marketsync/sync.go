package marketsync

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dca-trade-bot-go/internal/binance"
	"dca-trade-bot-go/internal/coingecko"
	"dca-trade-bot-go/internal/models"
	"dca-trade-bot-go/internal/store"
	"go.uber.org/zap"
)

// Syncer snapshots external market and account state into the store: the top
// market-cap listings (flagged with exchange availability) and the wallet's
// non-zero balances.
type Syncer struct {
	client     binance.RestClientInterface
	marketData coingecko.ClientInterface
	store      *store.Store
	logger     *zap.Logger
	quoteAsset string
	now        func() time.Time
}

// NewSyncer creates a Syncer. Availability is judged against spot pairs
// quoted in quoteAsset.
func NewSyncer(client binance.RestClientInterface, marketData coingecko.ClientInterface, st *store.Store, quoteAsset string, logger *zap.Logger) *Syncer {
	return &Syncer{
		client:     client,
		marketData: marketData,
		store:      st,
		logger:     logger,
		quoteAsset: quoteAsset,
		now:        time.Now,
	}
}

// SyncMarketData fetches the ranked listings, marks which assets have a
// tradable spot pair on the exchange, and records the batch.
func (s *Syncer) SyncMarketData() (int, error) {
	listings, err := s.marketData.GetTopCryptocurrencies()
	if err != nil {
		return 0, fmt.Errorf("could not fetch market listings: %w", err)
	}

	info, err := s.client.GetExchangeInfo()
	if err != nil {
		return 0, fmt.Errorf("could not fetch exchange info: %w", err)
	}
	tradable := tradableBaseAssets(info, s.quoteAsset)

	entries := make([]models.MarketCapEntry, 0, len(listings))
	for _, l := range listings {
		entries = append(entries, models.MarketCapEntry{
			Rank:               l.Rank,
			Name:               l.Name,
			Symbol:             l.Symbol,
			Price:              l.Price,
			PriceHigh24h:       l.High24h,
			PriceLow24h:        l.Low24h,
			MarketCap:          l.MarketCap,
			AvailableOnBinance: tradable[strings.ToLower(l.Symbol)],
			Timestamp:          l.UpdatedAt(),
		})
	}

	if err := s.store.InsertMarketEntries(entries); err != nil {
		return 0, err
	}

	s.logger.Info("Recorded market listings", zap.Int("count", len(entries)))
	return len(entries), nil
}

// SyncBalances snapshots every non-zero wallet balance into the store.
func (s *Syncer) SyncBalances() (int, error) {
	account, err := s.client.GetAccount()
	if err != nil {
		return 0, fmt.Errorf("could not fetch account: %w", err)
	}

	snapshotAt := s.now()
	var balances []models.PortfolioBalance
	for _, b := range account.Balances {
		free, _ := strconv.ParseFloat(b.Free, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		if free == 0 && locked == 0 {
			continue
		}
		balances = append(balances, models.PortfolioBalance{
			Asset:      b.Asset,
			Free:       free,
			Locked:     locked,
			SnapshotAt: snapshotAt,
		})
	}

	if len(balances) == 0 {
		s.logger.Info("No non-zero balances to record")
		return 0, nil
	}

	if err := s.store.InsertBalances(balances); err != nil {
		return 0, err
	}

	s.logger.Info("Recorded balance snapshot", zap.Int("count", len(balances)))
	return len(balances), nil
}

// tradableBaseAssets collects the lower-cased base assets of all spot pairs
// quoted in quoteAsset.
func tradableBaseAssets(info *binance.ExchangeInfoResponse, quoteAsset string) map[string]bool {
	tradable := make(map[string]bool)
	for _, sym := range info.Symbols {
		if sym.QuoteAsset == quoteAsset && sym.IsSpotTradingAllowed {
			tradable[strings.ToLower(sym.BaseAsset)] = true
		}
	}
	return tradable
}
