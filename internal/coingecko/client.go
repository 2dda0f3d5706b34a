package coingecko

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"dca-trade-bot-go/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// CoinGecko's public tier allows roughly 30 calls/minute; stay well under it.
const defaultRateLimit = rate.Limit(0.5)

// MarketEntry is one ranked listing from the /coins/markets endpoint.
type MarketEntry struct {
	ID          string  `json:"id"`
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	Rank        int     `json:"market_cap_rank"`
	Price       float64 `json:"current_price"`
	High24h     float64 `json:"high_24h"`
	Low24h      float64 `json:"low_24h"`
	MarketCap   float64 `json:"market_cap"`
	LastUpdated string  `json:"last_updated"`
}

// UpdatedAt parses the listing's last_updated timestamp, falling back to the
// current time when the field is malformed.
func (e *MarketEntry) UpdatedAt() time.Time {
	t, err := time.Parse(time.RFC3339, e.LastUpdated)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}

// ClientInterface defines the interface for the market-data client.
type ClientInterface interface {
	GetTopCryptocurrencies() ([]MarketEntry, error)
}

// Client fetches ranked market data from the CoinGecko API.
type Client struct {
	client   *resty.Client
	currency string
	perPage  int
	pages    int
	logger   *zap.Logger
	limiter  *rate.Limiter
}

var _ ClientInterface = (*Client)(nil)

// NewClient creates a new CoinGecko client.
func NewClient(cfg *config.CoinGecko, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)

	return &Client{
		client:   client,
		currency: cfg.Currency,
		perPage:  cfg.PerPage,
		pages:    cfg.Pages,
		logger:   logger,
		limiter:  rate.NewLimiter(defaultRateLimit, 1),
	}
}

// GetTopCryptocurrencies fetches the configured number of pages of listings
// ordered by market cap and validates that every entry carries the fields
// the rest of the pipeline depends on.
func (c *Client) GetTopCryptocurrencies() ([]MarketEntry, error) {
	var entries []MarketEntry
	for page := 1; page <= c.pages; page++ {
		pageEntries, err := c.fetchPage(page)
		if err != nil {
			return nil, err
		}
		entries = append(entries, pageEntries...)
	}

	for i := range entries {
		if err := validateEntry(&entries[i]); err != nil {
			return nil, fmt.Errorf("market data entry %d invalid: %w", i, err)
		}
	}

	c.logger.Info("Fetched market listings from CoinGecko", zap.Int("count", len(entries)))
	return entries, nil
}

func (c *Client) fetchPage(page int) ([]MarketEntry, error) {
	if err := c.limiter.Wait(context.Background()); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var entries []MarketEntry
	resp, err := c.client.R().
		SetResult(&entries).
		SetQueryParams(map[string]string{
			"vs_currency": c.currency,
			"order":       "market_cap_desc",
			"per_page":    strconv.Itoa(c.perPage),
			"page":        strconv.Itoa(page),
			"sparkline":   "false",
		}).
		Get("/coins/markets")
	if err != nil {
		return nil, fmt.Errorf("market data request failed for page %d: %w", page, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("market data request failed for page %d with status %s", page, resp.Status())
	}

	return entries, nil
}

func validateEntry(e *MarketEntry) error {
	if e.ID == "" || e.Symbol == "" || e.Name == "" {
		return fmt.Errorf("missing identity fields (id=%q symbol=%q)", e.ID, e.Symbol)
	}
	if e.Rank <= 0 {
		return fmt.Errorf("%s: missing market_cap_rank", e.ID)
	}
	if e.Price <= 0 {
		return fmt.Errorf("%s: missing current_price", e.ID)
	}
	return nil
}
