package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Binance   Binance   `mapstructure:"binance"`
	Vault     Vault     `mapstructure:"vault"`
	CoinGecko CoinGecko `mapstructure:"coingecko"`
	DCA       DCA       `mapstructure:"dca"`
	Notifier  Notifier  `mapstructure:"notifier"`
	Logger    Logger    `mapstructure:"logger"`
	Database  Database  `mapstructure:"database"`
}

// Binance holds the configuration for the Binance API.
type Binance struct {
	ApiKey         string  `mapstructure:"apiKey"`
	SecretKey      string  `mapstructure:"secretKey"`
	Testnet        bool    `mapstructure:"testnet"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Vault holds the configuration for the secrets provider.
type Vault struct {
	Provider   string `mapstructure:"provider"` // "env" or "keyvault"
	URL        string `mapstructure:"url"`
	APIVersion string `mapstructure:"api_version"`
	Token      string `mapstructure:"token"`
}

// CoinGecko holds the configuration for the market-data API.
type CoinGecko struct {
	BaseURL  string `mapstructure:"base_url"`
	Currency string `mapstructure:"currency"`
	PerPage  int    `mapstructure:"per_page"`
	Pages    int    `mapstructure:"pages"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// DCA holds the configuration for the buy strategy. DropThreshold and
// MinTradeAmount act as defaults for assets that do not override them.
type DCA struct {
	QuoteAsset     string  `mapstructure:"quote_asset"`
	DropThreshold  float64 `mapstructure:"drop_threshold"`
	MinTradeAmount float64 `mapstructure:"min_trade_amount"`
	DryRun         bool    `mapstructure:"dry_run"`
	TickInterval   int     `mapstructure:"tick_interval"`
	Assets         []Asset `mapstructure:"assets"`
}

// Asset is one configured asset entry in the dca section.
type Asset struct {
	Symbol         string  `mapstructure:"symbol"`
	BuyAmount      float64 `mapstructure:"buy_amount"`
	DropThreshold  float64 `mapstructure:"drop_threshold"`
	MinTradeAmount float64 `mapstructure:"min_trade_amount"`
}

// AssetStrategy is the fully resolved per-asset strategy: every field is
// populated, either from the asset entry or from the dca-level defaults.
// Resolved once at startup, immutable during a run.
type AssetStrategy struct {
	Symbol         string
	QuoteAsset     string
	BuyAmount      float64
	DropThreshold  float64
	MinTradeAmount float64
}

// Pair returns the trading pair symbol, e.g. "BTCUSDC".
func (s AssetStrategy) Pair() string {
	return s.Symbol + s.QuoteAsset
}

// Notifier holds the configuration for email notifications.
type Notifier struct {
	SMTPHost            string  `mapstructure:"smtp_host"`
	SMTPPort            int     `mapstructure:"smtp_port"`
	Sender              string  `mapstructure:"sender"`
	Password            string  `mapstructure:"password"`
	Recipient           string  `mapstructure:"recipient"`
	LowBalanceThreshold float64 `mapstructure:"low_balance_threshold"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("binance.rate_limit", 20)      // requests per second
	viper.SetDefault("binance.rate_limit_burst", 5) // burst size
	viper.SetDefault("vault.provider", "env")
	viper.SetDefault("vault.api_version", "7.4")
	viper.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	viper.SetDefault("coingecko.currency", "usd")
	viper.SetDefault("coingecko.per_page", 50)
	viper.SetDefault("coingecko.pages", 2)
	viper.SetDefault("dca.quote_asset", "USDC")
	viper.SetDefault("dca.min_trade_amount", 15.0)
	viper.SetDefault("dca.tick_interval", 3600)
	viper.SetDefault("notifier.smtp_host", "smtp.gmail.com")
	viper.SetDefault("notifier.smtp_port", 587)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}

// Strategies resolves the configured assets into per-asset strategies,
// applying dca-level defaults and validating each entry.
func (c *Config) Strategies() ([]AssetStrategy, error) {
	if len(c.DCA.Assets) == 0 {
		return nil, fmt.Errorf("no assets configured in dca.assets")
	}

	strategies := make([]AssetStrategy, 0, len(c.DCA.Assets))
	for _, a := range c.DCA.Assets {
		s := AssetStrategy{
			Symbol:         a.Symbol,
			QuoteAsset:     c.DCA.QuoteAsset,
			BuyAmount:      a.BuyAmount,
			DropThreshold:  a.DropThreshold,
			MinTradeAmount: a.MinTradeAmount,
		}
		if s.DropThreshold == 0 {
			s.DropThreshold = c.DCA.DropThreshold
		}
		if s.MinTradeAmount == 0 {
			s.MinTradeAmount = c.DCA.MinTradeAmount
		}

		if s.Symbol == "" {
			return nil, fmt.Errorf("asset entry is missing a symbol")
		}
		if s.DropThreshold <= 0 || s.DropThreshold > 1 {
			return nil, fmt.Errorf("asset %s: drop_threshold %.4f must be in (0, 1]", s.Symbol, s.DropThreshold)
		}
		if s.BuyAmount <= 0 {
			return nil, fmt.Errorf("asset %s: buy_amount must be positive", s.Symbol)
		}

		strategies = append(strategies, s)
	}

	return strategies, nil
}
