package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testConfigYAML = `
binance:
  apiKey: "test-key"
  secretKey: "test-secret"
  testnet: true
vault:
  provider: "keyvault"
  url: "https://example.vault.azure.net"
  token: "vault-token"
dca:
  quote_asset: "USDC"
  drop_threshold: 0.05
  dry_run: true
  assets:
    - symbol: "BTC"
      buy_amount: 20
    - symbol: "ETH"
      buy_amount: 25
      drop_threshold: 0.08
      min_trade_amount: 10
notifier:
  sender: "bot@example.com"
  recipient: "user@example.com"
  low_balance_threshold: 100
logger:
  level: "debug"
  format: "console"
database:
  dsn: "trades.db"
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(testConfigYAML), 0o644)
	assert.NoError(t, err)

	cfg, err := LoadConfig(dir)
	assert.NoError(t, err)

	assert.Equal(t, "test-key", cfg.Binance.ApiKey)
	assert.True(t, cfg.Binance.Testnet)
	assert.Equal(t, "keyvault", cfg.Vault.Provider)
	assert.Equal(t, "https://example.vault.azure.net", cfg.Vault.URL)
	assert.Equal(t, "USDC", cfg.DCA.QuoteAsset)
	assert.Equal(t, 0.05, cfg.DCA.DropThreshold)
	assert.True(t, cfg.DCA.DryRun)
	assert.Len(t, cfg.DCA.Assets, 2)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "trades.db", cfg.Database.DSN)

	// Values absent from the file come from defaults.
	assert.Equal(t, 20.0, cfg.Binance.RateLimit)
	assert.Equal(t, 5, cfg.Binance.RateLimitBurst)
	assert.Equal(t, "7.4", cfg.Vault.APIVersion)
	assert.Equal(t, "https://api.coingecko.com/api/v3", cfg.CoinGecko.BaseURL)
	assert.Equal(t, 50, cfg.CoinGecko.PerPage)
	assert.Equal(t, 2, cfg.CoinGecko.Pages)
	assert.Equal(t, 15.0, cfg.DCA.MinTradeAmount)
	assert.Equal(t, 3600, cfg.DCA.TickInterval)
	assert.Equal(t, "smtp.gmail.com", cfg.Notifier.SMTPHost)
	assert.Equal(t, 587, cfg.Notifier.SMTPPort)

	// Per-asset overrides and their absence.
	strategies, err := cfg.Strategies()
	assert.NoError(t, err)
	assert.Len(t, strategies, 2)

	btc := strategies[0]
	assert.Equal(t, "BTC", btc.Symbol)
	assert.Equal(t, "BTCUSDC", btc.Pair())
	assert.Equal(t, 20.0, btc.BuyAmount)
	assert.Equal(t, 0.05, btc.DropThreshold)
	assert.Equal(t, 15.0, btc.MinTradeAmount)

	eth := strategies[1]
	assert.Equal(t, 0.08, eth.DropThreshold)
	assert.Equal(t, 10.0, eth.MinTradeAmount)
}

func TestStrategies_NoAssets(t *testing.T) {
	cfg := Config{}
	_, err := cfg.Strategies()
	assert.ErrorContains(t, err, "no assets configured")
}

func TestStrategies_Validation(t *testing.T) {
	base := func(asset Asset) Config {
		return Config{DCA: DCA{
			QuoteAsset:     "USDC",
			DropThreshold:  0.05,
			MinTradeAmount: 15,
			Assets:         []Asset{asset},
		}}
	}

	tests := []struct {
		name    string
		asset   Asset
		wantErr string
	}{
		{"missing symbol", Asset{BuyAmount: 20}, "missing a symbol"},
		{"threshold above one", Asset{Symbol: "BTC", BuyAmount: 20, DropThreshold: 1.5}, "must be in (0, 1]"},
		{"zero buy amount", Asset{Symbol: "BTC"}, "buy_amount must be positive"},
		{"negative buy amount", Asset{Symbol: "BTC", BuyAmount: -5}, "buy_amount must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(tt.asset)
			_, err := cfg.Strategies()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestStrategies_ThresholdOfExactlyOneIsAccepted(t *testing.T) {
	cfg := Config{DCA: DCA{
		QuoteAsset: "USDC",
		Assets:     []Asset{{Symbol: "BTC", BuyAmount: 20, DropThreshold: 1, MinTradeAmount: 15}},
	}}

	strategies, err := cfg.Strategies()
	assert.NoError(t, err)
	assert.Equal(t, 1.0, strategies[0].DropThreshold)
}
