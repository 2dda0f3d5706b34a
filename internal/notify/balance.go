package notify

import (
	"fmt"
	"strconv"

	"dca-trade-bot-go/internal/binance"
	"go.uber.org/zap"
)

// BalanceWatcher alerts the user when the wallet's quote-currency balance
// drops below the amount the strategy needs to keep buying.
type BalanceWatcher struct {
	client     binance.RestClientInterface
	sender     Sender
	logger     *zap.Logger
	quoteAsset string
}

// NewBalanceWatcher creates a BalanceWatcher for the given quote asset.
func NewBalanceWatcher(client binance.RestClientInterface, sender Sender, quoteAsset string, logger *zap.Logger) *BalanceWatcher {
	return &BalanceWatcher{
		client:     client,
		sender:     sender,
		logger:     logger,
		quoteAsset: quoteAsset,
	}
}

// CheckAndNotify compares the total (free + locked) quote balance against the
// required amount and emails an alert when it falls short. It reports whether
// an alert was sent.
func (w *BalanceWatcher) CheckAndNotify(recipient string, required float64) (bool, error) {
	account, err := w.client.GetAccount()
	if err != nil {
		return false, fmt.Errorf("could not fetch account for balance check: %w", err)
	}

	total := totalBalance(account, w.quoteAsset)
	if total >= required {
		w.logger.Info("Balance sufficient",
			zap.String("asset", w.quoteAsset),
			zap.Float64("total", total),
			zap.Float64("required", required))
		return false, nil
	}

	body := fmt.Sprintf(
		"Your %s wallet balance is below the amount required for automated DCA trading.\n\n"+
			"Required balance: $%.2f\nCurrent balance:  $%.2f\n\n"+
			"Top up your wallet to keep the strategy running.\n",
		w.quoteAsset, required, total)

	if err := w.sender.Send(recipient, fmt.Sprintf("Low %s Balance Alert", w.quoteAsset), body); err != nil {
		return false, err
	}

	w.logger.Info("Sent low balance alert",
		zap.String("recipient", recipient),
		zap.Float64("total", total))
	return true, nil
}

// totalBalance sums free and locked amounts for one asset.
func totalBalance(account *binance.AccountResponse, asset string) float64 {
	for _, b := range account.Balances {
		if b.Asset != asset {
			continue
		}
		free, _ := strconv.ParseFloat(b.Free, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		return free + locked
	}
	return 0
}
