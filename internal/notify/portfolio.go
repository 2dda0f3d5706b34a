package notify

import (
	"fmt"
	"sort"
	"strings"

	"dca-trade-bot-go/internal/binance"
	"dca-trade-bot-go/internal/models"
	"dca-trade-bot-go/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AssetPosition is the aggregated view of one traded pair: what was spent on
// it, what is still held, and what that holding is worth now.
type AssetPosition struct {
	Symbol       string
	TotalSpend   decimal.Decimal
	AveragePrice decimal.Decimal
	Quantity     decimal.Decimal
	CurrentValue decimal.Decimal
	Change       decimal.Decimal
	ChangePct    decimal.Decimal
}

// PortfolioSummary is the portfolio-wide rollup of all positions.
type PortfolioSummary struct {
	TotalSpend   decimal.Decimal
	CurrentValue decimal.Decimal
	Change       decimal.Decimal
	ChangePct    decimal.Decimal
}

// PortfolioReporter builds and emails a performance report from the recorded
// trade history and current exchange prices.
type PortfolioReporter struct {
	store  *store.Store
	client binance.RestClientInterface
	sender Sender
	logger *zap.Logger
}

// NewPortfolioReporter creates a PortfolioReporter.
func NewPortfolioReporter(st *store.Store, client binance.RestClientInterface, sender Sender, logger *zap.Logger) *PortfolioReporter {
	return &PortfolioReporter{
		store:  st,
		client: client,
		sender: sender,
		logger: logger,
	}
}

// GenerateAndSend builds the report and emails it. With no recorded trades
// there is nothing to report and an error is returned instead of an empty
// email.
func (r *PortfolioReporter) GenerateAndSend(recipient string) error {
	trades, err := r.store.Trades()
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		return fmt.Errorf("no trades recorded, nothing to report")
	}

	positions := AggregateTrades(trades)

	prices, err := r.client.GetAllTickerPrices()
	if err != nil {
		return fmt.Errorf("could not fetch current prices for report: %w", err)
	}
	priceOf := func(symbol string) (decimal.Decimal, bool) {
		s, ok := prices[symbol]
		if !ok {
			return decimal.Zero, false
		}
		p, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return p, true
	}

	for i := range positions {
		price, ok := priceOf(positions[i].Symbol)
		if !ok {
			r.logger.Warn("No current price for position, valuing at zero",
				zap.String("symbol", positions[i].Symbol))
		}
		valuePosition(&positions[i], price)
	}

	summary := Summarize(positions)
	body := renderReport(positions, summary)

	if err := r.sender.Send(recipient, "Your DCA Portfolio Report", body); err != nil {
		return err
	}

	r.logger.Info("Portfolio report sent", zap.String("recipient", recipient))
	return nil
}

// AggregateTrades folds the trade history into per-symbol positions:
// spend and quantity from buys, quantity reduced by sells.
func AggregateTrades(trades []models.Trade) []AssetPosition {
	type totals struct {
		spend  decimal.Decimal
		bought decimal.Decimal
		sold   decimal.Decimal
	}

	bySymbol := make(map[string]*totals)
	for _, t := range trades {
		agg, ok := bySymbol[t.Symbol]
		if !ok {
			agg = &totals{}
			bySymbol[t.Symbol] = agg
		}

		qty := decimal.NewFromFloat(t.Quantity)
		if t.IsBuyer {
			agg.spend = agg.spend.Add(decimal.NewFromFloat(t.QuoteQuantity))
			agg.bought = agg.bought.Add(qty)
		} else {
			agg.sold = agg.sold.Add(qty)
		}
	}

	positions := make([]AssetPosition, 0, len(bySymbol))
	for symbol, agg := range bySymbol {
		pos := AssetPosition{
			Symbol:     symbol,
			TotalSpend: agg.spend,
			Quantity:   agg.bought.Sub(agg.sold),
		}
		if agg.bought.IsPositive() {
			pos.AveragePrice = agg.spend.DivRound(agg.bought, 8)
		}
		positions = append(positions, pos)
	}

	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return positions
}

// valuePosition prices a position and fills in its change figures.
func valuePosition(pos *AssetPosition, currentPrice decimal.Decimal) {
	pos.CurrentValue = pos.Quantity.Mul(currentPrice)
	pos.Change = pos.CurrentValue.Sub(pos.TotalSpend)
	if pos.TotalSpend.IsPositive() {
		pos.ChangePct = pos.Change.DivRound(pos.TotalSpend, 6).Mul(decimal.NewFromInt(100))
	}
}

// Summarize rolls positions up into a portfolio-wide summary.
func Summarize(positions []AssetPosition) PortfolioSummary {
	var summary PortfolioSummary
	for _, pos := range positions {
		summary.TotalSpend = summary.TotalSpend.Add(pos.TotalSpend)
		summary.CurrentValue = summary.CurrentValue.Add(pos.CurrentValue)
	}
	summary.Change = summary.CurrentValue.Sub(summary.TotalSpend)
	if summary.TotalSpend.IsPositive() {
		summary.ChangePct = summary.Change.DivRound(summary.TotalSpend, 6).Mul(decimal.NewFromInt(100))
	}
	return summary
}

func renderReport(positions []AssetPosition, summary PortfolioSummary) string {
	var b strings.Builder

	b.WriteString("Portfolio summary\n\n")
	b.WriteString(fmt.Sprintf("Total spend:    $%s\n", summary.TotalSpend.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Current value:  $%s\n", summary.CurrentValue.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Value change:   $%s (%s%%)\n\n", summary.Change.StringFixed(2), summary.ChangePct.StringFixed(2)))

	b.WriteString("Asset breakdown\n")
	b.WriteString("Symbol        | Value      | Spend      | Change     | % Change\n")
	b.WriteString("---------------------------------------------------------------\n")
	for _, pos := range positions {
		b.WriteString(fmt.Sprintf("%-13s | $%-9s | $%-9s | $%-9s | %s%%\n",
			pos.Symbol,
			pos.CurrentValue.StringFixed(2),
			pos.TotalSpend.StringFixed(2),
			pos.Change.StringFixed(2),
			pos.ChangePct.StringFixed(2)))
	}

	return b.String()
}
