package dca

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"dca-trade-bot-go/internal/binance"
	"dca-trade-bot-go/internal/config"
	"dca-trade-bot-go/internal/models"
	"dca-trade-bot-go/internal/store"
	"go.uber.org/zap"
)

// Engine runs the dollar-cost-averaging buy strategy: once per cycle it
// evaluates every configured asset against its tracked daily high and fires
// market buys for those that dropped far enough.
type Engine struct {
	logger     *zap.Logger
	cfg        *config.Config
	strategies []config.AssetStrategy
	client     binance.RestClientInterface
	store      *store.Store
	now        func() time.Time
}

// NewEngine creates a new strategy engine. Strategies are resolved once here
// and stay immutable for the lifetime of the engine.
func NewEngine(logger *zap.Logger, cfg *config.Config, client binance.RestClientInterface, st *store.Store) (*Engine, error) {
	strategies, err := cfg.Strategies()
	if err != nil {
		return nil, fmt.Errorf("could not resolve asset strategies: %w", err)
	}

	return &Engine{
		logger:     logger,
		cfg:        cfg,
		strategies: strategies,
		client:     client,
		store:      st,
		now:        time.Now,
	}, nil
}

// Run starts the engine's tick loop and blocks until the context is
// cancelled. Cycles run one at a time; a slow cycle delays the next tick
// rather than overlapping it.
func (e *Engine) Run(ctx context.Context) {
	interval := time.Duration(e.cfg.DCA.TickInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Starting strategy loop",
		zap.Duration("interval", interval),
		zap.Int("assets", len(e.strategies)),
		zap.Bool("dry_run", e.cfg.DCA.DryRun))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping strategy engine...")
			return
		case <-ticker.C:
			if err := e.RunCycle(); err != nil {
				e.logger.Error("Strategy cycle failed", zap.Error(err))
			}
		}
	}
}

// RunCycle evaluates every configured asset once. A failing asset is logged
// and skipped; it does not abort the remaining assets. The returned error
// reports how many assets failed, if any.
func (e *Engine) RunCycle() error {
	e.logger.Info("Starting strategy cycle")

	failed := 0
	for _, strategy := range e.strategies {
		l := e.logger.With(zap.String("asset", strategy.Symbol))

		decision, err := e.EvaluateAsset(strategy)
		if err != nil {
			l.Error("Evaluation failed", zap.Error(err))
			failed++
			continue
		}

		trade, err := e.ExecuteIfTriggered(decision)
		if err != nil {
			l.Error("Execution failed", zap.Error(err))
			failed++
			continue
		}

		if trade != nil {
			l.Info("Buy executed",
				zap.Float64("price", trade.Price),
				zap.Float64("quantity", trade.Quantity),
				zap.Float64("quote_quantity", trade.QuoteQuantity),
				zap.Bool("simulated", trade.IsSimulation))
		} else {
			l.Info("No buy this cycle",
				zap.String("reason", string(decision.Reason)),
				zap.Float64("drop", decision.Drop))
		}
	}

	e.logger.Info("Strategy cycle complete")
	if failed > 0 {
		return fmt.Errorf("%d of %d assets failed this cycle", failed, len(e.strategies))
	}
	return nil
}

// UpdateDailyHigh records an observed price against the asset's daily high
// for the observation's UTC calendar day. The first observation of a day
// creates the row; later observations only ever raise the stored high. The
// returned row reflects the final state whether or not a write happened.
//
// The read-modify-write is not transactional: concurrent updates for the
// same asset can lose an intermediate high. Cycles run assets sequentially,
// so this only matters if multiple processes share one database.
func (e *Engine) UpdateDailyHigh(asset string, observedPrice float64, observedAt time.Time) (*models.DailyHighPrice, error) {
	if asset == "" {
		return nil, fmt.Errorf("empty asset symbol: %w", ErrInvalidInput)
	}
	if observedPrice <= 0 {
		return nil, fmt.Errorf("observed price %f must be positive: %w", observedPrice, ErrInvalidInput)
	}

	high, err := e.store.ReadDailyHigh(asset, observedAt)
	if err != nil {
		return nil, err
	}

	if high == nil {
		high = &models.DailyHighPrice{
			Asset:      asset,
			Day:        models.DayKey(observedAt),
			HighPrice:  observedPrice,
			ObservedAt: observedAt,
		}
		if err := e.store.SaveDailyHigh(high); err != nil {
			return nil, err
		}
		e.logger.Info("Opened new daily high",
			zap.String("asset", asset),
			zap.String("day", high.Day),
			zap.Float64("high", high.HighPrice))
		return high, nil
	}

	if observedPrice > high.HighPrice {
		high.HighPrice = observedPrice
		high.ObservedAt = observedAt
		if err := e.store.SaveDailyHigh(high); err != nil {
			return nil, err
		}
		e.logger.Debug("Raised daily high",
			zap.String("asset", asset),
			zap.Float64("high", high.HighPrice))
	}

	return high, nil
}

// EvaluateAsset fetches the asset's current price, folds it into the daily
// high, and evaluates the strategy. When the daily high cannot be obtained
// the decision is an explicit data-unavailable skip, returned together with
// the underlying error.
func (e *Engine) EvaluateAsset(strategy config.AssetStrategy) (*BuyDecision, error) {
	currentPrice, err := e.client.GetSymbolPrice(strategy.Pair())
	if err != nil {
		return nil, fmt.Errorf("could not get current price for %s: %w", strategy.Pair(), err)
	}

	high, err := e.UpdateDailyHigh(strategy.Symbol, currentPrice, e.now())
	if err != nil {
		decision := &BuyDecision{
			Asset:        strategy.Symbol,
			Pair:         strategy.Pair(),
			TriggerPrice: currentPrice,
			Reason:       SkipDataUnavailable,
		}
		return decision, err
	}

	return Evaluate(strategy, high.HighPrice, currentPrice)
}

// ExecuteIfTriggered places the buy a fired decision calls for and records
// the resulting trade. A skip decision returns nil with no collaborator
// calls. On exchange failure nothing is persisted.
func (e *Engine) ExecuteIfTriggered(decision *BuyDecision) (*models.Trade, error) {
	if decision == nil || !decision.Fire {
		return nil, nil
	}

	l := e.logger.With(
		zap.String("pair", decision.Pair),
		zap.Float64("order_size", decision.OrderSize),
		zap.Float64("drop", decision.Drop),
	)

	if e.cfg.DCA.DryRun {
		l.Warn("Dry run enabled. No real trade will be executed.")
		trade := e.simulatedTrade(decision)
		if err := e.store.AppendTrade(trade); err != nil {
			return nil, err
		}
		return trade, nil
	}

	l.Info("Placing market buy...")
	order, err := e.client.CreateMarketBuyByQuote(decision.Pair, decision.OrderSize)
	if err != nil {
		return nil, fmt.Errorf("market buy for %s: %w: %w", decision.Pair, ErrOrderPlacementFailed, err)
	}

	trade := tradeFromOrder(order, e.now())
	if err := e.store.AppendTrade(trade); err != nil {
		// The order went through; surface the persistence failure loudly so
		// the operator can reconcile from exchange history.
		l.Error("Order executed but trade record could not be saved", zap.Int64("order_id", order.OrderID), zap.Error(err))
		return nil, err
	}

	return trade, nil
}

// simulatedTrade builds the record a dry-run buy would have produced,
// assuming execution exactly at the trigger price.
func (e *Engine) simulatedTrade(decision *BuyDecision) *models.Trade {
	return &models.Trade{
		Symbol:        decision.Pair,
		Side:          binance.OrderSideBuy,
		Price:         decision.TriggerPrice,
		Quantity:      decision.OrderSize / decision.TriggerPrice,
		QuoteQuantity: decision.OrderSize,
		IsBuyer:       true,
		IsSimulation:  true,
		ExecutedAt:    e.now(),
	}
}

// tradeFromOrder converts an exchange order response into a trade record.
// The effective price is derived from the fill totals.
func tradeFromOrder(order *binance.CreateOrderResponse, executedAt time.Time) *models.Trade {
	executedQty, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	quoteQty, _ := strconv.ParseFloat(order.CummulativeQuoteQty, 64)

	price := 0.0
	if executedQty > 0 {
		price = quoteQty / executedQty
	}

	return &models.Trade{
		OrderID:       order.OrderID,
		ClientOrderID: order.ClientOrderID,
		Symbol:        order.Symbol,
		Side:          order.Side,
		Price:         price,
		Quantity:      executedQty,
		QuoteQuantity: quoteQty,
		IsBuyer:       order.Side == binance.OrderSideBuy,
		ExecutedAt:    executedAt,
	}
}
