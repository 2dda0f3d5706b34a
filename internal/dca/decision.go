package dca

import (
	"fmt"

	"dca-trade-bot-go/internal/config"
)

// SkipReason explains why an evaluation did not fire a buy.
type SkipReason string

const (
	SkipThresholdNotMet SkipReason = "threshold not met"
	SkipBelowMinimum    SkipReason = "below minimum"
	SkipDataUnavailable SkipReason = "data unavailable"
)

// BuyDecision is the outcome of one evaluation of an asset against its
// strategy. It is ephemeral: produced once per cycle and immediately either
// executed or discarded.
type BuyDecision struct {
	Asset        string
	Pair         string
	TriggerPrice float64
	HighPrice    float64
	Drop         float64
	Fire         bool
	OrderSize    float64 // quote currency, set only when Fire
	Reason       SkipReason
}

// Evaluate computes the buy/no-buy decision for one asset. It is a pure
// function over its inputs.
//
// The drop is measured from the tracked daily high:
// drop = (high - current) / high. The buy fires when the drop reaches the
// configured threshold (inclusive) and the configured buy amount clears the
// minimum trade amount; a candidate below the minimum degrades to a skip
// rather than a shrunken order.
func Evaluate(strategy config.AssetStrategy, highPrice, currentPrice float64) (*BuyDecision, error) {
	if strategy.Symbol == "" {
		return nil, fmt.Errorf("empty asset symbol: %w", ErrInvalidInput)
	}
	if currentPrice <= 0 {
		return nil, fmt.Errorf("current price %f must be positive: %w", currentPrice, ErrInvalidInput)
	}
	if highPrice <= 0 {
		return nil, fmt.Errorf("daily high %f must be positive: %w", highPrice, ErrInvalidInput)
	}

	decision := &BuyDecision{
		Asset:        strategy.Symbol,
		Pair:         strategy.Pair(),
		TriggerPrice: currentPrice,
		HighPrice:    highPrice,
		Drop:         (highPrice - currentPrice) / highPrice,
	}

	// A price above the daily high yields a negative drop and never fires.
	if decision.Drop < strategy.DropThreshold {
		decision.Reason = SkipThresholdNotMet
		return decision, nil
	}

	if strategy.BuyAmount < strategy.MinTradeAmount {
		decision.Reason = SkipBelowMinimum
		return decision, nil
	}

	decision.Fire = true
	decision.OrderSize = strategy.BuyAmount
	return decision, nil
}
