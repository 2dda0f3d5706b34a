package dca

import "errors"

var (
	// ErrInvalidInput is returned for non-positive prices or an empty asset
	// symbol. Local precondition failure, never recovered.
	ErrInvalidInput = errors.New("invalid input")
	// ErrOrderPlacementFailed is returned when the exchange rejected or
	// failed a fired order. Nothing is persisted in that case.
	ErrOrderPlacementFailed = errors.New("order placement failed")
)
