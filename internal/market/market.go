// Package market defines the two narrow surfaces the engine needs from a
// broker: last-traded prices and market buy execution. Concrete backends
// (and test mocks) implement these; the ledger never sees anything wider.
package market

import (
	"context"
	"errors"

	"option_sentry/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors for the two external-call boundaries. All broker/feed
// failure is wrapped into one of these before it reaches a caller.
var (
	// ErrFeedUnavailable marks a price lookup failure. Per-instrument at tick
	// time: one unavailable quote skips one trade, never the batch.
	ErrFeedUnavailable = errors.New("price feed unavailable")

	// ErrExecutionFailed marks a broker order failure or timeout. No trade or
	// mode change may persist when this is returned.
	ErrExecutionFailed = errors.New("order execution failed")
)

// PriceFeed supplies last-traded prices for instruments.
type PriceFeed interface {
	// LastPrice returns the last traded price for one instrument.
	LastPrice(ctx context.Context, inst models.Instrument) (decimal.Decimal, error)

	// LastPrices fetches a batch, keyed by security id. Instruments missing
	// from the result simply had no quote; that is not an error for the
	// batch.
	LastPrices(ctx context.Context, insts []models.Instrument) (map[string]decimal.Decimal, error)
}

// OrderExecutor places market buy orders and reports the fill.
type OrderExecutor interface {
	PlaceMarketBuy(ctx context.Context, inst models.Instrument, quantity int) (*models.Fill, error)
}
