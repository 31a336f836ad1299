package dhan

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"option_sentry/internal/market"
	"option_sentry/internal/models"

	"github.com/shopspring/decimal"
)

// ltpResponse is the /v2/marketfeed/ltp result (partial schema).
type ltpResponse struct {
	Status string `json:"status"`
	Data   map[string]map[string]struct {
		LastPrice float64 `json:"last_price"`
	} `json:"data"`
}

// LastPrice returns the last traded price for a single instrument.
func (c *Client) LastPrice(ctx context.Context, inst models.Instrument) (decimal.Decimal, error) {
	prices, err := c.LastPrices(ctx, []models.Instrument{inst})
	if err != nil {
		return decimal.Zero, err
	}
	p, ok := prices[inst.SecurityID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no quote for %s (%s)", market.ErrFeedUnavailable, inst.Symbol, inst.SecurityID)
	}
	return p, nil
}

// LastPrices fetches quotes for a batch of instruments in one call, grouped
// by exchange segment the way the LTP endpoint expects. Instruments without
// a quote are simply absent from the result.
func (c *Client) LastPrices(ctx context.Context, insts []models.Instrument) (map[string]decimal.Decimal, error) {
	if len(insts) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	payload := map[string][]int{}
	for _, inst := range insts {
		id, err := strconv.Atoi(inst.SecurityID)
		if err != nil {
			log.Printf("WARN: Non-numeric security id %q for %s, skipping", inst.SecurityID, inst.Symbol)
			continue
		}
		payload[inst.ExchangeSegment] = append(payload[inst.ExchangeSegment], id)
	}

	var resp ltpResponse
	if err := c.do(ctx, "POST", "/v2/marketfeed/ltp", payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrFeedUnavailable, err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("%w: status %q", market.ErrFeedUnavailable, resp.Status)
	}

	prices := make(map[string]decimal.Decimal, len(insts))
	for _, bySegment := range resp.Data {
		for id, quote := range bySegment {
			prices[id] = decimal.NewFromFloat(quote.LastPrice)
		}
	}
	return prices, nil
}
