package dhan

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"option_sentry/internal/market"
	"option_sentry/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// orderRequest is the /v2/orders payload for an intraday market buy.
type orderRequest struct {
	DhanClientID    string `json:"dhanClientId"`
	CorrelationID   string `json:"correlationId"`
	TransactionType string `json:"transactionType"`
	ExchangeSegment string `json:"exchangeSegment"`
	ProductType     string `json:"productType"`
	OrderType       string `json:"orderType"`
	Validity        string `json:"validity"`
	SecurityID      string `json:"securityId"`
	Quantity        int    `json:"quantity"`
}

type orderResponse struct {
	OrderID     string `json:"orderId"`
	OrderStatus string `json:"orderStatus"`
}

// orderDetail is the GET /v2/orders/{id} result (partial schema).
type orderDetail struct {
	OrderID             string  `json:"orderId"`
	OrderStatus         string  `json:"orderStatus"` // TRANSIT, PENDING, TRADED, REJECTED, CANCELLED
	AverageTradedPrice  float64 `json:"averageTradedPrice"`
	OmsErrorDescription string  `json:"omsErrorDescription"`
}

// PlaceMarketBuy places an intraday market buy and waits briefly for the
// fill. Rejections and cancellations surface as ErrExecutionFailed; an order
// still pending after the verification window falls back to the current LTP
// as the assumed fill price.
func (c *Client) PlaceMarketBuy(ctx context.Context, inst models.Instrument, quantity int) (*models.Fill, error) {
	correlationID := uuid.New().String()

	req := orderRequest{
		DhanClientID:    c.clientID,
		CorrelationID:   correlationID,
		TransactionType: "BUY",
		ExchangeSegment: inst.ExchangeSegment,
		ProductType:     "INTRADAY",
		OrderType:       "MARKET",
		Validity:        "DAY",
		SecurityID:      inst.SecurityID,
		Quantity:        quantity,
	}

	var resp orderResponse
	if err := c.do(ctx, "POST", "/v2/orders", req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrExecutionFailed, err)
	}
	if resp.OrderID == "" {
		return nil, fmt.Errorf("%w: broker returned no order id", market.ErrExecutionFailed)
	}

	fill := &models.Fill{
		OrderID:       resp.OrderID,
		CorrelationID: correlationID,
		Quantity:      quantity,
		PlacedAt:      time.Now(),
	}

	// Poll for the traded price. Market orders on liquid option strikes fill
	// within a second or two; five polls covers the slow path.
	for i := 0; i < 5; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", market.ErrExecutionFailed, ctx.Err())
		case <-time.After(1 * time.Second):
		}

		var detail orderDetail
		if err := c.do(ctx, "GET", "/v2/orders/"+resp.OrderID, nil, &detail); err != nil {
			log.Printf("Order verification poll failed: %v", err)
			continue
		}

		switch strings.ToUpper(detail.OrderStatus) {
		case "TRADED":
			fill.Price = decimal.NewFromFloat(detail.AverageTradedPrice)
			return fill, nil
		case "REJECTED", "CANCELLED", "EXPIRED":
			reason := detail.OmsErrorDescription
			if reason == "" {
				reason = detail.OrderStatus
			}
			return nil, fmt.Errorf("%w: order %s: %s", market.ErrExecutionFailed, resp.OrderID, reason)
		}
	}

	// Still in transit. Assume swift execution at the current market price
	// rather than abandoning an order the broker already holds.
	ltp, err := c.LastPrice(ctx, inst)
	if err != nil {
		return nil, fmt.Errorf("%w: order %s unverified and no quote for fallback: %v",
			market.ErrExecutionFailed, resp.OrderID, err)
	}
	log.Printf("WARN: Order %s unverified after poll window, assuming fill at LTP %s", resp.OrderID, ltp)
	fill.Price = ltp
	return fill, nil
}
