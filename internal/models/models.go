package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Execution modes for a trade. A trade may move PAPER -> LIVE exactly once,
// never the other way.
const (
	ModePaper = "PAPER"
	ModeLive  = "LIVE"
)

// Trade statuses. STOPPED is terminal.
const (
	StatusOpen    = "OPEN"
	StatusStopped = "STOPPED"
)

// Instrument is a resolved option contract: a display symbol plus the
// broker-assigned security id used on the wire.
type Instrument struct {
	Symbol          string `json:"symbol"`
	SecurityID      string `json:"security_id"`
	ExchangeSegment string `json:"exchange_segment"` // e.g. "NSE_FNO"
}

// Fill is the normalized result of a market buy placed with the broker.
type Fill struct {
	OrderID       string          `json:"order_id"`
	CorrelationID string          `json:"correlation_id"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	PlacedAt      time.Time       `json:"placed_at"`
}

// Trade is a single-leg long option position managed by the ledger.
//
// StopLoss only ever moves up, HighWaterMark tracks the best price seen since
// entry, and Targets are fixed at creation. Once Status is STOPPED none of the
// risk fields mutate again.
type Trade struct {
	ID            int64             `json:"id"`
	Symbol        string            `json:"symbol"`
	SecurityID    string            `json:"security_id"`
	Segment       string            `json:"exchange_segment"`
	Mode          string            `json:"mode"` // PAPER or LIVE
	Quantity      int               `json:"quantity"`
	EntryPrice    decimal.Decimal   `json:"entry_price"`
	StopLoss      decimal.Decimal   `json:"sl"`
	Targets       []decimal.Decimal `json:"targets"`
	RiskDistance  decimal.Decimal   `json:"sl_points"`
	HighWaterMark decimal.Decimal   `json:"max_mtm"`
	Tier1Hit      bool              `json:"t1_hit"`
	Status        string            `json:"status"`
	Channel       string            `json:"channel"` // broadcast channel the entry alert went to
	OpenedAt      time.Time         `json:"opened_at"`
	ExitPrice     decimal.Decimal   `json:"exit_price,omitempty"`

	// Set on promotion. Risk levels are NOT re-based to the live fill; these
	// exist for audit only.
	LiveFillPrice decimal.Decimal `json:"live_fill_price,omitempty"`
	BrokerOrderID string          `json:"broker_order_id,omitempty"`
}

// Instrument reconstructs the wire identifiers for this trade.
func (t Trade) Instrument() Instrument {
	return Instrument{Symbol: t.Symbol, SecurityID: t.SecurityID, ExchangeSegment: t.Segment}
}

// LedgerState is the persisted trade collection. This struct matches the
// structure of the active_trades.json checkpoint.
type LedgerState struct {
	Version  string  `json:"version"` // Schema version for migrations
	LastSave string  `json:"last_save"`
	NextID   int64   `json:"next_id"` // Monotonic, never reused
	Trades   []Trade `json:"trades"`
}

// DailyStats is the persisted broadcast counter for the constrained channel.
// LastResetDate holds the IST calendar date the count applies to; the gate
// resets it lazily on the first touch of a new day.
type DailyStats struct {
	TradeCount    int    `json:"trade_count"`
	LastResetDate string `json:"last_reset_date"` // "2006-01-02"
}
