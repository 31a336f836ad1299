// Package ledger owns the open-position collection and its lifecycle:
// opening (paper or live), paper-to-live promotion, and the per-tick risk
// state machine. All mutation is serialized behind one mutex; the JSON
// checkpoint on disk is rewritten after every mutating call.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"option_sentry/internal/market"
	"option_sentry/internal/models"
	"option_sentry/internal/risk"
	"option_sentry/internal/storage"

	"github.com/shopspring/decimal"
)

var (
	// ErrTradeNotFound means no trade carries the requested id.
	ErrTradeNotFound = errors.New("trade not found")

	// ErrAlreadyLive rejects a repeat promotion. Promotion is one-way and
	// one-time; the executor is never called again for a live trade.
	ErrAlreadyLive = errors.New("trade is already live")

	// ErrTradeClosed rejects promotion of a stopped trade: STOPPED is
	// terminal, nothing mutates after it.
	ErrTradeClosed = errors.New("trade is closed")
)

// Ledger is the trade collection plus its collaborators.
type Ledger struct {
	mu        sync.Mutex
	state     models.LedgerState
	promoting map[int64]bool // ids with a broker call in flight
	feed      market.PriceFeed
	executor  market.OrderExecutor
	tmpl      risk.Template
}

// New restores the ledger from its checkpoint and wires the feed/executor.
func New(feed market.PriceFeed, executor market.OrderExecutor, tmpl risk.Template) *Ledger {
	s, err := storage.LoadLedger()
	if err != nil {
		log.Printf("CRITICAL: Could not load ledger state: %v", err)
		s = models.LedgerState{Version: storage.SchemaVersion, NextID: 1}
	}
	return &Ledger{state: s, promoting: map[int64]bool{}, feed: feed, executor: executor, tmpl: tmpl}
}

// OpenParams describes a position to open.
type OpenParams struct {
	Instrument   models.Instrument
	Quantity     int
	RiskDistance decimal.Decimal
	Mode         string // models.ModePaper or models.ModeLive
	Channel      string // broadcast channel the entry alert is routed to
}

// Open establishes the entry price (paper: last traded price; live: broker
// fill), computes stop and targets from the risk template, assigns the next
// id and persists. On any failure no trade is created.
//
// The network call happens before the ledger lock is taken so a slow broker
// never blocks ticks or other commands.
func (l *Ledger) Open(ctx context.Context, p OpenParams) (models.Trade, error) {
	// Validate the risk input before any external call or state change.
	if !p.RiskDistance.IsPositive() {
		return models.Trade{}, fmt.Errorf("%w: got %s", risk.ErrInvalidRisk, p.RiskDistance)
	}

	var entry decimal.Decimal
	var fill *models.Fill
	var err error

	switch p.Mode {
	case models.ModeLive:
		fill, err = l.executor.PlaceMarketBuy(ctx, p.Instrument, p.Quantity)
		if err != nil {
			return models.Trade{}, err
		}
		entry = fill.Price
	case models.ModePaper:
		entry, err = l.feed.LastPrice(ctx, p.Instrument)
		if err != nil {
			return models.Trade{}, err
		}
	default:
		return models.Trade{}, fmt.Errorf("unknown execution mode %q", p.Mode)
	}

	stop, err := l.tmpl.ComputeStop(entry, p.RiskDistance)
	if err != nil {
		return models.Trade{}, err
	}
	targets, err := l.tmpl.ComputeTargets(entry, p.RiskDistance)
	if err != nil {
		return models.Trade{}, err
	}

	trade := models.Trade{
		Symbol:        p.Instrument.Symbol,
		SecurityID:    p.Instrument.SecurityID,
		Segment:       p.Instrument.ExchangeSegment,
		Mode:          p.Mode,
		Quantity:      p.Quantity,
		EntryPrice:    entry,
		StopLoss:      stop,
		Targets:       targets,
		RiskDistance:  p.RiskDistance,
		HighWaterMark: entry,
		Status:        models.StatusOpen,
		Channel:       p.Channel,
		OpenedAt:      time.Now(),
	}
	if fill != nil {
		trade.BrokerOrderID = fill.OrderID
		trade.LiveFillPrice = fill.Price
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	trade.ID = l.state.NextID
	l.state.NextID++ // monotonic, ids are never reused
	l.state.Trades = append(l.state.Trades, trade)
	storage.SaveLedger(l.state)

	log.Printf("Trade #%d opened: %s %s qty %d entry %s sl %s",
		trade.ID, trade.Symbol, trade.Mode, trade.Quantity,
		trade.EntryPrice.StringFixed(2), trade.StopLoss.StringFixed(2))
	return trade, nil
}

// Promote converts a PAPER trade to LIVE by executing a real market buy.
//
// The paper-derived entry, stop and targets are preserved: the published
// levels are a contract with channel subscribers, so the live fill is only
// recorded for audit. On executor failure the trade is left untouched, and a
// trade that stops while the order is at the broker stays STOPPED.
func (l *Ledger) Promote(ctx context.Context, id int64) (models.Trade, error) {
	l.mu.Lock()
	idx := l.indexOf(id)
	if idx < 0 {
		l.mu.Unlock()
		return models.Trade{}, fmt.Errorf("%w: #%d", ErrTradeNotFound, id)
	}
	t := l.state.Trades[idx]
	if t.Mode == models.ModeLive {
		l.mu.Unlock()
		return models.Trade{}, fmt.Errorf("%w: #%d", ErrAlreadyLive, id)
	}
	if t.Status != models.StatusOpen {
		l.mu.Unlock()
		return models.Trade{}, fmt.Errorf("%w: #%d", ErrTradeClosed, id)
	}
	// Reserve the id before releasing the lock so a concurrent Promote can
	// never reach the executor for the same trade.
	if l.promoting[id] {
		l.mu.Unlock()
		return models.Trade{}, fmt.Errorf("%w: #%d promotion in flight", ErrAlreadyLive, id)
	}
	l.promoting[id] = true
	l.mu.Unlock()

	// Broker call outside the lock; ticks keep running while it blocks, so
	// the trade is re-validated under the lock afterwards.
	fill, err := l.executor.PlaceMarketBuy(ctx, t.Instrument(), t.Quantity)

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.promoting, id)

	if err != nil {
		return models.Trade{}, err
	}

	idx = l.indexOf(id)
	if idx < 0 {
		return models.Trade{}, fmt.Errorf("%w: #%d", ErrTradeNotFound, id)
	}
	tr := &l.state.Trades[idx]
	if tr.Status != models.StatusOpen {
		// A tick stopped the trade while the order was at the broker. The
		// fill is real but the signal is dead; never flip a STOPPED trade.
		log.Printf("WARN: Trade #%d stopped during promotion; broker order %s (fill %s) needs manual unwind",
			id, fill.OrderID, fill.Price.StringFixed(2))
		return models.Trade{}, fmt.Errorf("%w: #%d stopped during promotion, order %s unmanaged",
			ErrTradeClosed, id, fill.OrderID)
	}
	tr.Mode = models.ModeLive
	tr.LiveFillPrice = fill.Price
	tr.BrokerOrderID = fill.OrderID
	storage.SaveLedger(l.state)

	log.Printf("Trade #%d promoted to LIVE (fill %s, order %s)", id, fill.Price.StringFixed(2), fill.OrderID)
	return *tr, nil
}

// Get returns a copy of the trade with the given id.
func (l *Ledger) Get(id int64) (models.Trade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(id)
	if idx < 0 {
		return models.Trade{}, false
	}
	return l.state.Trades[idx], true
}

// ListOpen returns copies of all OPEN trades in creation order.
func (l *Ledger) ListOpen() []models.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.Trade
	for _, t := range l.state.Trades {
		if t.Status == models.StatusOpen {
			out = append(out, t)
		}
	}
	return out
}

// Checkpoint forces a save of the current state (used at shutdown).
func (l *Ledger) Checkpoint() {
	l.mu.Lock()
	defer l.mu.Unlock()
	storage.SaveLedger(l.state)
}

// indexOf locates a trade by id. Caller holds l.mu.
func (l *Ledger) indexOf(id int64) int {
	for i := range l.state.Trades {
		if l.state.Trades[i].ID == id {
			return i
		}
	}
	return -1
}
