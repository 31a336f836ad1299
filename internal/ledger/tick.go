package ledger

import (
	"context"
	"log"

	"option_sentry/internal/metrics"
	"option_sentry/internal/models"
	"option_sentry/internal/risk"
	"option_sentry/internal/storage"

	"github.com/shopspring/decimal"
)

// EventKind labels a state transition produced by a tick batch.
type EventKind string

const (
	// EventTier1 fires once per trade when price first reaches the first
	// target and the stop locks to break-even.
	EventTier1 EventKind = "TIER1"

	// EventStopped fires when price touches the stop and the trade closes.
	EventStopped EventKind = "STOPPED"
)

// Event is one notable transition from a tick batch, for broadcasting.
type Event struct {
	Kind  EventKind
	Trade models.Trade
	Price decimal.Decimal
}

// Tick advances every OPEN trade against the current market. Prices are
// fetched in one batch before the ledger lock is taken; a missing quote
// skips only that trade. State is persisted once per batch, not per trade.
func (l *Ledger) Tick(ctx context.Context) []Event {
	open := l.ListOpen()
	if len(open) == 0 {
		return nil
	}

	insts := make([]models.Instrument, 0, len(open))
	for _, t := range open {
		insts = append(insts, t.Instrument())
	}

	prices, err := l.feed.LastPrices(ctx, insts)
	if err != nil {
		metrics.FeedErrors.Inc()
		log.Printf("ERROR: Tick price batch failed: %v", err)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var events []Event
	mutated := false
	for i := range l.state.Trades {
		t := &l.state.Trades[i]
		if t.Status != models.StatusOpen {
			continue
		}

		price, ok := prices[t.SecurityID]
		if !ok {
			metrics.FeedErrors.Inc()
			log.Printf("WARN: No quote for %s (#%d), skipping this tick", t.Symbol, t.ID)
			continue
		}

		for _, kind := range advance(t, price, l.tmpl) {
			events = append(events, Event{Kind: kind, Trade: *t, Price: price})
		}
		mutated = true
	}

	if mutated {
		storage.SaveLedger(l.state)
	}
	return events
}

// advance applies one price observation to a trade. The evaluation order is
// fixed: tier-1 safeguard, then trailing, then the stop check. The stop only
// ever moves up; once STOPPED the trade is inert and repeat calls with the
// same price are no-ops.
func advance(t *models.Trade, price decimal.Decimal, tmpl risk.Template) []EventKind {
	if t.Status != models.StatusOpen {
		return nil
	}

	var kinds []EventKind

	// 1. Tier-1 safeguard: first touch of the first target locks the stop to
	// break-even. Never lowers an already-trailed stop. The mark advances to
	// the touch price but the trail step is NOT applied on the same
	// observation; stacking both would put the stop at the touch price and
	// close the trade the instant it reaches tier 1.
	if !t.Tier1Hit && len(t.Targets) > 0 && price.GreaterThanOrEqual(t.Targets[0]) {
		t.Tier1Hit = true
		if t.EntryPrice.GreaterThan(t.StopLoss) {
			t.StopLoss = t.EntryPrice
		}
		if price.GreaterThan(t.HighWaterMark) {
			t.HighWaterMark = price
		}
		log.Printf("[#%d %s] T1 hit at %s, SL moved to cost (%s)",
			t.ID, t.Symbol, price.StringFixed(2), t.StopLoss.StringFixed(2))
		kinds = append(kinds, EventTier1)
	} else if hwm, delta := tmpl.Trail(t.HighWaterMark, price); !delta.IsZero() {
		// 2. Trailing: the stop follows the high-water mark in discrete
		// steps, never the raw price.
		t.HighWaterMark = hwm
		t.StopLoss = t.StopLoss.Add(delta)
		log.Printf("[#%d %s] HWM %s, SL trailed to %s",
			t.ID, t.Symbol, hwm.StringFixed(2), t.StopLoss.StringFixed(2))
	}

	// 3. Stop check.
	if price.LessThanOrEqual(t.StopLoss) {
		t.Status = models.StatusStopped
		t.ExitPrice = price
		log.Printf("[#%d %s] Stopped out at %s (SL %s)",
			t.ID, t.Symbol, price.StringFixed(2), t.StopLoss.StringFixed(2))
		kinds = append(kinds, EventStopped)
	}

	return kinds
}
