package engine

import (
	"context"
	"fmt"
	"time"

	"option_sentry/internal/ledger"
	"option_sentry/internal/metrics"
)

// Poll runs one risk pass over every open trade and broadcasts the
// transitions. Called by the scheduler loop in main; failures are internal
// and never interrupt the driver.
func (e *Engine) Poll() {
	// Bound the batch so one stuck feed call can't overlap the next tick.
	timeout := time.Duration(e.cfg.PollIntervalSecs) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	events := e.ledger.Tick(ctx)
	for _, ev := range events {
		switch ev.Kind {
		case ledger.EventStopped:
			metrics.TradesStopped.Inc()
			e.announceStop(ev.Trade)
		case ledger.EventTier1:
			// Channel followers see the stop move only if the trade closes;
			// the admin gets the safeguard note immediately.
			e.tg.Notify(e.adminChat(), fmt.Sprintf("🛡️ T1 hit on %s (#%d). SL moved to cost.", ev.Trade.Symbol, ev.Trade.ID))
		}
	}

	metrics.OpenTrades.Set(float64(len(e.ledger.ListOpen())))
}

// SendStartupNotification pings the admin chat once wiring is complete.
func (e *Engine) SendStartupNotification() {
	open := e.ledger.ListOpen()
	e.tg.Notify(e.adminChat(), fmt.Sprintf("🚀 *SYSTEM START: Option Sentry %s online*\nRestored open trades: %d", e.cfg.Version, len(open)))
}

// SendShutdownNotification checkpoints state and tells the admin chat.
func (e *Engine) SendShutdownNotification() {
	e.ledger.Checkpoint()
	e.tg.Notify(e.adminChat(), "🛑 SYSTEM SHUTDOWN: Signal received. State saved.")
}
