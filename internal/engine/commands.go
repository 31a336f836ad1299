package engine

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"option_sentry/internal/catalog"
	"option_sentry/internal/gate"
	"option_sentry/internal/ledger"
	"option_sentry/internal/metrics"
	"option_sentry/internal/models"
	"option_sentry/internal/risk"

	"github.com/shopspring/decimal"
)

// HandleCommand processes inbound Telegram commands safely.
func (e *Engine) HandleCommand(cmd string) string {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return ""
	}

	switch parts[0] {
	case "/ping":
		return "Pong 🏓"
	case "/buy":
		return e.handleBuyCommand(parts)
	case "/promote":
		if len(parts) < 2 {
			return "Usage: /promote <trade_id>"
		}
		return e.promote(parts[1])
	case "/list":
		return e.getList()
	case "/status":
		return e.getStatus()
	case "/refresh":
		return e.handleRefreshCommand()
	case "/help":
		return e.getHelp()
	default:
		return "Unknown command. Try /buy, /promote, /list, /status, /refresh or /help."
	}
}

// handleBuyCommand opens a position from a chat command:
// /buy <underlying> <CE|PE> <sl_points> <PAPER|LIVE> [qty]
func (e *Engine) handleBuyCommand(parts []string) string {
	if len(parts) < 5 {
		return "Usage: /buy <underlying> <CE|PE> <sl_points> <PAPER|LIVE> [qty]"
	}

	underlying := strings.ToUpper(parts[1])
	optType := strings.ToUpper(parts[2])
	if optType != "CE" && optType != "PE" {
		return "⚠️ Option type must be CE or PE."
	}

	slPoints, err := decimal.NewFromString(parts[3])
	if err != nil {
		return "⚠️ Invalid SL points format."
	}

	mode := strings.ToUpper(parts[4])
	if mode != models.ModePaper && mode != models.ModeLive {
		return "⚠️ Mode must be PAPER or LIVE."
	}

	qty := e.cfg.DefaultQuantity
	if len(parts) >= 6 {
		qty, err = strconv.Atoi(parts[5])
		if err != nil || qty <= 0 {
			return "⚠️ Invalid quantity."
		}
	}

	ctx, cancel := opCtx()
	defer cancel()

	// Resolve the contract: index LTP -> ATM strike -> scrip master lookup.
	idx, err := e.catalog.ResolveIndex(underlying)
	if err != nil {
		return fmt.Sprintf("❌ Unknown underlying %s.", underlying)
	}
	spot, err := e.feed.LastPrice(ctx, idx)
	if err != nil {
		metrics.FeedErrors.Inc()
		return fmt.Sprintf("⚠️ Could not fetch spot price for %s.", underlying)
	}
	strike := catalog.AtmStrike(spot, e.cfg.StrikeStep)

	inst, err := e.catalog.Resolve(underlying, strike, optType)
	if err != nil {
		return fmt.Sprintf("❌ Symbol not found: %s %d %s.", underlying, strike, optType)
	}

	// Route the alert before opening; the counter is only bumped after the
	// trade is durably created.
	channel := e.gate.Resolve(gate.ChannelFree)

	trade, err := e.ledger.Open(ctx, ledger.OpenParams{
		Instrument:   inst,
		Quantity:     qty,
		RiskDistance: slPoints,
		Mode:         mode,
		Channel:      channel,
	})
	if err != nil {
		return openFailureMessage(err)
	}

	e.announceOpen(trade)
	e.gate.RecordBroadcast()
	metrics.TradesOpened.WithLabelValues(trade.Mode).Inc()
	metrics.Broadcasts.WithLabelValues(channel).Inc()
	metrics.OpenTrades.Set(float64(len(e.ledger.ListOpen())))

	reply := fmt.Sprintf("✅ Trade Placed: %s (#%d) → %s channel", trade.Symbol, trade.ID, channel)
	if channel == gate.ChannelVIP {
		reply = "⚠️ Daily free limit reached. Sending to VIP.\n" + reply
	}
	return reply
}

func openFailureMessage(err error) string {
	switch {
	case errors.Is(err, risk.ErrInvalidRisk):
		return "⚠️ SL points must be a positive number."
	default:
		log.Printf("Open failed: %v", err)
		return fmt.Sprintf("❌ Trade not placed: %v", err)
	}
}

// promote converts a paper trade to live, by id string from command or
// callback data.
func (e *Engine) promote(idStr string) string {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return "⚠️ Invalid trade id."
	}

	ctx, cancel := opCtx()
	defer cancel()

	trade, err := e.ledger.Promote(ctx, id)
	if err != nil {
		metrics.Promotions.WithLabelValues("failed").Inc()
		switch {
		case errors.Is(err, ledger.ErrTradeNotFound):
			return fmt.Sprintf("⚠️ Invalid Trade ID #%s.", idStr)
		case errors.Is(err, ledger.ErrAlreadyLive):
			return fmt.Sprintf("⚠️ Trade #%s is already LIVE.", idStr)
		case errors.Is(err, ledger.ErrTradeClosed):
			return fmt.Sprintf("⚠️ Trade #%s is closed.", idStr)
		default:
			log.Printf("Promote #%d failed: %v", id, err)
			return fmt.Sprintf("⚠️ Execution Failed: %v", err)
		}
	}

	metrics.Promotions.WithLabelValues("ok").Inc()
	e.announcePromotion(trade)
	return fmt.Sprintf("🚀 Trade %s (#%d) Promoted to LIVE!", trade.Symbol, trade.ID)
}

func (e *Engine) getList() string {
	open := e.ledger.ListOpen()
	if len(open) == 0 {
		return "📭 No open trades."
	}

	var sb strings.Builder
	sb.WriteString("📋 *OPEN TRADES*\n")
	for _, t := range open {
		sb.WriteString(fmt.Sprintf("#%d %s [%s]\nEntry: %s | SL: %s | HWM: %s\n",
			t.ID, t.Symbol, t.Mode,
			t.EntryPrice.StringFixed(2), t.StopLoss.StringFixed(2), t.HighWaterMark.StringFixed(2)))
	}
	return sb.String()
}

func (e *Engine) getStatus() string {
	open := e.ledger.ListOpen()
	uptime := time.Since(startTime).Round(time.Second)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🤖 *OPTION SENTRY %s*\n", e.cfg.Version))
	sb.WriteString(fmt.Sprintf("Uptime: %s\n", uptime))
	sb.WriteString(fmt.Sprintf("Open trades: %d\n", len(open)))
	sb.WriteString(fmt.Sprintf("Free signals today: %d/%d\n", e.gate.Count(), e.cfg.FreeDailyLimit))
	return sb.String()
}

func (e *Engine) handleRefreshCommand() string {
	ctx, cancel := opCtx()
	defer cancel()

	if err := e.catalog.Refresh(ctx); err != nil {
		return fmt.Sprintf("❌ Scrip master refresh failed: %v", err)
	}
	return "🔄 Scrip master refreshed."
}

func (e *Engine) getHelp() string {
	return "🤖 *OPTION SENTRY COMMANDS*\n\n" +
		"🔹 */buy* — Open an ATM option trade\n`/buy NIFTY CE 20 PAPER [qty]`\n\n" +
		"🔹 */promote* — Execute a paper trade live\n`/promote 3`\n\n" +
		"🔹 */list* — Open trades\n\n" +
		"🔹 */status* — Engine status\n\n" +
		"🔹 */refresh* — Re-download instrument master\n\n" +
		"🔹 */ping* — Connectivity check"
}
