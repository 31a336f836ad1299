// Package engine wires the Telegram front end to the trade ledger, channel
// gate and instrument catalog, and drives the periodic risk poll.
package engine

import (
	"context"
	"time"

	"option_sentry/internal/config"
	"option_sentry/internal/gate"
	"option_sentry/internal/ledger"
	"option_sentry/internal/market"
	"option_sentry/internal/models"
	"option_sentry/internal/telegram"
)

var startTime = time.Now()

// Sender is the outbound Telegram surface the engine needs. Satisfied by
// *telegram.Client and by test spies.
type Sender interface {
	Notify(chatID, text string)
	SendInteractive(chatID, text string, buttons []telegram.Button)
}

// Resolver maps human option descriptions to broker instruments. Satisfied
// by *catalog.Catalog.
type Resolver interface {
	Resolve(underlying string, strike int, optType string) (models.Instrument, error)
	ResolveIndex(underlying string) (models.Instrument, error)
	Refresh(ctx context.Context) error
}

// Engine is the orchestrator: one per process.
type Engine struct {
	cfg     *config.Config
	ledger  *ledger.Ledger
	gate    *gate.Gate
	catalog Resolver
	feed    market.PriceFeed
	tg      Sender
}

func New(cfg *config.Config, l *ledger.Ledger, g *gate.Gate, c Resolver, feed market.PriceFeed, tg Sender) *Engine {
	return &Engine{cfg: cfg, ledger: l, gate: g, catalog: c, feed: feed, tg: tg}
}

// adminChat returns the admin chat id as the string form the Bot API wants.
func (e *Engine) adminChat() string {
	return formatChatID(e.cfg.AdminChatID)
}

// channelChat maps a gate channel name to its Telegram chat id.
func (e *Engine) channelChat(channel string) string {
	if channel == gate.ChannelVIP {
		return e.cfg.VIPChannelID
	}
	return e.cfg.FreeChannelID
}

// opCtx bounds a user-initiated broker call so a stalled request surfaces as
// a failure instead of wedging the command handler.
func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
