package engine

import (
	"fmt"
	"strconv"
	"strings"

	"option_sentry/internal/models"
	"option_sentry/internal/telegram"
)

// announceOpen broadcasts the entry alert to the trade's resolved channel.
// Paper trades carry an inline button so the admin can execute them live
// straight from the alert.
func (e *Engine) announceOpen(t models.Trade) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🚀 *NEW TRADE ALERT* (%s)\n\n", t.Channel))
	sb.WriteString(fmt.Sprintf("Symbol: `%s`\n", t.Symbol))
	sb.WriteString(fmt.Sprintf("Entry: %s\n", t.EntryPrice.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("SL: %s\n\n", t.StopLoss.StringFixed(2)))
	sb.WriteString("🎯 Targets:\n")
	for i, target := range t.Targets {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, target.StringFixed(2)))
	}

	chat := e.channelChat(t.Channel)
	if t.Mode == models.ModePaper {
		buttons := []telegram.Button{
			{Text: "🚀 Execute Live", CallbackData: fmt.Sprintf("PROMOTE_%d", t.ID)},
		}
		e.tg.SendInteractive(chat, sb.String(), buttons)
		return
	}
	e.tg.Notify(chat, sb.String())
}

// announceStop broadcasts the exit on the channel the entry alert went to.
func (e *Engine) announceStop(t models.Trade) {
	msg := fmt.Sprintf("🛑 *TRADE CLOSED*\n%s\nExit Price: %s", t.Symbol, t.ExitPrice.StringFixed(2))
	e.tg.Notify(e.channelChat(t.Channel), msg)
}

// announcePromotion follows the entry alert's channel.
func (e *Engine) announcePromotion(t models.Trade) {
	msg := fmt.Sprintf("🔥 *%s is now LIVE* (fill %s)", t.Symbol, t.LiveFillPrice.StringFixed(2))
	e.tg.Notify(e.channelChat(t.Channel), msg)
}

func formatChatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
