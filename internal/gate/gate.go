// Package gate throttles which broadcast channel a trade alert is routed to.
// The free channel carries a daily quota; overflow goes to the VIP channel.
package gate

import (
	"log"
	"sync"
	"time"

	"option_sentry/internal/models"
	"option_sentry/internal/storage"
)

// Broadcast channels.
const (
	ChannelFree = "Free"
	ChannelVIP  = "VIP"
)

const dateLayout = "2006-01-02"

// Gate owns the daily broadcast counter. The counter tracks trades opened,
// not notifications sent: RecordBroadcast must be called exactly once per
// successfully opened trade.
type Gate struct {
	mu    sync.Mutex
	stats models.DailyStats
	limit int
	loc   *time.Location
	now   func() time.Time
}

// New restores the counter from disk. limit is the daily free-channel quota;
// loc is the market calendar used for the day boundary.
func New(limit int, loc *time.Location) *Gate {
	return &Gate{
		stats: storage.LoadDailyStats(),
		limit: limit,
		loc:   loc,
		now:   time.Now,
	}
}

// Resolve returns the channel an alert should actually go to. Only the free
// channel is constrained; anything else passes through unchanged.
func (g *Gate) Resolve(requested string) string {
	if requested != ChannelFree {
		return requested
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetIfStale()
	if g.stats.TradeCount >= g.limit {
		return ChannelVIP
	}
	return ChannelFree
}

// RecordBroadcast increments the daily counter and persists it. Call it only
// after the trade is durably created, so executor failures never consume the
// quota.
func (g *Gate) RecordBroadcast() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetIfStale()
	g.stats.TradeCount++
	storage.SaveDailyStats(g.stats)
}

// Count reports today's usage (for status reporting).
func (g *Gate) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetIfStale()
	return g.stats.TradeCount
}

// resetIfStale zeroes the counter the first time it is touched on a new
// calendar day. Lazy on purpose: a process idle across midnight self-corrects
// on its first call rather than needing a timer. Caller holds g.mu.
func (g *Gate) resetIfStale() {
	today := g.now().In(g.loc).Format(dateLayout)
	if g.stats.LastResetDate != today {
		if g.stats.LastResetDate != "" {
			log.Printf("Daily broadcast counter reset (%s -> %s)", g.stats.LastResetDate, today)
		}
		g.stats = models.DailyStats{TradeCount: 0, LastResetDate: today}
		storage.SaveDailyStats(g.stats)
	}
}
