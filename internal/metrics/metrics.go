// Package metrics exposes Prometheus instrumentation for the trade engine.
// Registered in init() and served by the HTTP handler started in main at
// /metrics (Prometheus text exposition format).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesOpened counts trades opened, split by execution mode.
	TradesOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentry_trades_opened_total",
			Help: "Trades opened",
		},
		[]string{"mode"}, // PAPER | LIVE
	)

	// TradesStopped counts trades closed by the stop check.
	TradesStopped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentry_trades_stopped_total",
			Help: "Trades closed by stop-loss",
		},
	)

	// Promotions counts paper-to-live promotion attempts by outcome.
	Promotions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentry_promotions_total",
			Help: "Paper-to-live promotions",
		},
		[]string{"result"}, // ok | failed
	)

	// Broadcasts counts entry alerts by resolved channel.
	Broadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentry_broadcasts_total",
			Help: "Trade alerts broadcast, by channel",
		},
		[]string{"channel"}, // Free | VIP
	)

	// FeedErrors counts price lookups that failed or returned no quote.
	FeedErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentry_feed_errors_total",
			Help: "Price feed failures",
		},
	)

	// OpenTrades is the current number of OPEN trades in the ledger.
	OpenTrades = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentry_open_trades",
			Help: "Open trades currently managed",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TradesOpened,
		TradesStopped,
		Promotions,
		Broadcasts,
		FeedErrors,
		OpenTrades,
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
