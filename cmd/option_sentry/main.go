package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"option_sentry/internal/catalog"
	"option_sentry/internal/config"
	"option_sentry/internal/engine"
	"option_sentry/internal/gate"
	"option_sentry/internal/ledger"
	"option_sentry/internal/logger"
	"option_sentry/internal/market/dhan"
	"option_sentry/internal/metrics"
	"option_sentry/internal/risk"
	"option_sentry/internal/telegram"
)

const VersionFile = "version.latest"

func main() {
	// Load configuration first to get logger settings.
	cfg := config.Load()
	cfg.Version = readVersion()

	logger.Setup(logger.DefaultFile, cfg.MaxLogSizeMB, cfg.MaxLogBackups)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Risk template: compiled-in ladder unless an override file is set.
	tmpl := risk.Default()
	if cfg.RiskTemplateFile != "" {
		var err error
		if tmpl, err = risk.LoadTemplate(cfg.RiskTemplateFile); err != nil {
			log.Fatalf("CRITICAL: Bad risk template %s: %v", cfg.RiskTemplateFile, err)
		}
	}

	// Broker connectivity, instrument catalog, then the stateful core.
	broker := dhan.NewClient(cfg.DhanClientID, cfg.DhanAccessToken, cfg.DhanBaseURL)

	cat := catalog.New(catalog.CSVFile)
	if err := cat.Load(ctx); err != nil {
		log.Fatalf("CRITICAL: Scrip master unavailable: %v", err)
	}

	l := ledger.New(broker, broker, tmpl)
	g := gate.New(cfg.FreeDailyLimit, config.IstLoc)

	tg := telegram.NewClient(cfg.TelegramBotToken)
	e := engine.New(cfg, l, g, cat, broker, tg)

	// Telegram command listener (background).
	go tg.StartListener(cfg.AdminChatID, e.HandleCommand, e.HandleCallback)

	// Prometheus endpoint (background).
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.Printf("WARN: Metrics server stopped: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Println("⚠️ Shutting down: system signal received.")
		e.SendShutdownNotification()
		cancel()
	}()

	log.Printf("Option Sentry %s initialized", cfg.Version)
	log.Printf("Polling interval: %d secs", cfg.PollIntervalSecs)
	e.SendStartupNotification()

	// Main loop: one immediate pass, then on the ticker.
	e.Poll()

	ticker := time.NewTicker(time.Duration(cfg.PollIntervalSecs) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("🛑 Main loop stopping...")
			return
		case <-ticker.C:
			e.Poll()
		}
	}
}

func readVersion() string {
	version, err := os.ReadFile(VersionFile)
	if err != nil {
		return "v0.0.0-dev"
	}
	return strings.TrimSpace(string(version))
}
