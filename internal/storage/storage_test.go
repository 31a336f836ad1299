package storage

import (
	"os"
	"testing"

	"option_sentry/internal/models"

	"github.com/shopspring/decimal"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(originalWd) })
}

func TestMigrateLedger(t *testing.T) {
	chdirTemp(t)

	// Legacy checkpoint (v1.0): no high-water mark, no next_id.
	legacyJSON := `{
		"version": "1.0",
		"trades": [
			{
				"id": 3,
				"symbol": "NIFTY 24500 CE",
				"entry_price": "142.5",
				"sl": "122.5",
				"status": "OPEN"
			}
		]
	}`

	if err := os.WriteFile(LedgerFile, []byte(legacyJSON), 0644); err != nil {
		t.Fatalf("Failed to write legacy state: %v", err)
	}

	s, err := LoadLedger()
	if err != nil {
		t.Fatalf("LoadLedger failed: %v", err)
	}

	if s.Version != SchemaVersion {
		t.Errorf("Expected version %s, got %s", SchemaVersion, s.Version)
	}

	if len(s.Trades) != 1 {
		t.Fatalf("Expected 1 trade, got %d", len(s.Trades))
	}

	tr := s.Trades[0]
	entry := decimal.NewFromFloat(142.5)
	if !tr.HighWaterMark.Equal(entry) {
		t.Errorf("HighWaterMark backfill mismatch: expected %s, got %s", entry, tr.HighWaterMark)
	}

	if s.NextID != 4 {
		t.Errorf("Expected NextID 4 (max id + 1), got %d", s.NextID)
	}

	// Migration must have been persisted.
	s2, err := LoadLedger()
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if s2.Version != SchemaVersion {
		t.Errorf("Persisted version mismatch: got %s", s2.Version)
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	chdirTemp(t)

	s := models.LedgerState{
		Version: SchemaVersion,
		NextID:  2,
		Trades: []models.Trade{
			{
				ID:            1,
				Symbol:        "BANKNIFTY 51000 PE",
				SecurityID:    "861234",
				Segment:       "NSE_FNO",
				Mode:          models.ModePaper,
				Quantity:      25,
				EntryPrice:    decimal.NewFromInt(100),
				StopLoss:      decimal.NewFromInt(80),
				HighWaterMark: decimal.NewFromInt(100),
				RiskDistance:  decimal.NewFromInt(20),
				Targets: []decimal.Decimal{
					decimal.NewFromInt(110), decimal.NewFromInt(120),
					decimal.NewFromInt(130), decimal.NewFromInt(140),
					decimal.NewFromInt(160),
				},
				Status:  models.StatusOpen,
				Channel: "Free",
			},
		},
	}
	SaveLedger(s)

	got, err := LoadLedger()
	if err != nil {
		t.Fatalf("LoadLedger failed: %v", err)
	}

	if got.NextID != 2 || len(got.Trades) != 1 {
		t.Fatalf("Round trip lost structure: next_id=%d trades=%d", got.NextID, len(got.Trades))
	}

	tr := got.Trades[0]
	if tr.ID != 1 || tr.Status != models.StatusOpen || tr.Mode != models.ModePaper {
		t.Errorf("Trade identity mismatch after reload: %+v", tr)
	}
	if !tr.StopLoss.Equal(decimal.NewFromInt(80)) {
		t.Errorf("StopLoss mismatch: got %s", tr.StopLoss)
	}
	if len(tr.Targets) != 5 || !tr.Targets[4].Equal(decimal.NewFromInt(160)) {
		t.Errorf("Targets mismatch: got %v", tr.Targets)
	}
}

func TestDailyStatsRoundTrip(t *testing.T) {
	chdirTemp(t)

	// Missing file: zero counter, no error.
	s := LoadDailyStats()
	if s.TradeCount != 0 || s.LastResetDate != "" {
		t.Errorf("Expected zero stats for missing file, got %+v", s)
	}

	SaveDailyStats(models.DailyStats{TradeCount: 1, LastResetDate: "2026-09-01"})

	s = LoadDailyStats()
	if s.TradeCount != 1 || s.LastResetDate != "2026-09-01" {
		t.Errorf("Stats round trip mismatch: %+v", s)
	}
}
