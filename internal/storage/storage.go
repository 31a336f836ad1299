package storage

import (
	"encoding/json"
	"log"
	"os"
	"time"

	"option_sentry/internal/models"
)

// On-disk checkpoint files. The in-memory state is the source of truth while
// the process runs; these are restart checkpoints.
const (
	LedgerFile = "active_trades.json"
	StatsFile  = "daily_stats.json"
)

// SchemaVersion is the current ledger checkpoint schema.
const SchemaVersion = "1.1"

// LoadLedger reads the trade collection from disk, creating a fresh template
// if none exists yet.
func LoadLedger() (models.LedgerState, error) {
	var s models.LedgerState

	if _, err := os.Stat(LedgerFile); os.IsNotExist(err) {
		log.Println("Ledger file missing, generating template...")
		s = models.LedgerState{Version: SchemaVersion, NextID: 1, Trades: []models.Trade{}}
		SaveLedger(s)
		return s, nil
	}

	b, err := os.ReadFile(LedgerFile)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, err
	}

	if migrateLedger(&s) {
		log.Printf("INFO: Ledger migrated to version %s. Saving...", s.Version)
		SaveLedger(s)
	}

	return s, nil
}

// migrateLedger handles schema evolution. Returns true if changes were made
// and the state needs to be saved.
func migrateLedger(s *models.LedgerState) bool {
	updated := false

	// 1.0 -> 1.1: HighWaterMark and NextID were introduced. Backfill the mark
	// from the entry price and NextID from the highest id seen.
	if s.Version < "1.1" {
		log.Println("INFO: Migrating ledger schema to 1.1")
		for i := range s.Trades {
			if s.Trades[i].HighWaterMark.IsZero() {
				s.Trades[i].HighWaterMark = s.Trades[i].EntryPrice
			}
		}
		if s.NextID == 0 {
			var max int64
			for _, t := range s.Trades {
				if t.ID > max {
					max = t.ID
				}
			}
			s.NextID = max + 1
		}
		s.Version = "1.1"
		updated = true
	}

	return updated
}

// SaveLedger writes the trade collection to disk. Failures are logged, never
// propagated: the caller's in-memory state stays authoritative and the next
// mutating call rewrites the full checkpoint anyway.
func SaveLedger(s models.LedgerState) {
	s.LastSave = time.Now().Format(time.RFC3339)
	writeJSON(LedgerFile, s)
}

// LoadDailyStats reads the broadcast counter. A missing or unreadable file
// yields a zero counter; the gate's lazy day reset stamps the date.
func LoadDailyStats() models.DailyStats {
	var s models.DailyStats
	b, err := os.ReadFile(StatsFile)
	if err != nil {
		return s
	}
	if err := json.Unmarshal(b, &s); err != nil {
		log.Printf("WARN: Corrupt daily stats file, resetting: %v", err)
		return models.DailyStats{}
	}
	return s
}

// SaveDailyStats persists the broadcast counter.
func SaveDailyStats(s models.DailyStats) {
	writeJSON(StatsFile, s)
}

// writeJSON writes v using an atomic write pattern:
// temp file in the same directory, sync, then rename over the destination.
func writeJSON(path string, v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("ERROR: Failed to marshal %s: %v", path, err)
		return
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		log.Printf("ERROR: Failed to create temp file for %s: %v", path, err)
		return
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		log.Printf("ERROR: Failed to write %s: %v", tmp, err)
		return
	}

	// Force to disk before the rename so a crash can't leave a torn checkpoint.
	if err := f.Sync(); err != nil {
		log.Printf("ERROR: Failed to sync %s: %v", tmp, err)
		return
	}

	// Close explicitly before renaming (essential on Windows).
	f.Close()

	if err := os.Rename(tmp, path); err != nil {
		log.Printf("ERROR: Failed to replace %s (atomic rename): %v", path, err)
	}
}
