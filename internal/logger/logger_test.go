package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatorRollsOver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	r := &rotator{filename: path, maxSize: 32, maxBackups: 2}
	if err := r.open(); err != nil {
		t.Fatalf("open: %v", err)
	}

	line := strings.Repeat("x", 20) + "\n"
	for i := 0; i < 4; i++ {
		if _, err := r.Write([]byte(line)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Live log file missing: %v", err)
	}
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("Backup .1 missing: %v", err)
	}
	if _, err := os.Stat(path + ".3"); err == nil {
		t.Error("Backup .3 exists beyond maxBackups")
	}
}

func TestRotatorAppendsToExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")
	if err := os.WriteFile(path, []byte("old\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r := &rotator{filename: path, maxSize: 1024, maxBackups: 1}
	if err := r.open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := r.Write([]byte("new\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "old\nnew\n" {
		t.Errorf("Expected append, got %q", string(data))
	}
}

func TestRotatorRecoversAfterFailedRotation(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "logs")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(sub, "test.log")

	r := &rotator{filename: path, maxSize: 16, maxBackups: 1}
	if err := r.open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := r.Write([]byte("0123456789\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The directory vanishes, so the oversize write can neither rotate nor
	// reopen. That must surface as an error, not a silent no-op on a closed
	// handle.
	if err := os.RemoveAll(sub); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Write([]byte("abcdefghij\n")); err == nil {
		t.Fatal("Expected an error while the log directory is gone")
	}

	// Once the directory is back, logging resumes on a fresh file.
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Write([]byte("recovered\n")); err != nil {
		t.Fatalf("Write after recovery: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "recovered") {
		t.Errorf("Expected recovered line in log, got %q", string(data))
	}
}
