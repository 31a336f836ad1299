// Package logger routes the standard log package to stdout plus a
// size-rotated file so restarts never lose the trade audit trail.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// DefaultFile is the log file created in the working directory, alongside
// the JSON state files.
const DefaultFile = "option_sentry.log"

// rotator is an io.Writer that rolls the file over once it exceeds maxSize,
// keeping numbered backups (file.1 is the newest backup).
type rotator struct {
	filename   string
	maxSize    int64
	maxBackups int

	mu   sync.Mutex
	file *os.File
	size int64
}

// Setup points the default logger at stdout and a rotating file. A file
// open failure is not fatal: the process keeps logging to stdout.
func Setup(filename string, maxSizeMB int64, maxBackups int) {
	r := &rotator{
		filename:   filename,
		maxSize:    maxSizeMB * 1024 * 1024,
		maxBackups: maxBackups,
	}
	if err := r.open(); err != nil {
		log.Printf("WARN: Log file unavailable, stdout only: %v", err)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stdout, r))
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// open attaches to an existing log file in append mode, or creates one.
func (r *rotator) open() error {
	info, err := os.Stat(r.filename)
	if os.IsNotExist(err) {
		return r.create()
	}
	if err != nil {
		return err
	}
	f, err := os.OpenFile(r.filename, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	r.file = f
	r.size = info.Size()
	return nil
}

func (r *rotator) create() error {
	f, err := os.OpenFile(r.filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	r.file = f
	r.size = 0
	return nil
}

func (r *rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}

	if r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "Log rotation failed: %v\n", err)
			// rotate closed the old handle; reattach so lines aren't lost.
			if err := r.open(); err != nil {
				return 0, err
			}
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// rotate shifts file.N to file.N+1, moves the live file to file.1 and
// starts a fresh one. Backups beyond maxBackups fall off the end.
func (r *rotator) rotate() error {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}

	for i := r.maxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", r.filename, i)
		if _, err := os.Stat(oldPath); os.IsNotExist(err) {
			continue
		}
		os.Rename(oldPath, fmt.Sprintf("%s.%d", r.filename, i+1))
	}
	if _, err := os.Stat(r.filename); err == nil {
		os.Rename(r.filename, r.filename+".1")
	}

	return r.create()
}
