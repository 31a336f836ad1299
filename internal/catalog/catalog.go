// Package catalog resolves human option descriptions (underlying, strike,
// CE/PE) to broker security ids using Dhan's bulk scrip master CSV. The file
// is cached on disk so a restart does not re-download it.
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"option_sentry/internal/models"

	"github.com/shopspring/decimal"
)

const masterURL = "https://images.dhan.co/api/csv/scrip_master.csv"

// CSVFile is the on-disk cache of the scrip master list.
const CSVFile = "dhan_instruments.csv"

// ErrNotFound means no contract matched the request; callers surface it as
// an invalid-instrument failure.
var ErrNotFound = errors.New("instrument not found in scrip master")

// option is one F&O row of the master list.
type option struct {
	symbol     string
	securityID string
	underlying string
	optType    string // CE or PE
	strike     int
	expiry     time.Time
}

// Catalog holds the parsed option rows plus index instruments for ATM lookup.
type Catalog struct {
	mu      sync.RWMutex
	path    string
	options []option
	indexes map[string]models.Instrument
	http    *http.Client
}

func New(path string) *Catalog {
	if path == "" {
		path = CSVFile
	}
	return &Catalog{
		path:    path,
		indexes: map[string]models.Instrument{},
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Refresh downloads the latest master list and reparses it. The download
// needs a browser User-Agent; Dhan's CDN rejects default Go clients.
func (c *Catalog) Refresh(ctx context.Context) error {
	log.Println("Downloading scrip master list...")

	req, err := http.NewRequestWithContext(ctx, "GET", masterURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("download scrip master: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download scrip master: %s", resp.Status)
	}

	tmp := c.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	f.Close()
	if err := os.Rename(tmp, c.path); err != nil {
		return err
	}

	log.Println("Scrip master updated.")
	return c.load()
}

// Load parses the cached CSV, downloading it first if missing.
func (c *Catalog) Load(ctx context.Context) error {
	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		return c.Refresh(ctx)
	}
	return c.load()
}

func (c *Catalog) load() error {
	f, err := os.Open(c.path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // the master list is ragged in places

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read scrip master header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"SEM_TRADING_SYMBOL", "SEM_SMST_SECURITY_ID", "SEM_OPTION_TYPE", "SEM_STRIKE_PRICE", "SEM_EXPIRY_DATE", "SEM_INSTRUMENT_NAME"} {
		if _, ok := col[required]; !ok {
			return fmt.Errorf("scrip master missing column %s", required)
		}
	}

	field := func(rec []string, name string) string {
		i := col[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var options []option
	indexes := map[string]models.Instrument{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Skip malformed rows rather than losing the whole catalog.
			continue
		}

		instName := field(rec, "SEM_INSTRUMENT_NAME")
		symbol := field(rec, "SEM_TRADING_SYMBOL")
		secID := field(rec, "SEM_SMST_SECURITY_ID")

		if instName == "INDEX" {
			indexes[strings.ToUpper(symbol)] = models.Instrument{
				Symbol:          symbol,
				SecurityID:      secID,
				ExchangeSegment: "IDX_I",
			}
			continue
		}

		optType := field(rec, "SEM_OPTION_TYPE")
		if optType != "CE" && optType != "PE" {
			continue
		}

		strike, err := parseStrike(field(rec, "SEM_STRIKE_PRICE"))
		if err != nil {
			continue
		}
		expiry, err := parseExpiry(field(rec, "SEM_EXPIRY_DATE"))
		if err != nil {
			continue
		}

		options = append(options, option{
			symbol:     symbol,
			securityID: secID,
			underlying: underlyingOf(symbol),
			optType:    optType,
			strike:     strike,
			expiry:     expiry,
		})
	}

	c.mu.Lock()
	c.options = options
	c.indexes = indexes
	c.mu.Unlock()

	log.Printf("Scrip master loaded: %d option contracts, %d indexes", len(options), len(indexes))
	return nil
}

// Resolve finds the nearest-expiry contract for an underlying/strike/type.
func (c *Catalog) Resolve(underlying string, strike int, optType string) (models.Instrument, error) {
	underlying = strings.ToUpper(underlying)
	optType = strings.ToUpper(optType)

	c.mu.RLock()
	defer c.mu.RUnlock()

	var matches []option
	for _, o := range c.options {
		if o.underlying == underlying && o.optType == optType && o.strike == strike {
			matches = append(matches, o)
		}
	}
	if len(matches) == 0 {
		return models.Instrument{}, fmt.Errorf("%w: %s %d %s", ErrNotFound, underlying, strike, optType)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].expiry.Before(matches[j].expiry) })
	best := matches[0]
	return models.Instrument{
		Symbol:          best.symbol,
		SecurityID:      best.securityID,
		ExchangeSegment: "NSE_FNO",
	}, nil
}

// ResolveIndex returns the index instrument for an underlying (e.g. NIFTY)
// so its LTP can seed the ATM strike calculation.
func (c *Catalog) ResolveIndex(underlying string) (models.Instrument, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	inst, ok := c.indexes[strings.ToUpper(underlying)]
	if !ok {
		return models.Instrument{}, fmt.Errorf("%w: index %s", ErrNotFound, underlying)
	}
	return inst, nil
}

// AtmStrike rounds a spot price to the nearest strike step
// (e.g. 24130 with step 50 -> 24150).
func AtmStrike(ltp decimal.Decimal, step int) int {
	s := decimal.NewFromInt(int64(step))
	return int(ltp.Div(s).Round(0).Mul(s).IntPart())
}

// underlyingOf extracts the underlying name from a trading symbol like
// "NIFTY-Sep2026-24500-CE" or "NIFTY 25 SEP 24500 CALL".
func underlyingOf(symbol string) string {
	for i, r := range symbol {
		if r == '-' || r == ' ' {
			return strings.ToUpper(symbol[:i])
		}
	}
	return strings.ToUpper(symbol)
}

func parseStrike(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty strike")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func parseExpiry(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized expiry %q", s)
}
