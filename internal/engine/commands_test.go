package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"option_sentry/internal/config"
	"option_sentry/internal/gate"
	"option_sentry/internal/ledger"
	"option_sentry/internal/market"
	"option_sentry/internal/models"
	"option_sentry/internal/risk"
	"option_sentry/internal/telegram"

	"github.com/shopspring/decimal"
)

// spySender records outbound Telegram traffic.
type spySender struct {
	notifies     []string // "chat|text"
	interactives []string
	lastButtons  []telegram.Button
}

func (s *spySender) Notify(chatID, text string) {
	s.notifies = append(s.notifies, chatID+"|"+text)
}

func (s *spySender) SendInteractive(chatID, text string, buttons []telegram.Button) {
	s.interactives = append(s.interactives, chatID+"|"+text)
	s.lastButtons = buttons
}

// stubResolver resolves a fixed NIFTY chain.
type stubResolver struct{ refreshed bool }

func (r *stubResolver) Resolve(underlying string, strike int, optType string) (models.Instrument, error) {
	if underlying != "NIFTY" {
		return models.Instrument{}, fmt.Errorf("unknown underlying")
	}
	return models.Instrument{
		Symbol:          fmt.Sprintf("NIFTY-%d-%s", strike, optType),
		SecurityID:      "49081",
		ExchangeSegment: "NSE_FNO",
	}, nil
}

func (r *stubResolver) ResolveIndex(underlying string) (models.Instrument, error) {
	if underlying != "NIFTY" {
		return models.Instrument{}, fmt.Errorf("unknown index")
	}
	return models.Instrument{Symbol: "NIFTY", SecurityID: "13", ExchangeSegment: "IDX_I"}, nil
}

func (r *stubResolver) Refresh(ctx context.Context) error {
	r.refreshed = true
	return nil
}

// mockFeed and mockExecutor mirror the ledger test doubles.
type mockFeed struct {
	prices map[string]decimal.Decimal
}

func (m *mockFeed) LastPrice(_ context.Context, inst models.Instrument) (decimal.Decimal, error) {
	if p, ok := m.prices[inst.SecurityID]; ok {
		return p, nil
	}
	return decimal.Zero, fmt.Errorf("%w: no quote", market.ErrFeedUnavailable)
}

func (m *mockFeed) LastPrices(_ context.Context, insts []models.Instrument) (map[string]decimal.Decimal, error) {
	out := map[string]decimal.Decimal{}
	for _, inst := range insts {
		if p, ok := m.prices[inst.SecurityID]; ok {
			out[inst.SecurityID] = p
		}
	}
	return out, nil
}

type mockExecutor struct {
	fillPrice decimal.Decimal
	err       error
	calls     int
}

func (m *mockExecutor) PlaceMarketBuy(_ context.Context, inst models.Instrument, qty int) (*models.Fill, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &models.Fill{OrderID: "order-1", Price: m.fillPrice, Quantity: qty}, nil
}

func newTestEngine(t *testing.T, feed *mockFeed, exec *mockExecutor) (*Engine, *spySender) {
	t.Helper()
	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(originalWd) })

	cfg := &config.Config{
		AdminChatID:      123,
		FreeChannelID:    "-1001",
		VIPChannelID:     "-1002",
		PollIntervalSecs: 30,
		DefaultQuantity:  25,
		FreeDailyLimit:   1,
		StrikeStep:       50,
	}

	l := ledger.New(feed, exec, risk.Default())
	g := gate.New(cfg.FreeDailyLimit, config.IstLoc)
	spy := &spySender{}
	e := New(cfg, l, g, &stubResolver{}, feed, spy)
	return e, spy
}

func TestHandleCommand_Buy(t *testing.T) {
	feed := &mockFeed{prices: map[string]decimal.Decimal{
		"13":    decimal.NewFromInt(24130), // index spot -> ATM 24150
		"49081": decimal.NewFromInt(100),   // option premium
	}}
	e, spy := newTestEngine(t, feed, &mockExecutor{})

	resp := e.HandleCommand("/buy NIFTY CE 20 PAPER")

	if !strings.Contains(resp, "✅ Trade Placed") {
		t.Fatalf("Unexpected reply: %s", resp)
	}
	if !strings.Contains(resp, "Free channel") {
		t.Errorf("First trade of the day should route to Free: %s", resp)
	}

	open := e.ledger.ListOpen()
	if len(open) != 1 {
		t.Fatalf("Expected 1 open trade, got %d", len(open))
	}
	tr := open[0]
	if tr.Symbol != "NIFTY-24150-CE" {
		t.Errorf("ATM resolution wrong: %s", tr.Symbol)
	}
	if !tr.StopLoss.Equal(decimal.NewFromInt(80)) {
		t.Errorf("Expected SL 80, got %s", tr.StopLoss)
	}
	if tr.Quantity != 25 {
		t.Errorf("Expected default qty 25, got %d", tr.Quantity)
	}

	// Paper entry alert goes to the Free channel with a promote button.
	if len(spy.interactives) != 1 || !strings.HasPrefix(spy.interactives[0], "-1001|") {
		t.Fatalf("Expected interactive alert to Free channel, got %v", spy.interactives)
	}
	if len(spy.lastButtons) != 1 || spy.lastButtons[0].CallbackData != "PROMOTE_1" {
		t.Errorf("Expected PROMOTE_1 button, got %v", spy.lastButtons)
	}
}

func TestHandleCommand_Buy_SecondRoutesToVIP(t *testing.T) {
	feed := &mockFeed{prices: map[string]decimal.Decimal{
		"13":    decimal.NewFromInt(24130),
		"49081": decimal.NewFromInt(100),
	}}
	e, spy := newTestEngine(t, feed, &mockExecutor{})

	e.HandleCommand("/buy NIFTY CE 20 PAPER")
	resp := e.HandleCommand("/buy NIFTY PE 20 PAPER")

	if !strings.Contains(resp, "Sending to VIP") {
		t.Errorf("Expected VIP overflow notice, got: %s", resp)
	}
	if len(spy.interactives) != 2 || !strings.HasPrefix(spy.interactives[1], "-1002|") {
		t.Errorf("Second alert should go to VIP chat, got %v", spy.interactives)
	}
}

func TestHandleCommand_Buy_LiveExecutorFailure(t *testing.T) {
	feed := &mockFeed{prices: map[string]decimal.Decimal{
		"13":    decimal.NewFromInt(24130),
		"49081": decimal.NewFromInt(100),
	}}
	exec := &mockExecutor{err: fmt.Errorf("%w: rejected", market.ErrExecutionFailed)}
	e, spy := newTestEngine(t, feed, exec)

	resp := e.HandleCommand("/buy NIFTY CE 20 LIVE")

	if !strings.Contains(resp, "❌ Trade not placed") {
		t.Errorf("Expected failure reply, got: %s", resp)
	}
	if len(e.ledger.ListOpen()) != 0 {
		t.Error("No trade may exist after executor failure")
	}
	if len(spy.interactives) != 0 && len(spy.notifies) != 0 {
		t.Error("No alert may be broadcast after executor failure")
	}
	// Quota untouched: next paper trade still routes to Free.
	resp = e.HandleCommand("/buy NIFTY CE 20 PAPER")
	if !strings.Contains(resp, "Free channel") {
		t.Errorf("Counter must not tick on failed opens: %s", resp)
	}
}

func TestHandleCommand_Buy_Validation(t *testing.T) {
	feed := &mockFeed{prices: map[string]decimal.Decimal{
		"13":    decimal.NewFromInt(24130),
		"49081": decimal.NewFromInt(100),
	}}
	e, _ := newTestEngine(t, feed, &mockExecutor{})

	cases := map[string]string{
		"/buy":                    "Usage:",
		"/buy NIFTY XX 20 PAPER":  "CE or PE",
		"/buy NIFTY CE abc PAPER": "Invalid SL points",
		"/buy NIFTY CE 20 SWING":  "PAPER or LIVE",
		"/buy NIFTY CE 0 PAPER":   "positive",
	}
	for cmd, want := range cases {
		if resp := e.HandleCommand(cmd); !strings.Contains(resp, want) {
			t.Errorf("%q: expected %q in reply, got %q", cmd, want, resp)
		}
	}
}

func TestHandleCallback_Promote(t *testing.T) {
	feed := &mockFeed{prices: map[string]decimal.Decimal{
		"13":    decimal.NewFromInt(24130),
		"49081": decimal.NewFromInt(100),
	}}
	exec := &mockExecutor{fillPrice: decimal.NewFromFloat(101.5)}
	e, _ := newTestEngine(t, feed, exec)

	e.HandleCommand("/buy NIFTY CE 20 PAPER")

	resp := e.HandleCallback("cb1", "PROMOTE_1")
	if !strings.Contains(resp, "Promoted to LIVE") {
		t.Fatalf("Unexpected callback reply: %s", resp)
	}
	if exec.calls != 1 {
		t.Errorf("Expected one executor call, got %d", exec.calls)
	}

	got, _ := e.ledger.Get(1)
	if got.Mode != models.ModeLive {
		t.Errorf("Expected LIVE, got %s", got.Mode)
	}

	// Pressing the button again is idempotently rejected.
	resp = e.HandleCallback("cb2", "PROMOTE_1")
	if !strings.Contains(resp, "already LIVE") {
		t.Errorf("Expected repeat rejection, got: %s", resp)
	}
	if exec.calls != 1 {
		t.Errorf("Repeat promotion hit the executor: %d calls", exec.calls)
	}

	resp = e.HandleCallback("cb3", "PROMOTE_99")
	if !strings.Contains(resp, "Invalid Trade ID") {
		t.Errorf("Expected unknown-id rejection, got: %s", resp)
	}
}

func TestPoll_BroadcastsStops(t *testing.T) {
	feed := &mockFeed{prices: map[string]decimal.Decimal{
		"13":    decimal.NewFromInt(24130),
		"49081": decimal.NewFromInt(100),
	}}
	e, spy := newTestEngine(t, feed, &mockExecutor{})

	e.HandleCommand("/buy NIFTY CE 20 PAPER")

	// Crash through the stop.
	feed.prices["49081"] = decimal.NewFromInt(70)
	e.Poll()

	found := false
	for _, n := range spy.notifies {
		if strings.HasPrefix(n, "-1001|") && strings.Contains(n, "TRADE CLOSED") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected TRADE CLOSED broadcast on Free channel, got %v", spy.notifies)
	}

	// A second poll at the same price is silent.
	before := len(spy.notifies)
	e.Poll()
	if len(spy.notifies) != before {
		t.Errorf("Stopped trade re-broadcast on later poll: %v", spy.notifies[before:])
	}
}

func TestHandleCommand_Misc(t *testing.T) {
	feed := &mockFeed{prices: map[string]decimal.Decimal{}}
	e, _ := newTestEngine(t, feed, &mockExecutor{})

	if resp := e.HandleCommand("/ping"); !strings.Contains(resp, "Pong") {
		t.Errorf("ping: %s", resp)
	}
	if resp := e.HandleCommand("/list"); !strings.Contains(resp, "No open trades") {
		t.Errorf("list: %s", resp)
	}
	if resp := e.HandleCommand("/status"); !strings.Contains(resp, "Open trades: 0") {
		t.Errorf("status: %s", resp)
	}
	if resp := e.HandleCommand("/nope"); !strings.Contains(resp, "Unknown command") {
		t.Errorf("unknown: %s", resp)
	}

	r := &stubResolver{}
	e.catalog = r
	if resp := e.HandleCommand("/refresh"); !strings.Contains(resp, "refreshed") {
		t.Errorf("refresh: %s", resp)
	}
	if !r.refreshed {
		t.Error("refresh did not hit the catalog")
	}
}
