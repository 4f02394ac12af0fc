package core

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Amenzel91/catalyst-bot-sub003/feeds"
	"github.com/Amenzel91/catalyst-bot-sub003/types"
)

var (
	day0  = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	start = day0.Add(9 * time.Hour)
	end   = start.Add(24 * time.Hour)
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// hourlyBars builds flat bars from day0-24h to day0+72h; price overrides
// the close at specific hours after day0
func hourlyBars(price string, overrides map[int]string) []types.Bar {
	var bars []types.Bar
	for h := -24; h <= 72; h++ {
		p := price
		if o, ok := overrides[h]; ok {
			p = o
		}
		px := d(p)
		bars = append(bars, types.Bar{
			Time:   day0.Add(time.Duration(h) * time.Hour),
			Open:   px,
			High:   px,
			Low:    px,
			Close:  px,
			Volume: 1_000_000,
		})
	}
	return bars
}

func alert(ticker string, at time.Time, score float64) types.AlertRecord {
	return types.AlertRecord{Ticker: ticker, Timestamp: at, Score: score, CatalystType: "fda"}
}

type memRecorder struct {
	saved []*Result
	err   error
}

func (m *memRecorder) SaveBacktest(_ context.Context, r *Result) error {
	m.saved = append(m.saved, r)
	return m.err
}

func TestRunTakeProfit(t *testing.T) {
	// 10 until 10:00, 11 at 11:00, 12.50 from 12:00 on
	over := map[int]string{11: "11"}
	for h := 12; h <= 72; h++ {
		over[h] = "12.5"
	}
	prices := feeds.NewMemoryPriceSource(map[string][]types.Bar{"XYZ": hourlyBars("10", over)})
	alerts := &feeds.MemoryAlertSource{Alerts: []types.AlertRecord{alert("XYZ", day0.Add(10*time.Hour), 0.5)}}

	eng, err := NewEngine(DefaultConfig(start, end), alerts, prices)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	res, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.ExitReason != types.ExitTakeProfit {
		t.Fatalf("exit reason = %s, want take_profit", tr.ExitReason)
	}
	// buy 100 @ 10.20 (2% slippage), sell @ 12.00 (4% with 25% range)
	if tr.Shares != 100 || !tr.EntryPrice.Equal(d("10.2")) || !tr.ExitPrice.Equal(d("12")) {
		t.Fatalf("trade = %d @ %s -> %s", tr.Shares, tr.EntryPrice, tr.ExitPrice)
	}
	if !tr.Profit.Equal(d("180")) || !tr.IsWin() {
		t.Fatalf("profit = %s, want 180", tr.Profit)
	}
	if tr.HoldHours != 2 {
		t.Fatalf("hold hours = %v, want 2", tr.HoldHours)
	}
	if !res.Metrics.FinalValue.Equal(d("10180")) || math.Abs(res.Metrics.TotalReturnPct-1.8) > 1e-9 {
		t.Fatalf("final value = %s return = %v", res.Metrics.FinalValue, res.Metrics.TotalReturnPct)
	}
	if res.Metrics.WinRate != 1 || res.Entries.Entered != 1 {
		t.Fatalf("metrics = %+v entries = %+v", res.Metrics.Metrics, res.Entries)
	}
	if eng.State() != StateDone {
		t.Fatalf("state = %s, want done", eng.State())
	}
	if res.RunID == "" || len(res.EquityCurve) == 0 {
		t.Fatalf("missing run id or equity curve")
	}
}

func TestRunExitReasons(t *testing.T) {
	abcDrop := map[int]string{}
	for h := 13; h <= 72; h++ {
		abcDrop[h] = "8.9"
	}
	prices := feeds.NewMemoryPriceSource(map[string][]types.Bar{
		"ABC": hourlyBars("10", abcDrop),
		"DEF": hourlyBars("10", nil),
	})
	alerts := &feeds.MemoryAlertSource{Alerts: []types.AlertRecord{
		alert("ABC", day0.Add(10*time.Hour), 0.6),
		alert("DEF", day0.Add(10*time.Hour), 0.6),
	}}

	eng, err := NewEngine(DefaultConfig(start, end), alerts, prices)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	res, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got := map[string]types.ClosedTrade{}
	for _, tr := range res.Trades {
		got[tr.Ticker] = tr
	}
	if abc := got["ABC"]; abc.ExitReason != types.ExitStopLoss || !abc.ExitTime.Equal(day0.Add(13*time.Hour)) {
		t.Fatalf("ABC = %s at %s", abc.ExitReason, abc.ExitTime)
	}
	if def := got["DEF"]; def.ExitReason != types.ExitTime || def.HoldHours != 24 {
		t.Fatalf("DEF = %s after %vh", def.ExitReason, def.HoldHours)
	}
	if res.Metrics.LosingTrades != 2 {
		t.Fatalf("losing trades = %d, want 2", res.Metrics.LosingTrades)
	}
}

func TestRunClosesLeftoverPositions(t *testing.T) {
	prices := feeds.NewMemoryPriceSource(map[string][]types.Bar{"XYZ": hourlyBars("10", nil)})
	alerts := &feeds.MemoryAlertSource{Alerts: []types.AlertRecord{alert("XYZ", end, 0.9)}}

	cfg := DefaultConfig(start, end)
	cfg.Params.MaxHoldHours = 72
	eng, err := NewEngine(cfg, alerts, prices)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	res, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Trades) != 1 || res.Trades[0].ExitReason != types.ExitManual {
		t.Fatalf("trades = %+v, want one manual close", res.Trades)
	}
	if res.Metrics.OpenPositions != 0 {
		t.Fatalf("open positions = %d after finalize", res.Metrics.OpenPositions)
	}
	// the final close lands on the last tick and must not repeat it
	for i := 1; i < len(res.EquityCurve); i++ {
		if !res.EquityCurve[i].Timestamp.After(res.EquityCurve[i-1].Timestamp) {
			t.Fatalf("equity curve not strictly increasing at %d: %s", i, res.EquityCurve[i].Timestamp)
		}
	}
	last := res.EquityCurve[len(res.EquityCurve)-1]
	if !last.Timestamp.Equal(end.Add(cfg.ExitHorizon)) {
		t.Fatalf("last point at %s, want %s", last.Timestamp, end.Add(cfg.ExitHorizon))
	}
}

func TestRunEntersAtSessionOpen(t *testing.T) {
	// market-hours bars only, 9,000 shares/h from 14:00 to 20:00 UTC
	var bars []types.Bar
	for _, day := range []int{0, 24} {
		for h := 14; h <= 20; h++ {
			bars = append(bars, types.Bar{
				Time:   day0.Add(time.Duration(day+h) * time.Hour),
				Open:   d("10"),
				High:   d("10"),
				Low:    d("10"),
				Close:  d("10"),
				Volume: 9000,
			})
		}
	}
	prices := feeds.NewMemoryPriceSource(map[string][]types.Bar{"XYZ": bars})
	alerts := &feeds.MemoryAlertSource{Alerts: []types.AlertRecord{
		alert("XYZ", day0.Add(38*time.Hour+30*time.Minute), 0.5), // first hour of day two
	}}

	eng, err := NewEngine(DefaultConfig(day0, day0.Add(48*time.Hour)), alerts, prices)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	res, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Entries.Entered != 1 || res.Entries.Rejected != 0 {
		t.Fatalf("entries = %+v, want one entry against the prior session's volume", res.Entries)
	}
}

func TestRunEntryFiltering(t *testing.T) {
	prices := feeds.NewMemoryPriceSource(map[string][]types.Bar{"XYZ": hourlyBars("10", nil)})
	alerts := &feeds.MemoryAlertSource{Alerts: []types.AlertRecord{
		alert("XYZ", day0.Add(10*time.Hour), 0.5),
		alert("XYZ", day0.Add(11*time.Hour), 0.8),  // already open
		alert("LOW", day0.Add(11*time.Hour), 0.1),  // below min score
		alert("GONE", day0.Add(12*time.Hour), 0.9), // no bars
		{Ticker: "", Timestamp: day0.Add(12 * time.Hour), Score: 0.9},
	}}

	eng, err := NewEngine(DefaultConfig(start, end), alerts, prices)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	res, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := EntryStats{Alerts: 4, Invalid: 1, Filtered: 1, Duplicate: 1, NoPrice: 1, Entered: 1}
	if res.Entries != want {
		t.Fatalf("entries = %+v, want %+v", res.Entries, want)
	}
}

func TestRunRecorder(t *testing.T) {
	prices := feeds.NewMemoryPriceSource(map[string][]types.Bar{"XYZ": hourlyBars("10", nil)})
	alerts := &feeds.MemoryAlertSource{}

	rec := &memRecorder{err: errors.New("disk full")}
	eng, err := NewEngine(DefaultConfig(start, end), alerts, prices)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	eng.SetRecorder(rec)

	res, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("recorder failure must not fail the run: %v", err)
	}
	if len(rec.saved) != 1 || rec.saved[0] != res {
		t.Fatalf("recorder got %d results", len(rec.saved))
	}
	if res.Metrics.TotalTrades != 0 || res.Metrics.SharpeRatio != 0 {
		t.Fatalf("empty run metrics = %+v", res.Metrics)
	}
}

func TestRunDeterministicJitter(t *testing.T) {
	over := map[int]string{}
	for h := 12; h <= 72; h++ {
		over[h] = "12.5"
	}
	prices := feeds.NewMemoryPriceSource(map[string][]types.Bar{"XYZ": hourlyBars("10", over)})
	alerts := &feeds.MemoryAlertSource{Alerts: []types.AlertRecord{alert("XYZ", day0.Add(10*time.Hour), 0.5)}}

	cfg := DefaultConfig(start, end)
	cfg.Seed = 42
	cfg.PriceJitterPct = 0.02

	run := func() *Result {
		eng, err := NewEngine(cfg, alerts, prices)
		if err != nil {
			t.Fatalf("new engine: %v", err)
		}
		res, err := eng.Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return res
	}

	a, b := run(), run()
	if len(a.Trades) != len(b.Trades) || len(a.Trades) == 0 {
		t.Fatalf("trade counts %d vs %d", len(a.Trades), len(b.Trades))
	}
	if !a.Trades[0].ExitPrice.Equal(b.Trades[0].ExitPrice) || !a.Metrics.FinalValue.Equal(b.Metrics.FinalValue) {
		t.Fatalf("same seed diverged: %s vs %s", a.Metrics.FinalValue, b.Metrics.FinalValue)
	}
}

func TestRunCancelled(t *testing.T) {
	prices := feeds.NewMemoryPriceSource(map[string][]types.Bar{})
	eng, err := NewEngine(DefaultConfig(start, end), &feeds.MemoryAlertSource{}, prices)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := eng.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if eng.State() != StateFailed {
		t.Fatalf("state = %s, want failed", eng.State())
	}
}

func TestNewEngineValidates(t *testing.T) {
	prices := feeds.NewMemoryPriceSource(nil)
	alerts := &feeds.MemoryAlertSource{}

	bad := DefaultConfig(end, start)
	if _, err := NewEngine(bad, alerts, prices); err == nil {
		t.Fatalf("expected error for inverted window")
	}

	bad = DefaultConfig(start, end)
	bad.Params.StopLossPct = 0
	if _, err := NewEngine(bad, alerts, prices); err == nil {
		t.Fatalf("expected error for invalid params")
	}

	bad = DefaultConfig(start, end)
	bad.InitialCapital = decimal.Zero
	if _, err := NewEngine(bad, alerts, prices); err == nil {
		t.Fatalf("expected error for zero capital")
	}
}
