package portfolio

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Amenzel91/catalyst-bot-sub003/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var t0 = time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC)

func TestOpenPositionDeductsCash(t *testing.T) {
	p := New(d("10000"))

	if err := p.OpenPosition("XYZ", 100, d("10"), t0, types.AlertContext{Score: 0.5}, d("1")); err != nil {
		t.Fatalf("open: %v", err)
	}
	if !p.Cash().Equal(d("8999")) {
		t.Fatalf("cash = %s, want 8999", p.Cash())
	}
	pos, ok := p.Position("XYZ")
	if !ok || !pos.CostBasis.Equal(d("1001")) {
		t.Fatalf("position = %+v", pos)
	}
	if !p.TotalValue().Equal(d("10000")) {
		t.Fatalf("total value = %s, want 10000", p.TotalValue())
	}
}

func TestOpenPositionErrors(t *testing.T) {
	p := New(d("1000"))
	if err := p.OpenPosition("XYZ", 10, d("10"), t0, types.AlertContext{}, decimal.Zero); err != nil {
		t.Fatalf("open: %v", err)
	}

	tests := []struct {
		name   string
		ticker string
		shares int64
		price  string
		want   error
	}{
		{name: "duplicate ticker", ticker: "XYZ", shares: 1, price: "10", want: ErrPositionExists},
		{name: "too expensive", ticker: "ABC", shares: 1000, price: "10", want: ErrInsufficientCash},
		{name: "zero shares", ticker: "ABC", shares: 0, price: "10", want: ErrInvalidOrder},
		{name: "zero price", ticker: "ABC", shares: 5, price: "0", want: ErrInvalidOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.OpenPosition(tt.ticker, tt.shares, d(tt.price), t0, types.AlertContext{}, decimal.Zero)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if !p.Cash().Equal(d("900")) {
		t.Fatalf("failed opens changed cash: %s", p.Cash())
	}
}

func TestClosePosition(t *testing.T) {
	p := New(d("10000"))
	ctx := types.AlertContext{Score: 0.7, CatalystType: "fda"}
	if err := p.OpenPosition("XYZ", 100, d("10"), t0, ctx, d("1")); err != nil {
		t.Fatalf("open: %v", err)
	}

	trade, err := p.ClosePosition("XYZ", d("12"), t0.Add(3*time.Hour), types.ExitTakeProfit, d("1"))
	if err != nil {
		t.Fatalf("close: %v", err)
	}

	// proceeds 1199, cost 1001
	if !trade.Profit.Equal(d("198")) {
		t.Fatalf("profit = %s, want 198", trade.Profit)
	}
	wantPct := 198.0 / 1001.0 * 100
	if math.Abs(trade.ProfitPct-wantPct) > 1e-6 {
		t.Fatalf("profit pct = %v, want %v", trade.ProfitPct, wantPct)
	}
	if trade.HoldHours != 3 || trade.ExitReason != types.ExitTakeProfit || trade.Context.CatalystType != "fda" {
		t.Fatalf("trade = %+v", trade)
	}
	if !trade.Commission.Equal(d("2")) {
		t.Fatalf("commission = %s, want 2", trade.Commission)
	}
	if !p.Cash().Equal(d("10198")) {
		t.Fatalf("cash = %s, want 10198", p.Cash())
	}
	if p.HasPosition("XYZ") || len(p.ClosedTrades()) != 1 {
		t.Fatalf("position not moved to history")
	}
}

func TestCloseTwiceFails(t *testing.T) {
	p := New(d("1000"))
	if err := p.OpenPosition("XYZ", 10, d("10"), t0, types.AlertContext{}, decimal.Zero); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := p.ClosePosition("XYZ", d("11"), t0.Add(time.Hour), types.ExitManual, decimal.Zero); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := p.ClosePosition("XYZ", d("11"), t0.Add(time.Hour), types.ExitManual, decimal.Zero); !errors.Is(err, ErrNoPosition) {
		t.Fatalf("second close err = %v, want ErrNoPosition", err)
	}
	if len(p.ClosedTrades()) != 1 {
		t.Fatalf("second close recorded a trade")
	}
}

func TestReopenAfterClose(t *testing.T) {
	p := New(d("1000"))
	for i := 0; i < 2; i++ {
		if err := p.OpenPosition("XYZ", 10, d("10"), t0, types.AlertContext{}, decimal.Zero); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if _, err := p.ClosePosition("XYZ", d("10"), t0.Add(time.Hour), types.ExitManual, decimal.Zero); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
	if !p.Cash().Equal(d("1000")) || len(p.ClosedTrades()) != 2 {
		t.Fatalf("cash %s trades %d", p.Cash(), len(p.ClosedTrades()))
	}
}

func TestRecordEquityPointTracksDrawdown(t *testing.T) {
	p := New(d("1000"))
	if err := p.OpenPosition("XYZ", 50, d("10"), t0, types.AlertContext{}, decimal.Zero); err != nil {
		t.Fatalf("open: %v", err)
	}

	p.RecordEquityPoint(t0.Add(time.Hour), map[string]decimal.Decimal{"XYZ": d("12")})  // 1100
	p.RecordEquityPoint(t0.Add(2*time.Hour), map[string]decimal.Decimal{"XYZ": d("8")}) // 900
	pt := p.RecordEquityPoint(t0.Add(3*time.Hour), nil)                                 // keeps 8

	if !pt.Value.Equal(d("900")) {
		t.Fatalf("value = %s, want 900 with last known price", pt.Value)
	}
	curve := p.EquityCurve()
	if len(curve) != 3 || !curve[0].Value.Equal(d("1100")) {
		t.Fatalf("curve = %+v", curve)
	}
	pos, _ := p.Position("XYZ")
	if !pos.UnrealizedPnL.Equal(d("-100")) {
		t.Fatalf("unrealized = %s, want -100", pos.UnrealizedPnL)
	}

	if _, err := p.ClosePosition("XYZ", d("8"), t0.Add(4*time.Hour), types.ExitManual, decimal.Zero); err != nil {
		t.Fatalf("close: %v", err)
	}
	wantDD := 200.0 / 1100.0 * 100
	if m := p.PerformanceMetrics(); math.Abs(m.MaxDrawdownPct-wantDD) > 1e-6 {
		t.Fatalf("drawdown = %v, want %v", m.MaxDrawdownPct, wantDD)
	}
}

func TestRecordEquityPointReplacesSameTimestamp(t *testing.T) {
	p := New(d("1000"))
	if err := p.OpenPosition("XYZ", 50, d("10"), t0, types.AlertContext{}, decimal.Zero); err != nil {
		t.Fatalf("open: %v", err)
	}

	p.RecordEquityPoint(t0.Add(time.Hour), map[string]decimal.Decimal{"XYZ": d("12")})
	p.RecordEquityPoint(t0.Add(time.Hour), map[string]decimal.Decimal{"XYZ": d("11")})

	curve := p.EquityCurve()
	if len(curve) != 1 || !curve[0].Value.Equal(d("1050")) {
		t.Fatalf("curve = %+v, want one point at 1050", curve)
	}
}

func TestPerformanceMetrics(t *testing.T) {
	p := New(d("10000"))
	trades := []struct {
		ticker string
		exit   string
	}{
		{"AAA", "13"}, // +300
		{"BBB", "9"},  // -100
		{"CCC", "11"}, // +100
		{"DDD", "7"},  // -300
	}
	for i, tr := range trades {
		if err := p.OpenPosition(tr.ticker, 100, d("10"), t0, types.AlertContext{}, decimal.Zero); err != nil {
			t.Fatalf("open: %v", err)
		}
		exitAt := t0.Add(time.Duration(i+1) * time.Hour)
		if _, err := p.ClosePosition(tr.ticker, d(tr.exit), exitAt, types.ExitManual, decimal.Zero); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	m := p.PerformanceMetrics()
	if m.TotalTrades != 4 || m.WinningTrades != 2 || m.LosingTrades != 2 || m.WinRate != 0.5 {
		t.Fatalf("counts = %+v", m)
	}
	if !m.TotalProfit.IsZero() || m.TotalReturnPct != 0 {
		t.Fatalf("profit %s return %v", m.TotalProfit, m.TotalReturnPct)
	}
	if !m.AvgWin.Equal(d("200")) || !m.AvgLoss.Equal(d("-200")) {
		t.Fatalf("avg win %s avg loss %s", m.AvgWin, m.AvgLoss)
	}
	if m.ProfitFactor != 1 || m.AvgHoldHours != 2.5 {
		t.Fatalf("pf %v hold %v", m.ProfitFactor, m.AvgHoldHours)
	}
}

func TestPerformanceMetricsEmpty(t *testing.T) {
	m := New(d("5000")).PerformanceMetrics()
	if m.TotalTrades != 0 || m.WinRate != 0 || m.TotalReturnPct != 0 || !m.FinalValue.Equal(d("5000")) {
		t.Fatalf("empty metrics = %+v", m)
	}

	// an open position marked down still leaves no closed history
	p := New(d("1000"))
	if err := p.OpenPosition("XYZ", 50, d("10"), t0, types.AlertContext{}, decimal.Zero); err != nil {
		t.Fatalf("open: %v", err)
	}
	p.RecordEquityPoint(t0.Add(time.Hour), map[string]decimal.Decimal{"XYZ": d("12")})
	p.RecordEquityPoint(t0.Add(2*time.Hour), map[string]decimal.Decimal{"XYZ": d("8")})
	if m := p.PerformanceMetrics(); m.MaxDrawdownPct != 0 || !m.TotalProfit.IsZero() || m.ProfitFactor != 0 {
		t.Fatalf("metrics without closed trades = %+v", m)
	}
}

func TestOpenPositionsSorted(t *testing.T) {
	p := New(d("10000"))
	for _, tk := range []string{"ZZZ", "AAA", "MMM"} {
		if err := p.OpenPosition(tk, 1, d("10"), t0, types.AlertContext{}, decimal.Zero); err != nil {
			t.Fatalf("open: %v", err)
		}
	}
	got := p.OpenPositions()
	if got[0].Ticker != "AAA" || got[1].Ticker != "MMM" || got[2].Ticker != "ZZZ" {
		t.Fatalf("order = %v %v %v", got[0].Ticker, got[1].Ticker, got[2].Ticker)
	}
}
