package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Amenzel91/catalyst-bot-sub003/core"
	"github.com/Amenzel91/catalyst-bot-sub003/portfolio"
	"github.com/Amenzel91/catalyst-bot-sub003/strategy"
	"github.com/Amenzel91/catalyst-bot-sub003/types"
	"github.com/Amenzel91/catalyst-bot-sub003/validation"
)

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "history", "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleResult(id string, startedAt time.Time, params strategy.Params) *core.Result {
	trades := []types.ClosedTrade{
		{
			Ticker:     "XYZ",
			Shares:     100,
			EntryPrice: decimal.RequireFromString("10.25"),
			ExitPrice:  decimal.RequireFromString("12"),
			EntryTime:  t0,
			ExitTime:   t0.Add(2 * time.Hour),
			Profit:     decimal.RequireFromString("175"),
			ProfitPct:  17.07,
			HoldHours:  2,
			ExitReason: types.ExitTakeProfit,
			Context:    types.AlertContext{Score: 0.5, CatalystType: "fda", Source: "wire"},
		},
		{
			Ticker:     "ABC",
			Shares:     50,
			EntryPrice: decimal.RequireFromString("4"),
			ExitPrice:  decimal.RequireFromString("3.5"),
			EntryTime:  t0.Add(time.Hour),
			ExitTime:   t0.Add(5 * time.Hour),
			Profit:     decimal.RequireFromString("-25"),
			ProfitPct:  -12.5,
			HoldHours:  4,
			ExitReason: types.ExitStopLoss,
		},
	}
	return &core.Result{
		RunID:          id,
		Params:         params,
		Period:         core.Period{Start: t0, End: t0.Add(48 * time.Hour)},
		InitialCapital: decimal.NewFromInt(10_000),
		Seed:           7,
		Trades:         trades,
		Metrics: core.Metrics{
			Metrics: portfolio.Metrics{
				FinalValue:     decimal.NewFromInt(10_150),
				TotalReturnPct: 1.5,
				TotalProfit:    decimal.NewFromInt(150),
				TotalTrades:    2,
				WinningTrades:  1,
				LosingTrades:   1,
				WinRate:        0.5,
				ProfitFactor:   7,
			},
			SharpeRatio: 1.25,
		},
		Entries:   core.EntryStats{Alerts: 5, Entered: 2},
		StartedAt: startedAt,
		Duration:  1500 * time.Millisecond,
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	params := strategy.DefaultParams()
	if err := db.SaveBacktest(ctx, sampleResult("run-1", t0, params)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Run.FinalValue.Equal(decimal.NewFromInt(10_150)) || got.Run.Entered != 2 || got.Run.DurationMs != 1500 {
		t.Fatalf("run = %+v", got.Run)
	}
	if got.Metrics.SharpeRatio != 1.25 || got.Metrics.TotalTrades != 2 {
		t.Fatalf("metrics = %+v", got.Metrics)
	}
	if got.Params.TakeProfitPct != params.TakeProfitPct || got.Params.Name != "default" {
		t.Fatalf("params = %+v", got.Params)
	}

	trades, err := db.TradesForRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("trades: %v", err)
	}
	if len(trades) != 2 || trades[0].Ticker != "XYZ" || trades[1].Ticker != "ABC" {
		t.Fatalf("trades = %+v", trades)
	}
	if !trades[0].EntryPrice.Equal(decimal.RequireFromString("10.25")) || trades[0].CatalystType != "fda" {
		t.Fatalf("first trade = %+v", trades[0])
	}
	if !trades[1].Profit.Equal(decimal.NewFromInt(-25)) || trades[1].ExitReason != "stop_loss" {
		t.Fatalf("second trade = %+v", trades[1])
	}
}

func TestGetRunNotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetRun(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestParameterSetsDeduplicated(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := strategy.DefaultParams()
	tweaked, _ := base.Set(strategy.ParamTakeProfitPct, 0.3)

	for i, p := range []strategy.Params{base, base, tweaked} {
		id := []string{"a", "b", "c"}[i]
		if err := db.SaveBacktest(ctx, sampleResult(id, t0.Add(time.Duration(i)*time.Minute), p)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	sets, err := db.ParameterSets(ctx)
	if err != nil {
		t.Fatalf("sets: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("parameter sets = %d, want 2", len(sets))
	}

	_, h1, _ := ParamsHash(base)
	_, h2, _ := ParamsHash(base.Clone())
	_, h3, _ := ParamsHash(tweaked)
	if h1 != h2 || h1 == h3 || len(h1) != 64 {
		t.Fatalf("hashes %s %s %s", h1, h2, h3)
	}
}

func TestRecentRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i, id := range []string{"old", "mid", "new"} {
		if err := db.SaveBacktest(ctx, sampleResult(id, t0.Add(time.Duration(i)*time.Hour), strategy.DefaultParams())); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	runs, err := db.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestSaveRunTwiceFails(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	r := sampleResult("dup", t0, strategy.DefaultParams())
	if err := db.SaveBacktest(ctx, r); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveBacktest(ctx, r); err == nil {
		t.Fatalf("expected duplicate run id to fail")
	}
	trades, _ := db.TradesForRun(ctx, "dup")
	if len(trades) != 2 {
		t.Fatalf("rolled back insert left %d trades", len(trades))
	}
}

func TestSaveValidation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	res := &validation.Result{
		ID: "val-1",
		Changes: map[string]validation.Change{
			strategy.ParamTakeProfitPct: {Old: 0.2, New: 0.3},
			strategy.ParamStopLossPct:   {Old: 0.1, New: 0.05},
		},
		Period:         core.Period{Start: t0, End: t0.Add(30 * 24 * time.Hour)},
		InitialCapital: decimal.NewFromInt(25_000),
		Recommendation: validation.Approve,
		Confidence:     0.95,
		Score:          23.1,
		Old:            validation.RunSummary{RunID: "o", SharpeRatio: 1, Trades: 20},
		New:            validation.RunSummary{RunID: "n", SharpeRatio: 1.5, Trades: 22},
		PValue:         0.04,
		CreatedAt:      t0,
	}
	if err := db.SaveValidation(ctx, res); err != nil {
		t.Fatalf("save: %v", err)
	}

	recs, err := db.RecentValidations(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d", len(recs))
	}
	got := recs[0]
	if got.Recommendation != "APPROVE" || got.Parameters != "stop_loss_pct,take_profit_pct" {
		t.Fatalf("record = %+v", got)
	}
	if got.NewTrades != 22 || got.PValue != 0.04 || !got.InitialCapital.Equal(decimal.NewFromInt(25_000)) {
		t.Fatalf("record = %+v", got)
	}
}

func TestSaveWalkForwardWindows(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, i := range []int{1, 0} {
		w := &validation.WalkForwardWindow{
			RunID:         "wf-1",
			Index:         i,
			TrainStart:    t0,
			TrainEnd:      t0.Add(10 * 24 * time.Hour),
			TestStart:     t0.Add(10 * 24 * time.Hour),
			TestEnd:       t0.Add(15 * 24 * time.Hour),
			ChosenValue:   0.3,
			TestReturnPct: float64(i),
		}
		if err := db.SaveWalkForwardWindow(ctx, w); err != nil {
			t.Fatalf("save window %d: %v", i, err)
		}
	}

	recs, err := db.WalkForwardWindows(ctx, "wf-1")
	if err != nil {
		t.Fatalf("windows: %v", err)
	}
	if len(recs) != 2 || recs[0].WindowIndex != 0 || recs[1].TestReturnPct != 1 {
		t.Fatalf("windows = %+v", recs)
	}
}
