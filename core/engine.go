package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Amenzel91/catalyst-bot-sub003/analytics"
	"github.com/Amenzel91/catalyst-bot-sub003/execution"
	"github.com/Amenzel91/catalyst-bot-sub003/feeds"
	"github.com/Amenzel91/catalyst-bot-sub003/portfolio"
	"github.com/Amenzel91/catalyst-bot-sub003/risk"
	"github.com/Amenzel91/catalyst-bot-sub003/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENGINE - Replays historical alerts against hourly bars
// ═══════════════════════════════════════════════════════════════════════════════
//
// Flow:
//   Alerts → Entry policy → Simulated buy → Hourly TP/SL/time checks →
//   Simulated sell → Metrics → Recorder
//
// A run is synchronous and owns its portfolio and price cache.
//
// ═══════════════════════════════════════════════════════════════════════════════

// State is the phase of a run
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading_alerts"
	StateEntries    State = "processing_entries"
	StateMonitoring State = "monitoring"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Recorder persists finished runs
type Recorder interface {
	SaveBacktest(ctx context.Context, result *Result) error
}

type Engine struct {
	mu    sync.RWMutex
	state State

	cfg      Config
	alerts   feeds.AlertSource
	source   feeds.PriceSource
	recorder Recorder

	// per-run state, reset by Run
	prices    *feeds.PriceCache
	sim       *execution.TradeSimulator
	exits     *risk.ExitPolicy
	pf        *portfolio.Portfolio
	rng       *rand.Rand
	lastPrice map[string]decimal.Decimal
	entries   EntryStats
	log       zerolog.Logger
}

// NewEngine validates cfg and wires the sources
func NewEngine(cfg Config, alerts feeds.AlertSource, prices feeds.PriceSource) (*Engine, error) {
	if alerts == nil || prices == nil {
		return nil, errors.New("alert and price sources are required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		state:  StateIdle,
		cfg:    cfg,
		alerts: alerts,
		source: prices,
	}, nil
}

// SetRecorder sets the store that receives finished runs
func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

// Config returns the run configuration after defaults
func (e *Engine) Config() Config {
	return e.cfg
}

// State reports the current phase
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Run executes one complete backtest. Data gaps are logged and skipped;
// only source failures and cancellation end the run with an error.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	began := time.Now()
	runID := uuid.NewString()
	e.reset(runID)

	e.log.Info().
		Time("start", e.cfg.Start).
		Time("end", e.cfg.End).
		Str("capital", e.cfg.InitialCapital.StringFixed(2)).
		Str("strategy", e.cfg.Params.Name).
		Msg("🚀 Backtest started")

	e.setState(StateLoading)
	alerts, err := e.loadAlerts(ctx)
	if err != nil {
		e.setState(StateFailed)
		return nil, err
	}

	e.setState(StateEntries)
	for _, a := range alerts {
		if err := ctx.Err(); err != nil {
			e.setState(StateFailed)
			return nil, err
		}
		e.processEntry(ctx, a)
	}

	e.setState(StateMonitoring)
	if err := e.monitor(ctx); err != nil {
		e.setState(StateFailed)
		return nil, err
	}

	e.setState(StateFinalizing)
	result := e.finalize(ctx, runID, began)

	if e.recorder != nil {
		if err := e.recorder.SaveBacktest(ctx, result); err != nil {
			e.log.Error().Err(err).Msg("Failed to record backtest")
		}
	}

	e.setState(StateDone)
	e.log.Info().
		Int("trades", result.Metrics.TotalTrades).
		Float64("return_pct", result.Metrics.TotalReturnPct).
		Float64("win_rate", result.Metrics.WinRate).
		Float64("sharpe", result.Metrics.SharpeRatio).
		Float64("max_dd_pct", result.Metrics.MaxDrawdownPct).
		Dur("took", result.Duration).
		Msg("✅ Backtest complete")
	return result, nil
}

func (e *Engine) reset(runID string) {
	e.prices = feeds.NewPriceCache(e.source)
	e.sim = execution.NewTradeSimulator(e.cfg.Simulator.WithParams(e.cfg.Params))
	e.exits = risk.NewExitPolicy(e.cfg.Params)
	e.pf = portfolio.New(e.cfg.InitialCapital)
	e.rng = rand.New(rand.NewSource(e.cfg.Seed))
	e.lastPrice = make(map[string]decimal.Decimal)
	e.entries = EntryStats{}
	e.log = log.With().Str("run", runID[:8]).Logger()
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOADING
// ═══════════════════════════════════════════════════════════════════════════════

func (e *Engine) loadAlerts(ctx context.Context) ([]types.AlertRecord, error) {
	raw, err := e.alerts.LoadAlerts(ctx, e.cfg.Start, e.cfg.End)
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}

	alerts := make([]types.AlertRecord, 0, len(raw))
	for _, a := range raw {
		if a.Ticker == "" || a.Timestamp.IsZero() {
			e.entries.Invalid++
			continue
		}
		if a.Timestamp.Before(e.cfg.Start) || a.Timestamp.After(e.cfg.End) {
			e.entries.Invalid++
			continue
		}
		alerts = append(alerts, a)
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Timestamp.Before(alerts[j].Timestamp)
	})

	e.entries.Alerts = len(alerts)
	e.log.Info().Int("alerts", len(alerts)).Int("invalid", e.entries.Invalid).Msg("📥 Alerts loaded")
	return alerts, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// ENTRIES
// ═══════════════════════════════════════════════════════════════════════════════

func (e *Engine) processEntry(ctx context.Context, a types.AlertRecord) {
	if ok, reason := e.cfg.Params.Allows(a); !ok {
		e.entries.Filtered++
		e.log.Debug().Str("ticker", a.Ticker).Str("reason", reason).Msg("Alert filtered")
		return
	}

	if e.pf.HasPosition(a.Ticker) {
		e.entries.Duplicate++
		e.log.Debug().Str("ticker", a.Ticker).Msg("Position already open, skipping alert")
		return
	}

	bars, err := e.bars(ctx, a.Ticker)
	if err != nil {
		e.entries.NoPrice++
		e.log.Debug().Err(err).Str("ticker", a.Ticker).Msg("No price data for alert")
		return
	}
	price, ok := e.priceAt(bars, a.Timestamp)
	if !ok {
		e.entries.NoPrice++
		e.log.Debug().Str("ticker", a.Ticker).Time("at", a.Timestamp).Msg("No bar at or before alert")
		return
	}

	res := e.sim.ExecuteTrade(execution.TradeRequest{
		Ticker:           a.Ticker,
		Action:           types.ActionBuy,
		Price:            price,
		DailyVolume:      feeds.DailyVolume(bars, a.Timestamp),
		Timestamp:        a.Timestamp,
		AvailableCapital: e.pf.Cash(),
		VolatilityPct:    feeds.VolatilityPct(bars, a.Timestamp),
	})
	if !res.Executed {
		e.entries.Rejected++
		e.log.Debug().Str("ticker", a.Ticker).Str("reason", res.Reason).Msg("Entry rejected")
		return
	}

	err = e.pf.OpenPosition(a.Ticker, res.Shares, res.FillPrice, a.Timestamp, types.ContextFromAlert(a), res.Commission)
	if err != nil {
		e.entries.Rejected++
		e.log.Warn().Err(err).Str("ticker", a.Ticker).Msg("Open position failed")
		return
	}

	e.entries.Entered++
	e.lastPrice[a.Ticker] = price
	e.log.Debug().
		Str("ticker", a.Ticker).
		Int64("shares", res.Shares).
		Str("fill", res.FillPrice.StringFixed(4)).
		Float64("slippage_pct", res.SlippagePct).
		Float64("score", a.Score).
		Msg("🎯 Entered position")
}

// ═══════════════════════════════════════════════════════════════════════════════
// MONITORING
// ═══════════════════════════════════════════════════════════════════════════════

// monitor walks an hourly clock from Start to End plus the exit horizon
func (e *Engine) monitor(ctx context.Context) error {
	stop := e.cfg.End.Add(e.cfg.ExitHorizon)
	for tick := e.cfg.Start; !tick.After(stop); tick = tick.Add(e.cfg.TickInterval) {
		if err := ctx.Err(); err != nil {
			return err
		}

		marks := make(map[string]decimal.Decimal)
		for _, pos := range e.pf.OpenPositions() {
			if pos.EntryTime.After(tick) {
				continue
			}
			e.checkPosition(ctx, pos, tick, marks)
		}
		e.pf.RecordEquityPoint(tick, marks)
	}
	return nil
}

// checkPosition evaluates exits for one position at tick
func (e *Engine) checkPosition(ctx context.Context, pos types.Position, tick time.Time, marks map[string]decimal.Decimal) {
	bars, err := e.bars(ctx, pos.Ticker)
	price, ok := decimal.Zero, false
	if err == nil {
		price, ok = e.priceAt(bars, tick)
	}
	if !ok {
		price = e.lastKnown(pos)
	} else {
		e.lastPrice[pos.Ticker] = price
	}
	marks[pos.Ticker] = price

	exit, reason := e.exits.CheckExit(&pos, price, tick)
	if !exit {
		return
	}
	e.exitPosition(pos, price, tick, reason, bars)
}

// exitPosition sells through the simulator and closes the position at the fill
func (e *Engine) exitPosition(pos types.Position, price decimal.Decimal, at time.Time, reason types.ExitReason, bars []types.Bar) {
	res := e.sim.ExecuteTrade(execution.TradeRequest{
		Ticker:        pos.Ticker,
		Action:        types.ActionSell,
		Price:         price,
		DailyVolume:   feeds.DailyVolume(bars, at),
		Timestamp:     at,
		Shares:        pos.Shares,
		VolatilityPct: feeds.VolatilityPct(bars, at),
	})
	if !res.Executed {
		e.log.Warn().Str("ticker", pos.Ticker).Str("reason", res.Reason).Msg("Exit not executed")
		return
	}

	trade, err := e.pf.ClosePosition(pos.Ticker, res.FillPrice, at, reason, res.Commission)
	if err != nil {
		e.log.Error().Err(err).Str("ticker", pos.Ticker).Msg("Close position failed")
		return
	}

	e.log.Debug().
		Str("ticker", trade.Ticker).
		Str("reason", string(reason)).
		Str("entry", trade.EntryPrice.StringFixed(4)).
		Str("exit", trade.ExitPrice.StringFixed(4)).
		Str("pnl", trade.Profit.StringFixed(2)).
		Float64("hold_hours", trade.HoldHours).
		Msg("📊 Position closed")
}

// ═══════════════════════════════════════════════════════════════════════════════
// FINALIZE
// ═══════════════════════════════════════════════════════════════════════════════

func (e *Engine) finalize(ctx context.Context, runID string, began time.Time) *Result {
	endAt := e.cfg.End.Add(e.cfg.ExitHorizon)

	open := e.pf.OpenPositions()
	if len(open) > 0 {
		for _, pos := range open {
			bars, _ := e.bars(ctx, pos.Ticker)
			e.exitPosition(pos, e.lastKnown(pos), endAt, types.ExitManual, bars)
		}
		e.pf.RecordEquityPoint(endAt, nil)
		ev := e.log.Info()
		if e.exits.MaxHold() > e.cfg.ExitHorizon {
			ev = e.log.Warn()
		}
		ev.Int("positions", len(open)).
			Dur("max_hold", e.exits.MaxHold()).
			Dur("exit_horizon", e.cfg.ExitHorizon).
			Msg("Closed remaining positions at last known price")
	}

	trades := e.pf.ClosedTrades()
	curve := e.pf.EquityCurve()
	daily := analytics.PeriodReturns(analytics.DailyCloses(curve))

	metrics := Metrics{
		Metrics:      e.pf.PerformanceMetrics(),
		SharpeRatio:  analytics.SharpeRatio(daily, e.cfg.RiskFreeRate, e.cfg.PeriodsPerYear),
		SortinoRatio: analytics.SortinoRatio(daily, e.cfg.RiskFreeRate, e.cfg.PeriodsPerYear),
		Drawdown:     analytics.MaxDrawdown(curve),
		WinRates:     analytics.WinRate(trades),
		Catalysts:    analytics.AnalyzeCatalystPerformance(trades),
	}

	hits, misses := e.prices.Stats()
	e.log.Debug().Int("cache_hits", hits).Int("cache_misses", misses).Msg("Price cache")

	return &Result{
		RunID:          runID,
		Params:         e.cfg.Params.Clone(),
		Period:         Period{Start: e.cfg.Start, End: e.cfg.End},
		InitialCapital: e.cfg.InitialCapital,
		Seed:           e.cfg.Seed,
		Trades:         trades,
		EquityCurve:    curve,
		Metrics:        metrics,
		Entries:        e.entries,
		StartedAt:      began,
		Duration:       time.Since(began),
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// PRICES
// ═══════════════════════════════════════════════════════════════════════════════

// bars loads the run window for ticker once per run through the cache
func (e *Engine) bars(ctx context.Context, ticker string) ([]types.Bar, error) {
	from := e.cfg.Start.Add(-e.cfg.PriceLookback)
	to := e.cfg.End.Add(e.cfg.ExitHorizon)
	return e.prices.LoadPriceData(ctx, ticker, from, to)
}

// priceAt is the close of the latest bar at or before t, with optional jitter
func (e *Engine) priceAt(bars []types.Bar, t time.Time) (decimal.Decimal, bool) {
	b, ok := feeds.BarAtOrBefore(bars, t)
	if !ok || !b.Close.IsPositive() {
		return decimal.Zero, false
	}
	if e.cfg.PriceJitterPct <= 0 {
		return b.Close, true
	}
	shock := (e.rng.Float64()*2 - 1) * e.cfg.PriceJitterPct
	px := b.Close.Mul(decimal.NewFromFloat(1 + shock)).Round(4)
	if !px.IsPositive() {
		return b.Close, true
	}
	return px, true
}

func (e *Engine) lastKnown(pos types.Position) decimal.Decimal {
	if px, ok := e.lastPrice[pos.Ticker]; ok {
		return px
	}
	return pos.EntryPrice
}
