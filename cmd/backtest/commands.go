package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Amenzel91/catalyst-bot-sub003/core"
	"github.com/Amenzel91/catalyst-bot-sub003/feeds"
	"github.com/Amenzel91/catalyst-bot-sub003/internal/config"
	"github.com/Amenzel91/catalyst-bot-sub003/montecarlo"
	"github.com/Amenzel91/catalyst-bot-sub003/storage"
	"github.com/Amenzel91/catalyst-bot-sub003/validation"
)

const dateLayout = "2006-01-02"

type app struct {
	cfg    *config.Config
	alerts feeds.AlertSource
	prices feeds.PriceSource
	db     *storage.Database
}

// window holds the shared -from/-to/-days flags
type window struct {
	from, to string
	days     int
}

func (w *window) register(fs *flag.FlagSet, defaultDays int) {
	fs.StringVar(&w.from, "from", "", "start date (YYYY-MM-DD), default: -days before -to")
	fs.StringVar(&w.to, "to", "", "end date (YYYY-MM-DD), default: now")
	fs.IntVar(&w.days, "days", defaultDays, "window length when -from is empty")
}

func (w *window) resolve() (time.Time, time.Time, error) {
	end := time.Now().UTC().Truncate(time.Hour)
	if w.to != "" {
		t, err := time.Parse(dateLayout, w.to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("-to: %w", err)
		}
		end = t
	}
	start := end.Add(-time.Duration(w.days) * 24 * time.Hour)
	if w.from != "" {
		t, err := time.Parse(dateLayout, w.from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("-from: %w", err)
		}
		start = t
	}
	return start, end, nil
}

func (a *app) recorder() core.Recorder {
	if a.db == nil {
		return nil
	}
	return a.db
}

func (a *app) simulator(base core.Config, workers int) *montecarlo.Simulator {
	return montecarlo.NewSimulator(montecarlo.Config{
		Base:      base,
		Workers:   workers,
		Seed:      a.cfg.Seed,
		JitterPct: a.cfg.JitterPct,
	}, a.alerts, a.prices)
}

// ═══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func (a *app) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var w window
	w.register(fs, a.cfg.BacktestDays)
	fs.Parse(args)

	start, end, err := w.resolve()
	if err != nil {
		return err
	}
	res, err := core.Runner(a.alerts, a.prices, a.recorder())(ctx, a.cfg.RunConfig(start, end))
	if err != nil {
		return err
	}
	logResult(res)
	return nil
}

func (a *app) sweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	var w window
	w.register(fs, a.cfg.BacktestDays)
	param := fs.String("param", "take_profit_pct", "parameter to sweep")
	values := fs.String("values", "0.10,0.15,0.20,0.25,0.30", "comma-separated values")
	sims := fs.Int("sims", 10, "simulations per value")
	randomize := fs.Bool("randomize", true, "jitter prices per simulation")
	workers := fs.Int("workers", a.cfg.Workers, "concurrent backtests")
	fs.Parse(args)

	start, end, err := w.resolve()
	if err != nil {
		return err
	}
	vals, err := parseFloats(*values)
	if err != nil {
		return err
	}
	_, err = a.simulator(a.cfg.RunConfig(start, end), *workers).ParameterSweep(ctx, *param, vals, *sims, *randomize)
	return err
}

func (a *app) optimize(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("optimize", flag.ExitOnError)
	var w window
	w.register(fs, a.cfg.BacktestDays)
	gridFlag := fs.String("grid", "take_profit_pct=0.1,0.2,0.3;stop_loss_pct=0.05,0.1", "name=v1,v2;name=v1,...")
	iterations := fs.Int("iterations", 50, "max combinations to evaluate")
	metric := fs.String("metric", montecarlo.MetricSharpe, "sharpe_ratio | total_return_pct | win_rate | profit_factor")
	workers := fs.Int("workers", a.cfg.Workers, "concurrent backtests")
	fs.Parse(args)

	start, end, err := w.resolve()
	if err != nil {
		return err
	}
	grid, err := parseGrid(*gridFlag)
	if err != nil {
		return err
	}
	res, err := a.simulator(a.cfg.RunConfig(start, end), *workers).OptimizeMultiParameter(ctx, grid, *iterations, *metric)
	if err != nil {
		return err
	}

	log.Info().Msg("╔══════════════════════════════════════════════════════════════╗")
	log.Info().Msgf("║  OPTIMIZE: %-49s ║", res.Metric)
	log.Info().Msg("╠══════════════════════════════════════════════════════════════╣")
	log.Info().Msgf("║  Trials: %-5d Exhaustive: %-30v ║", len(res.Trials), res.Exhaustive)
	log.Info().Msgf("║  Best score: %-47.4f ║", res.Best.Score)
	for _, name := range sortedKeys(res.BestParams) {
		log.Info().Msgf("║    %-22s = %-32.4f ║", name, res.BestParams[name])
	}
	log.Info().Msg("╚══════════════════════════════════════════════════════════════╝")
	return nil
}

func (a *app) validate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	param := fs.String("param", "", "parameter to change")
	oldVal := fs.Float64("old", 0, "current value")
	newVal := fs.Float64("new", 0, "proposed value")
	days := fs.Int("days", a.cfg.BacktestDays, "trailing backtest window")
	fs.Parse(args)

	if *param == "" {
		return errors.New("validate: -param is required")
	}
	v := a.validator()
	res, err := v.ValidateParameterChange(ctx, *param, *oldVal, *newVal, *days, a.cfg.InitialCapital)
	if err != nil {
		return err
	}

	log.Info().Msg("╔══════════════════════════════════════════════════════════════╗")
	log.Info().Msgf("║  Change: %-51s ║", fmt.Sprintf("%s %g → %g", *param, *oldVal, *newVal))
	log.Info().Msg("╠══════════════════════════════════════════════════════════════╣")
	log.Info().Msgf("║  Recommendation: %-10s Confidence: %-20.2f ║", res.Recommendation, res.Confidence)
	log.Info().Msgf("║  Score: %-52.2f ║", res.Score)
	log.Info().Msgf("║  Sharpe: %6.3f → %-6.3f  Return: %7.2f%% → %-7.2f%%       ║", res.Old.SharpeRatio, res.New.SharpeRatio, res.Old.TotalReturnPct, res.New.TotalReturnPct)
	log.Info().Msgf("║  Trades: %5d → %-5d  p-value: %-24.3f ║", res.Old.Trades, res.New.Trades, res.PValue)
	log.Info().Msg("╚══════════════════════════════════════════════════════════════╝")
	log.Info().Msg(res.Reason)
	return nil
}

func (a *app) walkForward(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("walkforward", flag.ExitOnError)
	windows := fs.Int("windows", 4, "number of train/test windows")
	train := fs.Int("train", 30, "train days per window")
	test := fs.Int("test", 7, "test days per window")
	param := fs.String("param", "", "optional parameter re-chosen on each train window")
	values := fs.String("values", "", "candidate values for -param")
	fs.Parse(args)

	wf := validation.WalkForwardConfig{Windows: *windows, TrainDays: *train, TestDays: *test, Parameter: *param}
	if *param != "" {
		vals, err := parseFloats(*values)
		if err != nil {
			return err
		}
		wf.Values = vals
	}

	res, err := a.validator().WalkForward(ctx, wf)
	if err != nil {
		return err
	}
	for _, w := range res.Windows {
		log.Info().
			Int("window", w.Index).
			Str("test", w.TestStart.Format(dateLayout)+".."+w.TestEnd.Format(dateLayout)).
			Float64("chosen", w.ChosenValue).
			Float64("train_sharpe", w.TrainSharpe).
			Float64("test_sharpe", w.TestSharpe).
			Float64("test_return_pct", w.TestReturnPct).
			Float64("efficiency", w.Efficiency).
			Msg("📊 Window")
	}
	return nil
}

func (a *app) baseline(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("baseline", flag.ExitOnError)
	var w window
	w.register(fs, a.cfg.BacktestDays)
	sims := fs.Int("sims", 1000, "random-walk simulations")
	trades := fs.Int("trades", 0, "trades per simulation, default: the strategy's trade count")
	fs.Parse(args)

	start, end, err := w.resolve()
	if err != nil {
		return err
	}
	rc := a.cfg.RunConfig(start, end)
	res, err := core.Runner(a.alerts, a.prices, a.recorder())(ctx, rc)
	if err != nil {
		return err
	}
	logResult(res)

	n := *trades
	if n <= 0 {
		n = max(res.Metrics.TotalTrades, 1)
	}
	walk := a.simulator(rc, 1).RandomWalkSimulation(*sims, n)

	log.Info().Msg("╔══════════════════════════════════════════════════════════════╗")
	log.Info().Msg("║  RANDOM BASELINE                                             ║")
	log.Info().Msg("╠══════════════════════════════════════════════════════════════╣")
	log.Info().Msgf("║  Simulations: %-6d Trades each: %-26d ║", walk.Simulations, walk.TradesPerSim)
	log.Info().Msgf("║  Return p5/p50/p95: %7.2f%% %7.2f%% %7.2f%%                ║", walk.TotalReturn.P5, walk.TotalReturn.P50, walk.TotalReturn.P95)
	log.Info().Msgf("║  Random profitable: %-40.1f ║", walk.ProbProfitPct)
	log.Info().Msgf("║  Strategy return percentile: %-31.1f ║", walk.ReturnPercentile(res.Metrics.TotalReturnPct))
	log.Info().Msgf("║  Strategy Sharpe percentile: %-31.1f ║", walk.SharpePercentile(res.Metrics.SharpeRatio))
	log.Info().Msg("╚══════════════════════════════════════════════════════════════╝")
	return nil
}

func (a *app) history(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 10, "runs to list")
	runID := fs.String("run", "", "show one run with its trades")
	fs.Parse(args)

	if a.db == nil {
		return errors.New("history: set PERSIST_RUNS=true to use the run store")
	}

	if *runID != "" {
		run, err := a.db.GetRun(ctx, *runID)
		if err != nil {
			return fmt.Errorf("run %s: %w", *runID, err)
		}
		trades, err := a.db.TradesForRun(ctx, *runID)
		if err != nil {
			return err
		}
		log.Info().
			Str("run", run.Run.ID).
			Str("strategy", run.Params.Name).
			Float64("take_profit_pct", run.Params.TakeProfitPct).
			Float64("stop_loss_pct", run.Params.StopLossPct).
			Float64("return_pct", run.Metrics.TotalReturnPct).
			Float64("sharpe", run.Metrics.SharpeRatio).
			Int("trades", run.Metrics.TotalTrades).
			Msg("📋 Run")
		for _, t := range trades {
			log.Info().
				Str("ticker", t.Ticker).
				Time("entry", t.EntryTime).
				Time("exit", t.ExitTime).
				Str("reason", t.ExitReason).
				Str("pnl", t.Profit.StringFixed(2)).
				Float64("pnl_pct", t.ProfitPct).
				Msg("  trade")
		}
		return nil
	}

	runs, err := a.db.RecentRuns(ctx, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		log.Info().Msg("No runs recorded")
	}
	for _, r := range runs {
		log.Info().
			Str("run", r.ID).
			Str("strategy", r.ParamsName).
			Str("params", r.ParamsHash[:12]).
			Str("period", r.PeriodStart.Format(dateLayout)+".."+r.PeriodEnd.Format(dateLayout)).
			Str("final", r.FinalValue.StringFixed(2)).
			Int("entered", r.Entered).
			Msg("📋 Run")
	}

	vals, err := a.db.RecentValidations(ctx, *limit)
	if err != nil {
		return err
	}
	for _, v := range vals {
		log.Info().
			Str("params", v.Parameters).
			Str("recommendation", v.Recommendation).
			Float64("confidence", v.Confidence).
			Float64("score", v.Score).
			Time("at", v.CreatedAt).
			Msg("🔬 Validation")
	}
	return nil
}

func (a *app) validator() *validation.Validator {
	v := validation.NewValidator(validation.Config{
		Base:                a.cfg.RunConfig(time.Now().UTC().Add(-24*time.Hour), time.Now().UTC()),
		MinTrades:           a.cfg.MinTrades,
		BootstrapIterations: a.cfg.BootstrapIterations,
		Seed:                a.cfg.Seed,
	}, a.alerts, a.prices)
	if a.db != nil {
		v.SetStore(a.db)
	}
	return v
}

// ═══════════════════════════════════════════════════════════════════════════════
// OUTPUT
// ═══════════════════════════════════════════════════════════════════════════════

func logResult(r *core.Result) {
	m := r.Metrics
	log.Info().Msg("╔══════════════════════════════════════════════════════════════╗")
	log.Info().Msgf("║  BACKTEST %-50s ║", r.RunID)
	log.Info().Msg("╠══════════════════════════════════════════════════════════════╣")
	log.Info().Msgf("║  Period: %-51s ║", fmt.Sprintf("%s → %s (%.0f days)", r.Period.Start.Format(dateLayout), r.Period.End.Format(dateLayout), r.Period.Days()))
	log.Info().Msgf("║  Capital: %-12s Final: %-29s ║", r.InitialCapital.StringFixed(2), m.FinalValue.StringFixed(2))
	log.Info().Msgf("║  Return: %-8.2f%% Profit: %-33s ║", m.TotalReturnPct, m.TotalProfit.StringFixed(2))
	log.Info().Msgf("║  Trades: %-5d Win rate: %-6.1f%% Profit factor: %-12.2f ║", m.TotalTrades, m.WinRate*100, m.ProfitFactor)
	log.Info().Msgf("║  Sharpe: %-8.3f Sortino: %-8.3f Max DD: %-13.2f%% ║", m.SharpeRatio, m.SortinoRatio, m.MaxDrawdownPct)
	log.Info().Msgf("║  Alerts: %-5d Entered: %-5d Avg hold: %-17.1fh ║", r.Entries.Alerts, r.Entries.Entered, m.AvgHoldHours)
	log.Info().Msg("╚══════════════════════════════════════════════════════════════╝")

	for _, name := range sortedKeys(m.Catalysts) {
		c := m.Catalysts[name]
		log.Info().
			Str("catalyst", name).
			Int("trades", c.Trades).
			Float64("win_rate", c.WinRate).
			Float64("avg_return_pct", c.AvgReturnPct).
			Float64("profit_factor", c.ProfitFactor).
			Msg("📈 Catalyst")
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// FLAG PARSING
// ═══════════════════════════════════════════════════════════════════════════════

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", part, err)
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, errors.New("no values given")
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseGrid reads "name=v1,v2;name=v1"
func parseGrid(s string) (map[string][]float64, error) {
	grid := map[string][]float64{}
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, vals, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("grid entry %q: want name=v1,v2", entry)
		}
		fs, err := parseFloats(vals)
		if err != nil {
			return nil, fmt.Errorf("grid %s: %w", name, err)
		}
		grid[strings.TrimSpace(name)] = fs
	}
	if len(grid) == 0 {
		return nil, errors.New("empty grid")
	}
	return grid, nil
}
