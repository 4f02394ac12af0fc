package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Amenzel91/catalyst-bot-sub003/analytics"
	"github.com/Amenzel91/catalyst-bot-sub003/core"
	"github.com/Amenzel91/catalyst-bot-sub003/strategy"
)

// WalkForwardConfig describes rolling train/test windows ending at Now.
// With Parameter set, each train window picks the Values entry with the
// best Sharpe and the test window runs with it.
type WalkForwardConfig struct {
	Windows   int
	TrainDays int
	TestDays  int
	Parameter string
	Values    []float64
}

// WalkForwardWindow is one train/test pair
type WalkForwardWindow struct {
	RunID          string    `json:"run_id"`
	Index          int       `json:"index"`
	TrainStart     time.Time `json:"train_start"`
	TrainEnd       time.Time `json:"train_end"`
	TestStart      time.Time `json:"test_start"`
	TestEnd        time.Time `json:"test_end"`
	Parameter      string    `json:"parameter,omitempty"`
	ChosenValue    float64   `json:"chosen_value"`
	TrainSharpe    float64   `json:"train_sharpe"`
	TrainReturnPct float64   `json:"train_return_pct"`
	TestSharpe     float64   `json:"test_sharpe"`
	TestReturnPct  float64   `json:"test_return_pct"`
	TestTrades     int       `json:"test_trades"`
	Efficiency     float64   `json:"efficiency"` // test return / train return
}

// WalkForwardResult aggregates the windows
type WalkForwardResult struct {
	RunID          string              `json:"run_id"`
	Windows        []WalkForwardWindow `json:"windows"`
	Failed         int                 `json:"failed"`
	MeanTestSharpe float64             `json:"mean_test_sharpe"`
	MeanTestReturn float64             `json:"mean_test_return_pct"`
	Consistency    float64             `json:"consistency"` // share of windows with a positive test return
}

// WalkForward runs rolling out-of-sample checks. Windows whose backtests
// fail are skipped; an error is returned only when none succeed.
func (v *Validator) WalkForward(ctx context.Context, wf WalkForwardConfig) (*WalkForwardResult, error) {
	if wf.Windows <= 0 || wf.TrainDays <= 0 || wf.TestDays <= 0 {
		return nil, fmt.Errorf("walk-forward: windows, train and test days must be positive")
	}
	if wf.Parameter != "" && len(wf.Values) == 0 {
		return nil, fmt.Errorf("walk-forward: no values for %s", wf.Parameter)
	}

	day := 24 * time.Hour
	train := time.Duration(wf.TrainDays) * day
	test := time.Duration(wf.TestDays) * day
	end := v.Now()
	origin := end.Add(-train - time.Duration(wf.Windows)*test)

	res := &WalkForwardResult{RunID: newRunID()}
	log.Info().
		Int("windows", wf.Windows).
		Int("train_days", wf.TrainDays).
		Int("test_days", wf.TestDays).
		Str("param", wf.Parameter).
		Msg("🔁 Walk-forward started")

	var testSharpes, testReturns []float64
	positive := 0
	for i := 0; i < wf.Windows; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w := WalkForwardWindow{
			RunID:      res.RunID,
			Index:      i,
			TrainStart: origin.Add(time.Duration(i) * test),
			Parameter:  wf.Parameter,
		}
		w.TrainEnd = w.TrainStart.Add(train)
		w.TestStart = w.TrainEnd
		w.TestEnd = w.TestStart.Add(test)

		if err := v.runWindow(ctx, wf, &w); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			res.Failed++
			log.Warn().Err(err).Int("window", i).Msg("Walk-forward window failed")
			continue
		}

		res.Windows = append(res.Windows, w)
		testSharpes = append(testSharpes, w.TestSharpe)
		testReturns = append(testReturns, w.TestReturnPct)
		if w.TestReturnPct > 0 {
			positive++
		}

		if v.store != nil {
			if err := v.store.SaveWalkForwardWindow(ctx, &w); err != nil {
				log.Error().Err(err).Int("window", i).Msg("Failed to save walk-forward window")
			}
		}
	}

	if len(res.Windows) == 0 {
		return nil, errors.New("walk-forward: every window failed")
	}
	res.MeanTestSharpe = analytics.Mean(testSharpes)
	res.MeanTestReturn = analytics.Mean(testReturns)
	res.Consistency = float64(positive) / float64(len(res.Windows))

	log.Info().
		Int("windows", len(res.Windows)).
		Int("failed", res.Failed).
		Float64("mean_test_sharpe", res.MeanTestSharpe).
		Float64("mean_test_return_pct", res.MeanTestReturn).
		Float64("consistency", res.Consistency).
		Msg("🔁 Walk-forward complete")
	return res, nil
}

func (v *Validator) runWindow(ctx context.Context, wf WalkForwardConfig, w *WalkForwardWindow) error {
	params := v.cfg.Base.Params
	var trainRes *core.Result

	if wf.Parameter == "" {
		r, err := v.run(ctx, v.windowConfig(params, w.TrainStart, w.TrainEnd))
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}
		trainRes = r
	} else {
		best, chosen, err := v.bestOnTrain(ctx, wf, w)
		if err != nil {
			return err
		}
		trainRes = best
		params = chosen
		w.ChosenValue, _ = chosen.Get(wf.Parameter)
	}

	testRes, err := v.run(ctx, v.windowConfig(params, w.TestStart, w.TestEnd))
	if err != nil {
		return fmt.Errorf("test: %w", err)
	}

	w.TrainSharpe = trainRes.Metrics.SharpeRatio
	w.TrainReturnPct = trainRes.Metrics.TotalReturnPct
	w.TestSharpe = testRes.Metrics.SharpeRatio
	w.TestReturnPct = testRes.Metrics.TotalReturnPct
	w.TestTrades = testRes.Metrics.TotalTrades
	if w.TrainReturnPct != 0 {
		w.Efficiency = w.TestReturnPct / w.TrainReturnPct
	}
	return nil
}

// bestOnTrain runs every candidate value on the train window and keeps the
// highest Sharpe, the first on ties
func (v *Validator) bestOnTrain(ctx context.Context, wf WalkForwardConfig, w *WalkForwardWindow) (*core.Result, strategy.Params, error) {
	var best *core.Result
	var bestParams strategy.Params
	var lastErr error
	for _, val := range wf.Values {
		p, err := v.cfg.Base.Params.Set(wf.Parameter, val)
		if err != nil {
			return nil, p, err
		}
		r, err := v.run(ctx, v.windowConfig(p, w.TrainStart, w.TrainEnd))
		if err != nil {
			lastErr = err
			continue
		}
		if best == nil || r.Metrics.SharpeRatio > best.Metrics.SharpeRatio {
			best, bestParams = r, p
		}
	}
	if best == nil {
		return nil, bestParams, fmt.Errorf("train: no candidate succeeded: %w", lastErr)
	}
	return best, bestParams, nil
}

func (v *Validator) windowConfig(p strategy.Params, start, end time.Time) core.Config {
	cfg := v.cfg.Base
	cfg.Params = p
	cfg.Start, cfg.End = start, end
	return cfg
}
