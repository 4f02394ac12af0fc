package montecarlo

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/Amenzel91/catalyst-bot-sub003/analytics"
	"github.com/Amenzel91/catalyst-bot-sub003/core"
)

// ValueStats aggregates the runs of one swept value
type ValueStats struct {
	Value         float64 `json:"value"`
	Runs          int     `json:"runs"`
	Failed        int     `json:"failed"`
	MeanSharpe    float64 `json:"mean_sharpe"`
	StdSharpe     float64 `json:"std_sharpe"`
	BestSharpe    float64 `json:"best_sharpe"`
	WorstSharpe   float64 `json:"worst_sharpe"`
	MeanReturnPct float64 `json:"mean_return_pct"`
	StdReturnPct  float64 `json:"std_return_pct"`
	MeanWinRate   float64 `json:"mean_win_rate"`
	MeanTrades    float64 `json:"mean_trades"`

	returns []float64
}

// SweepResult is the outcome of a single-parameter sweep
type SweepResult struct {
	Parameter     string       `json:"parameter"`
	Simulations   int          `json:"simulations"`
	Randomized    bool         `json:"randomized"`
	Values        []ValueStats `json:"values"` // input order, failed values excluded
	OptimalValue  float64      `json:"optimal_value"`
	OptimalSharpe float64      `json:"optimal_sharpe"`
	Confidence    float64      `json:"confidence"`
}

// ParameterSweep runs numSimulations backtests for each value of param.
// Randomized sweeps jitter prices with a distinct seed per simulation. The
// optimum is the value with the highest mean Sharpe, the first on ties.
func (s *Simulator) ParameterSweep(ctx context.Context, param string, values []float64, numSimulations int, randomize bool) (*SweepResult, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("sweep %s: no values", param)
	}
	if numSimulations <= 0 {
		numSimulations = 1
	}

	log.Info().
		Str("param", param).
		Int("values", len(values)).
		Int("simulations", numSimulations).
		Bool("randomize", randomize).
		Int("workers", s.cfg.Workers).
		Msg("🎲 Running parameter sweep")

	var cfgs []core.Config
	var slotValue []int
	for i, v := range values {
		params, err := s.cfg.Base.Params.Set(param, v)
		if err != nil {
			return nil, fmt.Errorf("sweep %s: %w", param, err)
		}
		if err := params.Validate(); err != nil {
			log.Warn().Err(err).Str("param", param).Float64("value", v).Msg("Skipping invalid sweep value")
			continue
		}
		for j := 0; j < numSimulations; j++ {
			cfg := s.cfg.Base
			cfg.Params = params
			if randomize {
				cfg.Seed = s.cfg.Seed + int64(i*numSimulations+j) + 1
				cfg.PriceJitterPct = s.cfg.JitterPct
			}
			cfgs = append(cfgs, cfg)
			slotValue = append(slotValue, i)
		}
	}

	outs, err := s.runAll(ctx, cfgs)
	if err != nil {
		return nil, err
	}
	logFailures("sweep "+param, outs)

	stats := make([]*ValueStats, len(values))
	sharpes := make([][]float64, len(values))
	winRates := make([][]float64, len(values))
	trades := make([][]float64, len(values))
	for k, o := range outs {
		i := slotValue[k]
		if stats[i] == nil {
			stats[i] = &ValueStats{Value: values[i]}
		}
		if o.err != nil {
			stats[i].Failed++
			continue
		}
		m := o.res.Metrics
		stats[i].Runs++
		sharpes[i] = append(sharpes[i], m.SharpeRatio)
		stats[i].returns = append(stats[i].returns, m.TotalReturnPct)
		winRates[i] = append(winRates[i], m.WinRate)
		trades[i] = append(trades[i], float64(m.TotalTrades))
	}

	result := &SweepResult{
		Parameter:   param,
		Simulations: numSimulations,
		Randomized:  randomize,
	}
	best := -1
	for i, st := range stats {
		if st == nil || st.Runs == 0 {
			continue
		}
		sh := Summarize(sharpes[i])
		st.MeanSharpe, st.StdSharpe = sh.Mean, sh.Std
		st.BestSharpe, st.WorstSharpe = sh.Max, sh.Min
		st.MeanReturnPct = analytics.Mean(st.returns)
		st.StdReturnPct = analytics.StdDev(st.returns)
		st.MeanWinRate = analytics.Mean(winRates[i])
		st.MeanTrades = analytics.Mean(trades[i])

		result.Values = append(result.Values, *st)
		if best < 0 || st.MeanSharpe > result.Values[best].MeanSharpe {
			best = len(result.Values) - 1
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("sweep %s: %w", param, wrapNoRuns(outs))
	}

	opt := result.Values[best]
	result.OptimalValue = opt.Value
	result.OptimalSharpe = opt.MeanSharpe
	result.Confidence = Confidence(opt.returns)

	result.LogSummary()
	return result, nil
}

// Confidence maps the spread of returns to (0,1]; identical returns give 1
func Confidence(returnsPct []float64) float64 {
	v := analytics.Variance(returnsPct)
	if math.IsNaN(v) {
		return 0
	}
	return 1 / (1 + v/100)
}

// LogSummary prints the sweep table
func (r *SweepResult) LogSummary() {
	log.Info().Msg("╔══════════════════════════════════════════════════════════════╗")
	log.Info().Msgf("║  SWEEP: %-52s ║", r.Parameter)
	log.Info().Msg("╠══════════════════════════════════════════════════════════════╣")
	log.Info().Msg("║     value │  sharpe │  ±std  │ return%  │ win rate │ runs     ║")
	for _, v := range r.Values {
		log.Info().Msgf("║  %8.4f │ %7.3f │ %6.3f │ %8.2f │ %7.1f%% │ %3d/%-3d  ║",
			v.Value, v.MeanSharpe, v.StdSharpe, v.MeanReturnPct, v.MeanWinRate*100, v.Runs, v.Runs+v.Failed)
	}
	log.Info().Msg("╠══════════════════════════════════════════════════════════════╣")
	log.Info().Msgf("║  Optimal: %-10.4f  Sharpe: %-8.3f  Confidence: %-6.3f   ║", r.OptimalValue, r.OptimalSharpe, r.Confidence)
	log.Info().Msg("╚══════════════════════════════════════════════════════════════╝")
}
