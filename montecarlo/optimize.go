package montecarlo

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Amenzel91/catalyst-bot-sub003/core"
)

// Optimization targets
const (
	MetricSharpe       = "sharpe_ratio"
	MetricTotalReturn  = "total_return_pct"
	MetricWinRate      = "win_rate"
	MetricProfitFactor = "profit_factor"
)

// sampling gives up after this many draws per requested combination
const maxDrawsPerSample = 20

// Trial is one evaluated parameter combination
type Trial struct {
	Params         map[string]float64 `json:"params"`
	Score          float64            `json:"score"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
	TotalReturnPct float64            `json:"total_return_pct"`
	WinRate        float64            `json:"win_rate"`
	ProfitFactor   float64            `json:"profit_factor"`
	Trades         int                `json:"trades"`
	Err            string             `json:"error,omitempty"`
}

// OptimizationResult holds every trial and the winner
type OptimizationResult struct {
	Metric     string             `json:"metric"`
	Exhaustive bool               `json:"exhaustive"`
	Trials     []Trial            `json:"trials"`
	Best       Trial              `json:"best"`
	BestParams map[string]float64 `json:"best_params"`
}

// OptimizeMultiParameter searches grid for the combination maximizing
// metric. The full Cartesian product is evaluated when it has at most
// numIterations points, otherwise numIterations distinct random points.
func (s *Simulator) OptimizeMultiParameter(ctx context.Context, grid map[string][]float64, numIterations int, metric string) (*OptimizationResult, error) {
	if _, err := metricOf(&core.Result{}, metric); err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("optimize: empty grid")
	}
	if numIterations <= 0 {
		numIterations = 1
	}

	names := make([]string, 0, len(grid))
	for n, vals := range grid {
		if len(vals) == 0 {
			return nil, fmt.Errorf("optimize: no values for %s", n)
		}
		names = append(names, n)
	}
	sort.Strings(names)

	total := 1
	exhaustive := true
	for _, n := range names {
		total *= len(grid[n])
		if total > numIterations {
			exhaustive = false
			break
		}
	}

	var combos []map[string]float64
	if exhaustive {
		combos = cartesian(names, grid)
	} else {
		combos = s.sample(names, grid, numIterations)
	}

	log.Info().
		Strs("params", names).
		Int("combinations", len(combos)).
		Bool("exhaustive", exhaustive).
		Str("metric", metric).
		Msg("🔍 Optimizing parameters")

	cfgs := make([]core.Config, 0, len(combos))
	trials := make([]Trial, len(combos))
	valid := make([]int, 0, len(combos))
	for i, c := range combos {
		trials[i].Params = c
		params, err := s.cfg.Base.Params.SetAll(c)
		if err == nil {
			err = params.Validate()
		}
		if err != nil {
			trials[i].Err = err.Error()
			continue
		}
		cfg := s.cfg.Base
		cfg.Params = params
		cfgs = append(cfgs, cfg)
		valid = append(valid, i)
	}

	outs, err := s.runAll(ctx, cfgs)
	if err != nil {
		return nil, err
	}
	logFailures("optimize", outs)

	result := &OptimizationResult{Metric: metric, Exhaustive: exhaustive}
	best := -1
	for k, o := range outs {
		i := valid[k]
		if o.err != nil {
			trials[i].Err = o.err.Error()
			continue
		}
		m := o.res.Metrics
		trials[i].SharpeRatio = m.SharpeRatio
		trials[i].TotalReturnPct = m.TotalReturnPct
		trials[i].WinRate = m.WinRate
		trials[i].ProfitFactor = m.ProfitFactor
		trials[i].Trades = m.TotalTrades
		trials[i].Score, _ = metricOf(o.res, metric)

		if best < 0 || trials[i].Score > trials[best].Score {
			best = i
		}
	}
	result.Trials = trials
	if best < 0 {
		return nil, fmt.Errorf("optimize: %w", wrapNoRuns(outs))
	}
	result.Best = trials[best]
	result.BestParams = trials[best].Params

	log.Info().
		Str("metric", metric).
		Float64("score", result.Best.Score).
		Str("params", comboKey(names, result.BestParams)).
		Msg("🏆 Best combination")
	return result, nil
}

func metricOf(r *core.Result, metric string) (float64, error) {
	switch metric {
	case MetricSharpe:
		return r.Metrics.SharpeRatio, nil
	case MetricTotalReturn:
		return r.Metrics.TotalReturnPct, nil
	case MetricWinRate:
		return r.Metrics.WinRate, nil
	case MetricProfitFactor:
		return r.Metrics.ProfitFactor, nil
	}
	return 0, fmt.Errorf("unknown optimization metric %q", metric)
}

// cartesian enumerates grid with the last name varying fastest
func cartesian(names []string, grid map[string][]float64) []map[string]float64 {
	idx := make([]int, len(names))
	var out []map[string]float64
	for {
		c := make(map[string]float64, len(names))
		for k, n := range names {
			c[n] = grid[n][idx[k]]
		}
		out = append(out, c)

		k := len(names) - 1
		for k >= 0 {
			idx[k]++
			if idx[k] < len(grid[names[k]]) {
				break
			}
			idx[k] = 0
			k--
		}
		if k < 0 {
			return out
		}
	}
}

// sample draws up to n distinct random combinations from grid
func (s *Simulator) sample(names []string, grid map[string][]float64, n int) []map[string]float64 {
	seen := make(map[string]struct{}, n)
	var out []map[string]float64
	for draws := 0; len(out) < n && draws < n*maxDrawsPerSample; draws++ {
		c := make(map[string]float64, len(names))
		for _, name := range names {
			vals := grid[name]
			c[name] = vals[s.rng.Intn(len(vals))]
		}
		key := comboKey(names, c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func comboKey(names []string, c map[string]float64) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + strconv.FormatFloat(c[n], 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
