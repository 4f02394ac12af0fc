package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Amenzel91/catalyst-bot-sub003/analytics"
	"github.com/Amenzel91/catalyst-bot-sub003/core"
	"github.com/Amenzel91/catalyst-bot-sub003/feeds"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MONTE CARLO - Parameter sensitivity over repeated backtests
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every simulation is an independent engine run with its own portfolio and
// price cache. Results land in pre-indexed slots, so output order never
// depends on worker scheduling.
//
// ═══════════════════════════════════════════════════════════════════════════════

// DefaultJitterPct is the price noise used when a sweep is randomized
const DefaultJitterPct = 0.02

// Config holds simulator settings
type Config struct {
	Base      core.Config // template run; swept parameters override Base.Params
	Workers   int         // concurrent runs, default: 1
	Seed      int64       // root seed for jitter and sampling
	JitterPct float64     // price noise for randomized sweeps, default: 0.02
}

type Simulator struct {
	cfg Config
	run core.RunFunc
	rng *rand.Rand
}

// NewSimulator runs backtests against the given sources
func NewSimulator(cfg Config, alerts feeds.AlertSource, prices feeds.PriceSource) *Simulator {
	return NewSimulatorWithRunner(cfg, core.Runner(alerts, prices, nil))
}

// NewSimulatorWithRunner uses run for every simulation
func NewSimulatorWithRunner(cfg Config, run core.RunFunc) *Simulator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.JitterPct <= 0 {
		cfg.JitterPct = DefaultJitterPct
	}
	return &Simulator{
		cfg: cfg,
		run: run,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// outcome is one slot of a batch
type outcome struct {
	res *core.Result
	err error
}

// runAll executes cfgs on the worker pool. Individual run failures are kept
// in their slot; only cancellation fails the batch.
func (s *Simulator) runAll(ctx context.Context, cfgs []core.Config) ([]outcome, error) {
	out := make([]outcome, len(cfgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := range cfgs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.run(gctx, cfgs[i])
			out[i] = outcome{res: res, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// DISTRIBUTIONS
// ═══════════════════════════════════════════════════════════════════════════════

// Distribution summarizes a sample
type Distribution struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	P5   float64 `json:"p5"`
	P25  float64 `json:"p25"`
	P50  float64 `json:"p50"`
	P75  float64 `json:"p75"`
	P95  float64 `json:"p95"`
}

// Summarize computes a Distribution; the zero value for an empty sample
func Summarize(xs []float64) Distribution {
	if len(xs) == 0 {
		return Distribution{}
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return Distribution{
		Mean: analytics.Mean(xs),
		Std:  analytics.StdDev(xs),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		P5:   analytics.Percentile(sorted, 5),
		P25:  analytics.Percentile(sorted, 25),
		P50:  analytics.Percentile(sorted, 50),
		P75:  analytics.Percentile(sorted, 75),
		P95:  analytics.Percentile(sorted, 95),
	}
}

// PercentileRank is the percent of baseline values at or below value
func PercentileRank(baseline []float64, value float64) float64 {
	if len(baseline) == 0 {
		return 0
	}
	n := 0
	for _, b := range baseline {
		if b <= value {
			n++
		}
	}
	return float64(n) / float64(len(baseline)) * 100
}

// ErrNoSuccessfulRuns is returned when every run of a batch failed
var ErrNoSuccessfulRuns = errors.New("no successful runs")

func firstErr(outs []outcome) error {
	for _, o := range outs {
		if o.err != nil {
			return o.err
		}
	}
	return nil
}

func wrapNoRuns(outs []outcome) error {
	if err := firstErr(outs); err != nil {
		return fmt.Errorf("%w: %v", ErrNoSuccessfulRuns, err)
	}
	return ErrNoSuccessfulRuns
}

func logFailures(what string, outs []outcome) {
	failed := 0
	for _, o := range outs {
		if o.err != nil {
			failed++
		}
	}
	if failed > 0 {
		log.Warn().Str("batch", what).Int("failed", failed).Int("total", len(outs)).Err(firstErr(outs)).Msg("Some simulations failed")
	}
}
