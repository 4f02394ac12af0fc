package montecarlo

import (
	"github.com/rs/zerolog/log"

	"github.com/Amenzel91/catalyst-bot-sub003/analytics"
)

// Random-walk trade model: most catalyst trades lose small, a few win big
const (
	walkLossProb   = 0.60
	walkLossMinPct = -20.0
	walkLossMaxPct = -2.0
	walkWinMinPct  = 2.0
	walkWinMaxPct  = 50.0
)

// WalkOutcome is one simulated trading sequence
type WalkOutcome struct {
	TotalReturnPct float64 `json:"total_return_pct"`
	WinRate        float64 `json:"win_rate"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
}

// RandomWalkResult is the baseline distribution a strategy is judged against
type RandomWalkResult struct {
	Simulations   int           `json:"simulations"`
	TradesPerSim  int           `json:"trades_per_sim"`
	Outcomes      []WalkOutcome `json:"-"`
	TotalReturn   Distribution  `json:"total_return_pct"`
	WinRate       Distribution  `json:"win_rate"`
	SharpeRatio   Distribution  `json:"sharpe_ratio"`
	ProbProfitPct float64       `json:"prob_profit_pct"`
}

// RandomWalkSimulation draws numTradesPerSim random trade returns per
// simulation. Each trade risks the base position size and compounds.
func (s *Simulator) RandomWalkSimulation(numSimulations, numTradesPerSim int) *RandomWalkResult {
	if numSimulations <= 0 {
		numSimulations = 1
	}
	if numTradesPerSim <= 0 {
		numTradesPerSim = 1
	}
	size := s.cfg.Base.Params.PositionSizePct
	if size <= 0 {
		size = 1
	}
	rf, periods := s.cfg.Base.RiskFreeRate, s.cfg.Base.PeriodsPerYear
	if periods <= 0 {
		periods = analytics.DefaultPeriodsPerYear
	}

	res := &RandomWalkResult{
		Simulations:  numSimulations,
		TradesPerSim: numTradesPerSim,
		Outcomes:     make([]WalkOutcome, numSimulations),
	}
	totals := make([]float64, numSimulations)
	winRates := make([]float64, numSimulations)
	sharpes := make([]float64, numSimulations)
	profitable := 0

	returns := make([]float64, numTradesPerSim)
	for i := 0; i < numSimulations; i++ {
		equity, wins := 1.0, 0
		for k := range returns {
			r := s.drawTradeReturn()
			if r > 0 {
				wins++
			}
			returns[k] = r / 100
			equity *= 1 + size*returns[k]
		}

		o := WalkOutcome{
			TotalReturnPct: (equity - 1) * 100,
			WinRate:        float64(wins) / float64(numTradesPerSim),
			SharpeRatio:    analytics.SharpeRatio(returns, rf, periods),
		}
		res.Outcomes[i] = o
		totals[i], winRates[i], sharpes[i] = o.TotalReturnPct, o.WinRate, o.SharpeRatio
		if o.TotalReturnPct > 0 {
			profitable++
		}
	}

	res.TotalReturn = Summarize(totals)
	res.WinRate = Summarize(winRates)
	res.SharpeRatio = Summarize(sharpes)
	res.ProbProfitPct = float64(profitable) / float64(numSimulations) * 100

	log.Info().
		Int("simulations", numSimulations).
		Int("trades", numTradesPerSim).
		Float64("median_return_pct", res.TotalReturn.P50).
		Float64("p95_return_pct", res.TotalReturn.P95).
		Float64("prob_profit_pct", res.ProbProfitPct).
		Msg("🎲 Random walk baseline complete")
	return res
}

// drawTradeReturn returns a trade return in percent
func (s *Simulator) drawTradeReturn() float64 {
	if s.rng.Float64() < walkLossProb {
		return walkLossMinPct + s.rng.Float64()*(walkLossMaxPct-walkLossMinPct)
	}
	return walkWinMinPct + s.rng.Float64()*(walkWinMaxPct-walkWinMinPct)
}

// ReturnPercentile ranks a strategy's total return against the baseline
func (r *RandomWalkResult) ReturnPercentile(returnPct float64) float64 {
	totals := make([]float64, len(r.Outcomes))
	for i, o := range r.Outcomes {
		totals[i] = o.TotalReturnPct
	}
	return PercentileRank(totals, returnPct)
}

// SharpePercentile ranks a strategy's Sharpe against the baseline
func (r *RandomWalkResult) SharpePercentile(sharpe float64) float64 {
	vals := make([]float64, len(r.Outcomes))
	for i, o := range r.Outcomes {
		vals[i] = o.SharpeRatio
	}
	return PercentileRank(vals, sharpe)
}
