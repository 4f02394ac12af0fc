package analytics

import (
	"math"
	"time"

	"github.com/Amenzel91/catalyst-bot-sub003/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RISK-ADJUSTED RETURNS - Sharpe / Sortino over a return series
// ═══════════════════════════════════════════════════════════════════════════════
//
// Annualization:
//   mean_ann = mean * periods
//   std_ann  = std * sqrt(periods)
//   ratio    = (mean_ann - risk_free) / std_ann
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	DefaultRiskFreeRate   = 0.02
	DefaultPeriodsPerYear = 252.0

	// MaxRatio stands in for an unbounded ratio (no losses, positive mean)
	MaxRatio = 999.0

	// deviations below this are float noise from a constant series
	varianceEpsilon = 1e-12
)

// SharpeRatio returns 0 for fewer than two returns or zero variance
func SharpeRatio(returns []float64, riskFreeRate, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	std := StdDev(returns)
	if std < varianceEpsilon || math.IsNaN(std) {
		return 0
	}
	annMean := Mean(returns) * periodsPerYear
	annStd := std * math.Sqrt(periodsPerYear)
	return (annMean - riskFreeRate) / annStd
}

// SortinoRatio is Sharpe with only downside deviation in the denominator.
// Without any negative return it is MaxRatio for a positive mean and 0
// otherwise.
func SortinoRatio(returns []float64, riskFreeRate, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}

	mean := Mean(returns)
	if len(downside) == 0 {
		if mean > 0 {
			return MaxRatio
		}
		return 0
	}

	// one negative return has no sample deviation
	downStd := StdDev(downside)
	if downStd < varianceEpsilon || math.IsNaN(downStd) {
		return 0
	}

	annMean := mean * periodsPerYear
	annDown := downStd * math.Sqrt(periodsPerYear)
	return (annMean - riskFreeRate) / annDown
}

// PeriodReturns converts an equity curve into simple period returns.
// Periods starting from a non-positive value are skipped.
func PeriodReturns(curve []types.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value.InexactFloat64()
		if prev <= 0 {
			continue
		}
		out = append(out, (curve[i].Value.InexactFloat64()-prev)/prev)
	}
	return out
}

// DailyCloses keeps the last point of each UTC calendar day so that
// hourly curves annualize with a trading-day period count
func DailyCloses(curve []types.EquityPoint) []types.EquityPoint {
	var out []types.EquityPoint
	for _, pt := range curve {
		day := pt.Timestamp.UTC().Truncate(24 * time.Hour)
		if n := len(out); n > 0 && out[n-1].Timestamp.UTC().Truncate(24*time.Hour).Equal(day) {
			out[n-1] = pt
			continue
		}
		out = append(out, pt)
	}
	return out
}

// Mean of a series, 0 when empty
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev is the sample standard deviation, 0 for fewer than two points
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// Variance is the sample variance
func Variance(xs []float64) float64 {
	s := StdDev(xs)
	return s * s
}
