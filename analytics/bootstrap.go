package analytics

import (
	"math"
	"math/rand"
	"sort"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BOOTSTRAP - Resampled confidence intervals and significance
// ═══════════════════════════════════════════════════════════════════════════════

// ConfidenceInterval is a two-sided interval around a sample mean
type ConfidenceInterval struct {
	Mean  float64 `json:"mean"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Level float64 `json:"level"`
}

// BootstrapMeanCI resamples with replacement and takes percentile bounds of
// the resampled means. Fewer than two samples give a degenerate interval.
func BootstrapMeanCI(samples []float64, iterations int, level float64, rng *rand.Rand) ConfidenceInterval {
	ci := ConfidenceInterval{Mean: Mean(samples), Level: level}
	if len(samples) < 2 || iterations <= 0 {
		ci.Lower, ci.Upper = ci.Mean, ci.Mean
		return ci
	}

	means := make([]float64, iterations)
	for i := range means {
		means[i] = resampleMean(samples, rng)
	}
	sort.Float64s(means)

	alpha := (1 - level) / 2
	ci.Lower = Percentile(means, alpha*100)
	ci.Upper = Percentile(means, (1-alpha)*100)
	return ci
}

// BootstrapPValue tests whether mean(b) differs from mean(a). Both samples
// are shifted onto the pooled mean to model the null, and the p-value is the
// share of resampled differences at least as extreme as the observed one.
func BootstrapPValue(a, b []float64, iterations int, rng *rand.Rand) float64 {
	if len(a) < 2 || len(b) < 2 || iterations <= 0 {
		return 1
	}

	observed := math.Abs(Mean(b) - Mean(a))
	pooled := Mean(append(append([]float64{}, a...), b...))

	shiftA := shift(a, pooled-Mean(a))
	shiftB := shift(b, pooled-Mean(b))

	extreme := 0
	for i := 0; i < iterations; i++ {
		diff := math.Abs(resampleMean(shiftB, rng) - resampleMean(shiftA, rng))
		if diff >= observed {
			extreme++
		}
	}
	return float64(extreme+1) / float64(iterations+1)
}

// Percentile uses linear interpolation over sorted data, p in [0,100]
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func resampleMean(xs []float64, rng *rand.Rand) float64 {
	var sum float64
	for range xs {
		sum += xs[rng.Intn(len(xs))]
	}
	return sum / float64(len(xs))
}

func shift(xs []float64, by float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x + by
	}
	return out
}
