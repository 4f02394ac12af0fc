package analytics

import (
	"time"

	"github.com/Amenzel91/catalyst-bot-sub003/types"
)

// recoveryTolerance: a drawdown counts as recovered within 1% of its peak
const recoveryTolerance = 0.99

// DrawdownInfo describes the deepest peak-to-trough decline of a curve
type DrawdownInfo struct {
	MaxDrawdownPct       float64   `json:"max_drawdown_pct"`
	PeakValue            float64   `json:"peak_value"`
	PeakDate             time.Time `json:"peak_date"`
	TroughValue          float64   `json:"trough_value"`
	TroughDate           time.Time `json:"trough_date"`
	DrawdownDurationDays float64   `json:"drawdown_duration_days"`
	Recovered            bool      `json:"recovered"`
	RecoveryDate         time.Time `json:"recovery_date,omitempty"`
	RecoveryDurationDays float64   `json:"recovery_duration_days"`
}

// MaxDrawdown walks the curve once, tracking the running peak. Each new
// maximum drawdown records its peak and trough and restarts recovery
// tracking.
func MaxDrawdown(curve []types.EquityPoint) DrawdownInfo {
	var info DrawdownInfo
	if len(curve) == 0 {
		return info
	}

	runningPeak := curve[0].Value.InexactFloat64()
	runningPeakDate := curve[0].Timestamp
	info.PeakValue = runningPeak
	info.PeakDate = runningPeakDate
	info.TroughValue = runningPeak
	info.TroughDate = runningPeakDate

	maxDD := 0.0
	for _, pt := range curve {
		value := pt.Value.InexactFloat64()

		if value > runningPeak {
			runningPeak = value
			runningPeakDate = pt.Timestamp
		}

		dd := 0.0
		if runningPeak > 0 {
			dd = (runningPeak - value) / runningPeak
		}

		if dd > maxDD {
			maxDD = dd
			info.PeakValue = runningPeak
			info.PeakDate = runningPeakDate
			info.TroughValue = value
			info.TroughDate = pt.Timestamp
			info.Recovered = false
			info.RecoveryDate = time.Time{}
			continue
		}

		if maxDD > 0 && !info.Recovered && value >= info.PeakValue*recoveryTolerance {
			info.Recovered = true
			info.RecoveryDate = pt.Timestamp
		}
	}

	info.MaxDrawdownPct = maxDD * 100
	if maxDD > 0 {
		info.DrawdownDurationDays = days(info.TroughDate.Sub(info.PeakDate))
		if info.Recovered {
			info.RecoveryDurationDays = days(info.RecoveryDate.Sub(info.TroughDate))
		}
	}
	return info
}

func days(d time.Duration) float64 {
	return d.Hours() / 24
}
