package analytics

import (
	"math"
	"strings"

	"github.com/Amenzel91/catalyst-bot-sub003/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TRADE STATISTICS - Win rates, profit factor, catalyst rollups
// ═══════════════════════════════════════════════════════════════════════════════

// UnknownCatalyst labels trades whose alert carried no classification
const UnknownCatalyst = "unknown"

// Score buckets. 1.0 falls in the top bucket.
var ScoreBuckets = []string{"0.00-0.25", "0.25-0.50", "0.50-0.75", "0.75-1.00"}

// Hold-time buckets in hours
var HoldTimeBuckets = []string{"0-1h", "1-4h", "4-12h", "12-24h", ">24h"}

// BucketStats is a win/loss tally for one slice of trades
type BucketStats struct {
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	WinRate      float64 `json:"win_rate"`
	AvgReturnPct float64 `json:"avg_return_pct"`
}

// WinRateBreakdown is the overall win rate plus its slices
type WinRateBreakdown struct {
	Overall     float64                `json:"overall"`
	TotalTrades int                    `json:"total_trades"`
	Wins        int                    `json:"wins"`
	ByCatalyst  map[string]BucketStats `json:"by_catalyst"`
	ByScore     map[string]BucketStats `json:"by_score"`
	ByHoldTime  map[string]BucketStats `json:"by_hold_time"`
}

// CatalystStats summarizes trades sharing a catalyst type
type CatalystStats struct {
	Catalyst     string  `json:"catalyst"`
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	TotalProfit  float64 `json:"total_profit"`
	AvgReturnPct float64 `json:"avg_return_pct"`
	ProfitFactor float64 `json:"profit_factor"`
	AvgHoldHours float64 `json:"avg_hold_hours"`
}

// tally accumulates a bucket before rates are computed
type tally struct {
	trades    int
	wins      int
	returnSum float64
}

func (t *tally) add(tr types.ClosedTrade) {
	t.trades++
	if tr.IsWin() {
		t.wins++
	}
	t.returnSum += tr.ProfitPct
}

func (t tally) stats() BucketStats {
	s := BucketStats{Trades: t.trades, Wins: t.wins}
	if t.trades > 0 {
		s.WinRate = float64(t.wins) / float64(t.trades)
		s.AvgReturnPct = t.returnSum / float64(t.trades)
	}
	return s
}

// WinRate breaks win rate down by catalyst, score bucket and hold time
func WinRate(trades []types.ClosedTrade) WinRateBreakdown {
	var overall tally
	byCatalyst := map[string]*tally{}
	byScore := map[string]*tally{}
	byHold := map[string]*tally{}
	for _, b := range ScoreBuckets {
		byScore[b] = &tally{}
	}
	for _, b := range HoldTimeBuckets {
		byHold[b] = &tally{}
	}

	for _, tr := range trades {
		overall.add(tr)

		cat := CatalystOf(tr)
		if byCatalyst[cat] == nil {
			byCatalyst[cat] = &tally{}
		}
		byCatalyst[cat].add(tr)
		byScore[ScoreBucket(tr.Context.Score)].add(tr)
		byHold[HoldTimeBucket(tr.HoldHours)].add(tr)
	}

	out := WinRateBreakdown{
		TotalTrades: overall.trades,
		Wins:        overall.wins,
		Overall:     overall.stats().WinRate,
		ByCatalyst:  make(map[string]BucketStats, len(byCatalyst)),
		ByScore:     make(map[string]BucketStats, len(byScore)),
		ByHoldTime:  make(map[string]BucketStats, len(byHold)),
	}
	for k, v := range byCatalyst {
		out.ByCatalyst[k] = v.stats()
	}
	for k, v := range byScore {
		out.ByScore[k] = v.stats()
	}
	for k, v := range byHold {
		out.ByHoldTime[k] = v.stats()
	}
	return out
}

// ScoreBucket maps an alert score to its bucket label
func ScoreBucket(score float64) string {
	switch {
	case score < 0.25:
		return ScoreBuckets[0]
	case score < 0.50:
		return ScoreBuckets[1]
	case score < 0.75:
		return ScoreBuckets[2]
	default:
		return ScoreBuckets[3]
	}
}

// HoldTimeBucket maps hold hours to its bucket label
func HoldTimeBucket(hours float64) string {
	switch {
	case hours < 1:
		return HoldTimeBuckets[0]
	case hours < 4:
		return HoldTimeBuckets[1]
	case hours < 12:
		return HoldTimeBuckets[2]
	case hours < 24:
		return HoldTimeBuckets[3]
	default:
		return HoldTimeBuckets[4]
	}
}

// CatalystOf returns the normalized catalyst label of a trade
func CatalystOf(tr types.ClosedTrade) string {
	c := strings.ToLower(strings.TrimSpace(tr.Context.CatalystType))
	if c == "" {
		return UnknownCatalyst
	}
	return c
}

// ProfitFactor is gross profit over gross loss. With no losses it is the
// gross profit itself (0 when nothing was profitable either).
func ProfitFactor(trades []types.ClosedTrade) float64 {
	var gain, loss float64
	for _, t := range trades {
		p := t.Profit.InexactFloat64()
		if p > 0 {
			gain += p
		} else if p < 0 {
			loss += -p
		}
	}
	if loss == 0 {
		return gain
	}
	return gain / loss
}

// AnalyzeCatalystPerformance rolls trades up per catalyst type
func AnalyzeCatalystPerformance(trades []types.ClosedTrade) map[string]CatalystStats {
	groups := map[string][]types.ClosedTrade{}
	for _, tr := range trades {
		c := CatalystOf(tr)
		groups[c] = append(groups[c], tr)
	}

	out := make(map[string]CatalystStats, len(groups))
	for cat, group := range groups {
		st := CatalystStats{Catalyst: cat, Trades: len(group)}
		var retSum, holdSum float64
		for _, tr := range group {
			if tr.IsWin() {
				st.Wins++
			} else {
				st.Losses++
			}
			st.TotalProfit += tr.Profit.InexactFloat64()
			retSum += tr.ProfitPct
			holdSum += tr.HoldHours
		}
		n := float64(len(group))
		st.WinRate = float64(st.Wins) / n
		st.AvgReturnPct = retSum / n
		st.AvgHoldHours = holdSum / n
		st.ProfitFactor = ProfitFactor(group)
		st.TotalProfit = math.Round(st.TotalProfit*100) / 100
		out[cat] = st
	}
	return out
}

// TradeReturns extracts per-trade return percentages
func TradeReturns(trades []types.ClosedTrade) []float64 {
	out := make([]float64, len(trades))
	for i, t := range trades {
		out[i] = t.ProfitPct
	}
	return out
}
