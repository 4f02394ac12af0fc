package feeds

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Amenzel91/catalyst-bot-sub003/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DATA SOURCES - Historical alerts and hourly bars
// ═══════════════════════════════════════════════════════════════════════════════
//
// Bars are stamped at their close. A price "at" t is the close of the latest
// bar stamped at or before t, so lookups never see the future.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ErrNoData is returned when a source has nothing for the request
var ErrNoData = errors.New("no data")

// AlertSource yields historical alerts
type AlertSource interface {
	LoadAlerts(ctx context.Context, start, end time.Time) ([]types.AlertRecord, error)
}

// PriceSource yields hourly bars
type PriceSource interface {
	LoadPriceData(ctx context.Context, ticker string, start, end time.Time) ([]types.Bar, error)
	GetPriceAtTime(ctx context.Context, ticker string, t time.Time) (decimal.Decimal, error)
}

// BarAtOrBefore returns the latest bar stamped at or before t.
// bars must be sorted by time.
func BarAtOrBefore(bars []types.Bar, t time.Time) (types.Bar, bool) {
	i := sort.Search(len(bars), func(i int) bool { return bars[i].Time.After(t) })
	if i == 0 {
		return types.Bar{}, false
	}
	return bars[i-1], true
}

// DailyVolume sums the volume of bars in the trailing 24h window (t-24h, t],
// so a session's first hour or a pre-market alert still sees the prior
// session's volume. nil when no bar falls in the window.
func DailyVolume(bars []types.Bar, t time.Time) *int64 {
	from := t.Add(-24 * time.Hour)
	var total int64
	found := false
	for _, b := range bars {
		if !b.Time.After(from) {
			continue
		}
		if b.Time.After(t) {
			break
		}
		total += b.Volume
		found = true
	}
	if !found {
		return nil
	}
	return &total
}

// VolatilityPct is the high-low range of the 24h before t as a percent of
// the low. nil with fewer than two bars or a non-positive low.
func VolatilityPct(bars []types.Bar, t time.Time) *float64 {
	from := t.Add(-24 * time.Hour)
	var hi, lo decimal.Decimal
	n := 0
	for _, b := range bars {
		if b.Time.Before(from) {
			continue
		}
		if b.Time.After(t) {
			break
		}
		if n == 0 || b.High.GreaterThan(hi) {
			hi = b.High
		}
		if n == 0 || b.Low.LessThan(lo) {
			lo = b.Low
		}
		n++
	}
	if n < 2 || !lo.IsPositive() {
		return nil
	}
	v := hi.Sub(lo).Div(lo).InexactFloat64() * 100
	return &v
}

// sliceBars returns the bars within [start, end]. bars must be sorted.
func sliceBars(bars []types.Bar, start, end time.Time) []types.Bar {
	lo := sort.Search(len(bars), func(i int) bool { return !bars[i].Time.Before(start) })
	hi := sort.Search(len(bars), func(i int) bool { return bars[i].Time.After(end) })
	if lo >= hi {
		return nil
	}
	out := make([]types.Bar, hi-lo)
	copy(out, bars[lo:hi])
	return out
}

func sortBars(bars []types.Bar) {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
}
