package core

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Amenzel91/catalyst-bot-sub003/analytics"
	"github.com/Amenzel91/catalyst-bot-sub003/portfolio"
	"github.com/Amenzel91/catalyst-bot-sub003/strategy"
	"github.com/Amenzel91/catalyst-bot-sub003/types"
)

// Period is the alert window a run replayed
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days is the window length in days
func (p Period) Days() float64 {
	return p.End.Sub(p.Start).Hours() / 24
}

// EntryStats counts what happened to the loaded alerts
type EntryStats struct {
	Alerts    int `json:"alerts"`
	Invalid   int `json:"invalid"`
	Filtered  int `json:"filtered"`
	Duplicate int `json:"duplicate"`
	NoPrice   int `json:"no_price"`
	Rejected  int `json:"rejected"`
	Entered   int `json:"entered"`
}

// Metrics extends portfolio metrics with curve and trade analytics
type Metrics struct {
	portfolio.Metrics

	SharpeRatio  float64                            `json:"sharpe_ratio"`
	SortinoRatio float64                            `json:"sortino_ratio"`
	Drawdown     analytics.DrawdownInfo             `json:"drawdown"`
	WinRates     analytics.WinRateBreakdown         `json:"win_rates"`
	Catalysts    map[string]analytics.CatalystStats `json:"catalysts"`
}

// Result is everything a finished run produced
type Result struct {
	RunID          string              `json:"run_id"`
	Params         strategy.Params     `json:"params"`
	Period         Period              `json:"period"`
	InitialCapital decimal.Decimal     `json:"initial_capital"`
	Seed           int64               `json:"seed"`
	Trades         []types.ClosedTrade `json:"trades"`
	EquityCurve    []types.EquityPoint `json:"equity_curve"`
	Metrics        Metrics             `json:"metrics"`
	Entries        EntryStats          `json:"entries"`
	StartedAt      time.Time           `json:"started_at"`
	Duration       time.Duration       `json:"duration"`
}

// TradeReturns lists per-trade return percentages in close order
func (r *Result) TradeReturns() []float64 {
	return analytics.TradeReturns(r.Trades)
}
