package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════

// ExitReason explains why a position was closed
type ExitReason string

const (
	ExitTakeProfit ExitReason = "take_profit"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTime       ExitReason = "time_exit"
	ExitManual     ExitReason = "manual"
)

// Action is the side of a simulated order
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// AlertRecord is a historical catalyst alert replayed by the backtester
type AlertRecord struct {
	Ticker       string    `json:"ticker"`
	Timestamp    time.Time `json:"timestamp"`
	Score        float64   `json:"score"`
	Sentiment    float64   `json:"sentiment"`
	Keywords     []string  `json:"keywords"`
	Source       string    `json:"source"`
	CatalystType string    `json:"catalyst_type"`
}

// AlertContext is the slice of an alert that travels with a position
type AlertContext struct {
	Score        float64   `json:"score"`
	Sentiment    float64   `json:"sentiment"`
	CatalystType string    `json:"catalyst_type"`
	Source       string    `json:"source"`
	Keywords     []string  `json:"keywords,omitempty"`
	AlertTime    time.Time `json:"alert_time"`
}

// ContextFromAlert copies the alert fields a trade keeps
func ContextFromAlert(a AlertRecord) AlertContext {
	kw := make([]string, len(a.Keywords))
	copy(kw, a.Keywords)
	return AlertContext{
		Score:        a.Score,
		Sentiment:    a.Sentiment,
		CatalystType: a.CatalystType,
		Source:       a.Source,
		Keywords:     kw,
		AlertTime:    a.Timestamp,
	}
}

// Bar is an hourly OHLCV bar
type Bar struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Position represents an open trade
type Position struct {
	Ticker        string
	Shares        int64
	EntryPrice    decimal.Decimal
	EntryTime     time.Time
	CostBasis     decimal.Decimal // shares*price + commission
	Commission    decimal.Decimal
	Context       AlertContext
	LastPrice     decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// MarketValue is shares marked at the last known price
func (p *Position) MarketValue() decimal.Decimal {
	return p.LastPrice.Mul(decimal.NewFromInt(p.Shares))
}

// ClosedTrade is a completed round trip. Never mutated after creation.
type ClosedTrade struct {
	Ticker     string          `json:"ticker"`
	Shares     int64           `json:"shares"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	EntryTime  time.Time       `json:"entry_time"`
	ExitTime   time.Time       `json:"exit_time"`
	Profit     decimal.Decimal `json:"profit"`
	ProfitPct  float64         `json:"profit_pct"`
	HoldHours  float64         `json:"hold_hours"`
	ExitReason ExitReason      `json:"exit_reason"`
	Context    AlertContext    `json:"alert_context"`
	Commission decimal.Decimal `json:"commission"`
}

// IsWin reports whether the trade made money
func (t ClosedTrade) IsWin() bool {
	return t.Profit.IsPositive()
}

// TradeResult is the outcome of one simulated execution attempt
type TradeResult struct {
	Executed       bool
	Ticker         string
	Action         Action
	Shares         int64
	RequestedPrice decimal.Decimal
	FillPrice      decimal.Decimal
	SlippagePct    float64
	CostBasis      decimal.Decimal // buys: total cash out; sells: net proceeds
	Commission     decimal.Decimal
	Timestamp      time.Time
	Reason         string
}

// EquityPoint is a portfolio valuation at a point in time
type EquityPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
}
