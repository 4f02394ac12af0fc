package portfolio

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Amenzel91/catalyst-bot-sub003/analytics"
	"github.com/Amenzel91/catalyst-bot-sub003/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PORTFOLIO - Cash, open positions, closed trades, equity curve
// ═══════════════════════════════════════════════════════════════════════════════
//
// Cash flow:
//   open:  cash -= shares*entry + commission
//   close: cash += shares*exit - commission
//
// Owned by a single backtest run. Not safe for concurrent use.
//
// ═══════════════════════════════════════════════════════════════════════════════

var (
	ErrPositionExists   = errors.New("position already open")
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrNoPosition       = errors.New("no open position")
	ErrInvalidOrder     = errors.New("invalid order")
)

var hundred = decimal.NewFromInt(100)

// Metrics is the summary of a portfolio's trading history
type Metrics struct {
	InitialCapital  decimal.Decimal `json:"initial_capital"`
	FinalValue      decimal.Decimal `json:"final_value"`
	TotalReturnPct  float64         `json:"total_return_pct"`
	TotalProfit     decimal.Decimal `json:"total_profit"`
	TotalTrades     int             `json:"total_trades"`
	WinningTrades   int             `json:"winning_trades"`
	LosingTrades    int             `json:"losing_trades"`
	WinRate         float64         `json:"win_rate"`
	AvgWin          decimal.Decimal `json:"avg_win"`
	AvgLoss         decimal.Decimal `json:"avg_loss"` // negative or zero
	ProfitFactor    float64         `json:"profit_factor"`
	MaxDrawdownPct  float64         `json:"max_drawdown_pct"`
	AvgHoldHours    float64         `json:"avg_hold_hours"`
	OpenPositions   int             `json:"open_positions"`
	TotalCommission decimal.Decimal `json:"total_commission"`
}

type Portfolio struct {
	initialCapital decimal.Decimal
	cash           decimal.Decimal

	positions map[string]*types.Position
	closed    []types.ClosedTrade
	equity    []types.EquityPoint

	// incremental drawdown tracking
	peakValue      decimal.Decimal
	maxDrawdownPct float64
}

// New creates a portfolio holding only cash
func New(initialCapital decimal.Decimal) *Portfolio {
	return &Portfolio{
		initialCapital: initialCapital,
		cash:           initialCapital,
		positions:      make(map[string]*types.Position),
		peakValue:      initialCapital,
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// POSITIONS
// ═══════════════════════════════════════════════════════════════════════════════

// OpenPosition deducts shares*entryPrice + commission from cash
func (p *Portfolio) OpenPosition(
	ticker string,
	shares int64,
	entryPrice decimal.Decimal,
	entryTime time.Time,
	ctx types.AlertContext,
	commission decimal.Decimal,
) error {
	if shares <= 0 || !entryPrice.IsPositive() || commission.IsNegative() {
		return fmt.Errorf("%w: %s shares=%d price=%s", ErrInvalidOrder, ticker, shares, entryPrice)
	}
	if _, ok := p.positions[ticker]; ok {
		return fmt.Errorf("%w: %s", ErrPositionExists, ticker)
	}

	cost := entryPrice.Mul(decimal.NewFromInt(shares)).Add(commission)
	if cost.GreaterThan(p.cash) {
		return fmt.Errorf("%w: %s needs %s, have %s", ErrInsufficientCash, ticker, cost.StringFixed(2), p.cash.StringFixed(2))
	}

	p.cash = p.cash.Sub(cost)
	p.positions[ticker] = &types.Position{
		Ticker:        ticker,
		Shares:        shares,
		EntryPrice:    entryPrice,
		EntryTime:     entryTime,
		CostBasis:     cost,
		Commission:    commission,
		Context:       ctx,
		LastPrice:     entryPrice,
		UnrealizedPnL: commission.Neg(),
	}

	log.Debug().
		Str("ticker", ticker).
		Int64("shares", shares).
		Str("price", entryPrice.StringFixed(4)).
		Str("cost", cost.StringFixed(2)).
		Str("cash", p.cash.StringFixed(2)).
		Msg("Position opened")
	return nil
}

// ClosePosition sells the whole position and records the round trip
func (p *Portfolio) ClosePosition(
	ticker string,
	exitPrice decimal.Decimal,
	exitTime time.Time,
	reason types.ExitReason,
	commission decimal.Decimal,
) (types.ClosedTrade, error) {
	pos, ok := p.positions[ticker]
	if !ok {
		return types.ClosedTrade{}, fmt.Errorf("%w: %s", ErrNoPosition, ticker)
	}
	if exitPrice.IsNegative() || commission.IsNegative() {
		return types.ClosedTrade{}, fmt.Errorf("%w: %s exit=%s", ErrInvalidOrder, ticker, exitPrice)
	}

	proceeds := exitPrice.Mul(decimal.NewFromInt(pos.Shares)).Sub(commission)
	profit := proceeds.Sub(pos.CostBasis)

	var profitPct float64
	if pos.CostBasis.IsPositive() {
		profitPct = profit.Div(pos.CostBasis).Mul(hundred).InexactFloat64()
	}

	trade := types.ClosedTrade{
		Ticker:     ticker,
		Shares:     pos.Shares,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		EntryTime:  pos.EntryTime,
		ExitTime:   exitTime,
		Profit:     profit,
		ProfitPct:  profitPct,
		HoldHours:  exitTime.Sub(pos.EntryTime).Hours(),
		ExitReason: reason,
		Context:    pos.Context,
		Commission: pos.Commission.Add(commission),
	}

	p.cash = p.cash.Add(proceeds)
	delete(p.positions, ticker)
	p.closed = append(p.closed, trade)

	log.Debug().
		Str("ticker", ticker).
		Str("reason", string(reason)).
		Str("exit", exitPrice.StringFixed(4)).
		Str("pnl", profit.StringFixed(2)).
		Float64("pnl_pct", profitPct).
		Msg("Position closed")
	return trade, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// VALUATION
// ═══════════════════════════════════════════════════════════════════════════════

// RecordEquityPoint marks open positions to the given prices and appends a
// point to the equity curve. Tickers missing from prices keep their last
// known price. A point stamped at the same time as the last one replaces it.
func (p *Portfolio) RecordEquityPoint(ts time.Time, prices map[string]decimal.Decimal) types.EquityPoint {
	for ticker, pos := range p.positions {
		if px, ok := prices[ticker]; ok && px.IsPositive() {
			pos.LastPrice = px
		}
		pos.UnrealizedPnL = pos.MarketValue().Sub(pos.CostBasis)
	}

	value := p.markedValue()
	pt := types.EquityPoint{Timestamp: ts, Value: value}
	if n := len(p.equity); n > 0 && p.equity[n-1].Timestamp.Equal(ts) {
		p.equity[n-1] = pt
	} else {
		p.equity = append(p.equity, pt)
	}

	if value.GreaterThan(p.peakValue) {
		p.peakValue = value
	}
	if p.peakValue.IsPositive() {
		dd := p.peakValue.Sub(value).Div(p.peakValue).Mul(hundred).InexactFloat64()
		if dd > p.maxDrawdownPct {
			p.maxDrawdownPct = dd
		}
	}
	return pt
}

// markedValue is cash plus open positions at their last known prices
func (p *Portfolio) markedValue() decimal.Decimal {
	v := p.cash
	for _, pos := range p.positions {
		v = v.Add(pos.MarketValue())
	}
	return v
}

// TotalValue is cash plus open positions at cost basis
func (p *Portfolio) TotalValue() decimal.Decimal {
	v := p.cash
	for _, pos := range p.positions {
		v = v.Add(pos.CostBasis)
	}
	return v
}

// ═══════════════════════════════════════════════════════════════════════════════
// METRICS
// ═══════════════════════════════════════════════════════════════════════════════

// PerformanceMetrics summarizes closed trades and the equity curve. With no
// closed trades only capital, value and drawdown are filled in.
func (p *Portfolio) PerformanceMetrics() Metrics {
	m := Metrics{
		InitialCapital:  p.initialCapital,
		FinalValue:      p.TotalValue(),
		TotalProfit:     decimal.Zero,
		AvgWin:          decimal.Zero,
		AvgLoss:         decimal.Zero,
		TotalCommission: decimal.Zero,
		OpenPositions:   len(p.positions),
	}
	if len(p.closed) == 0 {
		return m
	}
	m.MaxDrawdownPct = p.maxDrawdownPct

	grossWin, grossLoss := decimal.Zero, decimal.Zero
	var holdSum float64
	for _, t := range p.closed {
		m.TotalProfit = m.TotalProfit.Add(t.Profit)
		m.TotalCommission = m.TotalCommission.Add(t.Commission)
		holdSum += t.HoldHours
		if t.IsWin() {
			m.WinningTrades++
			grossWin = grossWin.Add(t.Profit)
		} else {
			m.LosingTrades++
			grossLoss = grossLoss.Add(t.Profit)
		}
	}

	m.TotalTrades = len(p.closed)
	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	m.AvgHoldHours = holdSum / float64(m.TotalTrades)
	if m.WinningTrades > 0 {
		m.AvgWin = grossWin.Div(decimal.NewFromInt(int64(m.WinningTrades)))
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = grossLoss.Div(decimal.NewFromInt(int64(m.LosingTrades)))
	}
	m.ProfitFactor = analytics.ProfitFactor(p.closed)

	if p.initialCapital.IsPositive() {
		m.TotalReturnPct = m.FinalValue.Sub(p.initialCapital).
			Div(p.initialCapital).Mul(hundred).InexactFloat64()
	}
	return m
}

// ═══════════════════════════════════════════════════════════════════════════════
// ACCESSORS
// ═══════════════════════════════════════════════════════════════════════════════

func (p *Portfolio) Cash() decimal.Decimal           { return p.cash }
func (p *Portfolio) InitialCapital() decimal.Decimal { return p.initialCapital }

// HasPosition reports whether ticker is currently held
func (p *Portfolio) HasPosition(ticker string) bool {
	_, ok := p.positions[ticker]
	return ok
}

// Position returns a copy of the open position for ticker
func (p *Portfolio) Position(ticker string) (types.Position, bool) {
	pos, ok := p.positions[ticker]
	if !ok {
		return types.Position{}, false
	}
	return *pos, true
}

// OpenPositions returns copies of open positions sorted by ticker
func (p *Portfolio) OpenPositions() []types.Position {
	out := make([]types.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// ClosedTrades returns a copy of the trade history in close order
func (p *Portfolio) ClosedTrades() []types.ClosedTrade {
	return append([]types.ClosedTrade(nil), p.closed...)
}

// EquityCurve returns a copy of the recorded equity points
func (p *Portfolio) EquityCurve() []types.EquityPoint {
	return append([]types.EquityPoint(nil), p.equity...)
}
