package risk

import (
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION SIZING - % of available capital, whole shares only
// ═══════════════════════════════════════════════════════════════════════════════
//
// Formula: shares = floor(capital * size_pct / price)
//
// ═══════════════════════════════════════════════════════════════════════════════

type Sizer struct {
	sizePct decimal.Decimal // fraction of available capital per trade
}

// NewSizer creates a new position sizer
func NewSizer(sizePct float64) *Sizer {
	return &Sizer{sizePct: decimal.NewFromFloat(sizePct)}
}

// Shares computes whole shares for a quoted price
func (s *Sizer) Shares(capital, price decimal.Decimal) int64 {
	if !capital.IsPositive() || !price.IsPositive() {
		return 0
	}
	return capital.Mul(s.sizePct).Div(price).Floor().IntPart()
}

// AffordableShares shrinks an order so shares*fill + commission fits capital
func AffordableShares(capital, fillPrice, commission decimal.Decimal) int64 {
	if !fillPrice.IsPositive() {
		return 0
	}
	budget := capital.Sub(commission)
	if !budget.IsPositive() {
		return 0
	}
	return budget.Div(fillPrice).Floor().IntPart()
}

// OrderCost is the cash needed for shares at a fill price plus commission
func OrderCost(shares int64, fillPrice, commission decimal.Decimal) decimal.Decimal {
	return fillPrice.Mul(decimal.NewFromInt(shares)).Add(commission)
}
