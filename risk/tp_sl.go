package risk

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Amenzel91/catalyst-bot-sub003/strategy"
	"github.com/Amenzel91/catalyst-bot-sub003/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TP/SL POLICY - Decides when a simulated position exits
// ═══════════════════════════════════════════════════════════════════════════════

type ExitPolicy struct {
	takeProfit  decimal.Decimal // +X% from entry
	stopLoss    decimal.Decimal // -Y% from entry
	maxHoldTime time.Duration
}

// NewExitPolicy builds the exit rules from strategy params
func NewExitPolicy(p strategy.Params) *ExitPolicy {
	return &ExitPolicy{
		takeProfit:  decimal.NewFromFloat(p.TakeProfitPct),
		stopLoss:    decimal.NewFromFloat(p.StopLossPct),
		maxHoldTime: time.Duration(p.MaxHoldHours * float64(time.Hour)),
	}
}

// CheckExit determines if a position should be closed at now.
// Take profit wins over stop loss, both win over the time exit.
func (ep *ExitPolicy) CheckExit(pos *types.Position, currentPrice decimal.Decimal, now time.Time) (shouldExit bool, reason types.ExitReason) {
	if pos.EntryPrice.IsPositive() && currentPrice.IsPositive() {
		move := currentPrice.Sub(pos.EntryPrice).Div(pos.EntryPrice)

		if move.GreaterThanOrEqual(ep.takeProfit) {
			return true, types.ExitTakeProfit
		}

		if move.LessThanOrEqual(ep.stopLoss.Neg()) {
			return true, types.ExitStopLoss
		}
	}

	if now.Sub(pos.EntryTime) >= ep.maxHoldTime {
		log.Debug().
			Str("ticker", pos.Ticker).
			Dur("held", now.Sub(pos.EntryTime)).
			Msg("Max hold time reached")
		return true, types.ExitTime
	}

	return false, ""
}

// MaxHold returns the forced-exit horizon
func (ep *ExitPolicy) MaxHold() time.Duration {
	return ep.maxHoldTime
}
