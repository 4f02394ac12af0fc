package execution

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Amenzel91/catalyst-bot-sub003/risk"
	"github.com/Amenzel91/catalyst-bot-sub003/strategy"
	"github.com/Amenzel91/catalyst-bot-sub003/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TRADE SIMULATOR - Fills with slippage and liquidity checks
// ═══════════════════════════════════════════════════════════════════════════════
//
// Slippage model:
//   slippage = base * price_factor * volume_factor * volatility_factor
//   capped at MaxSlippagePct
//
// Buys fill above the quote, sells below it.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Config holds simulator settings
type Config struct {
	BaseSlippagePct    float64         // default: 0.02
	MaxSlippagePct     float64         // default: 0.15
	MinDailyVolume     int64           // reject tickers trading less (default: 10,000)
	LowVolumeThreshold int64           // thin-stock penalty below this (default: 100,000)
	MaxDailyVolumePct  float64         // max order as fraction of daily volume
	PositionSizePct    float64         // fraction of available capital per buy
	Commission         decimal.Decimal // flat, per order
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		BaseSlippagePct:    0.02,
		MaxSlippagePct:     0.15,
		MinDailyVolume:     10_000,
		LowVolumeThreshold: 100_000,
		MaxDailyVolumePct:  0.05,
		PositionSizePct:    0.10,
		Commission:         decimal.Zero,
	}
}

// WithParams overlays the sizing and volume limits of a strategy
func (c Config) WithParams(p strategy.Params) Config {
	c.PositionSizePct = p.PositionSizePct
	c.MaxDailyVolumePct = p.MaxDailyVolumePct
	return c
}

// TradeRequest describes one order to simulate
type TradeRequest struct {
	Ticker           string
	Action           types.Action
	Price            decimal.Decimal // quoted price
	DailyVolume      *int64          // nil when unknown
	Timestamp        time.Time
	AvailableCapital decimal.Decimal // buys only
	Shares           int64           // sells only
	VolatilityPct    *float64        // recent range in percent, nil when unknown
}

// TradeSimulator prices simulated orders. It holds no per-trade state.
type TradeSimulator struct {
	config Config
	sizer  *risk.Sizer
}

// NewTradeSimulator creates a simulator
func NewTradeSimulator(config Config) *TradeSimulator {
	return &TradeSimulator{
		config: config,
		sizer:  risk.NewSizer(config.PositionSizePct),
	}
}

// Config returns the simulator settings
func (s *TradeSimulator) Config() Config {
	return s.config
}

// ═══════════════════════════════════════════════════════════════════════════════
// SLIPPAGE
// ═══════════════════════════════════════════════════════════════════════════════

// CalculateSlippage returns the fill price and the slippage fraction applied
func (s *TradeSimulator) CalculateSlippage(
	ticker string,
	quotedPrice decimal.Decimal,
	dailyVolume *int64,
	orderSize int64,
	direction types.Action,
	volatilityPct *float64,
) (decimal.Decimal, float64) {
	slippage := s.config.BaseSlippagePct *
		priceFactor(quotedPrice) *
		s.volumeFactor(dailyVolume, orderSize) *
		volatilityFactor(volatilityPct)

	if slippage > s.config.MaxSlippagePct {
		slippage = s.config.MaxSlippagePct
	}
	if slippage < 0 {
		slippage = 0
	}

	one := decimal.NewFromInt(1)
	slip := decimal.NewFromFloat(slippage)

	var fill decimal.Decimal
	if direction == types.ActionBuy {
		fill = quotedPrice.Mul(one.Add(slip)).RoundUp(4)
	} else {
		fill = quotedPrice.Mul(one.Sub(slip)).RoundDown(4)
	}

	log.Debug().
		Str("ticker", ticker).
		Str("action", string(direction)).
		Str("quote", quotedPrice.StringFixed(4)).
		Str("fill", fill.StringFixed(4)).
		Float64("slippage_pct", slippage*100).
		Msg("Slippage applied")

	return fill, slippage
}

// priceFactor penalizes low-priced stocks
func priceFactor(price decimal.Decimal) float64 {
	p := price.InexactFloat64()
	switch {
	case p < 1:
		return 2.5
	case p < 2:
		return 2.0
	case p < 5:
		return 1.5
	default:
		return 1.0
	}
}

// volumeFactor penalizes orders that are large relative to daily volume
func (s *TradeSimulator) volumeFactor(dailyVolume *int64, orderSize int64) float64 {
	if dailyVolume == nil || *dailyVolume <= 0 {
		return 1.0
	}
	orderPct := float64(orderSize) / float64(*dailyVolume)
	switch {
	case orderPct > 0.10:
		return 3.0
	case orderPct > 0.05:
		return 2.0
	case orderPct > 0.02:
		return 1.5
	case *dailyVolume < s.config.LowVolumeThreshold:
		return 1.8
	default:
		return 1.0
	}
}

// volatilityFactor penalizes fast-moving tickers
func volatilityFactor(volatilityPct *float64) float64 {
	if volatilityPct == nil {
		return 1.0
	}
	switch v := *volatilityPct; {
	case v > 20:
		return 2.0
	case v > 10:
		return 1.5
	case v > 5:
		return 1.2
	default:
		return 1.0
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// FEASIBILITY
// ═══════════════════════════════════════════════════════════════════════════════

// CanExecuteTrade checks share count and liquidity. Unknown volume passes.
func (s *TradeSimulator) CanExecuteTrade(ticker string, shares int64, dailyVolume *int64) (bool, string) {
	if shares <= 0 {
		return false, fmt.Sprintf("invalid share count: %d", shares)
	}

	if dailyVolume == nil {
		log.Warn().
			Str("ticker", ticker).
			Int64("shares", shares).
			Msg("Daily volume unknown, allowing trade")
		return true, ""
	}

	if *dailyVolume < s.config.MinDailyVolume {
		return false, fmt.Sprintf("illiquid: daily volume %d below minimum %d", *dailyVolume, s.config.MinDailyVolume)
	}

	maxShares := int64(math.Floor(float64(*dailyVolume) * s.config.MaxDailyVolumePct))
	if shares > maxShares {
		return false, fmt.Sprintf("order of %d shares exceeds %.1f%% of daily volume (%d shares)",
			shares, s.config.MaxDailyVolumePct*100, maxShares)
	}

	return true, ""
}

// ═══════════════════════════════════════════════════════════════════════════════
// EXECUTION
// ═══════════════════════════════════════════════════════════════════════════════

// ExecuteTrade simulates a buy or a sell. Infeasible orders come back with
// Executed=false and a reason, never an error.
func (s *TradeSimulator) ExecuteTrade(req TradeRequest) types.TradeResult {
	res := types.TradeResult{
		Ticker:         req.Ticker,
		Action:         req.Action,
		RequestedPrice: req.Price,
		Timestamp:      req.Timestamp,
	}

	if !req.Price.IsPositive() {
		res.Reason = "invalid price"
		return res
	}

	switch req.Action {
	case types.ActionBuy:
		return s.executeBuy(req, res)
	case types.ActionSell:
		return s.executeSell(req, res)
	default:
		res.Reason = fmt.Sprintf("unknown action: %s", req.Action)
		return res
	}
}

func (s *TradeSimulator) executeBuy(req TradeRequest, res types.TradeResult) types.TradeResult {
	shares := s.sizer.Shares(req.AvailableCapital, req.Price)
	if shares <= 0 {
		res.Reason = "insufficient capital for a single share"
		return res
	}

	if ok, reason := s.CanExecuteTrade(req.Ticker, shares, req.DailyVolume); !ok {
		res.Reason = reason
		return res
	}

	fill, slippage := s.CalculateSlippage(req.Ticker, req.Price, req.DailyVolume, shares, types.ActionBuy, req.VolatilityPct)
	commission := s.config.Commission

	cost := risk.OrderCost(shares, fill, commission)
	if cost.GreaterThan(req.AvailableCapital) {
		shares = risk.AffordableShares(req.AvailableCapital, fill, commission)
		if shares <= 0 {
			res.Reason = "insufficient capital after slippage and commission"
			return res
		}
		cost = risk.OrderCost(shares, fill, commission)
		log.Debug().
			Str("ticker", req.Ticker).
			Int64("shares", shares).
			Msg("Order shrunk to fit capital")
	}

	res.Executed = true
	res.Shares = shares
	res.FillPrice = fill
	res.SlippagePct = slippage * 100
	res.CostBasis = cost
	res.Commission = commission
	return res
}

// executeSell prices an exit. Volume limits are not applied so a simulated
// position can always be closed.
func (s *TradeSimulator) executeSell(req TradeRequest, res types.TradeResult) types.TradeResult {
	if req.Shares <= 0 {
		res.Reason = fmt.Sprintf("invalid share count: %d", req.Shares)
		return res
	}

	fill, slippage := s.CalculateSlippage(req.Ticker, req.Price, req.DailyVolume, req.Shares, types.ActionSell, req.VolatilityPct)
	commission := s.config.Commission

	res.Executed = true
	res.Shares = req.Shares
	res.FillPrice = fill
	res.SlippagePct = slippage * 100
	res.CostBasis = fill.Mul(decimal.NewFromInt(req.Shares)).Sub(commission)
	res.Commission = commission
	return res
}
