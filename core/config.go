package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Amenzel91/catalyst-bot-sub003/analytics"
	"github.com/Amenzel91/catalyst-bot-sub003/execution"
	"github.com/Amenzel91/catalyst-bot-sub003/strategy"
)

// Config holds the settings of one backtest run
type Config struct {
	Start          time.Time
	End            time.Time
	InitialCapital decimal.Decimal
	Params         strategy.Params
	Simulator      execution.Config

	RiskFreeRate   float64 // annual, default: 0.02
	PeriodsPerYear float64 // default: 252

	TickInterval  time.Duration // monitoring clock step, default: 1h
	ExitHorizon   time.Duration // monitoring continues this long past End, default: 24h
	PriceLookback time.Duration // bars loaded before Start, default: 48h

	// Seed drives price jitter. Identical seeds give identical runs.
	Seed           int64
	PriceJitterPct float64 // uniform ±fraction applied to looked-up prices, 0 disables
}

// DefaultConfig returns a run over [start, end] with the default strategy
func DefaultConfig(start, end time.Time) Config {
	return Config{
		Start:          start,
		End:            end,
		InitialCapital: decimal.NewFromInt(10_000),
		Params:         strategy.DefaultParams(),
		Simulator:      execution.DefaultConfig(),
		RiskFreeRate:   analytics.DefaultRiskFreeRate,
		PeriodsPerYear: analytics.DefaultPeriodsPerYear,
		TickInterval:   time.Hour,
		ExitHorizon:    24 * time.Hour,
		PriceLookback:  48 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	if c.PeriodsPerYear <= 0 {
		c.PeriodsPerYear = analytics.DefaultPeriodsPerYear
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Hour
	}
	if c.ExitHorizon <= 0 {
		c.ExitHorizon = 24 * time.Hour
	}
	if c.PriceLookback <= 0 {
		c.PriceLookback = 48 * time.Hour
	}
	if c.Simulator.BaseSlippagePct == 0 && c.Simulator.MaxSlippagePct == 0 {
		c.Simulator = execution.DefaultConfig()
	}
	return c
}

// Validate checks the run window, capital and strategy
func (c Config) Validate() error {
	if c.Start.IsZero() || c.End.IsZero() {
		return errors.New("start and end are required")
	}
	if !c.End.After(c.Start) {
		return fmt.Errorf("end %s must be after start %s", c.End.Format(time.RFC3339), c.Start.Format(time.RFC3339))
	}
	if !c.InitialCapital.IsPositive() {
		return fmt.Errorf("initial capital must be positive, got %s", c.InitialCapital)
	}
	if c.PriceJitterPct < 0 || c.PriceJitterPct >= 1 {
		return fmt.Errorf("price jitter must be in [0,1), got %v", c.PriceJitterPct)
	}
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("strategy params: %w", err)
	}
	return nil
}
