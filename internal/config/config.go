package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Amenzel91/catalyst-bot-sub003/core"
	"github.com/Amenzel91/catalyst-bot-sub003/execution"
	"github.com/Amenzel91/catalyst-bot-sub003/strategy"
)

// Config holds all configuration for the backtester
type Config struct {
	Debug bool

	// Data
	AlertsPath string // JSONL alert log
	BarsDir    string // one <TICKER>.csv per ticker

	// Strategy
	ParamsFile string
	Params     strategy.Params

	// Run
	InitialCapital decimal.Decimal
	BacktestDays   int
	RiskFreeRate   float64
	TickInterval   time.Duration
	ExitHorizon    time.Duration

	// Execution costs
	Commission      decimal.Decimal // flat, per order
	BaseSlippagePct float64
	MaxSlippagePct  float64

	// Monte Carlo
	Workers   int
	Seed      int64
	JitterPct float64

	// Validation
	MinTrades           int
	BootstrapIterations int

	// Database
	PersistRuns  bool
	DatabasePath string // SQLite path or postgres:// URL
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),

		// Data
		AlertsPath: getEnv("ALERTS_PATH", "data/events.jsonl"),
		BarsDir:    getEnv("BARS_DIR", "data/bars"),

		// Strategy
		ParamsFile: os.Getenv("STRATEGY_PARAMS_FILE"),

		// Run
		InitialCapital: getEnvDecimal("INITIAL_CAPITAL", decimal.NewFromInt(10_000)),
		BacktestDays:   getEnvInt("BACKTEST_DAYS", 30),
		RiskFreeRate:   getEnvFloat("RISK_FREE_RATE", 0.02),
		TickInterval:   getEnvDuration("TICK_INTERVAL", time.Hour),
		ExitHorizon:    getEnvDuration("EXIT_HORIZON", 24*time.Hour),

		// Execution costs
		Commission:      getEnvDecimal("COMMISSION", decimal.Zero),
		BaseSlippagePct: getEnvFloat("SLIPPAGE_BASE_PCT", 0.02),
		MaxSlippagePct:  getEnvFloat("SLIPPAGE_MAX_PCT", 0.15),

		// Monte Carlo
		Workers:   getEnvInt("MC_WORKERS", 1),
		Seed:      int64(getEnvInt("MC_SEED", 42)),
		JitterPct: getEnvFloat("MC_JITTER_PCT", 0.02),

		// Validation
		MinTrades:           getEnvInt("VALIDATION_MIN_TRADES", 10),
		BootstrapIterations: getEnvInt("BOOTSTRAP_ITERATIONS", 1000),

		// Database
		PersistRuns:  getEnvBool("PERSIST_RUNS", false),
		DatabasePath: getEnv("DATABASE_URL", getEnv("DATABASE_PATH", "data/backtests.db")),
	}

	cfg.Params = strategy.DefaultParams()
	if cfg.ParamsFile != "" {
		p, err := LoadParamsFile(cfg.ParamsFile)
		if err != nil {
			return nil, err
		}
		cfg.Params = p
	}

	// Validate
	if !cfg.InitialCapital.IsPositive() {
		return nil, fmt.Errorf("INITIAL_CAPITAL must be positive, got %s", cfg.InitialCapital)
	}
	if cfg.BacktestDays <= 0 {
		return nil, fmt.Errorf("BACKTEST_DAYS must be positive, got %d", cfg.BacktestDays)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("MC_WORKERS must be at least 1, got %d", cfg.Workers)
	}
	if cfg.BaseSlippagePct < 0 || cfg.MaxSlippagePct < cfg.BaseSlippagePct {
		return nil, fmt.Errorf("invalid slippage bounds: base %v max %v", cfg.BaseSlippagePct, cfg.MaxSlippagePct)
	}

	return cfg, nil
}

// LoadParamsFile reads strategy params from YAML. Keys left out keep their
// defaults and unknown keys are rejected.
func LoadParamsFile(path string) (strategy.Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return strategy.Params{}, fmt.Errorf("read params file: %w", err)
	}

	p := strategy.DefaultParams()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return strategy.Params{}, fmt.Errorf("parse params file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return strategy.Params{}, fmt.Errorf("params file %s: %w", path, err)
	}
	return p, nil
}

// Simulator returns execution settings for the configured costs
func (c *Config) Simulator() execution.Config {
	sim := execution.DefaultConfig()
	sim.BaseSlippagePct = c.BaseSlippagePct
	sim.MaxSlippagePct = c.MaxSlippagePct
	sim.Commission = c.Commission
	return sim.WithParams(c.Params)
}

// RunConfig builds a backtest over [start, end] from the loaded settings
func (c *Config) RunConfig(start, end time.Time) core.Config {
	rc := core.DefaultConfig(start, end)
	rc.InitialCapital = c.InitialCapital
	rc.Params = c.Params
	rc.Simulator = c.Simulator()
	rc.RiskFreeRate = c.RiskFreeRate
	rc.TickInterval = c.TickInterval
	rc.ExitHorizon = c.ExitHorizon
	rc.Seed = c.Seed
	return rc
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
