package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "DATABASE_PATH", "STRATEGY_PARAMS_FILE", "PERSIST_RUNS", "MC_SEED", "MC_WORKERS"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.InitialCapital.Equal(decimal.NewFromInt(10_000)) {
		t.Fatalf("capital = %s", cfg.InitialCapital)
	}
	if cfg.BacktestDays != 30 || cfg.Workers != 1 || cfg.Seed != 42 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.Params.Name != "default" || cfg.Params.TakeProfitPct != 0.20 {
		t.Fatalf("params = %+v", cfg.Params)
	}
	if cfg.DatabasePath != "data/backtests.db" || cfg.PersistRuns {
		t.Fatalf("database = %q persist %v", cfg.DatabasePath, cfg.PersistRuns)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("INITIAL_CAPITAL", "25000.50")
	t.Setenv("BACKTEST_DAYS", "14")
	t.Setenv("COMMISSION", "1.25")
	t.Setenv("MC_WORKERS", "4")
	t.Setenv("MC_SEED", "7")
	t.Setenv("TICK_INTERVAL", "30m")
	t.Setenv("DEBUG", "yes")
	t.Setenv("PERSIST_RUNS", "1")
	t.Setenv("DATABASE_URL", "postgres://bt@localhost/runs")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.InitialCapital.Equal(decimal.RequireFromString("25000.50")) || cfg.BacktestDays != 14 {
		t.Fatalf("run settings = %+v", cfg)
	}
	if cfg.Workers != 4 || cfg.Seed != 7 || cfg.TickInterval != 30*time.Minute {
		t.Fatalf("mc settings = %+v", cfg)
	}
	if !cfg.Debug || !cfg.PersistRuns || cfg.DatabasePath != "postgres://bt@localhost/runs" {
		t.Fatalf("flags = %+v", cfg)
	}

	sim := cfg.Simulator()
	if !sim.Commission.Equal(decimal.RequireFromString("1.25")) || sim.PositionSizePct != cfg.Params.PositionSizePct {
		t.Fatalf("simulator = %+v", sim)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("BACKTEST_DAYS", "lots")
	t.Setenv("RISK_FREE_RATE", "n/a")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BacktestDays != 30 || cfg.RiskFreeRate != 0.02 {
		t.Fatalf("fallbacks = %d %v", cfg.BacktestDays, cfg.RiskFreeRate)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"INITIAL_CAPITAL", "0"},
		{"BACKTEST_DAYS", "-3"},
		{"MC_WORKERS", "0"},
		{"SLIPPAGE_MAX_PCT", "0.01"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadParamsFile(t *testing.T) {
	path := writeFile(t, "aggressive.yaml", `
name: aggressive
min_score: 0.4
take_profit_pct: 0.35
min_sentiment: 0.1
required_catalysts: [fda, merger]
`)
	t.Setenv("STRATEGY_PARAMS_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p := cfg.Params
	if p.Name != "aggressive" || p.MinScore != 0.4 || p.TakeProfitPct != 0.35 {
		t.Fatalf("params = %+v", p)
	}
	if p.MinSentiment == nil || *p.MinSentiment != 0.1 {
		t.Fatalf("min sentiment = %v", p.MinSentiment)
	}
	// untouched keys keep defaults
	if p.StopLossPct != 0.10 || p.MaxHoldHours != 24 || len(p.RequiredCatalysts) != 2 {
		t.Fatalf("params = %+v", p)
	}

	rc := cfg.RunConfig(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	if err := rc.Validate(); err != nil {
		t.Fatalf("run config invalid: %v", err)
	}
	if rc.Params.Name != "aggressive" || rc.Seed != 42 {
		t.Fatalf("run config = %+v", rc)
	}
}

func TestLoadParamsFileErrors(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{name: "unknown key", body: "take_profit: 0.3\n", want: "not found"},
		{name: "invalid value", body: "stop_loss_pct: 1.5\n", want: "stop_loss_pct"},
		{name: "bad yaml", body: "min_score: [\n", want: "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadParamsFile(writeFile(t, "p.yaml", tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
	if _, err := LoadParamsFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
