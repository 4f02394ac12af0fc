package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// ParameterSet is a distinct strategy configuration, keyed by the SHA-256 of
// its canonical JSON
type ParameterSet struct {
	Hash       string `gorm:"primaryKey;size:64"`
	Name       string
	ParamsJSON string
	CreatedAt  time.Time
}

func (ParameterSet) TableName() string { return "parameter_sets" }

type BacktestRun struct {
	ID             string `gorm:"primaryKey"`
	ParamsHash     string `gorm:"index"`
	ParamsName     string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	InitialCapital decimal.Decimal `gorm:"type:decimal(20,6)"`
	FinalValue     decimal.Decimal `gorm:"type:decimal(20,6)"`
	Seed           int64
	Alerts         int
	Entered        int
	StartedAt      time.Time `gorm:"index"`
	DurationMs     int64
	CreatedAt      time.Time
}

func (BacktestRun) TableName() string { return "backtest_runs" }

type RunMetrics struct {
	RunID           string `gorm:"primaryKey"`
	TotalReturnPct  float64
	TotalProfit     decimal.Decimal `gorm:"type:decimal(20,6)"`
	TotalCommission decimal.Decimal `gorm:"type:decimal(20,6)"`
	TotalTrades     int
	WinningTrades   int
	LosingTrades    int
	WinRate         float64
	ProfitFactor    float64
	SharpeRatio     float64
	SortinoRatio    float64
	MaxDrawdownPct  float64
	AvgHoldHours    float64
	BreakdownJSON   string // win-rate buckets and catalyst rollups
}

func (RunMetrics) TableName() string { return "run_metrics" }

type RunTrade struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	RunID        string `gorm:"index"`
	Seq          int
	Ticker       string `gorm:"index"`
	Shares       int64
	EntryPrice   decimal.Decimal `gorm:"type:decimal(20,6)"`
	ExitPrice    decimal.Decimal `gorm:"type:decimal(20,6)"`
	EntryTime    time.Time
	ExitTime     time.Time
	Profit       decimal.Decimal `gorm:"type:decimal(20,6)"`
	ProfitPct    float64
	HoldHours    float64
	ExitReason   string
	Commission   decimal.Decimal `gorm:"type:decimal(20,6)"`
	CatalystType string
	Score        float64
	Sentiment    float64
	Source       string
}

func (RunTrade) TableName() string { return "run_trades" }

type WalkForwardWindowRecord struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	RunID          string `gorm:"index"`
	WindowIndex    int
	TrainStart     time.Time
	TrainEnd       time.Time
	TestStart      time.Time
	TestEnd        time.Time
	Parameter      string
	ChosenValue    float64
	TrainSharpe    float64
	TrainReturnPct float64
	TestSharpe     float64
	TestReturnPct  float64
	TestTrades     int
	Efficiency     float64
	CreatedAt      time.Time
}

func (WalkForwardWindowRecord) TableName() string { return "walk_forward_windows" }

type ValidationRecord struct {
	ID                   string `gorm:"primaryKey"`
	Parameters           string // comma separated, sorted
	ChangesJSON          string
	PeriodStart          time.Time
	PeriodEnd            time.Time
	InitialCapital       decimal.Decimal `gorm:"type:decimal(20,6)"`
	Recommendation       string          `gorm:"index"`
	Confidence           float64
	Score                float64
	Reason               string
	SharpeImprovementPct float64
	ReturnDeltaPct       float64
	WinRateDelta         float64
	DrawdownDeltaPct     float64
	OldRunID             string
	NewRunID             string
	OldSharpe            float64
	NewSharpe            float64
	OldTrades            int
	NewTrades            int
	PValue               float64
	OldCIMean            float64
	OldCILower           float64
	OldCIUpper           float64
	NewCIMean            float64
	NewCILower           float64
	NewCIUpper           float64
	CreatedAt            time.Time `gorm:"index"`
}

func (ValidationRecord) TableName() string { return "validation_results" }
