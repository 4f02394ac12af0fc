package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Amenzel91/catalyst-bot-sub003/analytics"
	"github.com/Amenzel91/catalyst-bot-sub003/core"
	"github.com/Amenzel91/catalyst-bot-sub003/strategy"
)

var _ core.Recorder = (*Database)(nil)

// StoredRun is a persisted backtest with its metrics and parameters
type StoredRun struct {
	Run     BacktestRun
	Metrics RunMetrics
	Params  strategy.Params
}

type breakdown struct {
	WinRates  analytics.WinRateBreakdown         `json:"win_rates"`
	Catalysts map[string]analytics.CatalystStats `json:"catalysts"`
	Drawdown  analytics.DrawdownInfo             `json:"drawdown"`
}

// ParamsHash returns the canonical JSON of p and its SHA-256 hex digest
func ParamsHash(p strategy.Params) (string, string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", "", err
	}
	sum := sha256.Sum256(raw)
	return string(raw), hex.EncodeToString(sum[:]), nil
}

// SaveBacktest stores a finished run in one transaction
func (d *Database) SaveBacktest(ctx context.Context, r *core.Result) error {
	paramsJSON, hash, err := ParamsHash(r.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	bd, err := json.Marshal(breakdown{
		WinRates:  r.Metrics.WinRates,
		Catalysts: r.Metrics.Catalysts,
		Drawdown:  r.Metrics.Drawdown,
	})
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}

	m := r.Metrics
	run := BacktestRun{
		ID:             r.RunID,
		ParamsHash:     hash,
		ParamsName:     r.Params.Name,
		PeriodStart:    r.Period.Start,
		PeriodEnd:      r.Period.End,
		InitialCapital: r.InitialCapital,
		FinalValue:     m.FinalValue,
		Seed:           r.Seed,
		Alerts:         r.Entries.Alerts,
		Entered:        r.Entries.Entered,
		StartedAt:      r.StartedAt,
		DurationMs:     r.Duration.Milliseconds(),
	}
	metrics := RunMetrics{
		RunID:           r.RunID,
		TotalReturnPct:  m.TotalReturnPct,
		TotalProfit:     m.TotalProfit,
		TotalCommission: m.TotalCommission,
		TotalTrades:     m.TotalTrades,
		WinningTrades:   m.WinningTrades,
		LosingTrades:    m.LosingTrades,
		WinRate:         m.WinRate,
		ProfitFactor:    m.ProfitFactor,
		SharpeRatio:     m.SharpeRatio,
		SortinoRatio:    m.SortinoRatio,
		MaxDrawdownPct:  m.MaxDrawdownPct,
		AvgHoldHours:    m.AvgHoldHours,
		BreakdownJSON:   string(bd),
	}
	trades := make([]RunTrade, len(r.Trades))
	for i, t := range r.Trades {
		trades[i] = RunTrade{
			RunID:        r.RunID,
			Seq:          i,
			Ticker:       t.Ticker,
			Shares:       t.Shares,
			EntryPrice:   t.EntryPrice,
			ExitPrice:    t.ExitPrice,
			EntryTime:    t.EntryTime,
			ExitTime:     t.ExitTime,
			Profit:       t.Profit,
			ProfitPct:    t.ProfitPct,
			HoldHours:    t.HoldHours,
			ExitReason:   string(t.ExitReason),
			Commission:   t.Commission,
			CatalystType: t.Context.CatalystType,
			Score:        t.Context.Score,
			Sentiment:    t.Context.Sentiment,
			Source:       t.Context.Source,
		}
	}

	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ps := ParameterSet{Hash: hash, Name: r.Params.Name, ParamsJSON: paramsJSON}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ps).Error; err != nil {
			return err
		}
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		if err := tx.Create(&metrics).Error; err != nil {
			return err
		}
		if len(trades) > 0 {
			if err := tx.CreateInBatches(trades, 100).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.RunID, err)
	}

	log.Debug().Str("run", r.RunID).Int("trades", len(trades)).Msg("Run saved")
	return nil
}

// GetRun loads a run with its metrics and parameters
func (d *Database) GetRun(ctx context.Context, id string) (*StoredRun, error) {
	db := d.db.WithContext(ctx)

	var out StoredRun
	if err := db.First(&out.Run, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	if err := db.First(&out.Metrics, "run_id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	var ps ParameterSet
	if err := db.First(&ps, "hash = ?", out.Run.ParamsHash).Error; err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal([]byte(ps.ParamsJSON), &out.Params); err != nil {
		return nil, fmt.Errorf("decode params %s: %w", ps.Hash, err)
	}
	return &out, nil
}

// RecentRuns lists the most recently started runs
func (d *Database) RecentRuns(ctx context.Context, limit int) ([]BacktestRun, error) {
	var runs []BacktestRun
	err := d.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// TradesForRun returns a run's trades in close order
func (d *Database) TradesForRun(ctx context.Context, runID string) ([]RunTrade, error) {
	var trades []RunTrade
	err := d.db.WithContext(ctx).Where("run_id = ?", runID).Order("seq ASC").Find(&trades).Error
	return trades, err
}

// ParameterSets lists every distinct configuration seen
func (d *Database) ParameterSets(ctx context.Context) ([]ParameterSet, error) {
	var sets []ParameterSet
	err := d.db.WithContext(ctx).Order("created_at ASC").Find(&sets).Error
	return sets, err
}
