package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Amenzel91/catalyst-bot-sub003/validation"
)

var _ validation.Store = (*Database)(nil)

// SaveValidation stores a parameter-change verdict
func (d *Database) SaveValidation(ctx context.Context, r *validation.Result) error {
	changes, err := json.Marshal(r.Changes)
	if err != nil {
		return fmt.Errorf("encode changes: %w", err)
	}
	rec := ValidationRecord{
		ID:                   r.ID,
		Parameters:           strings.Join(r.ParameterNames(), ","),
		ChangesJSON:          string(changes),
		PeriodStart:          r.Period.Start,
		PeriodEnd:            r.Period.End,
		InitialCapital:       r.InitialCapital,
		Recommendation:       string(r.Recommendation),
		Confidence:           r.Confidence,
		Score:                r.Score,
		Reason:               r.Reason,
		SharpeImprovementPct: r.SharpeImprovementPct,
		ReturnDeltaPct:       r.ReturnDeltaPct,
		WinRateDelta:         r.WinRateDelta,
		DrawdownDeltaPct:     r.DrawdownDeltaPct,
		OldRunID:             r.Old.RunID,
		NewRunID:             r.New.RunID,
		OldSharpe:            r.Old.SharpeRatio,
		NewSharpe:            r.New.SharpeRatio,
		OldTrades:            r.Old.Trades,
		NewTrades:            r.New.Trades,
		PValue:               r.PValue,
		OldCIMean:            r.OldCI.Mean,
		OldCILower:           r.OldCI.Lower,
		OldCIUpper:           r.OldCI.Upper,
		NewCIMean:            r.NewCI.Mean,
		NewCILower:           r.NewCI.Lower,
		NewCIUpper:           r.NewCI.Upper,
		CreatedAt:            r.CreatedAt,
	}
	if err := d.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("save validation %s: %w", r.ID, err)
	}
	return nil
}

// RecentValidations lists the latest verdicts first
func (d *Database) RecentValidations(ctx context.Context, limit int) ([]ValidationRecord, error) {
	var recs []ValidationRecord
	err := d.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

// SaveWalkForwardWindow stores one train/test window
func (d *Database) SaveWalkForwardWindow(ctx context.Context, w *validation.WalkForwardWindow) error {
	rec := WalkForwardWindowRecord{
		RunID:          w.RunID,
		WindowIndex:    w.Index,
		TrainStart:     w.TrainStart,
		TrainEnd:       w.TrainEnd,
		TestStart:      w.TestStart,
		TestEnd:        w.TestEnd,
		Parameter:      w.Parameter,
		ChosenValue:    w.ChosenValue,
		TrainSharpe:    w.TrainSharpe,
		TrainReturnPct: w.TrainReturnPct,
		TestSharpe:     w.TestSharpe,
		TestReturnPct:  w.TestReturnPct,
		TestTrades:     w.TestTrades,
		Efficiency:     w.Efficiency,
	}
	if err := d.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("save walk-forward window %d: %w", w.Index, err)
	}
	return nil
}

// WalkForwardWindows returns the windows of one walk-forward run in order
func (d *Database) WalkForwardWindows(ctx context.Context, runID string) ([]WalkForwardWindowRecord, error) {
	var recs []WalkForwardWindowRecord
	err := d.db.WithContext(ctx).Where("run_id = ?", runID).Order("window_index ASC").Find(&recs).Error
	return recs, err
}
