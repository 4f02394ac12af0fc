package validation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Amenzel91/catalyst-bot-sub003/analytics"
	"github.com/Amenzel91/catalyst-bot-sub003/core"
	"github.com/Amenzel91/catalyst-bot-sub003/feeds"
)

// ═══════════════════════════════════════════════════════════════════════════════
// VALIDATOR - Before/after backtests for a proposed parameter change
// ═══════════════════════════════════════════════════════════════════════════════
//
// Score:
//   0.4 * sharpe_improvement_pct
// + 0.3 * (new_return_pct - old_return_pct)
// + 0.2 * (new_win_rate - old_win_rate) * 100
// + 0.1 * (old_max_dd_pct - new_max_dd_pct)
//
// Bootstrap statistics are reported alongside and never change the verdict.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Recommendation is the verdict on a change
type Recommendation string

const (
	Approve Recommendation = "APPROVE"
	Reject  Recommendation = "REJECT"
	Neutral Recommendation = "NEUTRAL"
)

const (
	DefaultMinTrades           = 10
	DefaultBootstrapIterations = 1000
	confidenceLevel            = 0.95

	runFailedConfidence  = 0.0
	fewTradesConfidence  = 0.3
	neutralConfidence    = 0.5
	neutralScoreBand     = 3.0
	sharpeImprovementCap = 100.0
)

// Store persists validation outcomes
type Store interface {
	SaveValidation(ctx context.Context, r *Result) error
	SaveWalkForwardWindow(ctx context.Context, w *WalkForwardWindow) error
}

// Config holds validator settings
type Config struct {
	Base                core.Config // template run; window, capital and params are overridden
	MinTrades           int         // default: 10
	BootstrapIterations int         // default: 1000
	Seed                int64
}

// Change is one parameter moving from Old to New
type Change struct {
	Old float64 `json:"old"`
	New float64 `json:"new"`
}

// RunSummary is the slice of a backtest the verdict looks at
type RunSummary struct {
	RunID          string  `json:"run_id"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	TotalReturnPct float64 `json:"total_return_pct"`
	WinRate        float64 `json:"win_rate"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	ProfitFactor   float64 `json:"profit_factor"`
	Trades         int     `json:"trades"`
}

// Result is the verdict on a parameter change
type Result struct {
	ID             string            `json:"id"`
	Changes        map[string]Change `json:"changes"`
	Period         core.Period       `json:"period"`
	InitialCapital decimal.Decimal   `json:"initial_capital"`

	Recommendation Recommendation `json:"recommendation"`
	Confidence     float64        `json:"confidence"`
	Score          float64        `json:"score"`
	Reason         string         `json:"reason"`

	SharpeImprovementPct float64 `json:"sharpe_improvement_pct"`
	ReturnDeltaPct       float64 `json:"return_delta_pct"`
	WinRateDelta         float64 `json:"win_rate_delta"`
	DrawdownDeltaPct     float64 `json:"drawdown_delta_pct"` // old - new, positive is better

	Old RunSummary `json:"old"`
	New RunSummary `json:"new"`

	// informational
	PValue float64                      `json:"p_value"`
	OldCI  analytics.ConfidenceInterval `json:"old_ci"`
	NewCI  analytics.ConfidenceInterval `json:"new_ci"`

	CreatedAt time.Time `json:"created_at"`
}

// ParameterNames lists the changed parameters in sorted order
func (r *Result) ParameterNames() []string {
	names := make([]string, 0, len(r.Changes))
	for n := range r.Changes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type Validator struct {
	cfg   Config
	run   core.RunFunc
	store Store

	// Now anchors the trailing backtest window
	Now func() time.Time
}

// NewValidator validates changes with backtests over the given sources
func NewValidator(cfg Config, alerts feeds.AlertSource, prices feeds.PriceSource) *Validator {
	return NewValidatorWithRunner(cfg, core.Runner(alerts, prices, nil))
}

// NewValidatorWithRunner uses run for every backtest
func NewValidatorWithRunner(cfg Config, run core.RunFunc) *Validator {
	if cfg.MinTrades <= 0 {
		cfg.MinTrades = DefaultMinTrades
	}
	if cfg.BootstrapIterations <= 0 {
		cfg.BootstrapIterations = DefaultBootstrapIterations
	}
	return &Validator{
		cfg: cfg,
		run: run,
		Now: func() time.Time { return time.Now().UTC() },
	}
}

// SetStore sets where results are persisted
func (v *Validator) SetStore(s Store) {
	v.store = s
}

// ValidateParameterChange compares param at oldValue and newValue over the
// backtestDays ending now
func (v *Validator) ValidateParameterChange(
	ctx context.Context,
	param string,
	oldValue, newValue float64,
	backtestDays int,
	initialCapital decimal.Decimal,
) (*Result, error) {
	return v.ValidateMultipleParameters(ctx, map[string]Change{param: {Old: oldValue, New: newValue}}, backtestDays, initialCapital)
}

// ValidateMultipleParameters compares several simultaneous changes. An
// unknown parameter, an invalid value or a failed backtest becomes a REJECT
// verdict; only an empty change set or a non-positive window is an error.
func (v *Validator) ValidateMultipleParameters(
	ctx context.Context,
	changes map[string]Change,
	backtestDays int,
	initialCapital decimal.Decimal,
) (*Result, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("validate: no changes")
	}
	if backtestDays <= 0 {
		return nil, fmt.Errorf("validate: backtest days must be positive, got %d", backtestDays)
	}

	end := v.Now()
	start := end.Add(-time.Duration(backtestDays) * 24 * time.Hour)

	res := &Result{
		ID:             newRunID(),
		Changes:        changes,
		Period:         core.Period{Start: start, End: end},
		InitialCapital: initialCapital,
		CreatedAt:      end,
	}

	oldVals := make(map[string]float64, len(changes))
	newVals := make(map[string]float64, len(changes))
	for n, c := range changes {
		oldVals[n], newVals[n] = c.Old, c.New
	}
	oldParams, err := v.cfg.Base.Params.SetAll(oldVals)
	if err == nil {
		err = oldParams.Validate()
	}
	if err != nil {
		return v.finish(ctx, res.rejectConfig("baseline", err)), nil
	}
	newParams, err := v.cfg.Base.Params.SetAll(newVals)
	if err == nil {
		err = newParams.Validate()
	}
	if err != nil {
		return v.finish(ctx, res.rejectConfig("candidate", err)), nil
	}

	base := v.cfg.Base
	base.Start, base.End = start, end
	base.InitialCapital = initialCapital

	oldCfg, newCfg := base, base
	oldCfg.Params, newCfg.Params = oldParams, newParams

	log.Info().
		Str("changes", describe(changes)).
		Int("days", backtestDays).
		Msg("🔬 Validating parameter change")

	oldRes, err := v.run(ctx, oldCfg)
	if err != nil {
		return v.finish(ctx, res.rejectRun("baseline", err)), nil
	}
	newRes, err := v.run(ctx, newCfg)
	if err != nil {
		return v.finish(ctx, res.rejectRun("candidate", err)), nil
	}

	res.Old, res.New = summarize(oldRes), summarize(newRes)
	v.attachStatistics(res, oldRes, newRes)

	if res.New.Trades < v.cfg.MinTrades {
		res.Recommendation = Reject
		res.Confidence = fewTradesConfidence
		res.Reason = fmt.Sprintf("insufficient trades: %d < %d", res.New.Trades, v.cfg.MinTrades)
		return v.finish(ctx, res), nil
	}

	res.SharpeImprovementPct = SharpeImprovementPct(res.Old.SharpeRatio, res.New.SharpeRatio)
	res.ReturnDeltaPct = res.New.TotalReturnPct - res.Old.TotalReturnPct
	res.WinRateDelta = res.New.WinRate - res.Old.WinRate
	res.DrawdownDeltaPct = res.Old.MaxDrawdownPct - res.New.MaxDrawdownPct
	res.Score = Score(res.SharpeImprovementPct, res.ReturnDeltaPct, res.WinRateDelta, res.DrawdownDeltaPct)
	res.Recommendation, res.Confidence = Recommend(res.Score, res.SharpeImprovementPct)
	res.Reason = fmt.Sprintf("score %.2f, sharpe %+.1f%%, return %+.2f%%, win rate %+.1fpp, drawdown %+.2fpp",
		res.Score, res.SharpeImprovementPct, res.ReturnDeltaPct, res.WinRateDelta*100, res.DrawdownDeltaPct)

	return v.finish(ctx, res), nil
}

func (r *Result) rejectConfig(which string, err error) *Result {
	r.Recommendation = Reject
	r.Confidence = runFailedConfidence
	r.Reason = fmt.Sprintf("%s configuration invalid: %v", which, err)
	return r
}

func (r *Result) rejectRun(which string, err error) *Result {
	r.Recommendation = Reject
	r.Confidence = runFailedConfidence
	r.Reason = fmt.Sprintf("%s backtest failed: %v", which, err)
	return r
}

func (v *Validator) finish(ctx context.Context, r *Result) *Result {
	log.Info().
		Str("id", r.ID[:8]).
		Str("recommendation", string(r.Recommendation)).
		Float64("confidence", r.Confidence).
		Float64("score", r.Score).
		Str("reason", r.Reason).
		Msg("📋 Validation complete")

	if v.store != nil {
		if err := v.store.SaveValidation(ctx, r); err != nil {
			log.Error().Err(err).Msg("Failed to save validation")
		}
	}
	return r
}

// attachStatistics adds bootstrap p-value and confidence intervals of the
// per-trade returns
func (v *Validator) attachStatistics(r *Result, oldRes, newRes *core.Result) {
	rng := rand.New(rand.NewSource(v.cfg.Seed))
	oldRet, newRet := oldRes.TradeReturns(), newRes.TradeReturns()
	r.PValue = analytics.BootstrapPValue(oldRet, newRet, v.cfg.BootstrapIterations, rng)
	r.OldCI = analytics.BootstrapMeanCI(oldRet, v.cfg.BootstrapIterations, confidenceLevel, rng)
	r.NewCI = analytics.BootstrapMeanCI(newRet, v.cfg.BootstrapIterations, confidenceLevel, rng)
}

// ═══════════════════════════════════════════════════════════════════════════════
// SCORING
// ═══════════════════════════════════════════════════════════════════════════════

// SharpeImprovementPct is the relative Sharpe change in percent. From a zero
// baseline any improvement counts as +100% and any decline as -100%.
func SharpeImprovementPct(oldSharpe, newSharpe float64) float64 {
	if oldSharpe == 0 {
		switch {
		case newSharpe > 0:
			return sharpeImprovementCap
		case newSharpe < 0:
			return -sharpeImprovementCap
		default:
			return 0
		}
	}
	return (newSharpe - oldSharpe) / math.Abs(oldSharpe) * 100
}

// Score combines the metric deltas into one number
func Score(sharpeImprovementPct, returnDeltaPct, winRateDelta, drawdownDeltaPct float64) float64 {
	return 0.4*sharpeImprovementPct +
		0.3*returnDeltaPct +
		0.2*winRateDelta*100 +
		0.1*drawdownDeltaPct
}

// Recommend maps a score and Sharpe improvement to a verdict and confidence
func Recommend(score, sharpeImprovementPct float64) (Recommendation, float64) {
	switch {
	case score > 15 && sharpeImprovementPct > 20:
		return Approve, math.Min(0.95, 0.75+score/100)
	case score > 8 && sharpeImprovementPct > 10:
		return Approve, math.Min(0.85, 0.65+score/100)
	case score > 3 && sharpeImprovementPct > 0:
		return Approve, math.Min(0.70, 0.55+score/100)
	case math.Abs(score) <= neutralScoreBand:
		return Neutral, neutralConfidence
	default:
		return Reject, math.Min(0.80, 0.5+math.Max(-score, 0)/100)
	}
}

func summarize(r *core.Result) RunSummary {
	m := r.Metrics
	return RunSummary{
		RunID:          r.RunID,
		SharpeRatio:    m.SharpeRatio,
		TotalReturnPct: m.TotalReturnPct,
		WinRate:        m.WinRate,
		MaxDrawdownPct: m.MaxDrawdownPct,
		ProfitFactor:   m.ProfitFactor,
		Trades:         m.TotalTrades,
	}
}

func describe(changes map[string]Change) string {
	names := make([]string, 0, len(changes))
	for n := range changes {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s %g→%g", n, changes[n].Old, changes[n].New)
	}
	return strings.Join(parts, ", ")
}

func newRunID() string {
	return uuid.NewString()
}
