package strategy

import (
	"errors"
	"fmt"
	"sort"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STRATEGY PARAMS - Entry/exit thresholds for one backtest run
// ═══════════════════════════════════════════════════════════════════════════════
//
// Params are treated as immutable once a run starts. Set returns a modified
// copy so sweeps and validations never share state between runs.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Tunable parameter names, as used by sweeps, validation and YAML files
const (
	ParamMinScore          = "min_score"
	ParamMinSentiment      = "min_sentiment"
	ParamTakeProfitPct     = "take_profit_pct"
	ParamStopLossPct       = "stop_loss_pct"
	ParamMaxHoldHours      = "max_hold_hours"
	ParamPositionSizePct   = "position_size_pct"
	ParamMaxDailyVolumePct = "max_daily_volume_pct"
)

// ErrUnknownParam is returned for a parameter name that Params does not carry
var ErrUnknownParam = errors.New("unknown strategy parameter")

// Params is the typed strategy configuration
type Params struct {
	Name              string   `yaml:"name" json:"name,omitempty"`
	MinScore          float64  `yaml:"min_score" json:"min_score"`
	MinSentiment      *float64 `yaml:"min_sentiment" json:"min_sentiment,omitempty"`
	TakeProfitPct     float64  `yaml:"take_profit_pct" json:"take_profit_pct"`
	StopLossPct       float64  `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	MaxHoldHours      float64  `yaml:"max_hold_hours" json:"max_hold_hours"`
	PositionSizePct   float64  `yaml:"position_size_pct" json:"position_size_pct"`
	MaxDailyVolumePct float64  `yaml:"max_daily_volume_pct" json:"max_daily_volume_pct"`
	RequiredCatalysts []string `yaml:"required_catalysts" json:"required_catalysts,omitempty"`
}

// DefaultParams returns the baseline strategy
func DefaultParams() Params {
	return Params{
		Name:              "default",
		MinScore:          0.25,
		TakeProfitPct:     0.20,
		StopLossPct:       0.10,
		MaxHoldHours:      24,
		PositionSizePct:   0.10,
		MaxDailyVolumePct: 0.05,
	}
}

// Validate checks the params once, before a run uses them
func (p Params) Validate() error {
	if p.MinScore < 0 || p.MinScore > 1 {
		return fmt.Errorf("min_score must be in [0,1], got %v", p.MinScore)
	}
	if p.MinSentiment != nil && (*p.MinSentiment < -1 || *p.MinSentiment > 1) {
		return fmt.Errorf("min_sentiment must be in [-1,1], got %v", *p.MinSentiment)
	}
	if p.TakeProfitPct <= 0 {
		return fmt.Errorf("take_profit_pct must be positive, got %v", p.TakeProfitPct)
	}
	if p.StopLossPct <= 0 || p.StopLossPct >= 1 {
		return fmt.Errorf("stop_loss_pct must be in (0,1), got %v", p.StopLossPct)
	}
	if p.MaxHoldHours <= 0 {
		return fmt.Errorf("max_hold_hours must be positive, got %v", p.MaxHoldHours)
	}
	if p.PositionSizePct <= 0 || p.PositionSizePct > 1 {
		return fmt.Errorf("position_size_pct must be in (0,1], got %v", p.PositionSizePct)
	}
	if p.MaxDailyVolumePct <= 0 || p.MaxDailyVolumePct > 1 {
		return fmt.Errorf("max_daily_volume_pct must be in (0,1], got %v", p.MaxDailyVolumePct)
	}
	return nil
}

// Clone returns a deep copy
func (p Params) Clone() Params {
	out := p
	if p.MinSentiment != nil {
		v := *p.MinSentiment
		out.MinSentiment = &v
	}
	if p.RequiredCatalysts != nil {
		out.RequiredCatalysts = append([]string(nil), p.RequiredCatalysts...)
	}
	return out
}

// Set returns a copy with the named numeric parameter replaced
func (p Params) Set(name string, value float64) (Params, error) {
	out := p.Clone()
	switch name {
	case ParamMinScore:
		out.MinScore = value
	case ParamMinSentiment:
		v := value
		out.MinSentiment = &v
	case ParamTakeProfitPct:
		out.TakeProfitPct = value
	case ParamStopLossPct:
		out.StopLossPct = value
	case ParamMaxHoldHours:
		out.MaxHoldHours = value
	case ParamPositionSizePct:
		out.PositionSizePct = value
	case ParamMaxDailyVolumePct:
		out.MaxDailyVolumePct = value
	default:
		return p, fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}
	return out, nil
}

// SetAll applies several named values in a stable order
func (p Params) SetAll(values map[string]float64) (Params, error) {
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)

	out := p.Clone()
	for _, n := range names {
		var err error
		out, err = out.Set(n, values[n])
		if err != nil {
			return p, err
		}
	}
	return out, nil
}

// Get reads a numeric parameter. ok is false for unknown names and for an
// unset min_sentiment.
func (p Params) Get(name string) (value float64, ok bool) {
	switch name {
	case ParamMinScore:
		return p.MinScore, true
	case ParamMinSentiment:
		if p.MinSentiment == nil {
			return 0, false
		}
		return *p.MinSentiment, true
	case ParamTakeProfitPct:
		return p.TakeProfitPct, true
	case ParamStopLossPct:
		return p.StopLossPct, true
	case ParamMaxHoldHours:
		return p.MaxHoldHours, true
	case ParamPositionSizePct:
		return p.PositionSizePct, true
	case ParamMaxDailyVolumePct:
		return p.MaxDailyVolumePct, true
	}
	return 0, false
}

// ParamNames lists every tunable parameter
func ParamNames() []string {
	return []string{
		ParamMinScore,
		ParamMinSentiment,
		ParamTakeProfitPct,
		ParamStopLossPct,
		ParamMaxHoldHours,
		ParamPositionSizePct,
		ParamMaxDailyVolumePct,
	}
}
