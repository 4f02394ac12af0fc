package strategy

import (
	"errors"
	"testing"

	"github.com/Amenzel91/catalyst-bot-sub003/types"
)

func ptr(f float64) *float64 { return &f }

func TestAllows(t *testing.T) {
	p := DefaultParams()
	p.MinSentiment = ptr(0)
	p.RequiredCatalysts = []string{"FDA", "merger"}

	tests := []struct {
		name  string
		alert types.AlertRecord
		want  bool
	}{
		{name: "keyword match", alert: types.AlertRecord{Score: 0.5, Sentiment: 0.2, Keywords: []string{"fda"}}, want: true},
		{name: "catalyst type match", alert: types.AlertRecord{Score: 0.5, CatalystType: " Merger "}, want: true},
		{name: "score at minimum", alert: types.AlertRecord{Score: 0.25, Keywords: []string{"fda"}}, want: true},
		{name: "low score", alert: types.AlertRecord{Score: 0.2, Keywords: []string{"fda"}}, want: false},
		{name: "negative sentiment", alert: types.AlertRecord{Score: 0.9, Sentiment: -0.1, Keywords: []string{"fda"}}, want: false},
		{name: "no catalyst", alert: types.AlertRecord{Score: 0.9, Keywords: []string{"earnings"}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := p.Allows(tt.alert)
			if got != tt.want {
				t.Fatalf("Allows = %v (%s), want %v", got, reason, tt.want)
			}
			if got && reason != "" {
				t.Fatalf("reason %q on pass", reason)
			}
		})
	}
}

func TestAllowsWithoutOptionalFilters(t *testing.T) {
	ok, _ := DefaultParams().Allows(types.AlertRecord{Score: 0.3, Sentiment: -1})
	if !ok {
		t.Fatalf("sentiment and catalysts should not filter when unset")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		param string
		value float64
	}{
		{"min score above one", ParamMinScore, 1.5},
		{"sentiment below range", ParamMinSentiment, -2},
		{"zero take profit", ParamTakeProfitPct, 0},
		{"stop loss of one", ParamStopLossPct, 1},
		{"zero hold", ParamMaxHoldHours, 0},
		{"oversized position", ParamPositionSizePct, 1.2},
		{"zero volume cap", ParamMaxDailyVolumePct, 0},
	}
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DefaultParams().Set(tt.param, tt.value)
			if err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := p.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestSetReturnsCopy(t *testing.T) {
	base := DefaultParams()
	base.MinSentiment = ptr(0.1)
	base.RequiredCatalysts = []string{"fda"}

	next, err := base.Set(ParamMinSentiment, 0.5)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	next.RequiredCatalysts[0] = "merger"

	if *base.MinSentiment != 0.1 || base.RequiredCatalysts[0] != "fda" {
		t.Fatalf("original mutated: %+v", base)
	}
	if v, ok := next.Get(ParamMinSentiment); !ok || v != 0.5 {
		t.Fatalf("Get = %v %v", v, ok)
	}

	if _, err := base.Set("nope", 1); !errors.Is(err, ErrUnknownParam) {
		t.Fatalf("err = %v, want ErrUnknownParam", err)
	}
}

func TestSetAll(t *testing.T) {
	p, err := DefaultParams().SetAll(map[string]float64{
		ParamTakeProfitPct: 0.3,
		ParamStopLossPct:   0.05,
	})
	if err != nil {
		t.Fatalf("set all: %v", err)
	}
	if p.TakeProfitPct != 0.3 || p.StopLossPct != 0.05 {
		t.Fatalf("params = %+v", p)
	}

	base := DefaultParams()
	if _, err := base.SetAll(map[string]float64{ParamTakeProfitPct: 0.3, "bogus": 1}); err == nil {
		t.Fatalf("expected error for unknown name")
	}
	if base.TakeProfitPct != 0.20 {
		t.Fatalf("base mutated")
	}
}

func TestGetCoversEveryName(t *testing.T) {
	p := DefaultParams()
	p.MinSentiment = ptr(0)
	for _, name := range ParamNames() {
		if _, ok := p.Get(name); !ok {
			t.Fatalf("Get(%q) not supported", name)
		}
	}
	if _, ok := DefaultParams().Get(ParamMinSentiment); ok {
		t.Fatalf("unset sentiment should not be ok")
	}
}
