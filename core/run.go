package core

import (
	"context"

	"github.com/Amenzel91/catalyst-bot-sub003/feeds"
)

// RunFunc executes one backtest for cfg
type RunFunc func(ctx context.Context, cfg Config) (*Result, error)

// Runner returns a RunFunc building a fresh engine over the given sources
// for every call
func Runner(alerts feeds.AlertSource, prices feeds.PriceSource, recorder Recorder) RunFunc {
	return func(ctx context.Context, cfg Config) (*Result, error) {
		eng, err := NewEngine(cfg, alerts, prices)
		if err != nil {
			return nil, err
		}
		if recorder != nil {
			eng.SetRecorder(recorder)
		}
		return eng.Run(ctx)
	}
}
