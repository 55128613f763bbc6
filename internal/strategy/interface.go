package strategy

import (
	"github.com/trbinh/crypto-margin-bot/internal/risk"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// Strategy produces a candidate trade signal from a bounded candle view. The
// view never extends past the decision point — in backtests the engine
// enforces the visible horizon, live it is simply the latest window.
//
// Strategies are advisory only: every signal still passes risk admission.
type Strategy interface {
	Name() string

	// MinCandles is the smallest window the strategy can act on; shorter
	// views must return HOLD.
	MinCandles() int

	// Analyze returns the signal for the most recent candle of the view.
	Analyze(candles []types.OHLCV) risk.TradeSignal
}
