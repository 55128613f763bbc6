package strategy

import (
	"math"

	"github.com/trbinh/crypto-margin-bot/internal/indicators"
	"github.com/trbinh/crypto-margin-bot/internal/risk"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// MACross signals on fast/slow moving-average crossovers. It exists mainly
// as the reference strategy for paper runs and backtests; production signals
// normally come from an external source.
type MACross struct {
	fast int
	slow int
}

// NewMACross creates the strategy; fast must be shorter than slow.
func NewMACross(fast, slow int) *MACross {
	if fast >= slow {
		fast, slow = slow, fast
	}
	if fast < 1 {
		fast = 1
	}
	return &MACross{fast: fast, slow: slow}
}

func (s *MACross) Name() string {
	return "ma_cross"
}

func (s *MACross) MinCandles() int {
	// One extra candle to detect the cross itself.
	return s.slow + 1
}

// Analyze signals BUY when the fast average crosses above the slow one on
// the latest candle, SELL on the opposite cross, HOLD otherwise. Confidence
// scales with the separation of the averages after the cross; trend strength
// is the same separation in basis points, which the limits layer may use to
// waive cooldowns.
func (s *MACross) Analyze(candles []types.OHLCV) risk.TradeSignal {
	hold := risk.TradeSignal{Action: risk.ActionHold, StrategyName: s.Name()}
	if len(candles) < s.MinCandles() {
		return hold
	}

	last := len(candles) - 1
	fastNow := indicators.SMAAt(candles, s.fast, last)
	slowNow := indicators.SMAAt(candles, s.slow, last)
	fastPrev := indicators.SMAAt(candles, s.fast, last-1)
	slowPrev := indicators.SMAAt(candles, s.slow, last-1)
	if fastNow == 0 || slowNow == 0 || fastPrev == 0 || slowPrev == 0 {
		return hold
	}

	crossedUp := fastPrev <= slowPrev && fastNow > slowNow
	crossedDown := fastPrev >= slowPrev && fastNow < slowNow
	if !crossedUp && !crossedDown {
		return hold
	}

	separation := math.Abs(fastNow-slowNow) / slowNow

	signal := risk.TradeSignal{
		Confidence:    confidenceFromSeparation(separation),
		TrendStrength: separation * 10000, // basis points
		StrategyName:  s.Name(),
	}
	if crossedUp {
		signal.Action = risk.ActionBuy
	} else {
		signal.Action = risk.ActionSell
	}
	return signal
}

// confidenceFromSeparation maps MA separation into [0.5, 0.95]: a cross is
// at least a coin flip, and no cross is ever treated as certainty.
func confidenceFromSeparation(separation float64) float64 {
	const fullConfidenceSeparation = 0.01 // 1% separation saturates
	conf := 0.5 + 0.45*math.Min(separation/fullConfidenceSeparation, 1)
	return conf
}
