package indicators

import (
	"math"

	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

const DefaultATRPeriod = 14

// ATR computes the average true range over the last period candles. Returns
// 0 when the window is too short, which callers treat as "no volatility
// information".
func ATR(data []types.OHLCV, period int) float64 {
	if period <= 0 {
		period = DefaultATRPeriod
	}
	if len(data) < period+1 {
		return 0
	}

	sum := 0.0
	for i := len(data) - period; i < len(data); i++ {
		current := data[i]
		previous := data[i-1]

		tr := math.Max(current.High-current.Low,
			math.Max(math.Abs(current.High-previous.Close), math.Abs(current.Low-previous.Close)))
		sum += tr
	}
	return sum / float64(period)
}

// VolatilityRatio is ATR relative to the latest close, the normalized
// volatility factor used in sizing and risk scoring.
func VolatilityRatio(data []types.OHLCV, period int) float64 {
	if len(data) == 0 {
		return 0
	}
	last := data[len(data)-1].Close
	if last <= 0 {
		return 0
	}
	return ATR(data, period) / last
}

// AvgVolume returns the mean volume of the window.
func AvgVolume(data []types.OHLCV) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range data {
		sum += c.Volume
	}
	return sum / float64(len(data))
}
