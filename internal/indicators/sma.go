package indicators

import "github.com/trbinh/crypto-margin-bot/pkg/types"

// SMA returns the simple moving average of closes over the trailing period.
// Returns 0 when there is not enough data.
func SMA(data []types.OHLCV, period int) float64 {
	if period <= 0 || len(data) < period {
		return 0
	}
	sum := 0.0
	for _, candle := range data[len(data)-period:] {
		sum += candle.Close
	}
	return sum / float64(period)
}

// SMAAt returns the SMA ending at index i (inclusive), 0 when out of range.
func SMAAt(data []types.OHLCV, period, i int) float64 {
	if i+1 < period || i >= len(data) {
		return 0
	}
	return SMA(data[:i+1], period)
}
