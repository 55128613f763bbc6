package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trbinh/crypto-margin-bot/internal/risk"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

func candlesFromCloses(closes []float64) []types.OHLCV {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]types.OHLCV, len(closes))
	for i, c := range closes {
		candles[i] = types.OHLCV{
			Open: c, High: c, Low: c, Close: c, Volume: 100,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return candles
}

func TestMACrossSignalsOnCross(t *testing.T) {
	s := NewMACross(2, 4)

	// Flat then a sharp rally: the 2-period average crosses above the
	// 4-period one on the last candle.
	up := candlesFromCloses([]float64{100, 100, 100, 100, 100, 100, 120})
	signal := s.Analyze(up)
	assert.Equal(t, risk.ActionBuy, signal.Action)
	assert.GreaterOrEqual(t, signal.Confidence, 0.5)
	assert.Greater(t, signal.TrendStrength, 0.0)

	// Mirror image sells.
	down := candlesFromCloses([]float64{100, 100, 100, 100, 100, 100, 80})
	signal = s.Analyze(down)
	assert.Equal(t, risk.ActionSell, signal.Action)
}

func TestMACrossHoldsWithoutCross(t *testing.T) {
	s := NewMACross(2, 4)

	flat := candlesFromCloses([]float64{100, 100, 100, 100, 100, 100, 100})
	assert.Equal(t, risk.ActionHold, s.Analyze(flat).Action)

	// Steady trend with the fast average already above: no new cross.
	trending := candlesFromCloses([]float64{100, 102, 104, 106, 108, 110, 112})
	assert.Equal(t, risk.ActionHold, s.Analyze(trending).Action)
}

func TestMACrossHoldsOnShortHistory(t *testing.T) {
	s := NewMACross(2, 4)
	short := candlesFromCloses([]float64{100, 101})
	assert.Equal(t, risk.ActionHold, s.Analyze(short).Action)
}

func TestMACrossSwapsInvertedPeriods(t *testing.T) {
	s := NewMACross(10, 3)
	assert.Equal(t, 11, s.MinCandles())
}
