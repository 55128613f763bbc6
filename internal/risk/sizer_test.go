package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trbinh/crypto-margin-bot/internal/config"
)

func lossHistory(n int) []TradeRecord {
	records := make([]TradeRecord, n)
	for i := range records {
		pnl := 15.0
		if i%3 == 0 {
			pnl = -10.0
		}
		records[i] = TradeRecord{ProfitLoss: pnl, Strategy: "test", Confidence: 0.8, Timestamp: time.Now()}
	}
	return records
}

func TestKellyShortHistoryReturnsMinLot(t *testing.T) {
	cfg := config.Default().Sizing
	kelly := NewKellyCriterion(cfg)

	for n := 0; n < minKellyHistory; n++ {
		size := kelly.Size(lossHistory(n), 10000, 50000)
		assert.Equal(t, cfg.MinLot, size, "history length %d", n)
	}
}

func TestKellyFractionClamped(t *testing.T) {
	cfg := config.Default().Sizing
	kelly := NewKellyCriterion(cfg)

	// 2/3 win rate with 1.5 payoff ratio: f* = (1.5*0.667 - 0.333)/1.5 ≈ 0.44,
	// clamped to the 10% maximum.
	f := kelly.Fraction(lossHistory(30))
	assert.Equal(t, cfg.MaxKellyFraction, f)

	// All losses size to zero.
	allLosses := make([]TradeRecord, 10)
	for i := range allLosses {
		allLosses[i] = TradeRecord{ProfitLoss: -10}
	}
	assert.Zero(t, kelly.Fraction(allLosses))

	f = kelly.Fraction(nil)
	assert.Zero(t, f)
}

func TestIntegrateTakesMinimum(t *testing.T) {
	cases := []struct {
		kelly, dynamic, baseline, want float64
	}{
		{0.5, 0.3, 0.4, 0.3},
		{0.1, 0.3, 0.4, 0.1},
		{0.5, 0.3, 0.05, 0.05},
		{0.2, 0.2, 0.2, 0.2},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Integrate(tc.kelly, tc.dynamic, tc.baseline))
	}
}

func TestDynamicSizeTiers(t *testing.T) {
	cfg := config.Default().Sizing
	sizer := NewPositionSizer(cfg)

	balance, price := 10000.0, 50000.0

	// Tier boundaries: 2% at conf 0.5, 5% at 0.75, 10% at 1.0.
	assert.InDelta(t, 0.02*balance/price, sizer.DynamicSize(0.5, balance, price), 1e-9)
	assert.InDelta(t, 0.05*balance/price, sizer.DynamicSize(0.75, balance, price), 1e-9)
	assert.InDelta(t, 0.10*balance/price, sizer.DynamicSize(1.0, balance, price), 1e-9)

	// Monotone in confidence.
	prev := 0.0
	for conf := 0.0; conf <= 1.0; conf += 0.05 {
		size := sizer.DynamicSize(conf, balance, price)
		assert.GreaterOrEqual(t, size, prev)
		prev = size
	}

	// Never below the minimum lot.
	assert.Equal(t, cfg.MinLot, sizer.DynamicSize(0, balance, price))
}

func TestSizeIsNeverLargerThanAnyComponent(t *testing.T) {
	cfg := config.Default().Sizing
	sizer := NewPositionSizer(cfg)

	history := lossHistory(30)
	balance, price := 10000.0, 50000.0

	size := sizer.Size(history, 0.9, balance, price)
	assert.LessOrEqual(t, size, sizer.DynamicSize(0.9, balance, price))
	assert.LessOrEqual(t, size, sizer.BaselineSize(price))
	assert.Greater(t, size, 0.0)
}
