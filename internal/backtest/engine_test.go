package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trbinh/crypto-margin-bot/internal/config"
	"github.com/trbinh/crypto-margin-bot/internal/risk"
	"github.com/trbinh/crypto-margin-bot/internal/strategy"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// syntheticSeries builds an oscillating price series that produces repeated
// MA crosses in both directions.
func syntheticSeries(n int) []types.OHLCV {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, n)
	for i := range bars {
		price := 50000 + 2000*math.Sin(float64(i)/10)
		bars[i] = types.OHLCV{
			Open:      price,
			High:      price * 1.004,
			Low:       price * 0.996,
			Close:     price,
			Volume:    100,
			Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
		}
	}
	return bars
}

func backtestConfig() *config.Config {
	cfg := config.Default()
	cfg.Mode = config.ModeBacktest
	cfg.Trading.InitialBalance = 10000
	cfg.Trading.Commission = 0.0006
	// Short cooldown so the oscillating series can trade repeatedly.
	cfg.Limits.Cooldown = 10 * time.Minute
	cfg.Limits.DailyTradeCap = 100
	return cfg
}

func runEngine(t *testing.T, data []types.OHLCV, seed int64) *Result {
	t.Helper()
	engine := NewEngine(backtestConfig(), strategy.NewMACross(5, 20), data, seed)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	return result
}

func TestEngineProducesPairedTrades(t *testing.T) {
	result := runEngine(t, syntheticSeries(400), 42)

	require.NotEmpty(t, result.Trades, "oscillating series should trade")
	for _, trade := range result.Trades {
		assert.True(t, trade.ExitTime.After(trade.EntryTime),
			"exit must come after entry: %+v", trade)
		assert.Greater(t, trade.Size, 0.0)
		assert.Greater(t, trade.EntryPrice, 0.0)
		assert.Greater(t, trade.ExitPrice, 0.0)
		assert.Contains(t, []string{"TP", "SL", "FORCED"}, trade.ExitReason)
	}

	require.NotEmpty(t, result.Equity)
	assert.Equal(t, result.FinalBalance, result.Equity[len(result.Equity)-1].Balance)
	assert.GreaterOrEqual(t, result.Metrics.MaxDrawdown, 0.0)
	assert.LessOrEqual(t, result.Metrics.MaxDrawdown, 1.0)
	assert.Equal(t, result.Approved+result.Conditional+result.Denied, result.Evaluations)
}

func TestEngineDeterminism(t *testing.T) {
	data := syntheticSeries(400)

	first := runEngine(t, data, 7)
	second := runEngine(t, data, 7)

	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Equity, second.Equity)
	assert.Equal(t, first.FinalBalance, second.FinalBalance)
	assert.Equal(t, first.Metrics, second.Metrics)
}

func TestEngineLookaheadSafety(t *testing.T) {
	const horizon = 250
	full := syntheticSeries(400)

	prefix := make([]types.OHLCV, horizon)
	copy(prefix, full[:horizon])

	// Corrupt everything past the horizon: if any output up to the horizon
	// changes, future data leaked into an earlier decision.
	mutated := make([]types.OHLCV, len(full))
	copy(mutated, full)
	for i := horizon; i < len(mutated); i++ {
		mutated[i].Open *= 10
		mutated[i].High *= 10
		mutated[i].Low *= 10
		mutated[i].Close *= 10
	}

	prefixResult := runEngine(t, prefix, 7)
	mutatedResult := runEngine(t, mutated, 7)

	cutoff := full[horizon-1].Timestamp

	var prefixTrades, mutatedTrades []ClosedTrade
	for _, tr := range prefixResult.Trades {
		if tr.ExitReason != "FORCED" {
			prefixTrades = append(prefixTrades, tr)
		}
	}
	for _, tr := range mutatedResult.Trades {
		if tr.ExitReason != "FORCED" && !tr.ExitTime.After(cutoff) {
			mutatedTrades = append(mutatedTrades, tr)
		}
	}
	assert.Equal(t, prefixTrades, mutatedTrades)

	// Equity samples up to the horizon must be identical. The prefix run
	// appends one extra forced-flatten sample at its last bar, so compare
	// only the common per-bar samples.
	common := len(prefixResult.Equity) - 1
	require.LessOrEqual(t, common, len(mutatedResult.Equity))
	assert.Equal(t, prefixResult.Equity[:common], mutatedResult.Equity[:common])
}

func TestEngineRejectsShortSeries(t *testing.T) {
	engine := NewEngine(backtestConfig(), strategy.NewMACross(5, 20), syntheticSeries(10), 1)
	_, err := engine.Run(context.Background())
	assert.Error(t, err)
}

func TestMetricsComputation(t *testing.T) {
	now := time.Now()
	trades := []ClosedTrade{
		{RealizedPnL: 100, EntryTime: now, ExitTime: now.Add(time.Hour)},
		{RealizedPnL: -50, EntryTime: now, ExitTime: now.Add(time.Hour)},
		{RealizedPnL: 200, EntryTime: now, ExitTime: now.Add(time.Hour)},
		{RealizedPnL: -30, EntryTime: now, ExitTime: now.Add(time.Hour)},
	}
	equity := []risk.EquityPoint{
		{Balance: 10000, DrawdownPct: 0},
		{Balance: 9500, DrawdownPct: 0.05},
		{Balance: 10220, DrawdownPct: 0},
	}

	m := ComputeMetrics(trades, equity, 10000, 10220)
	assert.Equal(t, 4, m.TotalTrades)
	assert.Equal(t, 2, m.Wins)
	assert.Equal(t, 2, m.Losses)
	assert.InDelta(t, 0.5, m.WinRate, 1e-9)
	assert.InDelta(t, 150.0, m.AvgWin, 1e-9)
	assert.InDelta(t, 40.0, m.AvgLoss, 1e-9)
	assert.InDelta(t, 300.0/80.0, m.ProfitFactor, 1e-9)
	assert.InDelta(t, 220.0, m.TotalPnL, 1e-9)
	assert.InDelta(t, 0.05, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 0.022, m.ReturnPct, 1e-9)
	assert.NotZero(t, m.SharpeRatio)
}
