package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trbinh/crypto-margin-bot/internal/config"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

type stubLimits struct {
	violations []string
}

func (s *stubLimits) CheckLimits(now time.Time, trendStrength float64) []string {
	return s.violations
}

func testSnapshot(price, atr float64, now time.Time) types.Snapshot {
	candles := make([]types.OHLCV, 20)
	for i := range candles {
		candles[i] = types.OHLCV{
			Open:      price,
			High:      price * 1.001,
			Low:       price * 0.999,
			Close:     price,
			Volume:    100,
			Timestamp: now.Add(-time.Duration(len(candles)-i) * time.Minute),
		}
	}
	return types.Snapshot{
		Symbol:     "BTCUSDT",
		Ticker:     types.Ticker{Symbol: "BTCUSDT", Bid: price * 0.9999, Ask: price * 1.0001, Last: price, Timestamp: now},
		Candles:    candles,
		ATR:        atr,
		Volatility: atr / price,
		AvgVolume:  100,
		APILatency: 50 * time.Millisecond,
		Timestamp:  now,
	}
}

func healthyMargin() *types.MarginStatus {
	return &types.MarginStatus{
		Equity:            10000,
		MaintenanceMargin: 100,
		InitialMargin:     500,
		Ratio:             100,
	}
}

func newTestManager(t *testing.T, limits LimitChecker) (*RiskManager, *DrawdownManager) {
	t.Helper()
	cfg := config.Default()
	dd, err := NewDrawdownManager(cfg.Risk, cfg.Sizing, nil, "BTCUSDT")
	require.NoError(t, err)
	return NewRiskManager(cfg.Risk, cfg.Sizing, dd, limits), dd
}

func TestEvaluateApprovesHealthySignal(t *testing.T) {
	now := time.Now()
	mgr, _ := newTestManager(t, &stubLimits{})

	signal := TradeSignal{Action: ActionBuy, Confidence: 0.9, StrategyName: "test"}
	eval := mgr.Evaluate(signal, testSnapshot(50000, 500, now), healthyMargin(), 10000, now)

	assert.Equal(t, DecisionApproved, eval.Decision)
	assert.Greater(t, eval.PositionSize, 0.0)
	assert.Less(t, eval.RiskScore, 0.6)
	assert.Empty(t, eval.DenialReasons)
	assert.Greater(t, eval.StopLoss, 0.0)
	assert.Greater(t, eval.TakeProfit, eval.StopLoss)
}

func TestEvaluateDeniedAlwaysHasZeroSizeAndReason(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name   string
		signal TradeSignal
		snap   types.Snapshot
		margin *types.MarginStatus
		limits LimitChecker
	}{
		{
			name:   "hold signal",
			signal: TradeSignal{Action: ActionHold, Confidence: 0.9},
			snap:   testSnapshot(50000, 500, now),
			margin: healthyMargin(),
			limits: &stubLimits{},
		},
		{
			name:   "empty snapshot",
			signal: TradeSignal{Action: ActionBuy, Confidence: 0.9},
			snap:   types.Snapshot{Timestamp: now},
			margin: healthyMargin(),
			limits: &stubLimits{},
		},
		{
			name:   "missing margin",
			signal: TradeSignal{Action: ActionBuy, Confidence: 0.9},
			snap:   testSnapshot(50000, 500, now),
			margin: nil,
			limits: &stubLimits{},
		},
		{
			name:   "limit violation",
			signal: TradeSignal{Action: ActionBuy, Confidence: 0.9},
			snap:   testSnapshot(50000, 500, now),
			margin: healthyMargin(),
			limits: &stubLimits{violations: []string{"max positions reached"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mgr, _ := newTestManager(t, tc.limits)
			eval := mgr.Evaluate(tc.signal, tc.snap, tc.margin, 10000, now)

			assert.Equal(t, DecisionDenied, eval.Decision)
			assert.Zero(t, eval.PositionSize)
			assert.NotEmpty(t, eval.DenialReasons)
		})
	}
}

func TestEvaluateDeniesCriticalMarginDespiteHighConfidence(t *testing.T) {
	now := time.Now()
	mgr, _ := newTestManager(t, &stubLimits{})

	// Margin ratio 0.95 against a critical threshold of 1.0.
	margin := &types.MarginStatus{Equity: 95, MaintenanceMargin: 100, Ratio: 0.95}
	signal := TradeSignal{Action: ActionBuy, Confidence: 0.99}
	eval := mgr.Evaluate(signal, testSnapshot(50000, 500, now), margin, 10000, now)

	assert.Equal(t, DecisionDenied, eval.Decision)
	assert.Zero(t, eval.PositionSize)
	require.NotEmpty(t, eval.DenialReasons)
	assert.Contains(t, eval.DenialReasons[0], "margin")
}

func TestEvaluateDeniesStaleSnapshot(t *testing.T) {
	now := time.Now()
	mgr, _ := newTestManager(t, &stubLimits{})

	snap := testSnapshot(50000, 500, now.Add(-10*time.Minute))
	eval := mgr.Evaluate(TradeSignal{Action: ActionBuy, Confidence: 0.9}, snap, healthyMargin(), 10000, now)

	assert.Equal(t, DecisionDenied, eval.Decision)
	require.NotEmpty(t, eval.DenialReasons)
	assert.Contains(t, eval.DenialReasons[0], "stale")
}

func TestEvaluateDeniesWhilePaused(t *testing.T) {
	now := time.Now()
	mgr, dd := newTestManager(t, &stubLimits{})

	require.NoError(t, dd.UpdateBalance(10000, now))
	require.NoError(t, dd.UpdateBalance(7000, now)) // 30% drawdown, limit 20%
	require.Equal(t, StatePausedDrawdown, dd.State())

	eval := mgr.Evaluate(TradeSignal{Action: ActionBuy, Confidence: 0.95}, testSnapshot(50000, 500, now), healthyMargin(), 7000, now)

	assert.Equal(t, DecisionDenied, eval.Decision)
	require.NotEmpty(t, eval.DenialReasons)
	assert.Contains(t, eval.DenialReasons[0], "paused")
}

func TestEvaluateConditionalBandAppliesHaircut(t *testing.T) {
	now := time.Now()
	cfg := config.Default()
	// Score is driven entirely by confidence so the band is predictable.
	cfg.Risk.Weights = config.RiskWeights{Confidence: 1.0}
	dd, err := NewDrawdownManager(cfg.Risk, cfg.Sizing, nil, "BTCUSDT")
	require.NoError(t, err)
	mgr := NewRiskManager(cfg.Risk, cfg.Sizing, dd, &stubLimits{})

	// confidence 0.3 -> score 0.7, inside [0.6, 0.8).
	eval := mgr.Evaluate(TradeSignal{Action: ActionBuy, Confidence: 0.3}, testSnapshot(50000, 500, now), healthyMargin(), 10000, now)

	assert.Equal(t, DecisionConditional, eval.Decision)
	assert.True(t, eval.ExtraMonitoring)
	assert.Greater(t, eval.PositionSize, 0.0)

	// confidence 0.1 -> score 0.9, at or over the deny band.
	eval = mgr.Evaluate(TradeSignal{Action: ActionBuy, Confidence: 0.1}, testSnapshot(50000, 500, now), healthyMargin(), 10000, now)
	assert.Equal(t, DecisionDenied, eval.Decision)
	assert.Zero(t, eval.PositionSize)
}

func TestEvaluateStopArithmetic(t *testing.T) {
	now := time.Now()
	mgr, _ := newTestManager(t, &stubLimits{})

	// ATR 160,000 at price 16,000,000 with multiplier 2.0 gives
	// sl_ratio = 0.02; rr_ratio 2.0 gives tp_ratio 0.04.
	price := 16_000_000.0
	snap := testSnapshot(price, 160_000, now)

	eval := mgr.Evaluate(TradeSignal{Action: ActionBuy, Confidence: 0.95}, snap, healthyMargin(), 10000, now)
	require.Equal(t, DecisionApproved, eval.Decision)
	assert.InDelta(t, 15_680_000, eval.StopLoss, 1)
	assert.InDelta(t, 16_640_000, eval.TakeProfit, 1)

	eval = mgr.Evaluate(TradeSignal{Action: ActionSell, Confidence: 0.95}, snap, healthyMargin(), 10000, now)
	require.Equal(t, DecisionApproved, eval.Decision)
	assert.InDelta(t, 16_320_000, eval.StopLoss, 1)
	assert.InDelta(t, 15_360_000, eval.TakeProfit, 1)
}

func TestEvaluatePrefersSignalProvidedStops(t *testing.T) {
	now := time.Now()
	mgr, _ := newTestManager(t, &stubLimits{})

	signal := TradeSignal{Action: ActionBuy, Confidence: 0.9, StopLoss: 49000, TakeProfit: 53000}
	eval := mgr.Evaluate(signal, testSnapshot(50000, 500, now), healthyMargin(), 10000, now)

	assert.Equal(t, 49000.0, eval.StopLoss)
	assert.Equal(t, 53000.0, eval.TakeProfit)
}

func TestEvaluateDeniesCriticalAnomaly(t *testing.T) {
	now := time.Now()
	mgr, _ := newTestManager(t, &stubLimits{})

	snap := testSnapshot(50000, 500, now)
	snap.APILatency = 30 * time.Second // critical threshold is 10s

	eval := mgr.Evaluate(TradeSignal{Action: ActionBuy, Confidence: 0.95}, snap, healthyMargin(), 10000, now)

	assert.Equal(t, DecisionDenied, eval.Decision)
	require.NotEmpty(t, eval.DenialReasons)
	assert.Contains(t, eval.DenialReasons[0], "anomaly")
}
