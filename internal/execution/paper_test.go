package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trbinh/crypto-margin-bot/internal/position"
	"github.com/trbinh/crypto-margin-bot/internal/risk"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

func approvedEval(action risk.Action, size float64) risk.TradeEvaluation {
	return risk.TradeEvaluation{
		Decision:     risk.DecisionApproved,
		PositionSize: size,
		RiskScore:    0.2,
		StopLoss:     49000,
		TakeProfit:   52000,
		Signal:       risk.TradeSignal{Action: action, Confidence: 0.9, StrategyName: "test"},
	}
}

func paperSnapshot(now time.Time) types.Snapshot {
	return types.Snapshot{
		Symbol: "BTCUSDT",
		Ticker: types.Ticker{Symbol: "BTCUSDT", Bid: 49990, Ask: 50010, Last: 50000, Timestamp: now},
		Candles: []types.OHLCV{
			{Open: 49900, High: 50100, Low: 49800, Close: 50000, Volume: 100, Timestamp: now},
		},
		Timestamp: now,
	}
}

func TestPaperExecuteFillsAtTouch(t *testing.T) {
	tracker, err := position.NewTracker(nil, "BTCUSDT")
	require.NoError(t, err)
	ledger := NewLedger(10000, 0.0006)
	executor := NewPaperExecutor(tracker, ledger, "BTCUSDT")
	now := time.Now()

	// Buys pay the ask.
	result := executor.Execute(context.Background(), approvedEval(risk.ActionBuy, 0.01), paperSnapshot(now))
	require.True(t, result.Success)
	assert.Equal(t, ModePaper, result.Mode)
	assert.Equal(t, StatusFilled, result.Status)
	assert.Equal(t, 50010.0, result.FilledPrice)
	require.NotNil(t, result.Position)
	assert.Equal(t, position.StatusOpen, result.Position.Status)
	assert.Equal(t, 1, tracker.OpenCount())

	// Entry commission came out of the ledger.
	assert.InDelta(t, 10000-50010*0.01*0.0006, ledger.Balance(), 1e-9)

	// Sells hit the bid.
	result = executor.Execute(context.Background(), approvedEval(risk.ActionSell, 0.01), paperSnapshot(now))
	require.True(t, result.Success)
	assert.Equal(t, 49990.0, result.FilledPrice)
}

func TestPaperExecuteRefusesDeniedEvaluation(t *testing.T) {
	tracker, err := position.NewTracker(nil, "BTCUSDT")
	require.NoError(t, err)
	executor := NewPaperExecutor(tracker, NewLedger(10000, 0), "BTCUSDT")

	eval := risk.TradeEvaluation{Decision: risk.DecisionDenied, DenialReasons: []string{"test"}}
	result := executor.Execute(context.Background(), eval, paperSnapshot(time.Now()))

	assert.False(t, result.Success)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Error(t, result.Err)
	assert.Zero(t, tracker.OpenCount())
}

func TestPaperCloseSettlesLedger(t *testing.T) {
	tracker, err := position.NewTracker(nil, "BTCUSDT")
	require.NoError(t, err)
	ledger := NewLedger(10000, 0)
	executor := NewPaperExecutor(tracker, ledger, "BTCUSDT")
	now := time.Now()

	result := executor.Execute(context.Background(), approvedEval(risk.ActionBuy, 0.01), paperSnapshot(now))
	require.True(t, result.Success)

	closeResult := executor.ClosePosition(context.Background(), result.Position, 51010)
	require.True(t, closeResult.Success)

	// Entry at 50010, exit at 51010: +1000 on 0.01 units = +10.
	assert.InDelta(t, 10010.0, ledger.Balance(), 1e-9)
}
