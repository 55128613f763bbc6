package execution

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	boterrors "github.com/trbinh/crypto-margin-bot/internal/errors"
	"github.com/trbinh/crypto-margin-bot/internal/position"
	"github.com/trbinh/crypto-margin-bot/internal/risk"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// BacktestExecutor fills entries at the current bar's close — the only price
// knowable at decision time without lookahead. TP/SL resolution is deferred
// to the engine's bar-by-bar stop scan.
type BacktestExecutor struct {
	tracker *position.Tracker
	ledger  *Ledger
	symbol  string
}

func NewBacktestExecutor(tracker *position.Tracker, ledger *Ledger, symbol string) *BacktestExecutor {
	return &BacktestExecutor{tracker: tracker, ledger: ledger, symbol: symbol}
}

func (e *BacktestExecutor) Mode() Mode {
	return ModeBacktest
}

func (e *BacktestExecutor) Execute(ctx context.Context, eval risk.TradeEvaluation, snap types.Snapshot) ExecutionResult {
	if eval.Denied() || eval.PositionSize <= 0 {
		return failed(ModeBacktest, boterrors.New(boterrors.ErrorCategoryExchangeFatal,
			"backtest_executor", "execute", "refusing to execute a denied evaluation"))
	}

	fillPrice := snap.LastClose()
	if fillPrice <= 0 {
		return failed(ModeBacktest, boterrors.NewMarketDataError(
			"backtest_executor", "execute", "no bar close available for fill"))
	}

	side := signalSide(eval.Signal.Action)
	p := position.NewPosition(e.symbol, side, fillPrice, eval.PositionSize,
		eval.StopLoss, eval.TakeProfit, eval.Signal.StrategyName, eval.Signal.Confidence, snap.Timestamp)
	p.EntryOrderID = "bt-" + uuid.NewString()

	if err := e.tracker.Register(p, snap.Timestamp); err != nil {
		return failed(ModeBacktest, fmt.Errorf("failed to track backtest position: %w", err))
	}
	e.ledger.OnOpen(fillPrice, eval.PositionSize)

	return ExecutionResult{
		Success:     true,
		Mode:        ModeBacktest,
		OrderID:     p.EntryOrderID,
		Status:      StatusFilled,
		FilledPrice: fillPrice,
		FilledSize:  eval.PositionSize,
		Position:    p,
	}
}

// ClosePosition fills at the trigger level passed by the stop scan.
func (e *BacktestExecutor) ClosePosition(ctx context.Context, p *position.Position, referencePrice float64) ExecutionResult {
	if referencePrice <= 0 {
		return failed(ModeBacktest, boterrors.NewMarketDataError(
			"backtest_executor", "close", "no reference price for close"))
	}

	pnl := p.UnrealizedPnL(referencePrice)
	e.ledger.OnClose(pnl, referencePrice, p.Size)

	return ExecutionResult{
		Success:     true,
		Mode:        ModeBacktest,
		OrderID:     "bt-" + uuid.NewString(),
		Status:      StatusFilled,
		FilledPrice: referencePrice,
		FilledSize:  p.Size,
		Position:    p,
	}
}
