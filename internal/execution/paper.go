package execution

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	boterrors "github.com/trbinh/crypto-margin-bot/internal/errors"
	"github.com/trbinh/crypto-margin-bot/internal/exchange"
	"github.com/trbinh/crypto-margin-bot/internal/position"
	"github.com/trbinh/crypto-margin-bot/internal/risk"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// PaperExecutor simulates instant fills at the best bid/ask against the
// virtual ledger. Positions flow through the same tracker as live ones, so
// everything downstream is mode-agnostic.
type PaperExecutor struct {
	tracker *position.Tracker
	ledger  *Ledger
	symbol  string
}

func NewPaperExecutor(tracker *position.Tracker, ledger *Ledger, symbol string) *PaperExecutor {
	return &PaperExecutor{tracker: tracker, ledger: ledger, symbol: symbol}
}

func (e *PaperExecutor) Mode() Mode {
	return ModePaper
}

// Execute fills a buy at the ask and a sell at the bid — the price a market
// taker would actually get.
func (e *PaperExecutor) Execute(ctx context.Context, eval risk.TradeEvaluation, snap types.Snapshot) ExecutionResult {
	if eval.Denied() || eval.PositionSize <= 0 {
		return failed(ModePaper, boterrors.New(boterrors.ErrorCategoryExchangeFatal,
			"paper_executor", "execute", "refusing to execute a denied evaluation"))
	}

	side := signalSide(eval.Signal.Action)
	fillPrice := fillPriceFor(side, snap.Ticker)
	if fillPrice <= 0 {
		return failed(ModePaper, boterrors.NewMarketDataError(
			"paper_executor", "execute", "no bid/ask available for simulated fill"))
	}

	p := position.NewPosition(e.symbol, side, fillPrice, eval.PositionSize,
		eval.StopLoss, eval.TakeProfit, eval.Signal.StrategyName, eval.Signal.Confidence, snap.Timestamp)
	p.EntryOrderID = "paper-" + uuid.NewString()

	if err := e.tracker.Register(p, snap.Timestamp); err != nil {
		return failed(ModePaper, fmt.Errorf("failed to track simulated position: %w", err))
	}
	e.ledger.OnOpen(fillPrice, eval.PositionSize)

	return ExecutionResult{
		Success:     true,
		Mode:        ModePaper,
		OrderID:     p.EntryOrderID,
		Status:      StatusFilled,
		FilledPrice: fillPrice,
		FilledSize:  eval.PositionSize,
		Position:    p,
	}
}

// ClosePosition fills the opposite side instantly at the reference price.
func (e *PaperExecutor) ClosePosition(ctx context.Context, p *position.Position, referencePrice float64) ExecutionResult {
	if referencePrice <= 0 {
		return failed(ModePaper, boterrors.NewMarketDataError(
			"paper_executor", "close", "no reference price for simulated close"))
	}

	pnl := p.UnrealizedPnL(referencePrice)
	e.ledger.OnClose(pnl, referencePrice, p.Size)

	return ExecutionResult{
		Success:     true,
		Mode:        ModePaper,
		OrderID:     "paper-" + uuid.NewString(),
		Status:      StatusFilled,
		FilledPrice: referencePrice,
		FilledSize:  p.Size,
		Position:    p,
	}
}

func signalSide(action risk.Action) exchange.Side {
	if action == risk.ActionSell {
		return exchange.SideSell
	}
	return exchange.SideBuy
}

func fillPriceFor(side exchange.Side, ticker types.Ticker) float64 {
	if side == exchange.SideBuy {
		if ticker.Ask > 0 {
			return ticker.Ask
		}
	} else if ticker.Bid > 0 {
		return ticker.Bid
	}
	return ticker.Last
}
