package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	boterrors "github.com/trbinh/crypto-margin-bot/internal/errors"
	"github.com/trbinh/crypto-margin-bot/internal/exchange"
	"github.com/trbinh/crypto-margin-bot/internal/logger"
	"github.com/trbinh/crypto-margin-bot/internal/position"
	"github.com/trbinh/crypto-margin-bot/internal/risk"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

const (
	// limitOffsetRatio improves the limit price relative to the touch: buys
	// rest slightly below the ask, sells slightly above the bid.
	limitOffsetRatio = 0.0005

	// fillWait bounds how long a resting limit order is given before the
	// market fallback kicks in.
	fillWait     = 10 * time.Second
	fillPollStep = time.Second
)

// LiveExecutor places real orders. Entry is a limit order with a
// price-improvement offset, falling back to market when it does not fill in
// time. After the fill, TP/SL are armed on the position; if that fails the
// position is kept OPEN and flagged degraded rather than silently lost.
type LiveExecutor struct {
	exchange exchange.Exchange
	tracker  *position.Tracker
	log      *logger.Logger
	symbol   string
}

func NewLiveExecutor(ex exchange.Exchange, tracker *position.Tracker, log *logger.Logger, symbol string) *LiveExecutor {
	return &LiveExecutor{exchange: ex, tracker: tracker, log: log, symbol: symbol}
}

func (e *LiveExecutor) Mode() Mode {
	return ModeLive
}

func (e *LiveExecutor) Execute(ctx context.Context, eval risk.TradeEvaluation, snap types.Snapshot) ExecutionResult {
	if eval.Denied() || eval.PositionSize <= 0 {
		return failed(ModeLive, boterrors.New(boterrors.ErrorCategoryExchangeFatal,
			"live_executor", "execute", "refusing to execute a denied evaluation"))
	}

	side := signalSide(eval.Signal.Action)
	orderLink := "cmb-" + uuid.NewString()

	fill, err := e.enterWithFallback(ctx, side, eval.PositionSize, snap.Ticker, orderLink)
	if err != nil {
		return failed(ModeLive, err)
	}

	now := time.Now().UTC()
	p := position.NewPosition(e.symbol, side, fill.AvgPrice, fill.FilledQty,
		eval.StopLoss, eval.TakeProfit, eval.Signal.StrategyName, eval.Signal.Confidence, now)
	p.EntryOrderID = fill.OrderID

	if err := e.tracker.Register(p, now); err != nil {
		return failed(ModeLive, fmt.Errorf("entry filled but tracking failed: %w", err))
	}

	// Arm the stops. A failure here must not lose the position: it stays
	// OPEN, flagged degraded, and the local stop scan protects it.
	if err := e.exchange.SetTradingStop(ctx, e.symbol, eval.TakeProfit, eval.StopLoss); err != nil {
		if derr := e.tracker.MarkDegraded(p.ID, now); derr != nil && e.log != nil {
			e.log.LogError("live_executor", derr)
		}
		if e.log != nil {
			e.log.Warning("position %s filled but TP/SL placement failed, tracking degraded: %v", p.ID, err)
		}
	}

	return ExecutionResult{
		Success:     true,
		Mode:        ModeLive,
		OrderID:     fill.OrderID,
		Status:      StatusFilled,
		FilledPrice: fill.AvgPrice,
		FilledSize:  fill.FilledQty,
		Position:    p,
	}
}

// enterWithFallback places a price-improved limit order, waits for the fill,
// and falls back to a market order after cancelling the unfilled remainder.
func (e *LiveExecutor) enterWithFallback(ctx context.Context, side exchange.Side, qty float64, ticker types.Ticker, orderLink string) (*exchange.OrderResult, error) {
	limitPrice := improvedLimitPrice(side, ticker)

	order, err := e.exchange.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:    e.symbol,
		Side:      side,
		Type:      exchange.OrderTypeLimit,
		Qty:       qty,
		Price:     limitPrice,
		OrderLink: orderLink,
	})
	if err != nil {
		return nil, err
	}

	filled, err := e.waitForFill(ctx, order.OrderID)
	if err != nil {
		return nil, err
	}
	if filled != nil {
		return filled, nil
	}

	// Limit did not fill in time: cancel and take the market.
	if err := e.exchange.CancelOrder(ctx, e.symbol, order.OrderID); err != nil {
		// The cancel may race a late fill; re-check before escalating.
		if status, serr := e.exchange.GetOrderStatus(ctx, e.symbol, order.OrderID); serr == nil && status.Status == exchange.OrderStatusFilled {
			return status, nil
		}
		return nil, err
	}
	if e.log != nil {
		e.log.Info("limit order %s unfilled after %s, falling back to market", order.OrderID, fillWait)
	}

	market, err := e.exchange.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:    e.symbol,
		Side:      side,
		Type:      exchange.OrderTypeMarket,
		Qty:       qty,
		OrderLink: orderLink + "-mkt",
	})
	if err != nil {
		return nil, err
	}
	filled, err = e.waitForFill(ctx, market.OrderID)
	if err != nil {
		return nil, err
	}
	if filled == nil {
		return nil, boterrors.New(boterrors.ErrorCategoryExchangeFatal,
			"live_executor", "enter", "market order did not fill within the wait budget")
	}
	return filled, nil
}

// waitForFill polls the order until filled, returning nil (no error) on
// timeout so the caller can escalate.
func (e *LiveExecutor) waitForFill(ctx context.Context, orderID string) (*exchange.OrderResult, error) {
	deadline := time.Now().Add(fillWait)
	for time.Now().Before(deadline) {
		status, err := e.exchange.GetOrderStatus(ctx, e.symbol, orderID)
		if err != nil {
			return nil, err
		}
		switch status.Status {
		case exchange.OrderStatusFilled:
			return status, nil
		case exchange.OrderStatusRejected, exchange.OrderStatusCancelled:
			return nil, boterrors.New(boterrors.ErrorCategoryExchangeFatal,
				"live_executor", "wait_fill", fmt.Sprintf("order %s ended %s", orderID, status.Status))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(fillPollStep):
		}
	}
	return nil, nil
}

// ClosePosition sends a reduce-only market order on the opposite side.
func (e *LiveExecutor) ClosePosition(ctx context.Context, p *position.Position, referencePrice float64) ExecutionResult {
	order, err := e.exchange.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:     e.symbol,
		Side:       p.Side.Opposite(),
		Type:       exchange.OrderTypeMarket,
		Qty:        p.Size,
		ReduceOnly: true,
		OrderLink:  "cmb-close-" + uuid.NewString(),
	})
	if err != nil {
		return failed(ModeLive, err)
	}

	filled, err := e.waitForFill(ctx, order.OrderID)
	if err != nil {
		return failed(ModeLive, err)
	}
	if filled == nil {
		return failed(ModeLive, boterrors.New(boterrors.ErrorCategoryExchangeFatal,
			"live_executor", "close", "close order did not fill within the wait budget"))
	}

	return ExecutionResult{
		Success:     true,
		Mode:        ModeLive,
		OrderID:     filled.OrderID,
		Status:      StatusFilled,
		FilledPrice: filled.AvgPrice,
		FilledSize:  filled.FilledQty,
		Position:    p,
	}
}

func improvedLimitPrice(side exchange.Side, ticker types.Ticker) float64 {
	if side == exchange.SideBuy {
		price := ticker.Ask
		if price <= 0 {
			price = ticker.Last
		}
		return price * (1 - limitOffsetRatio)
	}
	price := ticker.Bid
	if price <= 0 {
		price = ticker.Last
	}
	return price * (1 + limitOffsetRatio)
}
