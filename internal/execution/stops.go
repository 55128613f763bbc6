package execution

import (
	"context"
	"math/rand"
	"time"

	"github.com/trbinh/crypto-margin-bot/internal/exchange"
	"github.com/trbinh/crypto-margin-bot/internal/logger"
	"github.com/trbinh/crypto-margin-bot/internal/position"
	"github.com/trbinh/crypto-margin-bot/internal/risk"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// TieBreak decides which stop wins when a single bar's range contains both
// the TP and the SL of a position.
type TieBreak int

const (
	// TieBreakStopFirst resolves ambiguous bars as a loss. Conservative
	// and fully deterministic without a seed.
	TieBreakStopFirst TieBreak = iota
	// TieBreakRandom resolves ambiguous bars by coin flip from the seeded
	// source, modeling unknown intra-bar ordering while keeping replays
	// reproducible.
	TieBreakRandom
)

// StopManager scans open positions for TP/SL crossings and closes them
// through the executor, recording the exit reason and feeding realized P&L
// back into the drawdown statistics.
type StopManager struct {
	tracker  *position.Tracker
	executor Executor
	drawdown *risk.DrawdownManager
	log      *logger.Logger

	tieBreak TieBreak
	rng      *rand.Rand
}

func NewStopManager(tracker *position.Tracker, executor Executor, drawdown *risk.DrawdownManager, log *logger.Logger) *StopManager {
	return &StopManager{
		tracker:  tracker,
		executor: executor,
		drawdown: drawdown,
		log:      log,
		tieBreak: TieBreakStopFirst,
	}
}

// WithRandomTieBreak switches ambiguous-bar resolution to a seeded coin
// flip. Used by backtests that model intra-bar uncertainty.
func (s *StopManager) WithRandomTieBreak(rng *rand.Rand) *StopManager {
	s.tieBreak = TieBreakRandom
	s.rng = rng
	return s
}

// ClosedPosition reports one stop-triggered close.
type ClosedPosition struct {
	Position    *position.Position
	ExitPrice   float64
	ExitReason  position.ExitReason
	RealizedPnL float64
}

// ScanPrice checks open positions against a single traded price (live/paper
// cycles).
func (s *StopManager) ScanPrice(ctx context.Context, price float64, now time.Time) ([]ClosedPosition, error) {
	bar := types.OHLCV{Open: price, High: price, Low: price, Close: price, Timestamp: now}
	return s.ScanBar(ctx, bar)
}

// ScanBar checks open positions against a bar's full range (backtests). The
// trigger level itself is used as the fill price.
func (s *StopManager) ScanBar(ctx context.Context, bar types.OHLCV) ([]ClosedPosition, error) {
	var closed []ClosedPosition

	for _, p := range s.tracker.Open() {
		exitPrice, reason, hit := s.trigger(p, bar)
		if !hit {
			continue
		}

		result := s.executor.ClosePosition(ctx, p, exitPrice)
		if !result.Success {
			if s.log != nil {
				s.log.LogError("stop_manager", result.Err)
			}
			continue
		}

		pnl, err := s.tracker.Close(p.ID, result.FilledPrice, reason, bar.Timestamp)
		if err != nil {
			return closed, err
		}
		if s.drawdown != nil {
			if err := s.drawdown.RecordTradeResult(pnl, p.Strategy, p.Confidence, bar.Timestamp); err != nil {
				return closed, err
			}
		}
		if s.log != nil {
			s.log.Trade("closed %s %s at %.2f (%s) pnl=%.2f", p.Side, p.Symbol, result.FilledPrice, reason, pnl)
		}

		closed = append(closed, ClosedPosition{
			Position:    p,
			ExitPrice:   result.FilledPrice,
			ExitReason:  reason,
			RealizedPnL: pnl,
		})
	}
	return closed, nil
}

// ForceCloseAll closes every open position at the reference price,
// recording FORCED exits. Used at backtest end and on shutdown when
// configured to flatten.
func (s *StopManager) ForceCloseAll(ctx context.Context, price float64, now time.Time) ([]ClosedPosition, error) {
	var closed []ClosedPosition

	for _, p := range s.tracker.Open() {
		result := s.executor.ClosePosition(ctx, p, price)
		if !result.Success {
			if s.log != nil {
				s.log.LogError("stop_manager", result.Err)
			}
			continue
		}
		pnl, err := s.tracker.Close(p.ID, result.FilledPrice, position.ExitForced, now)
		if err != nil {
			return closed, err
		}
		if s.drawdown != nil {
			if err := s.drawdown.RecordTradeResult(pnl, p.Strategy, p.Confidence, now); err != nil {
				return closed, err
			}
		}
		closed = append(closed, ClosedPosition{
			Position:    p,
			ExitPrice:   result.FilledPrice,
			ExitReason:  position.ExitForced,
			RealizedPnL: pnl,
		})
	}
	return closed, nil
}

// trigger resolves whether the bar crosses the position's SL or TP, and at
// which level the close fills.
func (s *StopManager) trigger(p *position.Position, bar types.OHLCV) (float64, position.ExitReason, bool) {
	var slHit, tpHit bool
	if p.Side == exchange.SideBuy { // long position
		slHit = p.StopLoss > 0 && bar.Low <= p.StopLoss
		tpHit = p.TakeProfit > 0 && bar.High >= p.TakeProfit
	} else { // short position
		slHit = p.StopLoss > 0 && bar.High >= p.StopLoss
		tpHit = p.TakeProfit > 0 && bar.Low <= p.TakeProfit
	}

	switch {
	case slHit && tpHit:
		if s.tieBreak == TieBreakRandom && s.rng != nil && s.rng.Intn(2) == 1 {
			return p.TakeProfit, position.ExitTakeProfit, true
		}
		return p.StopLoss, position.ExitStopLoss, true
	case slHit:
		return p.StopLoss, position.ExitStopLoss, true
	case tpHit:
		return p.TakeProfit, position.ExitTakeProfit, true
	default:
		return 0, "", false
	}
}
