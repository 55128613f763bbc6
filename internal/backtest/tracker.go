package backtest

import (
	"time"

	"github.com/trbinh/crypto-margin-bot/internal/exchange"
	"github.com/trbinh/crypto-margin-bot/internal/execution"
	"github.com/trbinh/crypto-margin-bot/internal/risk"
)

// ClosedTrade pairs an entry with its closing fill.
type ClosedTrade struct {
	EntryTime   time.Time     `json:"entry_time"`
	ExitTime    time.Time     `json:"exit_time"`
	Side        exchange.Side `json:"side"`
	Size        float64       `json:"size"`
	EntryPrice  float64       `json:"entry_price"`
	ExitPrice   float64       `json:"exit_price"`
	RealizedPnL float64       `json:"realized_pnl"`
	ExitReason  string        `json:"exit_reason"`
	Strategy    string        `json:"strategy"`
	Confidence  float64       `json:"confidence"`
}

// TradeTracker accumulates the replay's audit trail: closed trades, the
// equity curve, and evaluation counters.
type TradeTracker struct {
	trades []ClosedTrade
	equity []risk.EquityPoint

	evaluations int
	approved    int
	conditional int
	denied      int
}

func NewTradeTracker() *TradeTracker {
	return &TradeTracker{}
}

// RecordClosed converts stop-scan closes into ClosedTrades.
func (t *TradeTracker) RecordClosed(closes []execution.ClosedPosition) {
	for _, c := range closes {
		t.trades = append(t.trades, ClosedTrade{
			EntryTime:   c.Position.OpenedAt,
			ExitTime:    c.Position.ClosedAt,
			Side:        c.Position.Side,
			Size:        c.Position.Size,
			EntryPrice:  c.Position.EntryPrice,
			ExitPrice:   c.ExitPrice,
			RealizedPnL: c.RealizedPnL,
			ExitReason:  string(c.ExitReason),
			Strategy:    c.Position.Strategy,
			Confidence:  c.Position.Confidence,
		})
	}
}

// RecordEquity appends one equity-curve sample.
func (t *TradeTracker) RecordEquity(ts time.Time, balance, drawdownPct float64) {
	t.equity = append(t.equity, risk.EquityPoint{
		Timestamp:   ts,
		Balance:     balance,
		DrawdownPct: drawdownPct,
	})
}

// RecordEvaluation tallies the admission decision.
func (t *TradeTracker) RecordEvaluation(eval risk.TradeEvaluation) {
	t.evaluations++
	switch eval.Decision {
	case risk.DecisionApproved:
		t.approved++
	case risk.DecisionConditional:
		t.conditional++
	case risk.DecisionDenied:
		t.denied++
	}
}

// Trades returns the closed trades in close order.
func (t *TradeTracker) Trades() []ClosedTrade {
	return t.trades
}

// Equity returns the per-bar equity curve.
func (t *TradeTracker) Equity() []risk.EquityPoint {
	return t.equity
}

// DecisionCounts returns evaluation tallies: total, approved, conditional,
// denied.
func (t *TradeTracker) DecisionCounts() (total, approved, conditional, denied int) {
	return t.evaluations, t.approved, t.conditional, t.denied
}
