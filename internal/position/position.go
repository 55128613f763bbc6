package position

import (
	"time"

	"github.com/google/uuid"

	"github.com/trbinh/crypto-margin-bot/internal/exchange"
)

// Status of a tracked position.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusClosed   Status = "CLOSED"
	StatusOrphaned Status = "ORPHANED"
)

// ExitReason records what closed a position.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "TP"
	ExitStopLoss   ExitReason = "SL"
	ExitForced     ExitReason = "FORCED"
)

// Position is the tracker-owned record of one trade. It is mutated only by
// the tracker on fill/close events.
type Position struct {
	ID         string        `json:"id"`
	Symbol     string        `json:"symbol"`
	Side       exchange.Side `json:"side"`
	EntryPrice float64       `json:"entry_price"`
	Size       float64       `json:"size"`
	StopLoss   float64       `json:"stop_loss"`
	TakeProfit float64       `json:"take_profit"`
	OpenedAt   time.Time     `json:"opened_at"`
	Strategy   string        `json:"strategy"`
	Status     Status        `json:"status"`

	// Set on close.
	ExitPrice  float64    `json:"exit_price,omitempty"`
	ExitReason ExitReason `json:"exit_reason,omitempty"`
	ClosedAt   time.Time  `json:"closed_at,omitempty"`

	// Entry order reference for cleanup and degraded tracking.
	EntryOrderID string `json:"entry_order_id,omitempty"`

	// Degraded means the entry filled but the paired TP/SL could not be
	// placed; the stop scan must watch this position extra carefully.
	Degraded bool `json:"degraded,omitempty"`

	// Confidence of the signal that opened it, fed back into sizing stats.
	Confidence float64 `json:"confidence"`
}

// NewPosition creates an OPEN position with a fresh ID.
func NewPosition(symbol string, side exchange.Side, entryPrice, size, stopLoss, takeProfit float64, strategy string, confidence float64, openedAt time.Time) *Position {
	return &Position{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		EntryPrice: entryPrice,
		Size:       size,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		OpenedAt:   openedAt,
		Strategy:   strategy,
		Status:     StatusOpen,
		Confidence: confidence,
	}
}

// RealizedPnL computes the quote-currency profit of a closed position.
func (p *Position) RealizedPnL() float64 {
	if p.Status != StatusClosed {
		return 0
	}
	if p.Side == exchange.SideBuy {
		return (p.ExitPrice - p.EntryPrice) * p.Size
	}
	return (p.EntryPrice - p.ExitPrice) * p.Size
}

// UnrealizedPnL computes the mark-to-market profit at the given price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	if p.Side == exchange.SideBuy {
		return (price - p.EntryPrice) * p.Size
	}
	return (p.EntryPrice - price) * p.Size
}
