package execution

import (
	"context"

	"github.com/trbinh/crypto-margin-bot/internal/position"
	"github.com/trbinh/crypto-margin-bot/internal/risk"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// Mode identifies the executor implementation.
type Mode string

const (
	ModePaper    Mode = "PAPER"
	ModeLive     Mode = "LIVE"
	ModeBacktest Mode = "BACKTEST"
)

// Status of an execution attempt.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusFilled   Status = "FILLED"
	StatusCanceled Status = "CANCELED"
	StatusFailed   Status = "FAILED"
)

// ExecutionResult is the outcome of one execute() call. Err carries the
// typed failure when Success is false; the executor is the sole catcher of
// exchange errors, so callers never see raw I/O failures.
type ExecutionResult struct {
	Success     bool
	Mode        Mode
	OrderID     string
	Status      Status
	FilledPrice float64
	FilledSize  float64
	Position    *position.Position
	Err         error
}

// Executor turns an approved evaluation into orders. One implementation per
// mode; downstream code is mode-agnostic.
type Executor interface {
	Mode() Mode

	// Execute opens a position for an APPROVED/CONDITIONAL evaluation. On
	// success the position is already registered with the tracker and its
	// stops armed.
	Execute(ctx context.Context, eval risk.TradeEvaluation, snap types.Snapshot) ExecutionResult

	// ClosePosition issues the opposite-side close for an open position.
	// referencePrice guides the fill (ticker price live/paper, trigger
	// level in backtests).
	ClosePosition(ctx context.Context, p *position.Position, referencePrice float64) ExecutionResult
}

func failed(mode Mode, err error) ExecutionResult {
	return ExecutionResult{
		Success: false,
		Mode:    mode,
		Status:  StatusFailed,
		Err:     err,
	}
}
