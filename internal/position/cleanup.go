package position

import (
	"context"
	"time"

	"github.com/trbinh/crypto-margin-bot/internal/exchange"
	"github.com/trbinh/crypto-margin-bot/internal/logger"
)

// Cleaner reconciles exchange-reported positions and orders against local
// tracked state. Exchange-side entries with no local record are flagged
// ORPHANED and their stray orders cancelled, so the account never carries
// exposure the bot does not know about.
type Cleaner struct {
	exchange exchange.Exchange
	tracker  *Tracker
	log      *logger.Logger
	symbol   string
}

func NewCleaner(ex exchange.Exchange, tracker *Tracker, log *logger.Logger, symbol string) *Cleaner {
	return &Cleaner{exchange: ex, tracker: tracker, log: log, symbol: symbol}
}

// CleanupReport summarizes one reconciliation pass.
type CleanupReport struct {
	RemotePositions int
	Orphans         int
	CancelledOrders int
}

// Run performs one reconciliation pass. Errors fetching remote state abort
// the pass; per-order cancel failures are logged and skipped so one stuck
// order cannot block the rest.
func (c *Cleaner) Run(ctx context.Context, now time.Time) (CleanupReport, error) {
	var report CleanupReport

	remote, err := c.exchange.GetOpenPositions(ctx, c.symbol)
	if err != nil {
		return report, err
	}
	report.RemotePositions = len(remote)

	tracked := c.tracker.Open()
	for _, rp := range remote {
		if c.matchesTracked(rp, tracked) {
			continue
		}

		orphan := &Position{
			ID:         "orphan-" + c.symbol + "-" + now.UTC().Format("20060102T150405"),
			Symbol:     rp.Symbol,
			Side:       rp.Side,
			EntryPrice: rp.EntryPrice,
			Size:       rp.Size,
			OpenedAt:   rp.UpdatedAt,
			Status:     StatusOrphaned,
		}
		if err := c.tracker.MarkOrphaned(orphan, now); err != nil {
			return report, err
		}
		report.Orphans++
		if c.log != nil {
			c.log.Warning("orphan position detected: %s %s size %.6f entry %.2f",
				rp.Symbol, rp.Side, rp.Size, rp.EntryPrice)
		}
	}

	if report.Orphans > 0 {
		cancelled, err := c.cancelStrayOrders(ctx)
		report.CancelledOrders = cancelled
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// matchesTracked reports whether an exchange position corresponds to a
// locally tracked one. Side and size must agree; entry price is matched
// loosely since the exchange reports the average fill.
func (c *Cleaner) matchesTracked(rp exchange.RemotePosition, tracked []*Position) bool {
	const sizeTolerance = 1e-9
	for _, p := range tracked {
		if p.Side != rp.Side {
			continue
		}
		diff := p.Size - rp.Size
		if diff < 0 {
			diff = -diff
		}
		if diff <= sizeTolerance {
			return true
		}
	}
	return false
}

// cancelStrayOrders cancels open orders that no tracked position owns.
func (c *Cleaner) cancelStrayOrders(ctx context.Context) (int, error) {
	orders, err := c.exchange.GetOpenOrders(ctx, c.symbol)
	if err != nil {
		return 0, err
	}

	owned := make(map[string]bool)
	for _, p := range c.tracker.Open() {
		if p.EntryOrderID != "" {
			owned[p.EntryOrderID] = true
		}
	}

	cancelled := 0
	for _, o := range orders {
		if owned[o.OrderID] {
			continue
		}
		if err := c.exchange.CancelOrder(ctx, c.symbol, o.OrderID); err != nil {
			if c.log != nil {
				c.log.LogError("cleanup", err)
			}
			continue
		}
		cancelled++
		if c.log != nil {
			c.log.Warning("cancelled stray order %s (%s %s %.6f)", o.OrderID, o.Side, o.Type, o.Qty)
		}
	}
	return cancelled, nil
}
