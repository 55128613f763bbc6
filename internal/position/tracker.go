package position

import (
	"fmt"
	"time"

	"github.com/trbinh/crypto-margin-bot/internal/state"
)

const trackerStateVersion = 1

// trackerDocument is the persisted shape of the tracker.
type trackerDocument struct {
	state.Meta

	Positions      []*Position `json:"positions"`
	TradesToday    int         `json:"trades_today"`
	TradesDate     string      `json:"trades_date"` // YYYY-MM-DD the counter belongs to
	LastEntryTime  time.Time   `json:"last_entry_time,omitempty"`
	TotalOpened    int         `json:"total_opened"`
	TotalClosed    int         `json:"total_closed"`
	RealizedPnLSum float64     `json:"realized_pnl_sum"`
}

// Tracker owns all Position records for one symbol. It is the only component
// allowed to mutate them; everything else reads. Single-threaded by
// construction, persisted on every mutation.
type Tracker struct {
	store  *state.Store // nil disables persistence (backtests)
	symbol string

	positions     map[string]*Position
	order         []string // insertion order, for deterministic iteration
	tradesToday   int
	tradesDate    string
	lastEntryTime time.Time

	totalOpened    int
	totalClosed    int
	realizedPnLSum float64
}

// NewTracker restores persisted positions when a document exists.
func NewTracker(store *state.Store, symbol string) (*Tracker, error) {
	t := &Tracker{
		store:     store,
		symbol:    symbol,
		positions: make(map[string]*Position),
	}

	if store != nil {
		var doc trackerDocument
		found, err := store.Load(t.documentName(), &doc)
		if err != nil {
			return nil, err
		}
		if found {
			if err := state.CheckVersion(doc.Meta, trackerStateVersion); err != nil {
				return nil, err
			}
			for _, p := range doc.Positions {
				t.positions[p.ID] = p
				t.order = append(t.order, p.ID)
			}
			t.tradesToday = doc.TradesToday
			t.tradesDate = doc.TradesDate
			t.lastEntryTime = doc.LastEntryTime
			t.totalOpened = doc.TotalOpened
			t.totalClosed = doc.TotalClosed
			t.realizedPnLSum = doc.RealizedPnLSum
		}
	}
	return t, nil
}

// Register adds a newly opened position and advances the daily counter.
func (t *Tracker) Register(p *Position, now time.Time) error {
	if _, exists := t.positions[p.ID]; exists {
		return fmt.Errorf("position %s already tracked", p.ID)
	}
	t.rolloverDay(now)

	t.positions[p.ID] = p
	t.order = append(t.order, p.ID)
	t.tradesToday++
	t.lastEntryTime = now
	t.totalOpened++
	return t.save(now)
}

// Close marks a position CLOSED with its exit fill and returns the realized
// P&L.
func (t *Tracker) Close(id string, exitPrice float64, reason ExitReason, now time.Time) (float64, error) {
	p, ok := t.positions[id]
	if !ok {
		return 0, fmt.Errorf("position %s not tracked", id)
	}
	if p.Status == StatusClosed {
		return 0, fmt.Errorf("position %s already closed", id)
	}

	p.Status = StatusClosed
	p.ExitPrice = exitPrice
	p.ExitReason = reason
	p.ClosedAt = now

	pnl := p.RealizedPnL()
	t.totalClosed++
	t.realizedPnLSum += pnl
	return pnl, t.save(now)
}

// MarkOrphaned flags an exchange-side position that has no matching local
// record.
func (t *Tracker) MarkOrphaned(p *Position, now time.Time) error {
	p.Status = StatusOrphaned
	if _, exists := t.positions[p.ID]; !exists {
		t.positions[p.ID] = p
		t.order = append(t.order, p.ID)
	}
	return t.save(now)
}

// MarkDegraded flags an open position whose TP/SL placement failed. It stays
// OPEN and tracked; the stop scan handles protection locally.
func (t *Tracker) MarkDegraded(id string, now time.Time) error {
	p, ok := t.positions[id]
	if !ok {
		return fmt.Errorf("position %s not tracked", id)
	}
	p.Degraded = true
	return t.save(now)
}

// Get returns a tracked position by ID.
func (t *Tracker) Get(id string) (*Position, bool) {
	p, ok := t.positions[id]
	return p, ok
}

// Open returns all OPEN positions in insertion order.
func (t *Tracker) Open() []*Position {
	var open []*Position
	for _, id := range t.order {
		if p := t.positions[id]; p.Status == StatusOpen {
			open = append(open, p)
		}
	}
	return open
}

// All returns every tracked position in insertion order, any status.
func (t *Tracker) All() []*Position {
	all := make([]*Position, 0, len(t.order))
	for _, id := range t.order {
		all = append(all, t.positions[id])
	}
	return all
}

// OpenCount returns the number of OPEN positions.
func (t *Tracker) OpenCount() int {
	return len(t.Open())
}

// TradesToday returns the entry count for the current day, rolling the
// counter over at midnight UTC.
func (t *Tracker) TradesToday(now time.Time) int {
	t.rolloverDay(now)
	return t.tradesToday
}

// LastEntryTime returns when the most recent entry was registered.
func (t *Tracker) LastEntryTime() time.Time {
	return t.lastEntryTime
}

// RealizedPnL returns the cumulative realized P&L across closed positions.
func (t *Tracker) RealizedPnL() float64 {
	return t.realizedPnLSum
}

// Stats returns lifetime open/close counters.
func (t *Tracker) Stats() (opened, closed int) {
	return t.totalOpened, t.totalClosed
}

func (t *Tracker) rolloverDay(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if t.tradesDate != day {
		t.tradesDate = day
		t.tradesToday = 0
	}
}

func (t *Tracker) documentName() string {
	return "positions_" + t.symbol
}

func (t *Tracker) save(now time.Time) error {
	if t.store == nil {
		return nil
	}
	doc := trackerDocument{
		Meta: state.Meta{
			Version:   trackerStateVersion,
			Symbol:    t.symbol,
			UpdatedAt: now,
		},
		Positions:      t.All(),
		TradesToday:    t.tradesToday,
		TradesDate:     t.tradesDate,
		LastEntryTime:  t.lastEntryTime,
		TotalOpened:    t.totalOpened,
		TotalClosed:    t.totalClosed,
		RealizedPnLSum: t.realizedPnLSum,
	}
	return t.store.Save(t.documentName(), doc)
}
