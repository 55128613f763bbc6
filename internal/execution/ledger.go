package execution

// Ledger is the virtual account backing paper and backtest executors. It has
// the same balance semantics as a real margin account so downstream code is
// mode-agnostic: commission is charged on both legs, realized P&L settles on
// close.
type Ledger struct {
	balance    float64
	commission float64 // per-leg rate, e.g. 0.0006
}

func NewLedger(initialBalance, commission float64) *Ledger {
	return &Ledger{balance: initialBalance, commission: commission}
}

// Balance returns the current settled balance.
func (l *Ledger) Balance() float64 {
	return l.balance
}

// OnOpen charges entry commission on the filled notional.
func (l *Ledger) OnOpen(price, size float64) {
	l.balance -= price * size * l.commission
}

// OnClose settles realized P&L and charges exit commission.
func (l *Ledger) OnClose(pnl, price, size float64) {
	l.balance += pnl
	l.balance -= price * size * l.commission
}
