package risk

import (
	"time"

	"github.com/trbinh/crypto-margin-bot/internal/config"
	"github.com/trbinh/crypto-margin-bot/internal/state"
)

// PauseState is the drawdown manager's trading gate.
type PauseState string

const (
	StateActive                PauseState = "ACTIVE"
	StatePausedDrawdown        PauseState = "PAUSED_DRAWDOWN"
	StatePausedConsecutiveLoss PauseState = "PAUSED_CONSECUTIVE_LOSS"
	StatePausedManual          PauseState = "PAUSED_MANUAL"
)

const drawdownStateVersion = 1

// drawdownDocument is the persisted shape of the manager.
type drawdownDocument struct {
	state.Meta

	State             PauseState    `json:"state"`
	PeakBalance       float64       `json:"peak_balance"`
	Balance           float64       `json:"balance"`
	ConsecutiveLosses int           `json:"consecutive_losses"`
	PausedAt          time.Time     `json:"paused_at,omitempty"`
	CooldownUntil     time.Time     `json:"cooldown_until,omitempty"`
	Records           []TradeRecord `json:"records"`
	Equity            []EquityPoint `json:"equity"`
}

// DrawdownManager tracks the equity curve and pauses trading on excessive
// drawdown or loss streaks. It is owned by the single-threaded trading loop,
// so no locking is needed; persistence happens on every mutation so a
// restart cannot clear a pause.
type DrawdownManager struct {
	cfg    config.RiskConfig
	store  *state.Store // nil disables persistence (backtests)
	symbol string

	pauseState        PauseState
	peakBalance       float64
	balance           float64
	consecutiveLosses int
	pausedAt          time.Time
	cooldownUntil     time.Time

	records []TradeRecord
	equity  []EquityPoint

	recordWindow int
}

// NewDrawdownManager restores persisted state when a document exists,
// otherwise starts ACTIVE with an empty history.
func NewDrawdownManager(cfg config.RiskConfig, sizing config.SizingConfig, store *state.Store, symbol string) (*DrawdownManager, error) {
	m := &DrawdownManager{
		cfg:          cfg,
		store:        store,
		symbol:       symbol,
		pauseState:   StateActive,
		recordWindow: sizing.KellyWindow,
	}
	if m.recordWindow <= 0 {
		m.recordWindow = 50
	}

	if store != nil {
		var doc drawdownDocument
		found, err := store.Load(m.documentName(), &doc)
		if err != nil {
			return nil, err
		}
		if found {
			if err := state.CheckVersion(doc.Meta, drawdownStateVersion); err != nil {
				return nil, err
			}
			m.pauseState = doc.State
			m.peakBalance = doc.PeakBalance
			m.balance = doc.Balance
			m.consecutiveLosses = doc.ConsecutiveLosses
			m.pausedAt = doc.PausedAt
			m.cooldownUntil = doc.CooldownUntil
			m.records = doc.Records
			m.equity = doc.Equity
		}
	}
	return m, nil
}

// UpdateBalance records a new equity sample, advances the peak, and pauses
// trading when drawdown breaches the configured maximum.
func (m *DrawdownManager) UpdateBalance(balance float64, now time.Time) error {
	m.balance = balance
	if balance > m.peakBalance {
		m.peakBalance = balance
	}

	dd := m.DrawdownPct()
	m.equity = append(m.equity, EquityPoint{Timestamp: now, Balance: balance, DrawdownPct: dd})

	if m.pauseState == StateActive && dd >= m.cfg.MaxDrawdownPct {
		m.pauseState = StatePausedDrawdown
		m.pausedAt = now
	}
	return m.save(now)
}

// RecordTradeResult appends the realized outcome and pauses trading when the
// loss streak reaches the limit. Any win resets the streak.
func (m *DrawdownManager) RecordTradeResult(pnl float64, strategy string, confidence float64, now time.Time) error {
	m.records = append(m.records, TradeRecord{
		ProfitLoss: pnl,
		Strategy:   strategy,
		Confidence: confidence,
		Timestamp:  now,
	})
	if len(m.records) > m.recordWindow {
		m.records = m.records[len(m.records)-m.recordWindow:]
	}

	if pnl < 0 {
		m.consecutiveLosses++
		if m.pauseState == StateActive && m.consecutiveLosses >= m.cfg.ConsecutiveLossMax {
			m.pauseState = StatePausedConsecutiveLoss
			m.pausedAt = now
			m.cooldownUntil = now.Add(m.cfg.LossPauseCooldown)
		}
	} else {
		m.consecutiveLosses = 0
	}
	return m.save(now)
}

// IsTradingAllowed reports whether new entries are permitted, auto-resuming
// when the pause condition has cleared. A non-nil error means the resumed
// state could not be persisted; callers treat that as not allowed.
func (m *DrawdownManager) IsTradingAllowed(now time.Time) (bool, error) {
	switch m.pauseState {
	case StateActive:
		return true, nil
	case StatePausedDrawdown:
		if m.DrawdownPct() < m.cfg.RecoveryDrawdownPct {
			return true, m.resume(now)
		}
		return false, nil
	case StatePausedConsecutiveLoss:
		if !now.Before(m.cooldownUntil) {
			return true, m.resume(now)
		}
		return false, nil
	case StatePausedManual:
		return false, nil
	default:
		return false, nil
	}
}

func (m *DrawdownManager) resume(now time.Time) error {
	m.pauseState = StateActive
	m.consecutiveLosses = 0
	m.pausedAt = time.Time{}
	m.cooldownUntil = time.Time{}
	return m.save(now)
}

// PauseManual stops entries until ResumeManual is called, regardless of
// drawdown or streak state.
func (m *DrawdownManager) PauseManual(now time.Time) error {
	m.pauseState = StatePausedManual
	m.pausedAt = now
	return m.save(now)
}

// ResumeManual lifts a manual pause. Pauses caused by drawdown or loss
// streaks are not affected.
func (m *DrawdownManager) ResumeManual(now time.Time) error {
	if m.pauseState != StatePausedManual {
		return nil
	}
	return m.resume(now)
}

// DrawdownPct returns the current drawdown from peak, in [0,1].
func (m *DrawdownManager) DrawdownPct() float64 {
	if m.peakBalance <= 0 {
		return 0
	}
	dd := (m.peakBalance - m.balance) / m.peakBalance
	if dd < 0 {
		return 0
	}
	return dd
}

func (m *DrawdownManager) State() PauseState        { return m.pauseState }
func (m *DrawdownManager) Balance() float64         { return m.balance }
func (m *DrawdownManager) PeakBalance() float64     { return m.peakBalance }
func (m *DrawdownManager) ConsecutiveLosses() int   { return m.consecutiveLosses }
func (m *DrawdownManager) CooldownUntil() time.Time { return m.cooldownUntil }

// History returns the windowed trade records for sizing statistics. Callers
// must not mutate the slice.
func (m *DrawdownManager) History() []TradeRecord {
	return m.records
}

// EquityCurve returns the recorded equity points. Callers must not mutate
// the slice.
func (m *DrawdownManager) EquityCurve() []EquityPoint {
	return m.equity
}

func (m *DrawdownManager) documentName() string {
	return "drawdown_" + m.symbol
}

func (m *DrawdownManager) save(now time.Time) error {
	if m.store == nil {
		return nil
	}
	doc := drawdownDocument{
		Meta: state.Meta{
			Version:   drawdownStateVersion,
			Symbol:    m.symbol,
			UpdatedAt: now,
		},
		State:             m.pauseState,
		PeakBalance:       m.peakBalance,
		Balance:           m.balance,
		ConsecutiveLosses: m.consecutiveLosses,
		PausedAt:          m.pausedAt,
		CooldownUntil:     m.cooldownUntil,
		Records:           m.records,
		Equity:            m.equity,
	}
	return m.store.Save(m.documentName(), doc)
}
