package risk

import (
	"fmt"

	"github.com/trbinh/crypto-margin-bot/internal/config"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// MarginLevel classifies the account's projected margin health.
type MarginLevel int

const (
	MarginOK MarginLevel = iota
	MarginWarning
	MarginCritical
)

// defaultMaintenanceRate approximates the maintenance margin requirement of
// the candidate notional when projecting. Bybit linear contracts use tiered
// rates starting at 0.5%.
const defaultMaintenanceRate = 0.005

// MarginMonitor classifies the margin ratio the account would have after
// opening the candidate position. Ratio is equity / maintenance margin;
// below the critical threshold the trade is vetoed outright.
type MarginMonitor struct {
	cfg config.RiskConfig
}

func NewMarginMonitor(cfg config.RiskConfig) *MarginMonitor {
	return &MarginMonitor{cfg: cfg}
}

// ProjectedRatio returns the margin ratio after adding candidateNotional of
// exposure at the default maintenance rate.
func (m *MarginMonitor) ProjectedRatio(status *types.MarginStatus, candidateNotional float64) float64 {
	maintenance := status.MaintenanceMargin
	if candidateNotional > 0 {
		maintenance += candidateNotional * defaultMaintenanceRate
	}
	if maintenance <= 0 {
		// No exposure at all: margin is unconstrained.
		return m.cfg.MarginWarningRatio + 1
	}
	return status.Equity / maintenance
}

// Assess classifies the projected ratio and returns a human-readable reason
// for non-OK levels.
func (m *MarginMonitor) Assess(status *types.MarginStatus, candidateNotional float64) (MarginLevel, string) {
	ratio := m.ProjectedRatio(status, candidateNotional)

	switch {
	case ratio < m.cfg.MarginCriticalRatio:
		return MarginCritical, fmt.Sprintf(
			"projected margin ratio %.2f below critical threshold %.2f", ratio, m.cfg.MarginCriticalRatio)
	case ratio < m.cfg.MarginWarningRatio:
		return MarginWarning, fmt.Sprintf(
			"projected margin ratio %.2f below warning threshold %.2f", ratio, m.cfg.MarginWarningRatio)
	default:
		return MarginOK, ""
	}
}
