package backtest

import (
	"math"

	"github.com/trbinh/crypto-margin-bot/internal/risk"
)

// Metrics summarizes a finished replay.
type Metrics struct {
	TotalTrades  int     `json:"total_trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	TotalPnL     float64 `json:"total_pnl"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	ReturnPct    float64 `json:"return_pct"`
}

// ComputeMetrics derives the summary statistics from the trade list and
// equity curve.
func ComputeMetrics(trades []ClosedTrade, equity []risk.EquityPoint, initialBalance, finalBalance float64) Metrics {
	m := Metrics{TotalTrades: len(trades)}

	var winSum, lossSum float64
	for _, t := range trades {
		m.TotalPnL += t.RealizedPnL
		if t.RealizedPnL > 0 {
			m.Wins++
			winSum += t.RealizedPnL
		} else if t.RealizedPnL < 0 {
			m.Losses++
			lossSum += -t.RealizedPnL
		}
	}
	if m.Wins+m.Losses > 0 {
		m.WinRate = float64(m.Wins) / float64(m.Wins+m.Losses)
	}
	if m.Wins > 0 {
		m.AvgWin = winSum / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLoss = lossSum / float64(m.Losses)
	}
	if lossSum > 0 {
		m.ProfitFactor = winSum / lossSum
	} else if winSum > 0 {
		m.ProfitFactor = math.Inf(1)
	}

	for _, p := range equity {
		if p.DrawdownPct > m.MaxDrawdown {
			m.MaxDrawdown = p.DrawdownPct
		}
	}

	m.SharpeRatio = sharpeLike(trades, initialBalance)

	if initialBalance > 0 {
		m.ReturnPct = (finalBalance - initialBalance) / initialBalance
	}
	return m
}

// sharpeLike is mean per-trade return over its standard deviation, scaled by
// sqrt(n). Not annualized; useful only to compare runs over the same data.
func sharpeLike(trades []ClosedTrade, initialBalance float64) float64 {
	if len(trades) < 2 || initialBalance <= 0 {
		return 0
	}

	returns := make([]float64, len(trades))
	var mean float64
	for i, t := range trades {
		returns[i] = t.RealizedPnL / initialBalance
		mean += returns[i]
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	if variance <= 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(float64(len(returns)))
}
