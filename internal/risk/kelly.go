package risk

import (
	"github.com/trbinh/crypto-margin-bot/internal/config"
)

// minKellyHistory is the sample size below which Kelly statistics are
// meaningless; sizing falls back to the exchange-minimum lot.
const minKellyHistory = 5

// KellyCriterion sizes positions from realized trade history. With win rate
// p and win/loss payoff ratio b, the optimal balance fraction is
// f* = (b*p - (1-p)) / b, clamped to [0, max fraction].
type KellyCriterion struct {
	cfg config.SizingConfig
}

func NewKellyCriterion(cfg config.SizingConfig) *KellyCriterion {
	return &KellyCriterion{cfg: cfg}
}

// Fraction computes the clamped Kelly fraction from history. Returns 0 when
// the history is too short or statistically degenerate.
func (k *KellyCriterion) Fraction(history []TradeRecord) float64 {
	if len(history) < minKellyHistory {
		return 0
	}

	var wins, losses int
	var winSum, lossSum float64
	for _, r := range history {
		if r.ProfitLoss > 0 {
			wins++
			winSum += r.ProfitLoss
		} else if r.ProfitLoss < 0 {
			losses++
			lossSum += -r.ProfitLoss
		}
	}

	// All wins or all losses: the payoff ratio is undefined. All-loss
	// history sizes to zero; all-win history gets the max fraction since
	// any b > 0 drives f* to p.
	if losses == 0 {
		if wins == 0 {
			return 0
		}
		return k.cfg.MaxKellyFraction
	}
	if wins == 0 {
		return 0
	}

	p := float64(wins) / float64(wins+losses)
	avgWin := winSum / float64(wins)
	avgLoss := lossSum / float64(losses)
	if avgLoss <= 0 {
		return 0
	}
	b := avgWin / avgLoss

	f := (b*p - (1 - p)) / b
	if f < 0 {
		return 0
	}
	if f > k.cfg.MaxKellyFraction {
		return k.cfg.MaxKellyFraction
	}
	return f
}

// Size converts the Kelly fraction into a quantity at the current price.
// Histories shorter than the minimum always return the fixed minimum lot.
func (k *KellyCriterion) Size(history []TradeRecord, balance, price float64) float64 {
	if price <= 0 || balance <= 0 {
		return 0
	}
	if len(history) < minKellyHistory {
		return k.cfg.MinLot
	}

	qty := k.Fraction(history) * balance / price
	if qty < k.cfg.MinLot {
		return k.cfg.MinLot
	}
	return qty
}
