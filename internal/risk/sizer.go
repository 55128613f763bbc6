package risk

import (
	"github.com/trbinh/crypto-margin-bot/internal/config"
)

// PositionSizer blends three independent sizing opinions and takes the
// minimum, so any one conservative subsystem can veto the others without
// knowing they exist.
type PositionSizer struct {
	cfg   config.SizingConfig
	kelly *KellyCriterion
}

func NewPositionSizer(cfg config.SizingConfig) *PositionSizer {
	return &PositionSizer{
		cfg:   cfg,
		kelly: NewKellyCriterion(cfg),
	}
}

// Size returns the final base-unit quantity for the candidate trade.
func (s *PositionSizer) Size(history []TradeRecord, confidence, balance, price float64) float64 {
	if price <= 0 || balance <= 0 {
		return 0
	}
	kellySize := s.kelly.Size(history, balance, price)
	dynamicSize := s.DynamicSize(confidence, balance, price)
	baselineSize := s.BaselineSize(price)
	return Integrate(kellySize, dynamicSize, baselineSize)
}

// DynamicSize maps confidence into low/medium/high tiers, each covering a
// %-of-balance range, interpolated linearly within the tier.
func (s *PositionSizer) DynamicSize(confidence, balance, price float64) float64 {
	if price <= 0 || balance <= 0 {
		return 0
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	var pct float64
	switch {
	case confidence < 0.5:
		pct = lerp(0, s.cfg.LowTierMaxPct, confidence/0.5)
	case confidence < 0.75:
		pct = lerp(s.cfg.LowTierMaxPct, s.cfg.MidTierMaxPct, (confidence-0.5)/0.25)
	default:
		pct = lerp(s.cfg.MidTierMaxPct, s.cfg.HighTierMaxPct, (confidence-0.75)/0.25)
	}

	qty := pct * balance / price
	if qty < s.cfg.MinLot {
		return s.cfg.MinLot
	}
	return qty
}

// BaselineSize is the hard config cap expressed in quote units, converted to
// quantity at the current price.
func (s *PositionSizer) BaselineSize(price float64) float64 {
	if price <= 0 {
		return 0
	}
	qty := s.cfg.BaselineQuote / price
	if qty < s.cfg.MinLot {
		return s.cfg.MinLot
	}
	return qty
}

// MinLot exposes the exchange-minimum lot for callers flooring haircut
// results.
func (s *PositionSizer) MinLot() float64 {
	return s.cfg.MinLot
}

// Integrate combines the three sizing opinions: the most conservative wins.
func Integrate(kelly, dynamic, baseline float64) float64 {
	size := kelly
	if dynamic < size {
		size = dynamic
	}
	if baseline < size {
		size = baseline
	}
	return size
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
