package position

import (
	"fmt"
	"time"

	"github.com/trbinh/crypto-margin-bot/internal/config"
)

// Limits enforces concurrency and rate caps over the tracker, plus the entry
// cooldown. It implements the risk package's LimitChecker.
type Limits struct {
	cfg     config.LimitsConfig
	tracker *Tracker
}

func NewLimits(cfg config.LimitsConfig, tracker *Tracker) *Limits {
	return &Limits{cfg: cfg, tracker: tracker}
}

// CheckLimits returns every violation blocking a new entry. An empty slice
// means the entry may proceed. A trend strength at or above the configured
// override waives the cooldown — and only the cooldown.
func (l *Limits) CheckLimits(now time.Time, trendStrength float64) []string {
	var violations []string

	if open := l.tracker.OpenCount(); open >= l.cfg.MaxPositions {
		violations = append(violations, fmt.Sprintf(
			"position limit reached: %d open of %d allowed", open, l.cfg.MaxPositions))
	}

	if trades := l.tracker.TradesToday(now); trades >= l.cfg.DailyTradeCap {
		violations = append(violations, fmt.Sprintf(
			"daily trade cap reached: %d of %d", trades, l.cfg.DailyTradeCap))
	}

	if remaining := l.CooldownRemaining(now); remaining > 0 {
		if trendStrength >= l.cfg.CooldownOverrideTrend && l.cfg.CooldownOverrideTrend > 0 {
			// Strong trend waives the cooldown; concurrency and rate caps
			// above still apply.
		} else {
			violations = append(violations, fmt.Sprintf(
				"cooldown active: %s remaining", remaining.Truncate(time.Second)))
		}
	}

	return violations
}

// CanOpen is the boolean view of CheckLimits without the cooldown, matching
// open-count and daily-cap gates only.
func (l *Limits) CanOpen(now time.Time) bool {
	return l.tracker.OpenCount() < l.cfg.MaxPositions &&
		l.tracker.TradesToday(now) < l.cfg.DailyTradeCap
}

// CooldownRemaining returns how long until the post-entry cooldown expires,
// 0 when no cooldown is active.
func (l *Limits) CooldownRemaining(now time.Time) time.Duration {
	if l.cfg.Cooldown <= 0 {
		return 0
	}
	last := l.tracker.LastEntryTime()
	if last.IsZero() {
		return 0
	}
	elapsed := now.Sub(last)
	if elapsed >= l.cfg.Cooldown {
		return 0
	}
	return l.cfg.Cooldown - elapsed
}
