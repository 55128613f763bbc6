package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trbinh/crypto-margin-bot/internal/config"
	"github.com/trbinh/crypto-margin-bot/internal/exchange"
)

func TestMaxPositionsBlocksEntries(t *testing.T) {
	tracker := newTestTracker(t, nil)
	cfg := config.Default().Limits // max 3 positions
	cfg.Cooldown = 0
	limits := NewLimits(cfg, tracker)
	now := time.Now()

	for i := 0; i < 3; i++ {
		assert.Empty(t, limits.CheckLimits(now, 0))
		openTestPosition(t, tracker, exchange.SideBuy, 50000, now)
	}

	violations := limits.CheckLimits(now, 0)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "position limit")
	assert.False(t, limits.CanOpen(now))
}

func TestDailyTradeCap(t *testing.T) {
	tracker := newTestTracker(t, nil)
	cfg := config.Default().Limits
	cfg.MaxPositions = 100
	cfg.DailyTradeCap = 2
	cfg.Cooldown = 0
	limits := NewLimits(cfg, tracker)
	now := time.Now()

	p1 := openTestPosition(t, tracker, exchange.SideBuy, 50000, now)
	p2 := openTestPosition(t, tracker, exchange.SideBuy, 50000, now)

	// Closing does not refund the daily budget.
	_, err := tracker.Close(p1.ID, 51000, ExitTakeProfit, now)
	require.NoError(t, err)
	_, err = tracker.Close(p2.ID, 51000, ExitTakeProfit, now)
	require.NoError(t, err)

	violations := limits.CheckLimits(now, 0)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "daily trade cap")
}

func TestCooldownAndTrendOverride(t *testing.T) {
	tracker := newTestTracker(t, nil)
	cfg := config.Default().Limits // 15m cooldown, override at trend 30
	limits := NewLimits(cfg, tracker)
	now := time.Now()

	openTestPosition(t, tracker, exchange.SideBuy, 50000, now)

	// Inside the cooldown window without a strong trend.
	violations := limits.CheckLimits(now.Add(5*time.Minute), 10)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "cooldown")

	// Strong trend waives the cooldown only.
	assert.Empty(t, limits.CheckLimits(now.Add(5*time.Minute), 35))

	// Cooldown elapsed.
	assert.Empty(t, limits.CheckLimits(now.Add(16*time.Minute), 0))
}

func TestCooldownRemaining(t *testing.T) {
	tracker := newTestTracker(t, nil)
	cfg := config.Default().Limits
	limits := NewLimits(cfg, tracker)
	now := time.Now()

	assert.Zero(t, limits.CooldownRemaining(now))

	openTestPosition(t, tracker, exchange.SideBuy, 50000, now)
	remaining := limits.CooldownRemaining(now.Add(5 * time.Minute))
	assert.Equal(t, 10*time.Minute, remaining)
}
