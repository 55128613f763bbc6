package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trbinh/crypto-margin-bot/internal/exchange"
	"github.com/trbinh/crypto-margin-bot/internal/state"
)

func newTestTracker(t *testing.T, store *state.Store) *Tracker {
	t.Helper()
	tracker, err := NewTracker(store, "BTCUSDT")
	require.NoError(t, err)
	return tracker
}

func openTestPosition(t *testing.T, tracker *Tracker, side exchange.Side, entry float64, now time.Time) *Position {
	t.Helper()
	p := NewPosition("BTCUSDT", side, entry, 0.01, entry*0.98, entry*1.04, "test", 0.9, now)
	require.NoError(t, tracker.Register(p, now))
	return p
}

func TestRegisterAndClose(t *testing.T) {
	tracker := newTestTracker(t, nil)
	now := time.Now()

	p := openTestPosition(t, tracker, exchange.SideBuy, 50000, now)
	assert.Equal(t, 1, tracker.OpenCount())
	assert.Equal(t, 1, tracker.TradesToday(now))

	pnl, err := tracker.Close(p.ID, 51000, ExitTakeProfit, now.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 10.0, pnl, 1e-9) // (51000-50000) * 0.01
	assert.Zero(t, tracker.OpenCount())

	closed, ok := tracker.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, StatusClosed, closed.Status)
	assert.Equal(t, ExitTakeProfit, closed.ExitReason)
	assert.True(t, closed.ClosedAt.After(closed.OpenedAt))
}

func TestCloseShortPosition(t *testing.T) {
	tracker := newTestTracker(t, nil)
	now := time.Now()

	p := openTestPosition(t, tracker, exchange.SideSell, 50000, now)
	pnl, err := tracker.Close(p.ID, 49000, ExitTakeProfit, now)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, pnl, 1e-9) // short profits when price falls
}

func TestDoubleCloseRejected(t *testing.T) {
	tracker := newTestTracker(t, nil)
	now := time.Now()

	p := openTestPosition(t, tracker, exchange.SideBuy, 50000, now)
	_, err := tracker.Close(p.ID, 51000, ExitTakeProfit, now)
	require.NoError(t, err)

	_, err = tracker.Close(p.ID, 52000, ExitTakeProfit, now)
	assert.Error(t, err)
}

func TestDuplicateRegisterRejected(t *testing.T) {
	tracker := newTestTracker(t, nil)
	now := time.Now()

	p := openTestPosition(t, tracker, exchange.SideBuy, 50000, now)
	assert.Error(t, tracker.Register(p, now))
}

func TestDailyCounterRollsOver(t *testing.T) {
	tracker := newTestTracker(t, nil)
	day1 := time.Date(2026, 3, 1, 23, 50, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 0, 10, 0, 0, time.UTC)

	openTestPosition(t, tracker, exchange.SideBuy, 50000, day1)
	openTestPosition(t, tracker, exchange.SideBuy, 50000, day1)
	assert.Equal(t, 2, tracker.TradesToday(day1))

	assert.Equal(t, 0, tracker.TradesToday(day2))
}

func TestTrackerStateSurvivesRestart(t *testing.T) {
	store, err := state.NewStore(t.TempDir())
	require.NoError(t, err)
	now := time.Now()

	tracker := newTestTracker(t, store)
	p := openTestPosition(t, tracker, exchange.SideBuy, 50000, now)
	require.NoError(t, tracker.MarkDegraded(p.ID, now))

	restored := newTestTracker(t, store)
	assert.Equal(t, 1, restored.OpenCount())

	rp, ok := restored.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, p.EntryPrice, rp.EntryPrice)
	assert.True(t, rp.Degraded)
}

func TestMarkOrphaned(t *testing.T) {
	tracker := newTestTracker(t, nil)
	now := time.Now()

	orphan := &Position{ID: "orphan-1", Symbol: "BTCUSDT", Side: exchange.SideBuy, Size: 0.5}
	require.NoError(t, tracker.MarkOrphaned(orphan, now))

	p, ok := tracker.Get("orphan-1")
	require.True(t, ok)
	assert.Equal(t, StatusOrphaned, p.Status)
	// Orphans are not OPEN and never count against the concurrency limit.
	assert.Zero(t, tracker.OpenCount())
}

func TestUnrealizedPnL(t *testing.T) {
	now := time.Now()
	long := NewPosition("BTCUSDT", exchange.SideBuy, 50000, 0.01, 49000, 52000, "test", 0.9, now)
	short := NewPosition("BTCUSDT", exchange.SideSell, 50000, 0.01, 51000, 48000, "test", 0.9, now)

	assert.InDelta(t, 5.0, long.UnrealizedPnL(50500), 1e-9)
	assert.InDelta(t, -5.0, long.UnrealizedPnL(49500), 1e-9)
	assert.InDelta(t, -5.0, short.UnrealizedPnL(50500), 1e-9)
	assert.InDelta(t, 5.0, short.UnrealizedPnL(49500), 1e-9)
}
