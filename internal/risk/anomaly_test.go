package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trbinh/crypto-margin-bot/internal/config"
)

func TestAnomalyDetectorCleanSnapshot(t *testing.T) {
	detector := NewAnomalyDetector(config.Default().Risk)
	snap := testSnapshot(50000, 500, time.Now())

	alerts := detector.Check(snap)
	assert.Equal(t, AlertNone, MaxLevel(alerts))
}

func TestAnomalyDetectorSpread(t *testing.T) {
	detector := NewAnomalyDetector(config.Default().Risk)
	snap := testSnapshot(50000, 500, time.Now())

	// 0.2% spread: above the 0.1% warning, below the 0.5% critical.
	snap.Ticker.Bid = 49950
	snap.Ticker.Ask = 50050
	alerts := detector.Check(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, "spread", alerts[0].Kind)
	assert.Equal(t, AlertWarning, alerts[0].Level)

	// 1% spread: critical.
	snap.Ticker.Bid = 49750
	snap.Ticker.Ask = 50250
	alerts = detector.Check(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCritical, alerts[0].Level)
}

func TestAnomalyDetectorLatency(t *testing.T) {
	detector := NewAnomalyDetector(config.Default().Risk)
	snap := testSnapshot(50000, 500, time.Now())

	snap.APILatency = 3 * time.Second
	alerts := detector.Check(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, "latency", alerts[0].Kind)
	assert.Equal(t, AlertWarning, alerts[0].Level)

	snap.APILatency = 15 * time.Second
	alerts = detector.Check(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCritical, alerts[0].Level)
}

func TestAnomalyDetectorPriceSpike(t *testing.T) {
	detector := NewAnomalyDetector(config.Default().Risk)
	now := time.Now()
	snap := testSnapshot(50000, 500, now)

	// 10% jump over the last three candles: critical (threshold 8%).
	snap.Candles[len(snap.Candles)-1].Close = 55000
	alerts := detector.Check(snap)

	var spike *Alert
	for i := range alerts {
		if alerts[i].Kind == "price_spike" {
			spike = &alerts[i]
		}
	}
	require.NotNil(t, spike)
	assert.Equal(t, AlertCritical, spike.Level)
}

func TestAnomalyDetectorVolume(t *testing.T) {
	detector := NewAnomalyDetector(config.Default().Risk)
	snap := testSnapshot(50000, 500, time.Now())

	// 5x average volume: warning (threshold 3x, critical 10x).
	snap.Candles[len(snap.Candles)-1].Volume = 500
	alerts := detector.Check(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, "volume", alerts[0].Kind)
	assert.Equal(t, AlertWarning, alerts[0].Level)

	snap.Candles[len(snap.Candles)-1].Volume = 1500
	alerts = detector.Check(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCritical, alerts[0].Level)
}

func TestMaxLevelOrdering(t *testing.T) {
	assert.Equal(t, AlertNone, MaxLevel(nil))
	assert.Equal(t, AlertWarning, MaxLevel([]Alert{{Level: AlertWarning}}))
	assert.Equal(t, AlertCritical, MaxLevel([]Alert{{Level: AlertWarning}, {Level: AlertCritical}}))
}
