package risk

import (
	"fmt"
	"time"

	"github.com/trbinh/crypto-margin-bot/internal/config"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// AlertLevel orders anomaly severity. The caller reacts to the maximum level
// across all checks.
type AlertLevel int

const (
	AlertNone AlertLevel = iota
	AlertWarning
	AlertCritical
)

func (l AlertLevel) String() string {
	switch l {
	case AlertWarning:
		return "WARNING"
	case AlertCritical:
		return "CRITICAL"
	default:
		return "NONE"
	}
}

// Alert is one anomaly finding.
type Alert struct {
	Kind    string
	Level   AlertLevel
	Message string
	Value   float64
}

// AnomalyDetector runs stateless checks against the market snapshot. All
// thresholds come from configuration; the detector holds no history of its
// own, so each call is a pure function over the snapshot.
type AnomalyDetector struct {
	cfg config.RiskConfig
}

func NewAnomalyDetector(cfg config.RiskConfig) *AnomalyDetector {
	return &AnomalyDetector{cfg: cfg}
}

// Check returns all alerts for the snapshot, in a fixed check order so the
// output is deterministic.
func (d *AnomalyDetector) Check(snap types.Snapshot) []Alert {
	var alerts []Alert

	if alert, ok := d.checkSpread(snap.Ticker); ok {
		alerts = append(alerts, alert)
	}
	if alert, ok := d.checkLatency(snap.APILatency); ok {
		alerts = append(alerts, alert)
	}
	if alert, ok := d.checkPriceSpike(snap.Candles); ok {
		alerts = append(alerts, alert)
	}
	if alert, ok := d.checkVolume(snap.Candles, snap.AvgVolume); ok {
		alerts = append(alerts, alert)
	}
	return alerts
}

// MaxLevel returns the highest severity among alerts.
func MaxLevel(alerts []Alert) AlertLevel {
	level := AlertNone
	for _, a := range alerts {
		if a.Level > level {
			level = a.Level
		}
	}
	return level
}

func (d *AnomalyDetector) checkSpread(ticker types.Ticker) (Alert, bool) {
	ratio := ticker.SpreadRatio()
	switch {
	case d.cfg.SpreadCriticalRatio > 0 && ratio >= d.cfg.SpreadCriticalRatio:
		return Alert{
			Kind:    "spread",
			Level:   AlertCritical,
			Message: fmt.Sprintf("spread ratio %.4f exceeds critical threshold %.4f", ratio, d.cfg.SpreadCriticalRatio),
			Value:   ratio,
		}, true
	case d.cfg.SpreadWarningRatio > 0 && ratio >= d.cfg.SpreadWarningRatio:
		return Alert{
			Kind:    "spread",
			Level:   AlertWarning,
			Message: fmt.Sprintf("spread ratio %.4f exceeds warning threshold %.4f", ratio, d.cfg.SpreadWarningRatio),
			Value:   ratio,
		}, true
	}
	return Alert{}, false
}

func (d *AnomalyDetector) checkLatency(latency time.Duration) (Alert, bool) {
	switch {
	case d.cfg.LatencyCritical > 0 && latency >= d.cfg.LatencyCritical:
		return Alert{
			Kind:    "latency",
			Level:   AlertCritical,
			Message: fmt.Sprintf("API latency %s exceeds critical threshold %s", latency, d.cfg.LatencyCritical),
			Value:   latency.Seconds(),
		}, true
	case d.cfg.LatencyWarning > 0 && latency >= d.cfg.LatencyWarning:
		return Alert{
			Kind:    "latency",
			Level:   AlertWarning,
			Message: fmt.Sprintf("API latency %s exceeds warning threshold %s", latency, d.cfg.LatencyWarning),
			Value:   latency.Seconds(),
		}, true
	}
	return Alert{}, false
}

// checkPriceSpike compares the last close against the close a short window
// earlier. A large move in either direction flags execution risk.
func (d *AnomalyDetector) checkPriceSpike(candles []types.OHLCV) (Alert, bool) {
	const spikeWindow = 3
	if len(candles) < spikeWindow+1 {
		return Alert{}, false
	}
	last := candles[len(candles)-1].Close
	ref := candles[len(candles)-1-spikeWindow].Close
	if ref <= 0 {
		return Alert{}, false
	}
	change := last/ref - 1
	if change < 0 {
		change = -change
	}

	switch {
	case d.cfg.PriceSpikeCritical > 0 && change >= d.cfg.PriceSpikeCritical:
		return Alert{
			Kind:    "price_spike",
			Level:   AlertCritical,
			Message: fmt.Sprintf("price moved %.2f%% over %d candles, critical threshold %.2f%%", change*100, spikeWindow, d.cfg.PriceSpikeCritical*100),
			Value:   change,
		}, true
	case d.cfg.PriceSpikeWarning > 0 && change >= d.cfg.PriceSpikeWarning:
		return Alert{
			Kind:    "price_spike",
			Level:   AlertWarning,
			Message: fmt.Sprintf("price moved %.2f%% over %d candles, warning threshold %.2f%%", change*100, spikeWindow, d.cfg.PriceSpikeWarning*100),
			Value:   change,
		}, true
	}
	return Alert{}, false
}

func (d *AnomalyDetector) checkVolume(candles []types.OHLCV, avgVolume float64) (Alert, bool) {
	if len(candles) == 0 || avgVolume <= 0 {
		return Alert{}, false
	}
	ratio := candles[len(candles)-1].Volume / avgVolume

	switch {
	case d.cfg.VolumeCriticalRatio > 0 && ratio >= d.cfg.VolumeCriticalRatio:
		return Alert{
			Kind:    "volume",
			Level:   AlertCritical,
			Message: fmt.Sprintf("volume %.1fx rolling average, critical threshold %.1fx", ratio, d.cfg.VolumeCriticalRatio),
			Value:   ratio,
		}, true
	case d.cfg.VolumeWarningRatio > 0 && ratio >= d.cfg.VolumeWarningRatio:
		return Alert{
			Kind:    "volume",
			Level:   AlertWarning,
			Message: fmt.Sprintf("volume %.1fx rolling average, warning threshold %.1fx", ratio, d.cfg.VolumeWarningRatio),
			Value:   ratio,
		}, true
	}
	return Alert{}, false
}
