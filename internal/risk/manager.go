package risk

import (
	"fmt"
	"time"

	"github.com/trbinh/crypto-margin-bot/internal/config"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// LimitChecker reports position/rate-limit violations for a candidate entry.
// Implemented by the position package; the trend strength may waive an
// active cooldown, nothing else.
type LimitChecker interface {
	CheckLimits(now time.Time, trendStrength float64) []string
}

// RiskManager orchestrates all admission checks into one Evaluate call.
// Evaluation is a pure function over its inputs plus the drawdown manager's
// current state; it never performs I/O and never panics on bad input — every
// failure mode is a DENIED evaluation with a reason.
type RiskManager struct {
	riskCfg   config.RiskConfig
	sizingCfg config.SizingConfig

	margin   *MarginMonitor
	anomaly  *AnomalyDetector
	drawdown *DrawdownManager
	sizer    *PositionSizer
	limits   LimitChecker
}

func NewRiskManager(riskCfg config.RiskConfig, sizingCfg config.SizingConfig, drawdown *DrawdownManager, limits LimitChecker) *RiskManager {
	return &RiskManager{
		riskCfg:   riskCfg,
		sizingCfg: sizingCfg,
		margin:    NewMarginMonitor(riskCfg),
		anomaly:   NewAnomalyDetector(riskCfg),
		drawdown:  drawdown,
		sizer:     NewPositionSizer(sizingCfg),
		limits:    limits,
	}
}

// Drawdown exposes the manager feeding loss-streak and drawdown factors, so
// the loop can report realized P&L back to it.
func (r *RiskManager) Drawdown() *DrawdownManager {
	return r.drawdown
}

// Sizer exposes the position sizer for direct inspection in reports.
func (r *RiskManager) Sizer() *PositionSizer {
	return r.sizer
}

// Evaluate vets one candidate trade. Checks run in short-circuit order:
// margin, anomaly, drawdown pause, limits — any hard failure denies
// immediately. Survivors get a weighted risk score, a decision band, a
// position size, and ATR-derived stops.
func (r *RiskManager) Evaluate(signal TradeSignal, snap types.Snapshot, margin *types.MarginStatus, balance float64, now time.Time) TradeEvaluation {
	eval := TradeEvaluation{
		Decision:    DecisionDenied,
		Signal:      signal,
		EvaluatedAt: now,
	}

	alerts := r.anomaly.Check(snap)
	eval.RiskScore = r.score(signal, snap, alerts)

	// Signal sanity.
	if signal.Action != ActionBuy && signal.Action != ActionSell {
		return r.deny(eval, "no actionable signal")
	}
	if signal.Confidence < 0 || signal.Confidence > 1 {
		return r.deny(eval, fmt.Sprintf("confidence %.3f outside [0,1]", signal.Confidence))
	}

	// Market data freshness.
	price := snap.LastClose()
	if price <= 0 {
		return r.deny(eval, "missing market data: no candles in snapshot")
	}
	if snap.Timestamp.IsZero() {
		return r.deny(eval, "missing market data: snapshot has no timestamp")
	}
	if r.riskCfg.MaxDataAge > 0 && now.Sub(snap.Timestamp) > r.riskCfg.MaxDataAge {
		return r.deny(eval, fmt.Sprintf("stale market data: snapshot is %s old, limit %s",
			now.Sub(snap.Timestamp).Truncate(time.Second), r.riskCfg.MaxDataAge))
	}

	// 1. Margin: hard veto below critical, warning between critical and
	// warning thresholds.
	if margin == nil {
		return r.deny(eval, "missing margin status")
	}
	level, reason := r.margin.Assess(margin, r.sizingCfg.BaselineQuote)
	switch level {
	case MarginCritical:
		return r.deny(eval, reason)
	case MarginWarning:
		eval.Warnings = append(eval.Warnings, reason)
	}

	// 2. Anomalies: any CRITICAL alert denies the cycle; warnings feed the
	// score and the audit trail.
	for _, alert := range alerts {
		if alert.Level == AlertCritical {
			return r.deny(eval, "market anomaly: "+alert.Message)
		}
		eval.Warnings = append(eval.Warnings, alert.Message)
	}

	// 3. Drawdown / loss-streak pause. A resume that cannot be persisted
	// denies the cycle: disk and memory must agree before the gate reopens.
	allowed, err := r.drawdown.IsTradingAllowed(now)
	if err != nil {
		return r.deny(eval, fmt.Sprintf("risk state persistence failed: %v", err))
	}
	if !allowed {
		return r.deny(eval, fmt.Sprintf("trading paused: %s", r.drawdown.State()))
	}

	// 4. Position and rate limits.
	if r.limits != nil {
		if violations := r.limits.CheckLimits(now, signal.TrendStrength); len(violations) > 0 {
			return r.deny(eval, violations...)
		}
	}

	// 5-6. Score into a decision band.
	switch {
	case eval.RiskScore >= r.riskCfg.DenyAtOrOver:
		return r.deny(eval, fmt.Sprintf("risk score %.3f at or over deny threshold %.3f",
			eval.RiskScore, r.riskCfg.DenyAtOrOver))
	case eval.RiskScore < r.riskCfg.ApproveBelow:
		eval.Decision = DecisionApproved
	default:
		eval.Decision = DecisionConditional
		eval.ExtraMonitoring = true
		eval.Warnings = append(eval.Warnings, fmt.Sprintf("conditional approval: risk score %.3f in [%.2f, %.2f)",
			eval.RiskScore, r.riskCfg.ApproveBelow, r.riskCfg.DenyAtOrOver))
	}

	// 7. Sizing; CONDITIONAL takes an extra haircut, floored at the minimum
	// lot so the haircut cannot produce an unfillable order.
	eval.PositionSize = r.sizer.Size(r.drawdown.History(), signal.Confidence, balance, price)
	if eval.Decision == DecisionConditional {
		eval.PositionSize *= r.riskCfg.ConditionalHaircut
		if eval.PositionSize < r.sizer.MinLot() {
			eval.PositionSize = r.sizer.MinLot()
		}
	}
	if eval.PositionSize <= 0 {
		return r.deny(eval, "position sizer returned zero size")
	}

	// 8. Stops: signal-provided levels win; otherwise derive from ATR.
	eval.StopLoss, eval.TakeProfit = r.stops(signal, snap, price)
	if eval.StopLoss <= 0 {
		return r.deny(eval, "cannot derive stop loss: no ATR available and none supplied")
	}

	return eval
}

// stops computes SL/TP around the entry price. sl_ratio = ATR/price *
// multiplier; TP sits at reward-risk times the stop distance on the
// profitable side.
func (r *RiskManager) stops(signal TradeSignal, snap types.Snapshot, price float64) (stopLoss, takeProfit float64) {
	if signal.StopLoss > 0 && signal.TakeProfit > 0 {
		return signal.StopLoss, signal.TakeProfit
	}

	if snap.ATR <= 0 || price <= 0 {
		return signal.StopLoss, signal.TakeProfit
	}
	slRatio := snap.ATR / price * r.riskCfg.StopATRMultiplier
	tpRatio := slRatio * r.riskCfg.RewardRiskRatio

	if signal.Action == ActionBuy {
		stopLoss = price * (1 - slRatio)
		takeProfit = price * (1 + tpRatio)
	} else {
		stopLoss = price * (1 + slRatio)
		takeProfit = price * (1 - tpRatio)
	}

	if signal.StopLoss > 0 {
		stopLoss = signal.StopLoss
	}
	if signal.TakeProfit > 0 {
		takeProfit = signal.TakeProfit
	}
	return stopLoss, takeProfit
}

// score combines the normalized risk factors with the configured weights.
// Every factor is clamped to [0,1] first, so the weighted sum stays in [0,1]
// for weights summing to 1.
func (r *RiskManager) score(signal TradeSignal, snap types.Snapshot, alerts []Alert) float64 {
	w := r.riskCfg.Weights

	confidenceFactor := clamp01(1 - signal.Confidence)

	var anomalyFactor float64
	switch MaxLevel(alerts) {
	case AlertCritical:
		anomalyFactor = 1.0
	case AlertWarning:
		anomalyFactor = 0.5
	}

	var drawdownFactor float64
	if r.riskCfg.MaxDrawdownPct > 0 {
		drawdownFactor = clamp01(r.drawdown.DrawdownPct() / r.riskCfg.MaxDrawdownPct)
	}

	var lossStreakFactor float64
	if r.riskCfg.ConsecutiveLossMax > 0 {
		lossStreakFactor = clamp01(float64(r.drawdown.ConsecutiveLosses()) / float64(r.riskCfg.ConsecutiveLossMax))
	}

	var volatilityFactor float64
	if r.riskCfg.VolatilityCap > 0 {
		volatilityFactor = clamp01(snap.Volatility / r.riskCfg.VolatilityCap)
	}

	return w.Confidence*confidenceFactor +
		w.Anomaly*anomalyFactor +
		w.Drawdown*drawdownFactor +
		w.LossStreak*lossStreakFactor +
		w.Volatility*volatilityFactor
}

// deny finalizes a DENIED evaluation: size is forced to zero and at least
// one reason is always present.
func (r *RiskManager) deny(eval TradeEvaluation, reasons ...string) TradeEvaluation {
	eval.Decision = DecisionDenied
	eval.PositionSize = 0
	eval.DenialReasons = append(eval.DenialReasons, reasons...)
	if len(eval.DenialReasons) == 0 {
		eval.DenialReasons = []string{"denied"}
	}
	return eval
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
