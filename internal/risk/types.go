package risk

import "time"

// Action is the direction requested by the signal source.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// TradeSignal is the external input to evaluation. The engine makes no
// assumption about how it was derived.
type TradeSignal struct {
	Action        Action
	Confidence    float64 // [0,1]
	StopLoss      float64 // optional; 0 means derive from ATR
	TakeProfit    float64 // optional; 0 means derive from ATR
	TrendStrength float64 // optional, e.g. ADX; used only for cooldown override
	StrategyName  string
}

// Decision is the admission verdict for one candidate trade.
type Decision string

const (
	DecisionApproved    Decision = "APPROVED"
	DecisionConditional Decision = "CONDITIONAL"
	DecisionDenied      Decision = "DENIED"
)

// TradeEvaluation is the result of one evaluate() call. Created fresh per
// cycle and consumed exactly once by the execution layer.
type TradeEvaluation struct {
	Decision      Decision
	PositionSize  float64 // base units; always 0 when DENIED
	RiskScore     float64 // [0,1]
	StopLoss      float64
	TakeProfit    float64
	DenialReasons []string
	Warnings      []string

	// CONDITIONAL decisions carry the haircut already applied; the flag
	// tells the loop to monitor the position more closely.
	ExtraMonitoring bool

	Signal      TradeSignal
	EvaluatedAt time.Time
}

// Denied reports whether the evaluation blocks execution.
func (e *TradeEvaluation) Denied() bool {
	return e.Decision == DecisionDenied
}

// TradeRecord is one realized trade outcome, windowed for Kelly and
// loss-streak statistics.
type TradeRecord struct {
	ProfitLoss float64   `json:"profit_loss"`
	Strategy   string    `json:"strategy"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Balance     float64   `json:"balance"`
	DrawdownPct float64   `json:"drawdown_pct"`
}
