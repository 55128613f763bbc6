package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Risk engine metrics
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "margin_bot_evaluations_total",
			Help: "Total number of risk evaluations by decision",
		},
		[]string{"symbol", "decision"},
	)

	riskScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "margin_bot_risk_score",
			Help: "Risk score of the most recent evaluation",
		},
		[]string{"symbol"},
	)

	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "margin_bot_trades_total",
			Help: "Total number of trades executed",
		},
		[]string{"symbol", "side"},
	)

	tradePnL = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "margin_bot_trade_pnl",
			Help:    "Distribution of realized trade P&L",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"symbol"},
	)

	openPositions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "margin_bot_open_positions",
			Help: "Number of currently open positions",
		},
		[]string{"symbol"},
	)

	// Account metrics
	accountBalance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "margin_bot_balance",
			Help: "Current account balance",
		},
		[]string{"symbol"},
	)

	drawdownPct = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "margin_bot_drawdown_pct",
			Help: "Current drawdown from the balance peak",
		},
		[]string{"symbol"},
	)

	marginRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "margin_bot_margin_ratio",
			Help: "Account margin ratio (equity / maintenance)",
		},
		[]string{"symbol"},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "margin_bot_current_price",
			Help: "Current price of the trading symbol",
		},
		[]string{"symbol"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "margin_bot_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(evaluationsTotal)
	prometheus.MustRegister(riskScore)
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradePnL)
	prometheus.MustRegister(openPositions)
	prometheus.MustRegister(accountBalance)
	prometheus.MustRegister(drawdownPct)
	prometheus.MustRegister(marginRatio)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler serves the Prometheus scrape endpoint.
type MetricsHandler struct{}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordEvaluation records a risk decision and its score.
func RecordEvaluation(symbol, decision string, score float64) {
	evaluationsTotal.WithLabelValues(symbol, decision).Inc()
	riskScore.WithLabelValues(symbol).Set(score)
}

// RecordTrade records an executed entry.
func RecordTrade(symbol, side string) {
	tradesTotal.WithLabelValues(symbol, side).Inc()
}

// RecordClosedTrade records a realized P&L sample.
func RecordClosedTrade(symbol string, pnl float64) {
	tradePnL.WithLabelValues(symbol).Observe(pnl)
}

// UpdateAccount updates the per-cycle account gauges.
func UpdateAccount(symbol string, balance, drawdown, margin float64, positions int) {
	accountBalance.WithLabelValues(symbol).Set(balance)
	drawdownPct.WithLabelValues(symbol).Set(drawdown)
	marginRatio.WithLabelValues(symbol).Set(margin)
	openPositions.WithLabelValues(symbol).Set(float64(positions))
}

// UpdatePrice updates the current price gauge.
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// RecordError records an error by category.
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
