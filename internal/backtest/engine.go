package backtest

import (
	"context"
	"math/rand"
	"time"

	"github.com/trbinh/crypto-margin-bot/internal/config"
	boterrors "github.com/trbinh/crypto-margin-bot/internal/errors"
	"github.com/trbinh/crypto-margin-bot/internal/execution"
	"github.com/trbinh/crypto-margin-bot/internal/indicators"
	"github.com/trbinh/crypto-margin-bot/internal/position"
	"github.com/trbinh/crypto-margin-bot/internal/risk"
	"github.com/trbinh/crypto-margin-bot/internal/strategy"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// Result is the full output of one replay.
type Result struct {
	Symbol         string             `json:"symbol"`
	Strategy       string             `json:"strategy"`
	Seed           int64              `json:"seed"`
	Start          time.Time          `json:"start"`
	End            time.Time          `json:"end"`
	InitialBalance float64            `json:"initial_balance"`
	FinalBalance   float64            `json:"final_balance"`
	Trades         []ClosedTrade      `json:"trades"`
	Equity         []risk.EquityPoint `json:"equity"`
	Metrics        Metrics            `json:"metrics"`

	Evaluations int `json:"evaluations"`
	Approved    int `json:"approved"`
	Conditional int `json:"conditional"`
	Denied      int `json:"denied"`
}

// Engine replays a historical series through the same risk and execution
// interfaces the live loop uses. Strategies and the risk engine only ever
// see a bounded view ending at the current bar — the visible horizon — so
// no decision can be informed by the future. Given identical data, config,
// and seed, two runs produce bit-identical results.
type Engine struct {
	cfg   *config.Config
	strat strategy.Strategy
	data  []types.OHLCV
	seed  int64
}

func NewEngine(cfg *config.Config, strat strategy.Strategy, data []types.OHLCV, seed int64) *Engine {
	return &Engine{cfg: cfg, strat: strat, data: data, seed: seed}
}

// Run executes the replay. The context is only consulted between bars; a
// cancellation finishes the current bar and returns the partial result as an
// error.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	warmup := e.warmupBars()
	if len(e.data) <= warmup {
		return nil, boterrors.NewMarketDataError("backtest", "run",
			"not enough candles for the configured warmup window")
	}

	symbol := e.cfg.Trading.Symbol
	initialBalance := e.cfg.Trading.InitialBalance

	tracker, err := position.NewTracker(nil, symbol)
	if err != nil {
		return nil, err
	}
	ledger := execution.NewLedger(initialBalance, e.cfg.Trading.Commission)
	executor := execution.NewBacktestExecutor(tracker, ledger, symbol)

	drawdown, err := risk.NewDrawdownManager(e.cfg.Risk, e.cfg.Sizing, nil, symbol)
	if err != nil {
		return nil, err
	}
	limits := position.NewLimits(e.cfg.Limits, tracker)
	riskMgr := risk.NewRiskManager(e.cfg.Risk, e.cfg.Sizing, drawdown, limits)

	// The seed drives the only random element of a replay: which side of an
	// ambiguous bar wins when both TP and SL sit inside its range.
	rng := rand.New(rand.NewSource(e.seed))
	stops := execution.NewStopManager(tracker, executor, drawdown, nil).WithRandomTieBreak(rng)

	trades := NewTradeTracker()

	for i := warmup; i < len(e.data); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		bar := e.data[i]

		// Exits first: the bar's range resolves stops of positions opened
		// on earlier bars. Entries happen at this bar's close, after its
		// range has already printed, so they are never scanned against it.
		closed, err := stops.ScanBar(ctx, bar)
		if err != nil {
			return nil, err
		}
		trades.RecordClosed(closed)

		equity := ledger.Balance() + e.unrealized(tracker, bar.Close)
		if err := drawdown.UpdateBalance(equity, bar.Timestamp); err != nil {
			return nil, err
		}
		trades.RecordEquity(bar.Timestamp, equity, drawdown.DrawdownPct())

		// No entries on the final bar: nothing could ever resolve them, and
		// the forced flatten would exit at the entry timestamp.
		if i == len(e.data)-1 {
			break
		}

		window := e.visibleWindow(i)
		signal := e.strat.Analyze(window)
		if signal.Action == risk.ActionHold {
			continue
		}

		snap := e.snapshot(window, bar, symbol)
		margin := e.syntheticMargin(equity, tracker, bar.Close)
		eval := riskMgr.Evaluate(signal, snap, margin, ledger.Balance(), bar.Timestamp)
		trades.RecordEvaluation(eval)
		if eval.Denied() {
			continue
		}

		result := executor.Execute(ctx, eval, snap)
		if !result.Success {
			// Simulated fills only fail on malformed input; surface it.
			return nil, result.Err
		}
	}

	// Flatten at the final close so every entry has a paired exit.
	lastBar := e.data[len(e.data)-1]
	forced, err := stops.ForceCloseAll(ctx, lastBar.Close, lastBar.Timestamp)
	if err != nil {
		return nil, err
	}
	trades.RecordClosed(forced)

	finalEquity := ledger.Balance()
	if err := drawdown.UpdateBalance(finalEquity, lastBar.Timestamp); err != nil {
		return nil, err
	}
	trades.RecordEquity(lastBar.Timestamp, finalEquity, drawdown.DrawdownPct())

	total, approved, conditional, denied := trades.DecisionCounts()
	result := &Result{
		Symbol:         symbol,
		Strategy:       e.strat.Name(),
		Seed:           e.seed,
		Start:          e.data[warmup].Timestamp,
		End:            lastBar.Timestamp,
		InitialBalance: initialBalance,
		FinalBalance:   finalEquity,
		Trades:         trades.Trades(),
		Equity:         trades.Equity(),
		Metrics:        ComputeMetrics(trades.Trades(), trades.Equity(), initialBalance, finalEquity),
		Evaluations:    total,
		Approved:       approved,
		Conditional:    conditional,
		Denied:         denied,
	}
	return result, nil
}

// warmupBars is the longest lookback any analysis needs before the first
// decision.
func (e *Engine) warmupBars() int {
	warmup := e.strat.MinCandles()
	if atr := indicators.DefaultATRPeriod + 1; atr > warmup {
		warmup = atr
	}
	return warmup
}

// visibleWindow returns the bounded view ending at bar i: at most WindowSize
// candles, never anything past i.
func (e *Engine) visibleWindow(i int) []types.OHLCV {
	visible := e.data[:i+1]
	if size := e.cfg.Trading.WindowSize; size > 0 && len(visible) > size {
		visible = visible[len(visible)-size:]
	}
	return visible
}

// snapshot synthesizes the per-cycle market view from the bounded window. A
// bar series has no order book, so bid and ask collapse onto the close and
// the spread check is inert in replays.
func (e *Engine) snapshot(window []types.OHLCV, bar types.OHLCV, symbol string) types.Snapshot {
	atr := indicators.ATR(window, indicators.DefaultATRPeriod)
	snap := types.Snapshot{
		Symbol: symbol,
		Ticker: types.Ticker{
			Symbol:    symbol,
			Bid:       bar.Close,
			Ask:       bar.Close,
			Last:      bar.Close,
			Volume:    bar.Volume,
			Timestamp: bar.Timestamp,
		},
		Candles:   window,
		ATR:       atr,
		AvgVolume: indicators.AvgVolume(window),
		Timestamp: bar.Timestamp,
	}
	if bar.Close > 0 {
		snap.Volatility = atr / bar.Close
	}
	return snap
}

// syntheticMargin models the simulated account: equity backs the open
// exposure at the projection rate used live.
func (e *Engine) syntheticMargin(equity float64, tracker *position.Tracker, price float64) *types.MarginStatus {
	var notional float64
	for _, p := range tracker.Open() {
		notional += p.Size * price
	}

	status := &types.MarginStatus{
		Equity:            equity,
		MaintenanceMargin: notional * 0.005,
	}
	if status.MaintenanceMargin > 0 {
		status.Ratio = status.Equity / status.MaintenanceMargin
	}
	return status
}

func (e *Engine) unrealized(tracker *position.Tracker, price float64) float64 {
	var pnl float64
	for _, p := range tracker.Open() {
		pnl += p.UnrealizedPnL(price)
	}
	return pnl
}
