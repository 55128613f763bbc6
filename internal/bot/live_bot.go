package bot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/trbinh/crypto-margin-bot/internal/config"
	boterrors "github.com/trbinh/crypto-margin-bot/internal/errors"
	"github.com/trbinh/crypto-margin-bot/internal/exchange"
	"github.com/trbinh/crypto-margin-bot/internal/exchange/bybit"
	"github.com/trbinh/crypto-margin-bot/internal/execution"
	"github.com/trbinh/crypto-margin-bot/internal/indicators"
	"github.com/trbinh/crypto-margin-bot/internal/logger"
	"github.com/trbinh/crypto-margin-bot/internal/monitoring"
	"github.com/trbinh/crypto-margin-bot/internal/position"
	"github.com/trbinh/crypto-margin-bot/internal/risk"
	"github.com/trbinh/crypto-margin-bot/internal/state"
	"github.com/trbinh/crypto-margin-bot/internal/strategy"
	"github.com/trbinh/crypto-margin-bot/pkg/reporting"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

const (
	wsPublicMainnet = "wss://stream.bybit.com/v5/public/linear"
	wsPublicTestnet = "wss://stream-testnet.bybit.com/v5/public/linear"

	// Orphan/stray reconciliation cadence, in cycles.
	cleanupEveryCycles = 10
)

// Bot runs the trading cycle: market snapshot, stop scan, strategy signal,
// risk evaluation, execution. The loop is single-threaded on purpose — one
// cycle finishes before the next begins, so the risk and position state
// never needs locking.
type Bot struct {
	cfg   *config.Config
	ex    exchange.Exchange
	strat strategy.Strategy
	log   *logger.Logger

	stream *exchange.TickerStream
	health *monitoring.HealthChecker

	tracker  *position.Tracker
	limits   *position.Limits
	cleaner  *position.Cleaner
	riskMgr  *risk.RiskManager
	executor execution.Executor
	stops    *execution.StopManager
	ledger   *execution.Ledger // paper mode only

	symbol string
	cycles int
}

// New wires the bot for the configured mode. Paper mode trades against real
// market data with a simulated ledger; live mode places real orders.
func New(cfg *config.Config, strat strategy.Strategy) (*Bot, error) {
	if cfg.Mode != config.ModePaper && cfg.Mode != config.ModeLive {
		return nil, fmt.Errorf("bot supports paper and live modes, got %q", cfg.Mode)
	}
	symbol := cfg.Trading.Symbol

	log, err := logger.New(cfg.LogDir, symbol)
	if err != nil {
		return nil, err
	}

	store, err := state.NewStore(cfg.StateDir)
	if err != nil {
		log.Close()
		return nil, err
	}

	tracker, err := position.NewTracker(store, symbol)
	if err != nil {
		log.Close()
		return nil, err
	}
	drawdown, err := risk.NewDrawdownManager(cfg.Risk, cfg.Sizing, store, symbol)
	if err != nil {
		log.Close()
		return nil, err
	}

	limits := position.NewLimits(cfg.Limits, tracker)
	riskMgr := risk.NewRiskManager(cfg.Risk, cfg.Sizing, drawdown, limits)

	client := bybit.NewClient(bybit.Config{
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		Testnet:   cfg.Exchange.Testnet,
		Demo:      cfg.Exchange.Demo,
		Category:  cfg.Exchange.Category,
	})
	ex := bybit.NewAdapter(client, symbol)

	b := &Bot{
		cfg:     cfg,
		ex:      ex,
		strat:   strat,
		log:     log,
		health:  monitoring.NewHealthChecker(3 * cfg.Trading.CycleInterval),
		tracker: tracker,
		limits:  limits,
		riskMgr: riskMgr,
		symbol:  symbol,
	}

	switch cfg.Mode {
	case config.ModeLive:
		b.executor = execution.NewLiveExecutor(ex, tracker, log, symbol)
		b.cleaner = position.NewCleaner(ex, tracker, log, symbol)
	case config.ModePaper:
		b.ledger = execution.NewLedger(cfg.Trading.InitialBalance, cfg.Trading.Commission)
		b.executor = execution.NewPaperExecutor(tracker, b.ledger, symbol)
	}
	b.stops = execution.NewStopManager(tracker, b.executor, drawdown, log)

	wsURL := wsPublicMainnet
	if cfg.Exchange.Testnet {
		wsURL = wsPublicTestnet
	}
	b.stream = exchange.NewTickerStream(wsURL, symbol)

	return b, nil
}

// Run executes cycles until ctx is cancelled. The in-flight cycle always
// completes: positions and risk state are persisted on every mutation, so a
// stop between cycles loses nothing.
func (b *Bot) Run(ctx context.Context) error {
	defer b.log.Close()

	if err := b.ex.Connect(ctx); err != nil {
		return boterrors.Wrap(err, boterrors.ErrorCategoryExchangeTransient, "bot", "connect")
	}
	defer b.ex.Disconnect()
	b.health.SetConnected(true)

	if err := b.stream.Start(ctx); err != nil {
		// The stream is an optimization: without it every cycle falls back
		// to a timed REST ticker call.
		b.log.Warning("ticker stream unavailable, using REST fallback: %v", err)
	} else {
		defer b.stream.Stop()
	}

	monitoring.Serve(b.cfg.Monitoring.MetricsPort, b.cfg.Monitoring.HealthPort, b.health)

	reporting.PrintStartupBanner(os.Stdout,
		string(b.cfg.Mode), b.ex.GetEnvironment(), b.symbol, b.cfg.Trading.Interval,
		b.currentBalanceEstimate(ctx),
		b.cfg.Limits.MaxPositions, b.cfg.Limits.DailyTradeCap)
	b.log.Info("bot started: mode=%s env=%s symbol=%s interval=%s",
		b.cfg.Mode, b.ex.GetEnvironment(), b.symbol, b.cfg.Trading.Interval)

	ticker := time.NewTicker(b.cfg.Trading.CycleInterval)
	defer ticker.Stop()

	for {
		if err := b.cycle(ctx, time.Now()); err != nil {
			b.log.LogError("cycle", err)
			b.health.RecordError(err)
			monitoring.RecordError(boterrors.CategoryOf(err))
		}

		select {
		case <-ctx.Done():
			b.log.Info("shutdown requested, %d positions remain open", b.tracker.OpenCount())
			return nil
		case <-ticker.C:
		}
	}
}

// cycle runs one full admission pass against fresh market data.
func (b *Bot) cycle(ctx context.Context, now time.Time) error {
	b.cycles++

	snap, err := b.snapshot(ctx, now)
	if err != nil {
		return err
	}
	price := snap.Ticker.Last
	monitoring.UpdatePrice(b.symbol, price)

	balance, margin, err := b.account(ctx, price)
	if err != nil {
		return err
	}

	// Equity feeds the drawdown machine before any trading decision.
	equity := balance + b.unrealized(price)
	if err := b.riskMgr.Drawdown().UpdateBalance(equity, now); err != nil {
		return err
	}

	// Exits first: a position closed this cycle frees a slot and updates the
	// loss streak before the entry is vetted.
	closed, err := b.stops.ScanPrice(ctx, price, now)
	if err != nil {
		b.log.LogError("stop scan", err)
	}
	for _, c := range closed {
		monitoring.RecordClosedTrade(b.symbol, c.RealizedPnL)
	}

	if b.cleaner != nil && b.cycles%cleanupEveryCycles == 1 {
		if report, err := b.cleaner.Run(ctx, now); err != nil {
			b.log.LogError("cleanup", err)
		} else if report.Orphans > 0 || report.CancelledOrders > 0 {
			b.log.Warning("cleanup: %d orphans adopted, %d stray orders cancelled",
				report.Orphans, report.CancelledOrders)
		}
	}

	signal := b.strat.Analyze(snap.Candles)
	if signal.Action == risk.ActionHold {
		b.finishCycle(balance, margin, price)
		return nil
	}

	eval := b.riskMgr.Evaluate(signal, snap, margin, balance, now)
	b.log.LogEvaluation(string(eval.Decision), eval.RiskScore, eval.PositionSize, eval.DenialReasons)
	monitoring.RecordEvaluation(b.symbol, string(eval.Decision), eval.RiskScore)
	for _, w := range eval.Warnings {
		b.log.Risk("warning: %s", w)
	}

	if !eval.Denied() {
		result := b.executor.Execute(ctx, eval, snap)
		b.log.LogExecution(string(result.Mode), string(result.Status), result.OrderID,
			result.FilledPrice, result.FilledSize)
		if result.Success {
			monitoring.RecordTrade(b.symbol, string(signal.Action))
		} else if result.Err != nil {
			b.health.RecordError(result.Err)
			monitoring.RecordError(boterrors.CategoryOf(result.Err))
		}
	}

	b.finishCycle(balance, margin, price)
	return nil
}

func (b *Bot) finishCycle(balance float64, margin *types.MarginStatus, price float64) {
	dd := b.riskMgr.Drawdown()
	monitoring.UpdateAccount(b.symbol, balance, dd.DrawdownPct(), margin.Ratio, b.tracker.OpenCount())
	b.health.MarkCycle(price, string(dd.State()))
}

// snapshot assembles the per-cycle market view: klines from REST, the quote
// from the websocket stream when it is live, and derived indicators over the
// bounded window.
func (b *Bot) snapshot(ctx context.Context, now time.Time) (types.Snapshot, error) {
	window := b.cfg.Trading.WindowSize
	candles, err := b.ex.GetKlines(ctx, b.symbol, b.cfg.Trading.Interval, window)
	if err != nil {
		return types.Snapshot{}, err
	}

	ticker, latency, err := b.quote(ctx, now)
	if err != nil {
		return types.Snapshot{}, err
	}

	atr := indicators.ATR(candles, indicators.DefaultATRPeriod)
	snap := types.Snapshot{
		Symbol:     b.symbol,
		Ticker:     *ticker,
		Candles:    candles,
		ATR:        atr,
		AvgVolume:  indicators.AvgVolume(candles),
		APILatency: latency,
		Timestamp:  ticker.Timestamp,
	}
	if last := snap.LastClose(); last > 0 {
		snap.Volatility = atr / last
	}
	return snap, nil
}

// quote prefers the stream's latest ticker; a dead stream falls back to a
// timed REST call whose round trip doubles as the latency sample.
func (b *Bot) quote(ctx context.Context, now time.Time) (*types.Ticker, time.Duration, error) {
	if t := b.stream.Latest(); t != nil && now.Sub(t.Timestamp) < b.cfg.Risk.MaxDataAge {
		return t, b.stream.Latency(), nil
	}

	start := time.Now()
	t, err := b.ex.GetTicker(ctx, b.symbol)
	if err != nil {
		return nil, 0, err
	}
	return t, time.Since(start), nil
}

// account returns the balance and margin status for the mode: real account
// reads live, the simulated ledger with synthetic margin on paper.
func (b *Bot) account(ctx context.Context, price float64) (float64, *types.MarginStatus, error) {
	if b.cfg.Mode == config.ModeLive {
		bal, err := b.ex.GetBalance(ctx, "USDT")
		if err != nil {
			return 0, nil, err
		}
		margin, err := b.ex.GetMarginStatus(ctx)
		if err != nil {
			return 0, nil, err
		}
		return bal.Available, margin, nil
	}

	balance := b.ledger.Balance()
	equity := balance + b.unrealized(price)

	var notional float64
	for _, p := range b.tracker.Open() {
		notional += p.Size * price
	}
	margin := &types.MarginStatus{
		Equity:            equity,
		MaintenanceMargin: notional * 0.005,
		UpdatedAt:         time.Now(),
	}
	if margin.MaintenanceMargin > 0 {
		margin.Ratio = margin.Equity / margin.MaintenanceMargin
	}
	return balance, margin, nil
}

func (b *Bot) unrealized(price float64) float64 {
	var pnl float64
	for _, p := range b.tracker.Open() {
		pnl += p.UnrealizedPnL(price)
	}
	return pnl
}

// currentBalanceEstimate is only for the startup banner; failures fall back
// to the configured initial balance.
func (b *Bot) currentBalanceEstimate(ctx context.Context) float64 {
	if b.cfg.Mode == config.ModePaper {
		return b.ledger.Balance()
	}
	if bal, err := b.ex.GetBalance(ctx, "USDT"); err == nil {
		return bal.Total
	}
	return b.cfg.Trading.InitialBalance
}
