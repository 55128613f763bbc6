package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/trbinh/crypto-margin-bot/internal/bot"
	"github.com/trbinh/crypto-margin-bot/internal/config"
	"github.com/trbinh/crypto-margin-bot/internal/strategy"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to JSON config file (optional)")
		mode       = flag.String("mode", "", "trading mode: paper or live (overrides config)")
		symbol     = flag.String("symbol", "", "trading symbol (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *mode != "" {
		cfg.Mode = config.TradingMode(*mode)
	}
	if *symbol != "" {
		cfg.Trading.Symbol = *symbol
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	strat, err := buildStrategy(cfg)
	if err != nil {
		log.Fatalf("strategy: %v", err)
	}

	b, err := bot.New(cfg, strat)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	// SIGINT/SIGTERM cancel the context; the bot finishes its in-flight
	// cycle and returns.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Run(ctx); err != nil {
		log.Fatalf("bot: %v", err)
	}
	fmt.Fprintln(os.Stderr, "shutdown complete")
}

func buildStrategy(cfg *config.Config) (strategy.Strategy, error) {
	switch cfg.Strategy.Name {
	case "", "ma_cross":
		return strategy.NewMACross(cfg.Strategy.FastPeriod, cfg.Strategy.SlowPeriod), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Strategy.Name)
	}
}
