package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/trbinh/crypto-margin-bot/internal/backtest"
	"github.com/trbinh/crypto-margin-bot/internal/config"
	"github.com/trbinh/crypto-margin-bot/internal/strategy"
	"github.com/trbinh/crypto-margin-bot/pkg/data"
	"github.com/trbinh/crypto-margin-bot/pkg/reporting"
)

func main() {
	var (
		dataPath   = flag.String("data", "", "path to OHLCV CSV file (required)")
		configPath = flag.String("config", "", "path to JSON config file (optional)")
		symbol     = flag.String("symbol", "", "trading symbol (overrides config)")
		seed       = flag.Int64("seed", 42, "random seed for ambiguous-bar tie-breaks")
		outDir     = flag.String("out", "results", "directory for report artifacts")
	)
	flag.Parse()

	if *dataPath == "" {
		flag.Usage()
		log.Fatal("-data is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	cfg.Mode = config.ModeBacktest
	if *symbol != "" {
		cfg.Trading.Symbol = *symbol
	}

	candles, err := data.NewCSVProvider().LoadData(*dataPath)
	if err != nil {
		log.Fatalf("data: %v", err)
	}

	strat := strategy.NewMACross(cfg.Strategy.FastPeriod, cfg.Strategy.SlowPeriod)
	engine := backtest.NewEngine(cfg, strat, candles, *seed)

	result, err := engine.Run(context.Background())
	if err != nil {
		log.Fatalf("backtest: %v", err)
	}

	reporting.PrintBacktestSummary(os.Stdout, result)

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("output: %v", err)
	}
	artifacts := []struct {
		name  string
		write func(string) error
	}{
		{"trades.csv", func(p string) error { return reporting.WriteTradeLogCSV(p, result) }},
		{"equity.csv", func(p string) error { return reporting.WriteEquityCurveCSV(p, result) }},
		{"report.xlsx", func(p string) error { return reporting.WriteExcelReport(p, result, candles) }},
	}
	for _, a := range artifacts {
		path := filepath.Join(*outDir, a.name)
		if err := a.write(path); err != nil {
			log.Fatalf("report %s: %v", a.name, err)
		}
		fmt.Printf("wrote %s\n", path)
	}
}
