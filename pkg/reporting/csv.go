package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/trbinh/crypto-margin-bot/internal/backtest"
)

// WriteTradeLogCSV writes the closed-trade list as a CSV artifact for
// external analysis.
func WriteTradeLogCSV(path string, result *backtest.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trade log: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{"entry_time", "exit_time", "side", "size", "entry_price", "exit_price", "realized_pnl", "exit_reason", "strategy", "confidence"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, tr := range result.Trades {
		row := []string{
			tr.EntryTime.UTC().Format(time.RFC3339),
			tr.ExitTime.UTC().Format(time.RFC3339),
			string(tr.Side),
			strconv.FormatFloat(tr.Size, 'f', -1, 64),
			strconv.FormatFloat(tr.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(tr.ExitPrice, 'f', -1, 64),
			strconv.FormatFloat(tr.RealizedPnL, 'f', -1, 64),
			tr.ExitReason,
			tr.Strategy,
			strconv.FormatFloat(tr.Confidence, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// WriteEquityCurveCSV writes the per-bar equity samples.
func WriteEquityCurveCSV(path string, result *backtest.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create equity curve: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"timestamp", "balance", "drawdown_pct"}); err != nil {
		return err
	}
	for _, p := range result.Equity {
		row := []string{
			p.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(p.Balance, 'f', -1, 64),
			strconv.FormatFloat(p.DrawdownPct, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
