package reporting

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/trbinh/crypto-margin-bot/internal/backtest"
)

// PrintBacktestSummary renders the replay result as terminal tables.
func PrintBacktestSummary(w io.Writer, result *backtest.Result) {
	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.SetStyle(table.StyleRounded)
	summary.SetTitle("Backtest Summary — %s (%s)", result.Symbol, result.Strategy)
	summary.AppendRows([]table.Row{
		{"Period", fmt.Sprintf("%s → %s",
			result.Start.Format("2006-01-02 15:04"), result.End.Format("2006-01-02 15:04"))},
		{"Seed", result.Seed},
		{"Initial Balance", fmt.Sprintf("%.2f", result.InitialBalance)},
		{"Final Balance", fmt.Sprintf("%.2f", result.FinalBalance)},
		{"Return", fmt.Sprintf("%.2f%%", result.Metrics.ReturnPct*100)},
		{"Total P&L", fmt.Sprintf("%.2f", result.Metrics.TotalPnL)},
	})
	summary.AppendSeparator()
	summary.AppendRows([]table.Row{
		{"Trades", result.Metrics.TotalTrades},
		{"Win Rate", fmt.Sprintf("%.1f%%", result.Metrics.WinRate*100)},
		{"Avg Win", fmt.Sprintf("%.2f", result.Metrics.AvgWin)},
		{"Avg Loss", fmt.Sprintf("%.2f", result.Metrics.AvgLoss)},
		{"Profit Factor", fmt.Sprintf("%.2f", result.Metrics.ProfitFactor)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", result.Metrics.MaxDrawdown*100)},
		{"Sharpe (per-run)", fmt.Sprintf("%.2f", result.Metrics.SharpeRatio)},
	})
	summary.AppendSeparator()
	summary.AppendRows([]table.Row{
		{"Evaluations", result.Evaluations},
		{"Approved", result.Approved},
		{"Conditional", result.Conditional},
		{"Denied", result.Denied},
	})
	summary.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 45, Align: text.AlignLeft},
	})
	summary.Render()

	if len(result.Trades) == 0 {
		return
	}

	tradeLog := table.NewWriter()
	tradeLog.SetOutputMirror(w)
	tradeLog.SetStyle(table.StyleRounded)
	tradeLog.SetTitle("Closed Trades")
	tradeLog.AppendHeader(table.Row{"#", "Side", "Entry", "Exit", "Size", "P&L", "Reason", "Held"})

	shown := result.Trades
	const maxRows = 30
	truncated := false
	if len(shown) > maxRows {
		shown = shown[len(shown)-maxRows:]
		truncated = true
	}
	for i, tr := range shown {
		tradeLog.AppendRow(table.Row{
			i + 1,
			tr.Side,
			fmt.Sprintf("%.2f", tr.EntryPrice),
			fmt.Sprintf("%.2f", tr.ExitPrice),
			fmt.Sprintf("%.6f", tr.Size),
			fmt.Sprintf("%+.2f", tr.RealizedPnL),
			tr.ExitReason,
			tr.ExitTime.Sub(tr.EntryTime).Truncate(time.Minute),
		})
	}
	if truncated {
		tradeLog.AppendFooter(table.Row{"", "", "", "", "", "", "", fmt.Sprintf("last %d of %d", maxRows, len(result.Trades))})
	}
	tradeLog.Render()
}

// PrintStartupBanner renders the live/paper startup configuration table.
func PrintStartupBanner(w io.Writer, mode, environment, symbol, interval string, balance float64, maxPositions, dailyCap int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("crypto-margin-bot")
	t.AppendRows([]table.Row{
		{"Mode", mode},
		{"Environment", environment},
		{"Symbol", symbol},
		{"Interval", interval},
		{"Balance", fmt.Sprintf("%.2f", balance)},
		{"Max Positions", maxPositions},
		{"Daily Trade Cap", dailyCap},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 15, WidthMax: 15, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 35, Align: text.AlignLeft},
	})
	t.Render()
}
