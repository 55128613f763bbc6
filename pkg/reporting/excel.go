package reporting

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/trbinh/crypto-margin-bot/internal/backtest"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

const (
	sheetSummary = "Summary"
	sheetEquity  = "Equity"
	sheetTrades  = "Trades"
	sheetPnL     = "PnL Distribution"
	sheetPrice   = "Price"
)

// WriteExcelReport produces the workbook artifact: summary, trade log, and
// the four charts (equity curve, drawdown, P&L distribution, price with
// entry/exit markers).
func WriteExcelReport(path string, result *backtest.Result, candles []types.OHLCV) error {
	fx := excelize.NewFile()
	defer fx.Close()

	fx.SetSheetName("Sheet1", sheetSummary)
	if err := writeSummarySheet(fx, result); err != nil {
		return err
	}
	if err := writeEquitySheet(fx, result); err != nil {
		return err
	}
	if err := writeTradesSheet(fx, result); err != nil {
		return err
	}
	if err := writePnLSheet(fx, result); err != nil {
		return err
	}
	if err := writePriceSheet(fx, result, candles); err != nil {
		return err
	}

	if err := fx.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save excel report: %w", err)
	}
	return nil
}

func writeSummarySheet(fx *excelize.File, result *backtest.Result) error {
	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	fx.SetCellValue(sheetSummary, "A1", "Metric")
	fx.SetCellValue(sheetSummary, "B1", "Value")
	fx.SetCellStyle(sheetSummary, "A1", "B1", headerStyle)

	rows := [][2]interface{}{
		{"Symbol", result.Symbol},
		{"Strategy", result.Strategy},
		{"Seed", result.Seed},
		{"Start", result.Start.Format("2006-01-02 15:04")},
		{"End", result.End.Format("2006-01-02 15:04")},
		{"Initial Balance", result.InitialBalance},
		{"Final Balance", result.FinalBalance},
		{"Return %", result.Metrics.ReturnPct * 100},
		{"Total Trades", result.Metrics.TotalTrades},
		{"Win Rate %", result.Metrics.WinRate * 100},
		{"Avg Win", result.Metrics.AvgWin},
		{"Avg Loss", result.Metrics.AvgLoss},
		{"Profit Factor", result.Metrics.ProfitFactor},
		{"Max Drawdown %", result.Metrics.MaxDrawdown * 100},
		{"Sharpe (per-run)", result.Metrics.SharpeRatio},
		{"Evaluations", result.Evaluations},
		{"Denied", result.Denied},
	}
	for i, row := range rows {
		fx.SetCellValue(sheetSummary, fmt.Sprintf("A%d", i+2), row[0])
		fx.SetCellValue(sheetSummary, fmt.Sprintf("B%d", i+2), row[1])
	}
	fx.SetColWidth(sheetSummary, "A", "B", 20)
	return nil
}

func writeEquitySheet(fx *excelize.File, result *backtest.Result) error {
	if _, err := fx.NewSheet(sheetEquity); err != nil {
		return err
	}

	fx.SetCellValue(sheetEquity, "A1", "Timestamp")
	fx.SetCellValue(sheetEquity, "B1", "Balance")
	fx.SetCellValue(sheetEquity, "C1", "Drawdown %")
	for i, p := range result.Equity {
		row := i + 2
		fx.SetCellValue(sheetEquity, fmt.Sprintf("A%d", row), p.Timestamp.Format("2006-01-02 15:04"))
		fx.SetCellValue(sheetEquity, fmt.Sprintf("B%d", row), p.Balance)
		fx.SetCellValue(sheetEquity, fmt.Sprintf("C%d", row), p.DrawdownPct*100)
	}

	last := len(result.Equity) + 1
	if err := fx.AddChart(sheetEquity, "E2", &excelize.Chart{
		Type:  excelize.Line,
		Title: []excelize.RichTextRun{{Text: "Equity Curve"}},
		Series: []excelize.ChartSeries{{
			Name:       "Balance",
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheetEquity, last),
			Values:     fmt.Sprintf("%s!$B$2:$B$%d", sheetEquity, last),
		}},
	}); err != nil {
		return err
	}
	return fx.AddChart(sheetEquity, "E22", &excelize.Chart{
		Type:  excelize.Line,
		Title: []excelize.RichTextRun{{Text: "Drawdown %"}},
		Series: []excelize.ChartSeries{{
			Name:       "Drawdown",
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheetEquity, last),
			Values:     fmt.Sprintf("%s!$C$2:$C$%d", sheetEquity, last),
		}},
	})
}

func writeTradesSheet(fx *excelize.File, result *backtest.Result) error {
	if _, err := fx.NewSheet(sheetTrades); err != nil {
		return err
	}

	headers := []string{"Entry Time", "Exit Time", "Side", "Size", "Entry", "Exit", "P&L", "Reason", "Strategy", "Confidence"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		fx.SetCellValue(sheetTrades, cell, h)
	}

	for i, tr := range result.Trades {
		row := i + 2
		values := []interface{}{
			tr.EntryTime.Format("2006-01-02 15:04"),
			tr.ExitTime.Format("2006-01-02 15:04"),
			string(tr.Side),
			tr.Size,
			tr.EntryPrice,
			tr.ExitPrice,
			tr.RealizedPnL,
			tr.ExitReason,
			tr.Strategy,
			tr.Confidence,
		}
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, row)
			if err != nil {
				return err
			}
			fx.SetCellValue(sheetTrades, cell, v)
		}
	}
	return nil
}

// writePnLSheet buckets realized P&L into a histogram and charts it.
func writePnLSheet(fx *excelize.File, result *backtest.Result) error {
	if _, err := fx.NewSheet(sheetPnL); err != nil {
		return err
	}

	buckets, counts := pnlHistogram(result.Trades, 12)

	fx.SetCellValue(sheetPnL, "A1", "Bucket")
	fx.SetCellValue(sheetPnL, "B1", "Count")
	for i := range buckets {
		row := i + 2
		fx.SetCellValue(sheetPnL, fmt.Sprintf("A%d", row), buckets[i])
		fx.SetCellValue(sheetPnL, fmt.Sprintf("B%d", row), counts[i])
	}

	last := len(buckets) + 1
	return fx.AddChart(sheetPnL, "D2", &excelize.Chart{
		Type:  excelize.Col,
		Title: []excelize.RichTextRun{{Text: "P&L Distribution"}},
		Series: []excelize.ChartSeries{{
			Name:       "Trades",
			Categories: fmt.Sprintf("'%s'!$A$2:$A$%d", sheetPnL, last),
			Values:     fmt.Sprintf("'%s'!$B$2:$B$%d", sheetPnL, last),
		}},
	})
}

func pnlHistogram(trades []backtest.ClosedTrade, bins int) ([]string, []int) {
	if len(trades) == 0 || bins < 1 {
		return []string{"0"}, []int{0}
	}

	minPnL, maxPnL := trades[0].RealizedPnL, trades[0].RealizedPnL
	for _, tr := range trades {
		if tr.RealizedPnL < minPnL {
			minPnL = tr.RealizedPnL
		}
		if tr.RealizedPnL > maxPnL {
			maxPnL = tr.RealizedPnL
		}
	}
	width := (maxPnL - minPnL) / float64(bins)
	if width == 0 {
		return []string{fmt.Sprintf("%.2f", minPnL)}, []int{len(trades)}
	}

	labels := make([]string, bins)
	counts := make([]int, bins)
	for i := 0; i < bins; i++ {
		lo := minPnL + float64(i)*width
		labels[i] = fmt.Sprintf("%.1f…%.1f", lo, lo+width)
	}
	for _, tr := range trades {
		idx := int((tr.RealizedPnL - minPnL) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	return labels, counts
}

// writePriceSheet charts the close series with entry and exit markers in
// separate series, so fills are visible against the price path.
func writePriceSheet(fx *excelize.File, result *backtest.Result, candles []types.OHLCV) error {
	if _, err := fx.NewSheet(sheetPrice); err != nil {
		return err
	}

	entriesAt := make(map[int64]float64)
	exitsAt := make(map[int64]float64)
	for _, tr := range result.Trades {
		entriesAt[tr.EntryTime.Unix()] = tr.EntryPrice
		exitsAt[tr.ExitTime.Unix()] = tr.ExitPrice
	}

	fx.SetCellValue(sheetPrice, "A1", "Timestamp")
	fx.SetCellValue(sheetPrice, "B1", "Close")
	fx.SetCellValue(sheetPrice, "C1", "Entry")
	fx.SetCellValue(sheetPrice, "D1", "Exit")
	for i, c := range candles {
		row := i + 2
		fx.SetCellValue(sheetPrice, fmt.Sprintf("A%d", row), c.Timestamp.Format("2006-01-02 15:04"))
		fx.SetCellValue(sheetPrice, fmt.Sprintf("B%d", row), c.Close)
		if price, ok := entriesAt[c.Timestamp.Unix()]; ok {
			fx.SetCellValue(sheetPrice, fmt.Sprintf("C%d", row), price)
		}
		if price, ok := exitsAt[c.Timestamp.Unix()]; ok {
			fx.SetCellValue(sheetPrice, fmt.Sprintf("D%d", row), price)
		}
	}

	last := len(candles) + 1
	return fx.AddChart(sheetPrice, "F2", &excelize.Chart{
		Type:  excelize.Line,
		Title: []excelize.RichTextRun{{Text: "Price with Entries and Exits"}},
		Series: []excelize.ChartSeries{
			{
				Name:       "Close",
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheetPrice, last),
				Values:     fmt.Sprintf("%s!$B$2:$B$%d", sheetPrice, last),
			},
			{
				Name:       "Entries",
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheetPrice, last),
				Values:     fmt.Sprintf("%s!$C$2:$C$%d", sheetPrice, last),
				Marker:     excelize.ChartMarker{Symbol: "triangle", Size: 7},
			},
			{
				Name:       "Exits",
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheetPrice, last),
				Values:     fmt.Sprintf("%s!$D$2:$D$%d", sheetPrice, last),
				Marker:     excelize.ChartMarker{Symbol: "circle", Size: 7},
			},
		},
	})
}
