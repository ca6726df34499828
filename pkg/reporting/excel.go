package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/gorkemacar/signalbot/internal/backtest"
)

const (
	tradesSheet  = "Trades"
	summarySheet = "Summary"
)

// WriteBacktestXLSX exports a replay to an Excel workbook with a trade
// sheet and a summary sheet.
func WriteBacktestXLSX(res *backtest.Results, strategyName, symbol, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	if _, err := fx.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DCE6F1"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeTradesSheet(fx, res, headerStyle); err != nil {
		return err
	}
	if err := writeSummarySheet(fx, res, strategyName, symbol, headerStyle); err != nil {
		return err
	}

	if err := fx.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func writeTradesSheet(fx *excelize.File, res *backtest.Results, headerStyle int) error {
	headers := []interface{}{
		"#", "Side", "Entry Bar", "Exit Bar", "Entry Price", "Exit Price", "Qty", "Exit Reason", "PnL",
	}
	if err := fx.SetSheetRow(tradesSheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write trade header: %w", err)
	}
	if err := fx.SetCellStyle(tradesSheet, "A1", "I1", headerStyle); err != nil {
		return fmt.Errorf("failed to style trade header: %w", err)
	}

	for i, trade := range res.Trades {
		row := []interface{}{
			i + 1,
			trade.Side.String(),
			trade.EntryIndex,
			trade.ExitIndex,
			trade.EntryPrice,
			trade.ExitPrice,
			trade.Qty,
			string(trade.ExitReason),
			trade.PnL,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := fx.SetSheetRow(tradesSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write trade row %d: %w", i+1, err)
		}
	}
	return nil
}

func writeSummarySheet(fx *excelize.File, res *backtest.Results, strategyName, symbol string, headerStyle int) error {
	rows := [][]interface{}{
		{"Strategy", strategyName},
		{"Symbol", symbol},
		{"Final Balance", res.FinalBalance},
		{"Total Return %", res.TotalReturn},
		{"Max Drawdown %", res.MaxDrawdown},
		{"Win Rate %", res.WinRate},
		{"Profit Factor", formatRatio(res.ProfitFactor)},
		{"Sharpe", formatRatio(res.Sharpe)},
		{"Sortino", formatRatio(res.Sortino)},
		{"Expectancy", res.Expectancy},
		{"Trades", len(res.Trades)},
	}
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+1)
		if err := fx.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+1, err)
		}
	}
	if err := fx.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(rows)), headerStyle); err != nil {
		return fmt.Errorf("failed to style summary labels: %w", err)
	}
	return nil
}
