// Package reporting renders backtest results and session trade summaries
// to the console and to Excel workbooks.
package reporting

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/gorkemacar/signalbot/internal/backtest"
	"github.com/gorkemacar/signalbot/internal/position"
)

// PrintBacktestResults renders the replay summary as a rounded table.
func PrintBacktestResults(out io.Writer, strategyName, symbol string, res *backtest.Results) {
	if out == nil {
		out = os.Stdout
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("BACKTEST RESULTS: %s / %s", strategyName, symbol)
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"💰 Final Balance", fmt.Sprintf("$%.2f", res.FinalBalance)},
		{"📈 Total Return", fmt.Sprintf("%.2f%%", res.TotalReturn)},
		{"📉 Max Drawdown", fmt.Sprintf("%.2f%%", res.MaxDrawdown)},
		{"✅ Win Rate", fmt.Sprintf("%.1f%%", res.WinRate)},
		{"💹 Profit Factor", formatRatio(res.ProfitFactor)},
		{"📊 Sharpe", formatRatio(res.Sharpe)},
		{"📊 Sortino", formatRatio(res.Sortino)},
		{"🎯 Expectancy", fmt.Sprintf("$%.4f", res.Expectancy)},
		{"🔄 Trades", fmt.Sprintf("%d", len(res.Trades))},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 14, Align: text.AlignRight},
	})

	t.Render()
	fmt.Fprintln(out)
}

// PrintSessionTrades renders the positions a live session closed.
func PrintSessionTrades(out io.Writer, trades []*position.Position) {
	if out == nil {
		out = os.Stdout
	}
	if len(trades) == 0 {
		fmt.Fprintln(out, "No trades this session.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("SESSION TRADES")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Strategy", "Side", "Qty", "Entry", "Exit", "Reason", "PnL"})

	total := 0.0
	for _, p := range trades {
		total += p.RealizedPnL()
		t.AppendRow(table.Row{
			p.Symbol,
			p.StrategyID,
			p.Side.String(),
			fmt.Sprintf("%.6f", p.Qty),
			fmt.Sprintf("%.4f", p.Entry),
			fmt.Sprintf("%.4f", p.ExitPrice),
			string(p.ExitReason),
			fmt.Sprintf("$%.4f", p.RealizedPnL()),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "Total", fmt.Sprintf("$%.4f", total)})

	t.Render()
	fmt.Fprintln(out)
}

func formatRatio(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
