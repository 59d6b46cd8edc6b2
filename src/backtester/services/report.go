package services

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/jiaming2012/backtest-engine/src/backtester/models"
	"github.com/jiaming2012/backtest-engine/src/utils"
)

// RenderResult writes a human-readable report of a finished run: the run
// summary, the aggregate metrics and the trade table.
func RenderResult(w io.Writer, result *models.BacktestResult) {
	fmt.Fprintf(w, "Status: %s\n", result.Status)

	if result.ErrorMessage != nil {
		fmt.Fprintf(w, "Error: %s\n", *result.ErrorMessage)
	}

	fmt.Fprintf(w, "Signals: %d total, %d executed (%s)\n", result.TotalSignals, result.SignalsExecuted, utils.FormatPercent(result.ExecutionRate()))

	if len(result.PortfolioHistory) > 0 {
		last := result.PortfolioHistory[len(result.PortfolioHistory)-1]
		fmt.Fprintf(w, "Final equity: %s over %d bars\n", utils.FormatMoney(last.TotalValue), len(result.PortfolioHistory))
	}

	fmt.Fprintln(w)

	if metrics := result.RiskMetrics; metrics != nil {
		renderMetrics(w, metrics)
	}

	if len(result.Trades) > 0 {
		renderTrades(w, result.Trades)
	}
}

func renderMetrics(w io.Writer, metrics *models.RiskMetrics) {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.SetColumnSeparator("")
	table.SetHeader([]string{"Metric", "Value"})

	profitFactor := "no losses"
	if metrics.ProfitFactor != nil {
		profitFactor = fmt.Sprintf("%.2f", *metrics.ProfitFactor)
	}

	rows := [][]string{
		{"Total Return", utils.FormatPercent(metrics.TotalReturn)},
		{"Annualized Return", utils.FormatPercent(metrics.AnnualizedReturn)},
		{"Sharpe Ratio", fmt.Sprintf("%.2f", metrics.SharpeRatio)},
		{"Max Drawdown", utils.FormatPercent(metrics.MaxDrawdown)},
		{"Total Trades", fmt.Sprintf("%d", metrics.TotalTrades)},
		{"Win Rate", utils.FormatPercent(metrics.WinRate)},
		{"Average Win", utils.FormatMoney(metrics.AverageWin)},
		{"Average Loss", utils.FormatMoney(metrics.AverageLoss)},
		{"Profit Factor", profitFactor},
	}

	for _, row := range rows {
		table.Append(row)
	}

	table.Render()
	fmt.Fprintln(w)
}

func renderTrades(w io.Writer, trades []*models.Trade) {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.SetColumnSeparator("")
	table.SetHeader([]string{"Symbol", "Type", "Entry", "Exit", "Qty", "PnL", "Hold Days", "Tag"})

	for _, trade := range trades {
		exit := "open"
		pnl := "-"
		holdDays := "-"

		if !trade.IsOpen() {
			exit = trade.ExitDate.Format("2006-01-02")
			pnl = utils.FormatMoney(trade.Pnl())
			holdDays = fmt.Sprintf("%d", trade.HoldDays())
		}

		table.Append([]string{
			trade.Symbol.String(),
			string(trade.Type),
			trade.EntryDate.Format("2006-01-02"),
			exit,
			fmt.Sprintf("%.2f", trade.Quantity),
			pnl,
			holdDays,
			trade.Tag,
		})
	}

	table.Render()
}
