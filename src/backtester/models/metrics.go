package models

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
)

const annualizationFactor = 252.0

// RiskMetrics is a pure function of the finished trade and snapshot history,
// computed once when a run reaches its terminal state. ProfitFactor is nil
// when no closed trade lost money.
type RiskMetrics struct {
	TotalReturn      float64  `json:"total_return"`
	AnnualizedReturn float64  `json:"annualized_return"`
	SharpeRatio      float64  `json:"sharpe_ratio"`
	MaxDrawdown      float64  `json:"max_drawdown"`
	TotalTrades      int      `json:"total_trades"`
	WinningTrades    int      `json:"winning_trades"`
	LosingTrades     int      `json:"losing_trades"`
	WinRate          float64  `json:"win_rate"`
	AverageWin       float64  `json:"average_win"`
	AverageLoss      float64  `json:"average_loss"`
	ProfitFactor     *float64 `json:"profit_factor,omitempty"`
}

// ComputeRiskMetrics derives the aggregate metrics from the completed
// history. Calling it twice on the same inputs yields identical results; it
// mutates nothing.
func ComputeRiskMetrics(trades []*Trade, snapshots []*PortfolioSnapshot, config *BacktestConfig) (*RiskMetrics, error) {
	metrics := &RiskMetrics{}

	if len(snapshots) > 0 {
		first := snapshots[0]
		last := snapshots[len(snapshots)-1]

		if first.TotalValue != 0 {
			metrics.TotalReturn = last.TotalValue/first.TotalValue - 1.0
		}

		metrics.AnnualizedReturn = annualizeReturn(metrics.TotalReturn, first.Date, last.Date)

		sharpe, err := sharpeRatio(snapshots)
		if err != nil {
			return nil, fmt.Errorf("error computing sharpe ratio: %w", err)
		}
		metrics.SharpeRatio = sharpe

		metrics.MaxDrawdown = maxDrawdown(snapshots)
	}

	var sumWins, sumLosses float64

	for _, trade := range trades {
		if trade.IsOpen() {
			continue
		}

		metrics.TotalTrades++

		pnl := trade.Pnl()
		if pnl > 0 {
			metrics.WinningTrades++
			sumWins += pnl
		} else if pnl < 0 {
			metrics.LosingTrades++
			sumLosses += pnl
		}
	}

	if metrics.TotalTrades > 0 {
		metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
	}

	if metrics.WinningTrades > 0 {
		metrics.AverageWin = sumWins / float64(metrics.WinningTrades)
	}

	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = sumLosses / float64(metrics.LosingTrades)

		profitFactor := sumWins / math.Abs(sumLosses)
		metrics.ProfitFactor = &profitFactor
	}

	return metrics, nil
}

// annualizeReturn converts a total return into a yearly rate using calendar
// days, independent of any market-calendar assumption.
func annualizeReturn(totalReturn float64, first, last time.Time) float64 {
	days := last.Sub(first).Hours() / 24.0
	if days <= 0 {
		return 0
	}

	base := 1.0 + totalReturn
	if base <= 0 {
		return -1.0
	}

	return math.Pow(base, 365.0/days) - 1.0
}

// sharpeRatio is mean over standard deviation of bar-to-bar returns, scaled
// by the square root of the trading year. Fewer than two returns, or a zero
// standard deviation, yields 0 rather than an error.
func sharpeRatio(snapshots []*PortfolioSnapshot) (float64, error) {
	if len(snapshots) < 3 {
		return 0, nil
	}

	returns := make([]float64, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		previous := snapshots[i-1].TotalValue
		if previous == 0 {
			continue
		}

		returns = append(returns, snapshots[i].TotalValue/previous-1.0)
	}

	if len(returns) < 2 {
		return 0, nil
	}

	mean, err := stats.Mean(returns)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate mean: %v", err)
	}

	sd, err := stats.StandardDeviation(returns)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate the standard deviation: %v", err)
	}

	if sd == 0 {
		return 0, nil
	}

	return mean / sd * math.Sqrt(annualizationFactor), nil
}

// maxDrawdown is the largest fractional decline from the running peak of
// total value, reported as a positive number.
func maxDrawdown(snapshots []*PortfolioSnapshot) float64 {
	peak := snapshots[0].TotalValue
	maxDecline := 0.0

	for _, snapshot := range snapshots {
		if snapshot.TotalValue > peak {
			peak = snapshot.TotalValue
		}

		if peak <= 0 {
			continue
		}

		decline := (peak - snapshot.TotalValue) / peak
		if decline > maxDecline {
			maxDecline = decline
		}
	}

	return maxDecline
}
