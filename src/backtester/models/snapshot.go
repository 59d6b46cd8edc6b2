package models

import "time"

// PortfolioSnapshot is the portfolio's valuation at the close of one bar.
// Snapshots are append-only; the ledger produces exactly one per simulated
// bar after that bar's fills are applied.
type PortfolioSnapshot struct {
	Date             time.Time `json:"date"`
	Cash             float64   `json:"cash"`
	PositionsValue   float64   `json:"positions_value"`
	TotalValue       float64   `json:"total_value"`
	DailyReturn      float64   `json:"daily_return"`
	CumulativeReturn float64   `json:"cumulative_return"`
}
