package models

import (
	"time"

	"github.com/jiaming2012/backtest-engine/src/eventmodels"
)

// Position is the ledger's open exposure in one symbol. Quantity is always
// positive; Type carries the direction. CostBasis is the volume-weighted
// average entry price across fills.
type Position struct {
	Symbol    eventmodels.StockSymbol `json:"symbol"`
	Type      TradeType               `json:"trade_type"`
	Quantity  float64                 `json:"quantity"`
	CostBasis float64                 `json:"cost_basis"`
	OpenDate  time.Time               `json:"open_date"`
}

// MarketValue is the position's contribution to total portfolio value at the
// given price. Short exposure contributes negatively, offsetting the cash
// credited at entry.
func (p *Position) MarketValue(price float64) float64 {
	if p.Type == TradeTypeShort {
		return -p.Quantity * price
	}

	return p.Quantity * price
}

// UnrealizedReturn is the fractional gain against cost basis at the given
// price, before fees.
func (p *Position) UnrealizedReturn(price float64) float64 {
	if p.CostBasis == 0 {
		return 0
	}

	if p.Type == TradeTypeShort {
		return (p.CostBasis - price) / p.CostBasis
	}

	return (price - p.CostBasis) / p.CostBasis
}
