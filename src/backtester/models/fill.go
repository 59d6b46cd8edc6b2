package models

import (
	"fmt"
	"time"

	"github.com/jiaming2012/backtest-engine/src/eventmodels"
)

type FillSide string

const (
	FillSideBuy        FillSide = "buy"
	FillSideSell       FillSide = "sell"
	FillSideSellShort  FillSide = "sell_short"
	FillSideBuyToCover FillSide = "buy_to_cover"
)

func (s FillSide) Validate() error {
	switch s {
	case FillSideBuy, FillSideSell, FillSideSellShort, FillSideBuyToCover:
		return nil
	default:
		return fmt.Errorf("unknown fill side: %s", s)
	}
}

// FillRequest is a concrete, already-sized and slippage-adjusted order the
// simulator hands to the ledger. Price is the execution price; Quantity is
// always positive.
type FillRequest struct {
	Symbol     eventmodels.StockSymbol `json:"symbol"`
	Side       FillSide                `json:"side"`
	Quantity   float64                 `json:"quantity"`
	Price      float64                 `json:"price"`
	Commission float64                 `json:"commission"`
	Timestamp  time.Time               `json:"timestamp"`
	Tag        string                  `json:"tag,omitempty"`
}

func (r *FillRequest) Notional() float64 {
	return r.Quantity * r.Price
}

func NewFillRequest(symbol eventmodels.StockSymbol, side FillSide, quantity float64, price float64, commission float64, timestamp time.Time, tag string) *FillRequest {
	return &FillRequest{
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		Price:      price,
		Commission: commission,
		Timestamp:  timestamp,
		Tag:        tag,
	}
}
