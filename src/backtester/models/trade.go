package models

import (
	"fmt"
	"time"

	"github.com/jiaming2012/backtest-engine/src/eventmodels"
)

type TradeType string

const (
	TradeTypeLong  TradeType = "long"
	TradeTypeShort TradeType = "short"
)

// Trade is one round trip in a single symbol. ExitDate and ExitPrice are nil
// while the trade is open; Fees accumulates the commissions charged on both
// legs.
type Trade struct {
	ID         uint                    `json:"id"`
	Symbol     eventmodels.StockSymbol `json:"symbol"`
	Type       TradeType               `json:"trade_type"`
	EntryDate  time.Time               `json:"entry_date"`
	EntryPrice float64                 `json:"entry_price"`
	Quantity   float64                 `json:"quantity"`
	ExitDate   *time.Time              `json:"exit_date,omitempty"`
	ExitPrice  *float64                `json:"exit_price,omitempty"`
	Fees       float64                 `json:"fees"`
	Tag        string                  `json:"tag,omitempty"`
}

func (t *Trade) IsOpen() bool {
	return t.ExitDate == nil
}

// Close records the exit leg. A trade is closed at most once and never
// before its entry date.
func (t *Trade) Close(exitDate time.Time, exitPrice float64, fee float64) error {
	if !t.IsOpen() {
		return ErrTradeAlreadyClosed
	}

	if exitDate.Before(t.EntryDate) {
		return fmt.Errorf("exit date %s is before entry date %s", exitDate.Format("2006-01-02"), t.EntryDate.Format("2006-01-02"))
	}

	t.ExitDate = &exitDate
	t.ExitPrice = &exitPrice
	t.Fees += fee

	return nil
}

// Pnl is the realized profit of a closed trade, net of fees. It is zero
// while the trade is open.
func (t *Trade) Pnl() float64 {
	if t.IsOpen() {
		return 0
	}

	return t.PnlAt(*t.ExitPrice)
}

// PnlAt values the trade against the given price, net of fees.
func (t *Trade) PnlAt(price float64) float64 {
	switch t.Type {
	case TradeTypeShort:
		return (t.EntryPrice-price)*t.Quantity - t.Fees
	default:
		return (price-t.EntryPrice)*t.Quantity - t.Fees
	}
}

func (t *Trade) PnlPercent() float64 {
	notional := t.EntryPrice * t.Quantity
	if notional == 0 {
		return 0
	}

	return t.Pnl() / notional * 100
}

func (t *Trade) HoldDays() int {
	if t.IsOpen() {
		return 0
	}

	return int(t.ExitDate.Sub(t.EntryDate).Hours() / 24)
}

func NewTrade(id uint, symbol eventmodels.StockSymbol, tradeType TradeType, entryDate time.Time, entryPrice float64, quantity float64, fee float64) *Trade {
	return &Trade{
		ID:         id,
		Symbol:     symbol,
		Type:       tradeType,
		EntryDate:  entryDate,
		EntryPrice: entryPrice,
		Quantity:   quantity,
		Fees:       fee,
	}
}
