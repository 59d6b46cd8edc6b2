package models

import (
	"fmt"
	"time"

	"github.com/jiaming2012/backtest-engine/src/eventmodels"
)

type SignalDirection string

const (
	SignalDirectionEnterLong  SignalDirection = "enter_long"
	SignalDirectionEnterShort SignalDirection = "enter_short"
	SignalDirectionExit       SignalDirection = "exit"
)

func (d SignalDirection) Validate() error {
	switch d {
	case SignalDirectionEnterLong, SignalDirectionEnterShort, SignalDirectionExit:
		return nil
	default:
		return fmt.Errorf("unknown signal direction: %s", d)
	}
}

// Signal is a strategy's trading intent at a single bar. Confidence is a
// weight in [0, 1]; the tag records the origin of synthetic exits such as
// stop losses.
type Signal struct {
	Symbol     eventmodels.StockSymbol `json:"symbol"`
	Direction  SignalDirection         `json:"direction"`
	Confidence float64                 `json:"confidence"`
	Timestamp  time.Time               `json:"timestamp"`
	Tag        string                  `json:"tag,omitempty"`
}

func NewSignal(symbol eventmodels.StockSymbol, direction SignalDirection, confidence float64, timestamp time.Time) *Signal {
	return &Signal{
		Symbol:     symbol,
		Direction:  direction,
		Confidence: confidence,
		Timestamp:  timestamp,
	}
}
