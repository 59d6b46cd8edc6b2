package models

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientFunds    = fmt.Errorf("insufficient funds")
	ErrBelowMinPositionSize = fmt.Errorf("position size below minimum")
	ErrMaxPositionsReached  = fmt.Errorf("max positions reached")
	ErrNoPriceAvailable     = fmt.Errorf("no price available")
	ErrPositionNotFound     = fmt.Errorf("no open position for symbol")
	ErrPositionAlreadyOpen  = fmt.Errorf("position already open for symbol")
	ErrInvalidQuantity      = fmt.Errorf("invalid quantity: must be positive")
	ErrInvalidVolume        = fmt.Errorf("invalid volume: cannot close more than open volume")
	ErrTradeAlreadyClosed   = fmt.Errorf("trade is already closed")
	ErrRunCanceled          = fmt.Errorf("run canceled")
	ErrNoTradableData       = fmt.Errorf("no tradable data in window")
)

var fillRejections = []error{
	ErrInsufficientFunds,
	ErrBelowMinPositionSize,
	ErrMaxPositionsReached,
	ErrPositionNotFound,
	ErrPositionAlreadyOpen,
	ErrInvalidQuantity,
	ErrInvalidVolume,
	ErrNoPriceAvailable,
}

// IsFillRejection reports whether err is an execution-rule violation. Such
// rejections skip the fill without aborting the run.
func IsFillRejection(err error) bool {
	for _, rejection := range fillRejections {
		if errors.Is(err, rejection) {
			return true
		}
	}

	return false
}
