package eventmodels

import (
	"time"
)

type ICandle interface {
	GetTimestamp() time.Time
	GetOpen() float64
	GetHigh() float64
	GetLow() float64
	GetClose() float64
	GetVolume() float64
}

// Bar is one aggregate period of market data. The engine treats bars as
// immutable once a series is constructed.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

func (b *Bar) GetTimestamp() time.Time {
	return b.Timestamp
}

func (b *Bar) GetOpen() float64 {
	return b.Open
}

func (b *Bar) GetHigh() float64 {
	return b.High
}

func (b *Bar) GetLow() float64 {
	return b.Low
}

func (b *Bar) GetClose() float64 {
	return b.Close
}

func (b *Bar) GetVolume() float64 {
	return b.Volume
}
