package indicators

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/jiaming2012/backtest-engine/src/eventmodels"
)

type MovingAverage struct {
	Period int
	closes []float64
}

// Update feeds one bar into the window. The boolean result is false until
// Period bars have been observed.
func (m *MovingAverage) Update(c eventmodels.ICandle) (bool, float64, error) {
	if len(m.closes) < m.Period-1 {
		m.closes = append(m.closes, c.GetClose())
		return false, 0, nil
	}

	if len(m.closes) < m.Period {
		m.closes = append(m.closes, c.GetClose())
	} else {
		m.closes = append(m.closes[1:], c.GetClose())
	}

	mean, err := stats.Mean(m.closes)
	if err != nil {
		return false, 0, fmt.Errorf("failed to calculate mean: %v", err)
	}

	return true, mean, nil
}

func NewMovingAverage(period int) *MovingAverage {
	return &MovingAverage{
		Period: period,
	}
}
