package indicators

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/jiaming2012/backtest-engine/src/eventmodels"
)

const tradingDaysPerYear = 252.0

// Volatility tracks the annualized standard deviation of single-bar returns
// over a trailing window.
type Volatility struct {
	Period    int
	prevClose *float64
	returns   []float64
}

// Update feeds one bar into the window. The boolean result is false until
// Period returns have been observed. A zero or negative previous close ends
// the warmup without producing a return.
func (v *Volatility) Update(c eventmodels.ICandle) (bool, float64, error) {
	closePrice := c.GetClose()

	if v.prevClose == nil || *v.prevClose <= 0 {
		v.prevClose = &closePrice
		return false, 0, nil
	}

	ret := closePrice/(*v.prevClose) - 1.0
	v.prevClose = &closePrice

	if len(v.returns) < v.Period {
		v.returns = append(v.returns, ret)
	} else {
		v.returns = append(v.returns[1:], ret)
	}

	if len(v.returns) < v.Period {
		return false, 0, nil
	}

	sd, err := stats.StandardDeviation(v.returns)
	if err != nil {
		return false, 0, fmt.Errorf("failed to calculate the standard deviation: %v", err)
	}

	return true, sd * math.Sqrt(tradingDaysPerYear), nil
}

func NewVolatility(period int) *Volatility {
	return &Volatility{
		Period: period,
	}
}
