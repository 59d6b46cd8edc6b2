package strategy

import (
	"fmt"

	"github.com/jiaming2012/backtest-engine/src/backtester/models"
	"github.com/jiaming2012/backtest-engine/src/eventmodels"
	"github.com/jiaming2012/backtest-engine/src/indicators"
)

// SmaCrossover goes long when the fast moving average crosses above the slow
// one and exits on the cross back down. Both averages are recomputed from the
// view's history each bar, so signals depend only on data at or before the
// current bar.
type SmaCrossover struct {
	fastPeriod int
	slowPeriod int
}

func NewSmaCrossover(fastPeriod, slowPeriod int) (*SmaCrossover, error) {
	if fastPeriod <= 1 {
		return nil, fmt.Errorf("fast period must be greater than 1, got %d", fastPeriod)
	}

	if slowPeriod <= fastPeriod {
		return nil, fmt.Errorf("slow period %d must exceed fast period %d", slowPeriod, fastPeriod)
	}

	return &SmaCrossover{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}, nil
}

func NewSmaCrossoverFromParams(params map[string]interface{}) (models.Strategy, error) {
	fastPeriod, err := intParam(params, "fast_period", 10)
	if err != nil {
		return nil, err
	}

	slowPeriod, err := intParam(params, "slow_period", 30)
	if err != nil {
		return nil, err
	}

	return NewSmaCrossover(fastPeriod, slowPeriod)
}

func (s *SmaCrossover) Name() string {
	return "sma_crossover"
}

func (s *SmaCrossover) OnBar(view *models.MarketView, ledger *models.Ledger) ([]*models.Signal, error) {
	var signals []*models.Signal

	for _, symbol := range view.Symbols() {
		if view.CurrentBar(symbol) == nil {
			continue
		}

		history := view.History(symbol)
		if len(history) < s.slowPeriod+1 {
			continue
		}

		prevFast, currFast, ok, err := averages(history, s.fastPeriod)
		if err != nil {
			return nil, fmt.Errorf("%s: fast average: %w", symbol, err)
		}
		if !ok {
			continue
		}

		prevSlow, currSlow, ok, err := averages(history, s.slowPeriod)
		if err != nil {
			return nil, fmt.Errorf("%s: slow average: %w", symbol, err)
		}
		if !ok {
			continue
		}

		_, held := ledger.GetPosition(symbol)

		if !held && prevFast <= prevSlow && currFast > currSlow {
			signals = append(signals, models.NewSignal(symbol, models.SignalDirectionEnterLong, 1.0, view.CurrentTime()))
		}

		if held && prevFast >= prevSlow && currFast < currSlow {
			signals = append(signals, models.NewSignal(symbol, models.SignalDirectionExit, 1.0, view.CurrentTime()))
		}
	}

	return signals, nil
}

// averages returns the moving average at the previous and the current bar of
// the history. ok is false while the window is still warming up.
func averages(history []*eventmodels.Bar, period int) (prev float64, curr float64, ok bool, err error) {
	ma := indicators.NewMovingAverage(period)

	var prevReady, currReady bool
	for i, bar := range history {
		ready, value, updateErr := ma.Update(bar)
		if updateErr != nil {
			return 0, 0, false, updateErr
		}

		if i == len(history)-1 {
			curr, currReady = value, ready
		} else {
			prev, prevReady = value, ready
		}
	}

	return prev, curr, prevReady && currReady, nil
}
