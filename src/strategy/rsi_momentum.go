package strategy

import (
	"fmt"

	"github.com/jiaming2012/backtest-engine/src/backtester/models"
	"github.com/jiaming2012/backtest-engine/src/indicators"
)

// RsiMomentum buys symbols whose RSI falls below the oversold threshold and
// exits once it rises above the overbought threshold. Entry confidence grows
// as the RSI sinks further below the threshold.
type RsiMomentum struct {
	period     int
	oversold   float64
	overbought float64
}

func NewRsiMomentum(period int, oversold, overbought float64) (*RsiMomentum, error) {
	if period <= 1 {
		return nil, fmt.Errorf("rsi period must be greater than 1, got %d", period)
	}

	if oversold <= 0 || overbought >= 100 || oversold >= overbought {
		return nil, fmt.Errorf("thresholds must satisfy 0 < oversold < overbought < 100, got %.1f and %.1f", oversold, overbought)
	}

	return &RsiMomentum{
		period:     period,
		oversold:   oversold,
		overbought: overbought,
	}, nil
}

func NewRsiMomentumFromParams(params map[string]interface{}) (models.Strategy, error) {
	period, err := intParam(params, "period", 14)
	if err != nil {
		return nil, err
	}

	oversold, err := floatParam(params, "oversold", 30)
	if err != nil {
		return nil, err
	}

	overbought, err := floatParam(params, "overbought", 70)
	if err != nil {
		return nil, err
	}

	return NewRsiMomentum(period, oversold, overbought)
}

func (s *RsiMomentum) Name() string {
	return "rsi_momentum"
}

func (s *RsiMomentum) OnBar(view *models.MarketView, ledger *models.Ledger) ([]*models.Signal, error) {
	var signals []*models.Signal

	for _, symbol := range view.Symbols() {
		if view.CurrentBar(symbol) == nil {
			continue
		}

		history := view.History(symbol)
		if len(history) < s.period+1 {
			continue
		}

		rsi := indicators.NewRsi(s.period)

		var value float64
		for _, bar := range history {
			value = rsi.Update(bar)
		}

		_, held := ledger.GetPosition(symbol)

		if !held && value <= s.oversold {
			confidence := clampConfidence(1.0 - value/100.0)
			signals = append(signals, models.NewSignal(symbol, models.SignalDirectionEnterLong, confidence, view.CurrentTime()))
		}

		if held && value >= s.overbought {
			signals = append(signals, models.NewSignal(symbol, models.SignalDirectionExit, 1.0, view.CurrentTime()))
		}
	}

	return signals, nil
}

func clampConfidence(value float64) float64 {
	if value < 0 {
		return 0
	}

	if value > 1 {
		return 1
	}

	return value
}
