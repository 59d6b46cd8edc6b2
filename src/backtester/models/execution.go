package models

import (
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backtest-engine/src/eventmodels"
	"github.com/jiaming2012/backtest-engine/src/indicators"
)

const (
	volatilityWindow        = 20
	targetAnnualVolatility  = 0.15
	minVolatilityMultiplier = 0.25
	maxVolatilityMultiplier = 2.0
)

const (
	TagStopLoss   = "stop_loss"
	TagTakeProfit = "take_profit"
	TagRebalance  = "rebalance"
)

// ExecutionSimulator converts signals into concrete fill requests: it
// resolves quantity via the configured sizing method, moves the execution
// price adversely by the slippage rate, and attaches the flat commission.
// It holds no per-bar state; sizing reads only the market view and the
// ledger.
type ExecutionSimulator struct {
	config *BacktestConfig
}

func NewExecutionSimulator(config *BacktestConfig) *ExecutionSimulator {
	return &ExecutionSimulator{
		config: config,
	}
}

// adjustedPrice applies slippage in the adverse direction: buys fill higher,
// sells fill lower.
func (s *ExecutionSimulator) adjustedPrice(price float64, side FillSide) float64 {
	rate := s.config.SlippagePercent / 100.0

	switch side {
	case FillSideBuy, FillSideBuyToCover:
		return price * (1.0 + rate)
	default:
		return price * (1.0 - rate)
	}
}

// markPrices returns last known prices for all open positions, for valuing
// the portfolio during sizing.
func (s *ExecutionSimulator) markPrices(view *MarketView, ledger *Ledger) map[eventmodels.StockSymbol]float64 {
	return view.LastKnownPrices(ledger.OpenSymbols())
}

// volatilityMultiplier scales an allocation inversely with the symbol's
// trailing annualized volatility, clamped so a quiet series cannot blow up
// the position. Returns 1 until enough history exists.
func (s *ExecutionSimulator) volatilityMultiplier(view *MarketView, symbol eventmodels.StockSymbol) float64 {
	history := view.History(symbol)

	vol := indicators.NewVolatility(volatilityWindow)

	var ready bool
	var annualized float64
	for _, bar := range history {
		ok, value, err := vol.Update(bar)
		if err != nil {
			log.Warnf("volatilityMultiplier: %s: %v", symbol, err)
			return 1.0
		}

		ready = ok
		annualized = value
	}

	if !ready {
		return 1.0
	}

	if annualized <= 0 {
		return maxVolatilityMultiplier
	}

	return clamp(targetAnnualVolatility/annualized, minVolatilityMultiplier, maxVolatilityMultiplier)
}

// allocation resolves the target notional for one position under the
// configured sizing method.
func (s *ExecutionSimulator) allocation(view *MarketView, ledger *Ledger, symbol eventmodels.StockSymbol) float64 {
	totalValue := ledger.TotalValue(s.markPrices(view, ledger))

	switch s.config.PositionSizing {
	case PositionSizingFixedFraction:
		return totalValue * s.config.FixedFraction
	case PositionSizingVolatilityAdjusted:
		base := totalValue / float64(s.config.MaxPositions)
		return base * s.volatilityMultiplier(view, symbol)
	default:
		return totalValue / float64(s.config.MaxPositions)
	}
}

// Execute turns one signal into a fill request, or nil when the signal is
// dropped under the execution rules: no bar for the symbol this period, the
// symbol already holds a position (entries), the position count is at its
// limit, or the sized order falls below the minimum position size. Dropped
// signals count toward total signals but never execute.
func (s *ExecutionSimulator) Execute(signal *Signal, view *MarketView, ledger *Ledger) *FillRequest {
	if signal.Direction == SignalDirectionExit {
		return s.executeExit(signal, view, ledger)
	}

	return s.executeEntry(signal, view, ledger)
}

func (s *ExecutionSimulator) executeExit(signal *Signal, view *MarketView, ledger *Ledger) *FillRequest {
	position, found := ledger.GetPosition(signal.Symbol)
	if !found {
		log.Debugf("executeExit: no open position for %s, dropping signal", signal.Symbol)
		return nil
	}

	bar := view.CurrentBar(signal.Symbol)
	if bar == nil {
		log.Debugf("executeExit: no bar for %s at %s, dropping signal", signal.Symbol, view.CurrentTime().Format("2006-01-02"))
		return nil
	}

	side := FillSideSell
	if position.Type == TradeTypeShort {
		side = FillSideBuyToCover
	}

	price := s.adjustedPrice(bar.Close, side)

	return NewFillRequest(signal.Symbol, side, position.Quantity, price, s.config.CommissionPerTrade, view.CurrentTime(), signal.Tag)
}

func (s *ExecutionSimulator) executeEntry(signal *Signal, view *MarketView, ledger *Ledger) *FillRequest {
	if _, found := ledger.GetPosition(signal.Symbol); found {
		log.Debugf("executeEntry: %s already holds a position, dropping signal", signal.Symbol)
		return nil
	}

	if ledger.OpenPositionCount() >= s.config.MaxPositions {
		log.Debugf("executeEntry: position limit %d reached, dropping signal for %s", s.config.MaxPositions, signal.Symbol)
		return nil
	}

	bar := view.CurrentBar(signal.Symbol)
	if bar == nil {
		log.Debugf("executeEntry: no bar for %s at %s, dropping signal", signal.Symbol, view.CurrentTime().Format("2006-01-02"))
		return nil
	}

	side := FillSideBuy
	if signal.Direction == SignalDirectionEnterShort {
		side = FillSideSellShort
	}

	price := s.adjustedPrice(bar.Close, side)

	notional := s.allocation(view, ledger, signal.Symbol)
	if signal.Confidence > 0 && signal.Confidence < 1 {
		notional *= signal.Confidence
	}

	// an allocation can exceed free cash once other positions are open
	available := ledger.Cash() - s.config.CommissionPerTrade
	if notional > available {
		notional = available
	}

	if notional <= 0 {
		log.Debugf("executeEntry: no cash available for %s, dropping signal", signal.Symbol)
		return nil
	}

	if notional < s.config.MinPositionSize {
		log.Debugf("executeEntry: %s sized %.2f below minimum %.2f, dropping signal", signal.Symbol, notional, s.config.MinPositionSize)
		return nil
	}

	quantity := notional / price

	return NewFillRequest(signal.Symbol, side, quantity, price, s.config.CommissionPerTrade, view.CurrentTime(), signal.Tag)
}

// CheckExitRules sweeps every open position against the stop-loss and
// take-profit thresholds at the current bar and returns synthetic exit
// signals. The sweep runs before strategy signals each bar; a stop fires
// ahead of a take profit when both trigger.
func (s *ExecutionSimulator) CheckExitRules(view *MarketView, ledger *Ledger) []*Signal {
	if !s.config.EnableStopLoss && !s.config.EnableTakeProfit {
		return nil
	}

	var signals []*Signal

	for _, symbol := range ledger.OpenSymbols() {
		position, _ := ledger.GetPosition(symbol)

		bar := view.CurrentBar(symbol)
		if bar == nil {
			continue
		}

		ret := position.UnrealizedReturn(bar.Close)

		if s.config.EnableStopLoss && ret <= -s.config.StopLossPercent/100.0 {
			signal := NewSignal(symbol, SignalDirectionExit, 1.0, view.CurrentTime())
			signal.Tag = TagStopLoss
			signals = append(signals, signal)
			continue
		}

		if s.config.EnableTakeProfit && ret >= s.config.TakeProfitPercent/100.0 {
			signal := NewSignal(symbol, SignalDirectionExit, 1.0, view.CurrentTime())
			signal.Tag = TagTakeProfit
			signals = append(signals, signal)
		}
	}

	return signals
}

// RebalancePass re-sizes every open position back to its target allocation
// and returns the adjustment fills, reductions first so their proceeds fund
// the increases. Adjustments smaller than the minimum position size are
// tolerated as drift.
func (s *ExecutionSimulator) RebalancePass(view *MarketView, ledger *Ledger) []*FillRequest {
	var reductions []*FillRequest
	var increases []*FillRequest

	for _, symbol := range ledger.OpenSymbols() {
		position, _ := ledger.GetPosition(symbol)

		bar := view.CurrentBar(symbol)
		if bar == nil {
			continue
		}

		target := s.allocation(view, ledger, symbol)
		current := position.Quantity * bar.Close
		delta := target - current

		if delta > -s.config.MinPositionSize && delta < s.config.MinPositionSize {
			continue
		}

		var side FillSide
		if position.Type == TradeTypeShort {
			if delta > 0 {
				side = FillSideSellShort
			} else {
				side = FillSideBuyToCover
			}
		} else {
			if delta > 0 {
				side = FillSideBuy
			} else {
				side = FillSideSell
			}
		}

		quantity := delta / bar.Close
		if quantity < 0 {
			quantity = -quantity
		}

		if side == FillSideSell || side == FillSideBuyToCover {
			if quantity > position.Quantity {
				quantity = position.Quantity
			}
		}

		if quantity <= 0 {
			continue
		}

		price := s.adjustedPrice(bar.Close, side)
		request := NewFillRequest(symbol, side, quantity, price, s.config.CommissionPerTrade, view.CurrentTime(), TagRebalance)

		if side == FillSideSell || side == FillSideBuyToCover {
			reductions = append(reductions, request)
		} else {
			increases = append(increases, request)
		}
	}

	return append(reductions, increases...)
}

func clamp(value, lower, upper float64) float64 {
	if value < lower {
		return lower
	}

	if value > upper {
		return upper
	}

	return value
}
