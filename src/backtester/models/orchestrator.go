package models

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Orchestrator drives one run's time loop: per bar it queries the strategy,
// sweeps exit rules, applies scheduled rebalancing, executes the remaining
// signals and records a snapshot. The loop is strictly single threaded and
// deterministic; bar n+1 is never touched before bar n's snapshot is
// finalized.
type Orchestrator struct {
	config     *BacktestConfig
	feed       *DataFeed
	strategy   Strategy
	ledger     *Ledger
	simulator  *ExecutionSimulator
	result     *BacktestResult
	onSnapshot func(*PortfolioSnapshot)
}

func NewOrchestrator(config *BacktestConfig, feed *DataFeed, strategy Strategy) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if feed == nil {
		return nil, fmt.Errorf("data feed is required")
	}

	if strategy == nil {
		return nil, fmt.Errorf("strategy is required")
	}

	return &Orchestrator{
		config:    config,
		feed:      feed,
		strategy:  strategy,
		ledger:    NewLedger(config),
		simulator: NewExecutionSimulator(config),
		result:    NewBacktestResult(),
	}, nil
}

// SetSnapshotCallback registers a hook invoked after each bar's snapshot is
// recorded, for live progress consumers.
func (o *Orchestrator) SetSnapshotCallback(fn func(*PortfolioSnapshot)) {
	o.onSnapshot = fn
}

func (o *Orchestrator) Result() *BacktestResult {
	return o.result
}

func (o *Orchestrator) Ledger() *Ledger {
	return o.ledger
}

// Run replays the configured window bar by bar. The returned result is
// always o.Result(); a non-nil error means the run finished failed, with
// the partial history preserved. Cancellation is honored between bars only.
func (o *Orchestrator) Run(ctx context.Context) (result *BacktestResult, err error) {
	result = o.result
	o.result.StartTime = time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during run: %v", r)
			o.fail(err)
		}
	}()

	timeline := o.feed.Timeline(o.config.StartDate, o.config.EndDate)

	o.result.Status = RunStatusRunning

	if len(timeline) == 0 {
		err = ErrNoTradableData
		o.fail(err)
		return
	}

	log.Infof("starting backtest: strategy=%s bars=%d window=%s..%s", o.strategy.Name(), len(timeline), o.config.StartDate.Format("2006-01-02"), o.config.EndDate.Format("2006-01-02"))

	var lastRebalance time.Time

	for _, barTime := range timeline {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ErrRunCanceled, ctxErr)
			o.fail(err)
			return
		}

		view := NewMarketView(o.feed, barTime, o.config.LookbackPeriod)

		signals, strategyErr := o.strategy.OnBar(view, o.ledger)
		if strategyErr != nil {
			err = fmt.Errorf("strategy %s: %w", o.strategy.Name(), strategyErr)
			o.fail(err)
			return
		}

		o.result.TotalSignals += len(signals)

		// exit rules fire ahead of the strategy's own signals
		for _, exitSignal := range o.simulator.CheckExitRules(view, o.ledger) {
			request := o.simulator.Execute(exitSignal, view, o.ledger)
			if request == nil {
				continue
			}

			if _, fillErr := o.applyFill(request); fillErr != nil {
				err = fillErr
				o.fail(err)
				return
			}
		}

		if IsRebalanceDue(barTime, lastRebalance, o.config.RebalanceFrequency) {
			for _, request := range o.simulator.RebalancePass(view, o.ledger) {
				if _, fillErr := o.applyFill(request); fillErr != nil {
					err = fillErr
					o.fail(err)
					return
				}
			}

			lastRebalance = barTime
		}

		for _, signal := range signals {
			request := o.simulator.Execute(signal, view, o.ledger)
			if request == nil {
				continue
			}

			filled, fillErr := o.applyFill(request)
			if fillErr != nil {
				err = fillErr
				o.fail(err)
				return
			}

			if filled {
				o.result.SignalsExecuted++
			}
		}

		snapshot := o.ledger.MarkToMarket(barTime, view.LastKnownPrices(o.ledger.OpenSymbols()))

		o.result.Trades = o.ledger.Trades()
		o.result.PortfolioHistory = o.ledger.Snapshots()

		if o.onSnapshot != nil {
			o.onSnapshot(snapshot)
		}
	}

	metrics, metricsErr := ComputeRiskMetrics(o.ledger.Trades(), o.ledger.Snapshots(), o.config)
	if metricsErr != nil {
		err = metricsErr
		o.fail(err)
		return
	}

	o.result.RiskMetrics = metrics
	o.result.Status = RunStatusCompleted
	endTime := time.Now()
	o.result.EndTime = &endTime

	log.Infof("backtest completed: signals=%d executed=%d trades=%d snapshots=%d", o.result.TotalSignals, o.result.SignalsExecuted, len(o.result.Trades), len(o.result.PortfolioHistory))

	return o.result, nil
}

// applyFill routes a request through the ledger. Execution-rule rejections
// skip the fill; any other error is fatal to the run.
func (o *Orchestrator) applyFill(request *FillRequest) (bool, error) {
	_, err := o.ledger.ApplyFill(request)
	if err != nil {
		if IsFillRejection(err) {
			log.Debugf("fill rejected: %s %s: %v", request.Side, request.Symbol, err)
			return false, nil
		}

		return false, fmt.Errorf("error applying fill: %w", err)
	}

	return true, nil
}

func (o *Orchestrator) fail(err error) {
	if o.result.Status.IsTerminal() {
		return
	}

	message := err.Error()
	o.result.ErrorMessage = &message
	o.result.Status = RunStatusFailed
	endTime := time.Now()
	o.result.EndTime = &endTime

	o.result.Trades = o.ledger.Trades()
	o.result.PortfolioHistory = o.ledger.Snapshots()

	log.Errorf("backtest failed: %v", err)
}
