package models

import (
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backtest-engine/src/eventmodels"
)

// volumeEpsilon absorbs float drift when a computed close quantity lands a
// hair above the open volume. cashEpsilon does the same for the funds check,
// so a rebalance buy funded by a just-applied sale is not rejected over a
// sub-micro rounding residue.
const (
	volumeEpsilon = 1e-9
	cashEpsilon   = 1e-6
)

// Ledger owns the cash balance, the open positions and the trade history of
// one run. All mutation goes through ApplyFill; MarkToMarket only reads
// positions. The ledger is single-threaded by construction: each run owns
// its own instance.
type Ledger struct {
	initialCapital float64
	cash           float64
	positions      map[eventmodels.StockSymbol]*Position
	openTrades     map[eventmodels.StockSymbol]*Trade
	trades         []*Trade
	snapshots      []*PortfolioSnapshot
	tradeNonce     uint
	config         *BacktestConfig
}

func NewLedger(config *BacktestConfig) *Ledger {
	return &Ledger{
		initialCapital: config.InitialCapital,
		cash:           config.InitialCapital,
		positions:      make(map[eventmodels.StockSymbol]*Position),
		openTrades:     make(map[eventmodels.StockSymbol]*Trade),
		config:         config,
	}
}

func (l *Ledger) Cash() float64 {
	return l.cash
}

func (l *Ledger) InitialCapital() float64 {
	return l.initialCapital
}

func (l *Ledger) GetPosition(symbol eventmodels.StockSymbol) (*Position, bool) {
	position, found := l.positions[symbol]
	return position, found
}

func (l *Ledger) OpenPositionCount() int {
	return len(l.positions)
}

// OpenSymbols returns the symbols with open positions in sorted order, so
// callers iterate deterministically.
func (l *Ledger) OpenSymbols() []eventmodels.StockSymbol {
	symbols := make([]eventmodels.StockSymbol, 0, len(l.positions))
	for symbol := range l.positions {
		symbols = append(symbols, symbol)
	}

	sort.Slice(symbols, func(i, j int) bool {
		return symbols[i] < symbols[j]
	})

	return symbols
}

func (l *Ledger) Trades() []*Trade {
	return l.trades
}

func (l *Ledger) Snapshots() []*PortfolioSnapshot {
	return l.snapshots
}

// TotalValue is cash plus the market value of open positions at the given
// prices. Symbols missing from the price map are valued at cost basis.
func (l *Ledger) TotalValue(prices map[eventmodels.StockSymbol]float64) float64 {
	return l.cash + l.positionsValue(prices)
}

func (l *Ledger) positionsValue(prices map[eventmodels.StockSymbol]float64) float64 {
	value := 0.0
	for symbol, position := range l.positions {
		price, found := prices[symbol]
		if !found {
			log.Warnf("positionsValue: no price for %s, valuing at cost basis", symbol)
			price = position.CostBasis
		}

		value += position.MarketValue(price)
	}

	return value
}

func (l *Ledger) nextTradeID() uint {
	l.tradeNonce++
	return l.tradeNonce
}

// ApplyFill validates the request against the fill rules and mutates the
// ledger atomically: a rejected fill leaves cash and positions untouched.
// The returned trade is the newly opened round trip for entries, the open
// trade for position increases, and the closed round trip for exits and
// partial reductions.
func (l *Ledger) ApplyFill(req *FillRequest) (*Trade, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: got %.4f", ErrInvalidQuantity, req.Quantity)
	}

	if req.Price <= 0 {
		return nil, fmt.Errorf("%w: price %.4f for %s", ErrNoPriceAvailable, req.Price, req.Symbol)
	}

	if err := req.Side.Validate(); err != nil {
		return nil, err
	}

	switch req.Side {
	case FillSideBuy:
		return l.applyEntry(req, TradeTypeLong)
	case FillSideSellShort:
		return l.applyEntry(req, TradeTypeShort)
	case FillSideSell:
		return l.applyExit(req, TradeTypeLong)
	case FillSideBuyToCover:
		return l.applyExit(req, TradeTypeShort)
	}

	return nil, fmt.Errorf("unhandled fill side: %s", req.Side)
}

func (l *Ledger) applyEntry(req *FillRequest, tradeType TradeType) (*Trade, error) {
	notional := req.Notional()

	position, found := l.positions[req.Symbol]
	if found && position.Type != tradeType {
		return nil, fmt.Errorf("%w: %s holds an open %s position", ErrPositionAlreadyOpen, req.Symbol, position.Type)
	}

	if !found && len(l.positions) >= l.config.MaxPositions {
		return nil, fmt.Errorf("%w: %d open", ErrMaxPositionsReached, len(l.positions))
	}

	if notional < l.config.MinPositionSize {
		return nil, fmt.Errorf("%w: %.2f < %.2f", ErrBelowMinPositionSize, notional, l.config.MinPositionSize)
	}

	// Entries are fully collateralized: the notional must be covered by cash
	// on hand for longs and shorts alike.
	if notional+req.Commission > l.cash+cashEpsilon {
		return nil, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientFunds, notional+req.Commission, l.cash)
	}

	if tradeType == TradeTypeShort {
		l.cash += notional - req.Commission
	} else {
		l.cash -= notional + req.Commission
		if l.cash < 0 {
			l.cash = 0
		}
	}

	if found {
		totalQuantity := position.Quantity + req.Quantity
		position.CostBasis = (position.CostBasis*position.Quantity + req.Price*req.Quantity) / totalQuantity
		position.Quantity = totalQuantity

		trade := l.openTrades[req.Symbol]
		trade.EntryPrice = position.CostBasis
		trade.Quantity = totalQuantity
		trade.Fees += req.Commission

		return trade, nil
	}

	l.positions[req.Symbol] = &Position{
		Symbol:    req.Symbol,
		Type:      tradeType,
		Quantity:  req.Quantity,
		CostBasis: req.Price,
		OpenDate:  req.Timestamp,
	}

	trade := NewTrade(l.nextTradeID(), req.Symbol, tradeType, req.Timestamp, req.Price, req.Quantity, req.Commission)
	trade.Tag = req.Tag
	l.openTrades[req.Symbol] = trade
	l.trades = append(l.trades, trade)

	return trade, nil
}

func (l *Ledger) applyExit(req *FillRequest, tradeType TradeType) (*Trade, error) {
	position, found := l.positions[req.Symbol]
	if !found || position.Type != tradeType {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, req.Symbol)
	}

	quantity := req.Quantity
	if quantity > position.Quantity {
		if quantity > position.Quantity+volumeEpsilon {
			return nil, fmt.Errorf("%w: %.4f > %.4f", ErrInvalidVolume, quantity, position.Quantity)
		}

		quantity = position.Quantity
	}

	notional := quantity * req.Price

	if tradeType == TradeTypeShort {
		if notional+req.Commission > l.cash+cashEpsilon {
			return nil, fmt.Errorf("%w: need %.2f to cover, have %.2f", ErrInsufficientFunds, notional+req.Commission, l.cash)
		}

		l.cash -= notional + req.Commission
		if l.cash < 0 {
			l.cash = 0
		}
	} else {
		l.cash += notional - req.Commission
	}

	if position.Quantity-quantity <= volumeEpsilon {
		// full close
		delete(l.positions, req.Symbol)

		trade := l.openTrades[req.Symbol]
		delete(l.openTrades, req.Symbol)

		if err := trade.Close(req.Timestamp, req.Price, req.Commission); err != nil {
			return nil, fmt.Errorf("error closing trade %d: %w", trade.ID, err)
		}

		if req.Tag != "" {
			trade.Tag = req.Tag
		}

		return trade, nil
	}

	// partial close: split off a closed round trip carrying the realized leg
	position.Quantity -= quantity

	openTrade := l.openTrades[req.Symbol]
	openTrade.Quantity = position.Quantity

	closed := NewTrade(l.nextTradeID(), req.Symbol, tradeType, position.OpenDate, position.CostBasis, quantity, 0)
	closed.Tag = req.Tag
	if err := closed.Close(req.Timestamp, req.Price, req.Commission); err != nil {
		return nil, fmt.Errorf("error closing partial trade %d: %w", closed.ID, err)
	}

	l.trades = append(l.trades, closed)

	return closed, nil
}

// MarkToMarket produces the bar's snapshot after all fills for the bar are
// applied. It never mutates positions.
func (l *Ledger) MarkToMarket(date time.Time, prices map[eventmodels.StockSymbol]float64) *PortfolioSnapshot {
	positionsValue := l.positionsValue(prices)
	totalValue := l.cash + positionsValue

	previousTotal := l.initialCapital
	if len(l.snapshots) > 0 {
		previousTotal = l.snapshots[len(l.snapshots)-1].TotalValue
	}

	dailyReturn := 0.0
	if previousTotal != 0 {
		dailyReturn = totalValue/previousTotal - 1.0
	}

	cumulativeReturn := 0.0
	if l.initialCapital != 0 {
		cumulativeReturn = totalValue/l.initialCapital - 1.0
	}

	snapshot := &PortfolioSnapshot{
		Date:             date,
		Cash:             l.cash,
		PositionsValue:   positionsValue,
		TotalValue:       totalValue,
		DailyReturn:      dailyReturn,
		CumulativeReturn: cumulativeReturn,
	}

	l.snapshots = append(l.snapshots, snapshot)

	return snapshot
}
