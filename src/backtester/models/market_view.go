package models

import (
	"fmt"
	"time"

	"github.com/jiaming2012/backtest-engine/src/eventmodels"
)

// MarketView is the strategy's window onto the feed at one bar: price
// history truncated at the current bar and capped at the configured
// lookback, plus any auxiliary sentiment series. Future bars are not
// reachable through a view.
type MarketView struct {
	feed     *DataFeed
	current  time.Time
	lookback int
}

func NewMarketView(feed *DataFeed, current time.Time, lookback int) *MarketView {
	return &MarketView{
		feed:     feed,
		current:  current,
		lookback: lookback,
	}
}

func (v *MarketView) CurrentTime() time.Time {
	return v.current
}

func (v *MarketView) Symbols() []eventmodels.StockSymbol {
	return v.feed.Symbols()
}

// CurrentBar returns the symbol's bar at exactly the current time, or nil
// when the symbol has no bar this period.
func (v *MarketView) CurrentBar(symbol eventmodels.StockSymbol) *eventmodels.Bar {
	repo, found := v.feed.GetRepository(symbol)
	if !found {
		return nil
	}

	return repo.BarAt(v.current)
}

// History returns up to lookback bars ending at the current time, oldest
// first.
func (v *MarketView) History(symbol eventmodels.StockSymbol) []*eventmodels.Bar {
	repo, found := v.feed.GetRepository(symbol)
	if !found {
		return nil
	}

	return repo.History(v.current, v.lookback)
}

// LastKnownPrice returns the close of the most recent bar at or before the
// current time.
func (v *MarketView) LastKnownPrice(symbol eventmodels.StockSymbol) (float64, error) {
	repo, found := v.feed.GetRepository(symbol)
	if !found {
		return 0, fmt.Errorf("%w: %s not in feed", ErrNoPriceAvailable, symbol)
	}

	bar := repo.LastKnown(v.current)
	if bar == nil {
		return 0, fmt.Errorf("%w: %s has no bars at or before %s", ErrNoPriceAvailable, symbol, v.current.Format("2006-01-02"))
	}

	return bar.Close, nil
}

// LastKnownPrices collects last known prices for the given symbols, skipping
// symbols with no price yet.
func (v *MarketView) LastKnownPrices(symbols []eventmodels.StockSymbol) map[eventmodels.StockSymbol]float64 {
	prices := make(map[eventmodels.StockSymbol]float64, len(symbols))
	for _, symbol := range symbols {
		price, err := v.LastKnownPrice(symbol)
		if err != nil {
			continue
		}

		prices[symbol] = price
	}

	return prices
}

// Sentiment returns the most recent sentiment record at or before the
// current time, or nil when none exists.
func (v *MarketView) Sentiment(symbol eventmodels.StockSymbol) *eventmodels.SentimentRecord {
	return v.feed.sentimentAt(symbol, v.current)
}
