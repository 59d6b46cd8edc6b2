package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/jiaming2012/backtest-engine/src/eventmodels"
)

// BarRepository holds one symbol's chronologically sorted bar series. Bars
// are frozen at construction; all lookups are bounded by a timestamp so no
// caller can read past the bar it is given.
type BarRepository struct {
	symbol eventmodels.StockSymbol
	bars   []*eventmodels.Bar
}

func NewBarRepository(symbol eventmodels.StockSymbol, bars []*eventmodels.Bar) (*BarRepository, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s", symbol)
	}

	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("%s: bar[%d] is not after the previous bar", symbol, i)
		}
	}

	return &BarRepository{
		symbol: symbol,
		bars:   bars,
	}, nil
}

func (r *BarRepository) Symbol() eventmodels.StockSymbol {
	return r.symbol
}

func (r *BarRepository) Len() int {
	return len(r.bars)
}

func (r *BarRepository) Bars() []*eventmodels.Bar {
	return r.bars
}

// upperBound returns the index of the first bar after tstamp.
func (r *BarRepository) upperBound(tstamp time.Time) int {
	return sort.Search(len(r.bars), func(i int) bool {
		return r.bars[i].Timestamp.After(tstamp)
	})
}

// BarAt returns the bar stamped exactly at tstamp, or nil when the symbol
// has no bar that period.
func (r *BarRepository) BarAt(tstamp time.Time) *eventmodels.Bar {
	idx := r.upperBound(tstamp)
	if idx == 0 {
		return nil
	}

	if bar := r.bars[idx-1]; bar.Timestamp.Equal(tstamp) {
		return bar
	}

	return nil
}

// LastKnown returns the most recent bar at or before tstamp, or nil when the
// series starts later.
func (r *BarRepository) LastKnown(tstamp time.Time) *eventmodels.Bar {
	idx := r.upperBound(tstamp)
	if idx == 0 {
		return nil
	}

	return r.bars[idx-1]
}

// History returns up to lookback bars ending at or before tstamp, oldest
// first.
func (r *BarRepository) History(tstamp time.Time, lookback int) []*eventmodels.Bar {
	idx := r.upperBound(tstamp)

	start := idx - lookback
	if start < 0 {
		start = 0
	}

	return r.bars[start:idx]
}

// DataFeed is the frozen, pre-fetched market dataset a run replays. It is
// fully materialized before the simulation loop starts; the engine performs
// no I/O.
type DataFeed struct {
	repos     map[eventmodels.StockSymbol]*BarRepository
	sentiment map[eventmodels.StockSymbol][]*eventmodels.SentimentRecord
}

func NewDataFeed() *DataFeed {
	return &DataFeed{
		repos:     make(map[eventmodels.StockSymbol]*BarRepository),
		sentiment: make(map[eventmodels.StockSymbol][]*eventmodels.SentimentRecord),
	}
}

func (f *DataFeed) AddSeries(symbol eventmodels.StockSymbol, bars []*eventmodels.Bar) error {
	if _, found := f.repos[symbol]; found {
		return fmt.Errorf("series for %s already added", symbol)
	}

	repo, err := NewBarRepository(symbol, bars)
	if err != nil {
		return fmt.Errorf("error building repository: %w", err)
	}

	f.repos[symbol] = repo

	return nil
}

func (f *DataFeed) AddSentimentSeries(symbol eventmodels.StockSymbol, records []*eventmodels.SentimentRecord) error {
	for i, record := range records {
		if err := record.Validate(); err != nil {
			return fmt.Errorf("record[%d]: %w", i, err)
		}

		if i > 0 && !records[i].Timestamp.After(records[i-1].Timestamp) {
			return fmt.Errorf("%s: sentiment record[%d] is not after the previous record", symbol, i)
		}
	}

	f.sentiment[symbol] = records

	return nil
}

func (f *DataFeed) GetRepository(symbol eventmodels.StockSymbol) (*BarRepository, bool) {
	repo, found := f.repos[symbol]
	return repo, found
}

func (f *DataFeed) Symbols() []eventmodels.StockSymbol {
	symbols := make([]eventmodels.StockSymbol, 0, len(f.repos))
	for symbol := range f.repos {
		symbols = append(symbols, symbol)
	}

	sort.Slice(symbols, func(i, j int) bool {
		return symbols[i] < symbols[j]
	})

	return symbols
}

func (f *DataFeed) IsEmpty() bool {
	return len(f.repos) == 0
}

// Timeline returns the sorted union of bar timestamps across all symbols
// within [start, end]. This is the run's time axis: a symbol missing a bar
// on an axis date simply cannot trade that bar.
func (f *DataFeed) Timeline(start, end time.Time) []time.Time {
	seen := make(map[time.Time]bool)
	var timeline []time.Time

	for _, repo := range f.repos {
		for _, bar := range repo.bars {
			if bar.Timestamp.Before(start) || bar.Timestamp.After(end) {
				continue
			}

			if !seen[bar.Timestamp] {
				seen[bar.Timestamp] = true
				timeline = append(timeline, bar.Timestamp)
			}
		}
	}

	sort.Slice(timeline, func(i, j int) bool {
		return timeline[i].Before(timeline[j])
	})

	return timeline
}

func (f *DataFeed) sentimentAt(symbol eventmodels.StockSymbol, tstamp time.Time) *eventmodels.SentimentRecord {
	records := f.sentiment[symbol]

	idx := sort.Search(len(records), func(i int) bool {
		return records[i].Timestamp.After(tstamp)
	})

	if idx == 0 {
		return nil
	}

	return records[idx-1]
}
