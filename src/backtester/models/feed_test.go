package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/backtest-engine/src/eventmodels"
)

func makeBars(start time.Time, closes []float64) []*eventmodels.Bar {
	bars := make([]*eventmodels.Bar, 0, len(closes))
	for i, c := range closes {
		bars = append(bars, &eventmodels.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		})
	}

	return bars
}

func TestBarRepository(t *testing.T) {
	start := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)

	t.Run("rejects empty series", func(t *testing.T) {
		_, err := NewBarRepository("AAPL", nil)
		assert.Error(t, err)
	})

	t.Run("rejects out-of-order bars", func(t *testing.T) {
		bars := makeBars(start, []float64{100, 101, 102})
		bars[1], bars[2] = bars[2], bars[1]

		_, err := NewBarRepository("AAPL", bars)
		assert.Error(t, err)
	})

	t.Run("rejects duplicate timestamps", func(t *testing.T) {
		bars := makeBars(start, []float64{100, 101})
		bars[1].Timestamp = bars[0].Timestamp

		_, err := NewBarRepository("AAPL", bars)
		assert.Error(t, err)
	})

	t.Run("bar lookups", func(t *testing.T) {
		repo, err := NewBarRepository("AAPL", makeBars(start, []float64{100, 101, 102}))
		require.NoError(t, err)

		bar := repo.BarAt(start.AddDate(0, 0, 1))
		require.NotNil(t, bar)
		assert.Equal(t, 101.0, bar.Close)

		assert.Nil(t, repo.BarAt(start.Add(12*time.Hour)))
		assert.Nil(t, repo.BarAt(start.AddDate(0, 0, -1)))

		last := repo.LastKnown(start.AddDate(0, 0, 10))
		require.NotNil(t, last)
		assert.Equal(t, 102.0, last.Close)

		// between bars, the previous bar is the last known
		between := repo.LastKnown(start.Add(36 * time.Hour))
		require.NotNil(t, between)
		assert.Equal(t, 101.0, between.Close)

		assert.Nil(t, repo.LastKnown(start.AddDate(0, 0, -1)))
	})

	t.Run("history is windowed and never reaches forward", func(t *testing.T) {
		repo, err := NewBarRepository("AAPL", makeBars(start, []float64{100, 101, 102, 103, 104}))
		require.NoError(t, err)

		history := repo.History(start.AddDate(0, 0, 2), 2)
		require.Len(t, history, 2)
		assert.Equal(t, 101.0, history[0].Close)
		assert.Equal(t, 102.0, history[1].Close)

		// lookback larger than available history
		history = repo.History(start.AddDate(0, 0, 1), 10)
		require.Len(t, history, 2)
		assert.Equal(t, 100.0, history[0].Close)
		assert.Equal(t, 101.0, history[1].Close)

		assert.Empty(t, repo.History(start.AddDate(0, 0, -1), 10))
	})
}

func TestDataFeed(t *testing.T) {
	start := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)

	t.Run("rejects duplicate series", func(t *testing.T) {
		feed := NewDataFeed()
		require.NoError(t, feed.AddSeries("AAPL", makeBars(start, []float64{100})))
		assert.Error(t, feed.AddSeries("AAPL", makeBars(start, []float64{100})))
	})

	t.Run("timeline is the sorted union within the window", func(t *testing.T) {
		feed := NewDataFeed()
		require.NoError(t, feed.AddSeries("AAPL", makeBars(start, []float64{100, 101, 102})))
		require.NoError(t, feed.AddSeries("GOOG", makeBars(start.AddDate(0, 0, 1), []float64{200, 201, 202})))

		timeline := feed.Timeline(start, start.AddDate(0, 0, 10))
		require.Len(t, timeline, 4)
		for i := 0; i < 4; i++ {
			assert.Equal(t, start.AddDate(0, 0, i), timeline[i])
		}

		// window clips both ends
		timeline = feed.Timeline(start.AddDate(0, 0, 1), start.AddDate(0, 0, 2))
		require.Len(t, timeline, 2)
		assert.Equal(t, start.AddDate(0, 0, 1), timeline[0])
		assert.Equal(t, start.AddDate(0, 0, 2), timeline[1])
	})

	t.Run("symbols are sorted", func(t *testing.T) {
		feed := NewDataFeed()
		require.NoError(t, feed.AddSeries("MSFT", makeBars(start, []float64{100})))
		require.NoError(t, feed.AddSeries("AAPL", makeBars(start, []float64{100})))

		assert.Equal(t, []eventmodels.StockSymbol{"AAPL", "MSFT"}, feed.Symbols())
	})

	t.Run("sentiment series must be ordered and valid", func(t *testing.T) {
		feed := NewDataFeed()

		err := feed.AddSentimentSeries("AAPL", []*eventmodels.SentimentRecord{
			{Timestamp: start, Symbol: "AAPL", Score: 0.5, ArticleCount: 3},
			{Timestamp: start, Symbol: "AAPL", Score: 0.6, ArticleCount: 1},
		})
		assert.Error(t, err)

		err = feed.AddSentimentSeries("AAPL", []*eventmodels.SentimentRecord{
			{Timestamp: start, Symbol: "AAPL", Score: 1.5, ArticleCount: 3},
		})
		assert.Error(t, err)
	})
}

func TestMarketView(t *testing.T) {
	start := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)

	newFeed := func(t *testing.T, closes []float64) *DataFeed {
		feed := NewDataFeed()
		require.NoError(t, feed.AddSeries("AAPL", makeBars(start, closes)))
		return feed
	}

	t.Run("current bar and last known price", func(t *testing.T) {
		feed := newFeed(t, []float64{100, 101, 102})
		view := NewMarketView(feed, start.AddDate(0, 0, 1), 10)

		bar := view.CurrentBar("AAPL")
		require.NotNil(t, bar)
		assert.Equal(t, 101.0, bar.Close)

		price, err := view.LastKnownPrice("AAPL")
		require.NoError(t, err)
		assert.Equal(t, 101.0, price)

		_, err = view.LastKnownPrice("GOOG")
		assert.ErrorIs(t, err, ErrNoPriceAvailable)
	})

	t.Run("view is identical with or without future bars", func(t *testing.T) {
		current := start.AddDate(0, 0, 2)

		full := NewMarketView(newFeed(t, []float64{100, 101, 102, 103, 104}), current, 10)
		truncated := NewMarketView(newFeed(t, []float64{100, 101, 102}), current, 10)

		fullHistory := full.History("AAPL")
		truncatedHistory := truncated.History("AAPL")
		require.Len(t, fullHistory, 3)
		require.Len(t, truncatedHistory, 3)

		for i := range fullHistory {
			assert.Equal(t, truncatedHistory[i].Close, fullHistory[i].Close)
			assert.Equal(t, truncatedHistory[i].Timestamp, fullHistory[i].Timestamp)
		}

		fullPrice, err := full.LastKnownPrice("AAPL")
		require.NoError(t, err)
		truncatedPrice, err := truncated.LastKnownPrice("AAPL")
		require.NoError(t, err)
		assert.Equal(t, truncatedPrice, fullPrice)
	})

	t.Run("sentiment respects the current time", func(t *testing.T) {
		feed := newFeed(t, []float64{100, 101, 102})
		require.NoError(t, feed.AddSentimentSeries("AAPL", []*eventmodels.SentimentRecord{
			{Timestamp: start, Symbol: "AAPL", Score: 0.2, ArticleCount: 1},
			{Timestamp: start.AddDate(0, 0, 2), Symbol: "AAPL", Score: -0.4, ArticleCount: 5},
		}))

		view := NewMarketView(feed, start.AddDate(0, 0, 1), 10)
		record := view.Sentiment("AAPL")
		require.NotNil(t, record)
		assert.Equal(t, 0.2, record.Score)

		later := NewMarketView(feed, start.AddDate(0, 0, 2), 10)
		record = later.Sentiment("AAPL")
		require.NotNil(t, record)
		assert.Equal(t, -0.4, record.Score)

		early := NewMarketView(feed, start.AddDate(0, 0, -1), 10)
		assert.Nil(t, early.Sentiment("AAPL"))
	})
}
