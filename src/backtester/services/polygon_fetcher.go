package services

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	polygonmodels "github.com/polygon-io/client-go/rest/models"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backtest-engine/src/eventmodels"
	"github.com/jiaming2012/backtest-engine/src/utils"
)

// PolygonDataFetcher pulls daily aggregates from the Polygon API. It is the
// external acquisition collaborator: the engine itself never performs I/O,
// so callers materialize the bars into a feed before a run starts.
type PolygonDataFetcher struct {
	client *polygon.Client
}

func NewPolygonDataFetcher(apiKey string) *PolygonDataFetcher {
	return &PolygonDataFetcher{
		client: polygon.New(apiKey),
	}
}

func (f *PolygonDataFetcher) FetchDailyBars(ctx context.Context, symbol eventmodels.StockSymbol, from, to time.Time) ([]*eventmodels.Bar, error) {
	log.Debugf("fetching polygon daily bars for symbol %s", symbol)

	to = utils.GetMinTime(to, time.Now().UTC())

	params := polygonmodels.ListAggsParams{
		Ticker:     symbol.String(),
		Multiplier: 1,
		Timespan:   polygonmodels.Day,
		From:       polygonmodels.Millis(from),
		To:         polygonmodels.Millis(to),
	}.WithOrder(polygonmodels.Asc).WithAdjusted(true)

	iter := f.client.ListAggs(ctx, params)

	var bars []*eventmodels.Bar
	for iter.Next() {
		item := iter.Item()

		bars = append(bars, &eventmodels.Bar{
			Timestamp: time.Time(item.Timestamp).UTC(),
			Open:      item.Open,
			High:      item.High,
			Low:       item.Low,
			Close:     item.Close,
			Volume:    item.Volume,
		})
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error fetching aggregates for %s: %w", symbol, err)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("no aggregates returned for %s between %s and %s", symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	return bars, nil
}
