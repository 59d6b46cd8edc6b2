package services

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backtest-engine/src/eventmodels"
)

// LoadBarsFromCsv reads one symbol's bar series from a CSV file, sorts it
// chronologically and rejects duplicate timestamps. Gaps wider than three
// times the inferred bar spacing are logged; weekends on a daily series stay
// below that bound.
func LoadBarsFromCsv(filename string) ([]*eventmodels.Bar, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", filename, err)
	}

	defer f.Close()

	var rows []*eventmodels.CsvBarDTO
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("error unmarshalling %s: %w", filename, err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%s contains no bars", filename)
	}

	bars := make([]*eventmodels.Bar, 0, len(rows))
	for i, row := range rows {
		bar, err := row.ToModel()
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", filename, i, err)
		}

		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp.Equal(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("%s: duplicate bar at %s", filename, bars[i].Timestamp.Format(time.RFC3339))
		}
	}

	checkGaps(filename, bars)

	log.Infof("loaded %d bars from %s", len(bars), filename)

	return bars, nil
}

func checkGaps(filename string, bars []*eventmodels.Bar) {
	spacing := inferBarSpacing(bars)
	if spacing == 0 {
		return
	}

	for i := 1; i < len(bars); i++ {
		gap := bars[i].Timestamp.Sub(bars[i-1].Timestamp)
		if gap > 3*spacing {
			log.Warnf("%s: gap of %v between %s and %s exceeds 3x bar spacing %v", filename, gap, bars[i-1].Timestamp.Format("2006-01-02"), bars[i].Timestamp.Format("2006-01-02"), spacing)
		}
	}
}

// inferBarSpacing is the median delta between consecutive bars.
func inferBarSpacing(bars []*eventmodels.Bar) time.Duration {
	if len(bars) < 2 {
		return 0
	}

	deltas := make([]time.Duration, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		deltas = append(deltas, bars[i].Timestamp.Sub(bars[i-1].Timestamp))
	}

	sort.Slice(deltas, func(i, j int) bool {
		return deltas[i] < deltas[j]
	})

	return deltas[len(deltas)/2]
}

// LoadSentimentFromCsv reads an auxiliary sentiment series and groups it by
// symbol, each group sorted chronologically.
func LoadSentimentFromCsv(filename string) (map[eventmodels.StockSymbol][]*eventmodels.SentimentRecord, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", filename, err)
	}

	defer f.Close()

	var rows []*eventmodels.CsvSentimentDTO
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("error unmarshalling %s: %w", filename, err)
	}

	grouped := make(map[eventmodels.StockSymbol][]*eventmodels.SentimentRecord)
	for i, row := range rows {
		record, err := row.ToModel()
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", filename, i, err)
		}

		grouped[record.Symbol] = append(grouped[record.Symbol], record)
	}

	for symbol := range grouped {
		records := grouped[symbol]
		sort.Slice(records, func(i, j int) bool {
			return records[i].Timestamp.Before(records[j].Timestamp)
		})
	}

	return grouped, nil
}
