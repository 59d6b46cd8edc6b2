package strategy

import (
	"fmt"

	"github.com/jiaming2012/backtest-engine/src/backtester/models"
)

// Sentiment trades on the auxiliary news-sentiment series: it buys when the
// latest score clears the entry threshold and exits a held position when the
// score turns negative past the exit threshold. Records older than maxAgeDays
// are ignored so a stale article burst cannot keep firing.
type Sentiment struct {
	entryThreshold float64
	exitThreshold  float64
	minArticles    int
	maxAgeDays     int
}

func NewSentiment(entryThreshold, exitThreshold float64, minArticles, maxAgeDays int) (*Sentiment, error) {
	if entryThreshold <= 0 || entryThreshold > 1 {
		return nil, fmt.Errorf("entry threshold must be in (0, 1], got %.4f", entryThreshold)
	}

	if exitThreshold <= 0 || exitThreshold > 1 {
		return nil, fmt.Errorf("exit threshold must be in (0, 1], got %.4f", exitThreshold)
	}

	if minArticles < 1 {
		return nil, fmt.Errorf("min articles must be at least 1, got %d", minArticles)
	}

	if maxAgeDays < 1 {
		return nil, fmt.Errorf("max age days must be at least 1, got %d", maxAgeDays)
	}

	return &Sentiment{
		entryThreshold: entryThreshold,
		exitThreshold:  exitThreshold,
		minArticles:    minArticles,
		maxAgeDays:     maxAgeDays,
	}, nil
}

func NewSentimentFromParams(params map[string]interface{}) (models.Strategy, error) {
	entryThreshold, err := floatParam(params, "entry_threshold", 0.3)
	if err != nil {
		return nil, err
	}

	exitThreshold, err := floatParam(params, "exit_threshold", 0.3)
	if err != nil {
		return nil, err
	}

	minArticles, err := intParam(params, "min_articles", 1)
	if err != nil {
		return nil, err
	}

	maxAgeDays, err := intParam(params, "max_age_days", 3)
	if err != nil {
		return nil, err
	}

	return NewSentiment(entryThreshold, exitThreshold, minArticles, maxAgeDays)
}

func (s *Sentiment) Name() string {
	return "sentiment"
}

func (s *Sentiment) OnBar(view *models.MarketView, ledger *models.Ledger) ([]*models.Signal, error) {
	var signals []*models.Signal

	for _, symbol := range view.Symbols() {
		if view.CurrentBar(symbol) == nil {
			continue
		}

		record := view.Sentiment(symbol)
		if record == nil || record.ArticleCount < s.minArticles {
			continue
		}

		ageDays := view.CurrentTime().Sub(record.Timestamp).Hours() / 24.0
		if ageDays > float64(s.maxAgeDays) {
			continue
		}

		_, held := ledger.GetPosition(symbol)

		if !held && record.Score >= s.entryThreshold {
			signals = append(signals, models.NewSignal(symbol, models.SignalDirectionEnterLong, record.Score, view.CurrentTime()))
		}

		if held && record.Score <= -s.exitThreshold {
			signals = append(signals, models.NewSignal(symbol, models.SignalDirectionExit, 1.0, view.CurrentTime()))
		}
	}

	return signals, nil
}
