package eventmodels

import (
	"fmt"
	"time"
)

// SentimentRecord holds an aggregate news sentiment score for a symbol on a
// given day. Scores range from -1 (uniformly negative) to +1 (uniformly
// positive).
type SentimentRecord struct {
	Timestamp    time.Time   `json:"timestamp"`
	Symbol       StockSymbol `json:"symbol"`
	Score        float64     `json:"score"`
	ArticleCount int         `json:"article_count"`
}

func (r *SentimentRecord) Validate() error {
	if r.Score < -1 || r.Score > 1 {
		return fmt.Errorf("sentiment score %.4f out of range [-1, 1]", r.Score)
	}

	if r.ArticleCount < 0 {
		return fmt.Errorf("article count %d is negative", r.ArticleCount)
	}

	return nil
}

type CsvSentimentDTO struct {
	Timestamp    string  `csv:"time"`
	Symbol       string  `csv:"symbol"`
	Score        float64 `csv:"score"`
	ArticleCount int     `csv:"article_count"`
}

func (c *CsvSentimentDTO) ToModel() (*SentimentRecord, error) {
	t, err := time.Parse(time.RFC3339, c.Timestamp)
	if err != nil {
		t, err = time.Parse("2006-01-02", c.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("error parsing time %q: %w", c.Timestamp, err)
		}
	}

	record := &SentimentRecord{
		Timestamp:    t.UTC(),
		Symbol:       NewStockSymbol(c.Symbol),
		Score:        c.Score,
		ArticleCount: c.ArticleCount,
	}

	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sentiment record: %w", err)
	}

	return record, nil
}
