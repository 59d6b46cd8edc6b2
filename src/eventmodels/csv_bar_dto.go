package eventmodels

import (
	"fmt"
	"time"
)

type CsvBarDTO struct {
	Timestamp string  `csv:"time"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume"`
}

func (c *CsvBarDTO) ToModel() (*Bar, error) {
	t, err := time.Parse(time.RFC3339, c.Timestamp)
	if err != nil {
		t, err = time.Parse("2006-01-02", c.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("error parsing time %q: %w", c.Timestamp, err)
		}
	}

	return &Bar{
		Timestamp: t.UTC(),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}, nil
}

func NewCsvBarDTO(bar *Bar) *CsvBarDTO {
	return &CsvBarDTO{
		Timestamp: bar.Timestamp.Format(time.RFC3339),
		Open:      bar.Open,
		High:      bar.High,
		Low:       bar.Low,
		Close:     bar.Close,
		Volume:    bar.Volume,
	}
}
