package services

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jiaming2012/backtest-engine/src/backtester/models"
	"github.com/jiaming2012/backtest-engine/src/eventmodels"
)

// RunConfigYAML is the on-disk description of one backtest: the strategy to
// resolve, the CSV data sources to freeze into the feed, and the engine
// parameters.
type RunConfigYAML struct {
	Strategy StrategyConfigYAML    `yaml:"strategy"`
	Data     DataConfigYAML        `yaml:"data"`
	Backtest models.BacktestConfig `yaml:"backtest"`
}

type StrategyConfigYAML struct {
	Name   string                 `yaml:"name"`
	Params map[string]interface{} `yaml:"params"`
}

type DataConfigYAML struct {
	Bars         []BarSourceYAML `yaml:"bars"`
	SentimentCsv string          `yaml:"sentiment_csv"`
}

type BarSourceYAML struct {
	Symbol string `yaml:"symbol"`
	Csv    string `yaml:"csv"`
}

func LoadRunConfig(filename string) (*RunConfigYAML, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading run config %s: %w", filename, err)
	}

	var config RunConfigYAML
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling run config %s: %w", filename, err)
	}

	config.Backtest.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config %s: %w", filename, err)
	}

	return &config, nil
}

func (c *RunConfigYAML) Validate() error {
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy name is required")
	}

	if len(c.Data.Bars) == 0 {
		return fmt.Errorf("at least one bar source is required")
	}

	for i, source := range c.Data.Bars {
		if source.Symbol == "" {
			return fmt.Errorf("bar source %d: symbol is required", i)
		}

		if source.Csv == "" {
			return fmt.Errorf("bar source %d: csv filename is required", i)
		}
	}

	return c.Backtest.Validate()
}

// BuildDataFeed materializes the configured CSV sources into a frozen feed.
// Relative filenames resolve against baseDir.
func (c *RunConfigYAML) BuildDataFeed(baseDir string) (*models.DataFeed, error) {
	feed := models.NewDataFeed()

	for _, source := range c.Data.Bars {
		bars, err := LoadBarsFromCsv(resolvePath(baseDir, source.Csv))
		if err != nil {
			return nil, fmt.Errorf("error loading bars for %s: %w", source.Symbol, err)
		}

		if err := feed.AddSeries(eventmodels.NewStockSymbol(source.Symbol), bars); err != nil {
			return nil, fmt.Errorf("error adding series for %s: %w", source.Symbol, err)
		}
	}

	if c.Data.SentimentCsv != "" {
		grouped, err := LoadSentimentFromCsv(resolvePath(baseDir, c.Data.SentimentCsv))
		if err != nil {
			return nil, fmt.Errorf("error loading sentiment: %w", err)
		}

		for symbol, records := range grouped {
			if err := feed.AddSentimentSeries(symbol, records); err != nil {
				return nil, fmt.Errorf("error adding sentiment for %s: %w", symbol, err)
			}
		}
	}

	return feed, nil
}

func resolvePath(baseDir, filename string) string {
	if filepath.IsAbs(filename) || baseDir == "" {
		return filename
	}

	return filepath.Join(baseDir, filename)
}
