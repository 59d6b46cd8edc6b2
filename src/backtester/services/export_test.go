package services

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/backtest-engine/src/backtester/models"
)

func TestExportTradesToCsv(t *testing.T) {
	entryDate := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	exitDate := time.Date(2021, 1, 8, 0, 0, 0, 0, time.UTC)
	exitPrice := 110.0

	closed := &models.Trade{
		ID:         1,
		Symbol:     "AAPL",
		Type:       models.TradeTypeLong,
		EntryDate:  entryDate,
		EntryPrice: 100.0,
		Quantity:   10,
		ExitDate:   &exitDate,
		ExitPrice:  &exitPrice,
		Tag:        "take_profit",
	}

	open := &models.Trade{
		ID:         2,
		Symbol:     "MSFT",
		Type:       models.TradeTypeLong,
		EntryDate:  entryDate,
		EntryPrice: 50.0,
		Quantity:   20,
	}

	outDir := t.TempDir()

	outFile, err := ExportTradesToCsv([]*models.Trade{closed, open}, outDir, "demo")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(outFile, "demo-trades.csv"))

	raw, err := os.ReadFile(outFile)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)

	assert.Contains(t, lines[0], "symbol")
	assert.Contains(t, lines[1], "AAPL")
	assert.Contains(t, lines[1], "take_profit")

	// open trades export with empty exit fields
	assert.Contains(t, lines[2], "MSFT")
	assert.Contains(t, lines[2], ",,")
}

func TestExportEquityCurveToCsv(t *testing.T) {
	start := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)

	snapshots := []*models.PortfolioSnapshot{
		{Date: start, Cash: 10000, PositionsValue: 0, TotalValue: 10000},
		{Date: start.AddDate(0, 0, 1), Cash: 5000, PositionsValue: 5100, TotalValue: 10100, DailyReturn: 0.01, CumulativeReturn: 0.01},
	}

	outDir := t.TempDir()

	outFile, err := ExportEquityCurveToCsv(snapshots, outDir, "demo")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(outFile, "demo-equity.csv"))

	raw, err := os.ReadFile(outFile)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "total_value")
	assert.Contains(t, lines[2], "10100")
}
