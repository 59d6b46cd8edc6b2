package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/backtest-engine/src/eventmodels"
)

func TestLedgerApplyFill(t *testing.T) {
	symbol := eventmodels.StockSymbol("AAPL")
	day1 := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2021, 1, 5, 0, 0, 0, 0, time.UTC)

	t.Run("opens a long position", func(t *testing.T) {
		ledger := NewLedger(newTestConfig())

		trade, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideBuy, 10, 100.0, 1.0, day1, ""))
		require.NoError(t, err)

		assert.Equal(t, 8999.0, ledger.Cash())
		assert.True(t, trade.IsOpen())
		assert.Equal(t, 10.0, trade.Quantity)
		assert.Equal(t, 100.0, trade.EntryPrice)
		assert.Equal(t, day1, trade.EntryDate)

		position, found := ledger.GetPosition(symbol)
		require.True(t, found)
		assert.Equal(t, TradeTypeLong, position.Type)
		assert.Equal(t, 10.0, position.Quantity)
		assert.Equal(t, 100.0, position.CostBasis)
	})

	t.Run("rejects entry exceeding cash", func(t *testing.T) {
		ledger := NewLedger(newTestConfig())

		_, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideBuy, 200, 100.0, 0, day1, ""))
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		assert.Equal(t, 10000.0, ledger.Cash())
		assert.Equal(t, 0, ledger.OpenPositionCount())
		assert.Empty(t, ledger.Trades())
	})

	t.Run("rejects entry below min position size", func(t *testing.T) {
		config := newTestConfig()
		config.MinPositionSize = 500.0
		ledger := NewLedger(config)

		_, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideBuy, 1, 100.0, 0, day1, ""))
		assert.ErrorIs(t, err, ErrBelowMinPositionSize)
		assert.Empty(t, ledger.Trades())
	})

	t.Run("rejects entry beyond max positions", func(t *testing.T) {
		ledger := NewLedger(newTestConfig())

		_, err := ledger.ApplyFill(NewFillRequest("AAPL", FillSideBuy, 10, 100.0, 0, day1, ""))
		require.NoError(t, err)
		_, err = ledger.ApplyFill(NewFillRequest("GOOG", FillSideBuy, 10, 100.0, 0, day1, ""))
		require.NoError(t, err)

		_, err = ledger.ApplyFill(NewFillRequest("COIN", FillSideBuy, 10, 100.0, 0, day1, ""))
		assert.ErrorIs(t, err, ErrMaxPositionsReached)
		assert.Equal(t, 2, ledger.OpenPositionCount())
	})

	t.Run("closes a long round trip", func(t *testing.T) {
		ledger := NewLedger(newTestConfig())

		_, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideBuy, 10, 100.0, 1.0, day1, ""))
		require.NoError(t, err)

		trade, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideSell, 10, 110.0, 1.0, day2, ""))
		require.NoError(t, err)

		assert.InDelta(t, 10098.0, ledger.Cash(), 1e-9)
		assert.False(t, trade.IsOpen())
		require.NotNil(t, trade.ExitDate)
		assert.Equal(t, day2, *trade.ExitDate)
		assert.Equal(t, 110.0, *trade.ExitPrice)
		assert.InDelta(t, 98.0, trade.Pnl(), 1e-9)
		assert.InDelta(t, 9.8, trade.PnlPercent(), 1e-9)
		assert.Equal(t, 1, trade.HoldDays())

		_, found := ledger.GetPosition(symbol)
		assert.False(t, found)
	})

	t.Run("partial close splits off a closed trade", func(t *testing.T) {
		ledger := NewLedger(newTestConfig())

		_, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideBuy, 10, 100.0, 0, day1, ""))
		require.NoError(t, err)

		closed, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideSell, 4, 120.0, 0, day2, ""))
		require.NoError(t, err)

		assert.False(t, closed.IsOpen())
		assert.Equal(t, 4.0, closed.Quantity)
		assert.Equal(t, 100.0, closed.EntryPrice)
		assert.InDelta(t, 80.0, closed.Pnl(), 1e-9)

		position, found := ledger.GetPosition(symbol)
		require.True(t, found)
		assert.Equal(t, 6.0, position.Quantity)
		assert.Equal(t, 100.0, position.CostBasis)

		require.Len(t, ledger.Trades(), 2)
		assert.True(t, ledger.Trades()[0].IsOpen())
		assert.Equal(t, 6.0, ledger.Trades()[0].Quantity)
		assert.InDelta(t, 9480.0, ledger.Cash(), 1e-9)
	})

	t.Run("increase re-averages the cost basis", func(t *testing.T) {
		ledger := NewLedger(newTestConfig())

		_, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideBuy, 10, 100.0, 0, day1, ""))
		require.NoError(t, err)

		trade, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideBuy, 10, 120.0, 0, day2, ""))
		require.NoError(t, err)

		position, found := ledger.GetPosition(symbol)
		require.True(t, found)
		assert.Equal(t, 20.0, position.Quantity)
		assert.InDelta(t, 110.0, position.CostBasis, 1e-9)

		assert.True(t, trade.IsOpen())
		assert.Equal(t, 20.0, trade.Quantity)
		assert.InDelta(t, 110.0, trade.EntryPrice, 1e-9)

		// still one round trip
		assert.Len(t, ledger.Trades(), 1)
		assert.InDelta(t, 7800.0, ledger.Cash(), 1e-9)
	})

	t.Run("rejects selling more than open volume", func(t *testing.T) {
		ledger := NewLedger(newTestConfig())

		_, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideBuy, 10, 100.0, 0, day1, ""))
		require.NoError(t, err)

		_, err = ledger.ApplyFill(NewFillRequest(symbol, FillSideSell, 20, 100.0, 0, day2, ""))
		assert.ErrorIs(t, err, ErrInvalidVolume)
	})

	t.Run("rejects exit with no open position", func(t *testing.T) {
		ledger := NewLedger(newTestConfig())

		_, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideSell, 10, 100.0, 0, day1, ""))
		assert.ErrorIs(t, err, ErrPositionNotFound)
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		ledger := NewLedger(newTestConfig())

		_, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideBuy, 0, 100.0, 0, day1, ""))
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("short round trip", func(t *testing.T) {
		ledger := NewLedger(newTestConfig())

		entry, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideSellShort, 10, 100.0, 1.0, day1, ""))
		require.NoError(t, err)
		assert.Equal(t, TradeTypeShort, entry.Type)
		assert.InDelta(t, 10999.0, ledger.Cash(), 1e-9)

		trade, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideBuyToCover, 10, 90.0, 1.0, day2, ""))
		require.NoError(t, err)

		assert.InDelta(t, 10098.0, ledger.Cash(), 1e-9)
		assert.False(t, trade.IsOpen())
		assert.InDelta(t, 98.0, trade.Pnl(), 1e-9)
	})

	t.Run("rejects buying against an open short", func(t *testing.T) {
		ledger := NewLedger(newTestConfig())

		_, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideSellShort, 10, 100.0, 0, day1, ""))
		require.NoError(t, err)

		_, err = ledger.ApplyFill(NewFillRequest(symbol, FillSideBuy, 10, 100.0, 0, day2, ""))
		assert.ErrorIs(t, err, ErrPositionAlreadyOpen)
	})
}

func TestLedgerMarkToMarket(t *testing.T) {
	symbol := eventmodels.StockSymbol("AAPL")
	day1 := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2021, 1, 5, 0, 0, 0, 0, time.UTC)

	t.Run("cash plus positions equals total value", func(t *testing.T) {
		ledger := NewLedger(newTestConfig())

		_, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideBuy, 10, 100.0, 0, day1, ""))
		require.NoError(t, err)

		snapshot := ledger.MarkToMarket(day1, map[eventmodels.StockSymbol]float64{symbol: 105.0})

		assert.Equal(t, 9000.0, snapshot.Cash)
		assert.InDelta(t, 1050.0, snapshot.PositionsValue, 1e-9)
		assert.InDelta(t, snapshot.Cash+snapshot.PositionsValue, snapshot.TotalValue, 1e-6)
		assert.InDelta(t, 0.005, snapshot.DailyReturn, 1e-9)
		assert.InDelta(t, 0.005, snapshot.CumulativeReturn, 1e-9)
	})

	t.Run("daily return chains between snapshots", func(t *testing.T) {
		ledger := NewLedger(newTestConfig())

		_, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideBuy, 10, 100.0, 0, day1, ""))
		require.NoError(t, err)

		first := ledger.MarkToMarket(day1, map[eventmodels.StockSymbol]float64{symbol: 100.0})
		assert.InDelta(t, 0.0, first.DailyReturn, 1e-9)

		second := ledger.MarkToMarket(day2, map[eventmodels.StockSymbol]float64{symbol: 110.0})
		assert.InDelta(t, 10100.0, second.TotalValue, 1e-9)
		assert.InDelta(t, 0.01, second.DailyReturn, 1e-9)
		assert.InDelta(t, 0.01, second.CumulativeReturn, 1e-9)

		require.Len(t, ledger.Snapshots(), 2)
	})

	t.Run("does not mutate positions", func(t *testing.T) {
		ledger := NewLedger(newTestConfig())

		_, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideBuy, 10, 100.0, 0, day1, ""))
		require.NoError(t, err)

		ledger.MarkToMarket(day1, map[eventmodels.StockSymbol]float64{symbol: 500.0})

		position, found := ledger.GetPosition(symbol)
		require.True(t, found)
		assert.Equal(t, 10.0, position.Quantity)
		assert.Equal(t, 100.0, position.CostBasis)
		assert.Equal(t, 9000.0, ledger.Cash())
	})

	t.Run("short position contributes negative market value", func(t *testing.T) {
		ledger := NewLedger(newTestConfig())

		_, err := ledger.ApplyFill(NewFillRequest(symbol, FillSideSellShort, 10, 100.0, 0, day1, ""))
		require.NoError(t, err)

		snapshot := ledger.MarkToMarket(day1, map[eventmodels.StockSymbol]float64{symbol: 90.0})

		assert.InDelta(t, 11000.0, snapshot.Cash, 1e-9)
		assert.InDelta(t, -900.0, snapshot.PositionsValue, 1e-9)
		assert.InDelta(t, 10100.0, snapshot.TotalValue, 1e-9)
	})
}
