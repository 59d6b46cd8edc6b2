package services

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backtest-engine/src/backtester/models"
)

type CsvTradeDTO struct {
	Symbol     string  `csv:"symbol"`
	TradeType  string  `csv:"trade_type"`
	EntryDate  string  `csv:"entry_date"`
	EntryPrice float64 `csv:"entry_price"`
	Quantity   float64 `csv:"quantity"`
	ExitDate   string  `csv:"exit_date"`
	ExitPrice  float64 `csv:"exit_price"`
	Pnl        float64 `csv:"pnl"`
	PnlPercent float64 `csv:"pnl_percent"`
	HoldDays   int     `csv:"hold_days"`
	Fees       float64 `csv:"fees"`
	Tag        string  `csv:"tag"`
}

func NewCsvTradeDTO(trade *models.Trade) *CsvTradeDTO {
	dto := &CsvTradeDTO{
		Symbol:     trade.Symbol.String(),
		TradeType:  string(trade.Type),
		EntryDate:  trade.EntryDate.Format(time.RFC3339),
		EntryPrice: trade.EntryPrice,
		Quantity:   trade.Quantity,
		Fees:       trade.Fees,
		Tag:        trade.Tag,
	}

	if !trade.IsOpen() {
		dto.ExitDate = trade.ExitDate.Format(time.RFC3339)
		dto.ExitPrice = *trade.ExitPrice
		dto.Pnl = trade.Pnl()
		dto.PnlPercent = trade.PnlPercent()
		dto.HoldDays = trade.HoldDays()
	}

	return dto
}

type CsvSnapshotDTO struct {
	Date             string  `csv:"date"`
	Cash             float64 `csv:"cash"`
	PositionsValue   float64 `csv:"positions_value"`
	TotalValue       float64 `csv:"total_value"`
	DailyReturn      float64 `csv:"daily_return"`
	CumulativeReturn float64 `csv:"cumulative_return"`
}

func NewCsvSnapshotDTO(snapshot *models.PortfolioSnapshot) *CsvSnapshotDTO {
	return &CsvSnapshotDTO{
		Date:             snapshot.Date.Format(time.RFC3339),
		Cash:             snapshot.Cash,
		PositionsValue:   snapshot.PositionsValue,
		TotalValue:       snapshot.TotalValue,
		DailyReturn:      snapshot.DailyReturn,
		CumulativeReturn: snapshot.CumulativeReturn,
	}
}

// ExportTradesToCsv writes the trade history to <outDir>/<fname>-trades.csv
// and returns the path.
func ExportTradesToCsv(trades []*models.Trade, outDir string, fname string) (string, error) {
	rows := make([]*CsvTradeDTO, 0, len(trades))
	for _, trade := range trades {
		rows = append(rows, NewCsvTradeDTO(trade))
	}

	outFile := path.Join(outDir, fmt.Sprintf("%s-trades.csv", fname))
	if err := writeCsv(outFile, &rows); err != nil {
		return "", err
	}

	log.Infof("Exported %d trades to %s", len(rows), outFile)

	return outFile, nil
}

// ExportEquityCurveToCsv writes the snapshot sequence to
// <outDir>/<fname>-equity.csv and returns the path.
func ExportEquityCurveToCsv(snapshots []*models.PortfolioSnapshot, outDir string, fname string) (string, error) {
	rows := make([]*CsvSnapshotDTO, 0, len(snapshots))
	for _, snapshot := range snapshots {
		rows = append(rows, NewCsvSnapshotDTO(snapshot))
	}

	outFile := path.Join(outDir, fmt.Sprintf("%s-equity.csv", fname))
	if err := writeCsv(outFile, &rows); err != nil {
		return "", err
	}

	log.Infof("Exported %d snapshots to %s", len(rows), outFile)

	return outFile, nil
}

func writeCsv(outFile string, rows interface{}) error {
	if _, err := os.Stat(path.Dir(outFile)); os.IsNotExist(err) {
		if err := os.MkdirAll(path.Dir(outFile), 0755); err != nil {
			return fmt.Errorf("error creating export directory: %w", err)
		}
	}

	file, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("error creating CSV file: %w", err)
	}

	defer file.Close()

	if err := gocsv.MarshalFile(rows, file); err != nil {
		return fmt.Errorf("error marshalling CSV file: %w", err)
	}

	return nil
}
