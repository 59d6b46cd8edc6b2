package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jiaming2012/backtest-engine/src/backtester/services"
	"github.com/jiaming2012/backtest-engine/src/eventmodels"
	"github.com/jiaming2012/backtest-engine/src/utils"
)

type RunArgs struct {
	Symbols []string
	From    string
	To      string
	OutDir  string
	GoEnv   string
}

var runCmd = &cobra.Command{
	Use:   "go run src/cmd/fetch_data/main.go --symbols AAPL,MSFT --from 2021-01-01 --to 2021-06-30 --outDir data",
	Short: "Fetch daily bars from Polygon and write engine-ready CSV files",
	Run: func(cmd *cobra.Command, args []string) {
		symbols, err := cmd.Flags().GetStringSlice("symbols")
		if err != nil {
			log.Fatalf("error getting symbols: %v", err)
		}

		from, err := cmd.Flags().GetString("from")
		if err != nil {
			log.Fatalf("error getting from: %v", err)
		}

		to, err := cmd.Flags().GetString("to")
		if err != nil {
			log.Fatalf("error getting to: %v", err)
		}

		outDir, err := cmd.Flags().GetString("outDir")
		if err != nil {
			log.Fatalf("error getting outDir: %v", err)
		}

		goEnv, err := cmd.Flags().GetString("go-env")
		if err != nil {
			log.Fatalf("error getting go-env: %v", err)
		}

		if err := Run(RunArgs{
			Symbols: symbols,
			From:    from,
			To:      to,
			OutDir:  outDir,
			GoEnv:   goEnv,
		}); err != nil {
			log.Fatalf("Error: %v", err)
		}

		log.Info("Done")
	},
}

func Run(args RunArgs) error {
	projectsDir := os.Getenv("PROJECTS_DIR")
	if projectsDir == "" {
		log.Fatalf("missing PROJECTS_DIR environment variable")
	}

	if err := utils.InitEnvironmentVariables(projectsDir, args.GoEnv); err != nil {
		return fmt.Errorf("error loading environment variables: %w", err)
	}

	apiKey, err := utils.GetEnv("POLYGON_API_KEY")
	if err != nil {
		return fmt.Errorf("$POLYGON_API_KEY not set: %w", err)
	}

	from, err := time.Parse("2006-01-02", args.From)
	if err != nil {
		return fmt.Errorf("error parsing from date %q: %w", args.From, err)
	}

	to, err := time.Parse("2006-01-02", args.To)
	if err != nil {
		return fmt.Errorf("error parsing to date %q: %w", args.To, err)
	}

	if _, err := os.Stat(args.OutDir); os.IsNotExist(err) {
		if err := os.MkdirAll(args.OutDir, 0755); err != nil {
			return fmt.Errorf("error creating output directory: %w", err)
		}
	}

	fetcher := services.NewPolygonDataFetcher(apiKey)

	for _, s := range args.Symbols {
		symbol := eventmodels.NewStockSymbol(s)

		bars, err := fetcher.FetchDailyBars(context.Background(), symbol, from, to)
		if err != nil {
			return fmt.Errorf("error fetching bars for %s: %w", symbol, err)
		}

		rows := make([]*eventmodels.CsvBarDTO, 0, len(bars))
		for _, bar := range bars {
			rows = append(rows, eventmodels.NewCsvBarDTO(bar))
		}

		outFile := path.Join(args.OutDir, fmt.Sprintf("%s-daily.csv", symbol))

		file, err := os.Create(outFile)
		if err != nil {
			return fmt.Errorf("error creating %s: %w", outFile, err)
		}

		if err := gocsv.MarshalFile(&rows, file); err != nil {
			file.Close()
			return fmt.Errorf("error marshalling %s: %w", outFile, err)
		}

		file.Close()

		log.Infof("wrote %d bars to %s", len(rows), outFile)
	}

	return nil
}

func main() {
	runCmd.Flags().StringSlice("symbols", []string{}, "Symbols to fetch")
	runCmd.MarkFlagRequired("symbols")
	runCmd.Flags().String("from", "", "Start date (YYYY-MM-DD)")
	runCmd.MarkFlagRequired("from")
	runCmd.Flags().String("to", "", "End date (YYYY-MM-DD)")
	runCmd.MarkFlagRequired("to")
	runCmd.Flags().String("outDir", "data", "Output directory for CSV files")
	runCmd.Flags().String("go-env", "development", "The go environment")

	if err := runCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
