package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jiaming2012/backtest-engine/src/backtester/models"
	"github.com/jiaming2012/backtest-engine/src/backtester/services"
	"github.com/jiaming2012/backtest-engine/src/strategy"
)

type RunArgs struct {
	ConfigFile string
	OutDir     string
}

var runCmd = &cobra.Command{
	Use:   "go run src/cmd/backtester/main.go --config run.yaml --outDir results",
	Short: "Run a configured backtest over CSV data and print the report",
	Run: func(cmd *cobra.Command, args []string) {
		configFile, err := cmd.Flags().GetString("config")
		if err != nil {
			log.Fatalf("error getting config: %v", err)
		}

		outDir, err := cmd.Flags().GetString("outDir")
		if err != nil {
			log.Fatalf("error getting outDir: %v", err)
		}

		if err := Run(RunArgs{
			ConfigFile: configFile,
			OutDir:     outDir,
		}); err != nil {
			log.Fatalf("Error: %v", err)
		}

		log.Info("Done")
	},
}

func Run(args RunArgs) error {
	config, err := services.LoadRunConfig(args.ConfigFile)
	if err != nil {
		return fmt.Errorf("error loading run config: %w", err)
	}

	strat, err := strategy.New(config.Strategy.Name, config.Strategy.Params)
	if err != nil {
		return fmt.Errorf("error resolving strategy: %w", err)
	}

	feed, err := config.BuildDataFeed(filepath.Dir(args.ConfigFile))
	if err != nil {
		return fmt.Errorf("error building data feed: %w", err)
	}

	orchestrator, err := models.NewOrchestrator(&config.Backtest, feed, strat)
	if err != nil {
		return fmt.Errorf("error creating orchestrator: %w", err)
	}

	result, runErr := orchestrator.Run(context.Background())

	services.RenderResult(os.Stdout, result)

	if args.OutDir != "" {
		if _, err := services.ExportTradesToCsv(result.Trades, args.OutDir, config.Strategy.Name); err != nil {
			return fmt.Errorf("error exporting trades: %w", err)
		}

		if _, err := services.ExportEquityCurveToCsv(result.PortfolioHistory, args.OutDir, config.Strategy.Name); err != nil {
			return fmt.Errorf("error exporting equity curve: %w", err)
		}
	}

	return runErr
}

func main() {
	runCmd.Flags().String("config", "", "Path to the run configuration YAML file")
	runCmd.MarkFlagRequired("config")
	runCmd.Flags().String("outDir", "", "Directory for CSV exports of trades and the equity curve")

	if err := runCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
