package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"

	"github.com/jiaming2012/backtest-engine/src/backtester/models"
	"github.com/jiaming2012/backtest-engine/src/backtester/services"
	"github.com/jiaming2012/backtest-engine/src/eventmodels"
	"github.com/jiaming2012/backtest-engine/src/strategy"
)

var (
	runService    *services.RunService
	fetcher       *services.PolygonDataFetcher
	dataDirectory string
	queryDecoder  = schema.NewDecoder()
)

type errorResponse struct {
	Type string `json:"type"`
	Msg  string `json:"message"`
}

func NewErrorResponse(errType string, message string) *errorResponse {
	return &errorResponse{
		Type: errType,
		Msg:  message,
	}
}

func setResponse(response interface{}, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		return fmt.Errorf("SetResponse: encode: %w", err)
	}

	return nil
}

func setErrorResponse(errType string, statusCode int, err error, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := NewErrorResponse(errType, err.Error())
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		return encodeErr
	}

	return nil
}

type StrategyRequest struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params"`
}

type RepositorySourceType string

const (
	RepositorySourcePolygon RepositorySourceType = "polygon"
	RepositorySourceCSV     RepositorySourceType = "csv"
)

type RepositorySource struct {
	Type        RepositorySourceType `json:"type"`
	CSVFilename *string              `json:"filename"`
}

type CreateRepositoryRequest struct {
	Symbol string           `json:"symbol"`
	Source RepositorySource `json:"source"`
}

type CreateBacktestRequest struct {
	Strategy     StrategyRequest           `json:"strategy"`
	Repositories []CreateRepositoryRequest `json:"repositories"`
	SentimentCSV *string                   `json:"sentiment_filename"`
	Config       models.BacktestConfig     `json:"config"`
}

func (req *CreateBacktestRequest) Validate() error {
	if req.Strategy.Name == "" {
		return fmt.Errorf("strategy name is required")
	}

	if len(req.Repositories) == 0 {
		return fmt.Errorf("at least one repository is required")
	}

	for i, repo := range req.Repositories {
		if repo.Symbol == "" {
			return fmt.Errorf("repository %d: symbol is required", i)
		}

		switch repo.Source.Type {
		case RepositorySourceCSV:
			if repo.Source.CSVFilename == nil || *repo.Source.CSVFilename == "" {
				return fmt.Errorf("repository %d: csv source requires a filename", i)
			}
		case RepositorySourcePolygon:
			if fetcher == nil {
				return fmt.Errorf("repository %d: polygon source is not configured", i)
			}
		default:
			return fmt.Errorf("repository %d: unknown source type %q", i, repo.Source.Type)
		}
	}

	return nil
}

func resolveDataPath(filename string) string {
	if filepath.IsAbs(filename) || dataDirectory == "" {
		return filename
	}

	return filepath.Join(dataDirectory, filename)
}

func buildFeed(ctx context.Context, req *CreateBacktestRequest, config *models.BacktestConfig) (*models.DataFeed, error) {
	feed := models.NewDataFeed()

	for _, repo := range req.Repositories {
		symbol := eventmodels.NewStockSymbol(repo.Symbol)

		var bars []*eventmodels.Bar
		var err error

		switch repo.Source.Type {
		case RepositorySourceCSV:
			bars, err = services.LoadBarsFromCsv(resolveDataPath(*repo.Source.CSVFilename))
		case RepositorySourcePolygon:
			bars, err = fetcher.FetchDailyBars(ctx, symbol, config.StartDate, config.EndDate)
		}

		if err != nil {
			return nil, fmt.Errorf("error loading bars for %s: %w", symbol, err)
		}

		if err := feed.AddSeries(symbol, bars); err != nil {
			return nil, fmt.Errorf("error adding series for %s: %w", symbol, err)
		}
	}

	if req.SentimentCSV != nil && *req.SentimentCSV != "" {
		grouped, err := services.LoadSentimentFromCsv(resolveDataPath(*req.SentimentCSV))
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

func handleCreateBacktest(w http.ResponseWriter, r *http.Request) {
	var req CreateBacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		setErrorResponse("createBacktest: failed to decode request", 400, err, w)
		return
	}

	if err := req.Validate(); err != nil {
		setErrorResponse("createBacktest: invalid request", 400, err, w)
		return
	}

	config := req.Config
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		setErrorResponse("createBacktest: invalid config", 400, err, w)
		return
	}

	strat, err := strategy.New(req.Strategy.Name, req.Strategy.Params)
	if err != nil {
		setErrorResponse("createBacktest: failed to resolve strategy", 400, err, w)
		return
	}

	feed, err := buildFeed(r.Context(), &req, &config)
	if err != nil {
		setErrorResponse("createBacktest: failed to build data feed", 400, err, w)
		return
	}

	run, err := runService.CreateRun(&config, feed, strat)
	if err != nil {
		setErrorResponse("createBacktest: failed to create run", 500, err, w)
		return
	}

	if err := runService.StartRun(run.ID); err != nil {
		setErrorResponse("createBacktest: failed to start run", 500, err, w)
		return
	}

	response := map[string]interface{}{
		"backtest_id": run.ID,
	}

	if err := setResponse(response, w); err != nil {
		setErrorResponse("createBacktest: failed to set response", 500, err, w)
		return
	}
}

type BacktestSummary struct {
	ID            uuid.UUID        `json:"id"`
	Strategy      string           `json:"strategy"`
	Status        models.RunStatus `json:"status"`
	BarsProcessed int              `json:"bars_processed"`
	CreatedAt     time.Time        `json:"created_at"`
}

func newBacktestSummary(run *services.BacktestRun) *BacktestSummary {
	return &BacktestSummary{
		ID:            run.ID,
		Strategy:      run.Strategy,
		Status:        run.Status(),
		BarsProcessed: run.BarsProcessed(),
		CreatedAt:     run.CreatedAt,
	}
}

func handleListBacktests(w http.ResponseWriter, r *http.Request) {
	runs := runService.ListRuns()

	summaries := make([]*BacktestSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, newBacktestSummary(run))
	}

	response := map[string]interface{}{
		"backtests": summaries,
	}

	if err := setResponse(response, w); err != nil {
		setErrorResponse("listBacktests: failed to set response", 500, err, w)
		return
	}
}

func handleBacktests(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		handleListBacktests(w, r)
	} else if r.Method == "POST" {
		handleCreateBacktest(w, r)
	} else {
		w.WriteHeader(404)
	}
}

func parseID(r *http.Request) (uuid.UUID, error) {
	vars := mux.Vars(r)
	return uuid.Parse(vars["id"])
}

type GetBacktestResponse struct {
	*BacktestSummary
	Result *models.BacktestResult `json:"result,omitempty"`
}

func handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		setErrorResponse("getBacktest: failed to parse backtest id", 400, err, w)
		return
	}

	run, found := runService.GetRun(id)
	if !found {
		setErrorResponse("getBacktest: not found", 404, fmt.Errorf("backtest %s not found", id), w)
		return
	}

	response := GetBacktestResponse{
		BacktestSummary: newBacktestSummary(run),
		Result:          run.Result(),
	}

	if err := setResponse(response, w); err != nil {
		setErrorResponse("getBacktest: failed to set response", 500, err, w)
		return
	}
}

func handleCancelBacktest(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		setErrorResponse("cancelBacktest: failed to parse backtest id", 400, err, w)
		return
	}

	if err := runService.CancelRun(id); err != nil {
		setErrorResponse("cancelBacktest: failed to cancel run", 400, err, w)
		return
	}

	response := map[string]interface{}{
		"backtest_id": id,
		"canceled":    true,
	}

	if err := setResponse(response, w); err != nil {
		setErrorResponse("cancelBacktest: failed to set response", 500, err, w)
		return
	}
}

func handleBacktest(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		handleGetBacktest(w, r)
	} else if r.Method == "DELETE" {
		handleCancelBacktest(w, r)
	} else {
		w.WriteHeader(404)
	}
}

// terminalResult returns the run's finalized result, or a web error while
// the run is still in flight. Trade and snapshot sequences are served only
// after the terminal state so readers never race the run goroutine.
func terminalResult(r *http.Request) (*models.BacktestResult, *eventmodels.WebError) {
	id, err := parseID(r)
	if err != nil {
		return nil, eventmodels.NewWebError(400, "failed to parse backtest id", err)
	}

	run, found := runService.GetRun(id)
	if !found {
		return nil, eventmodels.NewWebError(404, fmt.Sprintf("backtest %s not found", id), nil)
	}

	result := run.Result()
	if result == nil {
		return nil, eventmodels.NewWebError(409, fmt.Sprintf("backtest %s has not finished", id), nil)
	}

	return result, nil
}

type TradesQuery struct {
	Symbol string `schema:"symbol"`
	Limit  int    `schema:"limit"`
}

func handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(404)
		return
	}

	result, webErr := terminalResult(r)
	if webErr != nil {
		setErrorResponse("getTrades: failed to fetch result", webErr.StatusCode, webErr, w)
		return
	}

	if err := r.ParseForm(); err != nil {
		setErrorResponse("getTrades: failed to parse form", 400, err, w)
		return
	}

	var query TradesQuery
	if err := queryDecoder.Decode(&query, r.Form); err != nil {
		setErrorResponse("getTrades: failed to decode query", 400, err, w)
		return
	}

	trades := result.Trades
	if query.Symbol != "" {
		symbol := eventmodels.NewStockSymbol(query.Symbol)

		filtered := make([]*models.Trade, 0, len(trades))
		for _, trade := range trades {
			if trade.Symbol == symbol {
				filtered = append(filtered, trade)
			}
		}

		trades = filtered
	}

	if query.Limit > 0 && query.Limit < len(trades) {
		trades = trades[:query.Limit]
	}

	response := map[string]interface{}{
		"trades": trades,
	}

	if err := setResponse(response, w); err != nil {
		setErrorResponse("getTrades: failed to set response", 500, err, w)
		return
	}
}

type SnapshotsQuery struct {
	Offset int `schema:"offset"`
	Limit  int `schema:"limit"`
}

func handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(404)
		return
	}

	result, webErr := terminalResult(r)
	if webErr != nil {
		setErrorResponse("getSnapshots: failed to fetch result", webErr.StatusCode, webErr, w)
		return
	}

	if err := r.ParseForm(); err != nil {
		setErrorResponse("getSnapshots: failed to parse form", 400, err, w)
		return
	}

	var query SnapshotsQuery
	if err := queryDecoder.Decode(&query, r.Form); err != nil {
		setErrorResponse("getSnapshots: failed to decode query", 400, err, w)
		return
	}

	snapshots := result.PortfolioHistory

	if query.Offset > 0 {
		if query.Offset >= len(snapshots) {
			snapshots = nil
		} else {
			snapshots = snapshots[query.Offset:]
		}
	}

	if query.Limit > 0 && query.Limit < len(snapshots) {
		snapshots = snapshots[:query.Limit]
	}

	response := map[string]interface{}{
		"snapshots": snapshots,
	}

	if err := setResponse(response, w); err != nil {
		setErrorResponse("getSnapshots: failed to set response", 500, err, w)
		return
	}
}

func SetupHandler(router *mux.Router, runSvc *services.RunService, dataDir string, polygonApiKey string) {
	runService = runSvc
	dataDirectory = dataDir

	if polygonApiKey != "" {
		fetcher = services.NewPolygonDataFetcher(polygonApiKey)
	}

	queryDecoder.IgnoreUnknownKeys(true)

	router.HandleFunc("", handleBacktests)
	router.HandleFunc("/{id}", handleBacktest)
	router.HandleFunc("/{id}/trades", handleTrades)
	router.HandleFunc("/{id}/snapshots", handleSnapshots)
	router.HandleFunc("/{id}/stream", handleStream)
}
