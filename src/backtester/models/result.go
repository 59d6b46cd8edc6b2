package models

import "time"

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// BacktestResult is the sole output of a run. It is created pending, moves
// to running on the first bar, and is finalized exactly once to completed or
// failed. Consumers read it only after a terminal state is reached; partial
// trades and snapshots recorded before a failure stay in place for
// diagnosis.
type BacktestResult struct {
	Status           RunStatus            `json:"status"`
	StartTime        time.Time            `json:"start_time"`
	EndTime          *time.Time           `json:"end_time,omitempty"`
	TotalSignals     int                  `json:"total_signals"`
	SignalsExecuted  int                  `json:"signals_executed"`
	Trades           []*Trade             `json:"trades"`
	PortfolioHistory []*PortfolioSnapshot `json:"portfolio_history"`
	RiskMetrics      *RiskMetrics         `json:"risk_metrics,omitempty"`
	ErrorMessage     *string              `json:"error_message,omitempty"`
}

func NewBacktestResult() *BacktestResult {
	return &BacktestResult{
		Status: RunStatusPending,
	}
}

// ExecutionRate is signals executed over total signals, 0 when the strategy
// emitted no signals.
func (r *BacktestResult) ExecutionRate() float64 {
	if r.TotalSignals == 0 {
		return 0
	}

	return float64(r.SignalsExecuted) / float64(r.TotalSignals)
}
