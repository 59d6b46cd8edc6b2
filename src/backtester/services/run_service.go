package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kataras/go-events"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backtest-engine/src/backtester/models"
	"github.com/jiaming2012/backtest-engine/src/eventpubsub"
)

// SnapshotTopic is the per-run emitter topic carrying each bar's snapshot.
func SnapshotTopic(id uuid.UUID) events.EventName {
	return events.EventName(fmt.Sprintf("backtest:%s:snapshot", id))
}

// DoneTopic fires once when the run reaches a terminal state.
func DoneTopic(id uuid.UUID) events.EventName {
	return events.EventName(fmt.Sprintf("backtest:%s:done", id))
}

// BacktestRun wraps one orchestrator with the bookkeeping the API needs:
// identity, cancellation and a read-side view of progress. The run goroutine
// is the only writer of the underlying result; readers see it only after the
// terminal state is published.
type BacktestRun struct {
	ID        uuid.UUID
	Strategy  string
	CreatedAt time.Time

	orchestrator *models.Orchestrator
	cancel       context.CancelFunc
	done         chan struct{}

	mu            sync.RWMutex
	status        models.RunStatus
	barsProcessed int
}

func (r *BacktestRun) Status() models.RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.status
}

func (r *BacktestRun) BarsProcessed() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.barsProcessed
}

// Done is closed when the run reaches a terminal state.
func (r *BacktestRun) Done() <-chan struct{} {
	return r.done
}

// Result returns the finalized result, or nil while the run is still
// pending or running.
func (r *BacktestRun) Result() *models.BacktestResult {
	if !r.Status().IsTerminal() {
		return nil
	}

	return r.orchestrator.Result()
}

// RunService is the in-memory registry of backtest runs. Each run executes
// on its own goroutine with no shared mutable state between runs; the
// emitter relays per-bar snapshots to streaming consumers.
type RunService struct {
	mutex   sync.RWMutex
	runs    map[uuid.UUID]*BacktestRun
	emitter events.EventEmmiter
}

func NewRunService() *RunService {
	return &RunService{
		runs:    make(map[uuid.UUID]*BacktestRun),
		emitter: events.New(),
	}
}

func (s *RunService) Emitter() events.EventEmmiter {
	return s.emitter
}

func (s *RunService) CreateRun(config *models.BacktestConfig, feed *models.DataFeed, strat models.Strategy) (*BacktestRun, error) {
	orchestrator, err := models.NewOrchestrator(config, feed, strat)
	if err != nil {
		return nil, fmt.Errorf("error creating orchestrator: %w", err)
	}

	run := &BacktestRun{
		ID:           uuid.New(),
		Strategy:     strat.Name(),
		CreatedAt:    time.Now(),
		orchestrator: orchestrator,
		done:         make(chan struct{}),
		status:       models.RunStatusPending,
	}

	s.mutex.Lock()
	s.runs[run.ID] = run
	s.mutex.Unlock()

	log.Infof("created run %s with strategy %s", run.ID, run.Strategy)

	return run, nil
}

func (s *RunService) GetRun(id uuid.UUID) (*BacktestRun, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	run, found := s.runs[id]
	return run, found
}

func (s *RunService) ListRuns() []*BacktestRun {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	runs := make([]*BacktestRun, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})

	return runs
}

// StartRun launches the run's goroutine. A run starts at most once.
func (s *RunService) StartRun(id uuid.UUID) error {
	run, found := s.GetRun(id)
	if !found {
		return fmt.Errorf("run %s not found", id)
	}

	run.mu.Lock()
	if run.cancel != nil {
		run.mu.Unlock()
		return fmt.Errorf("run %s already started", id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	run.cancel = cancel
	run.status = models.RunStatusRunning
	run.mu.Unlock()

	run.orchestrator.SetSnapshotCallback(func(snapshot *models.PortfolioSnapshot) {
		run.mu.Lock()
		run.barsProcessed++
		run.mu.Unlock()

		s.emitter.Emit(SnapshotTopic(run.ID), snapshot)
	})

	eventpubsub.Publish(eventpubsub.RunStartedEvent, run.ID)

	go func() {
		defer cancel()

		result, err := run.orchestrator.Run(ctx)

		run.mu.Lock()
		run.status = result.Status
		run.mu.Unlock()

		if err != nil {
			log.Errorf("run %s finished with error: %v", run.ID, err)
			eventpubsub.Publish(eventpubsub.RunFailedEvent, run.ID)
		} else {
			eventpubsub.Publish(eventpubsub.RunCompletedEvent, run.ID)
		}

		close(run.done)
		s.emitter.Emit(DoneTopic(run.ID), result.Status)
	}()

	return nil
}

// CancelRun requests a cooperative stop; the run halts between bars and
// finalizes as failed with its partial history intact.
func (s *RunService) CancelRun(id uuid.UUID) error {
	run, found := s.GetRun(id)
	if !found {
		return fmt.Errorf("run %s not found", id)
	}

	run.mu.RLock()
	cancel := run.cancel
	run.mu.RUnlock()

	if cancel == nil {
		return fmt.Errorf("run %s has not started", id)
	}

	cancel()
	eventpubsub.Publish(eventpubsub.RunCanceledEvent, id)

	return nil
}
