package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/carscout-ai/carscout/internal/metrics"
	"github.com/carscout-ai/carscout/internal/queue"
)

// Engine dispatches dequeued tasks to per-listing Workers, guaranteeing
// strict ordering of stage transitions within a listing while letting
// unrelated listings progress fully in parallel (§5).
type Engine struct {
	store  *queue.Store
	logger *slog.Logger

	registry     *Registry
	pollInterval time.Duration
	batchSize    int
	maxRetries   int
	retryBackoff time.Duration

	workers   map[uuid.UUID]*Worker
	workersMu sync.RWMutex

	results   map[string]chan queue.Result
	resultsMu sync.RWMutex

	totalProcessed atomic.Int64
	totalRetries   atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// syncMode runs Submit inline without the poll loop, for tests.
	syncMode bool
}

type EngineOption func(*Engine)

func WithSyncMode(sync bool) EngineOption {
	return func(e *Engine) { e.syncMode = sync }
}

func WithPollInterval(d time.Duration) EngineOption {
	return func(e *Engine) { e.pollInterval = d }
}

func WithBatchSize(n int) EngineOption {
	return func(e *Engine) { e.batchSize = n }
}

func WithMaxRetries(n int) EngineOption {
	return func(e *Engine) { e.maxRetries = n }
}

func WithRetryBackoff(d time.Duration) EngineOption {
	return func(e *Engine) { e.retryBackoff = d }
}

func NewEngine(store *queue.Store, logger *slog.Logger, registry *Registry, opts ...EngineOption) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		store:        store,
		logger:       logger,
		registry:     registry,
		pollInterval: 500 * time.Millisecond,
		batchSize:    64,
		maxRetries:   3,
		retryBackoff: 100 * time.Millisecond,
		workers:      make(map[uuid.UUID]*Worker),
		results:      make(map[string]chan queue.Result),
		ctx:          ctx,
		cancel:       cancel,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start begins the polling dispatcher goroutine.
func (e *Engine) Start() {
	if e.syncMode {
		e.logger.Info("pipeline_engine_started", slog.Bool("sync_mode", true))
		return
	}

	e.wg.Add(1)
	go e.dispatcher()

	e.logger.Info("pipeline_engine_started",
		slog.Duration("poll_interval", e.pollInterval),
		slog.Int("batch_size", e.batchSize),
	)
}

func (e *Engine) Stop() {
	e.logger.Info("pipeline_engine_stopping")
	e.cancel()
	e.wg.Wait()

	e.workersMu.Lock()
	for _, w := range e.workers {
		w.Stop()
	}
	e.workersMu.Unlock()

	e.logger.Info("pipeline_engine_stopped",
		slog.Int64("total_processed", e.totalProcessed.Load()),
	)
}

// Submit runs a task synchronously in sync mode (tests/admin requeue),
// otherwise routes it straight to the owning listing's worker.
func (e *Engine) Submit(task queue.Task) queue.Result {
	if e.syncMode {
		processor := NewProcessor(e.registry, e.logger, e.maxRetries, e.retryBackoff)
		return processor.Process(context.Background(), task)
	}

	e.routeToWorker(task)
	return queue.Result{}
}

// GetResult blocks until the result a worker delivers under ticketID (the
// task id's string form) arrives, or until timeout elapses.
func (e *Engine) GetResult(ticketID string, timeout time.Duration) (queue.Result, error) {
	e.resultsMu.Lock()
	ch, exists := e.results[ticketID]
	if !exists {
		ch = make(chan queue.Result, 1)
		e.results[ticketID] = ch
	}
	e.resultsMu.Unlock()

	select {
	case result := <-ch:
		e.cleanupResult(ticketID)
		return result, nil
	case <-time.After(timeout):
		e.cleanupResult(ticketID)
		return queue.Result{}, ErrTimeout
	}
}

func (e *Engine) cleanupResult(ticketID string) {
	e.resultsMu.Lock()
	delete(e.results, ticketID)
	e.resultsMu.Unlock()
}

func (e *Engine) deliverResult(ticketID string, result queue.Result) {
	e.resultsMu.Lock()
	ch, exists := e.results[ticketID]
	if !exists {
		ch = make(chan queue.Result, 1)
		e.results[ticketID] = ch
	}
	e.resultsMu.Unlock()

	select {
	case ch <- result:
	default:
	}
}

// dispatcher polls the durable queue and hands claimed tasks to workers.
func (e *Engine) dispatcher() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			tasks, err := e.store.Dequeue(e.ctx, e.batchSize)
			if err != nil {
				e.logger.Error("pipeline_dequeue_failed", slog.String("error", err.Error()))
				continue
			}
			for _, t := range tasks {
				e.routeToWorker(t)
			}
		}
	}
}

func (e *Engine) routeToWorker(task queue.Task) {
	e.workersMu.Lock()
	worker, exists := e.workers[task.ListingID]
	if !exists {
		processor := NewProcessor(e.registry, e.logger, e.maxRetries, e.retryBackoff)
		processor.onRetry = func() { e.totalRetries.Add(1) }

		worker = NewWorker(task.ListingID, processor)
		worker.OnResult = e.deliverResult
		worker.OnSettle = e.settleTask
		worker.OnComplete = func() { e.totalProcessed.Add(1) }
		worker.OnRetry = func() { e.totalRetries.Add(1) }

		e.workers[task.ListingID] = worker
		worker.Start()
		metrics.PipelineWorkersActive.Set(float64(len(e.workers)))
	}
	e.workersMu.Unlock()

	worker.Submit(task)
}

// settleTask acks the durable queue once a worker finishes a task: the
// next stage's own enqueue already happened inside the stage's own
// transaction, so this only needs to retire or dead-letter the current
// row. Skipped entirely in sync mode, where there is no durable row.
func (e *Engine) settleTask(task queue.Task, result queue.Result) {
	if e.store == nil {
		return
	}

	ctx := context.Background()
	switch result.Outcome {
	case queue.OutcomeDone, queue.OutcomeSkip:
		if err := e.store.Complete(ctx, task.ID); err != nil {
			e.logger.Error("pipeline_settle_complete_failed", slog.String("error", err.Error()))
		}
	case queue.OutcomeDeadLetter:
		if err := e.store.DeadLetter(ctx, task.ID, result.Reason); err != nil {
			e.logger.Error("pipeline_settle_deadletter_failed", slog.String("error", err.Error()))
		}
	case queue.OutcomeRetry:
		// Processor already exhausted in-process retries before
		// returning; anything still "retry" here is a bug in a stage.
		if err := e.store.DeadLetter(ctx, task.ID, "unexpected retry outcome after processor exhaustion"); err != nil {
			e.logger.Error("pipeline_settle_deadletter_failed", slog.String("error", err.Error()))
		}
	}
}

// Stats reports engine-wide statistics for the /internal debug surface.
func (e *Engine) Stats() EngineStats {
	e.workersMu.RLock()
	workerCount := len(e.workers)
	workerStats := make([]WorkerStats, 0, workerCount)
	for _, w := range e.workers {
		workerStats = append(workerStats, w.Stats())
	}
	e.workersMu.RUnlock()

	return EngineStats{
		ActiveWorkers:  workerCount,
		TotalProcessed: e.totalProcessed.Load(),
		TotalRetries:   e.totalRetries.Load(),
		Workers:        workerStats,
	}
}

type EngineStats struct {
	ActiveWorkers  int           `json:"active_workers"`
	TotalProcessed int64         `json:"total_processed"`
	TotalRetries   int64         `json:"total_retries"`
	Workers        []WorkerStats `json:"workers"`
}
