package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/carscout-ai/carscout/internal/queue"
)

// Worker processes tasks for a single listing, one at a time, so that
// stage transitions for that listing are strictly ordered (§5's per-key
// ordering guarantee — no ordering is implied across listings).
type Worker struct {
	listingID uuid.UUID
	processor *Processor

	in chan queue.Task

	OnResult   func(ticketID string, result queue.Result)
	OnSettle   func(task queue.Task, result queue.Result)
	OnComplete func()
	OnRetry    func()

	processed  atomic.Int64
	lastRunAt  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WorkerStats is surfaced by debug/admin endpoints.
type WorkerStats struct {
	ListingID  string `json:"listing_id"`
	QueueDepth int    `json:"queue_depth"`
	Processed  int64  `json:"processed"`
	LastRunAt  string `json:"last_run_at,omitempty"`
	IdleFor    string `json:"idle_for,omitempty"`
}

func NewWorker(listingID uuid.UUID, processor *Processor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		listingID: listingID,
		processor: processor,
		in:        make(chan queue.Task, 64),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}

// Submit enqueues a task for this listing. Blocks only if the per-worker
// buffer (64 pending stage transitions for one listing) is saturated.
func (w *Worker) Submit(task queue.Task) {
	select {
	case w.in <- task:
	case <-w.ctx.Done():
	}
}

func (w *Worker) Stats() WorkerStats {
	last := time.Unix(w.lastRunAt.Load(), 0)
	stats := WorkerStats{
		ListingID:  w.listingID.String(),
		QueueDepth: len(w.in),
		Processed:  w.processed.Load(),
	}
	if !last.IsZero() && last.Unix() > 0 {
		stats.LastRunAt = last.Format(time.RFC3339)
		stats.IdleFor = time.Since(last).Round(time.Second).String()
	}
	return stats
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.in:
			result := w.processor.Process(w.ctx, task)

			w.processed.Add(1)
			w.lastRunAt.Store(time.Now().Unix())

			if w.OnResult != nil {
				w.OnResult(task.ID.String(), result)
			}
			if w.OnSettle != nil {
				w.OnSettle(task, result)
			}
			if w.OnComplete != nil {
				w.OnComplete()
			}
		}
	}
}
