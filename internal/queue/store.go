package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carscout-ai/carscout/internal/metrics"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so Enqueue can be
// called either standalone or as part of a caller-owned transaction — the
// shape the outbox pattern requires.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Store is the Postgres-backed outbox table. Schema (migration-owned):
//
//	CREATE TABLE pipeline_tasks (
//	    id          uuid PRIMARY KEY,
//	    listing_id  uuid NOT NULL,
//	    stage       text NOT NULL,
//	    attempt     int  NOT NULL DEFAULT 0,
//	    trace_id    text,
//	    not_before  timestamptz NOT NULL DEFAULT now(),
//	    created_at  timestamptz NOT NULL DEFAULT now(),
//	    locked_at   timestamptz,
//	    status      text NOT NULL DEFAULT 'pending' -- pending|in_progress|dead_letter
//	);
//	CREATE INDEX pipeline_tasks_ready_idx ON pipeline_tasks (not_before) WHERE status = 'pending';
type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Enqueue inserts a task. Pass a pgx.Tx to make the insert part of the
// caller's transaction (the outbox pattern); pass the pool for a standalone
// enqueue such as a scheduler tick or an admin requeue.
func (s *Store) Enqueue(ctx context.Context, q Querier, t Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.NotBefore.IsZero() {
		t.NotBefore = t.CreatedAt
	}

	_, err := q.Exec(ctx, `
		INSERT INTO pipeline_tasks (id, listing_id, stage, attempt, trace_id, not_before, created_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
	`, t.ID, t.ListingID, string(t.Stage), t.Attempt, t.TraceID, t.NotBefore, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}

	metrics.DBQueryTotal.WithLabelValues("insert", "pipeline_tasks").Inc()
	metrics.PipelineQueueDepth.WithLabelValues(string(t.Stage)).Inc()
	return nil
}

// Dequeue claims up to limit ready tasks with SKIP LOCKED so concurrent
// workers never contend on the same row.
func (s *Store) Dequeue(ctx context.Context, limit int) ([]Task, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, listing_id, stage, attempt, trace_id, not_before, created_at
		FROM pipeline_tasks
		WHERE status = 'pending' AND not_before <= now()
		ORDER BY not_before
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue select: %w", err)
	}

	var tasks []Task
	var ids []uuid.UUID
	for rows.Next() {
		var t Task
		var stage string
		if err := rows.Scan(&t.ID, &t.ListingID, &stage, &t.Attempt, &t.TraceID, &t.NotBefore, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		t.Stage = Stage(stage)
		tasks = append(tasks, t)
		ids = append(ids, t.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE pipeline_tasks SET status = 'in_progress', locked_at = now()
			WHERE id = ANY($1)
		`, ids); err != nil {
			return nil, fmt.Errorf("dequeue lock: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	metrics.DBQueryTotal.WithLabelValues("select", "pipeline_tasks").Inc()
	return tasks, nil
}

// Complete removes a task once its stage has finished successfully.
func (s *Store) Complete(ctx context.Context, taskID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM pipeline_tasks WHERE id = $1`, taskID)
	return err
}

// Retry reschedules a task for a later attempt after not_before.
func (s *Store) Retry(ctx context.Context, taskID uuid.UUID, attempt int, notBefore time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE pipeline_tasks SET status = 'pending', attempt = $2, not_before = $3, locked_at = NULL
		WHERE id = $1
	`, taskID, attempt, notBefore)
	return err
}

// DeadLetter marks a task terminal after exceeding its retry budget. This
// surfaces as an operational alert per §7 ("invariant violations ... never
// silently retried") rather than being deleted, so it stays queryable.
func (s *Store) DeadLetter(ctx context.Context, taskID uuid.UUID, reason string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE pipeline_tasks SET status = 'dead_letter', locked_at = NULL
		WHERE id = $1
	`, taskID)
	if err != nil {
		return err
	}
	metrics.PipelineDeadLettersTotal.WithLabelValues(reason).Inc()
	return nil
}

// Depth reports the pending queue depth per stage, used by the debug
// handler and the pipeline_queue_depth gauge.
func (s *Store) Depth(ctx context.Context) (map[Stage]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT stage, count(*) FROM pipeline_tasks WHERE status = 'pending' GROUP BY stage
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	depth := make(map[Stage]int)
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		depth[Stage(stage)] = count
	}
	return depth, rows.Err()
}
