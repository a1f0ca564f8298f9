// Package queue implements the durable work queue every pipeline stage
// reads from and writes to: a Postgres-backed outbox table dequeued with
// `FOR UPDATE SKIP LOCKED`, so the next stage is enqueued inside the exact
// transaction that commits the current stage's side effects (§5's
// transactional outbox pattern).
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Stage names the nine pipeline stages in their fixed, strictly-ordered
// chain for a given listing (§5).
type Stage string

const (
	StageScrape     Stage = "scrape"
	StageParse      Stage = "parse"
	StageNormalize  Stage = "normalize"
	StageDedupe     Stage = "dedupe"
	StagePrice      Stage = "price"
	StageRisk       Stage = "risk"
	StageScore      Stage = "score"
	StageChannel    Stage = "channel"
	StageAlertMatch Stage = "alert_match"
)

// Task is one unit of work: a single listing id plus the stage to run on it.
type Task struct {
	ID        uuid.UUID
	ListingID uuid.UUID
	Stage     Stage
	Attempt   int
	TraceID   string
	CreatedAt time.Time
	NotBefore time.Time
}

// Outcome is the disposition of a processed task (§7 "retry|done|dead_letter|skip").
type Outcome string

const (
	OutcomeDone       Outcome = "done"
	OutcomeRetry      Outcome = "retry"
	OutcomeDeadLetter Outcome = "dead_letter"
	OutcomeSkip       Outcome = "skip"
)

// Result is what a stage runner hands back to the worker loop.
type Result struct {
	Outcome   Outcome
	NextStage Stage // enqueued only when Outcome == OutcomeDone and non-empty
	Reason    string
}
