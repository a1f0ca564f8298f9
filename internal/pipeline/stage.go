package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carscout-ai/carscout/internal/queue"
)

// Stage is one pipeline stage (scrape, parse, normalize, ...). Each
// implementation owns its own DB access, including enqueuing the next
// stage's task inside the same transaction as its own writes (§5's
// transactional outbox pattern) — the Run return value only tells the
// worker loop how to account for the attempt, it does not itself enqueue
// anything.
type Stage interface {
	Name() queue.Stage
	Deadline() time.Duration
	Run(ctx context.Context, listingID uuid.UUID) queue.Result
}

// Registry maps stage names to their implementations. A Task whose Stage
// has no entry dead-letters immediately with ErrUnknownStage.
type Registry struct {
	stages map[queue.Stage]Stage
}

func NewRegistry() *Registry {
	return &Registry{stages: make(map[queue.Stage]Stage)}
}

func (r *Registry) Register(s Stage) {
	r.stages[s.Name()] = s
}

func (r *Registry) Get(name queue.Stage) (Stage, bool) {
	s, ok := r.stages[name]
	return s, ok
}
