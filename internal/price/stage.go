package price

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carscout-ai/carscout/internal/queue"
)

const modelVersion = "v1"

// Stage implements pipeline.Stage for price (§4.5): walk the relaxation
// ladder until a comparable sample of 30 is reached or the ladder is
// exhausted, compute Stats, and persist.
type Stage struct {
	store    *Store
	deadline time.Duration
}

func NewStage(store *Store) *Stage {
	return &Stage{store: store, deadline: 15 * time.Second}
}

func (s *Stage) Name() queue.Stage       { return queue.StagePrice }
func (s *Stage) Deadline() time.Duration { return s.deadline }

func (s *Stage) Run(ctx context.Context, listingID uuid.UUID) queue.Result {
	target, err := s.store.loadTarget(ctx, listingID)
	if err != nil {
		return queue.Result{Outcome: queue.OutcomeDeadLetter, Reason: "load target: " + err.Error()}
	}

	now := time.Now().UTC()
	var comparables []Comparable
	for _, f := range RelaxationSteps() {
		batch, err := s.store.loadComparables(ctx, listingID, target, f, now)
		if err != nil {
			return queue.Result{Outcome: queue.OutcomeRetry, Reason: "load comparables: " + err.Error()}
		}
		comparables = batch
		if len(comparables) >= minSampleForConfidence {
			break
		}
	}

	stats := Compute(comparables, target.PriceBGN)
	if err := s.store.SaveResult(ctx, listingID, stats, target.PriceBGN, modelVersion); err != nil {
		return queue.Result{Outcome: queue.OutcomeRetry, Reason: "save result: " + err.Error()}
	}
	return queue.Result{Outcome: queue.OutcomeDone, NextStage: queue.StageRisk}
}
