package score

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carscout-ai/carscout/internal/queue"
)

// Stage implements pipeline.Stage for score (§4.7).
type Stage struct {
	store    *Store
	deadline time.Duration
}

func NewStage(store *Store) *Stage {
	return &Stage{store: store, deadline: 5 * time.Second}
}

func (s *Stage) Name() queue.Stage       { return queue.StageScore }
func (s *Stage) Deadline() time.Duration { return s.deadline }

func (s *Stage) Run(ctx context.Context, listingID uuid.UUID) queue.Result {
	row, err := s.store.loadInputs(ctx, listingID)
	if err != nil {
		return queue.Result{Outcome: queue.OutcomeDeadLetter, Reason: "load inputs: " + err.Error()}
	}

	res := Compute(Inputs{
		DiscountPct:         row.DiscountPct,
		PriceConfidence:     row.PriceConfidence,
		RiskLevel:           row.RiskLevel,
		HasHardAccidentFlag: row.HasHardAccident,
		FirstSeen:           row.FirstSeen,
		Now:                 time.Now().UTC(),
		ComparableSample:    row.ComparableSample,
	})

	if err := s.store.Save(ctx, listingID, res); err != nil {
		return queue.Result{Outcome: queue.OutcomeRetry, Reason: "save: " + err.Error()}
	}
	return queue.Result{Outcome: queue.OutcomeDone}
}
