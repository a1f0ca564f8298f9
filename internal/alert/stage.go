package alert

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carscout-ai/carscout/internal/queue"
)

// Stage implements pipeline.Stage for alert-match (§4.7/§4.9): fan an
// approved listing out against every active alert and record a match
// for each one that satisfies. This stage never enqueues a next pipeline
// stage; delivery is driven separately by Notifier's poll loop, which
// respects the plan-dependent delay.
type Stage struct {
	store    *Store
	deadline time.Duration
}

func NewStage(store *Store) *Stage {
	return &Stage{store: store, deadline: 10 * time.Second}
}

func (s *Stage) Name() queue.Stage       { return queue.StageAlertMatch }
func (s *Stage) Deadline() time.Duration { return s.deadline }

func (s *Stage) Run(ctx context.Context, listingID uuid.UUID) queue.Result {
	listing, err := s.store.LoadListing(ctx, listingID)
	if err != nil {
		return queue.Result{Outcome: queue.OutcomeDeadLetter, Reason: "load listing: " + err.Error()}
	}

	alerts, err := s.store.ActiveAlerts(ctx)
	if err != nil {
		return queue.Result{Outcome: queue.OutcomeRetry, Reason: "load active alerts: " + err.Error()}
	}

	now := time.Now().UTC()
	for _, a := range alerts {
		if !Match(a.Filters, listing) {
			continue
		}
		if _, _, err := s.store.CreateMatch(ctx, a.ID, listingID, now); err != nil {
			return queue.Result{Outcome: queue.OutcomeRetry, Reason: "create match: " + err.Error()}
		}
	}

	return queue.Result{Outcome: queue.OutcomeDone}
}
