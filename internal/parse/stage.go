package parse

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/carscout-ai/carscout/internal/queue"
)

// Stage implements pipeline.Stage for the parse step (§4.2): load the raw
// blob, run the source's extractor, write a draft NormalizedListing, and
// enqueue normalize — all inside Store.SaveDraft's transaction.
type Stage struct {
	store      *Store
	blobs      blobReader
	registry   *Registry
	deadline   time.Duration
}

type blobReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

func NewStage(store *Store, blobs blobReader, registry *Registry) *Stage {
	return &Stage{store: store, blobs: blobs, registry: registry, deadline: 10 * time.Second}
}

func (s *Stage) Name() queue.Stage { return queue.StageParse }

func (s *Stage) Deadline() time.Duration { return s.deadline }

func (s *Stage) Run(ctx context.Context, listingID uuid.UUID) queue.Result {
	raw, err := s.store.loadRaw(ctx, listingID)
	if err != nil {
		return queue.Result{Outcome: queue.OutcomeDeadLetter, Reason: "raw listing not found: " + err.Error()}
	}

	extractor, ok := s.registry.Get(raw.SourceID)
	if !ok {
		return queue.Result{Outcome: queue.OutcomeDeadLetter, Reason: ErrNoExtractor{SourceID: raw.SourceID}.Error()}
	}

	blob, err := s.blobs.Get(ctx, raw.RawBlobKey)
	if err != nil {
		return s.fail(ctx, listingID, "load blob: "+err.Error())
	}

	draft, err := extractor.Extract(ctx, blob)
	if err != nil {
		return s.fail(ctx, listingID, "extract: "+err.Error())
	}

	if err := s.store.SaveDraft(ctx, listingID, draft); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return queue.Result{Outcome: queue.OutcomeRetry, Reason: "save draft timed out"}
		}
		return queue.Result{Outcome: queue.OutcomeRetry, Reason: "save draft: " + err.Error()}
	}

	_ = s.store.ClearFailures(ctx, listingID)
	return queue.Result{Outcome: queue.OutcomeDone, NextStage: queue.StageNormalize}
}

func (s *Stage) fail(ctx context.Context, listingID uuid.UUID, reason string) queue.Result {
	permanent, err := s.store.RecordFailure(ctx, listingID)
	if err != nil {
		return queue.Result{Outcome: queue.OutcomeRetry, Reason: reason}
	}
	if permanent {
		return queue.Result{Outcome: queue.OutcomeDeadLetter, Reason: reason + " (permanent after repeated failures)"}
	}
	return queue.Result{Outcome: queue.OutcomeRetry, Reason: reason}
}
