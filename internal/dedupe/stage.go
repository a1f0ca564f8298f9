package dedupe

import (
	"context"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carscout-ai/carscout/internal/queue"
)

const minHashSlots = 16

// Stage implements pipeline.Stage for dedupe (§4.4): load the target and
// a candidate pool, run the cascade, and either mark the listing a
// duplicate (terminal) or persist its signature and advance to price.
type Stage struct {
	store    *Store
	deadline time.Duration
}

func NewStage(store *Store) *Stage {
	return &Stage{store: store, deadline: 10 * time.Second}
}

func (s *Stage) Name() queue.Stage       { return queue.StageDedupe }
func (s *Stage) Deadline() time.Duration { return s.deadline }

func (s *Stage) Run(ctx context.Context, listingID uuid.UUID) queue.Result {
	row, err := s.store.loadTarget(ctx, listingID)
	if err != nil {
		return queue.Result{Outcome: queue.OutcomeDeadLetter, Reason: "load target: " + err.Error()}
	}

	trgm := Trigrams(row.Title)
	minHash := MinHashSignature(tokenize(row.Description), minHashSlots, fnvHash)
	imageHash := decodeHexHash(row.FirstImageHash)

	target := Target{
		ListingID:   listingID,
		PhoneHash:   row.PhoneHash,
		BrandID:     row.BrandID,
		ModelID:     row.ModelID,
		Year:        row.Year,
		MileageKM:   row.MileageKM,
		PriceBGN:    row.PriceBGN,
		ImagePHash:  imageHash,
		TitleTrgm:   trgm,
		DescMinHash: minHash,
	}

	candidates, err := s.store.loadCandidates(ctx, listingID, row.BrandID, row.ModelID, row.PhoneHash)
	if err != nil {
		return queue.Result{Outcome: queue.OutcomeRetry, Reason: "load candidates: " + err.Error()}
	}

	verdict := Evaluate(target, candidates)
	if verdict.IsDuplicate {
		if err := s.store.SaveDuplicate(ctx, listingID, verdict); err != nil {
			return queue.Result{Outcome: queue.OutcomeRetry, Reason: "save duplicate: " + err.Error()}
		}
		return queue.Result{Outcome: queue.OutcomeDone, Reason: "duplicate of " + verdict.DuplicateOf.String()}
	}

	if err := s.store.SaveNotDuplicate(ctx, listingID, trgm, minHash, imageHash); err != nil {
		return queue.Result{Outcome: queue.OutcomeRetry, Reason: "save signature: " + err.Error()}
	}
	return queue.Result{Outcome: queue.OutcomeDone, NextStage: queue.StagePrice}
}

func tokenize(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
