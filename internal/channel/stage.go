package channel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carscout-ai/carscout/internal/messaging"
	"github.com/carscout-ai/carscout/internal/queue"
	"github.com/carscout-ai/carscout/internal/ratelimit"
)

// Stage implements pipeline.Stage for channel delivery (§4.8).
type Stage struct {
	store      *Store
	bucket     *ratelimit.Bucket
	counter    *ratelimit.Counter
	transport  messaging.Transport
	channel    string
	recipient  string
	diversity  time.Duration
	diversityCap int
	deadline   time.Duration
}

func NewStage(store *Store, bucket *ratelimit.Bucket, counter *ratelimit.Counter, transport messaging.Transport, channel, recipient string, diversityWindow time.Duration, diversityCap int) *Stage {
	return &Stage{
		store:        store,
		bucket:       bucket,
		counter:      counter,
		transport:    transport,
		channel:      channel,
		recipient:    recipient,
		diversity:    diversityWindow,
		diversityCap: diversityCap,
		deadline:     20 * time.Second,
	}
}

func (s *Stage) Name() queue.Stage       { return queue.StageChannel }
func (s *Stage) Deadline() time.Duration { return s.deadline }

func (s *Stage) Run(ctx context.Context, listingID uuid.UUID) queue.Result {
	ok, err := s.bucket.Acquire(ctx)
	if err != nil {
		return queue.Result{Outcome: queue.OutcomeRetry, Reason: "bucket acquire: " + err.Error()}
	}
	if !ok {
		return queue.Result{Outcome: queue.OutcomeRetry, Reason: "channel bucket exhausted"}
	}

	listing, err := s.store.LoadListing(ctx, listingID)
	if err != nil {
		return queue.Result{Outcome: queue.OutcomeDeadLetter, Reason: "load listing: " + err.Error()}
	}

	existing, found, err := s.store.LoadPost(ctx, s.channel, listingID)
	if err != nil {
		return queue.Result{Outcome: queue.OutcomeRetry, Reason: "load post: " + err.Error()}
	}

	if found {
		if existing.LastPriceBGN.Equal(listing.PriceBGN) {
			return queue.Result{Outcome: queue.OutcomeDone, Reason: "price unchanged, no-op"}
		}
		if err := s.transport.EditMessage(ctx, s.recipient, existing.MessageID, caption(listing)); err != nil {
			return classifyDeliveryErr(err)
		}
		if err := s.store.SavePost(ctx, s.channel, listingID, existing.MessageID, listing.PriceBGN); err != nil {
			return queue.Result{Outcome: queue.OutcomeRetry, Reason: "save post: " + err.Error()}
		}
		return queue.Result{Outcome: queue.OutcomeDone, Reason: "edited existing post with new price"}
	}

	// Diversity filter: cap posts per (brand_id, model_id) per channel
	// within the rolling window, regardless of bucket availability.
	count, err := s.store.DiversityCount(ctx, s.channel, listing.BrandID, listing.ModelID, s.diversity)
	if err != nil {
		return queue.Result{Outcome: queue.OutcomeRetry, Reason: "diversity count: " + err.Error()}
	}
	if count >= s.diversityCap {
		return queue.Result{Outcome: queue.OutcomeSkip, Reason: "diversity cap reached for brand/model on this channel"}
	}

	images := make([]messaging.Image, 0, len(listing.ImageURLs))
	for _, url := range listing.ImageURLs {
		images = append(images, messaging.Image{URL: url})
	}

	res, err := s.transport.SendMediaGroup(ctx, s.recipient, images, caption(listing), nil)
	if err != nil {
		return classifyDeliveryErr(err)
	}

	if err := s.store.SavePost(ctx, s.channel, listingID, res.MessageID, listing.PriceBGN); err != nil {
		return queue.Result{Outcome: queue.OutcomeRetry, Reason: "save post: " + err.Error()}
	}
	return queue.Result{Outcome: queue.OutcomeDone, Reason: "posted new channel message"}
}

func caption(l ListingPost) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s BGN — %s\n\n%s", l.Title, l.PriceBGN.StringFixed(0), l.Region, l.Description)
	return b.String()
}

// classifyDeliveryErr maps messaging's typed errors to queue outcomes
// (§4.8 "transient delivery errors retry with backoff. Hard failures ...
// are logged and skipped").
func classifyDeliveryErr(err error) queue.Result {
	switch err.(type) {
	case *messaging.RateLimitedError, *messaging.TransientError:
		return queue.Result{Outcome: queue.OutcomeRetry, Reason: err.Error()}
	default:
		return queue.Result{Outcome: queue.OutcomeSkip, Reason: "hard delivery failure: " + err.Error()}
	}
}
