package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carscout-ai/carscout/internal/metrics"
	"github.com/carscout-ai/carscout/internal/queue"
	"github.com/carscout-ai/carscout/internal/tracing"
)

// Processor runs one task to completion, retrying transient failures with
// exponential backoff and jitter in place of the teacher's manual
// 1<<attempt loop.
type Processor struct {
	registry     *Registry
	logger       *slog.Logger
	maxRetries   int
	retryBackoff time.Duration
	onRetry      func()
}

func NewProcessor(registry *Registry, logger *slog.Logger, maxRetries int, retryBackoff time.Duration) *Processor {
	return &Processor{
		registry:     registry,
		logger:       logger,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
	}
}

// Process runs task.Stage against task.ListingID, retrying on
// queue.OutcomeRetry up to maxRetries, and reports the final outcome.
func (p *Processor) Process(ctx context.Context, task queue.Task) queue.Result {
	start := time.Now()

	ctx, span := tracing.StartSpan(ctx, "pipeline."+string(task.Stage))
	defer span.End()
	span.SetAttributes(
		attribute.String("listing_id", task.ListingID.String()),
		attribute.String("stage", string(task.Stage)),
		attribute.Int("attempt", task.Attempt),
	)

	stage, ok := p.registry.Get(task.Stage)
	if !ok {
		tracing.RecordError(ctx, ErrUnknownStage)
		return queue.Result{Outcome: queue.OutcomeDeadLetter, Reason: ErrUnknownStage.Error()}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.retryBackoff
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0 // bounded by maxRetries, not wall-clock

	var result queue.Result
	var retries int

attempts:
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		stageCtx, cancel := context.WithTimeout(ctx, stage.Deadline())
		result = stage.Run(stageCtx, task.ListingID)
		cancel()

		if result.Outcome != queue.OutcomeRetry {
			break
		}

		retries++
		if p.onRetry != nil {
			p.onRetry()
		}
		metrics.PipelineRetriesTotal.WithLabelValues(string(task.Stage)).Inc()

		wait := bo.NextBackOff()
		p.logger.Debug("pipeline_stage_retry",
			slog.String("stage", string(task.Stage)),
			slog.String("listing_id", task.ListingID.String()),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", wait),
		)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			result = queue.Result{Outcome: queue.OutcomeDeadLetter, Reason: "context cancelled during retry wait"}
			break attempts
		}
	}

	if result.Outcome == queue.OutcomeRetry {
		// Exhausted the retry budget.
		result.Outcome = queue.OutcomeDeadLetter
		if result.Reason == "" {
			result.Reason = "retry budget exhausted"
		}
	}

	duration := time.Since(start)
	metrics.PipelineStageDuration.WithLabelValues(string(task.Stage)).Observe(duration.Seconds())
	metrics.PipelineStageOutcomeTotal.WithLabelValues(string(task.Stage), string(result.Outcome)).Inc()

	if result.Outcome == queue.OutcomeDeadLetter {
		tracing.RecordError(ctx, errors.New(result.Reason))
	}

	p.logger.Info("pipeline_stage_completed",
		slog.String("stage", string(task.Stage)),
		slog.String("listing_id", task.ListingID.String()),
		slog.String("outcome", string(result.Outcome)),
		slog.Int("retries", retries),
		slog.Duration("duration", duration),
	)

	return result
}
