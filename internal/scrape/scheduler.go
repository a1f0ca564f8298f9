package scrape

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/carscout-ai/carscout/internal/domain"
	"github.com/carscout-ai/carscout/internal/metrics"
)

// Scheduler ticks every enabled source on its own crawl interval,
// fanning out per-source work with errgroup the way the teacher pack's
// worker pools do, and idempotent by (source_id, tick_bucket) so a
// restart or duplicate tick never double-scrapes (§4.1, §8).
type Scheduler struct {
	store    *Store
	adapters map[uuid.UUID]Adapter
	cfg      Config
	logger   *slog.Logger

	cancel context.CancelFunc
}

func NewScheduler(store *Store, adapters map[uuid.UUID]Adapter, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: store, adapters: adapters, cfg: cfg, logger: logger}
}

// Run polls every interval for enabled sources and fires a tick for any
// whose crawl interval has elapsed. It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, pollInterval time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.tickAll(ctx, now)
		}
	}
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) tickAll(ctx context.Context, now time.Time) {
	sources, err := s.store.EnabledSources(ctx)
	if err != nil {
		s.logger.Error("scrape_sources_list_failed", "error", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			s.tickSource(gctx, src, now)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) tickSource(ctx context.Context, src domain.Source, now time.Time) {
	bucket := TickBucket(now, src.CrawlInterval)
	first, err := s.store.TickSeen(ctx, src.ID, bucket)
	if err != nil {
		s.logger.Error("scrape_tick_seen_failed", "source", src.Name, "error", err)
		return
	}
	if !first {
		return
	}

	rate, err := s.store.ErrorRate(ctx, src.ID, s.cfg.ErrorWindow)
	if err == nil && rate > s.cfg.ErrorPauseRate {
		s.logger.Warn("scrape_source_paused", "source", src.Name, "error_rate", rate)
		_ = s.store.SetPaused(ctx, src.ID, true)
		metrics.SourcesPausedTotal.Inc()
		return
	}

	adapter, ok := s.adapters[src.ID]
	if !ok {
		s.logger.Warn("scrape_no_adapter", "source", src.Name)
		return
	}

	if err := s.runTick(ctx, src, adapter); err != nil {
		s.logger.Error("scrape_tick_failed", "source", src.Name, "error", err)
		_ = s.store.RecordOutcome(ctx, src.ID, false)
		metrics.ScrapeRecordsTotal.WithLabelValues(src.Name, "error").Inc()
		return
	}
	_ = s.store.RecordOutcome(ctx, src.ID, true)
}

// runTick walks one page of ListRecent, fetches and upserts each record,
// retrying transient transport errors with exponential backoff (the
// teacher's OCC retry shape, generalized to scrape-adapter calls).
func (s *Scheduler) runTick(ctx context.Context, src domain.Source, adapter Adapter) error {
	cursor := ""
	records, _, err := s.callListRecent(ctx, adapter, cursor)
	if err != nil {
		return err
	}

	for _, rec := range records {
		rec.SourceID = src.ID
		if rec.ObservedAt.IsZero() {
			rec.ObservedAt = time.Now().UTC()
		}

		raw, fetchErr := s.callFetchDetail(ctx, adapter, rec.URL)
		if fetchErr != nil {
			s.logger.Warn("scrape_fetch_detail_failed", "source", src.Name, "url", rec.URL, "error", fetchErr)
			continue
		}

		hash := ContentHash(raw)
		_, isNew, err := s.store.Upsert(ctx, rec, hash)
		if err != nil {
			s.logger.Error("scrape_upsert_failed", "source", src.Name, "url", rec.URL, "error", err)
			continue
		}
		outcome := "updated"
		if isNew {
			outcome = "new"
		}
		metrics.ScrapeRecordsTotal.WithLabelValues(src.Name, outcome).Inc()
	}
	return nil
}

func (s *Scheduler) callListRecent(ctx context.Context, adapter Adapter, cursor string) ([]Record, string, error) {
	var records []Record
	var next string
	op := func() error {
		var err error
		records, next, err = adapter.ListRecent(ctx, cursor)
		return err
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.cfg.MaxRetries))
	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	return records, next, err
}

func (s *Scheduler) callFetchDetail(ctx context.Context, adapter Adapter, url string) ([]byte, error) {
	var raw []byte
	op := func() error {
		var err error
		raw, err = adapter.FetchDetail(ctx, url)
		return err
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.cfg.MaxRetries))
	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	return raw, err
}
