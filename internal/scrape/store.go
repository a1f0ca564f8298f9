package scrape

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carscout-ai/carscout/internal/domain"
	"github.com/carscout-ai/carscout/internal/queue"
)

// Store is the Postgres persistence boundary for scrape: source lookup,
// the RawListing upsert (§4.1), and the per-source error-rate tracking
// that drives the pause decision (§4.1, §5).
type Store struct {
	db    *pgxpool.Pool
	tasks *queue.Store
}

func NewStore(db *pgxpool.Pool, tasks *queue.Store) *Store {
	return &Store{db: db, tasks: tasks}
}

func (s *Store) EnabledSources(ctx context.Context) ([]domain.Source, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, base_url, enabled, crawl_interval_seconds
		FROM sources WHERE enabled = true
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		var src domain.Source
		var intervalSeconds int
		if err := rows.Scan(&src.ID, &src.Name, &src.BaseURL, &src.Enabled, &intervalSeconds); err != nil {
			return nil, err
		}
		src.CrawlInterval = time.Duration(intervalSeconds) * time.Second
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// TickSeen records (source_id, tick_bucket) and reports whether this is
// the first time it's been seen, so replays of the same bucket are a
// no-op (§4.1, §6 "tick_bucket ... so replays are idempotent").
func (s *Store) TickSeen(ctx context.Context, sourceID uuid.UUID, tickBucket string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO source_ticks (source_id, tick_bucket, ticked_at)
		VALUES ($1, $2, now())
		ON CONFLICT (source_id, tick_bucket) DO NOTHING
	`, sourceID, tickBucket)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// TickBucket truncates now to the source's crawl interval, per §9's
// design note on idempotent replay keys.
func TickBucket(now time.Time, interval time.Duration) string {
	if interval <= 0 {
		interval = time.Minute
	}
	bucket := now.UTC().Truncate(interval)
	return bucket.Format(time.RFC3339)
}

// Upsert persists one observed record into RawListing per §4.1: bump
// last_seen and version on re-observation (storing the new blob key only
// if the content hash changed), or insert a fresh row on first sight.
// Enqueues the parse stage in the same transaction (outbox pattern).
func (s *Store) Upsert(ctx context.Context, rec Record, contentHash string) (domain.RawListing, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.RawListing{}, false, err
	}
	defer tx.Rollback(ctx)

	var existing domain.RawListing
	var lastHash string
	err = tx.QueryRow(ctx, `
		SELECT id, source_id, site_ad_id, url, raw_blob_key, http_status,
		       first_seen, last_seen, is_active, version, parse_errors, content_hash
		FROM raw_listings WHERE source_id = $1 AND site_ad_id = $2
		FOR UPDATE
	`, rec.SourceID, rec.SiteAdID).Scan(
		&existing.ID, &existing.SourceID, &existing.SiteAdID, &existing.URL, &existing.RawBlobKey,
		&existing.HTTPStatus, &existing.FirstSeen, &existing.LastSeen, &existing.IsActive,
		&existing.Version, &existing.ParseErrors, &lastHash,
	)

	isNew := errors.Is(err, pgx.ErrNoRows)
	if err != nil && !isNew {
		return domain.RawListing{}, false, err
	}

	var result domain.RawListing
	if isNew {
		result = domain.RawListing{
			ID:         uuid.New(),
			SourceID:   rec.SourceID,
			SiteAdID:   rec.SiteAdID,
			URL:        rec.URL,
			RawBlobKey: rec.RawBlobKey,
			HTTPStatus: rec.HTTPStatus,
			FirstSeen:  rec.ObservedAt,
			LastSeen:   rec.ObservedAt,
			IsActive:   true,
			Version:    1,
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO raw_listings
				(id, source_id, site_ad_id, url, raw_blob_key, http_status,
				 first_seen, last_seen, is_active, version, parse_errors, content_hash)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, 1, 0, $9)
		`, result.ID, result.SourceID, result.SiteAdID, result.URL, result.RawBlobKey,
			result.HTTPStatus, result.FirstSeen, result.LastSeen, contentHash)
		if err != nil {
			return domain.RawListing{}, false, err
		}
	} else {
		result = existing
		result.LastSeen = rec.ObservedAt
		result.Version++
		result.IsActive = true
		if contentHash != lastHash {
			result.RawBlobKey = rec.RawBlobKey
		}

		_, err = tx.Exec(ctx, `
			UPDATE raw_listings SET
				last_seen = $1, version = $2, is_active = true,
				raw_blob_key = $3, content_hash = $4, http_status = $5
			WHERE id = $6 AND version = $7
		`, result.LastSeen, result.Version, result.RawBlobKey, contentHash, rec.HTTPStatus, result.ID, existing.Version)
		if err != nil {
			return domain.RawListing{}, false, err
		}
	}

	if err := s.tasks.Enqueue(ctx, tx, queue.Task{
		ListingID: result.ID,
		Stage:     queue.StageParse,
	}); err != nil {
		return domain.RawListing{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.RawListing{}, false, err
	}
	return result, isNew, nil
}

// RecordOutcome tracks scrape successes/errors in a sliding window so
// ErrorRate can evaluate whether the source should be paused (§4.1).
func (s *Store) RecordOutcome(ctx context.Context, sourceID uuid.UUID, ok bool) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO source_outcomes (source_id, ok, observed_at) VALUES ($1, $2, now())
	`, sourceID, ok)
	return err
}

// ErrorRate returns the fraction of failed outcomes for sourceID within
// window.
func (s *Store) ErrorRate(ctx context.Context, sourceID uuid.UUID, window time.Duration) (float64, error) {
	var total, failed int
	err := s.db.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE NOT ok)
		FROM source_outcomes WHERE source_id = $1 AND observed_at > now() - make_interval(secs => $2)
	`, sourceID, int(window.Seconds())).Scan(&total, &failed)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return float64(failed) / float64(total), nil
}

func (s *Store) SetPaused(ctx context.Context, sourceID uuid.UUID, paused bool) error {
	_, err := s.db.Exec(ctx, `UPDATE sources SET enabled = $1 WHERE id = $2`, !paused, sourceID)
	return err
}

// ContentHash is the content-change detector the upsert compares against.
func ContentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
