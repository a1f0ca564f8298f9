package parse

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carscout-ai/carscout/internal/blobstore"
	"github.com/carscout-ai/carscout/internal/queue"
)

const maxConsecutiveParseErrors = 5

// Store is the Postgres + blobstore boundary for the parse stage.
type Store struct {
	db    *pgxpool.Pool
	blobs blobstore.Store
	tasks *queue.Store
}

func NewStore(db *pgxpool.Pool, blobs blobstore.Store, tasks *queue.Store) *Store {
	return &Store{db: db, blobs: blobs, tasks: tasks}
}

type rawListing struct {
	ID          uuid.UUID
	SourceID    uuid.UUID
	RawBlobKey  string
	ParseErrors int
}

func (s *Store) loadRaw(ctx context.Context, id uuid.UUID) (rawListing, error) {
	var r rawListing
	err := s.db.QueryRow(ctx, `
		SELECT id, source_id, raw_blob_key, parse_errors FROM raw_listings WHERE id = $1
	`, id).Scan(&r.ID, &r.SourceID, &r.RawBlobKey, &r.ParseErrors)
	if errors.Is(err, pgx.ErrNoRows) {
		return rawListing{}, fmt.Errorf("raw listing %s not found: %w", id, err)
	}
	return r, err
}

// SaveDraft persists the draft NormalizedListing with is_normalized=false
// and enqueues normalize, in one transaction (§4.2, outbox pattern). The
// NormalizedListing shares its id with the RawListing it was parsed from,
// so every later stage keys on the same listing id.
func (s *Store) SaveDraft(ctx context.Context, rawID uuid.UUID, d Draft) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO normalized_listings
			(id, raw_id, title, description, price_raw, currency_raw, year_raw, mileage_raw,
			 fuel_raw, gearbox_raw, body_raw, region_raw, seller_phone_raw, seller_url,
			 features, is_normalized, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, false, 1)
		ON CONFLICT (raw_id) DO UPDATE SET
			title = EXCLUDED.title, description = EXCLUDED.description,
			price_raw = EXCLUDED.price_raw, currency_raw = EXCLUDED.currency_raw,
			year_raw = EXCLUDED.year_raw, mileage_raw = EXCLUDED.mileage_raw,
			fuel_raw = EXCLUDED.fuel_raw, gearbox_raw = EXCLUDED.gearbox_raw,
			body_raw = EXCLUDED.body_raw, region_raw = EXCLUDED.region_raw,
			seller_phone_raw = EXCLUDED.seller_phone_raw, seller_url = EXCLUDED.seller_url,
			features = EXCLUDED.features, is_normalized = false,
			version = normalized_listings.version + 1
	`, rawID, rawID, d.Title, d.Description, d.PriceRaw, d.CurrencyRaw, d.YearRaw, d.MileageRaw,
		d.FuelRaw, d.GearboxRaw, d.BodyRaw, d.RegionRaw, d.PhoneRaw, d.SellerURL, d.Features)
	if err != nil {
		return err
	}

	for i, url := range d.ImageURLs {
		if i >= 5 {
			break
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO images (id, listing_id, url, index)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (listing_id, index) DO UPDATE SET url = EXCLUDED.url
		`, uuid.New(), rawID, url, i)
		if err != nil {
			return err
		}
	}

	if err := s.tasks.Enqueue(ctx, tx, queue.Task{ListingID: rawID, Stage: queue.StageNormalize}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RecordFailure increments RawListing.parse_errors and, once it crosses
// maxConsecutiveParseErrors, marks the listing inactive permanently
// (§4.2 "permanent failure after N consecutive errors").
func (s *Store) RecordFailure(ctx context.Context, rawID uuid.UUID) (permanent bool, err error) {
	var count int
	err = s.db.QueryRow(ctx, `
		UPDATE raw_listings SET parse_errors = parse_errors + 1 WHERE id = $1
		RETURNING parse_errors
	`, rawID).Scan(&count)
	if err != nil {
		return false, err
	}
	if count >= maxConsecutiveParseErrors {
		_, err = s.db.Exec(ctx, `UPDATE raw_listings SET is_active = false WHERE id = $1`, rawID)
		return true, err
	}
	return false, nil
}

// ClearFailures resets parse_errors to 0 on a successful parse.
func (s *Store) ClearFailures(ctx context.Context, rawID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE raw_listings SET parse_errors = 0 WHERE id = $1`, rawID)
	return err
}
