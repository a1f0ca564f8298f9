package normalize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/carscout-ai/carscout/internal/domain"
	"github.com/carscout-ai/carscout/internal/queue"
)

// Store is the Postgres boundary for the normalize stage: loading the
// parse draft, loading the BrandModel alias table, upserting Seller,
// and writing the final NormalizedListing row.
type Store struct {
	db    *pgxpool.Pool
	tasks *queue.Store
	salt  []byte
}

func NewStore(db *pgxpool.Pool, tasks *queue.Store, phoneSalt []byte) *Store {
	return &Store{db: db, tasks: tasks, salt: phoneSalt}
}

type draftRow struct {
	RawID          uuid.UUID
	Title          string
	Description    string
	PriceRaw       string
	CurrencyRaw    string
	YearRaw        string
	MileageRaw     string
	FuelRaw        string
	GearboxRaw     string
	BodyRaw        string
	RegionRaw      string
	SellerPhoneRaw string
	SellerURL      string
	Features       []string
}

func (s *Store) loadDraft(ctx context.Context, id uuid.UUID) (draftRow, error) {
	var d draftRow
	err := s.db.QueryRow(ctx, `
		SELECT raw_id, title, description, price_raw, currency_raw, year_raw, mileage_raw,
		       fuel_raw, gearbox_raw, body_raw, region_raw, seller_phone_raw, seller_url, features
		FROM normalized_listings WHERE id = $1
	`, id).Scan(
		&d.RawID, &d.Title, &d.Description, &d.PriceRaw, &d.CurrencyRaw, &d.YearRaw, &d.MileageRaw,
		&d.FuelRaw, &d.GearboxRaw, &d.BodyRaw, &d.RegionRaw, &d.SellerPhoneRaw, &d.SellerURL, &d.Features,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return draftRow{}, fmt.Errorf("normalize: draft %s not found: %w", id, err)
	}
	return d, err
}

// LoadBrandModels returns the active alias table for the matcher.
func (s *Store) LoadBrandModels(ctx context.Context) ([]domain.BrandModel, error) {
	rows, err := s.db.Query(ctx, `
		SELECT brand_id, model_id, aliases, locale, active FROM brand_models WHERE active = true
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BrandModel
	for rows.Next() {
		var bm domain.BrandModel
		if err := rows.Scan(&bm.BrandID, &bm.ModelID, &bm.Aliases, &bm.Locale, &bm.Active); err != nil {
			return nil, err
		}
		out = append(out, bm)
	}
	return out, rows.Err()
}

// upsertSeller finds-or-creates a Seller by phone_hash inside tx.
func upsertSeller(ctx context.Context, tx pgx.Tx, phoneHash, profileURL string) (uuid.UUID, error) {
	if phoneHash == "" {
		return uuid.Nil, nil
	}
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO sellers (id, phone_hash, profile_url, contact_count, blacklisted)
		VALUES ($1, $2, $3, 1, false)
		ON CONFLICT (phone_hash) DO UPDATE SET
			contact_count = sellers.contact_count + 1,
			profile_url = COALESCE(NULLIF(EXCLUDED.profile_url, ''), sellers.profile_url)
		RETURNING id
	`, uuid.New(), phoneHash, profileURL).Scan(&id)
	return id, err
}

// Finalized is the resolved result of one normalize run, ready to persist.
type Finalized struct {
	BrandID         string
	ModelID         string
	Year            int
	MileageKM       int
	Fuel            domain.Fuel
	Gearbox         domain.Gearbox
	Body            domain.Body
	Price           decimal.Decimal
	Currency        string
	PriceBGN        decimal.Decimal
	Region          string
	DescriptionHash string
	SellerID        *uuid.UUID
}

// SaveFinal writes the resolved NormalizedListing, upserts the Seller,
// appends a PriceHistory row, and enqueues dedupe — all in one
// transaction (§4.3, outbox pattern).
func (s *Store) SaveFinal(ctx context.Context, listingID uuid.UUID, phoneRaw, profileURL string, f Finalized) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var sellerID *uuid.UUID
	if phoneRaw != "" {
		hash := PhoneHash(phoneRaw, s.salt)
		id, err := upsertSeller(ctx, tx, hash, profileURL)
		if err != nil {
			return err
		}
		sellerID = &id
	}

	_, err = tx.Exec(ctx, `
		UPDATE normalized_listings SET
			brand_id = $1, model_id = $2, year = $3, mileage_km = $4, fuel = $5, gearbox = $6,
			body = $7, price = $8, currency = $9, price_bgn = $10, region = $11,
			description_hash = $12, seller_id = $13, is_normalized = true
		WHERE id = $14
	`, f.BrandID, f.ModelID, f.Year, f.MileageKM, f.Fuel, f.Gearbox, f.Body,
		f.Price, f.Currency, f.PriceBGN, f.Region, f.DescriptionHash, sellerID, listingID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO price_history (listing_id, price_bgn, seen_at) VALUES ($1, $2, $3)
	`, listingID, f.PriceBGN, time.Now().UTC())
	if err != nil {
		return err
	}

	if err := s.tasks.Enqueue(ctx, tx, queue.Task{ListingID: listingID, Stage: queue.StageDedupe}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
