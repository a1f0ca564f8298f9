package price

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/carscout-ai/carscout/internal/queue"
)

// Store is the Postgres boundary for price: loading the target, querying
// comparables under a given Filter, and persisting CompCache/PriceHistory.
type Store struct {
	db    *pgxpool.Pool
	tasks *queue.Store
}

func NewStore(db *pgxpool.Pool, tasks *queue.Store) *Store {
	return &Store{db: db, tasks: tasks}
}

type targetRow struct {
	BrandID   string
	ModelID   string
	Year      int
	MileageKM int
	Fuel      string
	Gearbox   string
	PriceBGN  decimal.Decimal
}

func (s *Store) loadTarget(ctx context.Context, id uuid.UUID) (targetRow, error) {
	var r targetRow
	err := s.db.QueryRow(ctx, `
		SELECT brand_id, model_id, year, mileage_km, fuel, gearbox, price_bgn
		FROM normalized_listings WHERE id = $1
	`, id).Scan(&r.BrandID, &r.ModelID, &r.Year, &r.MileageKM, &r.Fuel, &r.Gearbox, &r.PriceBGN)
	if errors.Is(err, pgx.ErrNoRows) {
		return targetRow{}, err
	}
	return r, err
}

// loadComparables queries active, non-duplicate, non-self listings of
// the same (brand_id, model_id) matching Filter f, most-recent-first,
// capped at maxComparables (§4.5).
func (s *Store) loadComparables(ctx context.Context, excludeID uuid.UUID, t targetRow, f Filter, now time.Time) ([]Comparable, error) {
	query := `
		SELECT nl.price_bgn FROM normalized_listings nl
		JOIN raw_listings rl ON rl.id = nl.raw_id
		WHERE nl.id != $1 AND nl.is_duplicate = false AND rl.is_active = true
		  AND nl.brand_id = $2 AND nl.model_id = $3
		  AND nl.year BETWEEN $4 AND $5
		  AND nl.mileage_km BETWEEN $6 AND $7
		  AND rl.first_seen >= $8
	`
	args := []any{
		excludeID, t.BrandID, t.ModelID,
		t.Year - f.YearSpread, t.Year + f.YearSpread,
		int(float64(t.MileageKM) * (1 - f.MileagePct)), int(float64(t.MileageKM) * (1 + f.MileagePct)),
		f.WindowStart(now),
	}
	argN := 9
	if f.RequireFuel {
		query += " AND nl.fuel = $" + strconv.Itoa(argN)
		args = append(args, t.Fuel)
		argN++
	}
	if f.RequireGearbox {
		query += " AND nl.gearbox = $" + strconv.Itoa(argN)
		args = append(args, t.Gearbox)
		argN++
	}
	query += " ORDER BY rl.first_seen DESC LIMIT " + strconv.Itoa(maxComparables)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Comparable
	for rows.Next() {
		var c Comparable
		if err := rows.Scan(&c.PriceBGN); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveResult persists CompCache, appends PriceHistory if price_bgn
// changed since the last entry, and enqueues risk (§4.5, outbox pattern).
func (s *Store) SaveResult(ctx context.Context, listingID uuid.UUID, st Stats, priceBGN decimal.Decimal, modelVersion string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		INSERT INTO comp_cache
			(listing_id, p10, p25, p50, p75, p90, mean, std_dev, predicted_price,
			 discount_pct, sample_size, confidence, computed_at, model_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (listing_id) DO UPDATE SET
			p10 = EXCLUDED.p10, p25 = EXCLUDED.p25, p50 = EXCLUDED.p50,
			p75 = EXCLUDED.p75, p90 = EXCLUDED.p90, mean = EXCLUDED.mean,
			std_dev = EXCLUDED.std_dev, predicted_price = EXCLUDED.predicted_price,
			discount_pct = EXCLUDED.discount_pct, sample_size = EXCLUDED.sample_size,
			confidence = EXCLUDED.confidence, computed_at = EXCLUDED.computed_at,
			model_version = EXCLUDED.model_version
	`, listingID, st.P10, st.P25, st.P50, st.P75, st.P90, st.Mean, st.StdDev,
		st.PredictedPrice, st.DiscountPct, st.SampleSize, st.Confidence, now, modelVersion)
	if err != nil {
		return err
	}

	var lastPrice decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT price_bgn FROM price_history WHERE listing_id = $1 ORDER BY seen_at DESC LIMIT 1
	`, listingID).Scan(&lastPrice)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) || !lastPrice.Equal(priceBGN) {
		_, err = tx.Exec(ctx, `
			INSERT INTO price_history (listing_id, price_bgn, seen_at) VALUES ($1, $2, $3)
		`, listingID, priceBGN, now)
		if err != nil {
			return err
		}
	}

	if err := s.tasks.Enqueue(ctx, tx, queue.Task{ListingID: listingID, Stage: queue.StageRisk}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
