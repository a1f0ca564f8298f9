package fixtures

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// TestUser creates a free-plan user with an active subscription status.
func TestUser(t *testing.T, db *pgxpool.Pool) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	email := fmt.Sprintf("testuser-%s@example.com", uuid.New().String()[:8])
	telegramID := int64(100000 + len(email))

	var userID uuid.UUID
	err := db.QueryRow(ctx, `
		INSERT INTO users (id, telegram_user_id, email, plan_id, status, current_period_end, created_at)
		VALUES (gen_random_uuid(), $1, $2, (SELECT id FROM plans WHERE name = 'free'), 'active', $3, now())
		RETURNING id
	`, telegramID, email, time.Now().Add(30*24*time.Hour)).Scan(&userID)
	require.NoError(t, err)

	return userID
}

// PremiumUser creates a user on the premium plan.
func PremiumUser(t *testing.T, db *pgxpool.Pool) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	email := fmt.Sprintf("premium-%s@example.com", uuid.New().String()[:8])

	var userID uuid.UUID
	err := db.QueryRow(ctx, `
		INSERT INTO users (id, telegram_user_id, email, plan_id, status, current_period_end, created_at)
		VALUES (gen_random_uuid(), $1, $2, (SELECT id FROM plans WHERE name = 'premium'), 'active', $3, now())
		RETURNING id
	`, int64(200000+len(email)), email, time.Now().Add(30*24*time.Hour)).Scan(&userID)
	require.NoError(t, err)

	return userID
}

// ExpiredUser creates a user whose subscription period has already ended,
// used to exercise the entitlement re-check at alert delivery time (§4.9).
func ExpiredUser(t *testing.T, db *pgxpool.Pool) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	email := fmt.Sprintf("expired-%s@example.com", uuid.New().String()[:8])

	var userID uuid.UUID
	err := db.QueryRow(ctx, `
		INSERT INTO users (id, telegram_user_id, email, plan_id, status, current_period_end, created_at)
		VALUES (gen_random_uuid(), $1, $2, (SELECT id FROM plans WHERE name = 'free'), 'active', $3, now())
		RETURNING id
	`, int64(300000+len(email)), email, time.Now().Add(-24*time.Hour)).Scan(&userID)
	require.NoError(t, err)

	return userID
}

// TestSource creates an enabled scrape source.
func TestSource(t *testing.T, db *pgxpool.Pool, name string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	var sourceID uuid.UUID
	err := db.QueryRow(ctx, `
		INSERT INTO sources (id, name, base_url, enabled, crawl_interval_seconds)
		VALUES (gen_random_uuid(), $1, $2, true, 900)
		RETURNING id
	`, name, fmt.Sprintf("https://%s.example.com", name)).Scan(&sourceID)
	require.NoError(t, err)

	return sourceID
}

// TestRawListing inserts a raw scraped listing row, the entry point of the
// pipeline (§4.1).
func TestRawListing(t *testing.T, db *pgxpool.Pool, sourceID uuid.UUID, externalID, blobKey string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	var rawID uuid.UUID
	err := db.QueryRow(ctx, `
		INSERT INTO raw_listings (id, source_id, site_ad_id, raw_blob_key, first_seen, last_seen)
		VALUES (gen_random_uuid(), $1, $2, $3, now(), now())
		RETURNING id
	`, sourceID, externalID, blobKey).Scan(&rawID)
	require.NoError(t, err)

	return rawID
}

// TestNormalizedListing inserts a normalized listing ready for dedupe/price/
// risk/score (§4.3).
func TestNormalizedListing(t *testing.T, db *pgxpool.Pool, rawID uuid.UUID, brandID, modelID string, year, mileageKM int, priceBGN decimal.Decimal, region string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	var listingID uuid.UUID
	err := db.QueryRow(ctx, `
		INSERT INTO normalized_listings (
			id, raw_id, brand_id, model_id, year, mileage_km, fuel, gearbox,
			body, price_bgn, region, title, description, features, is_duplicate
		) VALUES (
			gen_random_uuid(), $1, $2, $3, $4, $5, 'petrol', 'manual',
			'sedan', $6, $7, 'Test Listing', 'Test description', ARRAY[]::text[], false
		)
		RETURNING id
	`, rawID, brandID, modelID, year, mileageKM, priceBGN, region).Scan(&listingID)
	require.NoError(t, err)

	return listingID
}

// TestScore records a score row for a listing, used by the listing read
// surface and channel delivery tests.
func TestScore(t *testing.T, db *pgxpool.Pool, listingID uuid.UUID, value, priceScore float64, state string) {
	t.Helper()
	ctx := context.Background()

	_, err := db.Exec(ctx, `
		INSERT INTO scores (listing_id, score, price_score, state, scored_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (listing_id) DO UPDATE SET score = $2, price_score = $3, state = $4
	`, listingID, value, priceScore, state)
	require.NoError(t, err)
}

// TestCompCache records a comparable-set cache row for a listing.
func TestCompCache(t *testing.T, db *pgxpool.Pool, listingID uuid.UUID, discountPct float64, sampleSize int) {
	t.Helper()
	ctx := context.Background()

	_, err := db.Exec(ctx, `
		INSERT INTO comp_cache (listing_id, discount_pct, sample_size, computed_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (listing_id) DO UPDATE SET discount_pct = $2, sample_size = $3
	`, listingID, discountPct, sampleSize)
	require.NoError(t, err)
}

// TestRiskEvaluation records a risk classification for a listing.
func TestRiskEvaluation(t *testing.T, db *pgxpool.Pool, listingID uuid.UUID, riskLevel string) {
	t.Helper()
	ctx := context.Background()

	_, err := db.Exec(ctx, `
		INSERT INTO risk_evaluations (listing_id, risk_level, evaluated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (listing_id) DO UPDATE SET risk_level = $2
	`, listingID, riskLevel)
	require.NoError(t, err)
}

// TestAlert creates an active alert for a user with the given raw DSL query
// and pre-marshalled filters JSON.
func TestAlert(t *testing.T, db *pgxpool.Pool, userID uuid.UUID, dslQuery string, filtersJSON []byte) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	var alertID uuid.UUID
	err := db.QueryRow(ctx, `
		INSERT INTO alerts (id, user_id, dsl_query, filters, active, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, true, now())
		RETURNING id
	`, userID, dslQuery, filtersJSON).Scan(&alertID)
	require.NoError(t, err)

	return alertID
}

// CleanupTestData removes all test data (call in cleanup), deepest
// dependents first.
func CleanupTestData(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	tables := []string{
		"alert_matches",
		"alerts",
		"channel_posts",
		"risk_evaluations",
		"comp_cache",
		"scores",
		"normalized_listings",
		"raw_listings",
		"sources",
		"users",
	}

	for _, table := range tables {
		_, err := db.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			t.Logf("Warning: failed to truncate %s: %v", table, err)
		}
	}
}
