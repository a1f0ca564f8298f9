// Package channel implements broadcast delivery with rate limiting,
// diversity filtering, and create-or-edit idempotency (§4.8).
package channel

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store is the Postgres boundary for channel delivery.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// ListingPost is everything the channel stage needs about the listing
// being posted.
type ListingPost struct {
	BrandID     string
	ModelID     string
	Title       string
	Description string
	PriceBGN    decimal.Decimal
	Region      string
	ImageURLs   []string
}

func (s *Store) LoadListing(ctx context.Context, id uuid.UUID) (ListingPost, error) {
	var p ListingPost
	err := s.db.QueryRow(ctx, `
		SELECT brand_id, model_id, title, description, price_bgn, region
		FROM normalized_listings WHERE id = $1
	`, id).Scan(&p.BrandID, &p.ModelID, &p.Title, &p.Description, &p.PriceBGN, &p.Region)
	if errors.Is(err, pgx.ErrNoRows) {
		return ListingPost{}, err
	}
	if err != nil {
		return ListingPost{}, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT url FROM images WHERE listing_id = $1 ORDER BY index LIMIT 5
	`, id)
	if err != nil {
		return p, err
	}
	defer rows.Close()
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return p, err
		}
		p.ImageURLs = append(p.ImageURLs, url)
	}
	return p, rows.Err()
}

// ExistingPost is the current ChannelPost row for (channel, listing_id),
// if any.
type ExistingPost struct {
	MessageID    string
	LastPriceBGN decimal.Decimal
}

func (s *Store) LoadPost(ctx context.Context, channel string, listingID uuid.UUID) (ExistingPost, bool, error) {
	var p ExistingPost
	err := s.db.QueryRow(ctx, `
		SELECT message_id, last_price_bgn FROM channel_posts WHERE channel = $1 AND listing_id = $2
	`, channel, listingID).Scan(&p.MessageID, &p.LastPriceBGN)
	if errors.Is(err, pgx.ErrNoRows) {
		return ExistingPost{}, false, nil
	}
	return p, err == nil, err
}

// SavePost upserts the single ChannelPost row for (channel, listing_id)
// (§3 "unique per (channel, listing_id); re-posts are edits").
func (s *Store) SavePost(ctx context.Context, channel string, listingID uuid.UUID, messageID string, priceBGN decimal.Decimal) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO channel_posts (channel, listing_id, message_id, posted_at, last_price_bgn)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (channel, listing_id) DO UPDATE SET
			message_id = EXCLUDED.message_id, last_price_bgn = EXCLUDED.last_price_bgn
	`, channel, listingID, messageID, time.Now().UTC(), priceBGN)
	return err
}

// DiversityCount returns how many posts exist for (brand_id, model_id)
// on channel within the last window.
func (s *Store) DiversityCount(ctx context.Context, channel, brandID, modelID string, window time.Duration) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM channel_posts cp
		JOIN normalized_listings nl ON nl.id = cp.listing_id
		WHERE cp.channel = $1 AND nl.brand_id = $2 AND nl.model_id = $3
		  AND cp.posted_at > now() - make_interval(secs => $4)
	`, channel, brandID, modelID, int(window.Seconds())).Scan(&n)
	return n, err
}
