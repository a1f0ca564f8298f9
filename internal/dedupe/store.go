package dedupe

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

// Store is the Postgres boundary for dedupe: loading the target and its
// candidate pool, and persisting the verdict + DedupeSignature.
type Store struct {
	db    *pgxpool.Pool
	tasks *queue.Store
}

func NewStore(db *pgxpool.Pool, tasks *queue.Store) *Store {
	return &Store{db: db, tasks: tasks}
}

type listingRow struct {
	BrandID        string
	ModelID        string
	Year           int
	MileageKM      int
	PriceBGN       decimal.Decimal
	FirstImageHash string
	Title          string
	Description    string
	PhoneHash      string
	FirstSeen      time.Time
}

func (s *Store) loadTarget(ctx context.Context, id uuid.UUID) (listingRow, error) {
	var r listingRow
	var phoneHash *string
	err := s.db.QueryRow(ctx, `
		SELECT nl.brand_id, nl.model_id, nl.year, nl.mileage_km, nl.price_bgn,
		       COALESCE(nl.first_image_hash, ''), nl.title, nl.description, sel.phone_hash, rl.first_seen
		FROM normalized_listings nl
		JOIN raw_listings rl ON rl.id = nl.raw_id
		LEFT JOIN sellers sel ON sel.id = nl.seller_id
		WHERE nl.id = $1
	`, id).Scan(&r.BrandID, &r.ModelID, &r.Year, &r.MileageKM, &r.PriceBGN,
		&r.FirstImageHash, &r.Title, &r.Description, &phoneHash, &r.FirstSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return listingRow{}, err
	}
	if phoneHash != nil {
		r.PhoneHash = *phoneHash
	}
	return r, err
}

// loadCandidates pulls active, non-duplicate listings sharing the
// target's (brand_id, model_id) plus any active listing sharing its
// phone_hash — a bounded pool the cascade then scores (§4.4).
func (s *Store) loadCandidates(ctx context.Context, targetID uuid.UUID, brandID, modelID, phoneHash string) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT nl.id, rl.first_seen, COALESCE(sel.phone_hash, ''), nl.brand_id, nl.model_id,
		       nl.year, nl.mileage_km, nl.price_bgn, COALESCE(nl.first_image_hash, ''), nl.title
		FROM normalized_listings nl
		JOIN raw_listings rl ON rl.id = nl.raw_id
		LEFT JOIN sellers sel ON sel.id = nl.seller_id
		WHERE nl.id != $1 AND nl.is_duplicate = false AND rl.is_active = true
		  AND ((nl.brand_id = $2 AND nl.model_id = $3) OR sel.phone_hash = NULLIF($4, ''))
		ORDER BY rl.first_seen DESC
		LIMIT 500
	`, targetID, brandID, modelID, phoneHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		var firstSeen time.Time
		var imageHashHex, title string
		if err := rows.Scan(&c.ListingID, &firstSeen, &c.PhoneHash, &c.BrandID, &c.ModelID,
			&c.Year, &c.MileageKM, &c.PriceBGN, &imageHashHex, &title); err != nil {
			return nil, err
		}
		c.FirstSeen = firstSeen.Unix()
		c.ImagePHash = decodeHexHash(imageHashHex)
		c.TitleTrgm = Trigrams(title)
		out = append(out, c)
	}
	return out, rows.Err()
}

func decodeHexHash(hex string) uint64 {
	if hex == "" {
		return 0
	}
	v, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return 0
	}
	return v
}

// SaveNotDuplicate persists the DedupeSignature and enqueues price, in
// the same transaction per §4.4's explicit requirement.
func (s *Store) SaveNotDuplicate(ctx context.Context, listingID uuid.UUID, trgm map[string]struct{}, minHash []uint64, imageHash uint64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	trigramList := make([]string, 0, len(trgm))
	for t := range trgm {
		trigramList = append(trigramList, t)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO dedupe_signatures (listing_id, title_trgm, desc_minhash, first_image_phash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (listing_id) DO UPDATE SET
			title_trgm = EXCLUDED.title_trgm, desc_minhash = EXCLUDED.desc_minhash,
			first_image_phash = EXCLUDED.first_image_phash
	`, listingID, trigramList, minHash, imageHash)
	if err != nil {
		return err
	}

	if err := s.tasks.Enqueue(ctx, tx, queue.Task{ListingID: listingID, Stage: queue.StagePrice}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SaveDuplicate marks the listing a duplicate and records DuplicateLog;
// duplicates terminate and are not forwarded (§4.4).
func (s *Store) SaveDuplicate(ctx context.Context, listingID uuid.UUID, v Verdict) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE normalized_listings SET is_duplicate = true, canonical_of = $1 WHERE id = $2
	`, v.DuplicateOf, listingID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO duplicate_log (listing_id, duplicate_of, method, confidence, decided_at)
		VALUES ($1, $2, $3, $4, $5)
	`, listingID, v.DuplicateOf, v.Method, v.Confidence, time.Now().UTC())
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
