package score

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carscout-ai/carscout/internal/domain"
	"github.com/carscout-ai/carscout/internal/queue"
)

// Store is the Postgres boundary for score.
type Store struct {
	db    *pgxpool.Pool
	tasks *queue.Store
}

func NewStore(db *pgxpool.Pool, tasks *queue.Store) *Store {
	return &Store{db: db, tasks: tasks}
}

type inputRow struct {
	DiscountPct      float64
	PriceConfidence  float64
	ComparableSample int
	RiskLevel        domain.RiskLevel
	HasHardAccident  bool
	FirstSeen        time.Time
}

func (s *Store) loadInputs(ctx context.Context, id uuid.UUID) (inputRow, error) {
	var r inputRow
	err := s.db.QueryRow(ctx, `
		SELECT cc.discount_pct, cc.confidence, cc.sample_size,
		       re.risk_level, COALESCE((re.flags ? 'accident'), false), rl.first_seen
		FROM normalized_listings nl
		JOIN raw_listings rl ON rl.id = nl.raw_id
		JOIN comp_cache cc ON cc.listing_id = nl.id
		JOIN risk_evaluations re ON re.listing_id = nl.id
		WHERE nl.id = $1
	`, id).Scan(&r.DiscountPct, &r.PriceConfidence, &r.ComparableSample,
		&r.RiskLevel, &r.HasHardAccident, &r.FirstSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return inputRow{}, err
	}
	return r, err
}

// Save persists Score and, when approved, enqueues both channel and
// alert-match (§4.7 "in all approved cases also emit alert-match").
func (s *Store) Save(ctx context.Context, listingID uuid.UUID, res Result) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		INSERT INTO scores
			(listing_id, score, price_score, risk_penalty, freshness, liquidity, reasons, state, scored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (listing_id) DO UPDATE SET
			score = EXCLUDED.score, price_score = EXCLUDED.price_score,
			risk_penalty = EXCLUDED.risk_penalty, freshness = EXCLUDED.freshness,
			liquidity = EXCLUDED.liquidity, reasons = EXCLUDED.reasons,
			state = EXCLUDED.state, scored_at = EXCLUDED.scored_at
	`, listingID, res.Score, res.PriceScore, res.RiskPenalty, res.Freshness,
		res.Liquidity, res.Reasons, res.State, now)
	if err != nil {
		return err
	}

	if res.State == domain.ScoreApproved {
		if err := s.tasks.Enqueue(ctx, tx, queue.Task{ListingID: listingID, Stage: queue.StageChannel}); err != nil {
			return err
		}
		if err := s.tasks.Enqueue(ctx, tx, queue.Task{ListingID: listingID, Stage: queue.StageAlertMatch}); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
