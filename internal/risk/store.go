package risk

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

// Store is the Postgres boundary for risk: loading title+description and
// persisting RiskEvaluation.
type Store struct {
	db    *pgxpool.Pool
	tasks *queue.Store
}

func NewStore(db *pgxpool.Pool, tasks *queue.Store) *Store {
	return &Store{db: db, tasks: tasks}
}

type listingText struct {
	Title           string
	Description     string
	DescriptionHash string
}

func (s *Store) loadText(ctx context.Context, id uuid.UUID) (listingText, error) {
	var t listingText
	err := s.db.QueryRow(ctx, `
		SELECT title, description, description_hash FROM normalized_listings WHERE id = $1
	`, id).Scan(&t.Title, &t.Description, &t.DescriptionHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return listingText{}, err
	}
	return t, err
}

// Evaluation is the persisted result the score stage consumes.
type Evaluation struct {
	RiskLevel      domain.RiskLevel
	RuleConfidence float64
	LLMUsed        bool
	LLMUnavailable bool
	LLMSummary     string
	LLMReasons     []string
	LLMConfidence  float64
	HasHardFlag    bool
}

// Save persists RiskEvaluation and enqueues score (§4.6, outbox pattern).
func (s *Store) Save(ctx context.Context, listingID uuid.UUID, flags map[Category][]string, e Evaluation) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	flagsJSON := make(map[string][]string, len(flags))
	for cat, words := range flags {
		flagsJSON[string(cat)] = words
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO risk_evaluations
			(listing_id, flags, risk_level, rule_confidence, llm_used, llm_unavailable,
			 llm_summary, llm_reasons, llm_confidence, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (listing_id) DO UPDATE SET
			flags = EXCLUDED.flags, risk_level = EXCLUDED.risk_level,
			rule_confidence = EXCLUDED.rule_confidence, llm_used = EXCLUDED.llm_used,
			llm_unavailable = EXCLUDED.llm_unavailable, llm_summary = EXCLUDED.llm_summary,
			llm_reasons = EXCLUDED.llm_reasons, llm_confidence = EXCLUDED.llm_confidence,
			evaluated_at = EXCLUDED.evaluated_at
	`, listingID, flagsJSON, e.RiskLevel, e.RuleConfidence, e.LLMUsed, e.LLMUnavailable,
		e.LLMSummary, e.LLMReasons, e.LLMConfidence, time.Now().UTC())
	if err != nil {
		return err
	}

	if err := s.tasks.Enqueue(ctx, tx, queue.Task{ListingID: listingID, Stage: queue.StageScore}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
